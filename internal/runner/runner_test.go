package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/wiki-citation-archive/internal/citation"
	"github.com/JakeFAU/wiki-citation-archive/internal/store"
)

type echoChecker struct {
	mu      sync.Mutex
	seen    []string
	foundOn map[string]bool
	failAt  int
	cancel  context.CancelFunc
}

func (c *echoChecker) Check(ctx context.Context, item citation.WorkItem) (citation.Result, error) {
	c.mu.Lock()
	c.seen = append(c.seen, item.Link)
	n := len(c.seen)
	c.mu.Unlock()

	if c.failAt > 0 && n == c.failAt && c.cancel != nil {
		c.cancel()
	}
	if err := ctx.Err(); err != nil {
		return citation.Result{}, err
	}
	res := citation.NewResult(item)
	if c.foundOn[item.Link] {
		res = res.WithSnapshot("https://web.archive.org/web/2020/"+item.Link, "20200101000000")
	}
	return res, nil
}

type memorySink struct {
	rows        []citation.Result
	checkpoints []int
}

func (s *memorySink) Append(res citation.Result) error {
	s.rows = append(s.rows, res)
	return nil
}

func (s *memorySink) Checkpoint() error {
	s.checkpoints = append(s.checkpoints, len(s.rows))
	return nil
}

func (s *memorySink) Path() string { return "memory" }

type countingPauser struct {
	delays []time.Duration
}

func (p *countingPauser) Pause(ctx context.Context, d time.Duration) error {
	p.delays = append(p.delays, d)
	return ctx.Err()
}

func items(n int) []citation.WorkItem {
	out := make([]citation.WorkItem, n)
	for i := range out {
		out[i] = citation.WorkItem{
			Link:        fmt.Sprintf("https://site%d.example/page", i),
			Category:    "Technology",
			ArticleName: "Computer",
		}
	}
	return out
}

func TestRunPreservesOrderAndTallies(t *testing.T) {
	t.Parallel()

	work := items(4)
	checker := &echoChecker{foundOn: map[string]bool{work[1].Link: true}}
	sink := &memorySink{}
	pauser := &countingPauser{}

	summary, err := New(checker, sink, pauser, Config{Delay: 500 * time.Millisecond}, zap.NewNop()).
		Run(context.Background(), work)
	require.NoError(t, err)

	require.Len(t, sink.rows, 4)
	for i, row := range sink.rows {
		assert.Equal(t, work[i], row.Item())
	}
	assert.Equal(t, Summary{Pending: 4, Processed: 4, Found: 1, NotFound: 3, Output: "memory"}, summary)
	assert.Equal(t, []time.Duration{
		500 * time.Millisecond, 500 * time.Millisecond, 500 * time.Millisecond, 500 * time.Millisecond,
	}, pauser.delays)
}

func TestRunCheckpointCadence(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		items int
		want  []int
	}{
		{name: "below threshold", items: 99, want: nil},
		{name: "exactly one batch", items: 100, want: []int{100}},
		{name: "two batches and a tail", items: 250, want: []int{100, 200}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			sink := &memorySink{}
			summary, err := New(&echoChecker{}, sink, nil, Config{}, nil).Run(context.Background(), items(tc.items))
			require.NoError(t, err)
			assert.Equal(t, tc.want, sink.checkpoints)
			assert.Equal(t, len(tc.want), summary.Checkpoints)
			assert.Equal(t, tc.items, summary.Processed)
		})
	}
}

func TestRunCustomFlushEvery(t *testing.T) {
	t.Parallel()

	sink := &memorySink{}
	_, err := New(&echoChecker{}, sink, nil, Config{FlushEvery: 3}, nil).Run(context.Background(), items(7))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 6}, sink.checkpoints)
}

func TestRunCountsFallbacks(t *testing.T) {
	t.Parallel()

	work := items(2)
	// An unparseable link has a nil domain without being a fallback.
	work = append(work, citation.WorkItem{Link: "http://%zz/", Category: "Technology", ArticleName: "Computer"})
	checker := checkerFunc(func(_ context.Context, item citation.WorkItem) (citation.Result, error) {
		if item.Link == work[0].Link {
			return citation.Fallback(item), nil
		}
		return citation.NewResult(item), nil
	})
	summary, err := New(checker, &memorySink{}, nil, Config{}, nil).Run(context.Background(), work)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Fallbacks)
	assert.Equal(t, 3, summary.NotFound)
}

func TestRunLogsEveryItemAtInfo(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	_, err := New(&echoChecker{}, &memorySink{}, nil, Config{}, zap.New(core)).Run(context.Background(), items(3))
	require.NoError(t, err)

	entries := logs.FilterMessage("citation checked").All()
	require.Len(t, entries, 3)
	assert.Equal(t, int64(3), entries[2].ContextMap()["n"])
	assert.Equal(t, int64(3), entries[2].ContextMap()["of"])
}

type checkerFunc func(context.Context, citation.WorkItem) (citation.Result, error)

func (f checkerFunc) Check(ctx context.Context, item citation.WorkItem) (citation.Result, error) {
	return f(ctx, item)
}

func TestRunStopsOnCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	checker := &echoChecker{failAt: 3, cancel: cancel}
	sink := &memorySink{}

	summary, err := New(checker, sink, &countingPauser{}, Config{Delay: time.Millisecond}, nil).Run(ctx, items(10))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, summary.Processed)
	assert.Len(t, sink.rows, 2)
}

type failingSink struct {
	memorySink
}

func (s *failingSink) Checkpoint() error {
	return errors.New("disk full")
}

func TestRunSurfacesCheckpointFailure(t *testing.T) {
	t.Parallel()

	_, err := New(&echoChecker{}, &failingSink{}, nil, Config{FlushEvery: 1}, nil).Run(context.Background(), items(2))
	require.ErrorContains(t, err, "disk full")
}

func TestPlanSkipsDoneAndDuplicates(t *testing.T) {
	t.Parallel()

	work := []citation.WorkItem{
		{Link: "https://a.example", Category: "History", ArticleName: "Rome"},
		{Link: "https://b.example", Category: "History", ArticleName: "Rome"},
		{Link: "https://a.example", Category: "Geography", ArticleName: "Alps"},
		{Link: "https://c.example", Category: "History", ArticleName: "Rome"},
	}

	t.Run("link key", func(t *testing.T) {
		t.Parallel()
		done := store.DoneSet{"https://b.example": {}}
		pending := Plan(work, done, LinkKey)
		assert.Equal(t, []citation.WorkItem{work[0], work[3]}, pending)
	})

	t.Run("tuple key", func(t *testing.T) {
		t.Parallel()
		done := store.DoneSet{TupleKey(work[1]): {}}
		pending := Plan(work, done, TupleKey)
		assert.Equal(t, []citation.WorkItem{work[0], work[2], work[3]}, pending)
	})
}

func TestKeyByName(t *testing.T) {
	t.Parallel()

	item := citation.WorkItem{Link: "https://a.example", Category: "History", ArticleName: "Rome"}

	key, err := KeyByName("")
	require.NoError(t, err)
	assert.Equal(t, "https://a.example", key(item))

	key, err = KeyByName("Tuple")
	require.NoError(t, err)
	assert.NotEqual(t, "https://a.example", key(item))

	_, err = KeyByName("article")
	require.Error(t, err)
}

func TestResumeAfterInterruptionIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "output.csv")
	work := items(5)

	ctx, cancel := context.WithCancel(context.Background())
	first := &echoChecker{failAt: 4, cancel: cancel}
	runOnce(ctx, t, path, work, first)
	cancel()

	second := &echoChecker{}
	runOnce(context.Background(), t, path, work, second)
	assert.Equal(t, []string{work[3].Link, work[4].Link}, second.seen)

	third := &echoChecker{}
	runOnce(context.Background(), t, path, work, third)
	assert.Empty(t, third.seen)

	results := readStore(t, path)
	require.Len(t, results, 5)
	for i, res := range results {
		assert.Equal(t, work[i], res.Item())
	}
}

func runOnce(ctx context.Context, t *testing.T, path string, work []citation.WorkItem, checker Checker) {
	t.Helper()

	sink, err := store.Open(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, sink.Close()) }()

	done, err := store.LoadDone(path, LinkKey, nil)
	require.NoError(t, err)

	_, err = New(checker, sink, nil, Config{FlushEvery: 2}, nil).Run(ctx, Plan(work, done, LinkKey))
	if err != nil {
		require.ErrorIs(t, err, context.Canceled)
	}
}

func readStore(t *testing.T, path string) []citation.Result {
	t.Helper()

	f, err := os.Open(path) // #nosec G304 -- test temp dir.
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	results, err := citation.ReadResults(f)
	require.NoError(t, err)
	return results
}

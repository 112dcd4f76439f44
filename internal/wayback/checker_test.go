package wayback

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/wiki-citation-archive/internal/citation"
)

type stubLooker struct {
	resp Response
	err  error
}

func (s stubLooker) Lookup(context.Context, string) (Response, error) {
	return s.resp, s.err
}

func TestCheckerOutcomes(t *testing.T) {
	t.Parallel()

	item := citation.WorkItem{Link: "https://Example.com/a", Category: "Health", ArticleName: "Sleep"}
	found := `{"archived_snapshots":{"closest":{"available":true,"url":"https://web.archive.org/web/2019/x","timestamp":"20190101000000"}}}`

	testCases := []struct {
		name        string
		looker      stubLooker
		wantFound   bool
		wantDomain  bool
		wantFailure string
	}{
		{
			name:       "found",
			looker:     stubLooker{resp: Response{StatusCode: 200, Body: []byte(found)}},
			wantFound:  true,
			wantDomain: true,
		},
		{
			name:       "not archived",
			looker:     stubLooker{resp: Response{StatusCode: 200, Body: []byte(`{"archived_snapshots":{}}`)}},
			wantDomain: true,
		},
		{
			name:        "http error",
			looker:      stubLooker{resp: Response{StatusCode: 503}},
			wantDomain:  true,
			wantFailure: "Error 503 for https://Example.com/a",
		},
		{
			name:        "malformed body",
			looker:      stubLooker{resp: Response{StatusCode: 200, Body: []byte("<html>")}},
			wantDomain:  true,
			wantFailure: "malformed availability response for https://Example.com/a",
		},
		{
			name:        "invalid request",
			looker:      stubLooker{err: fmt.Errorf("%w for x: bad", ErrInvalidRequest)},
			wantDomain:  true,
			wantFailure: "invalid availability request for x: bad",
		},
		{
			name:   "retries exhausted",
			looker: stubLooker{err: fmt.Errorf("%w: x: %w", ErrRetriesExhausted, errors.New("refused"))},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			failures := &recordingFailures{}
			checker := NewChecker(tc.looker, failures, zap.NewNop())

			res, err := checker.Check(context.Background(), item)
			require.NoError(t, err)
			assert.Equal(t, item, res.Item())
			assert.Equal(t, tc.wantFound, res.Found)
			if tc.wantDomain {
				require.NotNil(t, res.Domain)
				assert.Equal(t, "example.com", *res.Domain)
			} else {
				assert.Nil(t, res.Domain)
			}
			if !tc.wantFound {
				assert.Nil(t, res.ArchiveURL)
				assert.Nil(t, res.Timestamp)
			}
			if tc.wantFailure == "" {
				assert.Empty(t, failures.all())
			} else {
				assert.Equal(t, []string{tc.wantFailure}, failures.all())
			}
		})
	}
}

func TestCheckerPropagatesCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	checker := NewChecker(stubLooker{err: context.Canceled}, &recordingFailures{}, nil)
	_, err := checker.Check(ctx, citation.WorkItem{Link: "https://example.com"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestCheckerEndToEndFallbackLogsOnce(t *testing.T) {
	t.Parallel()

	failures := &recordingFailures{}
	client := NewClient(Config{Retries: 3}, &flakyDoer{fails: 3}, &recordingPauser{}, failures, nil)
	checker := NewChecker(client, failures, nil)

	res, err := checker.Check(context.Background(), citation.WorkItem{Link: "https://gone.example"})
	require.NoError(t, err)
	assert.Equal(t, citation.Fallback(citation.WorkItem{Link: "https://gone.example"}), res)
	assert.Equal(t, []string{"Failed after 3 retries: https://gone.example"}, failures.all())
}

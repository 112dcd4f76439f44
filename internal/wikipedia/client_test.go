package wikipedia

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWiki struct {
	mu         sync.Mutex
	members    map[string]string
	links      map[string]string
	failParse  map[string]int
	userAgents []string
	queries    []string
}

func (f *fakeWiki) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.userAgents = append(f.userAgents, r.UserAgent())
	f.queries = append(f.queries, r.URL.RawQuery)
	f.mu.Unlock()

	q := r.URL.Query()
	w.Header().Set("Content-Type", "application/json")
	switch q.Get("action") {
	case "query":
		body, ok := f.members[q.Get("cmtitle")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	case "parse":
		if code, ok := f.failParse[q.Get("page")]; ok {
			w.WriteHeader(code)
			return
		}
		body, ok := f.links[q.Get("page")]
		if !ok {
			_, _ = w.Write([]byte(`{"error":{"code":"missingtitle"}}`))
			return
		}
		_, _ = w.Write([]byte(body))
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newTestClient(t *testing.T, wiki *fakeWiki) *Client {
	t.Helper()
	srv := httptest.NewServer(wiki)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIURL: srv.URL + "/w/api.php", UserAgent: "citearchive-test/1.0"}, srv.Client(), nil, zap.NewNop())
}

func TestCategoryTitles(t *testing.T) {
	t.Parallel()

	wiki := &fakeWiki{members: map[string]string{
		"Category:History": `{"query":{"categorymembers":[{"pageid":1,"title":"Rome"},{"pageid":2,"title":"Category:Ancient history"}]}}`,
	}}
	client := newTestClient(t, wiki)

	titles, err := client.CategoryTitles(context.Background(), "History", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rome", "Category:Ancient history"}, titles)
	require.Len(t, wiki.queries, 1)
	assert.Contains(t, wiki.queries[0], "cmlimit=5")
	assert.Contains(t, wiki.queries[0], "list=categorymembers")
	assert.Equal(t, []string{"citearchive-test/1.0"}, wiki.userAgents)
}

func TestCategoryTitlesNon200IsEmpty(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, &fakeWiki{})
	titles, err := client.CategoryTitles(context.Background(), "Nowhere", 5)
	require.NoError(t, err)
	assert.Empty(t, titles)
}

func TestExternalLinks(t *testing.T) {
	t.Parallel()

	wiki := &fakeWiki{
		links: map[string]string{
			"Rome": `{"parse":{"title":"Rome","pageid":1,"externallinks":["https://www.britannica.com/place/Rome","http://example.org/x"]}}`,
		},
		failParse: map[string]int{"Broken": http.StatusServiceUnavailable},
	}
	client := newTestClient(t, wiki)
	ctx := context.Background()

	links, err := client.ExternalLinks(ctx, "Rome")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.britannica.com/place/Rome", "http://example.org/x"}, links)

	links, err = client.ExternalLinks(ctx, "Missing")
	require.NoError(t, err)
	assert.Empty(t, links, "API error payloads carry no parse section")

	links, err = client.ExternalLinks(ctx, "Broken")
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestExternalLinksDecodeError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, &fakeWiki{links: map[string]string{"Rome": "<html>"}})
	_, err := client.ExternalLinks(context.Background(), "Rome")
	require.ErrorContains(t, err, "decode parse response")
}

type recordingWaiter struct {
	calls int
	err   error
}

func (w *recordingWaiter) Wait(context.Context, string) error {
	w.calls++
	return w.err
}

func TestHarvest(t *testing.T) {
	t.Parallel()

	wiki := &fakeWiki{
		members: map[string]string{
			"Category:History":   `{"query":{"categorymembers":[{"title":"Rome"},{"title":"Carthage"}]}}`,
			"Category:Geography": `{"query":{"categorymembers":[{"title":"Alps"}]}}`,
		},
		links: map[string]string{
			"Rome":     `{"parse":{"externallinks":["https://a.example/rome","https://b.example/rome"]}}`,
			"Carthage": `{"parse":{"externallinks":[]}}`,
			"Alps":     `{"parse":{"externallinks":["https://a.example/alps"]}}`,
		},
	}
	srv := httptest.NewServer(wiki)
	t.Cleanup(srv.Close)
	waiter := &recordingWaiter{}
	client := NewClient(Config{APIURL: srv.URL}, srv.Client(), waiter, nil)

	rows, err := client.Harvest(context.Background(), []string{"History", "Geography", "Empty"}, 5)
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{Category: "History", Article: "Rome", CitationLink: "https://a.example/rome"},
		{Category: "History", Article: "Rome", CitationLink: "https://b.example/rome"},
		{Category: "Geography", Article: "Alps", CitationLink: "https://a.example/alps"},
	}, rows)
	assert.Equal(t, 6, waiter.calls)
	assert.Equal(t, DefaultUserAgent, wiki.userAgents[0])
}

func TestHarvestStopsWhenPacingFails(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, &fakeWiki{})
	client.waiter = &recordingWaiter{err: context.Canceled}

	_, err := client.Harvest(context.Background(), []string{"History"}, 5)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWriteRows(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteRows(&buf, []Row{
		{Category: "Human activities", Article: "Sport, history of", CitationLink: "https://a.example"},
	}))
	assert.Equal(t, "category,article,citation_link\n"+
		"Human activities,\"Sport, history of\",https://a.example\n", buf.String())
}

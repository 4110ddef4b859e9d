package clickup

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docContent = "Sprint goals: finish the relay, ship the dashboard, fix the flaky tests."

func newFakeClickUp(t *testing.T, pagesBody string) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/team", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"teams": [{"id": "team1"}]}`)
	})
	mux.HandleFunc("/v3/workspaces/team1/docs", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"docs": [{"id": "doc1", "name": "Daily Standup Summary By AI"}]}`)
	})
	mux.HandleFunc("/v3/workspaces/team1/docs/doc1/pages", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pagesBody)
	})
	mux.HandleFunc("/v3/workspaces/team1/docs/doc1/pages/page1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id": "page1", "content": %q}`, docContent)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(serverURL string) *Client {
	return NewClient(Config{APIKey: "test-token", BaseURL: serverURL}, nil)
}

func TestFetchDocument(t *testing.T) {
	server := newFakeClickUp(t, `{"pages": [{"id": "page1"}]}`)
	c := newTestClient(server.URL)

	content, err := c.FetchDocument(context.Background(), "daily standup summary by ai")
	require.NoError(t, err)
	assert.Equal(t, docContent, content)
}

func TestFetchDocumentBareListPages(t *testing.T) {
	server := newFakeClickUp(t, `[{"id": "page1"}]`)
	c := newTestClient(server.URL)

	content, err := c.FetchDocument(context.Background(), "Daily Standup Summary By AI")
	require.NoError(t, err)
	assert.Equal(t, docContent, content)
}

func TestFetchDocumentNameMismatch(t *testing.T) {
	server := newFakeClickUp(t, `{"pages": [{"id": "page1"}]}`)
	c := newTestClient(server.URL)

	_, err := c.FetchDocument(context.Background(), "Some Other Doc")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestFetchDocumentUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	_, err := newTestClient(server.URL).FetchDocument(context.Background(), "anything")
	assert.Error(t, err)
}

func TestFetchDocumentShortContentTreatedAsAbsent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/team", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"teams": [{"id": "team1"}]}`)
	})
	mux.HandleFunc("/v3/workspaces/team1/docs", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"docs": [{"id": "doc1", "name": "Stub"}]}`)
	})
	mux.HandleFunc("/v3/workspaces/team1/docs/doc1/pages", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"pages": [{"id": "page1"}]}`)
	})
	mux.HandleFunc("/v3/workspaces/team1/docs/doc1/pages/page1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": "page1", "content": "tbd"}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	_, err := newTestClient(server.URL).FetchDocument(context.Background(), "Stub")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

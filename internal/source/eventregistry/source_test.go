package eventregistry

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressdesk/internal/config"
)

func testConfig(baseURL string) config.EventRegistryConfig {
	return config.EventRegistryConfig{
		BaseURL:         baseURL,
		APIKey:          "test-key",
		ArticlesPerPage: 2,
		RequestDelay:    time.Millisecond,
		Timeout:         time.Second,
		Retry: config.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func pageResponse(page, pages int, titles ...string) response {
	var results []articleResult
	for _, t := range titles {
		results = append(results, articleResult{
			URI:      "uri-" + t,
			Title:    t,
			URL:      "https://news.example/" + t,
			Body:     "body of " + t,
			DateTime: "2026-08-01T12:00:00Z",
			Source:   articleSource{Title: "Example Times"},
		})
	}
	return response{Articles: articlePage{Results: results, Page: page, Pages: pages}}
}

func TestFetchArticles_Paginates(t *testing.T) {
	var pagesSeen []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getArticles", req.Action)
		assert.Equal(t, "test-key", req.APIKey)
		assert.Equal(t, "date", req.ArticlesSortBy)

		pagesSeen = append(pagesSeen, req.ArticlesPage)
		switch req.ArticlesPage {
		case 1:
			json.NewEncoder(w).Encode(pageResponse(1, 2, "first", "second"))
		default:
			json.NewEncoder(w).Encode(pageResponse(2, 2, "third"))
		}
	}))
	defer srv.Close()

	src := New(testConfig(srv.URL), testLogger())
	articles, err := src.FetchArticles(context.Background(), []string{"climate"}, 10)

	require.NoError(t, err)
	require.Len(t, articles, 3)
	assert.Equal(t, []int{1, 2}, pagesSeen)

	a := articles[0]
	assert.Equal(t, "first", a.Title)
	require.NotNil(t, a.URL)
	assert.Equal(t, "https://news.example/first", *a.URL)
	require.NotNil(t, a.Source)
	assert.Equal(t, "Example Times", *a.Source)
	assert.Regexp(t, "^eventregistry-[0-9a-f]{8}$", a.ID)
	assert.Equal(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), a.RetrievedAt)
}

func TestFetchArticles_StopsAtMaxArticles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(pageResponse(req.ArticlesPage, 100, "a", "b"))
	}))
	defer srv.Close()

	src := New(testConfig(srv.URL), testLogger())
	articles, err := src.FetchArticles(context.Background(), []string{"climate"}, 3)

	require.NoError(t, err)
	assert.Len(t, articles, 3)
}

func TestFetchArticles_BuildsBooleanQuery(t *testing.T) {
	var got request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(pageResponse(1, 1))
	}))
	defer srv.Close()

	src := New(testConfig(srv.URL), testLogger())
	_, err := src.FetchArticles(context.Background(), []string{"solar OR wind", "grid"}, 10)
	require.NoError(t, err)

	conds := got.Query.Query.And
	require.Len(t, conds, 3)
	require.Len(t, conds[0].Or, 2)
	assert.Equal(t, "solar", conds[0].Or[0].Keyword)
	assert.Equal(t, "wind", conds[0].Or[1].Keyword)
	assert.Equal(t, "grid", conds[1].Keyword)
	assert.Equal(t, "eng", conds[2].Lang)
}

func TestFetchArticles_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(pageResponse(1, 1, "eventual"))
	}))
	defer srv.Close()

	src := New(testConfig(srv.URL), testLogger())
	articles, err := src.FetchArticles(context.Background(), []string{"climate"}, 10)

	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchArticles_ReturnsPartialOnFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.ArticlesPage == 1 {
			json.NewEncoder(w).Encode(pageResponse(1, 2, "kept"))
			return
		}
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := New(testConfig(srv.URL), testLogger())
	articles, err := src.FetchArticles(context.Background(), []string{"climate"}, 10)

	assert.Error(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "kept", articles[0].Title)
	assert.Equal(t, int32(3), calls.Load(), "second page exhausts its retries")
}

func TestFetchArticles_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(response{Error: "invalid api key"})
	}))
	defer srv.Close()

	src := New(testConfig(srv.URL), testLogger())
	_, err := src.FetchArticles(context.Background(), []string{"climate"}, 10)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestSearch_BuildsFilteredRequest(t *testing.T) {
	var got request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(pageResponse(1, 1, "hit"))
	}))
	defer srv.Close()

	src := New(testConfig(srv.URL), testLogger())
	articles, err := src.Search(context.Background(), SearchParams{
		SearchTerms: []string{"solar", "wind"},
		SourceURIs:  []string{"example.com", "example.org"},
		DateStart:   "2026-08-01",
		DateEnd:     "2026-08-28",
		MaxArticles: 10,
	})
	require.NoError(t, err)
	assert.Len(t, articles, 1)

	conds := got.Query.Query.And
	require.Len(t, conds, 3)
	require.Len(t, conds[0].Or, 2)
	assert.Equal(t, "solar", conds[0].Or[0].Keyword)
	assert.Equal(t, "body", conds[0].Or[0].KeywordLoc)
	assert.Equal(t, "example.com", conds[1].Or[0].SourceURI)
	assert.Equal(t, "2026-08-01", conds[2].DateStart)
	assert.Equal(t, "2026-08-28", conds[2].DateEnd)
	require.NotNil(t, got.Filter)
	assert.Equal(t, []string{"news", "blog"}, got.Filter.DataType)
}

func TestSearch_NoTerms(t *testing.T) {
	src := New(testConfig("http://unused.example"), testLogger())
	_, err := src.Search(context.Background(), SearchParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no search terms")
}

func TestFetchArticles_NoQueries(t *testing.T) {
	src := New(testConfig("http://unused.example"), testLogger())
	articles, err := src.FetchArticles(context.Background(), nil, 10)
	assert.NoError(t, err)
	assert.Empty(t, articles)
}

// Package eventregistry fetches news articles for a project's queries
// from the EventRegistry getArticles endpoint.
package eventregistry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"pressdesk/internal/config"
	"pressdesk/internal/domain"
)

const SourceID = "eventregistry"

type Source struct {
	httpClient      *http.Client
	baseURL         string
	apiKey          string
	articlesPerPage int
	requestDelay    time.Duration
	maxAttempts     int
	initialBackoff  time.Duration
	maxBackoff      time.Duration
	logger          *slog.Logger
}

func New(cfg config.EventRegistryConfig, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:         cfg.BaseURL,
		apiKey:          cfg.APIKey,
		articlesPerPage: cfg.ArticlesPerPage,
		requestDelay:    cfg.RequestDelay,
		maxAttempts:     cfg.Retry.MaxAttempts,
		initialBackoff:  cfg.Retry.InitialBackoff,
		maxBackoff:      cfg.Retry.MaxBackoff,
		logger:          logger.With("source", SourceID),
	}
}

// SearchParams narrows an explicit article search. SearchTerms are
// OR'd unless BooleanQuery is set, which takes precedence and is
// parsed with the AND/OR composer. Dates are YYYY-MM-DD.
type SearchParams struct {
	SearchTerms  []string
	BooleanQuery string
	SourceURIs   []string
	DateStart    string
	DateEnd      string
	MaxArticles  int
}

// FetchArticles pulls up to maxArticles results matching the queries,
// paging through the API with a delay between requests. Results are
// sorted newest first by the API.
func (s *Source) FetchArticles(ctx context.Context, queries []string, maxArticles int) ([]domain.Article, error) {
	conds := buildConditions(queries)
	if len(conds) == 0 {
		return nil, nil
	}
	conds = append(conds, condition{Lang: "eng"})
	return s.fetchAll(ctx, conds, nil, maxArticles)
}

// Search runs an explicit catalogue-driven search with source and
// date-range filters.
func (s *Source) Search(ctx context.Context, params SearchParams) ([]domain.Article, error) {
	var conds []condition

	if params.BooleanQuery != "" {
		conds = buildConditions([]string{params.BooleanQuery})
	} else if len(params.SearchTerms) == 1 {
		conds = append(conds, keywordCondition(params.SearchTerms[0]))
	} else if len(params.SearchTerms) > 1 {
		or := make([]condition, 0, len(params.SearchTerms))
		for _, term := range params.SearchTerms {
			or = append(or, keywordCondition(term))
		}
		conds = append(conds, condition{Or: or})
	}
	if len(conds) == 0 {
		return nil, fmt.Errorf("no search terms given")
	}

	if len(params.SourceURIs) > 0 {
		or := make([]condition, 0, len(params.SourceURIs))
		for _, uri := range params.SourceURIs {
			or = append(or, condition{SourceURI: uri})
		}
		conds = append(conds, condition{Or: or})
	}
	if params.DateStart != "" || params.DateEnd != "" {
		conds = append(conds, condition{DateStart: params.DateStart, DateEnd: params.DateEnd})
	}

	maxArticles := params.MaxArticles
	if maxArticles <= 0 {
		maxArticles = s.articlesPerPage
	}
	return s.fetchAll(ctx, conds, &filter{DataType: []string{"news", "blog"}}, maxArticles)
}

func (s *Source) fetchAll(ctx context.Context, conds []condition, flt *filter, maxArticles int) ([]domain.Article, error) {
	var results []articleResult
	for page := 1; ; page++ {
		resp, err := s.fetchPage(ctx, conds, flt, page)
		if err != nil {
			return s.transform(results, maxArticles), fmt.Errorf("fetch page %d: %w", page, err)
		}

		results = append(results, resp.Articles.Results...)

		s.logger.Debug("fetched page",
			"page", page,
			"articles", len(resp.Articles.Results),
			"total", len(results),
		)

		if len(results) >= maxArticles || page >= resp.Articles.Pages {
			break
		}

		select {
		case <-ctx.Done():
			return s.transform(results, maxArticles), ctx.Err()
		case <-time.After(s.requestDelay):
		}
	}

	return s.transform(results, maxArticles), nil
}

func (s *Source) fetchPage(ctx context.Context, conds []condition, flt *filter, page int) (*response, error) {
	body := request{
		Action:         "getArticles",
		Query:          query{Query: queryBody{And: conds}},
		Filter:         flt,
		ResultType:     "articles",
		ArticlesSortBy: "date",
		ArticlesPage:   page,
		ArticlesCount:  s.articlesPerPage,
		APIKey:         s.apiKey,
	}

	var resp *response
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		resp, err = s.doRequest(ctx, body)
		if err == nil {
			return resp, nil
		}

		if attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", s.maxAttempts, err)
}

func (s *Source) doRequest(ctx context.Context, body request) (*response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	httpResp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", httpResp.StatusCode)
	}

	var apiResp response
	if err := json.NewDecoder(httpResp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != "" {
		return nil, fmt.Errorf("api error: %s", apiResp.Error)
	}

	return &apiResp, nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}

func (s *Source) transform(results []articleResult, maxArticles int) []domain.Article {
	if len(results) > maxArticles {
		results = results[:maxArticles]
	}

	articles := make([]domain.Article, 0, len(results))
	for _, r := range results {
		if r.Title == "" {
			s.logger.Warn("skipping untitled article", "uri", r.URI)
			continue
		}
		sourceID := SourceID
		a := domain.NewArticle(r.Title, strPtr(r.URL), &sourceID, strPtr(r.Body))
		if t, err := time.Parse(time.RFC3339, r.DateTime); err == nil {
			a.RetrievedAt = t
		}
		// Keep the publication name over the generic source id when the
		// API provides one; the article id prefix is already set.
		if r.Source.Title != "" {
			a.Source = strPtr(r.Source.Title)
		}
		articles = append(articles, a)
	}
	return articles
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

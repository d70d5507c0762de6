// Package sheets manages the spreadsheet paired with each project: one
// copy of a master template per project, with an Articles tab holding
// the fetched articles for editors to review.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	sheetsapi "google.golang.org/api/sheets/v4"
	"google.golang.org/api/option"

	"pressdesk/internal/config"
	"pressdesk/internal/domain"
	"pressdesk/internal/driveapi"
)

const (
	articlesTab   = "Articles"
	articlesRange = "Articles!A:H"
	analysisTab   = "Analysis"
	analysisRange = "Analysis!A:D"
)

var articleHeader = []any{
	"Article ID",
	"Article Source Outlet",
	"Article Title",
	"Article Author/s",
	"Article URLs",
	"Article Full Body Text",
	"Date the article was written",
	"Article Input Method",
}

type Manager struct {
	drive       driveapi.Client
	svc         *sheetsapi.Service
	folders     config.FolderConfig
	sharePublic bool
	logger      *slog.Logger
}

func NewManager(ctx context.Context, ts oauth2.TokenSource, drive driveapi.Client, cfg config.GoogleConfig, folders config.FolderConfig, logger *slog.Logger) (*Manager, error) {
	svc, err := sheetsapi.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Manager{
		drive:       drive,
		svc:         svc,
		folders:     folders,
		sharePublic: cfg.SharePublic,
		logger:      logger.With("component", "sheets"),
	}, nil
}

// CreateProjectSheet copies the master template into the active sheets
// folder under the project's name and returns the new sheet's id and
// link.
func (m *Manager) CreateProjectSheet(ctx context.Context, projectName string) (string, string, error) {
	f, err := m.drive.Copy(ctx, m.folders.MasterSheetID, projectName, m.folders.Sheets)
	if err != nil {
		return "", "", fmt.Errorf("copy master sheet: %w", err)
	}
	if m.sharePublic {
		if err := m.drive.SharePublic(ctx, f.ID); err != nil {
			m.logger.Warn("sharing sheet publicly failed", "sheet", f.ID, "error", err)
		}
	}
	m.logger.Info("created project sheet", "sheet", f.ID, "name", projectName)
	return f.ID, f.WebViewLink, nil
}

// AppendArticles writes the articles to the sheet's Articles tab,
// creating the tab (with a header row) on first use.
func (m *Manager) AppendArticles(ctx context.Context, spreadsheetID string, articles []domain.Article) error {
	if len(articles) == 0 {
		return nil
	}

	created, err := m.ensureTab(ctx, spreadsheetID, articlesTab)
	if err != nil {
		return err
	}

	var rows [][]any
	if created {
		rows = append(rows, articleHeader)
	}
	rows = append(rows, FormatRows(articles)...)

	if err := m.appendRows(ctx, spreadsheetID, articlesRange, rows); err != nil {
		return fmt.Errorf("append articles to sheet %s: %w", spreadsheetID, err)
	}

	m.logger.Debug("appended articles to sheet", "sheet", spreadsheetID, "rows", len(articles))
	return nil
}

// WriteAnalysis appends an analysis summary table to the Analysis tab.
// Callers treat failures here as non-fatal; the run is already
// recorded in the project document.
func (m *Manager) WriteAnalysis(ctx context.Context, spreadsheetID string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	if _, err := m.ensureTab(ctx, spreadsheetID, analysisTab); err != nil {
		return err
	}
	if err := m.appendRows(ctx, spreadsheetID, analysisRange, rows); err != nil {
		return fmt.Errorf("append analysis to sheet %s: %w", spreadsheetID, err)
	}
	return nil
}

func (m *Manager) appendRows(ctx context.Context, spreadsheetID, rangeName string, rows [][]any) error {
	_, err := m.svc.Spreadsheets.Values.Append(spreadsheetID, rangeName, &sheetsapi.ValueRange{
		Values: rows,
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

// SyncArticles reads the Articles tab back into the project's sheet
// article list, marking each row analysed when one of the project's
// analysis runs covered it. Projects without a sheet sync to empty.
func (m *Manager) SyncArticles(ctx context.Context, project *domain.Project) error {
	if project.SheetID == "" {
		m.logger.Warn("project has no sheet, skipping article sync", "project", project.ID)
		project.SheetArticles = []domain.SheetArticle{}
		return nil
	}

	resp, err := m.svc.Spreadsheets.Values.Get(project.SheetID, articlesRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read articles from sheet %s: %w", project.SheetID, err)
	}

	project.SheetArticles = parseSheetArticles(resp.Values, project.AnalysisRuns)
	return nil
}

// ensureTab reports whether it had to create the tab.
func (m *Manager) ensureTab(ctx context.Context, spreadsheetID, title string) (bool, error) {
	ss, err := m.svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("inspect sheet %s: %w", spreadsheetID, err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return false, nil
		}
	}

	_, err = m.svc.Spreadsheets.BatchUpdate(spreadsheetID, &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			AddSheet: &sheetsapi.AddSheetRequest{
				Properties: &sheetsapi.SheetProperties{Title: title},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("add %s tab to sheet %s: %w", title, spreadsheetID, err)
	}
	return true, nil
}

// FormatRows renders articles as Articles-tab rows in header order.
// The first column is a 1-based row number, which is what sheet
// article ids refer back to.
func FormatRows(articles []domain.Article) [][]any {
	rows := make([][]any, 0, len(articles))
	for i, a := range articles {
		source := "Unknown Source"
		if a.Source != nil && *a.Source != "" {
			source = *a.Source
		}
		content := "No content available"
		if a.Content != nil && *a.Content != "" {
			content = *a.Content
		}
		inputMethod := "Event Registry"
		if strings.HasPrefix(a.ID, "manual-") {
			inputMethod = "Manual"
		}
		rows = append(rows, []any{
			strconv.Itoa(i + 1),
			source,
			a.Title,
			"",
			deref(a.URL),
			content,
			a.RetrievedAt.Format(time.RFC3339),
			inputMethod,
		})
	}
	return rows
}

// parseSheetArticles turns raw cell values into sheet articles. The
// id is the data row number (the header row is row zero and skipped),
// the title comes from column C, and a row counts as analysed when any
// run covered the article id derived from its row number.
func parseSheetArticles(values [][]any, runs []domain.AnalysisRun) []domain.SheetArticle {
	var out []domain.SheetArticle
	for i, row := range values {
		if i == 0 || len(row) == 0 || cell(row, 0) == "" {
			continue
		}
		title := cell(row, 2)
		if title == "" {
			title = "Untitled"
		}
		out = append(out, domain.SheetArticle{
			ID:     i,
			Title:  title,
			Status: rowStatus(i, runs),
		})
	}
	return out
}

func rowStatus(row int, runs []domain.AnalysisRun) string {
	rowArticleID := "article-" + strconv.Itoa(row)
	for _, run := range runs {
		for _, id := range run.ArticleIDs {
			if id == rowArticleID {
				return domain.SheetStatusAnalysed
			}
		}
	}
	return domain.SheetStatusRetrieved
}

// SourceEntry is one row of the news-source catalogue sheet.
type SourceEntry struct {
	Title    string `json:"title"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Language string `json:"language"`
	URI      string `json:"uri"`
}

// ReadSources loads the news-source catalogue from the configured
// sheet. Rows without both a title and a uri are skipped.
func (m *Manager) ReadSources(ctx context.Context) ([]SourceEntry, error) {
	if m.folders.SourcesSheet == "" {
		return nil, fmt.Errorf("no sources sheet configured")
	}
	resp, err := m.svc.Spreadsheets.Values.Get(m.folders.SourcesSheet, m.folders.SourcesRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read sources sheet: %w", err)
	}
	return parseSources(resp.Values), nil
}

func parseSources(values [][]any) []SourceEntry {
	var out []SourceEntry
	for _, row := range values {
		e := SourceEntry{
			Title:    strings.TrimSpace(cell(row, 0)),
			Region:   strings.TrimSpace(cell(row, 1)),
			Country:  strings.TrimSpace(cell(row, 2)),
			Language: strings.TrimSpace(cell(row, 3)),
			URI:      cleanSourceURI(cell(row, 4)),
		}
		if e.Title == "" || e.URI == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

// cleanSourceURI normalizes catalogue entries to the bare host form
// the article API expects.
func cleanSourceURI(uri string) string {
	uri = strings.ToLower(strings.TrimSpace(uri))
	uri = strings.TrimPrefix(uri, "https://")
	uri = strings.TrimPrefix(uri, "http://")
	uri = strings.TrimPrefix(uri, "www.")
	return strings.TrimSuffix(uri, "/")
}

func cell(row []any, i int) string {
	if i >= len(row) {
		return ""
	}
	s, _ := row[i].(string)
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

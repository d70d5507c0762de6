package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// CurrentSchemaVersion is the project document schema written by this
// binary. Documents written before versioning carry no schemaVersion
// field and are migrated on read; documents from a newer binary are
// rejected.
const CurrentSchemaVersion = 1

// AnalysisStatus tracks the analysis lifecycle of a single article.
type AnalysisStatus string

const (
	AnalysisPending    AnalysisStatus = "pending"
	AnalysisInProgress AnalysisStatus = "in_progress"
	AnalysisComplete   AnalysisStatus = "complete"
	AnalysisError      AnalysisStatus = "error"
)

// RunStatus is the outcome of a whole analysis run.
type RunStatus string

const (
	RunPending  RunStatus = "pending"
	RunComplete RunStatus = "complete"
	RunError    RunStatus = "error"
)

// Article is owned by a project and not independently addressable.
type Article struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	URL            *string         `json:"url,omitempty"`
	Source         *string         `json:"source,omitempty"`
	Content        *string         `json:"content,omitempty"`
	RetrievedAt    time.Time       `json:"retrievedAt"`
	AnalysisStatus AnalysisStatus  `json:"analysisStatus"`
	AnalysisResult json.RawMessage `json:"analysisResult,omitempty"`
}

// AnalysisRun is an append-only audit record of one workflow execution.
type AnalysisRun struct {
	ID         string          `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	ArticleIDs []string        `json:"articleIds"`
	Status     RunStatus       `json:"status"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// Sheet article statuses mirror what editors see in the spreadsheet.
const (
	SheetStatusRetrieved = "Retrieved"
	SheetStatusAnalysed  = "Analysed"
)

// SheetArticle is a row snapshot pulled from the project spreadsheet's
// Articles tab.
type SheetArticle struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// Project is the unit of work: a metadata document plus an associated
// spreadsheet. The ID is a slug generated once at creation and never
// changes, including through archive and restore; only SheetID may be
// reassigned when a restore makes a fresh spreadsheet copy.
type Project struct {
	SchemaVersion int             `json:"schemaVersion"`
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	CreatedAt     time.Time       `json:"createdAt"`
	SheetID       string          `json:"sheetId"`
	SheetURL      *string         `json:"sheetUrl,omitempty"`
	Queries       []string        `json:"queries"`
	Articles      []Article       `json:"articles"`
	AnalysisRuns  []AnalysisRun   `json:"analysisRuns"`
	SheetArticles []SheetArticle  `json:"sheetArticles,omitempty"`
	ArchivedAt    *time.Time      `json:"archivedAt,omitempty"`
	Meta          json.RawMessage `json:"meta,omitempty"`
}

// NewProject builds a fresh project with a generated slug id.
func NewProject(name string, queries []string) *Project {
	if queries == nil {
		queries = []string{}
	}
	return &Project{
		SchemaVersion: CurrentSchemaVersion,
		ID:            MakeSlug(name),
		Name:          name,
		CreatedAt:     time.Now().UTC(),
		Queries:       queries,
		Articles:      []Article{},
		AnalysisRuns:  []AnalysisRun{},
	}
}

// NewArticle builds an article ready for appending to a project. The
// id embeds the source so sheet rows and runs stay traceable.
func NewArticle(title string, url, source, content *string) Article {
	prefix := "manual"
	if source != nil && *source != "" {
		prefix = *source
	}
	return Article{
		ID:             fmt.Sprintf("%s-%s", prefix, randomHex(8)),
		Title:          title,
		URL:            url,
		Source:         source,
		Content:        content,
		RetrievedAt:    time.Now().UTC(),
		AnalysisStatus: AnalysisPending,
	}
}

// NewAnalysisRun records a workflow execution over the given articles.
func NewAnalysisRun(articleIDs []string, status RunStatus, result json.RawMessage) AnalysisRun {
	return AnalysisRun{
		ID:         "run-" + randomHex(8),
		Timestamp:  time.Now().UTC(),
		ArticleIDs: articleIDs,
		Status:     status,
		Result:     result,
	}
}

// Encode marshals the project document the way both stores persist it.
func (p *Project) Encode() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// DecodeProject parses a stored project document, migrating documents
// written before schema versioning. Fields appended to the schema over
// time (queries, articles, analysisRuns) may be absent in old
// documents and are normalized to empty collections.
func DecodeProject(data []byte) (*Project, error) {
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse project document: %w", err)
	}
	if p.SchemaVersion > CurrentSchemaVersion {
		return nil, fmt.Errorf("%w: document version %d, supported %d",
			ErrSchemaTooNew, p.SchemaVersion, CurrentSchemaVersion)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("project document missing id")
	}
	p.SchemaVersion = CurrentSchemaVersion
	if p.Queries == nil {
		p.Queries = []string{}
	}
	if p.Articles == nil {
		p.Articles = []Article{}
	}
	if p.AnalysisRuns == nil {
		p.AnalysisRuns = []AnalysisRun{}
	}
	return &p, nil
}

// FindArticles returns the project's articles matching the given ids,
// preserving project order.
func (p *Project) FindArticles(ids []string) []Article {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Article
	for _, a := range p.Articles {
		if want[a.ID] {
			out = append(out, a)
		}
	}
	return out
}

// MarkAnalyzed overwrites the analysis fields of every listed article.
// These are the only embedded fields ever rewritten in place.
func (p *Project) MarkAnalyzed(ids []string, result json.RawMessage) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for i := range p.Articles {
		if want[p.Articles[i].ID] {
			p.Articles[i].AnalysisStatus = AnalysisComplete
			p.Articles[i].AnalysisResult = result
		}
	}
}

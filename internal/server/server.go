// Package server exposes the project lifecycle over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gin-gonic/gin"

	"pressdesk/internal/cache"
	"pressdesk/internal/domain"
	"pressdesk/internal/sheets"
	"pressdesk/internal/source/eventregistry"
)

// ProjectService is the synchronizer surface the handlers need.
type ProjectService interface {
	Initialize(ctx context.Context) ([]domain.Project, error)
	Create(ctx context.Context, project *domain.Project) error
	Save(ctx context.Context, project *domain.Project) error
	Get(ctx context.Context, id string) (*domain.Project, error)
	Archive(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) (*domain.Project, error)
}

// SheetManager covers the spreadsheet operations handlers trigger.
type SheetManager interface {
	CreateProjectSheet(ctx context.Context, projectName string) (string, string, error)
	AppendArticles(ctx context.Context, spreadsheetID string, articles []domain.Article) error
	WriteAnalysis(ctx context.Context, spreadsheetID string, rows [][]any) error
	SyncArticles(ctx context.Context, project *domain.Project) error
	ReadSources(ctx context.Context) ([]sheets.SourceEntry, error)
}

// ArticleSource searches the news API.
type ArticleSource interface {
	Search(ctx context.Context, params eventregistry.SearchParams) ([]domain.Article, error)
	FetchArticles(ctx context.Context, queries []string, maxArticles int) ([]domain.Article, error)
}

// WorkflowRunner executes the analysis flow.
type WorkflowRunner interface {
	Run(ctx context.Context, payload any) (json.RawMessage, error)
}

// ProjectCache is the snapshot store handlers refresh after writes.
type ProjectCache interface {
	SyncAll(ctx context.Context)
	SyncProjects(ctx context.Context)
	SyncStatus() cache.Status
}

type Server struct {
	projects ProjectService
	cache    ProjectCache
	sheets   SheetManager
	source   ArticleSource
	workflow WorkflowRunner
	logger   *slog.Logger
}

func New(projects ProjectService, projectCache ProjectCache, sheetManager SheetManager, source ArticleSource, workflow WorkflowRunner, logger *slog.Logger) *Server {
	return &Server{
		projects: projects,
		cache:    projectCache,
		sheets:   sheetManager,
		source:   source,
		workflow: workflow,
		logger:   logger.With("component", "server"),
	}
}

// Router wires every route under /api.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		api.GET("/projects", s.listProjects())
		api.POST("/projects", s.createProject())
		api.GET("/projects/:slug", s.getProject())
		api.POST("/projects/:slug/articles", s.addArticle())
		api.POST("/projects/:slug/fetch-articles", s.fetchArticles())
		api.POST("/projects/:slug/run-analysis", s.runAnalysis())
		api.POST("/projects/:slug/archive", s.archiveProject())
		api.POST("/archive/:slug/restore", s.restoreProject())

		api.POST("/sync", s.manualSync())
		api.GET("/sync/status", s.syncStatus())

		api.GET("/sources", s.listSources())
		api.POST("/articles/search", s.searchArticles())
		api.POST("/articles/write-to-sheet", s.writeArticlesToSheet())
	}

	return r
}

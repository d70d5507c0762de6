package server

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"pressdesk/internal/domain"
	"pressdesk/internal/sheets"
	"pressdesk/internal/source/eventregistry"
)

func (s *Server) listProjects() gin.HandlerFunc {
	return func(c *gin.Context) {
		projects, err := s.projects.Initialize(c.Request.Context())
		if err != nil {
			s.logger.Error("list projects failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to list projects"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"projects": projects})
	}
}

type createProjectRequest struct {
	Name    string   `json:"name"`
	Queries []string `json:"queries"`
}

func (s *Server) createProject() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Project name required"})
			return
		}

		ctx := c.Request.Context()
		project := domain.NewProject(req.Name, req.Queries)

		copyTitle := req.Name + " — " + project.CreatedAt.Format(time.RFC3339)
		sheetID, sheetURL, err := s.sheets.CreateProjectSheet(ctx, copyTitle)
		if err != nil {
			s.logger.Error("create project sheet failed", "name", req.Name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to create project sheet"})
			return
		}
		project.SheetID = sheetID
		if sheetURL != "" {
			project.SheetURL = &sheetURL
		}

		if err := s.projects.Create(ctx, project); err != nil {
			s.logger.Error("save new project failed", "project", project.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to save project"})
			return
		}

		s.cache.SyncProjects(ctx)
		c.JSON(http.StatusCreated, gin.H{"project": project})
	}
}

func (s *Server) getProject() gin.HandlerFunc {
	return func(c *gin.Context) {
		project, err := s.projects.Get(c.Request.Context(), c.Param("slug"))
		if err != nil {
			s.logger.Error("get project failed", "project", c.Param("slug"), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load project"})
			return
		}
		if project == nil {
			c.JSON(http.StatusNotFound, gin.H{"message": "Project not found"})
			return
		}

		// Enrich with the current sheet state; a sheet read failure
		// still serves the stored document.
		if err := s.sheets.SyncArticles(c.Request.Context(), project); err != nil {
			s.logger.Warn("syncing sheet articles failed", "project", project.ID, "error", err)
		}

		c.JSON(http.StatusOK, gin.H{"project": project})
	}
}

type addArticleRequest struct {
	Title   string  `json:"title"`
	URL     *string `json:"url"`
	Source  *string `json:"source"`
	Content *string `json:"content"`
}

func (s *Server) addArticle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addArticleRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "title required"})
			return
		}

		ctx := c.Request.Context()
		project, err := s.projects.Get(ctx, c.Param("slug"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load project"})
			return
		}
		if project == nil {
			c.JSON(http.StatusNotFound, gin.H{"message": "Project not found"})
			return
		}

		article := domain.NewArticle(req.Title, req.URL, req.Source, req.Content)
		project.Articles = append(project.Articles, article)

		if err := s.projects.Save(ctx, project); err != nil {
			s.logger.Error("save article failed", "project", project.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to save article"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"article": article})
	}
}

type fetchArticlesRequest struct {
	MaxArticles int `json:"maxArticles"`
}

func (s *Server) fetchArticles() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req fetchArticlesRequest
		if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
			return
		}

		ctx := c.Request.Context()
		project, err := s.projects.Get(ctx, c.Param("slug"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load project"})
			return
		}
		if project == nil {
			c.JSON(http.StatusNotFound, gin.H{"message": "Project not found"})
			return
		}
		if len(project.Queries) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Project has no stored queries"})
			return
		}

		articles, err := s.source.FetchArticles(ctx, project.Queries, req.MaxArticles)
		if err != nil {
			s.logger.Error("fetching articles failed", "project", project.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to fetch articles"})
			return
		}

		project.Articles = append(project.Articles, articles...)
		if err := s.projects.Save(ctx, project); err != nil {
			s.logger.Error("save fetched articles failed", "project", project.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to save articles"})
			return
		}

		// The fetch is already durable on the project; the sheet copy is
		// a convenience view.
		if err := s.sheets.AppendArticles(ctx, project.SheetID, articles); err != nil {
			s.logger.Warn("writing fetched articles to sheet failed", "project", project.ID, "error", err)
		}

		c.JSON(http.StatusOK, gin.H{
			"articles": articles,
			"count":    len(articles),
		})
	}
}

type runAnalysisRequest struct {
	ArticleIDs []string `json:"articleIds"`
	InstanceID string   `json:"workflowInstanceId"`
}

func (s *Server) runAnalysis() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req runAnalysisRequest
		if err := c.ShouldBindJSON(&req); err != nil || len(req.ArticleIDs) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "articleIds required"})
			return
		}

		ctx := c.Request.Context()
		project, err := s.projects.Get(ctx, c.Param("slug"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load project"})
			return
		}
		if project == nil {
			c.JSON(http.StatusNotFound, gin.H{"message": "Project not found"})
			return
		}

		selected := project.FindArticles(req.ArticleIDs)
		if len(selected) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "No matching articles found"})
			return
		}

		payload := map[string]any{"inputs": gin.H{"articles": analysisInputs(selected)}}
		if req.InstanceID != "" {
			payload["workflow_instance_id"] = req.InstanceID
		}

		result, err := s.workflow.Run(ctx, payload)
		if err != nil {
			s.logger.Error("workflow run failed", "project", project.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "analysis workflow failed"})
			return
		}

		selectedIDs := make([]string, 0, len(selected))
		for _, a := range selected {
			selectedIDs = append(selectedIDs, a.ID)
		}
		run := domain.NewAnalysisRun(selectedIDs, domain.RunComplete, result)
		project.AnalysisRuns = append(project.AnalysisRuns, run)
		project.MarkAnalyzed(selectedIDs, result)

		if err := s.projects.Save(ctx, project); err != nil {
			s.logger.Error("save analysis run failed", "project", project.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to save analysis run"})
			return
		}

		// The run is already durable; a sheet summary failure only
		// costs the human-readable table.
		if err := s.sheets.WriteAnalysis(ctx, project.SheetID, analysisSummaryRows(selected, result)); err != nil {
			s.logger.Warn("writing analysis summary to sheet failed", "project", project.ID, "error", err)
		}

		c.JSON(http.StatusOK, gin.H{"run": run})
	}
}

func (s *Server) archiveProject() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		err := s.projects.Archive(ctx, c.Param("slug"))
		if errors.Is(err, domain.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Project not found"})
			return
		}
		if err != nil {
			s.logger.Error("archive failed", "project", c.Param("slug"), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to archive project"})
			return
		}

		s.cache.SyncAll(ctx)
		c.JSON(http.StatusOK, gin.H{"message": "Project archived successfully"})
	}
}

func (s *Server) restoreProject() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		project, err := s.projects.Restore(ctx, c.Param("slug"))
		if errors.Is(err, domain.ErrArchivedProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Archived project not found"})
			return
		}
		if err != nil {
			s.logger.Error("restore failed", "project", c.Param("slug"), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to restore project"})
			return
		}

		s.cache.SyncAll(ctx)
		c.JSON(http.StatusOK, gin.H{"message": "Project restored successfully", "project": project})
	}
}

func (s *Server) manualSync() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.cache.SyncAll(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"message":    "Sync completed successfully",
			"syncStatus": s.cache.SyncStatus(),
		})
	}
}

func (s *Server) syncStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"syncStatus": s.cache.SyncStatus()})
	}
}

func (s *Server) listSources() gin.HandlerFunc {
	return func(c *gin.Context) {
		sources, err := s.sheets.ReadSources(c.Request.Context())
		if err != nil {
			s.logger.Error("read sources failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to fetch sources"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"sources": sources,
			"filters": sourceFilters(sources),
		})
	}
}

type searchArticlesRequest struct {
	SearchTerms  []string `json:"searchTerms"`
	Sources      []string `json:"sources"`
	StartDate    string   `json:"startDate"`
	EndDate      string   `json:"endDate"`
	BooleanQuery string   `json:"booleanQuery"`
	MaxArticles  int      `json:"maxArticles"`
}

func (s *Server) searchArticles() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req searchArticlesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
			return
		}
		if req.StartDate == "" || req.EndDate == "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Start date and end date are required"})
			return
		}
		if len(req.SearchTerms) == 0 && req.BooleanQuery == "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "At least one search term is required"})
			return
		}

		articles, err := s.source.Search(c.Request.Context(), eventregistry.SearchParams{
			SearchTerms:  req.SearchTerms,
			BooleanQuery: req.BooleanQuery,
			SourceURIs:   req.Sources,
			DateStart:    req.StartDate,
			DateEnd:      req.EndDate,
			MaxArticles:  req.MaxArticles,
		})
		if err != nil {
			s.logger.Error("article search failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to fetch articles"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"articles": articles,
			"count":    len(articles),
		})
	}
}

type writeToSheetRequest struct {
	ProjectID string           `json:"projectId"`
	Articles  []domain.Article `json:"articles"`
}

func (s *Server) writeArticlesToSheet() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req writeToSheetRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.ProjectID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Project ID is required"})
			return
		}
		if len(req.Articles) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "No articles to write"})
			return
		}

		ctx := c.Request.Context()
		project, err := s.projects.Get(ctx, req.ProjectID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load project"})
			return
		}
		if project == nil {
			c.JSON(http.StatusNotFound, gin.H{"message": "Project not found"})
			return
		}

		if err := s.sheets.AppendArticles(ctx, project.SheetID, req.Articles); err != nil {
			s.logger.Error("write articles to sheet failed", "project", project.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to write articles to sheet"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Articles written to project sheet",
			"count":   len(req.Articles),
		})
	}
}

func analysisInputs(articles []domain.Article) []gin.H {
	inputs := make([]gin.H, 0, len(articles))
	for _, a := range articles {
		inputs = append(inputs, gin.H{
			"id":      a.ID,
			"title":   a.Title,
			"url":     a.URL,
			"source":  a.Source,
			"content": a.Content,
		})
	}
	return inputs
}

// analysisSummaryRows builds the compact table written next to the
// articles, previewing at most 300 chars of the raw result per row.
func analysisSummaryRows(articles []domain.Article, result []byte) [][]any {
	preview := string(result)
	if len(preview) > 300 {
		preview = preview[:300]
	}

	rows := [][]any{{"articleId", "title", "url", "analysis_preview"}}
	for _, a := range articles {
		url := ""
		if a.URL != nil {
			url = *a.URL
		}
		rows = append(rows, []any{a.ID, a.Title, url, preview})
	}
	return rows
}

func sourceFilters(sources []sheets.SourceEntry) gin.H {
	regions := map[string]struct{}{}
	countries := map[string]struct{}{}
	languages := map[string]struct{}{}
	for _, src := range sources {
		if src.Region != "" {
			regions[src.Region] = struct{}{}
		}
		if src.Country != "" {
			countries[src.Country] = struct{}{}
		}
		if src.Language != "" {
			languages[src.Language] = struct{}{}
		}
	}
	return gin.H{
		"regions":   sortedKeys(regions),
		"countries": sortedKeys(countries),
		"languages": sortedKeys(languages),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

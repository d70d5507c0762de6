// Package remote stores project documents and their paired
// spreadsheets in Google Drive, spread over four fixed folders: active
// sheets, active data, archive sheets and archive data. Drive is the
// source of truth; the local store only mirrors it.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pressdesk/internal/config"
	"pressdesk/internal/domain"
	"pressdesk/internal/driveapi"
)

const markerSuffix = ".archiving.json"

type Store struct {
	client  driveapi.Client
	folders config.FolderConfig
	logger  *slog.Logger
}

func NewStore(client driveapi.Client, folders config.FolderConfig, logger *slog.Logger) *Store {
	return &Store{
		client:  client,
		folders: folders,
		logger:  logger.With("store", "drive"),
	}
}

func dataFileName(id string) string {
	return id + ".json"
}

func archivedSheetName(projectName string) string {
	return projectName + " — Archived"
}

// sheetIsActive reports whether the spreadsheet exists, is not
// trashed, and still lives in the active sheets folder. Lookup
// failures count as inactive: a sheet we cannot see is a sheet the
// project cannot use.
func (s *Store) sheetIsActive(ctx context.Context, sheetID string) bool {
	f, err := s.client.Get(ctx, sheetID)
	if err != nil {
		return false
	}
	return !f.Trashed && f.InFolder(s.folders.Sheets)
}

// ListActive returns every project whose document sits in the active
// data folder and whose spreadsheet is verifiably live. Documents with
// a missing, trashed or relocated sheet are silently excluded; they
// are orphans or mid-archive, not errors. Malformed documents are
// skipped with a warning.
func (s *Store) ListActive(ctx context.Context) ([]domain.Project, error) {
	files, err := s.client.List(ctx, s.folders.Data, "")
	if err != nil {
		return nil, fmt.Errorf("list active data folder: %w", err)
	}

	var projects []domain.Project
	for _, f := range files {
		if !isProjectFile(f.Name) {
			continue
		}
		p, err := s.download(ctx, f.ID)
		if err != nil {
			s.logger.Warn("skipping unreadable project file", "file", f.Name, "error", err)
			continue
		}
		if p.SheetID != "" && !s.sheetIsActive(ctx, p.SheetID) {
			s.logger.Debug("excluding project without live sheet", "project", p.ID, "sheet", p.SheetID)
			continue
		}
		projects = append(projects, *p)
	}

	s.logger.Debug("loaded active projects", "count", len(projects))
	return projects, nil
}

// GetActive fetches a single active project by id, or nil when absent.
// The same sheet-liveness check as ListActive applies, so a get never
// returns a project a listing would exclude as orphaned.
func (s *Store) GetActive(ctx context.Context, id string) (*domain.Project, error) {
	files, err := s.client.List(ctx, s.folders.Data, dataFileName(id))
	if err != nil {
		return nil, fmt.Errorf("find project %s: %w", id, err)
	}
	if len(files) == 0 {
		return nil, nil
	}
	p, err := s.download(ctx, files[0].ID)
	if err != nil {
		return nil, err
	}
	if p.SheetID != "" && !s.sheetIsActive(ctx, p.SheetID) {
		return nil, nil
	}
	return p, nil
}

// SaveActive upserts the project document in the active data folder.
// It never touches the spreadsheet.
func (s *Store) SaveActive(ctx context.Context, project *domain.Project) error {
	data, err := project.Encode()
	if err != nil {
		return fmt.Errorf("encode project %s: %w", project.ID, err)
	}

	name := dataFileName(project.ID)
	files, err := s.client.List(ctx, s.folders.Data, name)
	if err != nil {
		return fmt.Errorf("find project %s: %w", project.ID, err)
	}

	if len(files) > 0 {
		if err := s.client.Update(ctx, files[0].ID, data); err != nil {
			return fmt.Errorf("update project %s: %w", project.ID, err)
		}
		return nil
	}
	if _, err := s.client.Create(ctx, name, s.folders.Data, data); err != nil {
		return fmt.Errorf("create project %s: %w", project.ID, err)
	}
	return nil
}

// DeleteActive removes the project document from the active data
// folder; missing documents are a no-op.
func (s *Store) DeleteActive(ctx context.Context, id string) error {
	files, err := s.client.List(ctx, s.folders.Data, dataFileName(id))
	if err != nil {
		return fmt.Errorf("find project %s: %w", id, err)
	}
	if len(files) == 0 {
		return nil
	}
	if err := s.client.Delete(ctx, files[0].ID); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	return nil
}

// ListArchived returns every project document in the archive data
// folder, stamped with an archivedAt derived from the file's modified
// (or created) time. The archive sheets folder is not cross-checked.
func (s *Store) ListArchived(ctx context.Context) ([]domain.Project, error) {
	files, err := s.client.List(ctx, s.folders.ArchiveData, "")
	if err != nil {
		return nil, fmt.Errorf("list archive data folder: %w", err)
	}

	var projects []domain.Project
	for _, f := range files {
		if !isProjectFile(f.Name) {
			continue
		}
		p, err := s.download(ctx, f.ID)
		if err != nil {
			s.logger.Warn("skipping unreadable archived project file", "file", f.Name, "error", err)
			continue
		}
		archivedAt := f.ModifiedTime
		if archivedAt.IsZero() {
			archivedAt = f.CreatedTime
		}
		if archivedAt.IsZero() {
			archivedAt = time.Now().UTC()
		}
		p.ArchivedAt = &archivedAt
		projects = append(projects, *p)
	}

	s.logger.Debug("loaded archived projects", "count", len(projects))
	return projects, nil
}

func (s *Store) download(ctx context.Context, fileID string) (*domain.Project, error) {
	data, err := s.client.Download(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return domain.DecodeProject(data)
}

// isProjectFile filters data-folder listings down to project
// documents, excluding in-progress archive markers.
func isProjectFile(name string) bool {
	return strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, markerSuffix)
}

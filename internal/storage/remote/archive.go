package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pressdesk/internal/domain"
)

// An archive moves two independent Drive resources with no
// transaction around them. A marker document in the active data
// folder records how far the move got, so an interrupted archive can
// be rolled forward or back at the next startup instead of leaving a
// silent half-state.
type archiveMarker struct {
	ProjectID string    `json:"projectId"`
	Name      string    `json:"name"`
	SheetID   string    `json:"sheetId,omitempty"`
	Stage     string    `json:"stage"`
	StartedAt time.Time `json:"startedAt"`
}

const (
	stageStarted         = "started"
	stageCopiedData      = "copied_data"
	stageDeletedOriginal = "deleted_original"
	stageCopiedSheet     = "copied_sheet"
)

func markerName(id string) string {
	return id + markerSuffix
}

// Archive moves the project document and its spreadsheet into the
// archive folders: copy, verify the copy landed, then delete the
// original, JSON first, sheet second. A failed verification aborts
// with the pre-archive state intact. A failure after the JSON has
// moved leaves the marker behind for ResumeArchives to finish the job.
func (s *Store) Archive(ctx context.Context, project *domain.Project) error {
	s.logger.Info("archiving project", "project", project.ID)

	name := dataFileName(project.ID)
	files, err := s.client.List(ctx, s.folders.Data, name)
	if err != nil {
		return fmt.Errorf("find project %s: %w", project.ID, err)
	}
	if len(files) == 0 {
		s.logger.Warn("no data file found to archive", "project", project.ID)
	}

	marker := archiveMarker{
		ProjectID: project.ID,
		Name:      project.Name,
		SheetID:   project.SheetID,
		Stage:     stageStarted,
		StartedAt: time.Now().UTC(),
	}
	markerID, err := s.writeMarker(ctx, &marker)
	if err != nil {
		return fmt.Errorf("write archive marker for %s: %w", project.ID, err)
	}

	if len(files) > 0 {
		original := files[0]

		copied, err := s.client.Copy(ctx, original.ID, name, s.folders.ArchiveData)
		if err != nil {
			s.deleteQuiet(ctx, markerID)
			return fmt.Errorf("copy project %s to archive: %w", project.ID, err)
		}

		verify, err := s.client.List(ctx, s.folders.ArchiveData, name)
		if err != nil || len(verify) == 0 {
			// The copy cannot be confirmed; keep the original and undo.
			s.deleteQuiet(ctx, copied.ID)
			s.deleteQuiet(ctx, markerID)
			if err != nil {
				return fmt.Errorf("verify archive copy of %s: %w", project.ID, err)
			}
			return fmt.Errorf("verify archive copy of %s: copy not found in archive folder", project.ID)
		}

		marker.Stage = stageCopiedData
		s.updateMarker(ctx, markerID, &marker)

		if err := s.client.Delete(ctx, original.ID); err != nil {
			return fmt.Errorf("delete original project file %s: %w", project.ID, err)
		}

		marker.Stage = stageDeletedOriginal
		s.updateMarker(ctx, markerID, &marker)
	}

	if project.SheetID != "" {
		if err := s.moveSheetToArchive(ctx, project.SheetID, project.Name); err != nil {
			// The JSON already moved; the marker stays so the next
			// startup can finish the sheet side.
			return fmt.Errorf("archive sheet for %s: %w", project.ID, err)
		}
		marker.Stage = stageCopiedSheet
		s.updateMarker(ctx, markerID, &marker)
	}

	if err := s.client.Delete(ctx, markerID); err != nil {
		s.logger.Warn("failed to remove archive marker", "project", project.ID, "error", err)
	}

	s.logger.Info("archived project", "project", project.ID)
	return nil
}

// moveSheetToArchive copies a spreadsheet into the archive sheets
// folder under the archived name, verifies the copy, then deletes the
// original. An archive copy that already exists (from an interrupted
// earlier attempt) is reused rather than duplicated.
func (s *Store) moveSheetToArchive(ctx context.Context, sheetID, projectName string) error {
	archName := archivedSheetName(projectName)

	existing, err := s.client.List(ctx, s.folders.ArchiveSheets, archName)
	if err != nil {
		return fmt.Errorf("check archive sheets folder: %w", err)
	}
	if len(existing) == 0 {
		if _, err := s.client.Copy(ctx, sheetID, archName, s.folders.ArchiveSheets); err != nil {
			return fmt.Errorf("copy sheet %s: %w", sheetID, err)
		}
		verify, err := s.client.List(ctx, s.folders.ArchiveSheets, archName)
		if err != nil {
			return fmt.Errorf("verify sheet copy: %w", err)
		}
		if len(verify) == 0 {
			return fmt.Errorf("verify sheet copy: copy not found in archive folder")
		}
	}

	if err := s.client.Delete(ctx, sheetID); err != nil {
		return fmt.Errorf("delete original sheet %s: %w", sheetID, err)
	}
	return nil
}

// Restore moves an archived project back into the active folders. The
// spreadsheet comes back as a fresh copy, so the restored project's
// sheetId differs from the archived one; the project id and name do
// not change. A missing archived document is a hard failure.
func (s *Store) Restore(ctx context.Context, id string) (*domain.Project, error) {
	s.logger.Info("restoring project", "project", id)

	name := dataFileName(id)
	files, err := s.client.List(ctx, s.folders.ArchiveData, name)
	if err != nil {
		return nil, fmt.Errorf("find archived project %s: %w", id, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrArchivedProjectNotFound, id)
	}
	archivedFile := files[0]

	project, err := s.download(ctx, archivedFile.ID)
	if err != nil {
		return nil, fmt.Errorf("read archived project %s: %w", id, err)
	}

	restored, err := s.client.Copy(ctx, archivedFile.ID, name, s.folders.Data)
	if err != nil {
		return nil, fmt.Errorf("copy project %s back to active folder: %w", id, err)
	}

	var archivedSheetID string
	if project.SheetID != "" {
		archName := archivedSheetName(project.Name)
		sheets, err := s.client.List(ctx, s.folders.ArchiveSheets, archName)
		if err != nil {
			return nil, fmt.Errorf("find archived sheet for %s: %w", id, err)
		}
		if len(sheets) > 0 {
			archivedSheetID = sheets[0].ID
			newSheet, err := s.client.Copy(ctx, archivedSheetID, project.Name, s.folders.Sheets)
			if err != nil {
				return nil, fmt.Errorf("copy sheet back for %s: %w", id, err)
			}
			project.SheetID = newSheet.ID
			if newSheet.WebViewLink != "" {
				link := newSheet.WebViewLink
				project.SheetURL = &link
			}
		}
	}

	project.ArchivedAt = nil
	data, err := project.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode restored project %s: %w", id, err)
	}
	if err := s.client.Update(ctx, restored.ID, data); err != nil {
		return nil, fmt.Errorf("rewrite restored project %s: %w", id, err)
	}

	if err := s.client.Delete(ctx, archivedFile.ID); err != nil {
		return nil, fmt.Errorf("delete archived project file %s: %w", id, err)
	}
	if archivedSheetID != "" {
		if err := s.client.Delete(ctx, archivedSheetID); err != nil {
			return nil, fmt.Errorf("delete archived sheet for %s: %w", id, err)
		}
	}

	s.logger.Info("restored project", "project", id, "sheet", project.SheetID)
	return project, nil
}

// CleanupOrphans deletes active project documents whose spreadsheet no
// longer resolves to a live resource in the active sheets folder.
// Safe to re-run; a second pass with no state change deletes nothing.
func (s *Store) CleanupOrphans(ctx context.Context) (int, error) {
	files, err := s.client.List(ctx, s.folders.Data, "")
	if err != nil {
		return 0, fmt.Errorf("list active data folder: %w", err)
	}

	cleaned := 0
	for _, f := range files {
		if !isProjectFile(f.Name) {
			continue
		}
		p, err := s.download(ctx, f.ID)
		if err != nil {
			s.logger.Warn("skipping unreadable project file during cleanup", "file", f.Name, "error", err)
			continue
		}
		if p.SheetID == "" {
			continue
		}
		if s.sheetIsActive(ctx, p.SheetID) {
			continue
		}
		s.logger.Info("removing orphaned project file", "project", p.ID, "sheet", p.SheetID)
		if err := s.client.Delete(ctx, f.ID); err != nil {
			return cleaned, fmt.Errorf("delete orphaned file %s: %w", f.Name, err)
		}
		cleaned++
	}

	s.logger.Debug("orphan cleanup finished", "cleaned", cleaned)
	return cleaned, nil
}

// ResumeArchives finishes or unwinds archives interrupted mid-flight,
// identified by leftover marker documents. An archive whose data copy
// verifiably landed is rolled forward (originals deleted, sheet
// moved); one whose copy never landed is rolled back.
func (s *Store) ResumeArchives(ctx context.Context) (int, error) {
	files, err := s.client.List(ctx, s.folders.Data, "")
	if err != nil {
		return 0, fmt.Errorf("list active data folder: %w", err)
	}

	resumed := 0
	for _, f := range files {
		if !strings.HasSuffix(f.Name, markerSuffix) {
			continue
		}
		data, err := s.client.Download(ctx, f.ID)
		if err != nil {
			s.logger.Warn("unreadable archive marker", "file", f.Name, "error", err)
			continue
		}
		var m archiveMarker
		if err := json.Unmarshal(data, &m); err != nil {
			s.logger.Warn("malformed archive marker, removing", "file", f.Name, "error", err)
			s.deleteQuiet(ctx, f.ID)
			continue
		}

		if err := s.resumeOne(ctx, f.ID, &m); err != nil {
			s.logger.Warn("could not resolve interrupted archive", "project", m.ProjectID, "error", err)
			continue
		}
		resumed++
	}
	return resumed, nil
}

func (s *Store) resumeOne(ctx context.Context, markerID string, m *archiveMarker) error {
	name := dataFileName(m.ProjectID)

	archived, err := s.client.List(ctx, s.folders.ArchiveData, name)
	if err != nil {
		return fmt.Errorf("check archive data folder: %w", err)
	}

	if len(archived) > 0 {
		// Roll forward: the data copy landed, finish what Archive
		// would have done next.
		active, err := s.client.List(ctx, s.folders.Data, name)
		if err != nil {
			return fmt.Errorf("check active data folder: %w", err)
		}
		if len(active) > 0 {
			if err := s.client.Delete(ctx, active[0].ID); err != nil {
				return fmt.Errorf("delete stale original: %w", err)
			}
		}
		if m.SheetID != "" && s.sheetIsActive(ctx, m.SheetID) {
			if err := s.moveSheetToArchive(ctx, m.SheetID, m.Name); err != nil {
				return err
			}
		}
		s.logger.Info("rolled interrupted archive forward", "project", m.ProjectID)
	} else {
		// Roll back: nothing verifiably reached the archive, drop any
		// partial sheet copy and forget the attempt.
		archName := archivedSheetName(m.Name)
		sheets, err := s.client.List(ctx, s.folders.ArchiveSheets, archName)
		if err != nil {
			return fmt.Errorf("check archive sheets folder: %w", err)
		}
		for _, sf := range sheets {
			if err := s.client.Delete(ctx, sf.ID); err != nil {
				return fmt.Errorf("delete partial sheet copy: %w", err)
			}
		}
		s.logger.Info("rolled interrupted archive back", "project", m.ProjectID)
	}

	if err := s.client.Delete(ctx, markerID); err != nil {
		return fmt.Errorf("delete marker: %w", err)
	}
	return nil
}

func (s *Store) writeMarker(ctx context.Context, m *archiveMarker) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return s.client.Create(ctx, markerName(m.ProjectID), s.folders.Data, data)
}

func (s *Store) updateMarker(ctx context.Context, markerID string, m *archiveMarker) {
	data, err := json.Marshal(m)
	if err == nil {
		err = s.client.Update(ctx, markerID, data)
	}
	if err != nil {
		s.logger.Warn("failed to advance archive marker", "project", m.ProjectID, "stage", m.Stage, "error", err)
	}
}

func (s *Store) deleteQuiet(ctx context.Context, fileID string) {
	if err := s.client.Delete(ctx, fileID); err != nil {
		s.logger.Warn("best-effort delete failed", "file", fileID, "error", err)
	}
}

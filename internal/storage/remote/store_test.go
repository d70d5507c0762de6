package remote

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"pressdesk/internal/config"
	"pressdesk/internal/domain"
)

var testFolders = config.FolderConfig{
	Sheets:        "folder-sheets",
	Data:          "folder-data",
	ArchiveSheets: "folder-archive-sheets",
	ArchiveData:   "folder-archive-data",
}

type StoreTestSuite struct {
	suite.Suite
	ctx   context.Context
	drive *fakeDrive
	store *Store
}

func (s *StoreTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.drive = newFakeDrive()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.store = NewStore(s.drive, testFolders, logger)
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

// seedProject places a project document in the active data folder and,
// unless sheetless, a live sheet in the active sheets folder.
func (s *StoreTestSuite) seedProject(name string) *domain.Project {
	p := domain.NewProject(name, nil)
	p.SheetID = s.drive.add(name, testFolders.Sheets, []byte("sheet"))
	data, err := p.Encode()
	s.Require().NoError(err)
	s.drive.add(p.ID+".json", testFolders.Data, data)
	return p
}

func (s *StoreTestSuite) TestListActive() {
	p := s.seedProject("Alpha")

	projects, err := s.store.ListActive(s.ctx)
	s.NoError(err)
	s.Require().Len(projects, 1)
	s.Equal(p.ID, projects[0].ID)
}

func (s *StoreTestSuite) TestListActive_ExcludesTrashedSheet() {
	p := s.seedProject("Trashed Sheet")
	s.drive.trash(p.SheetID)

	projects, err := s.store.ListActive(s.ctx)
	s.NoError(err)
	s.Empty(projects)
}

func (s *StoreTestSuite) TestListActive_ExcludesRelocatedSheet() {
	p := domain.NewProject("Moved Sheet", nil)
	p.SheetID = s.drive.add("Moved Sheet", testFolders.ArchiveSheets, []byte("sheet"))
	data, err := p.Encode()
	s.Require().NoError(err)
	s.drive.add(p.ID+".json", testFolders.Data, data)

	projects, err := s.store.ListActive(s.ctx)
	s.NoError(err)
	s.Empty(projects)
}

func (s *StoreTestSuite) TestListActive_SkipsMalformedDocuments() {
	s.seedProject("Good")
	s.drive.add("broken.json", testFolders.Data, []byte("{not json"))

	projects, err := s.store.ListActive(s.ctx)
	s.NoError(err)
	s.Len(projects, 1)
}

func (s *StoreTestSuite) TestGetActive_MatchesListPolicy() {
	p := s.seedProject("Orphan Check")
	s.drive.trash(p.SheetID)

	// A get must not return a project a listing would exclude.
	got, err := s.store.GetActive(s.ctx, p.ID)
	s.NoError(err)
	s.Nil(got)
}

func (s *StoreTestSuite) TestGetActive_Missing() {
	got, err := s.store.GetActive(s.ctx, "nope-abc123")
	s.NoError(err)
	s.Nil(got)
}

func (s *StoreTestSuite) TestSaveActive_Upserts() {
	p := s.seedProject("Upsert")
	p.Queries = append(p.Queries, "new query")
	s.NoError(s.store.SaveActive(s.ctx, p))

	// Still exactly one document plus the sheet.
	s.Equal(1, s.drive.countIn(testFolders.Data))

	got, err := s.store.GetActive(s.ctx, p.ID)
	s.NoError(err)
	s.Require().NotNil(got)
	s.Equal([]string{"new query"}, got.Queries)
}

func (s *StoreTestSuite) TestSaveActive_CreatesWhenAbsent() {
	p := domain.NewProject("Fresh", nil)
	s.NoError(s.store.SaveActive(s.ctx, p))
	s.Equal(1, s.drive.countIn(testFolders.Data))
}

func (s *StoreTestSuite) TestDeleteActive() {
	p := s.seedProject("Doomed")
	s.NoError(s.store.DeleteActive(s.ctx, p.ID))
	s.Equal(0, s.drive.countIn(testFolders.Data))

	// Missing document is a no-op, not an error.
	s.NoError(s.store.DeleteActive(s.ctx, p.ID))
}

func (s *StoreTestSuite) TestArchive_MovesDocumentAndSheet() {
	p := s.seedProject("Climate Watch")

	s.NoError(s.store.Archive(s.ctx, p))

	// Disjointness: gone from active, present in archive.
	active, err := s.store.ListActive(s.ctx)
	s.NoError(err)
	s.Empty(active)

	archived, err := s.store.ListArchived(s.ctx)
	s.NoError(err)
	s.Require().Len(archived, 1)
	s.Equal(p.ID, archived[0].ID)
	s.Require().NotNil(archived[0].ArchivedAt)
	s.WithinDuration(time.Now(), *archived[0].ArchivedAt, time.Minute)

	// Sheet moved under the archived name; marker cleaned up.
	s.NotNil(s.drive.findIn(testFolders.ArchiveSheets, "Climate Watch — Archived"))
	s.Nil(s.drive.findIn(testFolders.Data, markerName(p.ID)))
	s.Equal(0, s.drive.countIn(testFolders.Sheets))
}

func (s *StoreTestSuite) TestArchive_VerifyFailureKeepsOriginal() {
	p := s.seedProject("Verify Fail")

	s.drive.listErr = func(folderID, name string) error {
		if folderID == testFolders.ArchiveData && name != "" {
			return errors.New("drive unavailable")
		}
		return nil
	}

	err := s.store.Archive(s.ctx, p)
	s.Error(err)
	s.drive.listErr = nil

	// The original must still be retrievable and the archive empty.
	got, err := s.store.GetActive(s.ctx, p.ID)
	s.NoError(err)
	s.Require().NotNil(got)
	s.Equal(p.ID, got.ID)
	s.Nil(s.drive.findIn(testFolders.ArchiveData, p.ID+".json"))
	s.Nil(s.drive.findIn(testFolders.Data, markerName(p.ID)))
}

func (s *StoreTestSuite) TestRestore_RotatesSheetID() {
	p := s.seedProject("Restore Me")
	originalSheet := p.SheetID
	s.Require().NoError(s.store.Archive(s.ctx, p))

	restored, err := s.store.Restore(s.ctx, p.ID)
	s.Require().NoError(err)

	s.Equal(p.ID, restored.ID)
	s.Equal(p.Name, restored.Name)
	s.NotEqual(originalSheet, restored.SheetID)
	s.Nil(restored.ArchivedAt)

	// Active again, archive emptied.
	active, err := s.store.ListActive(s.ctx)
	s.NoError(err)
	s.Require().Len(active, 1)
	s.Equal(restored.SheetID, active[0].SheetID)
	s.Equal(0, s.drive.countIn(testFolders.ArchiveData))
	s.Equal(0, s.drive.countIn(testFolders.ArchiveSheets))
}

func (s *StoreTestSuite) TestRestore_NotFound() {
	_, err := s.store.Restore(s.ctx, "never-existed-abc123")
	s.ErrorIs(err, domain.ErrArchivedProjectNotFound)
}

func (s *StoreTestSuite) TestCleanupOrphans_Idempotent() {
	s.seedProject("Healthy")
	orphan1 := s.seedProject("Orphan One")
	orphan2 := s.seedProject("Orphan Two")
	s.drive.trash(orphan1.SheetID)
	s.drive.trash(orphan2.SheetID)

	cleaned, err := s.store.CleanupOrphans(s.ctx)
	s.NoError(err)
	s.Equal(2, cleaned)

	cleaned, err = s.store.CleanupOrphans(s.ctx)
	s.NoError(err)
	s.Equal(0, cleaned)

	projects, err := s.store.ListActive(s.ctx)
	s.NoError(err)
	s.Len(projects, 1)
}

func (s *StoreTestSuite) TestResumeArchives_RollsForward() {
	p := s.seedProject("Interrupted")
	data, err := p.Encode()
	s.Require().NoError(err)

	// Crash after the data copy landed: archive copy exists, original
	// and sheet still in place, marker at copied_data.
	s.drive.add(p.ID+".json", testFolders.ArchiveData, data)
	marker, err := json.Marshal(archiveMarker{
		ProjectID: p.ID,
		Name:      p.Name,
		SheetID:   p.SheetID,
		Stage:     stageCopiedData,
		StartedAt: time.Now().UTC(),
	})
	s.Require().NoError(err)
	s.drive.add(markerName(p.ID), testFolders.Data, marker)

	resumed, err := s.store.ResumeArchives(s.ctx)
	s.NoError(err)
	s.Equal(1, resumed)

	s.Nil(s.drive.findIn(testFolders.Data, p.ID+".json"))
	s.Nil(s.drive.findIn(testFolders.Data, markerName(p.ID)))
	s.NotNil(s.drive.findIn(testFolders.ArchiveSheets, "Interrupted — Archived"))
	s.Equal(0, s.drive.countIn(testFolders.Sheets))
}

func (s *StoreTestSuite) TestResumeArchives_RollsBack() {
	p := s.seedProject("Aborted")

	// Crash before the data copy was verified: no archive data copy,
	// but a stray sheet copy made it across.
	s.drive.add("Aborted — Archived", testFolders.ArchiveSheets, []byte("sheet"))
	marker, err := json.Marshal(archiveMarker{
		ProjectID: p.ID,
		Name:      p.Name,
		SheetID:   p.SheetID,
		Stage:     stageStarted,
		StartedAt: time.Now().UTC(),
	})
	s.Require().NoError(err)
	s.drive.add(markerName(p.ID), testFolders.Data, marker)

	resumed, err := s.store.ResumeArchives(s.ctx)
	s.NoError(err)
	s.Equal(1, resumed)

	// Pre-archive state restored: project active, stray copy gone.
	got, err := s.store.GetActive(s.ctx, p.ID)
	s.NoError(err)
	s.NotNil(got)
	s.Nil(s.drive.findIn(testFolders.ArchiveSheets, "Aborted — Archived"))
	s.Nil(s.drive.findIn(testFolders.Data, markerName(p.ID)))
}

func (s *StoreTestSuite) TestListActive_IgnoresMarkers() {
	p := s.seedProject("With Marker")
	marker, err := json.Marshal(archiveMarker{ProjectID: "other", Name: "Other", Stage: stageStarted})
	s.Require().NoError(err)
	s.drive.add(markerName("other"), testFolders.Data, marker)

	projects, err := s.store.ListActive(s.ctx)
	s.NoError(err)
	s.Require().Len(projects, 1)
	s.Equal(p.ID, projects[0].ID)
}

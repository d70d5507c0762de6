package local

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressdesk/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewStore(t.TempDir(), logger)
}

func TestStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)

	p := domain.NewProject("Local Round Trip", []string{"q"})
	require.NoError(t, store.Save(p))

	got, err := store.Get(p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.Queries, got.Queries)
}

func TestStore_GetMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Get("nope-abc123")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_List(t *testing.T) {
	store := newTestStore(t)

	p1 := domain.NewProject("One", nil)
	p2 := domain.NewProject("Two", nil)
	require.NoError(t, store.Save(p1))
	require.NoError(t, store.Save(p2))

	projects, err := store.List()
	require.NoError(t, err)
	assert.Len(t, projects, 2)
}

func TestStore_ListSkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	store := NewStore(dir, logger)

	p := domain.NewProject("Good", nil)
	require.NoError(t, store.Save(p))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644))

	projects, err := store.List()
	require.NoError(t, err)
	assert.Len(t, projects, 1)
	assert.Equal(t, p.ID, projects[0].ID)
}

func TestStore_ListIgnoresNonJSONFiles(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	store := NewStore(dir, logger)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("notes"), 0o644))

	projects, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)

	p := domain.NewProject("Doomed", nil)
	require.NoError(t, store.Save(p))
	require.NoError(t, store.Delete(p.ID))

	got, err := store.Get(p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	// deleting again is a no-op
	assert.NoError(t, store.Delete(p.ID))
}

func TestStore_CreatesDirOnFirstUse(t *testing.T) {
	base := t.TempDir()
	nested := filepath.Join(base, "data", "projects")
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	store := NewStore(nested, logger)

	p := domain.NewProject("Nested", nil)
	require.NoError(t, store.Save(p))

	_, err := os.Stat(nested)
	assert.NoError(t, err)
}

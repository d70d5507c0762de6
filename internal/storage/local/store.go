// Package local keeps a flat-file mirror of project documents, one
// <id>.json per project. It serves as the fallback when Drive is
// unreachable and as the seed for the startup merge.
package local

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"pressdesk/internal/domain"
)

type Store struct {
	dir    string
	logger *slog.Logger
}

func NewStore(dir string, logger *slog.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logger.With("store", "local"),
	}
}

func (s *Store) ensureDir() error {
	return os.MkdirAll(s.dir, 0o755)
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) Save(project *domain.Project) error {
	if err := s.ensureDir(); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := project.Encode()
	if err != nil {
		return fmt.Errorf("encode project %s: %w", project.ID, err)
	}
	if err := os.WriteFile(s.path(project.ID), data, 0o644); err != nil {
		return fmt.Errorf("write project %s: %w", project.ID, err)
	}
	return nil
}

// Get returns nil with no error when the file does not exist; any
// other read failure propagates.
func (s *Store) Get(id string) (*domain.Project, error) {
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read project %s: %w", id, err)
	}
	return domain.DecodeProject(data)
}

func (s *Store) List() ([]domain.Project, error) {
	if err := s.ensureDir(); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var projects []domain.Project
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		p, err := domain.DecodeProject(data)
		if err != nil {
			s.logger.Warn("skipping malformed project file", "file", e.Name(), "error", err)
			continue
		}
		projects = append(projects, *p)
	}
	return projects, nil
}

// Delete removes the local copy; missing files are a no-op.
func (s *Store) Delete(id string) error {
	err := os.Remove(s.path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	return nil
}

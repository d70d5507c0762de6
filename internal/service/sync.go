// Package service coordinates the remote (Drive) and local (disk)
// project stores. Drive is authoritative; the local store is a mirror
// kept for offline reads and as a write fallback.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"pressdesk/internal/domain"
)

// ConsistencyMode names the fallback behavior of a read operation.
type ConsistencyMode int

const (
	// PreferRemoteFallbackLocal reads from Drive and falls back to the
	// local mirror when Drive is unreachable. Used by Get.
	PreferRemoteFallbackLocal ConsistencyMode = iota
	// RemoteOnly reads from Drive and degrades to an empty result when
	// Drive is unreachable, never serving a possibly stale listing.
	// Used by List and Initialize.
	RemoteOnly
)

// Synchronizer is the single entry point for project persistence. All
// operations on the same project id are serialized through a per-id
// mutex, so an archive cannot interleave with a save for that project.
type Synchronizer struct {
	remote    RemoteStore
	local     LocalStore
	publisher Publisher
	logger    *slog.Logger
	ids       keyedMutex
}

func NewSynchronizer(remote RemoteStore, local LocalStore, publisher Publisher, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		remote:    remote,
		local:     local,
		publisher: publisher,
		logger:    logger.With("component", "synchronizer"),
	}
}

// Create persists a new project and announces it.
func (s *Synchronizer) Create(ctx context.Context, project *domain.Project) error {
	if err := s.save(ctx, project); err != nil {
		return err
	}
	s.publish(ctx, domain.EventCreated, project)
	return nil
}

// Save persists a changed project and announces the update.
func (s *Synchronizer) Save(ctx context.Context, project *domain.Project) error {
	if err := s.save(ctx, project); err != nil {
		return err
	}
	s.publish(ctx, domain.EventUpdated, project)
	return nil
}

// save writes remote-first. On remote success the local mirror is
// refreshed best-effort; on remote failure the project is saved
// locally so the write survives until the next merge uploads it.
func (s *Synchronizer) save(ctx context.Context, project *domain.Project) error {
	unlock := s.ids.lock(project.ID)
	defer unlock()

	if err := s.remote.SaveActive(ctx, project); err != nil {
		s.logger.Warn("remote save failed, keeping project locally", "project", project.ID, "error", err)
		if lerr := s.local.Save(project); lerr != nil {
			return fmt.Errorf("save project %s: remote: %w, local: %v", project.ID, err, lerr)
		}
		return nil
	}

	if err := s.local.Save(project); err != nil {
		s.logger.Warn("local mirror save failed", "project", project.ID, "error", err)
	}
	return nil
}

// Get fetches an active project under PreferRemoteFallbackLocal: Drive
// first, the local mirror when Drive errors or has no such project.
// Returns nil when the project does not exist in either place.
func (s *Synchronizer) Get(ctx context.Context, id string) (*domain.Project, error) {
	unlock := s.ids.lock(id)
	defer unlock()

	p, err := s.remote.GetActive(ctx, id)
	if err != nil {
		s.logger.Warn("remote get failed, falling back to local mirror", "project", id, "error", err)
		return s.local.Get(id)
	}
	if p == nil {
		return s.local.Get(id)
	}
	if err := s.local.Save(p); err != nil {
		s.logger.Warn("local mirror refresh failed", "project", id, "error", err)
	}
	return p, nil
}

// List returns the active projects under RemoteOnly: when Drive is
// unreachable it returns an empty slice rather than a stale local
// listing that may include already-archived projects.
func (s *Synchronizer) List(ctx context.Context) ([]domain.Project, error) {
	projects, err := s.remote.ListActive(ctx)
	if err != nil {
		s.logger.Error("remote list failed, returning empty set", "error", err)
		return []domain.Project{}, nil
	}
	for i := range projects {
		if err := s.local.Save(&projects[i]); err != nil {
			s.logger.Warn("local mirror refresh failed", "project", projects[i].ID, "error", err)
		}
	}
	return projects, nil
}

// ListArchived returns the archived projects straight from Drive.
func (s *Synchronizer) ListArchived(ctx context.Context) ([]domain.Project, error) {
	return s.remote.ListArchived(ctx)
}

// Initialize brings the stores into a consistent state at startup:
// interrupted archives are resumed, orphaned documents removed, and
// projects that only exist locally (saved while Drive was down) are
// uploaded. Returns the merged active set; under RemoteOnly a Drive
// failure yields an empty slice, not an error.
func (s *Synchronizer) Initialize(ctx context.Context) ([]domain.Project, error) {
	if resumed, err := s.remote.ResumeArchives(ctx); err != nil {
		s.logger.Error("resuming interrupted archives failed", "error", err)
		return []domain.Project{}, nil
	} else if resumed > 0 {
		s.logger.Info("resumed interrupted archives", "count", resumed)
	}

	if cleaned, err := s.remote.CleanupOrphans(ctx); err != nil {
		s.logger.Error("orphan cleanup failed", "error", err)
		return []domain.Project{}, nil
	} else if cleaned > 0 {
		s.logger.Info("cleaned up orphaned projects", "count", cleaned)
	}

	projects, err := s.remote.ListActive(ctx)
	if err != nil {
		s.logger.Error("remote list failed during initialize", "error", err)
		return []domain.Project{}, nil
	}

	remoteIDs := make(map[string]struct{}, len(projects))
	for i := range projects {
		remoteIDs[projects[i].ID] = struct{}{}
		if err := s.local.Save(&projects[i]); err != nil {
			s.logger.Warn("local mirror refresh failed", "project", projects[i].ID, "error", err)
		}
	}

	locals, err := s.local.List()
	if err != nil {
		s.logger.Warn("listing local mirror failed, skipping merge", "error", err)
		return projects, nil
	}
	for i := range locals {
		if _, ok := remoteIDs[locals[i].ID]; ok {
			continue
		}
		if err := s.remote.SaveActive(ctx, &locals[i]); err != nil {
			s.logger.Error("uploading local-only project failed", "project", locals[i].ID, "error", err)
			return []domain.Project{}, nil
		}
		s.logger.Info("uploaded local-only project", "project", locals[i].ID)
		projects = append(projects, locals[i])
	}

	return projects, nil
}

// Archive moves the project to the Drive archive and drops the local
// mirror copy. The local delete is best-effort: the archive already
// succeeded, and a stale mirror file is harmless because listings are
// RemoteOnly.
func (s *Synchronizer) Archive(ctx context.Context, id string) error {
	unlock := s.ids.lock(id)
	defer unlock()

	p, err := s.remote.GetActive(ctx, id)
	if err != nil {
		return fmt.Errorf("archive project %s: %w", id, err)
	}
	if p == nil {
		return fmt.Errorf("archive project %s: %w", id, domain.ErrProjectNotFound)
	}

	if err := s.remote.Archive(ctx, p); err != nil {
		return fmt.Errorf("archive project %s: %w", id, err)
	}

	if err := s.local.Delete(id); err != nil {
		s.logger.Warn("removing archived project from local mirror failed", "project", id, "error", err)
	}

	s.publish(ctx, domain.EventArchived, p)
	return nil
}

// Restore brings an archived project back to the active set. Restore
// is remote-only; the mirror picks the project up on the next read.
func (s *Synchronizer) Restore(ctx context.Context, id string) (*domain.Project, error) {
	unlock := s.ids.lock(id)
	defer unlock()

	p, err := s.remote.Restore(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("restore project %s: %w", id, err)
	}
	if err := s.local.Save(p); err != nil {
		s.logger.Warn("local mirror refresh failed", "project", id, "error", err)
	}

	s.publish(ctx, domain.EventRestored, p)
	return p, nil
}

func (s *Synchronizer) publish(ctx context.Context, event domain.Event, project *domain.Project) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event, project); err != nil {
		s.logger.Warn("publishing project event failed", "event", event, "project", project.ID, "error", err)
	}
}

// keyedMutex hands out one mutex per project id. Entries are never
// evicted; the key space is bounded by the number of projects.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(id string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"pressdesk/internal/domain"
)

// RemoteStore is the authoritative project store (Drive).
type RemoteStore interface {
	ListActive(ctx context.Context) ([]domain.Project, error)
	GetActive(ctx context.Context, id string) (*domain.Project, error)
	SaveActive(ctx context.Context, project *domain.Project) error
	DeleteActive(ctx context.Context, id string) error
	ListArchived(ctx context.Context) ([]domain.Project, error)
	Archive(ctx context.Context, project *domain.Project) error
	Restore(ctx context.Context, id string) (*domain.Project, error)
	CleanupOrphans(ctx context.Context) (int, error)
	ResumeArchives(ctx context.Context) (int, error)
}

// LocalStore is the best-effort on-disk mirror.
type LocalStore interface {
	Save(project *domain.Project) error
	Get(id string) (*domain.Project, error)
	List() ([]domain.Project, error)
	Delete(id string) error
}

// Publisher broadcasts project lifecycle events. A nil publisher is
// valid and disables publishing.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event, project *domain.Project) error
	Close() error
}

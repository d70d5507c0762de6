// Package cache keeps an in-process snapshot of the active and
// archived project sets so read endpoints never wait on Drive.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"pressdesk/internal/domain"
)

// ProjectSource supplies the project sets the cache snapshots.
type ProjectSource interface {
	List(ctx context.Context) ([]domain.Project, error)
	ListArchived(ctx context.Context) ([]domain.Project, error)
}

// Status describes the cache's sync state at a point in time.
type Status struct {
	Syncing   bool       `json:"syncing"`
	LastSync  *time.Time `json:"lastSync,omitempty"`
	LastError string     `json:"lastError,omitempty"`
}

// Cache holds the latest known project snapshots. Reads are served
// from memory; refreshes run through a compare-and-swap guard so only
// one sync is in flight at a time, with concurrent callers returning
// immediately instead of queueing duplicate fetches.
type Cache struct {
	source  ProjectSource
	logger  *slog.Logger
	syncing atomic.Bool

	mu        sync.RWMutex
	active    []domain.Project
	archived  []domain.Project
	lastSync  time.Time
	lastError error
	listeners map[int]func()
	nextID    int
}

func New(source ProjectSource, logger *slog.Logger) *Cache {
	return &Cache{
		source:    source,
		logger:    logger.With("component", "cache"),
		listeners: make(map[int]func()),
	}
}

// Projects returns a copy of the cached active set.
func (c *Cache) Projects() []domain.Project {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Project(nil), c.active...)
}

// ArchivedProjects returns a copy of the cached archived set.
func (c *Cache) ArchivedProjects() []domain.Project {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Project(nil), c.archived...)
}

// SyncStatus reports whether a refresh is running and how the last
// one ended.
func (c *Cache) SyncStatus() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := Status{Syncing: c.syncing.Load()}
	if !c.lastSync.IsZero() {
		t := c.lastSync
		st.LastSync = &t
	}
	if c.lastError != nil {
		st.LastError = c.lastError.Error()
	}
	return st
}

// AddListener registers a callback invoked after every completed
// refresh. The returned function unsubscribes it.
func (c *Cache) AddListener(fn func()) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// SyncAll refreshes both snapshots, fetching the active and archived
// sets concurrently. If a refresh is already running the call returns
// immediately; the in-flight sync's results will serve everyone.
func (c *Cache) SyncAll(ctx context.Context) {
	c.refresh(ctx, true, true)
}

// SyncProjects refreshes only the active snapshot.
func (c *Cache) SyncProjects(ctx context.Context) {
	c.refresh(ctx, true, false)
}

// SyncArchivedProjects refreshes only the archived snapshot.
func (c *Cache) SyncArchivedProjects(ctx context.Context) {
	c.refresh(ctx, false, true)
}

func (c *Cache) refresh(ctx context.Context, wantActive, wantArchived bool) {
	if !c.syncing.CompareAndSwap(false, true) {
		c.logger.Debug("sync already in flight, skipping")
		return
	}
	defer c.syncing.Store(false)

	// Listeners hear about both edges of the syncing flag.
	c.notify()

	var (
		wg          sync.WaitGroup
		active      []domain.Project
		archived    []domain.Project
		activeErr   error
		archivedErr error
	)

	if wantActive {
		wg.Add(1)
		go func() {
			defer wg.Done()
			active, activeErr = c.source.List(ctx)
		}()
	}
	if wantArchived {
		wg.Add(1)
		go func() {
			defer wg.Done()
			archived, archivedErr = c.source.ListArchived(ctx)
		}()
	}
	wg.Wait()

	c.mu.Lock()
	// A failed fetch keeps the previous snapshot; stale data beats no
	// data for read endpoints.
	if wantActive {
		if activeErr != nil {
			c.logger.Error("active project sync failed, keeping stale snapshot", "error", activeErr)
		} else {
			c.active = active
		}
	}
	if wantArchived {
		if archivedErr != nil {
			c.logger.Error("archived project sync failed, keeping stale snapshot", "error", archivedErr)
		} else {
			c.archived = archived
		}
	}
	c.lastError = nil
	if activeErr != nil {
		c.lastError = activeErr
	} else if archivedErr != nil {
		c.lastError = archivedErr
	}
	// lastSync records the last fully successful refresh; failures are
	// visible through lastError instead.
	if c.lastError == nil {
		c.lastSync = time.Now().UTC()
	}
	c.mu.Unlock()

	c.notify()
}

func (c *Cache) notify() {
	c.mu.RLock()
	listeners := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}

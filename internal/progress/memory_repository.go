package progress

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository
// or FileRepository.
type InMemoryRepository struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot

	// FailSaves makes Save return an error; used to exercise the
	// degraded-persistence path in tests.
	FailSaves bool
}

// NewInMemoryRepository creates a new in-memory progress repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		snapshots: make(map[string]*Snapshot),
	}
}

// SetFailSaves toggles the failure hook under the repository lock, for
// tests that flip it while a store is persisting concurrently.
func (r *InMemoryRepository) SetFailSaves(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FailSaves = fail
}

// Save persists a snapshot.
func (r *InMemoryRepository) Save(_ context.Context, snap *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailSaves {
		return context.DeadlineExceeded
	}

	cpy := *snap
	cpy.StopOrder = append([]string(nil), snap.StopOrder...)
	cpy.Visited = append([]string(nil), snap.Visited...)
	r.snapshots[snap.RouteID] = &cpy
	return nil
}

// Load retrieves the snapshot for a route.
func (r *InMemoryRepository) Load(_ context.Context, routeID string) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.snapshots[routeID]
	if !ok {
		return nil, ErrProgressNotFound
	}

	cpy := *snap
	cpy.StopOrder = append([]string(nil), snap.StopOrder...)
	cpy.Visited = append([]string(nil), snap.Visited...)
	return &cpy, nil
}

// Delete removes the snapshot for a route.
func (r *InMemoryRepository) Delete(_ context.Context, routeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.snapshots, routeID)
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)

package progress

import (
	"context"
)

// Repository defines storage operations for traversal progress. One
// snapshot is kept per route; starting a new traversal overwrites the
// previous one.
type Repository interface {
	// Save persists a snapshot, replacing any existing one for the route.
	Save(ctx context.Context, snap *Snapshot) error

	// Load retrieves the snapshot for a route.
	// Returns ErrProgressNotFound if none exists.
	Load(ctx context.Context, routeID string) (*Snapshot, error)

	// Delete removes the snapshot for a route. Deleting a missing
	// snapshot is not an error.
	Delete(ctx context.Context, routeID string) error
}

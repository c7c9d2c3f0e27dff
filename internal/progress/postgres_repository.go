package progress

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository. One
// row per route; Save upserts.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL progress repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Save persists a snapshot, replacing any existing one for the route.
func (r *PostgresRepository) Save(ctx context.Context, snap *Snapshot) error {
	query := `
		INSERT INTO route_progress (route_id, history_id, stop_order, visited, started_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (route_id) DO UPDATE SET
			history_id = EXCLUDED.history_id,
			stop_order = EXCLUDED.stop_order,
			visited = EXCLUDED.visited,
			started_at = EXCLUDED.started_at
	`

	_, err := r.pool.Exec(ctx, query,
		snap.RouteID,
		snap.HistoryID,
		snap.StopOrder,
		snap.Visited,
		snap.StartedAt,
	)
	return err
}

// Load retrieves the snapshot for a route.
func (r *PostgresRepository) Load(ctx context.Context, routeID string) (*Snapshot, error) {
	query := `
		SELECT route_id, history_id, stop_order, visited, started_at
		FROM route_progress
		WHERE route_id = $1
	`

	var snap Snapshot
	err := r.pool.QueryRow(ctx, query, routeID).Scan(
		&snap.RouteID,
		&snap.HistoryID,
		&snap.StopOrder,
		&snap.Visited,
		&snap.StartedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProgressNotFound
		}
		return nil, err
	}

	return &snap, nil
}

// Delete removes the snapshot for a route.
func (r *PostgresRepository) Delete(ctx context.Context, routeID string) error {
	query := `DELETE FROM route_progress WHERE route_id = $1`
	_, err := r.pool.Exec(ctx, query, routeID)
	return err
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)

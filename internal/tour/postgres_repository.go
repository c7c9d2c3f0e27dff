package tour

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL catalog repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetRoute retrieves a route with its stops.
func (r *PostgresRepository) GetRoute(ctx context.Context, routeID string) (*Route, error) {
	query := `
		SELECT id, name
		FROM routes
		WHERE id = $1
	`

	var route Route
	err := r.pool.QueryRow(ctx, query, routeID).Scan(&route.ID, &route.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRouteNotFound
		}
		return nil, err
	}

	stops, err := r.ListStops(ctx, routeID)
	if err != nil {
		return nil, err
	}
	route.Stops = stops

	return &route, nil
}

// ListStops retrieves the stops of a route in static order.
func (r *PostgresRepository) ListStops(ctx context.Context, routeID string) ([]Stop, error) {
	query := `
		SELECT
			id, stop_order, name, narration_text,
			lat, lon, trigger_radius_m, est_narration_seconds
		FROM stops
		WHERE route_id = $1
		ORDER BY stop_order ASC
	`

	rows, err := r.pool.Query(ctx, query, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stops []Stop
	for rows.Next() {
		var stop Stop
		err := rows.Scan(
			&stop.ID,
			&stop.Order,
			&stop.Name,
			&stop.NarrationText,
			&stop.Coord.Lat,
			&stop.Coord.Lon,
			&stop.TriggerRadiusM,
			&stop.EstNarrationSeconds,
		)
		if err != nil {
			return nil, err
		}
		if stop.TriggerRadiusM <= 0 {
			stop.TriggerRadiusM = DefaultTriggerRadiusM
		}
		stops = append(stops, stop)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stops, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)

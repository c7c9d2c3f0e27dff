package tour

import (
	"context"
)

// Repository defines storage operations for the route catalog.
type Repository interface {
	// GetRoute retrieves a route with its stops.
	// Returns ErrRouteNotFound if the route does not exist.
	GetRoute(ctx context.Context, routeID string) (*Route, error)

	// ListStops retrieves the stops of a route in static order.
	ListStops(ctx context.Context, routeID string) ([]Stop, error)
}

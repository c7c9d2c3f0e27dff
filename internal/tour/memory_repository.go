package tour

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing and local runs. Production should use
// PostgresRepository.
type InMemoryRepository struct {
	mu     sync.RWMutex
	routes map[string]*Route
}

// NewInMemoryRepository creates a new in-memory catalog repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		routes: make(map[string]*Route),
	}
}

// Put stores a route in the catalog.
func (r *InMemoryRepository) Put(route *Route) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *route
	cpy.Stops = make([]Stop, len(route.Stops))
	copy(cpy.Stops, route.Stops)
	r.routes[route.ID] = &cpy
}

// GetRoute retrieves a route with its stops.
func (r *InMemoryRepository) GetRoute(_ context.Context, routeID string) (*Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	route, ok := r.routes[routeID]
	if !ok {
		return nil, ErrRouteNotFound
	}

	cpy := *route
	cpy.Stops = make([]Stop, len(route.Stops))
	copy(cpy.Stops, route.Stops)
	return &cpy, nil
}

// ListStops retrieves the stops of a route in static order.
func (r *InMemoryRepository) ListStops(ctx context.Context, routeID string) ([]Stop, error) {
	route, err := r.GetRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}
	return route.StopsByOrder(), nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)

// Package tour provides the route and stop catalog for walking tours.
package tour

import (
	"errors"
	"sort"

	"github.com/wanderly/waypointd/internal/geo"
)

// Repository errors.
var (
	ErrRouteNotFound = errors.New("route not found")
)

// Default geometry for stops that do not specify their own.
const (
	DefaultTriggerRadiusM = 25.0
	DefaultWakeRadiusM    = 100.0
)

// Stop is a point of interest on a route. Stops are immutable catalog
// data; visitation state lives in the progress store, never here.
type Stop struct {
	ID                  string
	Order               int
	Name                string
	NarrationText       string
	Coord               geo.Point
	TriggerRadiusM      float64
	EstNarrationSeconds int
}

// Route is an ordered collection of stops.
type Route struct {
	ID    string
	Name  string
	Stops []Stop
}

// StopsByOrder returns the route's stops sorted by their static order.
func (r *Route) StopsByOrder() []Stop {
	stops := make([]Stop, len(r.Stops))
	copy(stops, r.Stops)
	sort.SliceStable(stops, func(i, j int) bool {
		return stops[i].Order < stops[j].Order
	})
	return stops
}

// StopIDs returns the ids of the route's stops in static order.
func (r *Route) StopIDs() []string {
	stops := r.StopsByOrder()
	ids := make([]string, 0, len(stops))
	for _, s := range stops {
		ids = append(ids, s.ID)
	}
	return ids
}

// FindStop returns the stop with the given id, or nil.
func (r *Route) FindStop(stopID string) *Stop {
	for i := range r.Stops {
		if r.Stops[i].ID == stopID {
			return &r.Stops[i]
		}
	}
	return nil
}

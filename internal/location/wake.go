package location

import (
	"github.com/wanderly/waypointd/internal/tour"
)

// DefaultWakeRegionLimit matches the typical platform cap on monitored
// regions.
const DefaultWakeRegionLimit = 20

// WakeWindow computes which stops get a wake region when the route has
// more stops than the platform allows: a fixed-size sliding window over
// the traversal order, filtered to unvisited stops. The window moves
// forward as stops are consumed, so it is recomputed after every
// visitation and every reorder.
type WakeWindow struct {
	limit   int
	radiusM float64
}

// NewWakeWindow creates a window with the given region limit and wake
// radius. Zero values fall back to defaults.
func NewWakeWindow(limit int, radiusM float64) *WakeWindow {
	if limit <= 0 {
		limit = DefaultWakeRegionLimit
	}
	if radiusM <= 0 {
		radiusM = tour.DefaultWakeRadiusM
	}
	return &WakeWindow{limit: limit, radiusM: radiusM}
}

// Regions returns wake regions for the next unvisited stops in traversal
// order, at most limit of them. Stops missing from the route are skipped.
func (w *WakeWindow) Regions(route *tour.Route, order []string, visited func(string) bool) []WakeRegion {
	regions := make([]WakeRegion, 0, w.limit)
	for _, stopID := range order {
		if len(regions) >= w.limit {
			break
		}
		if visited(stopID) {
			continue
		}
		stop := route.FindStop(stopID)
		if stop == nil {
			continue
		}
		regions = append(regions, NewWakeRegion(stop.ID, stop.Coord, w.radiusM))
	}
	return regions
}

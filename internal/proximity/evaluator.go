// Package proximity turns position samples into ordered stop-trigger
// decisions.
package proximity

import (
	"github.com/wanderly/waypointd/internal/geo"
	"github.com/wanderly/waypointd/internal/location"
	"github.com/wanderly/waypointd/internal/tour"
)

// Result is the outcome of evaluating one position sample.
type Result struct {
	// Triggered holds the ids of stops whose trigger radius contains the
	// sample, in traversal order. Traversal order, not distance order,
	// is the tie-break when several radii overlap: narration must follow
	// the route sequence even in dense stop clusters.
	Triggered []string

	// RouteComplete is set when no unvisited stops remain. The sample
	// itself is irrelevant in that case.
	RouteComplete bool
}

// Evaluate scans the unvisited stops in traversal order and reports which
// ones the sample lands inside. Visited stops are never re-evaluated. A
// sample whose accuracy radius exceeds a stop's trigger radius cannot
// confirm arrival at that stop and is suppressed for it, so a coarse fix
// never produces a false trigger.
//
// Evaluate is a pure function of its inputs; it mutates nothing.
func Evaluate(sample location.Sample, route *tour.Route, order []string, visited func(string) bool) Result {
	var result Result

	remaining := 0
	for _, stopID := range order {
		if visited(stopID) {
			continue
		}
		stop := route.FindStop(stopID)
		if stop == nil {
			continue
		}
		remaining++

		radius := stop.TriggerRadiusM
		if radius <= 0 {
			radius = tour.DefaultTriggerRadiusM
		}
		if sample.AccuracyM > radius {
			continue
		}
		if geo.DistanceMeters(sample.Coord, stop.Coord) <= radius {
			result.Triggered = append(result.Triggered, stopID)
		}
	}

	result.RouteComplete = remaining == 0
	return result
}

package scheduler

import (
	"time"

	"github.com/wanderly/waypointd/internal/geo"
	"github.com/wanderly/waypointd/internal/location"
	"github.com/wanderly/waypointd/internal/narration"
	"github.com/wanderly/waypointd/internal/progress"
)

// Snapshot is a point-in-time view of a traversal for observers: the API
// layer, logs, and tests. It is a copy; mutating it has no effect.
type Snapshot struct {
	RouteID   string
	HistoryID string
	State     progress.State
	StartedAt time.Time

	TrackingStatus location.TrackingStatus
	Position       *geo.Point

	StopOrder    []string
	Unvisited    []string
	NextStopID   string
	VisitedCount int
	TotalStops   int

	// PersistenceDegraded means progress writes are failing and the
	// traversal is running from memory only.
	PersistenceDegraded bool

	Narration NarrationSnapshot
}

// NarrationSnapshot is the queue portion of a traversal snapshot.
type NarrationSnapshot struct {
	State         narration.QueueState
	CurrentStopID string
	PendingCount  int
	LastError     string
}

// Snapshot returns the current traversal view. Safe to call from any
// goroutine.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	pub := s.pub
	var pos *geo.Point
	if s.position != nil {
		p := *s.position
		pos = &p
	}
	s.mu.Unlock()

	snap := Snapshot{
		RouteID:             s.route.ID,
		HistoryID:           pub.historyID,
		State:               pub.state,
		StartedAt:           pub.startedAt,
		TrackingStatus:      s.source.Status(),
		Position:            pos,
		StopOrder:           pub.stopOrder,
		Unvisited:           pub.unvisited,
		VisitedCount:        pub.visitedCount,
		TotalStops:          pub.total,
		PersistenceDegraded: pub.degraded,
	}
	if len(pub.unvisited) > 0 {
		snap.NextStopID = pub.unvisited[0]
	}

	snap.Narration.State = s.queue.State()
	snap.Narration.PendingCount = s.queue.PendingCount()
	if cur, ok := s.queue.Current(); ok {
		snap.Narration.CurrentStopID = cur.StopID
	}
	if err := s.queue.LastError(); err != nil {
		snap.Narration.LastError = err.Error()
	}

	return snap
}

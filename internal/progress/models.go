// Package progress provides the authoritative, persisted record of route
// traversal state: which stops are visited and in what order.
package progress

import (
	"errors"
	"time"
)

// Repository errors.
var (
	ErrProgressNotFound = errors.New("progress not found")
)

// State describes the lifecycle of one traversal.
type State string

const (
	// StateNotStarted means no traversal has been initialized.
	StateNotStarted State = "not_started"
	// StateActive means a traversal is in progress.
	StateActive State = "active"
	// StateCompleted means every stop has been visited. Completion is
	// derived from the visited set, never stored separately.
	StateCompleted State = "completed"
	// StateAbandoned means the traversal was torn down before completion.
	StateAbandoned State = "abandoned"
)

// Snapshot is the persisted form of a traversal's progress. HistoryID is
// an opaque correlation key for external analytics; the store passes it
// through untouched.
type Snapshot struct {
	RouteID   string
	HistoryID string
	StopOrder []string
	Visited   []string
	StartedAt time.Time
}

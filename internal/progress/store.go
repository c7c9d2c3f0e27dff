package progress

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/wanderly/waypointd/internal/tour"
)

// StoreConfig holds configuration for the progress store.
type StoreConfig struct {
	// Repository persists snapshots. Required.
	Repository Repository

	// Logger for store operations.
	Logger zerolog.Logger

	// PersistRetryInterval is the wait before the single persistence
	// retry. Default: 100ms.
	PersistRetryInterval time.Duration
}

// Store is the single source of truth for visitation and traversal order.
// It is owned by one scheduler loop and is not safe for concurrent use;
// all mutation must be funneled through that loop.
//
// Every mutation persists synchronously before returning. A failed write
// is retried once; if it still fails the store keeps serving from memory
// and flags itself degraded rather than aborting the walk.
type Store struct {
	repo          Repository
	logger        zerolog.Logger
	retryInterval time.Duration

	state     State
	route     *tour.Route
	historyID string
	stopOrder []string
	visited   map[string]struct{}
	startedAt time.Time
	degraded  bool
}

// NewStore creates a new progress store.
func NewStore(cfg StoreConfig) *Store {
	retryInterval := cfg.PersistRetryInterval
	if retryInterval == 0 {
		retryInterval = 100 * time.Millisecond
	}

	return &Store{
		repo:          cfg.Repository,
		logger:        cfg.Logger,
		retryInterval: retryInterval,
		state:         StateNotStarted,
		visited:       make(map[string]struct{}),
	}
}

// Initialize begins a traversal: traversal order is set to the stops'
// static order and the visited set is emptied. HistoryID is an opaque
// analytics correlation key carried into every snapshot.
func (s *Store) Initialize(ctx context.Context, route *tour.Route, historyID string) {
	s.reset(route, historyID)
	s.persist(ctx)
}

// Resume begins a traversal from a previously persisted snapshot. The
// snapshot is applied in memory before anything is written, so the first
// persist already carries the merged state; initializing fresh and
// restoring afterwards would open a window where a crash between the two
// writes wipes the durable visited set.
func (s *Store) Resume(ctx context.Context, route *tour.Route, historyID string, snap *Snapshot) {
	s.reset(route, historyID)
	s.apply(snap)
	s.persist(ctx)
}

func (s *Store) reset(route *tour.Route, historyID string) {
	s.state = StateActive
	s.route = route
	s.historyID = historyID
	s.stopOrder = route.StopIDs()
	s.visited = make(map[string]struct{}, len(s.stopOrder))
	s.startedAt = time.Now()
	s.degraded = false
}

// MarkVisited records that the user reached a stop. Returns true if the
// stop transitioned to visited. A stop that is already visited or does
// not belong to the current route is a no-op, never an error.
func (s *Store) MarkVisited(ctx context.Context, stopID string) bool {
	if s.state != StateActive {
		return false
	}
	if !s.belongs(stopID) {
		s.logger.Debug().Str("stop_id", stopID).Msg("ignoring visit for stop outside route")
		return false
	}
	if _, ok := s.visited[stopID]; ok {
		return false
	}

	s.visited[stopID] = struct{}{}
	s.persist(ctx)
	return true
}

// Reorder replaces the traversal order wholesale. The new order must be
// a permutation of the exact current stop-id set; anything else is
// rejected and logged, leaving the order unchanged, so a buggy external
// optimizer can never corrupt progress. Returns whether the order was
// accepted.
func (s *Store) Reorder(ctx context.Context, newOrder []string) bool {
	if s.state != StateActive {
		return false
	}
	if !isPermutation(newOrder, s.stopOrder) {
		s.logger.Warn().
			Strs("proposed", newOrder).
			Msg("rejecting reorder: not a permutation of the current stop set")
		return false
	}

	s.stopOrder = append([]string(nil), newOrder...)
	s.persist(ctx)
	return true
}

// Restore recovers prior state at process restart. Restored visited ids
// are intersected with the current route's stops (stale persisted state
// may reference stops that were since removed from the route), and the
// restored order is accepted only if it is a full permutation of the
// current stop set, else the static order is kept.
func (s *Store) Restore(ctx context.Context, snap *Snapshot) {
	if s.state != StateActive || snap == nil {
		return
	}
	s.apply(snap)
	s.persist(ctx)
}

func (s *Store) apply(snap *Snapshot) {
	if snap == nil {
		return
	}

	if snap.HistoryID != "" {
		s.historyID = snap.HistoryID
	}
	if !snap.StartedAt.IsZero() {
		s.startedAt = snap.StartedAt
	}

	if isPermutation(snap.StopOrder, s.stopOrder) {
		s.stopOrder = append([]string(nil), snap.StopOrder...)
	} else {
		s.logger.Warn().Msg("restored stop order is not a permutation of the route, keeping static order")
	}

	s.visited = make(map[string]struct{}, len(snap.Visited))
	dropped := 0
	for _, id := range snap.Visited {
		if s.belongs(id) {
			s.visited[id] = struct{}{}
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		s.logger.Warn().Int("dropped", dropped).Msg("dropped restored visited ids not in route")
	}
}

// Abandon ends the traversal and clears persisted state.
func (s *Store) Abandon(ctx context.Context) {
	if s.state != StateActive {
		return
	}
	s.state = StateAbandoned

	if err := s.repo.Delete(ctx, s.route.ID); err != nil {
		s.logger.Error().Err(err).Msg("failed to delete persisted progress")
	}
}

// State reports the traversal lifecycle state. Completion is derived
// from the visited set.
func (s *Store) State() State {
	if s.state == StateActive && s.route != nil && len(s.visited) == len(s.stopOrder) && len(s.stopOrder) > 0 {
		return StateCompleted
	}
	return s.state
}

// IsVisited reports whether a stop has been visited.
func (s *Store) IsVisited(stopID string) bool {
	_, ok := s.visited[stopID]
	return ok
}

// StopOrder returns a copy of the current traversal order.
func (s *Store) StopOrder() []string {
	return append([]string(nil), s.stopOrder...)
}

// UnvisitedOrder returns the traversal order filtered to unvisited stops.
func (s *Store) UnvisitedOrder() []string {
	var out []string
	for _, id := range s.stopOrder {
		if !s.IsVisited(id) {
			out = append(out, id)
		}
	}
	return out
}

// VisitedCount returns how many stops have been visited.
func (s *Store) VisitedCount() int {
	return len(s.visited)
}

// Total returns the number of stops in the traversal.
func (s *Store) Total() int {
	return len(s.stopOrder)
}

// Route returns the route of the current traversal, or nil.
func (s *Store) Route() *tour.Route {
	return s.route
}

// HistoryID returns the analytics correlation key.
func (s *Store) HistoryID() string {
	return s.historyID
}

// StartedAt returns when the traversal began.
func (s *Store) StartedAt() time.Time {
	return s.startedAt
}

// Degraded reports whether persistence is failing and the store is
// serving from memory only.
func (s *Store) Degraded() bool {
	return s.degraded
}

// Snapshot returns the persistable form of the current state.
func (s *Store) Snapshot() *Snapshot {
	visited := make([]string, 0, len(s.visited))
	for _, id := range s.stopOrder {
		if s.IsVisited(id) {
			visited = append(visited, id)
		}
	}
	return &Snapshot{
		RouteID:   s.route.ID,
		HistoryID: s.historyID,
		StopOrder: s.StopOrder(),
		Visited:   visited,
		StartedAt: s.startedAt,
	}
}

// persist writes the current state synchronously, retrying once. On
// repeated failure the store flips to degraded and the traversal
// continues in memory.
func (s *Store) persist(ctx context.Context) {
	snap := s.Snapshot()

	op := func() error {
		return s.repo.Save(ctx, snap)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.retryInterval), 1), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		if !s.degraded {
			s.logger.Warn().Err(err).Msg("progress persistence failing, continuing in memory only")
		}
		s.degraded = true
		return
	}
	s.degraded = false
}

func (s *Store) belongs(stopID string) bool {
	for _, id := range s.stopOrder {
		if id == stopID {
			return true
		}
	}
	return false
}

// isPermutation reports whether a is a permutation of b.
func isPermutation(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(b))
	for _, id := range b {
		seen[id]++
	}
	for _, id := range a {
		seen[id]--
		if seen[id] < 0 {
			return false
		}
	}
	return true
}

// Package scheduler orchestrates one route traversal: it funnels location
// events through a single consumer, evaluates proximity, records
// visitation, and feeds the narration queue.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wanderly/waypointd/internal/geo"
	"github.com/wanderly/waypointd/internal/location"
	"github.com/wanderly/waypointd/internal/narration"
	"github.com/wanderly/waypointd/internal/progress"
	"github.com/wanderly/waypointd/internal/proximity"
	"github.com/wanderly/waypointd/internal/tour"
)

// Scheduler errors.
var (
	ErrNoStops = errors.New("route has no stops")
)

// Config holds the collaborators for one traversal's scheduler.
type Config struct {
	// Source delivers position samples and wake events. Required.
	Source location.Source

	// Catalog provides route and stop data. Required.
	Catalog tour.Repository

	// ProgressRepo persists traversal progress. Required.
	ProgressRepo progress.Repository

	// Speaker is the speech backend for narration. Required.
	Speaker narration.Speaker

	// Logger for scheduler operations.
	Logger zerolog.Logger

	// Metrics counters. Optional.
	Metrics *Metrics

	// WakeRegionLimit caps registered wake regions. Default: 20.
	WakeRegionLimit int

	// WakeRadiusM is the coarse wake radius. Default: 100m.
	WakeRadiusM float64
}

// command is a serialized external mutation routed through the event loop.
type command struct {
	order []string
	reply chan bool
}

// publishedProgress is the loop-maintained copy of progress state that
// Snapshot reads without touching the store.
type publishedProgress struct {
	state        progress.State
	stopOrder    []string
	unvisited    []string
	visitedCount int
	total        int
	degraded     bool
	historyID    string
	startedAt    time.Time
}

// Scheduler owns the components of one traversal, constructed at
// traversal start and torn down at traversal end. All proximity
// evaluation and progress mutation happens on its single event loop;
// location samples, wake events, and reorder commands are funneled
// through that loop before they touch shared state.
type Scheduler struct {
	logger  zerolog.Logger
	source  location.Source
	store   *progress.Store
	queue   *narration.Queue
	window  *location.WakeWindow
	metrics *Metrics
	route   *tour.Route

	commands chan command
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}

	// completed is loop-owned; it guards one-shot completion handling.
	completed bool

	mu       sync.Mutex
	position *geo.Point
	pub      publishedProgress
}

// Start begins a traversal of the given route. Persisted progress from a
// previous run of the same route is restored before the location source
// is subscribed, and wake regions for the unvisited window are
// registered before continuous tracking resumes. HistoryID is an opaque
// analytics key carried through persistence.
func Start(ctx context.Context, cfg Config, routeID, historyID string) (*Scheduler, error) {
	route, err := cfg.Catalog.GetRoute(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("fetch route: %w", err)
	}
	if len(route.Stops) == 0 {
		return nil, ErrNoStops
	}

	logger := cfg.Logger.With().Str("route_id", routeID).Logger()

	prior, err := cfg.ProgressRepo.Load(ctx, routeID)
	if err != nil && !errors.Is(err, progress.ErrProgressNotFound) {
		logger.Warn().Err(err).Msg("could not read persisted progress, starting fresh")
	}

	store := progress.NewStore(progress.StoreConfig{
		Repository: cfg.ProgressRepo,
		Logger:     logger,
	})

	loopCtx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		logger:   logger,
		source:   cfg.Source,
		store:    store,
		window:   location.NewWakeWindow(cfg.WakeRegionLimit, cfg.WakeRadiusM),
		metrics:  cfg.Metrics,
		route:    route,
		commands: make(chan command),
		ctx:      loopCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.queue = narration.NewQueue(narration.QueueConfig{
		Speaker:    cfg.Speaker,
		Logger:     logger,
		OnFinished: s.onNarrationFinished,
	})

	// The prior snapshot is merged in memory before the first persist, so
	// a crash at any point during startup leaves the durable visited set
	// intact.
	if prior != nil {
		store.Resume(ctx, route, historyID, prior)
		logger.Info().
			Int("visited", store.VisitedCount()).
			Msg("restored traversal progress")
	} else {
		store.Initialize(ctx, route, historyID)
	}

	s.metrics.addTraversalStarted(ctx)

	if store.State() == progress.StateCompleted {
		// Every stop was already visited when this snapshot was written;
		// there is nothing left to track.
		s.completed = true
		logger.Info().Msg("restored traversal already complete, tracking stays suspended")
	} else {
		// Wake regions first, continuous tracking second: if the process
		// dies in between, the coarse regions can still wake a restart.
		s.refreshWakeRegions()
		s.source.StartTracking()
	}
	s.publish()

	go s.loop()

	logger.Info().
		Int("stops", len(route.Stops)).
		Str("history_id", historyID).
		Msg("traversal started")

	return s, nil
}

// RouteID returns the route being traversed.
func (s *Scheduler) RouteID() string {
	return s.route.ID
}

// Reorder replaces the traversal order, typically after an external
// route optimization. The change is serialized through the event loop so
// it never races an in-flight proximity evaluation. Returns whether the
// new order passed permutation validation.
func (s *Scheduler) Reorder(ctx context.Context, newOrder []string) bool {
	cmd := command{order: newOrder, reply: make(chan bool, 1)}

	select {
	case s.commands <- cmd:
	case <-s.ctx.Done():
		return false
	case <-ctx.Done():
		return false
	}

	select {
	case ok := <-cmd.reply:
		return ok
	case <-ctx.Done():
		return false
	}
}

// PauseNarration suspends the current narration.
func (s *Scheduler) PauseNarration() { s.queue.Pause() }

// ResumeNarration continues a paused narration.
func (s *Scheduler) ResumeNarration() { s.queue.Resume() }

// SkipNarration advances past the current narration.
func (s *Scheduler) SkipNarration() { s.queue.SkipToNext() }

// SkipBackNarration restarts the current narration.
func (s *Scheduler) SkipBackNarration() { s.queue.SkipBackward() }

// StopNarration stops playback and drops pending narrations while the
// walk continues. Already-narrated stops stay de-duplicated.
func (s *Scheduler) StopNarration() { s.queue.Stop() }

// Stop tears the traversal down: location subscriptions first, then wake
// regions, then the narration queue. Progress stays persisted so the
// traversal can be resumed later. Idempotent.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.done

	s.source.StopTracking()
	s.source.ClearWakeRegions()
	s.queue.Stop()
	s.publish()

	s.logger.Info().Msg("traversal stopped")
}

// Abandon is Stop plus discarding all progress, persisted state
// included.
func (s *Scheduler) Abandon(ctx context.Context) {
	s.cancel()
	<-s.done

	s.source.StopTracking()
	s.source.ClearWakeRegions()
	s.queue.StopAndClear()
	s.store.Abandon(ctx)
	s.publish()

	s.logger.Info().Msg("traversal abandoned")
}

func (s *Scheduler) loop() {
	defer close(s.done)

	for {
		select {
		case <-s.ctx.Done():
			return
		case cmd := <-s.commands:
			s.handleReorder(cmd)
		case sample, ok := <-s.source.Samples():
			if !ok {
				return
			}
			s.handleSample(sample)
		case wake, ok := <-s.source.WakeEvents():
			if !ok {
				return
			}
			s.handleWake(wake)
		}
	}
}

// handleSample runs one tick of the pipeline: proximity evaluation, then
// for each triggered stop markVisited strictly before enqueue. A crash
// between the two leaves "visited but not narrated", which restore
// handles; the reverse order could narrate a stop twice after restore.
func (s *Scheduler) handleSample(sample location.Sample) {
	s.mu.Lock()
	coord := sample.Coord
	s.position = &coord
	s.mu.Unlock()

	result := proximity.Evaluate(sample, s.route, s.store.StopOrder(), s.store.IsVisited)

	triggered := false
	for _, stopID := range result.Triggered {
		rank := s.traversalRank(stopID)
		if !s.store.MarkVisited(s.ctx, stopID) {
			continue
		}
		s.metrics.addStopVisited(s.ctx)
		triggered = true

		stop := s.route.FindStop(stopID)
		s.logger.Info().
			Str("stop_id", stopID).
			Str("stop_name", stop.Name).
			Msg("stop reached")

		s.queue.Enqueue(stopID, stop.NarrationText, rank)
	}

	if triggered {
		// The unvisited window moved; rotate the wake regions.
		s.refreshWakeRegions()
	}

	if s.store.State() == progress.StateCompleted && !s.completed {
		s.completed = true
		s.metrics.addTraversalCompleted(s.ctx)
		s.logger.Info().Msg("route completed, suspending tracking")
		s.source.StopTracking()
		s.source.ClearWakeRegions()
	}

	s.publish()
}

// handleWake treats a coarse region-enter event as a hint only: it
// re-activates continuous tracking so the fine-grained check can run.
// The wake radius is far coarser than the trigger radius, so the event
// itself never marks a stop visited.
func (s *Scheduler) handleWake(ev location.WakeEvent) {
	s.logger.Debug().
		Str("stop_id", ev.StopID).
		Time("at", ev.At).
		Msg("wake region entered, resuming continuous tracking")

	s.source.StartTracking()
	s.publish()
}

func (s *Scheduler) handleReorder(cmd command) {
	ok := s.store.Reorder(s.ctx, cmd.order)
	if ok {
		s.refreshWakeRegions()
	} else {
		s.metrics.addReorderRejected(s.ctx)
	}
	s.publish()
	cmd.reply <- ok
}

func (s *Scheduler) onNarrationFinished(item narration.Item) {
	ctx := context.Background()
	switch item.State {
	case narration.ItemFinished:
		s.metrics.addNarrationPlayed(ctx)
		s.logger.Info().Str("stop_id", item.StopID).Msg("stop narrated")
	case narration.ItemInterrupted:
		s.metrics.addNarrationFailed(ctx)
	case narration.ItemSkipped:
		s.logger.Debug().Str("stop_id", item.StopID).Msg("narration skipped")
	}
}

func (s *Scheduler) refreshWakeRegions() {
	regions := s.window.Regions(s.route, s.store.StopOrder(), s.store.IsVisited)
	s.source.RegisterWakeRegions(regions)
}

// traversalRank returns a stop's position in the current traversal
// order. It is copied onto the queue item at enqueue time.
func (s *Scheduler) traversalRank(stopID string) int {
	for i, id := range s.store.StopOrder() {
		if id == stopID {
			return i
		}
	}
	return 0
}

// publish refreshes the snapshot copy served to observers. Only the
// event loop (and teardown, after the loop has exited) calls it.
func (s *Scheduler) publish() {
	pub := publishedProgress{
		state:        s.store.State(),
		stopOrder:    s.store.StopOrder(),
		unvisited:    s.store.UnvisitedOrder(),
		visitedCount: s.store.VisitedCount(),
		total:        s.store.Total(),
		degraded:     s.store.Degraded(),
		historyID:    s.store.HistoryID(),
		startedAt:    s.store.StartedAt(),
	}

	s.mu.Lock()
	s.pub = pub
	s.mu.Unlock()
}

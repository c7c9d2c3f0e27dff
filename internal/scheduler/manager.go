package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wanderly/waypointd/internal/location"
	"github.com/wanderly/waypointd/internal/narration"
	"github.com/wanderly/waypointd/internal/progress"
	"github.com/wanderly/waypointd/internal/tour"
)

// Manager errors.
var (
	ErrTraversalActive   = errors.New("traversal already active for route")
	ErrTraversalNotFound = errors.New("no active traversal for route")
)

// ManagerConfig holds configuration for the traversal manager.
type ManagerConfig struct {
	// Catalog provides route and stop data. Required.
	Catalog tour.Repository

	// ProgressRepo persists traversal progress. Required.
	ProgressRepo progress.Repository

	// NewSource builds a location source per traversal. Required.
	NewSource func() location.PushSource

	// NewSpeaker builds a speech backend per traversal. Required.
	NewSpeaker func() narration.Speaker

	// Logger for manager operations.
	Logger zerolog.Logger

	// Metrics counters shared by all traversals. Optional.
	Metrics *Metrics

	// WakeRegionLimit caps registered wake regions per traversal.
	WakeRegionLimit int

	// WakeRadiusM is the coarse wake radius.
	WakeRadiusM float64
}

// entry pairs a scheduler with the push source feeding it.
type entry struct {
	sched  *Scheduler
	source location.PushSource
}

// Manager owns the active traversals, at most one per route. It is the
// daemon-side counterpart of the per-traversal Scheduler: the ingest
// pipeline and the control API reach traversals only through it.
type Manager struct {
	cfg    ManagerConfig
	logger zerolog.Logger

	mu     sync.Mutex
	active map[string]*entry
}

// NewManager creates a new traversal manager.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "traversal_manager").Logger(),
		active: make(map[string]*entry),
	}
}

// Start begins a traversal for the route, resuming persisted progress if
// any exists. Returns ErrTraversalActive if one is already running.
func (m *Manager) Start(ctx context.Context, routeID, historyID string) (*Scheduler, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[routeID]; ok {
		return nil, ErrTraversalActive
	}

	source := m.cfg.NewSource()
	sched, err := Start(ctx, Config{
		Source:          source,
		Catalog:         m.cfg.Catalog,
		ProgressRepo:    m.cfg.ProgressRepo,
		Speaker:         m.cfg.NewSpeaker(),
		Logger:          m.cfg.Logger,
		Metrics:         m.cfg.Metrics,
		WakeRegionLimit: m.cfg.WakeRegionLimit,
		WakeRadiusM:     m.cfg.WakeRadiusM,
	}, routeID, historyID)
	if err != nil {
		return nil, err
	}

	m.active[routeID] = &entry{sched: sched, source: source}
	return sched, nil
}

// Get returns the active traversal for the route.
func (m *Manager) Get(routeID string) (*Scheduler, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.active[routeID]
	if !ok {
		return nil, ErrTraversalNotFound
	}
	return e.sched, nil
}

// PushFix feeds a raw position fix into the route's location source.
// Fixes for routes without an active traversal are dropped.
func (m *Manager) PushFix(routeID string, fix location.Sample) error {
	m.mu.Lock()
	e, ok := m.active[routeID]
	m.mu.Unlock()

	if !ok {
		return ErrTraversalNotFound
	}
	e.source.Push(fix)
	return nil
}

// Stop ends the route's traversal, keeping persisted progress so it can
// be resumed by a later Start.
func (m *Manager) Stop(routeID string) error {
	m.mu.Lock()
	e, ok := m.active[routeID]
	delete(m.active, routeID)
	m.mu.Unlock()

	if !ok {
		return ErrTraversalNotFound
	}
	e.sched.Stop()
	return nil
}

// Abandon ends the route's traversal and discards its progress.
func (m *Manager) Abandon(ctx context.Context, routeID string) error {
	m.mu.Lock()
	e, ok := m.active[routeID]
	delete(m.active, routeID)
	m.mu.Unlock()

	if !ok {
		return ErrTraversalNotFound
	}
	e.sched.Abandon(ctx)
	return nil
}

// StopAll stops every active traversal. Used at daemon shutdown;
// progress stays persisted for resumption on the next run.
func (m *Manager) StopAll() {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.active))
	for _, e := range m.active {
		entries = append(entries, e)
	}
	m.active = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range entries {
		e.sched.Stop()
	}
}

// Active returns the route ids with a running traversal.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	return ids
}

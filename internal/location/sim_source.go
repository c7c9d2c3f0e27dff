package location

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wanderly/waypointd/internal/geo"
)

// SimSourceConfig holds configuration for the simulated source.
type SimSourceConfig struct {
	// MinMovementM is the minimum movement between emitted samples.
	// Fixes closer than this to the last emitted fix are dropped, which
	// mirrors the distance-filtered delivery of platform location APIs.
	// Default: 5 meters.
	MinMovementM float64

	// Buffer is the channel buffer size for samples and wake events.
	// Default: 16.
	Buffer int

	// Logger for source events.
	Logger zerolog.Logger
}

// SimSource is a channel-backed Source implementation. It is fed raw
// position fixes via Push and applies the same two-tier contract as a
// platform source: wake regions fire regardless of tracking state,
// continuous samples only while tracking and only after sufficient
// movement. It backs both tests and the Pub/Sub ingest path.
type SimSource struct {
	minMovementM float64
	logger       zerolog.Logger

	samples chan Sample
	wakes   chan WakeEvent

	mu         sync.Mutex
	status     TrackingStatus
	authorized bool
	regions    []WakeRegion
	inside     map[string]bool
	lastEmit   *geo.Point
}

// NewSimSource creates a new simulated positioning source.
func NewSimSource(cfg SimSourceConfig) *SimSource {
	minMovement := cfg.MinMovementM
	if minMovement <= 0 {
		minMovement = 5
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 16
	}

	return &SimSource{
		minMovementM: minMovement,
		logger:       cfg.Logger,
		samples:      make(chan Sample, buffer),
		wakes:        make(chan WakeEvent, buffer),
		status:       StatusIdle,
		authorized:   true,
		inside:       make(map[string]bool),
	}
}

// SetAuthorized flips the simulated location authorization. Revoking
// authorization while tracking degrades the status to denied.
func (s *SimSource) SetAuthorized(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.authorized = ok
	if !ok && s.status == StatusTracking {
		s.status = StatusDenied
	}
}

// StartTracking begins continuous sampling. Idempotent.
func (s *SimSource) StartTracking() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.authorized {
		s.status = StatusDenied
		s.logger.Warn().Msg("location authorization denied, tracking unavailable")
		return
	}
	if s.status == StatusTracking {
		return
	}
	s.status = StatusTracking
	s.lastEmit = nil
	s.logger.Debug().Msg("continuous tracking started")
}

// StopTracking suspends continuous sampling. Idempotent.
func (s *SimSource) StopTracking() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusIdle {
		return
	}
	s.status = StatusIdle
	s.logger.Debug().Msg("continuous tracking stopped")
}

// RegisterWakeRegions replaces the current wake-region set.
func (s *SimSource) RegisterWakeRegions(regions []WakeRegion) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Unregister stale regions first; entered-state for regions that
	// survive the swap is kept so re-registering does not re-fire.
	inside := make(map[string]bool, len(regions))
	for _, region := range regions {
		if s.inside[region.ID] {
			inside[region.ID] = true
		}
	}
	s.regions = regions
	s.inside = inside

	s.logger.Debug().Int("regions", len(regions)).Msg("wake regions registered")
}

// ClearWakeRegions unregisters all wake regions. Idempotent.
func (s *SimSource) ClearWakeRegions() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.regions = nil
	s.inside = make(map[string]bool)
}

// Samples delivers continuous position fixes while tracking.
func (s *SimSource) Samples() <-chan Sample {
	return s.samples
}

// WakeEvents delivers coarse region-enter events.
func (s *SimSource) WakeEvents() <-chan WakeEvent {
	return s.wakes
}

// Status reports the current tracking status.
func (s *SimSource) Status() TrackingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Push feeds a raw position fix into the source. Wake-region entry is
// evaluated first and fires regardless of tracking state. The continuous
// sample is emitted only while tracking and only if the fix moved at
// least MinMovementM from the last emitted sample.
func (s *SimSource) Push(fix Sample) {
	s.mu.Lock()

	var entered []WakeEvent
	for _, region := range s.regions {
		in := geo.DistanceMeters(fix.Coord, region.Center) <= region.RadiusM
		if in && !s.inside[region.ID] {
			entered = append(entered, WakeEvent{StopID: region.StopID, At: fix.Timestamp})
		}
		s.inside[region.ID] = in
	}

	emit := false
	if s.status == StatusTracking {
		if s.lastEmit == nil || geo.DistanceMeters(fix.Coord, *s.lastEmit) >= s.minMovementM {
			coord := fix.Coord
			s.lastEmit = &coord
			emit = true
		}
	}
	s.mu.Unlock()

	for _, ev := range entered {
		select {
		case s.wakes <- ev:
		default:
			s.logger.Warn().Str("stop_id", ev.StopID).Msg("wake event dropped, channel full")
		}
	}

	if emit {
		select {
		case s.samples <- fix:
		default:
			s.logger.Warn().Msg("sample dropped, channel full")
		}
	}
}

// PushAt is a convenience for tests: pushes a fix at the given coordinate
// with a timestamp of now and the given accuracy.
func (s *SimSource) PushAt(coord geo.Point, accuracyM float64) {
	s.Push(Sample{Coord: coord, Timestamp: time.Now(), AccuracyM: accuracyM})
}

// Ensure SimSource implements Source interface.
var _ Source = (*SimSource)(nil)

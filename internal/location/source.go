// Package location provides the positioning source abstraction: continuous
// position samples while tracking is active, plus coarse wake-region enter
// events that fire even when continuous tracking is suspended.
package location

import (
	"strings"
	"time"

	"github.com/wanderly/waypointd/internal/geo"
)

// TrackingStatus describes the state of the positioning source.
type TrackingStatus string

const (
	// StatusIdle means tracking has not been started or was stopped.
	StatusIdle TrackingStatus = "idle"
	// StatusTracking means continuous samples are being delivered.
	StatusTracking TrackingStatus = "tracking"
	// StatusDenied means location authorization was denied or revoked.
	// The source stays usable; it resumes if authorization is granted.
	StatusDenied TrackingStatus = "denied"
	// StatusError means the positioning hardware reported a failure.
	StatusError TrackingStatus = "error"
)

// wakeRegionPrefix prefixes wake-region identifiers so a platform region
// id can always be mapped back to its stop.
const wakeRegionPrefix = "wake_"

// Sample is a single continuous position fix.
type Sample struct {
	Coord     geo.Point
	Timestamp time.Time
	// AccuracyM is the horizontal accuracy radius in meters. Larger is worse.
	AccuracyM float64
}

// WakeEvent is a coarse region-enter event for a stop's wake region.
type WakeEvent struct {
	StopID string
	At     time.Time
}

// WakeRegion is a coarse circular region registered with the platform's
// region-monitoring facility.
type WakeRegion struct {
	ID      string
	StopID  string
	Center  geo.Point
	RadiusM float64
}

// NewWakeRegion builds a wake region for a stop with a prefix-encoded id.
func NewWakeRegion(stopID string, center geo.Point, radiusM float64) WakeRegion {
	return WakeRegion{
		ID:      wakeRegionPrefix + stopID,
		StopID:  stopID,
		Center:  center,
		RadiusM: radiusM,
	}
}

// StopIDFromRegionID recovers the stop id encoded in a wake-region id.
// Returns false if the id is not a wake-region id.
func StopIDFromRegionID(regionID string) (string, bool) {
	if !strings.HasPrefix(regionID, wakeRegionPrefix) {
		return "", false
	}
	return strings.TrimPrefix(regionID, wakeRegionPrefix), true
}

// Source abstracts the platform positioning API. Implementations must
// never panic on authorization or hardware failures; those are reported
// via Status and the scheduler degrades to no proximity detection.
type Source interface {
	// StartTracking begins continuous sampling. Idempotent. A denied
	// authorization is reported via Status, not returned.
	StartTracking()

	// StopTracking suspends continuous sampling. Idempotent. Registered
	// wake regions keep firing; they are the wake-up mechanism.
	StopTracking()

	// RegisterWakeRegions replaces the current wake-region set. Stale
	// regions are unregistered first so the platform cardinality limit
	// is respected.
	RegisterWakeRegions(regions []WakeRegion)

	// ClearWakeRegions unregisters all wake regions. Idempotent.
	ClearWakeRegions()

	// Samples delivers continuous position fixes while tracking.
	Samples() <-chan Sample

	// WakeEvents delivers coarse region-enter events, independent of the
	// continuous stream.
	WakeEvents() <-chan WakeEvent

	// Status reports the current tracking status.
	Status() TrackingStatus
}

// PushSource is a Source fed raw position fixes by an external transport,
// such as a message-queue ingest.
type PushSource interface {
	Source
	Push(fix Sample)
}

package scheduler

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the scheduler's OpenTelemetry counters.
type Metrics struct {
	traversalsStarted   metric.Int64Counter
	traversalsCompleted metric.Int64Counter
	stopsVisited        metric.Int64Counter
	narrationsPlayed    metric.Int64Counter
	narrationsFailed    metric.Int64Counter
	reordersRejected    metric.Int64Counter
}

// NewMetrics registers the scheduler counters on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.traversalsStarted, err = meter.Int64Counter("waypointd_traversals_started_total",
		metric.WithDescription("Number of route traversals started")); err != nil {
		return nil, err
	}
	if m.traversalsCompleted, err = meter.Int64Counter("waypointd_traversals_completed_total",
		metric.WithDescription("Number of route traversals completed")); err != nil {
		return nil, err
	}
	if m.stopsVisited, err = meter.Int64Counter("waypointd_stops_visited_total",
		metric.WithDescription("Number of stops marked visited by proximity")); err != nil {
		return nil, err
	}
	if m.narrationsPlayed, err = meter.Int64Counter("waypointd_narrations_played_total",
		metric.WithDescription("Number of narration segments that finished playback")); err != nil {
		return nil, err
	}
	if m.narrationsFailed, err = meter.Int64Counter("waypointd_narrations_failed_total",
		metric.WithDescription("Number of narration segments that failed in the speech backend")); err != nil {
		return nil, err
	}
	if m.reordersRejected, err = meter.Int64Counter("waypointd_reorders_rejected_total",
		metric.WithDescription("Number of reorder payloads rejected by validation")); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) addTraversalStarted(ctx context.Context) {
	if m != nil {
		m.traversalsStarted.Add(ctx, 1)
	}
}

func (m *Metrics) addTraversalCompleted(ctx context.Context) {
	if m != nil {
		m.traversalsCompleted.Add(ctx, 1)
	}
}

func (m *Metrics) addStopVisited(ctx context.Context) {
	if m != nil {
		m.stopsVisited.Add(ctx, 1)
	}
}

func (m *Metrics) addNarrationPlayed(ctx context.Context) {
	if m != nil {
		m.narrationsPlayed.Add(ctx, 1)
	}
}

func (m *Metrics) addNarrationFailed(ctx context.Context) {
	if m != nil {
		m.narrationsFailed.Add(ctx, 1)
	}
}

func (m *Metrics) addReorderRejected(ctx context.Context) {
	if m != nil {
		m.reordersRejected.Add(ctx, 1)
	}
}

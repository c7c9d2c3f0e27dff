package narration

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/wanderly/waypointd/internal/narration"

// SpeakerMetrics holds metrics for speech backend calls.
type SpeakerMetrics struct {
	utteranceDuration metric.Float64Histogram
	utteranceTotal    metric.Int64Counter
	rejectedTotal     metric.Int64Counter
}

// NewSpeakerMetrics creates metrics for monitoring the speech backend.
func NewSpeakerMetrics() (*SpeakerMetrics, error) {
	meter := otel.Meter(meterName)

	utteranceDuration, err := meter.Float64Histogram(
		"speaker.utterance.duration",
		metric.WithDescription("Duration of speech backend utterances in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	utteranceTotal, err := meter.Int64Counter(
		"speaker.utterance.total",
		metric.WithDescription("Total number of utterances handed to the speech backend"),
		metric.WithUnit("{utterance}"),
	)
	if err != nil {
		return nil, err
	}

	rejectedTotal, err := meter.Int64Counter(
		"speaker.rejected.total",
		metric.WithDescription("Number of utterances rejected by the open circuit breaker"),
		metric.WithUnit("{utterance}"),
	)
	if err != nil {
		return nil, err
	}

	return &SpeakerMetrics{
		utteranceDuration: utteranceDuration,
		utteranceTotal:    utteranceTotal,
		rejectedTotal:     rejectedTotal,
	}, nil
}

// RecordUtterance records the outcome of one utterance that reached the
// backend. Safe on a nil receiver so metrics stay optional.
func (m *SpeakerMetrics) RecordUtterance(backend string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("speaker.backend", backend),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Use background context for metrics to avoid context cancellation issues
	ctx := context.TODO()
	m.utteranceDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.utteranceTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRejected records an utterance that failed fast on the open
// breaker without reaching the backend.
func (m *SpeakerMetrics) RecordRejected(backend string) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("speaker.backend", backend),
	}
	m.rejectedTotal.Add(context.TODO(), 1, metric.WithAttributes(attrs...))
}

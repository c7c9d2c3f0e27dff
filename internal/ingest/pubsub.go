// Package ingest feeds device location fixes from Pub/Sub into the
// traversal manager.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/wanderly/waypointd/internal/geo"
	"github.com/wanderly/waypointd/internal/location"
	"github.com/wanderly/waypointd/internal/scheduler"
)

// PubSubHandler consumes location-fix messages and pushes them into the
// active traversal's location source.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	manager          *scheduler.Manager
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Manager          *scheduler.Manager
	Logger           zerolog.Logger
}

// FixMessage is the wire format for one device location fix.
type FixMessage struct {
	RouteID   string    `json:"route_id"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	AccuracyM float64   `json:"accuracy_m"`
	Timestamp time.Time `json:"timestamp"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Fixes are small and frequent; allow a deep outstanding window.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 100
	subscriber.ReceiveSettings.MaxExtension = time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		manager:          cfg.Manager,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing location-fix messages. Blocks until ctx is
// canceled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting location-fix ingest")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(_ context.Context, msg *pubsub.Message) {
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Logger()

	var fix FixMessage
	if err := json.Unmarshal(msg.Data, &fix); err != nil {
		logger.Error().Err(err).Msg("failed to parse location fix")
		// Malformed fixes never become valid; do not redeliver.
		msg.Ack()
		return
	}

	sample, err := fix.Sample()
	if err != nil {
		logger.Warn().Err(err).Str("route_id", fix.RouteID).Msg("dropping invalid location fix")
		msg.Ack()
		return
	}

	if err := h.manager.PushFix(fix.RouteID, sample); err != nil {
		if errors.Is(err, scheduler.ErrTraversalNotFound) {
			// Fixes outlive traversals; stale ones are expected.
			logger.Debug().Str("route_id", fix.RouteID).Msg("fix for inactive traversal dropped")
			msg.Ack()
			return
		}
		logger.Error().Err(err).Msg("failed to push location fix")
		msg.Nack()
		return
	}

	msg.Ack()
}

// Sample validates the message and converts it to a location sample.
func (m *FixMessage) Sample() (location.Sample, error) {
	if m.RouteID == "" {
		return location.Sample{}, errors.New("missing route_id")
	}
	coord := geo.Point{Lat: m.Lat, Lon: m.Lon}
	if !coord.Valid() {
		return location.Sample{}, fmt.Errorf("coordinate out of range: %.4f,%.4f", m.Lat, m.Lon)
	}

	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return location.Sample{
		Coord:     coord,
		Timestamp: ts,
		AccuracyM: m.AccuracyM,
	}, nil
}

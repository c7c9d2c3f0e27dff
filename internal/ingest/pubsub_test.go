package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixMessage_Sample(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	msg := FixMessage{
		RouteID:   "rte_1",
		Lat:       52.3676,
		Lon:       4.9041,
		AccuracyM: 12,
		Timestamp: ts,
	}

	sample, err := msg.Sample()
	require.NoError(t, err)
	assert.Equal(t, 52.3676, sample.Coord.Lat)
	assert.Equal(t, 4.9041, sample.Coord.Lon)
	assert.Equal(t, 12.0, sample.AccuracyM)
	assert.Equal(t, ts, sample.Timestamp)
}

func TestFixMessage_SampleDefaultsTimestamp(t *testing.T) {
	msg := FixMessage{RouteID: "rte_1", Lat: 52.0, Lon: 4.0}

	sample, err := msg.Sample()
	require.NoError(t, err)
	assert.False(t, sample.Timestamp.IsZero())
}

func TestFixMessage_SampleRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		msg  FixMessage
	}{
		{"missing route id", FixMessage{Lat: 52.0, Lon: 4.0}},
		{"latitude out of range", FixMessage{RouteID: "rte_1", Lat: 91.0, Lon: 4.0}},
		{"longitude out of range", FixMessage{RouteID: "rte_1", Lat: 52.0, Lon: 181.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.msg.Sample()
			assert.Error(t, err)
		})
	}
}

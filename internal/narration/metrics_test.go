package narration

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpeakerMetrics(t *testing.T) {
	m, err := NewSpeakerMetrics()
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestSpeakerMetrics_NilReceiverIsNoOp(t *testing.T) {
	var m *SpeakerMetrics

	// Should not panic
	m.RecordUtterance("speaker", time.Second, nil)
	m.RecordRejected("speaker")
}

func TestBreakerSpeaker_RecordsUtteranceOutcome(t *testing.T) {
	m, err := NewSpeakerMetrics()
	require.NoError(t, err)

	s := NewBreakerSpeaker(okSpeaker{}, BreakerConfig{Logger: zerolog.Nop(), Metrics: m})

	err = speakAndWait(t, s, Utterance{ItemID: "itm_1", StopID: "a", Text: "hello"})
	assert.NoError(t, err)
}

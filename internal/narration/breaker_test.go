package narration

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingSpeaker reports a backend error for every utterance.
type failingSpeaker struct {
	mu    sync.Mutex
	calls int
}

func (s *failingSpeaker) Speak(_ Utterance, cb Callbacks) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	cb.OnError(errors.New("tts engine down"))
}

func (s *failingSpeaker) Pause()  {}
func (s *failingSpeaker) Resume() {}
func (s *failingSpeaker) Stop()   {}

func (s *failingSpeaker) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// okSpeaker finishes every utterance immediately.
type okSpeaker struct{}

func (okSpeaker) Speak(_ Utterance, cb Callbacks) { cb.OnFinish() }
func (okSpeaker) Pause()                          {}
func (okSpeaker) Resume()                         {}
func (okSpeaker) Stop()                           {}

func speakAndWait(t *testing.T, s Speaker, u Utterance) error {
	t.Helper()

	result := make(chan error, 1)
	s.Speak(u, Callbacks{
		OnFinish: func() { result <- nil },
		OnError:  func(err error) { result <- err },
	})

	select {
	case err := <-result:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for playback callback")
		return nil
	}
}

func TestBreakerSpeaker_PassesThroughSuccess(t *testing.T) {
	s := NewBreakerSpeaker(okSpeaker{}, BreakerConfig{Logger: zerolog.Nop()})

	err := speakAndWait(t, s, Utterance{ItemID: "itm_1", StopID: "a", Text: "hello"})
	assert.NoError(t, err)
}

func TestBreakerSpeaker_TripsAfterConsecutiveFailures(t *testing.T) {
	inner := &failingSpeaker{}
	s := NewBreakerSpeaker(inner, BreakerConfig{
		Timeout: time.Hour, // keep it open for the whole test
		Logger:  zerolog.Nop(),
	})

	for i := 0; i < 3; i++ {
		err := speakAndWait(t, s, Utterance{ItemID: "itm_f", StopID: "a", Text: "x"})
		require.Error(t, err)
	}
	require.Equal(t, 3, inner.callCount())

	// Breaker is open now: the backend is no longer called and the
	// utterance fails fast.
	err := speakAndWait(t, s, Utterance{ItemID: "itm_g", StopID: "b", Text: "y"})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, inner.callCount())
}

func TestBreakerSpeaker_StopSettlesInFlightUtterance(t *testing.T) {
	// silentSpeaker never completes; only Stop releases the utterance.
	block := &blockingSpeaker{}
	s := NewBreakerSpeaker(block, BreakerConfig{Logger: zerolog.Nop()})

	s.Speak(Utterance{ItemID: "itm_1", StopID: "a", Text: "x"}, Callbacks{
		OnFinish: func() {},
		OnError:  func(error) {},
	})
	s.Stop()

	// A stopped utterance is not a failure; the breaker stays closed and
	// the next utterance reaches the backend.
	err := speakAndWait(t, NewBreakerSpeaker(okSpeaker{}, BreakerConfig{Logger: zerolog.Nop()}),
		Utterance{ItemID: "itm_2", StopID: "b", Text: "y"})
	assert.NoError(t, err)
	assert.Equal(t, 1, block.stops)
}

// blockingSpeaker accepts utterances and never completes them.
type blockingSpeaker struct {
	stops int
}

func (s *blockingSpeaker) Speak(_ Utterance, _ Callbacks) {}
func (s *blockingSpeaker) Pause()                         {}
func (s *blockingSpeaker) Resume()                        {}
func (s *blockingSpeaker) Stop()                          { s.stops++ }

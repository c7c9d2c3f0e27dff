package narration

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig holds configuration for the speaker circuit breaker.
type BreakerConfig struct {
	// Name identifies the breaker for logging. Default: "speaker".
	Name string

	// Timeout is the open-state period before a half-open probe.
	// Default: 30 seconds.
	Timeout time.Duration

	// Logger for state changes.
	Logger zerolog.Logger

	// Metrics records utterance outcomes and breaker rejections. Optional.
	Metrics *SpeakerMetrics
}

// BreakerSpeaker wraps a Speaker with a circuit breaker. A repeatedly
// failing speech engine trips the breaker open, after which utterances
// fail fast through OnError and the queue keeps draining instead of
// waiting on a dead backend.
type BreakerSpeaker struct {
	inner   Speaker
	name    string
	breaker *gobreaker.CircuitBreaker[struct{}]
	metrics *SpeakerMetrics

	mu     sync.Mutex
	settle func(err error)
}

// NewBreakerSpeaker wraps a speaker with breaker protection.
func NewBreakerSpeaker(inner Speaker, cfg BreakerConfig) *BreakerSpeaker {
	name := cfg.Name
	if name == "" {
		name = "speaker"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("speech breaker state change")
		},
	}

	return &BreakerSpeaker{
		inner:   inner,
		name:    name,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		metrics: cfg.Metrics,
	}
}

// Speak routes the utterance through the breaker. The breaker observes
// the asynchronous outcome: an utterance counts as failed only when the
// backend reports OnError. Each utterance runs in its own goroutine so
// Speak never blocks the caller.
func (s *BreakerSpeaker) Speak(u Utterance, cb Callbacks) {
	done := make(chan error, 1)
	var once sync.Once
	settle := func(err error) {
		once.Do(func() { done <- err })
	}

	s.mu.Lock()
	s.settle = settle
	s.mu.Unlock()

	go func() {
		start := time.Now()
		_, err := s.breaker.Execute(func() (struct{}, error) {
			s.inner.Speak(u, Callbacks{
				OnStart: cb.OnStart,
				OnFinish: func() {
					settle(nil)
					cb.OnFinish()
				},
				OnError: func(err error) {
					settle(err)
					cb.OnError(err)
				},
			})
			return struct{}{}, <-done
		})

		// Callbacks already fired for errors the inner speaker reported;
		// only breaker rejections still need delivery.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			s.metrics.RecordRejected(s.name)
			cb.OnError(err)
			return
		}
		s.metrics.RecordUtterance(s.name, time.Since(start), err)
	}()
}

// Pause passes through to the wrapped speaker.
func (s *BreakerSpeaker) Pause() { s.inner.Pause() }

// Resume passes through to the wrapped speaker.
func (s *BreakerSpeaker) Resume() { s.inner.Resume() }

// Stop force-terminates the current playback. The in-flight utterance is
// settled as neither success nor failure worth counting: a user skip must
// not trip the breaker.
func (s *BreakerSpeaker) Stop() {
	s.mu.Lock()
	if s.settle != nil {
		s.settle(nil)
		s.settle = nil
	}
	s.mu.Unlock()

	s.inner.Stop()
}

// Ensure BreakerSpeaker implements Speaker interface.
var _ Speaker = (*BreakerSpeaker)(nil)

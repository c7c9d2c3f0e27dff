// Package narration provides the ordered, de-duplicated narration queue
// and the speech backend abstraction it drives.
package narration

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Utterance is one narration segment handed to the speech backend.
type Utterance struct {
	ItemID string
	StopID string
	Text   string
}

// Callbacks deliver playback lifecycle events. OnFinish fires on natural
// completion only; a force-terminated playback fires neither OnFinish nor
// OnError.
type Callbacks struct {
	OnStart  func()
	OnFinish func()
	OnError  func(err error)
}

// Speaker abstracts a TTS or prerecorded-audio backend. Speak must not
// block; completion arrives via callbacks.
type Speaker interface {
	Speak(u Utterance, cb Callbacks)
	Pause()
	Resume()
	Stop()
}

// LogSpeakerConfig holds configuration for the log speaker.
type LogSpeakerConfig struct {
	// WordsPerMinute controls the simulated narration pace. Default: 150.
	WordsPerMinute int

	// Logger for spoken text.
	Logger zerolog.Logger
}

// LogSpeaker is a Speaker that logs utterances and completes them after
// a pace-derived delay. It stands in for a real audio backend in local
// runs and keeps the queue's timing behavior realistic.
type LogSpeaker struct {
	wpm    int
	logger zerolog.Logger

	mu        sync.Mutex
	timer     *time.Timer
	onFinish  func()
	startedAt time.Time
	remaining time.Duration
	paused    bool
}

// NewLogSpeaker creates a new log-only speaker.
func NewLogSpeaker(cfg LogSpeakerConfig) *LogSpeaker {
	wpm := cfg.WordsPerMinute
	if wpm <= 0 {
		wpm = 150
	}
	return &LogSpeaker{wpm: wpm, logger: cfg.Logger}
}

// Speak logs the utterance and schedules its completion.
func (s *LogSpeaker) Speak(u Utterance, cb Callbacks) {
	words := len(strings.Fields(u.Text))
	dur := time.Duration(words) * time.Minute / time.Duration(s.wpm)
	if dur < time.Second {
		dur = time.Second
	}

	s.mu.Lock()
	s.stopTimerLocked()
	s.onFinish = cb.OnFinish
	s.startedAt = time.Now()
	s.remaining = dur
	s.paused = false
	s.timer = time.AfterFunc(dur, func() { s.complete() })
	s.mu.Unlock()

	s.logger.Info().
		Str("stop_id", u.StopID).
		Dur("duration", dur).
		Msg("narrating: " + u.Text)

	if cb.OnStart != nil {
		cb.OnStart()
	}
}

// Pause suspends the simulated playback clock.
func (s *LogSpeaker) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer == nil || s.paused {
		return
	}
	s.timer.Stop()
	elapsed := time.Since(s.startedAt)
	if elapsed < s.remaining {
		s.remaining -= elapsed
	} else {
		s.remaining = 0
	}
	s.paused = true
}

// Resume continues a paused playback.
func (s *LogSpeaker) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.paused {
		return
	}
	s.paused = false
	s.startedAt = time.Now()
	s.timer = time.AfterFunc(s.remaining, func() { s.complete() })
}

// Stop force-terminates the current playback without firing callbacks.
func (s *LogSpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	s.onFinish = nil
	s.paused = false
}

func (s *LogSpeaker) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *LogSpeaker) complete() {
	s.mu.Lock()
	fin := s.onFinish
	s.onFinish = nil
	s.timer = nil
	s.mu.Unlock()

	if fin != nil {
		fin()
	}
}

// Ensure LogSpeaker implements Speaker interface.
var _ Speaker = (*LogSpeaker)(nil)

package narration

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// fakeSpeaker records utterances and lets tests drive completion.
type fakeSpeaker struct {
	mu         sync.Mutex
	utterances []Utterance
	cb         Callbacks
	pauses     int
	resumes    int
	stops      int
}

func (f *fakeSpeaker) Speak(u Utterance, cb Callbacks) {
	f.mu.Lock()
	f.utterances = append(f.utterances, u)
	f.cb = cb
	f.mu.Unlock()
}

func (f *fakeSpeaker) Pause()  { f.mu.Lock(); f.pauses++; f.mu.Unlock() }
func (f *fakeSpeaker) Resume() { f.mu.Lock(); f.resumes++; f.mu.Unlock() }
func (f *fakeSpeaker) Stop()   { f.mu.Lock(); f.stops++; f.mu.Unlock() }

// finish simulates natural completion of the current playback.
func (f *fakeSpeaker) finish() {
	f.mu.Lock()
	cb := f.cb
	f.cb = Callbacks{}
	f.mu.Unlock()
	if cb.OnFinish != nil {
		cb.OnFinish()
	}
}

// fail simulates a backend failure of the current playback.
func (f *fakeSpeaker) fail(err error) {
	f.mu.Lock()
	cb := f.cb
	f.cb = Callbacks{}
	f.mu.Unlock()
	if cb.OnError != nil {
		cb.OnError(err)
	}
}

func (f *fakeSpeaker) spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, u := range f.utterances {
		ids = append(ids, u.StopID)
	}
	return ids
}

func newTestQueue(spk Speaker) *Queue {
	return NewQueue(QueueConfig{Speaker: spk, Logger: zerolog.Nop()})
}

func TestQueue_EnqueueStartsIdleQueue(t *testing.T) {
	spk := &fakeSpeaker{}
	q := newTestQueue(spk)

	if got := q.State(); got != QueueIdle {
		t.Fatalf("expected idle, got %s", got)
	}

	if !q.Enqueue("a", "first stop", 1) {
		t.Fatal("expected enqueue to be accepted")
	}

	if got := q.State(); got != QueuePlaying {
		t.Errorf("expected playing, got %s", got)
	}
	cur, ok := q.Current()
	if !ok || cur.StopID != "a" || cur.State != ItemPlaying {
		t.Errorf("expected a playing, got %+v ok=%v", cur, ok)
	}
}

func TestQueue_DuplicateEnqueueIsNoOp(t *testing.T) {
	spk := &fakeSpeaker{}
	q := newTestQueue(spk)

	q.Enqueue("a", "text", 1)
	if q.Enqueue("a", "text", 1) {
		t.Error("expected duplicate enqueue to be rejected")
	}
	spk.finish()

	if got := spk.spoken(); len(got) != 1 {
		t.Errorf("expected exactly one playback, got %v", got)
	}
	if q.PendingCount() != 0 {
		t.Errorf("expected empty pending queue, got %d", q.PendingCount())
	}
}

func TestQueue_AutoChainsInOrder(t *testing.T) {
	spk := &fakeSpeaker{}
	q := newTestQueue(spk)

	q.Enqueue("a", "ta", 1)
	// b and c arrive out of order while a is playing.
	q.Enqueue("c", "tc", 3)
	q.Enqueue("b", "tb", 2)

	spk.finish() // a done
	spk.finish() // b done
	spk.finish() // c done

	want := []string{"a", "b", "c"}
	got := spk.spoken()
	if len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("expected playback %v, got %v", want, got)
	}
	if q.State() != QueueIdle {
		t.Errorf("expected idle after drain, got %s", q.State())
	}
	if _, ok := q.Current(); ok {
		t.Error("expected no current item after drain")
	}
}

func TestQueue_PauseResume(t *testing.T) {
	spk := &fakeSpeaker{}
	q := newTestQueue(spk)

	q.Enqueue("a", "ta", 1)
	q.Pause()

	if got := q.State(); got != QueuePaused {
		t.Errorf("expected paused, got %s", got)
	}
	if cur, ok := q.Current(); !ok || cur.StopID != "a" {
		t.Error("pause must not lose the current item")
	}

	q.Resume()
	if got := q.State(); got != QueuePlaying {
		t.Errorf("expected playing after resume, got %s", got)
	}
	if spk.pauses != 1 || spk.resumes != 1 {
		t.Errorf("expected backend pause/resume once, got %d/%d", spk.pauses, spk.resumes)
	}
}

func TestQueue_ResumeWithoutCurrentIsNoOp(t *testing.T) {
	spk := &fakeSpeaker{}
	q := newTestQueue(spk)

	q.Resume()
	if spk.resumes != 0 {
		t.Error("expected resume on empty queue to be a no-op")
	}
}

func TestQueue_SkipToNext(t *testing.T) {
	spk := &fakeSpeaker{}
	q := newTestQueue(spk)

	q.Enqueue("a", "ta", 1)
	q.Enqueue("b", "tb", 2)

	q.SkipToNext()

	if spk.stops != 1 {
		t.Errorf("expected backend stop on skip, got %d", spk.stops)
	}
	cur, ok := q.Current()
	if !ok || cur.StopID != "b" {
		t.Errorf("expected b playing after skip, got %+v", cur)
	}

	// Skipping the last item goes idle.
	q.SkipToNext()
	if got := q.State(); got != QueueIdle {
		t.Errorf("expected idle after skipping last item, got %s", got)
	}
}

func TestQueue_SkipBackwardReplaysCurrent(t *testing.T) {
	spk := &fakeSpeaker{}
	q := newTestQueue(spk)

	q.Enqueue("a", "ta", 1)
	q.SkipBackward()

	got := spk.spoken()
	if len(got) != 2 || got[0] != "a" || got[1] != "a" {
		t.Errorf("expected a replayed from the start, got %v", got)
	}
	// Replay must not require clearing the processed flag.
	if !q.Processed("a") {
		t.Error("expected a to remain in the processed-set")
	}
	if q.Enqueue("a", "ta", 1) {
		t.Error("replay must not re-open enqueue for the stop")
	}
}

func TestQueue_StopKeepsProcessedSet(t *testing.T) {
	spk := &fakeSpeaker{}
	q := newTestQueue(spk)

	q.Enqueue("a", "ta", 1)
	q.Enqueue("b", "tb", 2)
	q.Stop()

	if got := q.State(); got != QueueStopped {
		t.Errorf("expected stopped, got %s", got)
	}
	if q.PendingCount() != 0 {
		t.Error("expected pending items dropped")
	}
	// Re-entering a stop's radius after an explicit stop must not
	// re-narrate.
	if !q.Processed("a") || !q.Processed("b") {
		t.Error("expected processed-set retained after stop")
	}

	// Stop is idempotent.
	q.Stop()
}

func TestQueue_StopAndClearResetsProcessedSet(t *testing.T) {
	spk := &fakeSpeaker{}
	q := newTestQueue(spk)

	q.Enqueue("a", "ta", 1)
	q.StopAndClear()

	if q.Processed("a") {
		t.Error("expected processed-set cleared on teardown")
	}
}

func TestQueue_BackendErrorAdvances(t *testing.T) {
	spk := &fakeSpeaker{}
	q := newTestQueue(spk)

	q.Enqueue("a", "ta", 1)
	q.Enqueue("b", "tb", 2)

	backendErr := errors.New("engine crashed")
	spk.fail(backendErr)

	cur, ok := q.Current()
	if !ok || cur.StopID != "b" {
		t.Errorf("expected queue to advance past failing item, got %+v", cur)
	}
	if !errors.Is(q.LastError(), backendErr) {
		t.Errorf("expected last error surfaced, got %v", q.LastError())
	}
}

func TestQueue_StaleCallbackIgnored(t *testing.T) {
	spk := &fakeSpeaker{}
	q := newTestQueue(spk)

	q.Enqueue("a", "ta", 1)

	// Capture a's callbacks, then skip so a is no longer current.
	spk.mu.Lock()
	staleCB := spk.cb
	spk.mu.Unlock()

	q.Enqueue("b", "tb", 2)
	q.SkipToNext()

	// The force-terminated playback reports completion late.
	staleCB.OnFinish()

	cur, ok := q.Current()
	if !ok || cur.StopID != "b" {
		t.Errorf("stale callback must not advance the queue, got %+v", cur)
	}
}

// stopRacingSpeaker simulates a user stop landing while the queue is
// handing the next utterance to the backend: the backend Stop issued by
// a skip triggers a full queue Stop before the handover completes.
type stopRacingSpeaker struct {
	q       *Queue
	events  []string
	tripped bool
}

func (s *stopRacingSpeaker) Speak(u Utterance, _ Callbacks) {
	s.events = append(s.events, "speak:"+u.StopID)
}

func (s *stopRacingSpeaker) Pause()  {}
func (s *stopRacingSpeaker) Resume() {}

func (s *stopRacingSpeaker) Stop() {
	s.events = append(s.events, "stop")
	if !s.tripped {
		s.tripped = true
		s.q.Stop()
	}
}

func TestQueue_StopDuringHandoverLeavesBackendSilent(t *testing.T) {
	spk := &stopRacingSpeaker{}
	q := newTestQueue(spk)
	spk.q = q

	q.Enqueue("a", "ta", 1)
	q.Enqueue("b", "tb", 2)

	// The skip computes the next item, then Stop completes before the
	// handover. The backend must not be restarted with b afterwards.
	q.SkipToNext()

	if got := q.State(); got != QueueStopped {
		t.Fatalf("expected stopped, got %s", got)
	}
	for _, ev := range spk.events {
		if ev == "speak:b" {
			t.Fatalf("backend restarted after stop: %v", spk.events)
		}
	}
	if last := spk.events[len(spk.events)-1]; last != "stop" {
		t.Errorf("expected backend left stopped, got events %v", spk.events)
	}
	if _, ok := q.Current(); ok {
		t.Error("expected no current item after stop")
	}
}

func TestQueue_OnFinishedHook(t *testing.T) {
	spk := &fakeSpeaker{}
	var finished []Item
	q := NewQueue(QueueConfig{
		Speaker:    spk,
		Logger:     zerolog.Nop(),
		OnFinished: func(item Item) { finished = append(finished, item) },
	})

	q.Enqueue("a", "ta", 1)
	spk.finish()

	if len(finished) != 1 || finished[0].StopID != "a" || finished[0].State != ItemFinished {
		t.Errorf("expected finished hook for a, got %+v", finished)
	}
}

package narration

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ItemState describes the lifecycle of one queue item.
type ItemState string

const (
	ItemQueued      ItemState = "queued"
	ItemPlaying     ItemState = "playing"
	ItemFinished    ItemState = "finished"
	ItemSkipped     ItemState = "skipped"
	ItemInterrupted ItemState = "interrupted"
)

// QueueState describes the queue-level transport state.
type QueueState string

const (
	QueueIdle    QueueState = "idle"
	QueuePlaying QueueState = "playing"
	QueuePaused  QueueState = "paused"
	// QueueStopped is terminal for a traversal's queue.
	QueueStopped QueueState = "stopped"
)

// Item is one enqueued narration segment.
type Item struct {
	ID     string
	StopID string
	Text   string
	// Order is a copy of the stop's traversal order at enqueue time and
	// determines playback position.
	Order int
	State ItemState
}

// QueueConfig holds configuration for the narration queue.
type QueueConfig struct {
	// Speaker is the speech backend. Required.
	Speaker Speaker

	// Logger for queue operations.
	Logger zerolog.Logger

	// OnFinished is invoked after an item leaves playback, whether it
	// finished naturally, failed, or was skipped. Optional.
	OnFinished func(item Item)
}

// Queue is the ordered, de-duplicated narration queue. Pending items play
// in ascending traversal order, auto-chaining on completion; the caller
// never manually advances narration.
//
// De-dup is enforced by a processed-set holding every stop id ever
// enqueued in this traversal's lifetime. It is independent of the
// progress store's visited set: a stop can be visited before its
// narration finishes, but must never be enqueued twice.
type Queue struct {
	speaker    Speaker
	logger     zerolog.Logger
	onFinished func(item Item)

	mu        sync.Mutex
	state     QueueState
	pending   []*Item
	current   *Item
	processed map[string]struct{}
	lastErr   error
}

// NewQueue creates an idle narration queue.
func NewQueue(cfg QueueConfig) *Queue {
	return &Queue{
		speaker:    cfg.Speaker,
		logger:     cfg.Logger,
		onFinished: cfg.OnFinished,
		state:      QueueIdle,
		processed:  make(map[string]struct{}),
	}
}

// Enqueue adds a narration segment for a stop. A stop already in the
// processed-set is a no-op, as is any enqueue after Stop. If the queue is
// idle, playback starts immediately. Returns whether the item was
// accepted.
func (q *Queue) Enqueue(stopID, text string, order int) bool {
	q.mu.Lock()
	if q.state == QueueStopped {
		q.mu.Unlock()
		q.logger.Debug().Str("stop_id", stopID).Msg("queue stopped, dropping enqueue")
		return false
	}
	if _, dup := q.processed[stopID]; dup {
		q.mu.Unlock()
		return false
	}
	q.processed[stopID] = struct{}{}

	item := &Item{
		ID:     "itm_" + uuid.New().String()[:22],
		StopID: stopID,
		Text:   text,
		Order:  order,
		State:  ItemQueued,
	}
	q.insertLocked(item)

	var next *Item
	if q.state == QueueIdle {
		next = q.advanceLocked()
	}
	q.mu.Unlock()

	q.logger.Debug().Str("stop_id", stopID).Int("order", order).Msg("narration enqueued")
	if next != nil {
		q.speak(next)
	}
	return true
}

// Pause suspends the current playback without losing the current item or
// the pending queue.
func (q *Queue) Pause() {
	q.mu.Lock()
	if q.state != QueuePlaying || q.current == nil {
		q.mu.Unlock()
		return
	}
	q.state = QueuePaused
	q.mu.Unlock()

	q.speaker.Pause()
}

// Resume continues a paused playback. With no current item it is a no-op.
func (q *Queue) Resume() {
	q.mu.Lock()
	if q.state != QueuePaused || q.current == nil {
		q.mu.Unlock()
		return
	}
	q.state = QueuePlaying
	q.mu.Unlock()

	q.speaker.Resume()
}

// SkipToNext force-terminates the current playback and advances.
func (q *Queue) SkipToNext() {
	q.mu.Lock()
	if q.current == nil {
		q.mu.Unlock()
		return
	}
	skipped := *q.current
	skipped.State = ItemSkipped
	q.current = nil
	next := q.advanceLocked()
	q.mu.Unlock()

	q.speaker.Stop()
	q.notifyFinished(skipped)
	if next != nil {
		q.speak(next)
	}
}

// SkipBackward force-terminates the current playback and replays the
// current item from the start: it is re-enqueued at the front of the
// pending queue. The processed-set is untouched; it governs enqueue
// de-dup only, not replay.
func (q *Queue) SkipBackward() {
	q.mu.Lock()
	if q.current == nil {
		q.mu.Unlock()
		return
	}
	q.current.State = ItemQueued
	q.pending = append([]*Item{q.current}, q.pending...)
	q.current = nil
	next := q.advanceLocked()
	q.mu.Unlock()

	q.speaker.Stop()
	if next != nil {
		q.speak(next)
	}
}

// Stop force-terminates playback and drops all pending items. The
// processed-set is deliberately kept: re-entering a stop's radius after
// an explicit stop must not re-narrate it. Idempotent; terminal.
func (q *Queue) Stop() {
	q.stop(false)
}

// StopAndClear is Stop plus a processed-set reset. Used only on full
// traversal teardown or abandon, where re-narration on a later re-entry
// is acceptable.
func (q *Queue) StopAndClear() {
	q.stop(true)
}

func (q *Queue) stop(clearProcessed bool) {
	q.mu.Lock()
	if q.state == QueueStopped {
		if clearProcessed {
			q.processed = make(map[string]struct{})
		}
		q.mu.Unlock()
		return
	}
	q.state = QueueStopped
	if q.current != nil {
		q.current.State = ItemInterrupted
		q.current = nil
	}
	q.pending = nil
	if clearProcessed {
		q.processed = make(map[string]struct{})
	}
	q.mu.Unlock()

	q.speaker.Stop()
}

// State reports the queue transport state.
func (q *Queue) State() QueueState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Current returns a copy of the item being played, if any.
func (q *Queue) Current() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current == nil {
		return Item{}, false
	}
	return *q.current, true
}

// PendingCount returns the number of items waiting to play.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Processed reports whether a stop has ever been enqueued this traversal.
func (q *Queue) Processed(stopID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.processed[stopID]
	return ok
}

// LastError returns the most recent backend failure, if any. Errors are
// isolated to the failing item; the queue keeps draining.
func (q *Queue) LastError() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastErr
}

// insertLocked places an item into the pending queue at the position
// determined by its order, ascending, after any item with equal order.
func (q *Queue) insertLocked(item *Item) {
	at := len(q.pending)
	for i, p := range q.pending {
		if item.Order < p.Order {
			at = i
			break
		}
	}
	q.pending = append(q.pending, nil)
	copy(q.pending[at+1:], q.pending[at:])
	q.pending[at] = item
}

// advanceLocked pops the lowest-order pending item into current, or goes
// idle when none remain. Returns the item to hand to the speaker.
func (q *Queue) advanceLocked() *Item {
	if len(q.pending) == 0 {
		q.current = nil
		q.state = QueueIdle
		return nil
	}
	item := q.pending[0]
	q.pending = q.pending[1:]
	item.State = ItemPlaying
	q.current = item
	q.state = QueuePlaying
	return item
}

// speak hands an item to the backend. Completion callbacks carry the
// item id so a late callback from a force-terminated playback is
// recognized as stale and ignored.
//
// The item was selected under the lock but the backend call runs outside
// it, so a concurrent Stop can complete in between. The state is checked
// on both sides of the handover: before, so a stopped queue drops the
// utterance, and after, so a Stop whose speaker.Stop ran before our Speak
// reached the backend still leaves the backend silenced.
func (q *Queue) speak(item *Item) {
	q.mu.Lock()
	if q.state == QueueStopped || q.current == nil || q.current.ID != item.ID {
		q.mu.Unlock()
		return
	}
	q.mu.Unlock()

	u := Utterance{ItemID: item.ID, StopID: item.StopID, Text: item.Text}
	q.speaker.Speak(u, Callbacks{
		OnFinish: func() { q.playbackDone(item.ID, nil) },
		OnError:  func(err error) { q.playbackDone(item.ID, err) },
	})

	q.mu.Lock()
	stopped := q.state == QueueStopped
	q.mu.Unlock()
	if stopped {
		q.speaker.Stop()
	}
}

// playbackDone handles natural completion or backend failure of the
// current item and auto-chains the next one.
func (q *Queue) playbackDone(itemID string, err error) {
	q.mu.Lock()
	if q.current == nil || q.current.ID != itemID {
		q.mu.Unlock()
		return
	}

	finished := *q.current
	if err != nil {
		q.lastErr = err
		finished.State = ItemInterrupted
		q.logger.Error().Err(err).Str("stop_id", finished.StopID).Msg("speech backend failed, advancing")
	} else {
		finished.State = ItemFinished
	}
	q.current = nil
	next := q.advanceLocked()
	q.mu.Unlock()

	q.notifyFinished(finished)
	if next != nil {
		q.speak(next)
	}
}

func (q *Queue) notifyFinished(item Item) {
	if q.onFinished != nil {
		q.onFinished(item)
	}
}

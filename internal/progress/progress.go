// Package progress delivers transfer progress events to listeners. Events
// fire on the goroutine that moves the bytes; nothing runs in the background.
package progress

import "sync"

// EventType identifies a progress event.
type EventType int

const (
	Started EventType = iota + 1
	BytesTransferred
	Completed
	Canceled
	Failed
)

func (t EventType) String() string {
	switch t {
	case Started:
		return "started"
	case BytesTransferred:
		return "bytes"
	case Completed:
		return "completed"
	case Canceled:
		return "canceled"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further events follow t.
func (t EventType) Terminal() bool {
	return t == Completed || t == Canceled || t == Failed
}

// Event is a single progress notification.
type Event struct {
	Type EventType
	// Bytes is the number of bytes reported by this event.
	Bytes int64
	// Total is the cumulative number of bytes transferred so far.
	Total int64
	// Err is set on Failed events.
	Err error
}

// Listener receives progress events.
type Listener interface {
	ProgressChanged(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

// ProgressChanged calls f(e).
func (f ListenerFunc) ProgressChanged(e Event) { f(e) }

// DefaultWatermark is the number of bytes accumulated between BytesTransferred events.
const DefaultWatermark int64 = 8 * 1024

// Tracker turns byte counts into events for a single transfer. Start and
// the terminal events fire at most once. Listeners must not call back into
// the tracker.
type Tracker struct {
	mu         sync.Mutex
	listener   Listener
	watermark  int64
	unreported int64
	total      int64
	started    bool
	done       bool
}

// NewTracker returns a tracker firing BytesTransferred once at least
// watermark bytes have accumulated. A non-positive watermark uses DefaultWatermark.
func NewTracker(l Listener, watermark int64) *Tracker {
	if watermark <= 0 {
		watermark = DefaultWatermark
	}
	return &Tracker{listener: l, watermark: watermark}
}

// Start fires the Started event.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startLocked()
}

func (t *Tracker) startLocked() {
	if t.started || t.done {
		return
	}
	t.started = true
	t.emit(Event{Type: Started})
}

// Transferred records n bytes and fires when the watermark is crossed.
func (t *Tracker) Transferred(n int64) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.startLocked()
	t.total += n
	t.unreported += n
	if t.unreported >= t.watermark {
		t.flushLocked()
	}
}

// Complete flushes pending bytes and fires Completed.
func (t *Tracker) Complete() {
	t.finish(Event{Type: Completed})
}

// Cancel fires Canceled.
func (t *Tracker) Cancel() {
	t.finish(Event{Type: Canceled})
}

// Fail fires Failed with err.
func (t *Tracker) Fail(err error) {
	t.finish(Event{Type: Failed, Err: err})
}

// Total returns the bytes recorded so far.
func (t *Tracker) Total() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Done reports whether a terminal event has fired.
func (t *Tracker) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

func (t *Tracker) finish(e Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.startLocked()
	t.flushLocked()
	t.done = true
	e.Total = t.total
	t.emit(e)
}

func (t *Tracker) flushLocked() {
	if t.unreported == 0 {
		return
	}
	n := t.unreported
	t.unreported = 0
	t.emit(Event{Type: BytesTransferred, Bytes: n, Total: t.total})
}

func (t *Tracker) emit(e Event) {
	if t.listener == nil {
		return
	}
	t.listener.ProgressChanged(e)
}

// Package notify delivers user-facing notifications about pool
// deployments, rate-limited so bursts of stream events collapse into a
// single batch instead of a notification storm.
package notify

import (
	"sync"
	"time"
)

// Level classifies a notification for presentation.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one user-visible message. PoolID is zero for
// batch-level messages that aggregate several pools.
type Notification struct {
	PoolID  int64
	Level   Level
	Message string
}

// Sink receives flushed notification batches.
type Sink interface {
	Publish(batch []Notification)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(batch []Notification)

func (f SinkFunc) Publish(batch []Notification) { f(batch) }

// Debouncer coalesces notifications into batches. The first offer after
// a quiet period starts a short collection window; everything offered
// during the window joins the batch. After a batch flushes, offers
// inside the cooldown are dropped outright.
//
// The debouncer is global across pools. Two pools finishing together
// produce one batch, not two notifications.
type Debouncer struct {
	sink     Sink
	cooldown time.Duration
	delay    time.Duration

	mu        sync.Mutex
	pending   []Notification
	timer     *time.Timer
	lastFlush time.Time
	now       func() time.Time
}

func NewDebouncer(sink Sink, cooldown, delay time.Duration) *Debouncer {
	return &Debouncer{
		sink:     sink,
		cooldown: cooldown,
		delay:    delay,
		now:      time.Now,
	}
}

// Offer submits a notification. It never blocks; delivery happens on
// the timer goroutine after the collection window closes.
func (d *Debouncer) Offer(n Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.pending = append(d.pending, n)
		return
	}
	if !d.lastFlush.IsZero() && d.now().Sub(d.lastFlush) < d.cooldown {
		return
	}
	d.pending = append(d.pending, n)
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	batch := d.pending
	d.pending = nil
	d.timer = nil
	d.lastFlush = d.now()
	d.mu.Unlock()

	if len(batch) > 0 {
		d.sink.Publish(batch)
	}
}

// Stop cancels any pending flush. Notifications collected but not yet
// flushed are discarded.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = nil
}

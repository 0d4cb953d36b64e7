package watch

import (
	"time"
)

// Debouncer coalesces rapid events into batches. Paths are collected in
// arrival order without duplicates; the batch becomes ready once no new
// path arrived for the configured interval.
//
// A Debouncer is owned by a single goroutine: it is meant to be driven from
// the select loop that also receives the events.
type Debouncer struct {
	interval time.Duration
	timer    *time.Timer
	pending  []string
	seen     map[string]struct{}
}

// NewDebouncer creates a debouncer that waits for interval of quiet before
// the collected batch is ready.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{
		interval: interval,
		seen:     make(map[string]struct{}),
	}
}

// Add records an event for path and restarts the quiet period.
func (d *Debouncer) Add(path string) {
	if _, ok := d.seen[path]; !ok {
		d.seen[path] = struct{}{}
		d.pending = append(d.pending, path)
	}

	if d.timer == nil {
		d.timer = time.NewTimer(d.interval)
		return
	}

	d.timer.Reset(d.interval)
}

// C returns the channel that fires when the pending batch is ready. It is
// nil, and therefore blocks forever in a select, while nothing is pending.
func (d *Debouncer) C() <-chan time.Time {
	if len(d.pending) == 0 || d.timer == nil {
		return nil
	}

	return d.timer.C
}

// Flush returns the pending batch and starts a new one.
func (d *Debouncer) Flush() []string {
	batch := d.pending

	d.pending = nil
	d.seen = make(map[string]struct{})

	return batch
}

// Len returns the number of pending paths.
func (d *Debouncer) Len() int { return len(d.pending) }

// Stop cancels any pending batch.
func (d *Debouncer) Stop() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	d.Flush()
}

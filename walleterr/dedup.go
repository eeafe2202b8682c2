package walleterr

import (
	"sync"
	"time"
)

// Deduper suppresses duplicate user-visible failures by message within a
// sliding time window, so one underlying fault does not produce a flood of
// identical notifications.
type Deduper struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewDeduper creates a deduper with the given suppression window.
func NewDeduper(window time.Duration) *Deduper {
	return &Deduper{
		window: window,
		now:    time.Now,
		seen:   map[string]time.Time{},
	}
}

// ShouldNotify reports whether err should be surfaced to the user, recording
// the message so repeats inside the window are suppressed. A nil err is never
// surfaced.
func (d *Deduper) ShouldNotify(err error) bool {
	if err == nil {
		return false
	}
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	for msg, at := range d.seen {
		if now.Sub(at) > d.window {
			delete(d.seen, msg)
		}
	}

	msg := err.Error()
	if at, ok := d.seen[msg]; ok && now.Sub(at) <= d.window {
		return false
	}
	d.seen[msg] = now
	return true
}

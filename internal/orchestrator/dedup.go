package orchestrator

import (
	"sync"
	"time"
)

// Deduplicator guards against duplicate delivery of the same inbound event.
// For any event ID, exactly one ShouldProcess call returns true (first-seen
// wins) for the lifetime of the retention window, no matter how calls
// interleave: the check-and-insert is a single operation under the lock.
type Deduplicator struct {
	mu         sync.Mutex
	retention  time.Duration
	maxEntries int
	seen       map[string]time.Time
	order      []string // insertion order, for expiry scan and size eviction
	now        func() time.Time
}

// NewDeduplicator builds a deduplicator with a time retention window and a
// hard size bound. Both are deployment configuration, not hidden constants;
// non-positive values fall back to a day and 10000 entries.
func NewDeduplicator(retention time.Duration, maxEntries int) *Deduplicator {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &Deduplicator{
		retention:  retention,
		maxEntries: maxEntries,
		seen:       make(map[string]time.Time),
		now:        time.Now,
	}
}

// ShouldProcess reports whether the event has not been seen within the
// retention window, recording it atomically when new.
func (d *Deduplicator) ShouldProcess(eventID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.evictLocked(now)

	if _, dup := d.seen[eventID]; dup {
		return false
	}
	d.seen[eventID] = now
	d.order = append(d.order, eventID)
	return true
}

// Forget releases an event ID so the same event can be re-delivered. Used
// when processing failed after the check-and-insert, e.g. a collaborator
// timeout where no transition was committed.
func (d *Deduplicator) Forget(eventID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, eventID)
}

// Len reports the current number of retained event IDs.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

func (d *Deduplicator) evictLocked(now time.Time) {
	cutoff := now.Add(-d.retention)
	for len(d.order) > 0 {
		oldest := d.order[0]
		at, ok := d.seen[oldest]
		expired := ok && at.Before(cutoff)
		overCap := len(d.seen) >= d.maxEntries
		if !expired && !overCap {
			return
		}
		d.order = d.order[1:]
		if ok {
			delete(d.seen, oldest)
		}
	}
}

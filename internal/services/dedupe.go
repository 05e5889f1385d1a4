package services

import (
	"sync"
	"time"
)

// Deduplicator prevents reprocessing the same external listing id
// within a session window. IsDuplicate and MarkProcessed are two
// deliberate steps: callers check before spending expensive work and
// mark only after committing to process. The storage layer's unique
// index is the second guard against races across restarts.
type Deduplicator struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
}

// NewDeduplicator creates a deduplicator with the given session window.
func NewDeduplicator(window time.Duration) *Deduplicator {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Deduplicator{
		seen:   make(map[string]time.Time),
		window: window,
	}
}

// IsDuplicate reports whether the id was marked within the window.
func (d *Deduplicator) IsDuplicate(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	at, ok := d.seen[id]
	if !ok {
		return false
	}
	if time.Since(at) > d.window {
		delete(d.seen, id)
		return false
	}
	return true
}

// MarkProcessed records the id as processed now.
func (d *Deduplicator) MarkProcessed(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[id] = time.Now()
	// Opportunistic prune so the map doesn't grow without bound over a
	// long-running session.
	if len(d.seen) > 50000 {
		cutoff := time.Now().Add(-d.window)
		for k, at := range d.seen {
			if at.Before(cutoff) {
				delete(d.seen, k)
			}
		}
	}
}

// Size returns the number of tracked ids.
func (d *Deduplicator) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

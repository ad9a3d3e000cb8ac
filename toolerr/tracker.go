package toolerr

import "sync"

// Tracker counts classified errors per category.
//
// Contract:
// - Concurrency: safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	counts map[Category]int
	total  int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{counts: make(map[Category]int)}
}

// Record counts e. Nil errors are ignored.
func (t *Tracker) Record(e *Error) {
	if e == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[e.Category]++
	t.total++
}

// Count returns how many errors of category c were recorded.
func (t *Tracker) Count(c Category) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[c]
}

// Total returns how many errors were recorded.
func (t *Tracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Snapshot returns a copy of the per-category counts.
func (t *Tracker) Snapshot() map[Category]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[Category]int, len(t.counts))
	for c, n := range t.counts {
		out[c] = n
	}
	return out
}

// Reset clears all counts.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts = make(map[Category]int)
	t.total = 0
}

package monitor

import (
	"context"
	"sort"
	"sync"
)

// handle is the cancellation handle of one in-flight attempt.
type handle struct {
	mu        sync.Mutex
	cancel    context.CancelCauseFunc
	signalled bool
}

// signal cancels the attempt with cause. Only the first call has an effect.
func (h *handle) signal(cause error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.signalled {
		return false
	}
	h.signalled = true
	h.cancel(cause)
	return true
}

// activeTable maps execution IDs to the handles of in-flight attempts.
// An entry exists exactly while its attempt runs.
type activeTable struct {
	mu      sync.Mutex
	entries map[string]*handle
}

func newActiveTable() *activeTable {
	return &activeTable{entries: make(map[string]*handle)}
}

func (t *activeTable) add(id string, cancel context.CancelCauseFunc) *handle {
	h := &handle{cancel: cancel}
	t.mu.Lock()
	t.entries[id] = h
	t.mu.Unlock()
	return h
}

func (t *activeTable) remove(id string) {
	t.mu.Lock()
	delete(t.entries, id)
	t.mu.Unlock()
}

func (t *activeTable) get(id string) (*handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.entries[id]
	return h, ok
}

func (t *activeTable) ids() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.entries))
	for id := range t.entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (t *activeTable) handles() []*handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*handle, 0, len(t.entries))
	for _, h := range t.entries {
		out = append(out, h)
	}
	return out
}

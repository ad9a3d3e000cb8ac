package monitor

import "sync"

// DefaultHistoryCapacity is the number of records kept when no capacity is
// configured.
const DefaultHistoryCapacity = 1000

// Filter selects records from the history.
type Filter struct {
	// Tool keeps only records for this tool name when non-empty.
	Tool string

	// Limit keeps only the most recent N matching records when positive.
	Limit int
}

// History is a fixed-capacity ring of execution records. Once full, each
// append evicts the oldest record.
//
// Contract:
// - Concurrency: safe for concurrent use.
type History struct {
	mu    sync.RWMutex
	buf   []ExecutionRecord
	start int
	size  int
}

// NewHistory creates a history holding at most capacity records.
// A non-positive capacity uses DefaultHistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{buf: make([]ExecutionRecord, capacity)}
}

// Append adds rec, evicting the oldest record when full.
func (h *History) Append(rec ExecutionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = rec
		h.size++
		return
	}
	h.buf[h.start] = rec
	h.start = (h.start + 1) % len(h.buf)
}

// Records returns matching records oldest first.
func (h *History) Records(f Filter) []ExecutionRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]ExecutionRecord, 0, h.size)
	for i := 0; i < h.size; i++ {
		rec := h.buf[(h.start+i)%len(h.buf)]
		if f.Tool != "" && rec.ToolName != f.Tool {
			continue
		}
		out = append(out, rec)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// Len returns the number of stored records.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// Cap returns the capacity.
func (h *History) Cap() int {
	return len(h.buf)
}

// Clear removes all records.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.buf)
	h.start = 0
	h.size = 0
}

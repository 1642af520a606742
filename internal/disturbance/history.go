package disturbance

import "github.com/roach88/carbonspin/internal/ir"

// DefaultHistoryCapacity bounds the rolling history when none is configured.
const DefaultHistoryCapacity = 50

// History is the bounded rolling record of fired disturbances, most recent
// first. When full, pushing drops the oldest record.
type History struct {
	capacity int
	records  []ir.HistoryRecord
}

// NewHistory creates an empty history. capacity <= 0 uses
// DefaultHistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{capacity: capacity, records: make([]ir.HistoryRecord, 0, capacity)}
}

// PushFront records a fired disturbance.
func (h *History) PushFront(rec ir.HistoryRecord) {
	if len(h.records) < h.capacity {
		h.records = append(h.records, ir.HistoryRecord{})
	}
	copy(h.records[1:], h.records[:len(h.records)-1])
	h.records[0] = rec
}

// Records returns the history, most recent first. The slice is valid until
// the next PushFront or Clear and must not be modified.
func (h *History) Records() []ir.HistoryRecord {
	return h.records
}

// Len returns the number of records held.
func (h *History) Len() int { return len(h.records) }

// Clear drops every record.
func (h *History) Clear() {
	h.records = h.records[:0]
}

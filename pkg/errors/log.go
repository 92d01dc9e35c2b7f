package errors

import "sync"

// DefaultMaxRecords bounds the error log when no explicit bound is configured
const DefaultMaxRecords = 1000

// ErrorLog is an ordered, append-only (until cleared) sequence of records.
// With a positive capacity it is a ring buffer that evicts the oldest record;
// a non-positive capacity means unbounded growth.
type ErrorLog struct {
	mu       sync.RWMutex
	records  []ErrorRecord
	capacity int
	head     int
	count    int
	seq      uint64
	evicted  uint64
}

// NewErrorLog creates a log holding at most capacity records
func NewErrorLog(capacity int) *ErrorLog {
	l := &ErrorLog{capacity: capacity}
	l.reset()
	return l
}

func (l *ErrorLog) bounded() bool {
	return l.capacity > 0
}

func (l *ErrorLog) reset() {
	if l.bounded() {
		l.records = make([]ErrorRecord, l.capacity)
	} else {
		l.records = nil
	}
	l.head = 0
	l.count = 0
}

// Append assigns the next sequence number to rec and appends it. It reports
// whether the oldest record was evicted to make room.
func (l *ErrorLog) Append(rec ErrorRecord) (ErrorRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	rec.Seq = l.seq

	if !l.bounded() {
		l.records = append(l.records, rec)
		l.count++
		return rec, false
	}

	evicted := l.count == l.capacity
	l.records[l.head] = rec
	l.head = (l.head + 1) % l.capacity
	if evicted {
		l.evicted++
	} else {
		l.count++
	}
	return rec, evicted
}

// Snapshot returns all records in capture order (oldest first). The returned
// slice is a copy owned by the caller.
func (l *ErrorLog) Snapshot() []ErrorRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]ErrorRecord, l.count)
	if !l.bounded() {
		copy(result, l.records)
		return result
	}

	// A full ring starts at head (the oldest entry)
	start := 0
	if l.count == l.capacity {
		start = l.head
	}
	for i := 0; i < l.count; i++ {
		result[i] = l.records[(start+i)%l.capacity]
	}
	return result
}

// Clear replaces the contents with an empty sequence and returns how many
// records were removed. Sequence numbers keep increasing across clears.
func (l *ErrorLog) Clear() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := l.count
	l.reset()
	return removed
}

// Len returns the number of records held
func (l *ErrorLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// Capacity returns the configured bound (non-positive means unbounded)
func (l *ErrorLog) Capacity() int {
	return l.capacity
}

// Evicted returns how many records were dropped to honour the bound
func (l *ErrorLog) Evicted() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.evicted
}

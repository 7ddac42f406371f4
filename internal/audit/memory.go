package audit

import (
	"context"
	"errors"
	"sync"
	"time"
)

const defaultCapacity = 500

// MemoryLog keeps the most recent audit entries in process.
type MemoryLog struct {
	mu       sync.RWMutex
	capacity int
	entries  []Entry
	now      func() time.Time
}

// NewMemoryLog constructs a log holding up to capacity entries. Zero or less
// uses the default capacity.
func NewMemoryLog(capacity int) *MemoryLog {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &MemoryLog{
		capacity: capacity,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Log appends an entry, filling in id, time and digest when missing.
func (l *MemoryLog) Log(_ context.Context, entry Entry) error {
	if l == nil {
		return errors.New("audit log: nil")
	}
	if entry.Action == "" {
		return errors.New("audit log: empty action")
	}
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now()
	}
	if entry.PayloadDigest == "" {
		entry.PayloadDigest = DigestJSON(entry.Metadata)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if overflow := len(l.entries) - l.capacity; overflow > 0 {
		l.entries = append([]Entry(nil), l.entries[overflow:]...)
	}
	return nil
}

// Recent returns up to limit entries, newest first. Zero or less returns all.
func (l *MemoryLog) Recent(limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := len(l.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Entry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

package logging

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Record is a formatted log record stored in a Buffer.
type Record struct {
	Time    time.Time
	Level   slog.Level
	Message string // message followed by key=value attributes
}

// Buffer is a thread-safe circular buffer of recent log records.
type Buffer struct {
	mu    sync.RWMutex
	buf   []Record
	size  int
	head  int // next write position
	count int // number of records stored

	subMu sync.RWMutex
	subs  map[*Subscription]struct{}
}

// Subscription receives new records from a Buffer.
type Subscription struct {
	C chan Record
	b *Buffer
}

// Close unsubscribes. The channel is left open.
func (s *Subscription) Close() {
	s.b.unsubscribe(s)
}

// NewBuffer creates a buffer holding up to size records.
func NewBuffer(size int) *Buffer {
	if size < 1 {
		size = 1
	}
	return &Buffer{
		buf:  make([]Record, size),
		size: size,
		subs: make(map[*Subscription]struct{}),
	}
}

// Add appends a record, overwriting the oldest if full. Subscribers are
// notified without blocking.
func (b *Buffer) Add(rec Record) {
	b.mu.Lock()
	b.buf[b.head] = rec
	b.head = (b.head + 1) % b.size
	if b.count < b.size {
		b.count++
	}
	b.mu.Unlock()

	b.subMu.RLock()
	for sub := range b.subs {
		select {
		case sub.C <- rec:
		default: // drop if subscriber is slow
		}
	}
	b.subMu.RUnlock()
}

// Subscribe returns a Subscription receiving new records.
func (b *Buffer) Subscribe(bufSize int) *Subscription {
	if bufSize < 1 {
		bufSize = 64
	}
	sub := &Subscription{C: make(chan Record, bufSize), b: b}
	b.subMu.Lock()
	b.subs[sub] = struct{}{}
	b.subMu.Unlock()
	return sub
}

func (b *Buffer) unsubscribe(sub *Subscription) {
	b.subMu.Lock()
	delete(b.subs, sub)
	b.subMu.Unlock()
}

// Filter selects records.
type Filter struct {
	MinLevel slog.Level
	// Contains is a case-insensitive substring of the formatted message,
	// e.g. "device=r1".
	Contains string
}

// Match reports whether rec passes the filter.
func (f Filter) Match(rec *Record) bool {
	if rec.Level < f.MinLevel {
		return false
	}
	return f.Contains == "" || strings.Contains(strings.ToLower(rec.Message), strings.ToLower(f.Contains))
}

// Latest returns up to n matching records, newest first.
func (b *Buffer) Latest(n int, f Filter) []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []Record
	for i := 0; i < b.count && len(result) < n; i++ {
		idx := (b.head - 1 - i + b.size) % b.size
		if f.Match(&b.buf[idx]) {
			result = append(result, b.buf[idx])
		}
	}
	return result
}

// Len returns the number of records held.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

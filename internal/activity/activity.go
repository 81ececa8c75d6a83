// Package activity keeps the most recent log records in memory so the floor
// console can show what happened without reading the process output.
package activity

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultSize is the ring capacity used when none is configured.
const DefaultSize = 2000

// Entry is one captured log record.
type Entry struct {
	Seq     uint64         `json:"seq"`
	Time    time.Time      `json:"time"`
	Level   slog.Level     `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Filter narrows a Query. Zero fields match everything.
type Filter struct {
	Since    time.Time
	MinLevel slog.Level
	Limit    int // keep only the newest Limit matches

	// Key and Value match entries whose attribute Key formats as Value,
	// e.g. Key "waiter", Value "3".
	Key   string
	Value string
}

func (f Filter) match(e Entry) bool {
	if !f.Since.IsZero() && e.Time.Before(f.Since) {
		return false
	}
	if e.Level < f.MinLevel {
		return false
	}
	if f.Key == "" {
		return true
	}
	v, ok := e.Attrs[f.Key]
	return ok && fmt.Sprint(v) == f.Value
}

// Buffer is a fixed-size ring of entries, safe for concurrent use.
type Buffer struct {
	mu   sync.Mutex
	ring []Entry
	next int
	full bool
	seq  uint64
}

// New returns a buffer holding up to size entries.
func New(size int) *Buffer {
	if size <= 0 {
		size = DefaultSize
	}
	return &Buffer{ring: make([]Entry, size)}
}

// Write stores e, overwriting the oldest entry when the ring is full.
func (b *Buffer) Write(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	e.Seq = b.seq
	b.ring[b.next] = e
	b.next++
	if b.next == len(b.ring) {
		b.next = 0
		b.full = true
	}
}

// Len returns the number of entries held.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return len(b.ring)
	}
	return b.next
}

// Query returns matching entries, oldest first.
func (b *Buffer) Query(f Filter) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Entry
	visit := func(es []Entry) {
		for _, e := range es {
			if f.match(e) {
				out = append(out, e)
			}
		}
	}
	if b.full {
		visit(b.ring[b.next:])
	}
	visit(b.ring[:b.next])

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

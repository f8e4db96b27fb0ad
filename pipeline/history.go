package pipeline

import (
	"context"
	"sync"
)

// DefaultHistoryCapacity holds about 30 seconds at 4 fps
const DefaultHistoryCapacity = 120

// HistorySink is a bounded FIFO of recent snapshots. When full, publishing
// evicts the oldest entry.
type HistorySink struct {
	mu     sync.Mutex
	buf    []*Snapshot
	head   int
	size   int
	closed bool
	notify chan struct{}
	done   chan struct{}

	dropped uint64
}

// NewHistorySink creates a ring of the given capacity
func NewHistorySink(capacity int) *HistorySink {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &HistorySink{
		buf:    make([]*Snapshot, capacity),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Publish retains s and appends it
func (h *HistorySink) Publish(s *Snapshot) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	var evicted *Snapshot
	if h.size == len(h.buf) {
		evicted = h.buf[h.head]
		h.buf[h.head] = nil
		h.head = (h.head + 1) % len(h.buf)
		h.size--
		h.dropped++
	}
	h.buf[(h.head+h.size)%len(h.buf)] = s.Retain()
	h.size++
	h.mu.Unlock()

	if evicted != nil {
		evicted.Release()
	}
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Drain waits until at least one snapshot is buffered or ctx ends, then
// removes and returns every buffered snapshot, oldest first. The caller
// owns the returned references.
func (h *HistorySink) Drain(ctx context.Context) ([]*Snapshot, error) {
	for {
		h.mu.Lock()
		if h.size > 0 {
			out := h.popAll()
			h.mu.Unlock()
			return out, nil
		}
		closed := h.closed
		h.mu.Unlock()
		if closed {
			return nil, ErrClosed
		}

		select {
		case <-h.notify:
		case <-h.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// popAll must be called with mu held
func (h *HistorySink) popAll() []*Snapshot {
	out := make([]*Snapshot, 0, h.size)
	for h.size > 0 {
		out = append(out, h.buf[h.head])
		h.buf[h.head] = nil
		h.head = (h.head + 1) % len(h.buf)
		h.size--
	}
	h.head = 0
	return out
}

// Len returns the number of buffered snapshots
func (h *HistorySink) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size
}

// Cap returns the ring capacity
func (h *HistorySink) Cap() int {
	return len(h.buf)
}

// Dropped returns how many snapshots were evicted by overflow
func (h *HistorySink) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Close releases buffered snapshots and wakes blocked drains
func (h *HistorySink) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	rest := h.popAll()
	h.closed = true
	close(h.done)
	h.mu.Unlock()

	ReleaseAll(rest)
}

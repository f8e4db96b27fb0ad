package pipeline

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by reads on a closed sink
var ErrClosed = errors.New("sink closed")

// LiveSink holds only the most recent snapshot. Publishing evicts the
// previous one; reads never consume it.
type LiveSink struct {
	mu      sync.Mutex
	current *Snapshot
	closed  bool
	ready   chan struct{}
	once    sync.Once

	published uint64
	evicted   uint64
}

// NewLiveSink creates an empty live sink
func NewLiveSink() *LiveSink {
	return &LiveSink{ready: make(chan struct{})}
}

// Publish retains s and makes it the current snapshot
func (l *LiveSink) Publish(s *Snapshot) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	prev := l.current
	l.current = s.Retain()
	l.published++
	if prev != nil {
		l.evicted++
	}
	l.mu.Unlock()

	if prev != nil {
		prev.Release()
	}
	l.once.Do(func() { close(l.ready) })
}

// Latest blocks until a snapshot has been published or ctx ends, then
// returns the current snapshot. The caller must Release it.
func (l *LiveSink) Latest(ctx context.Context) (*Snapshot, error) {
	select {
	case <-l.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s, ok := l.TryLatest()
	if !ok {
		return nil, ErrClosed
	}
	return s, nil
}

// TryLatest returns the current snapshot without blocking
func (l *LiveSink) TryLatest() (*Snapshot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return nil, false
	}
	return l.current.Retain(), true
}

// Counts returns how many snapshots were published and evicted
func (l *LiveSink) Counts() (published, evicted uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.published, l.evicted
}

// Close releases the held snapshot and wakes blocked readers
func (l *LiveSink) Close() {
	l.mu.Lock()
	prev := l.current
	l.current = nil
	l.closed = true
	l.mu.Unlock()

	if prev != nil {
		prev.Release()
	}
	l.once.Do(func() { close(l.ready) })
}

package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/shurvir/hailo-robot/calibration"
	"github.com/shurvir/hailo-robot/pipeline"
)

const (
	DefaultPollInterval  = 250 * time.Millisecond
	DefaultMissTolerance = 25
)

// FrameSource yields the most recent snapshot. The caller releases it.
type FrameSource interface {
	Latest(ctx context.Context) (*pipeline.Snapshot, error)
}

// Mover issues one relative move
type Mover interface {
	Move(ctx context.Context, direction string, degrees float64) error
}

// Session is one closed-loop "track object" run
type Session struct {
	ID      string
	Object  string
	TrackID int

	active atomic.Bool
	misses atomic.Int32
	polls  atomic.Int32
	moves  atomic.Int32
	done   chan struct{}
	cancel context.CancelFunc

	// owned by the run goroutine
	lastSeq uint64
	acted   bool
}

// Active reports whether the session is still polling
func (s *Session) Active() bool { return s.active.Load() }

// Misses is the current run of polls without a qualifying detection
func (s *Session) Misses() int { return int(s.misses.Load()) }

// Polls is the number of completed polls
func (s *Session) Polls() int { return int(s.polls.Load()) }

// Moves is the number of move directives issued
func (s *Session) Moves() int { return int(s.moves.Load()) }

// Done is closed once the session has exited
func (s *Session) Done() <-chan struct{} { return s.done }

// Sessions runs at most one tracking session at a time
type Sessions struct {
	source    FrameSource
	mover     Mover
	locator   *calibration.Locator
	interval  time.Duration
	tolerance int

	mu      sync.Mutex
	current *Session
}

// NewSessions creates the session runner. Non-positive interval or tolerance
// fall back to the defaults.
func NewSessions(source FrameSource, mover Mover, locator *calibration.Locator, interval time.Duration, tolerance int) *Sessions {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if tolerance <= 0 {
		tolerance = DefaultMissTolerance
	}
	return &Sessions{
		source:    source,
		mover:     mover,
		locator:   locator,
		interval:  interval,
		tolerance: tolerance,
	}
}

// Start cancels any running session and starts tracking the named object.
// A zero trackID follows the first qualifying detection of the class.
func (m *Sessions) Start(ctx context.Context, object string, trackID int) *Session {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		ID:      uuid.NewString(),
		Object:  object,
		TrackID: trackID,
		done:    make(chan struct{}),
		cancel:  cancel,
	}
	s.active.Store(true)

	m.mu.Lock()
	prev := m.current
	m.current = s
	m.mu.Unlock()

	if prev != nil {
		prev.stop()
		<-prev.done
	}

	log.Infof("Tracking session %s started for %q (track %d)", s.ID, object, trackID)
	go m.run(ctx, s)
	return s
}

// Stop cancels the running session, if any, and waits for it to exit.
// It reports whether a session was active.
func (m *Sessions) Stop() bool {
	m.mu.Lock()
	s := m.current
	m.current = nil
	m.mu.Unlock()

	if s == nil {
		return false
	}
	wasActive := s.Active()
	s.stop()
	<-s.done
	return wasActive
}

// Current returns the latest session, nil if none was started
func (m *Sessions) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (s *Session) stop() {
	s.active.Store(false)
	s.cancel()
}

func (m *Sessions) run(ctx context.Context, s *Session) {
	defer close(s.done)
	defer s.cancel()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

loop:
	for s.Active() && m.poll(ctx, s) {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
		}
	}
	s.active.Store(false)

	if ctx.Err() != nil {
		log.Infof("Tracking session %s cancelled", s.ID)
		return
	}
	log.Infof("Tracking session %s lost %q after %d misses", s.ID, s.Object, s.Misses())
}

// poll runs one iteration and reports whether the session should continue.
// A snapshot that was already acted on is skipped: no move and no miss.
func (m *Sessions) poll(ctx context.Context, s *Session) bool {
	defer s.polls.Add(1)

	snap, err := m.source.Latest(ctx)
	if err != nil {
		return !errors.Is(err, pipeline.ErrClosed) && ctx.Err() == nil
	}
	if s.acted && snap.Seq == s.lastSeq {
		snap.Release()
		return true
	}
	s.lastSeq, s.acted = snap.Seq, true

	directives, err := m.locator.Direction(s.Object, s.TrackID, snap.Detections, snap.Image.Cols(), snap.Image.Rows())
	snap.Release()

	if err != nil {
		return int(s.misses.Add(1)) < m.tolerance
	}
	s.misses.Store(0)

	for _, d := range directives.List() {
		if err := m.mover.Move(ctx, d.Direction, d.Degrees); err != nil {
			log.Warnf("Tracking move %s %.2f failed: %v", d.Direction, d.Degrees, err)
			continue
		}
		s.moves.Add(1)
	}
	return true
}

package pipeline

import (
	"fmt"
	"sync"
	"time"
)

// Counters are the lifetime totals of the acquisition loop
type Counters struct {
	Captured  uint64
	Inferred  uint64
	Published uint64
	Empty     uint64 // frames with no detection above threshold
	Malformed uint64 // engine rows skipped by the extractor
}

// Stats tracks loop counters and per-stage timing over a reporting window
type Stats struct {
	mu       sync.Mutex
	counters Counters

	windowStart  time.Time
	windowFrames int64
	readTotal    time.Duration
	inferTotal   time.Duration
	trackTotal   time.Duration
	readCount    int64
	inferCount   int64
	trackCount   int64
}

// Report is one reporting window
type Report struct {
	FPS      float64
	AvgRead  time.Duration
	AvgInfer time.Duration
	AvgTrack time.Duration
	Totals   Counters
}

func (r Report) String() string {
	return fmt.Sprintf("%.1f fps | read %v infer %v track %v | captured %d published %d empty %d malformed %d",
		r.FPS, r.AvgRead, r.AvgInfer, r.AvgTrack,
		r.Totals.Captured, r.Totals.Published, r.Totals.Empty, r.Totals.Malformed)
}

// NewStats creates a stats tracker
func NewStats() *Stats {
	return &Stats{windowStart: time.Now()}
}

func (s *Stats) recordCapture(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.Captured++
	s.readTotal += d
	s.readCount++
}

func (s *Stats) recordInference(d time.Duration, malformed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.Inferred++
	s.counters.Malformed += uint64(malformed)
	s.inferTotal += d
	s.inferCount++
}

func (s *Stats) recordTracking(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackTotal += d
	s.trackCount++
}

func (s *Stats) recordPublish(empty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.Published++
	s.windowFrames++
	if empty {
		s.counters.Empty++
	}
}

// Counters returns the lifetime totals
func (s *Stats) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

// Report returns the current window and starts a new one. Totals are not reset.
func (s *Stats) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	window := now.Sub(s.windowStart).Seconds()
	if window <= 0 {
		window = 1
	}

	r := Report{FPS: float64(s.windowFrames) / window, Totals: s.counters}
	if s.readCount > 0 {
		r.AvgRead = s.readTotal / time.Duration(s.readCount)
	}
	if s.inferCount > 0 {
		r.AvgInfer = s.inferTotal / time.Duration(s.inferCount)
	}
	if s.trackCount > 0 {
		r.AvgTrack = s.trackTotal / time.Duration(s.trackCount)
	}

	s.windowStart = now
	s.windowFrames = 0
	s.readTotal, s.inferTotal, s.trackTotal = 0, 0, 0
	s.readCount, s.inferCount, s.trackCount = 0, 0, 0
	return r
}

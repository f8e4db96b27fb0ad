package pipeline

import (
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/shurvir/hailo-robot/detection"
)

// Snapshot is one published frame with its tracked detections. It is
// immutable once published and reference counted: every holder calls
// Release exactly once, and the image is freed with the last reference.
type Snapshot struct {
	Image      gocv.Mat
	Detections []detection.Record // nil when nothing passed the threshold
	Seq        uint64
	CapturedAt time.Time

	refs atomic.Int32
}

// NewSnapshot takes ownership of img. The returned snapshot holds one
// reference for the caller.
func NewSnapshot(img gocv.Mat, dets []detection.Record, seq uint64, capturedAt time.Time) *Snapshot {
	s := &Snapshot{Image: img, Detections: dets, Seq: seq, CapturedAt: capturedAt}
	s.refs.Store(1)
	return s
}

// Retain adds a reference and returns s
func (s *Snapshot) Retain() *Snapshot {
	s.refs.Add(1)
	return s
}

// Release drops a reference, freeing the image when none remain
func (s *Snapshot) Release() {
	switch n := s.refs.Add(-1); {
	case n == 0:
		s.Image.Close()
	case n < 0:
		log.Errorf("Snapshot %d released too many times", s.Seq)
	}
}

// ReleaseAll releases every snapshot in snaps
func ReleaseAll(snaps []*Snapshot) {
	for _, s := range snaps {
		s.Release()
	}
}

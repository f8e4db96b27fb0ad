package tracking

import (
	"github.com/shurvir/hailo-robot/detection"
)

// Config holds the association and lifetime parameters of the tracker
type Config struct {
	// IoUThreshold is the minimum overlap between a detection and a
	// track's predicted box for them to be associated.
	IoUThreshold float64
	// MaxMisses is how many consecutive updates a track may go unmatched
	// before it is dropped.
	MaxMisses int
	// MixClasses allows a track to be matched to a detection of another class.
	MixClasses bool

	ProcessNoise     float64
	MeasurementNoise float64
}

// DefaultConfig returns the tracker defaults
func DefaultConfig() Config {
	return Config{
		IoUThreshold:     0.3,
		MaxMisses:        30,
		ProcessNoise:     1.0,
		MeasurementNoise: 10.0,
	}
}

// Track is a snapshot of one tracked identity
type Track struct {
	ID      int
	ClassID int
	Box     detection.BBox
	Hits    int
	Misses  int
}

type track struct {
	Track
	kf *KalmanFilter
}

// predict returns the last box shifted to the filter's predicted center
func (t *track) predict() detection.BBox {
	cx, cy := t.kf.Predict()
	dx, dy := cx-t.Box.CenterX(), cy-t.Box.CenterY()
	return detection.BBox{X1: t.Box.X1 + dx, Y1: t.Box.Y1 + dy, X2: t.Box.X2 + dx, Y2: t.Box.Y2 + dy}
}

func (t *track) update(box detection.BBox) {
	t.kf.Update(box.CenterX(), box.CenterY())
	t.Box = box
	t.Hits++
	t.Misses = 0
}

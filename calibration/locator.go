package calibration

import (
	"errors"
	"fmt"

	"github.com/shurvir/hailo-robot/detection"
)

var (
	// ErrNotFound is the parent of every lookup failure
	ErrNotFound = errors.New("not found")
	// ErrNotVisible means the class exists but no detection qualifies
	ErrNotVisible = fmt.Errorf("%w: object not visible", ErrNotFound)
)

// Locator resolves class names against the class table and turns the best
// matching detection into a nudge or a placement target. Frame dimensions
// are those of the image the detections were extracted from.
type Locator struct {
	Classes       *detection.ClassTable
	Placement     Placement
	MinConfidence float64
	MaxDegrees    float64
}

// Find returns the first record of the named class with confidence above
// MinConfidence. A non-zero trackID restricts the match to that track.
func (l *Locator) Find(name string, trackID int, dets []detection.Record) (detection.Record, error) {
	classID, err := l.Classes.Lookup(name)
	if err != nil {
		return detection.Record{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	for _, d := range dets {
		if d.ClassID != classID || d.Confidence <= l.MinConfidence {
			continue
		}
		if trackID == 0 || d.TrackID == trackID {
			return d, nil
		}
	}
	if trackID != 0 {
		return detection.Record{}, fmt.Errorf("%w: %s #%d", ErrNotVisible, name, trackID)
	}
	return detection.Record{}, fmt.Errorf("%w: %s", ErrNotVisible, name)
}

// Direction computes the nudge toward the named object
func (l *Locator) Direction(name string, trackID int, dets []detection.Record, width, height int) (Directives, error) {
	d, err := l.Find(name, trackID, dets)
	if err != nil {
		return Directives{}, err
	}
	return Nudge(d.BBox, width, height, l.MaxDegrees), nil
}

// Target computes the placement target of the named object
func (l *Locator) Target(name string, dets []detection.Record, width, height int) (Target, error) {
	d, err := l.Find(name, 0, dets)
	if err != nil {
		return Target{}, err
	}
	return l.Place(d.BBox, width, height), nil
}

// Place maps an arbitrary box, such as one returned by the vision collaborator
func (l *Locator) Place(box detection.BBox, width, height int) Target {
	return l.Placement.Place(box, width, height)
}

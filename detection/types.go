package detection

import (
	"errors"
	"image"
	"math"
)

var (
	// ErrUnknownClass is returned when a class name is not in the class table
	ErrUnknownClass = errors.New("unknown class")
	// ErrClassCountMismatch is returned when the label file does not match the model
	ErrClassCountMismatch = errors.New("class count mismatch")
	// ErrBadDimensions is returned for empty frames or non-positive target sizes
	ErrBadDimensions = errors.New("bad frame dimensions")
)

// BBox is an axis aligned box in source-frame pixels. X1 <= X2 and Y1 <= Y2.
type BBox struct {
	X1, Y1, X2, Y2 float64
}

func (b BBox) Width() float64   { return b.X2 - b.X1 }
func (b BBox) Height() float64  { return b.Y2 - b.Y1 }
func (b BBox) CenterX() float64 { return (b.X1 + b.X2) / 2 }
func (b BBox) CenterY() float64 { return (b.Y1 + b.Y2) / 2 }
func (b BBox) Area() float64    { return math.Max(0, b.Width()) * math.Max(0, b.Height()) }

// Rect rounds the box to integer pixels for drawing
func (b BBox) Rect() image.Rectangle {
	return image.Rect(int(math.Round(b.X1)), int(math.Round(b.Y1)), int(math.Round(b.X2)), int(math.Round(b.Y2)))
}

// IoU returns the intersection over union of two boxes
func (b BBox) IoU(o BBox) float64 {
	ix := math.Min(b.X2, o.X2) - math.Max(b.X1, o.X1)
	iy := math.Min(b.Y2, o.Y2) - math.Max(b.Y1, o.Y1)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Record is one detected object instance in one frame.
// TrackID is zero until the tracker has run.
type Record struct {
	BBox       BBox
	Confidence float64
	ClassID    int
	TrackID    int
}

// RawOutput is the engine output: one slice per class index, each row is
// [b0, b1, b2, b3, score] with b* normalized to the model input geometry
// in (ymin, xmin, ymax, xmax) order.
type RawOutput [][][]float64

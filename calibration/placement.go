package calibration

import (
	"fmt"
	"math"
	"strings"

	"github.com/shurvir/hailo-robot/detection"
)

// Reference selects which box y coordinate a placement strategy uses
type Reference int

const (
	ReferenceCenter Reference = iota
	ReferenceBottom
)

func (r Reference) String() string {
	switch r {
	case ReferenceCenter:
		return "center"
	case ReferenceBottom:
		return "bottom"
	default:
		return "UNKNOWN"
	}
}

// ParseReference parses "center" or "bottom"
func ParseReference(s string) (Reference, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "center":
		return ReferenceCenter, nil
	case "bottom":
		return ReferenceBottom, nil
	default:
		return ReferenceCenter, fmt.Errorf("unknown placement reference %q", s)
	}
}

func (r Reference) y(box detection.BBox) float64 {
	if r == ReferenceBottom {
		return box.Y2
	}
	return box.CenterY()
}

// Target is an actuator-space cartesian position in millimetres
type Target struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// Placement maps a box in a frame of the given size to an actuator target
type Placement interface {
	Place(box detection.BBox, frameWidth, frameHeight int) Target
	Name() string
}

// Trig corrects range with an inverse cosine of the vertical pixel angle.
// ax = W/2 - cx, ay = ref y, x = Range / cos(rad((H - ay) * DegreesPerPixel)),
// y = ax / (W/2) * Lateral.
type Trig struct {
	Range           float64   `yaml:"range"`
	DegreesPerPixel float64   `yaml:"degrees_per_pixel"`
	Lateral         float64   `yaml:"lateral"`
	Z               float64   `yaml:"z"`
	Ref             Reference `yaml:"-"`
}

// DefaultTrig returns the bench calibration for a 1280x1280 camera
func DefaultTrig() Trig {
	return Trig{Range: 275, DegreesPerPixel: 9.0 / 256.0, Lateral: 350, Z: -75, Ref: ReferenceCenter}
}

func (t Trig) Name() string { return "trig" }

func (t Trig) Place(box detection.BBox, frameWidth, frameHeight int) Target {
	halfW := float64(frameWidth) / 2
	ax := halfW - box.CenterX()
	ay := t.Ref.y(box)

	angle := (float64(frameHeight) - ay) * t.DegreesPerPixel * math.Pi / 180
	return Target{
		X: t.Range / math.Cos(angle),
		Y: ax / halfW * t.Lateral,
		Z: t.Z,
	}
}

// Linear is an affine fit in each axis:
// x = XSlope*(H - ref y) + XIntercept, y = YSlope*(W/2 - cx) + YIntercept.
type Linear struct {
	XSlope     float64   `yaml:"x_slope"`
	XIntercept float64   `yaml:"x_intercept"`
	YSlope     float64   `yaml:"y_slope"`
	YIntercept float64   `yaml:"y_intercept"`
	Z          float64   `yaml:"z"`
	Ref        Reference `yaml:"-"`
}

func (l Linear) Name() string { return "linear" }

func (l Linear) Place(box detection.BBox, frameWidth, frameHeight int) Target {
	return Target{
		X: l.XSlope*(float64(frameHeight)-l.Ref.y(box)) + l.XIntercept,
		Y: l.YSlope*(float64(frameWidth)/2-box.CenterX()) + l.YIntercept,
		Z: l.Z,
	}
}

// NewPlacement selects a strategy by name ("trig" or "linear") and applies
// the reference mode to it
func NewPlacement(strategy, reference string, trig Trig, linear Linear) (Placement, error) {
	ref, err := ParseReference(reference)
	if err != nil {
		return nil, err
	}

	var p Placement
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", "trig":
		trig.Ref = ref
		p = trig
	case "linear":
		if linear.XSlope == 0 && linear.YSlope == 0 {
			return nil, fmt.Errorf("linear placement needs non-zero slopes")
		}
		linear.Ref = ref
		p = linear
	default:
		return nil, fmt.Errorf("unknown placement strategy %q", strategy)
	}

	log.Infof("Placement strategy %s (reference %s)", p.Name(), ref)
	return p, nil
}

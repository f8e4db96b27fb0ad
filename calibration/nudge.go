package calibration

import (
	"math"

	"github.com/shurvir/hailo-robot/detection"
)

// Direction names understood by the actuator
const (
	Up    = "up"
	Down  = "down"
	Left  = "left"
	Right = "right"
)

// Directive is one relative move in degrees
type Directive struct {
	Direction string
	Degrees   float64
}

// Directives holds exactly one vertical and one horizontal directive
type Directives struct {
	Vertical   Directive
	Horizontal Directive
}

// List returns the directives with a non-zero magnitude, vertical first
func (d Directives) List() []Directive {
	var out []Directive
	if d.Vertical.Degrees > 0 {
		out = append(out, d.Vertical)
	}
	if d.Horizontal.Degrees > 0 {
		out = append(out, d.Horizontal)
	}
	return out
}

// Nudge converts a box into the relative move that brings it toward the
// frame center. The vertical offset uses the box bottom edge, the horizontal
// offset the box center, each normalized by the half dimension and scaled by
// maxDegrees. A non-negative offset resolves to down / right.
func Nudge(box detection.BBox, frameWidth, frameHeight int, maxDegrees float64) Directives {
	halfW := float64(frameWidth) / 2
	halfH := float64(frameHeight) / 2

	vertical := (box.Y2 - halfH) / halfH * maxDegrees
	horizontal := (box.CenterX() - halfW) / halfW * maxDegrees

	var d Directives
	if vertical >= 0 {
		d.Vertical = Directive{Direction: Down, Degrees: vertical}
	} else {
		d.Vertical = Directive{Direction: Up, Degrees: math.Abs(vertical)}
	}
	if horizontal >= 0 {
		d.Horizontal = Directive{Direction: Right, Degrees: horizontal}
	} else {
		d.Horizontal = Directive{Direction: Left, Degrees: math.Abs(horizontal)}
	}
	return d
}

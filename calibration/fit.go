package calibration

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/shurvir/hailo-robot/detection"
)

// Sample pairs a detected box with the arm position that reached it
type Sample struct {
	Box    detection.BBox `yaml:"box"`
	Target Target         `yaml:"target"`
}

// FitLinear fits Linear coefficients by ordinary least squares on each axis.
// Z is the mean sample Z.
func FitLinear(samples []Sample, frameWidth, frameHeight int, ref Reference) (Linear, error) {
	if len(samples) < 2 {
		return Linear{}, fmt.Errorf("need at least 2 samples, got %d", len(samples))
	}

	n := len(samples)
	px := make([]float64, n)
	ax := make([]float64, n)
	py := make([]float64, n)
	ay := make([]float64, n)
	zs := make([]float64, n)
	for i, s := range samples {
		px[i] = float64(frameHeight) - ref.y(s.Box)
		ax[i] = s.Target.X
		py[i] = float64(frameWidth)/2 - s.Box.CenterX()
		ay[i] = s.Target.Y
		zs[i] = s.Target.Z
	}
	if stat.Variance(px, nil) == 0 || stat.Variance(py, nil) == 0 {
		return Linear{}, fmt.Errorf("samples must vary in both image axes")
	}

	xIntercept, xSlope := stat.LinearRegression(px, ax, nil, false)
	yIntercept, ySlope := stat.LinearRegression(py, ay, nil, false)

	l := Linear{
		XSlope:     xSlope,
		XIntercept: xIntercept,
		YSlope:     ySlope,
		YIntercept: yIntercept,
		Z:          stat.Mean(zs, nil),
		Ref:        ref,
	}
	log.Debugf("Fitted linear placement from %d samples: %+v", n, l)
	return l, nil
}

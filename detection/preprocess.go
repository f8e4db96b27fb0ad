package detection

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Preprocess resizes a camera frame to exactly the model input geometry.
// Aspect ratio is not preserved; the placement calibration assumes this
// stretch. The caller owns and must close the returned Mat.
func Preprocess(src gocv.Mat, height, width int) (gocv.Mat, error) {
	if height <= 0 || width <= 0 {
		return gocv.Mat{}, fmt.Errorf("%w: target %dx%d", ErrBadDimensions, width, height)
	}
	if src.Empty() || src.Rows() <= 0 || src.Cols() <= 0 {
		return gocv.Mat{}, fmt.Errorf("%w: empty source frame", ErrBadDimensions)
	}

	dst := gocv.NewMat()
	gocv.Resize(src, &dst, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
	return dst, nil
}

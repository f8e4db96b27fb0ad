package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/shurvir/hailo-robot/detection"
)

func TestLabel(t *testing.T) {
	t.Parallel()

	classes, err := detection.NewClassTable([]string{"person", "cup"})
	require.NoError(t, err)

	assert.Equal(t, "#3 cup", Label(classes, detection.Record{ClassID: 1, TrackID: 3, Confidence: 0.9}))
	assert.Equal(t, "person 87%", Label(classes, detection.Record{ClassID: 0, Confidence: 0.87}))
	assert.Equal(t, "#1 class_7", Label(classes, detection.Record{ClassID: 7, TrackID: 1}))
}

func TestClassColor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ClassColor(1), ClassColor(1+len(palette)))
	assert.NotEqual(t, ClassColor(0), ClassColor(1))
}

func TestAnnotate_LeavesSourceUntouched(t *testing.T) {
	t.Parallel()

	classes, err := detection.NewClassTable([]string{"person"})
	require.NoError(t, err)

	frame := gocv.Zeros(120, 160, gocv.MatTypeCV8UC3)
	defer frame.Close()

	dets := []detection.Record{
		{BBox: detection.BBox{X1: 20, Y1: 30, X2: 90, Y2: 100}, Confidence: 0.8, TrackID: 1},
		{BBox: detection.BBox{X1: 500, Y1: 500, X2: 600, Y2: 600}, Confidence: 0.8}, // off frame
	}
	out := NewAnnotator(classes).Annotate(frame, dets)
	defer out.Close()

	assert.Equal(t, frame.Rows(), out.Rows())
	assert.Equal(t, frame.Cols(), out.Cols())
	grayIn := toGray(frame)
	defer grayIn.Close()
	grayOut := toGray(out)
	defer grayOut.Close()
	assert.Equal(t, 0, gocv.CountNonZero(grayIn))
	assert.Greater(t, gocv.CountNonZero(grayOut), 0)
}

func toGray(m gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	gocv.CvtColor(m, &gray, gocv.ColorBGRToGray)
	return gray
}

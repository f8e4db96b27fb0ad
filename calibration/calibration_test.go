package calibration

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shurvir/hailo-robot/detection"
)

func TestNudge_TieBreakIsDownRight(t *testing.T) {
	t.Parallel()

	// bottom edge on the horizontal midline, center on the vertical midline
	box := detection.BBox{X1: 600, Y1: 540, X2: 680, Y2: 640}
	for i := 0; i < 5; i++ {
		d := Nudge(box, 1280, 1280, 10)
		assert.Equal(t, Directive{Direction: Down, Degrees: 0}, d.Vertical)
		assert.Equal(t, Directive{Direction: Right, Degrees: 0}, d.Horizontal)
		assert.Empty(t, d.List())
	}
}

func TestNudge_Offsets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		box  detection.BBox
		want Directives
	}{
		{
			name: "top left corner",
			box:  detection.BBox{X1: 0, Y1: 0, X2: 0, Y2: 0},
			want: Directives{Vertical: Directive{Up, 10}, Horizontal: Directive{Left, 10}},
		},
		{
			name: "bottom right corner",
			box:  detection.BBox{X1: 1280, Y1: 1280, X2: 1280, Y2: 1280},
			want: Directives{Vertical: Directive{Down, 10}, Horizontal: Directive{Right, 10}},
		},
		{
			name: "half way",
			box:  detection.BBox{X1: 900, Y1: 100, X2: 1020, Y2: 320},
			want: Directives{Vertical: Directive{Up, 5}, Horizontal: Directive{Right, 5}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Nudge(tt.box, 1280, 1280, 10)
			assert.Equal(t, tt.want.Vertical.Direction, got.Vertical.Direction)
			assert.Equal(t, tt.want.Horizontal.Direction, got.Horizontal.Direction)
			assert.InDelta(t, tt.want.Vertical.Degrees, got.Vertical.Degrees, 1e-9)
			assert.InDelta(t, tt.want.Horizontal.Degrees, got.Horizontal.Degrees, 1e-9)
		})
	}
}

func TestTrig_MatchesBenchCalibration(t *testing.T) {
	t.Parallel()

	box := detection.BBox{X1: 320, Y1: 1000, X2: 480, Y2: 1120}
	got := DefaultTrig().Place(box, 1280, 1280)

	// cx = 400, cy = 1060
	wantX := 275 / math.Cos((1280-1060.0)*9/256*math.Pi/180)
	wantY := (640 - 400.0) / 640 * 350
	assert.InDelta(t, wantX, got.X, 1e-9)
	assert.InDelta(t, wantY, got.Y, 1e-9)
	assert.Equal(t, -75.0, got.Z)
}

func TestTrig_BottomReference(t *testing.T) {
	t.Parallel()

	trig := DefaultTrig()
	trig.Ref = ReferenceBottom
	box := detection.BBox{X1: 600, Y1: 1180, X2: 680, Y2: 1280}
	got := trig.Place(box, 1280, 1280)
	assert.InDelta(t, 275, got.X, 1e-9)
	assert.InDelta(t, 0, got.Y, 1e-9)
}

func TestLinear_Place(t *testing.T) {
	t.Parallel()

	l := Linear{XSlope: 0.5, XIntercept: 100, YSlope: -0.25, YIntercept: 10, Z: -60}
	got := l.Place(detection.BBox{X1: 100, Y1: 200, X2: 300, Y2: 400}, 800, 600)
	assert.Equal(t, Target{X: 0.5*(600-300) + 100, Y: -0.25*(400-200) + 10, Z: -60}, got)
}

func TestNewPlacement(t *testing.T) {
	t.Parallel()

	p, err := NewPlacement("trig", "bottom", DefaultTrig(), Linear{})
	require.NoError(t, err)
	assert.Equal(t, "trig", p.Name())
	assert.Equal(t, ReferenceBottom, p.(Trig).Ref)

	_, err = NewPlacement("linear", "", DefaultTrig(), Linear{})
	assert.Error(t, err)

	p, err = NewPlacement("linear", "center", DefaultTrig(), Linear{XSlope: 1, YSlope: 1})
	require.NoError(t, err)
	assert.Equal(t, "linear", p.Name())

	_, err = NewPlacement("cubic", "", DefaultTrig(), Linear{})
	assert.Error(t, err)
	_, err = NewPlacement("trig", "top", DefaultTrig(), Linear{})
	assert.Error(t, err)
}

func newLocator(t *testing.T) *Locator {
	t.Helper()
	classes, err := detection.NewClassTable([]string{"person", "sports ball", "cup"})
	require.NoError(t, err)
	return &Locator{
		Classes:       classes,
		Placement:     DefaultTrig(),
		MinConfidence: 0.5,
		MaxDegrees:    10,
	}
}

func TestLocator_UnknownClassIsDistinct(t *testing.T) {
	t.Parallel()

	l := newLocator(t)
	dets := []detection.Record{{BBox: detection.BBox{X2: 10, Y2: 10}, Confidence: 0.9, ClassID: 0}}

	_, err := l.Target("unicorn", dets, 1280, 1280)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(err, detection.ErrUnknownClass))
	assert.False(t, errors.Is(err, ErrNotVisible))

	_, err = l.Direction("unicorn", 0, dets, 1280, 1280)
	assert.True(t, errors.Is(err, detection.ErrUnknownClass))
}

func TestLocator_NotVisible(t *testing.T) {
	t.Parallel()

	l := newLocator(t)
	dets := []detection.Record{
		{BBox: detection.BBox{X2: 10, Y2: 10}, Confidence: 0.5, ClassID: 2}, // not strictly above threshold
		{BBox: detection.BBox{X2: 10, Y2: 10}, Confidence: 0.9, ClassID: 0},
	}

	_, err := l.Target("cup", dets, 1280, 1280)
	assert.True(t, errors.Is(err, ErrNotVisible))
	assert.False(t, errors.Is(err, detection.ErrUnknownClass))

	_, err = l.Target("cup", nil, 1280, 1280)
	assert.True(t, errors.Is(err, ErrNotVisible))
}

func TestLocator_TrackIDFilter(t *testing.T) {
	t.Parallel()

	l := newLocator(t)
	dets := []detection.Record{
		{BBox: detection.BBox{X1: 0, Y1: 0, X2: 100, Y2: 100}, Confidence: 0.9, ClassID: 1, TrackID: 4},
		{BBox: detection.BBox{X1: 1180, Y1: 1180, X2: 1280, Y2: 1280}, Confidence: 0.9, ClassID: 1, TrackID: 7},
	}

	d, err := l.Direction("sports ball", 7, dets, 1280, 1280)
	require.NoError(t, err)
	assert.Equal(t, Down, d.Vertical.Direction)
	assert.Equal(t, Right, d.Horizontal.Direction)

	d, err = l.Direction("sports_ball", 0, dets, 1280, 1280)
	require.NoError(t, err)
	assert.Equal(t, Up, d.Vertical.Direction)

	_, err = l.Direction("sports ball", 9, dets, 1280, 1280)
	assert.ErrorIs(t, err, ErrNotVisible)
}

func TestLocator_UsesCapturedFrameSize(t *testing.T) {
	t.Parallel()

	l := newLocator(t)
	dets := []detection.Record{{BBox: detection.BBox{X1: 500, Y1: 300, X2: 600, Y2: 400}, Confidence: 0.9, ClassID: 1}}

	d, err := l.Direction("sports ball", 0, dets, 1280, 1280)
	require.NoError(t, err)
	assert.Equal(t, Up, d.Vertical.Direction)
	assert.Equal(t, Left, d.Horizontal.Direction)

	// the same box in a 640x360 capture sits right of and below the center
	d, err = l.Direction("sports ball", 0, dets, 640, 360)
	require.NoError(t, err)
	assert.Equal(t, Down, d.Vertical.Direction)
	assert.Equal(t, Right, d.Horizontal.Direction)

	big, err := l.Target("sports ball", dets, 1280, 1280)
	require.NoError(t, err)
	small, err := l.Target("sports ball", dets, 640, 360)
	require.NoError(t, err)
	assert.NotEqual(t, big, small)
}

func TestFitLinear(t *testing.T) {
	t.Parallel()

	truth := Linear{XSlope: 0.8, XIntercept: 120, YSlope: 0.55, YIntercept: -4, Z: -70}
	var samples []Sample
	for _, c := range [][2]float64{{200, 300}, {640, 900}, {1000, 500}, {400, 1100}} {
		box := detection.BBox{X1: c[0] - 20, Y1: c[1] - 20, X2: c[0] + 20, Y2: c[1] + 20}
		samples = append(samples, Sample{Box: box, Target: truth.Place(box, 1280, 1280)})
	}

	got, err := FitLinear(samples, 1280, 1280, ReferenceCenter)
	require.NoError(t, err)
	assert.InDelta(t, truth.XSlope, got.XSlope, 1e-9)
	assert.InDelta(t, truth.XIntercept, got.XIntercept, 1e-6)
	assert.InDelta(t, truth.YSlope, got.YSlope, 1e-9)
	assert.InDelta(t, truth.YIntercept, got.YIntercept, 1e-6)
	assert.InDelta(t, -70, got.Z, 1e-9)

	_, err = FitLinear(samples[:1], 1280, 1280, ReferenceCenter)
	assert.Error(t, err)
}

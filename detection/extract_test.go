package detection

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_AxisRemap(t *testing.T) {
	t.Parallel()

	raw := RawOutput{
		{{0.25, 0.5, 0.75, 1.0, 0.9}},
	}
	got := Extract(raw, 1280, 1280, 0.5)

	require.Equal(t, 1, got.Count())
	want := Record{
		BBox:       BBox{X1: 640, Y1: 320, X2: 1280, Y2: 960},
		Confidence: 0.9,
		ClassID:    0,
	}
	if diff := cmp.Diff(want, got.Records[0]); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_ThresholdFiltersEveryRowBelow(t *testing.T) {
	t.Parallel()

	raw := RawOutput{
		{{0, 0, 0.1, 0.1, 0.49}, {0, 0, 0.2, 0.2, 0.5}, {0, 0, 0.3, 0.3, 0.1}},
		{{0.1, 0.1, 0.2, 0.2, 0.99}},
	}
	for _, threshold := range []float64{0, 0.1, 0.3, 0.5, 0.7, 0.99, 1} {
		got := Extract(raw, 100, 200, threshold)
		for _, r := range got.Records {
			assert.GreaterOrEqual(t, r.Confidence, threshold)
		}
	}

	got := Extract(raw, 100, 200, 0.5)
	assert.Equal(t, 2, got.Count())
}

func TestExtract_OrderIsClassThenInput(t *testing.T) {
	t.Parallel()

	raw := RawOutput{
		{{0, 0, 0.1, 0.1, 0.6}, {0, 0, 0.1, 0.1, 0.95}},
		{},
		{{0, 0, 0.1, 0.1, 0.7}, {0, 0, 0.1, 0.1, 0.8}},
	}
	got := Extract(raw, 10, 10, 0.5)

	var classes []int
	var scores []float64
	for _, r := range got.Records {
		classes = append(classes, r.ClassID)
		scores = append(scores, r.Confidence)
	}
	assert.Equal(t, []int{0, 0, 2, 2}, classes)
	assert.Equal(t, []float64{0.6, 0.95, 0.7, 0.8}, scores)
}

func TestExtract_MalformedRowsCounted(t *testing.T) {
	t.Parallel()

	raw := RawOutput{{{0.1, 0.2, 0.3}, {0, 0, 1, 1, 0.9}}}
	got := Extract(raw, 10, 10, 0.5)

	assert.Equal(t, 1, got.Count())
	assert.Equal(t, 1, got.Malformed)
}

func TestExtract_Empty(t *testing.T) {
	t.Parallel()

	got := Extract(nil, 10, 10, 0.5)
	assert.Zero(t, got.Count())
	assert.Nil(t, got.Records)
}

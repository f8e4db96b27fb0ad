package dispatch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/shurvir/hailo-robot/detection"
)

// boxScale is the range of the normalized box_2d coordinates
const boxScale = 1000.0

// FindPrompt asks the collaborator for the box of an object in a frame
func FindPrompt(object string, width, height int) string {
	return fmt.Sprintf("What are the bounding box coordinates of the %s in this image? "+
		"Given that the image is %dx%d, return the coordinates in the form x1, y1, x2, y2.",
		object, width, height)
}

// ParseBox reads a box from a collaborator answer. Plain answers are the
// first four comma separated numbers in y1, x1, y2, x2 order and in pixels.
// JSON answers carry box_2d in the same order normalized to 0..1000.
func ParseBox(answer string, width, height int) (detection.BBox, error) {
	if strings.Contains(answer, "box_2d") {
		return parseBox2D(answer, width, height)
	}

	fields := strings.Split(answer, ",")
	if len(fields) < 4 {
		return detection.BBox{}, fmt.Errorf("%w: expected 4 coordinates in %q", ErrMalformedResponse, answer)
	}
	var v [4]float64
	for i := range v {
		f := strings.Trim(fields[i], " \t\r\n[](){}`")
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return detection.BBox{}, fmt.Errorf("%w: coordinate %q", ErrMalformedResponse, f)
		}
		v[i] = float64(int(n))
	}
	return ordered(v[1], v[0], v[3], v[2]), nil
}

func parseBox2D(answer string, width, height int) (detection.BBox, error) {
	start := strings.IndexAny(answer, "[{")
	end := strings.LastIndexAny(answer, "]}")
	if start < 0 || end < start {
		return detection.BBox{}, fmt.Errorf("%w: no JSON in %q", ErrMalformedResponse, answer)
	}
	doc := answer[start : end+1]

	box := gjson.Get(doc, "box_2d")
	if !box.Exists() {
		box = gjson.Get(doc, "0.box_2d")
	}
	values := box.Array()
	if len(values) != 4 {
		return detection.BBox{}, fmt.Errorf("%w: box_2d in %q", ErrMalformedResponse, answer)
	}
	sx := float64(width) / boxScale
	sy := float64(height) / boxScale
	return ordered(
		values[1].Float()*sx, values[0].Float()*sy,
		values[3].Float()*sx, values[2].Float()*sy,
	), nil
}

func ordered(x1, y1, x2, y2 float64) detection.BBox {
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	return detection.BBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

package overlay

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/shurvir/hailo-robot/detection"
)

// palette is indexed by class id
var palette = []color.RGBA{
	{R: 0x00, G: 0x7f, B: 0xff, A: 255},
	{R: 0x11, G: 0x8a, B: 0x28, A: 255},
	{R: 0xe6, G: 0x19, B: 0x4b, A: 255},
	{R: 0xff, G: 0xa5, B: 0x00, A: 255},
	{R: 0x91, G: 0x1e, B: 0xb4, A: 255},
	{R: 0x46, G: 0xf0, B: 0xf0, A: 255},
	{R: 0xf0, G: 0x32, B: 0xe6, A: 255},
	{R: 0xbc, G: 0xf6, B: 0x0c, A: 255},
}

var textColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// ClassColor returns the box color for a class id
func ClassColor(classID int) color.RGBA {
	if classID < 0 {
		classID = -classID
	}
	return palette[classID%len(palette)]
}

// Label formats a record as "#<track> <class>", or "<class> <conf>%" before tracking
func Label(classes *detection.ClassTable, d detection.Record) string {
	name := classes.Name(d.ClassID)
	if d.TrackID > 0 {
		return fmt.Sprintf("#%d %s", d.TrackID, name)
	}
	return fmt.Sprintf("%s %.0f%%", name, d.Confidence*100)
}

// Annotator draws boxes and labels for tracked records
type Annotator struct {
	classes   *detection.ClassTable
	thickness int
	fontScale float64
	corner    int
}

// NewAnnotator creates an annotator using the class table for labels
func NewAnnotator(classes *detection.ClassTable) *Annotator {
	return &Annotator{classes: classes, thickness: 2, fontScale: 0.5, corner: 15}
}

// Annotate draws every record onto a copy of frame. The caller owns the
// returned Mat; frame is left untouched.
func (a *Annotator) Annotate(frame gocv.Mat, dets []detection.Record) gocv.Mat {
	out := frame.Clone()
	for _, d := range dets {
		a.draw(&out, d)
	}
	log.Debugf("Annotated %d detections", len(dets))
	return out
}

func (a *Annotator) draw(img *gocv.Mat, d detection.Record) {
	rect := d.BBox.Rect().Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))
	if rect.Empty() {
		return
	}
	c := ClassColor(d.ClassID)

	gocv.Rectangle(img, rect, c, 1)
	a.drawCornerBrackets(img, rect, c)

	center := image.Point{X: rect.Min.X + rect.Dx()/2, Y: rect.Min.Y + rect.Dy()/2}
	gocv.Circle(img, center, 3, c, -1)

	label := Label(a.classes, d)
	size := gocv.GetTextSize(label, gocv.FontHersheySimplex, a.fontScale, 1)
	pos := image.Point{X: rect.Min.X, Y: rect.Min.Y - 8}
	// keep the label inside the frame
	if pos.Y < 15 {
		pos.Y = rect.Max.Y + 20
	}
	bg := image.Rect(pos.X-2, pos.Y-size.Y-4, pos.X+size.X+2, pos.Y+4)
	gocv.Rectangle(img, bg, c, -1)
	gocv.PutText(img, label, pos, gocv.FontHersheySimplex, a.fontScale, textColor, 1)
}

// drawCornerBrackets thickens the four corners of rect
func (a *Annotator) drawCornerBrackets(img *gocv.Mat, rect image.Rectangle, c color.RGBA) {
	n := a.corner
	if m := min(rect.Dx(), rect.Dy()) / 3; m < n {
		n = m
	}
	t := a.thickness

	gocv.Line(img, rect.Min, image.Point{X: rect.Min.X + n, Y: rect.Min.Y}, c, t)
	gocv.Line(img, rect.Min, image.Point{X: rect.Min.X, Y: rect.Min.Y + n}, c, t)

	gocv.Line(img, image.Point{X: rect.Max.X, Y: rect.Min.Y}, image.Point{X: rect.Max.X - n, Y: rect.Min.Y}, c, t)
	gocv.Line(img, image.Point{X: rect.Max.X, Y: rect.Min.Y}, image.Point{X: rect.Max.X, Y: rect.Min.Y + n}, c, t)

	gocv.Line(img, image.Point{X: rect.Min.X, Y: rect.Max.Y}, image.Point{X: rect.Min.X + n, Y: rect.Max.Y}, c, t)
	gocv.Line(img, image.Point{X: rect.Min.X, Y: rect.Max.Y}, image.Point{X: rect.Min.X, Y: rect.Max.Y - n}, c, t)

	gocv.Line(img, rect.Max, image.Point{X: rect.Max.X - n, Y: rect.Max.Y}, c, t)
	gocv.Line(img, rect.Max, image.Point{X: rect.Max.X, Y: rect.Max.Y - n}, c, t)
}

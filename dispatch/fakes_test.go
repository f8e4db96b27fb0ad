package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/shurvir/hailo-robot/actuator"
	"github.com/shurvir/hailo-robot/calibration"
	"github.com/shurvir/hailo-robot/detection"
	"github.com/shurvir/hailo-robot/pipeline"
)

const frameSize = 64

type fakeArm struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (a *fakeArm) record(format string, args ...any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, fmt.Sprintf(format, args...))
	return a.err
}

func (a *fakeArm) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func (a *fakeArm) Move(_ context.Context, direction string, degrees float64) error {
	return a.record("move %s %.1f", direction, degrees)
}

func (a *fakeArm) Perform(_ context.Context, action actuator.Action) error {
	return a.record("perform %s", action)
}

func (a *fakeArm) MoveTo(_ context.Context, p actuator.Position, hand float64) error {
	return a.record("move_to %.0f %.0f %.0f %.1f", p.X, p.Y, p.Z, hand)
}

func (a *fakeArm) PickUp(_ context.Context, p actuator.Position) error {
	return a.record("pick_up %.0f %.0f %.0f", p.X, p.Y, p.Z)
}

func (a *fakeArm) DropOff(_ context.Context, location string) error {
	if location != "left" && location != "right" {
		return fmt.Errorf("%w: %s", actuator.ErrUnknownLocation, location)
	}
	return a.record("drop_off %s", location)
}

type fakeCollaborator struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts []string
	mimes   []string
}

func (c *fakeCollaborator) note(prompt, mime string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	c.mimes = append(c.mimes, mime)
	return c.answer, c.err
}

func (c *fakeCollaborator) Send(_ context.Context, text string) (string, error) {
	return c.note(text, "")
}

func (c *fakeCollaborator) Generate(_ context.Context, prompt, mimeType string, _ []byte) (string, error) {
	return c.note(prompt, mimeType)
}

func (c *fakeCollaborator) GenerateFromVideo(_ context.Context, prompt string, _ []byte) (string, error) {
	return c.note(prompt, "video/mp4")
}

type fakeSpeaker struct {
	said chan string
}

func (s *fakeSpeaker) Say(_ context.Context, text string) error {
	s.said <- text
	return nil
}

// staticSource always returns the same snapshot
type staticSource struct {
	snap *pipeline.Snapshot
}

func (s staticSource) Latest(context.Context) (*pipeline.Snapshot, error) {
	return s.snap.Retain(), nil
}

// liveSource returns a new snapshot of the same detections on every call
type liveSource struct {
	width, height int
	dets          []detection.Record
	seq           atomic.Uint64
}

func newLiveSource(dets []detection.Record) *liveSource {
	return &liveSource{width: frameSize, height: frameSize, dets: dets}
}

func (s *liveSource) Latest(context.Context) (*pipeline.Snapshot, error) {
	img := gocv.Zeros(s.height, s.width, gocv.MatTypeCV8UC3)
	return pipeline.NewSnapshot(img, s.dets, s.seq.Add(1), time.Now()), nil
}

func testLocator(t *testing.T) *calibration.Locator {
	t.Helper()
	classes, err := detection.NewClassTable([]string{"person", "red ball"})
	require.NoError(t, err)
	return &calibration.Locator{
		Classes:       classes,
		Placement:     calibration.Linear{XSlope: 1, YSlope: 1, Z: -75},
		MinConfidence: 0.5,
		MaxDegrees:    10,
	}
}

func testSnapshot(dets []detection.Record) *pipeline.Snapshot {
	return sizedSnapshot(frameSize, frameSize, dets)
}

func sizedSnapshot(width, height int, dets []detection.Record) *pipeline.Snapshot {
	img := gocv.Zeros(height, width, gocv.MatTypeCV8UC3)
	return pipeline.NewSnapshot(img, dets, 1, time.Now())
}

// ball is a confident red ball centered in the frame
var ball = detection.Record{
	BBox:       detection.BBox{X1: 16, Y1: 16, X2: 48, Y2: 48},
	Confidence: 0.9,
	ClassID:    1,
	TrackID:    7,
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/shurvir/hailo-robot/detection"
)

// ErrDevice wraps capture and inference failures. The loop does not retry.
var ErrDevice = errors.New("device failure")

// maxEmptyReads bounds consecutive successful reads that return no image
const maxEmptyReads = 30

// Camera is a frame source. gocv.VideoCapture satisfies it.
type Camera interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// Tracker assigns track ids to a frame's records
type Tracker interface {
	Update(dets []detection.Record) []detection.Record
}

// Annotator draws records onto a copy of a frame
type Annotator interface {
	Annotate(frame gocv.Mat, dets []detection.Record) gocv.Mat
}

// LoopConfig configures the acquisition loop
type LoopConfig struct {
	Threshold     float64
	Flip          bool // rotate frames 180 degrees before processing
	StatsInterval time.Duration
}

// Loop captures frames, runs inference on a worker goroutine and publishes
// the tracked results to the sinks.
type Loop struct {
	camera    Camera
	engine    detection.Engine
	tracker   Tracker
	annotator Annotator
	sinks     *Context
	cfg       LoopConfig
	stats     *Stats

	seq uint64
}

// NewLoop wires a loop. annotator may be nil to publish bare frames.
func NewLoop(camera Camera, engine detection.Engine, tracker Tracker, annotator Annotator, sinks *Context, cfg LoopConfig) *Loop {
	return &Loop{
		camera:    camera,
		engine:    engine,
		tracker:   tracker,
		annotator: annotator,
		sinks:     sinks,
		cfg:       cfg,
		stats:     NewStats(),
	}
}

// Stats returns the loop statistics
func (l *Loop) Stats() *Stats {
	return l.stats
}

type inferResult struct {
	raw      detection.RawOutput
	err      error
	duration time.Duration
}

// Run loops until ctx is cancelled, returning nil, or until the camera or
// engine fails, returning an ErrDevice error. On the way out the inference
// worker is stopped and joined and the camera is closed.
func (l *Loop) Run(ctx context.Context) error {
	requests := make(chan gocv.Mat)
	results := make(chan inferResult, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.inferWorker(ctx, requests, results)
	}()

	defer func() {
		close(requests)
		wg.Wait()
		if err := l.camera.Close(); err != nil {
			log.Warnf("Closing camera: %v", err)
		}
		log.Infof("Acquisition stopped: %s", l.stats.Report())
	}()

	h, w := l.engine.InputSize()
	lastReport := time.Now()
	empties := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		readStart := time.Now()
		img := gocv.NewMat()
		if ok := l.camera.Read(&img); !ok {
			img.Close()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: failed to read frame from camera", ErrDevice)
		}
		capturedAt := time.Now()
		if img.Empty() {
			img.Close()
			empties++
			if empties >= maxEmptyReads {
				return fmt.Errorf("%w: camera returned %d empty frames", ErrDevice, empties)
			}
			continue
		}
		empties = 0
		l.stats.recordCapture(time.Since(readStart))

		if l.cfg.Flip {
			gocv.Flip(img, &img, -1)
		}

		input, err := detection.Preprocess(img, h, w)
		if err != nil {
			img.Close()
			return fmt.Errorf("%w: %w", ErrDevice, err)
		}

		select {
		case requests <- input:
		case <-ctx.Done():
			input.Close()
			img.Close()
			return nil
		}

		var res inferResult
		select {
		case res = <-results:
		case <-ctx.Done():
			img.Close()
			return nil
		}
		if res.err != nil {
			img.Close()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: inference: %w", ErrDevice, res.err)
		}

		l.publish(img, res, capturedAt)

		if l.cfg.StatsInterval > 0 && time.Since(lastReport) >= l.cfg.StatsInterval {
			log.Info(l.stats.Report())
			lastReport = time.Now()
		}
	}
}

// inferWorker owns the engine. It exits when requests is closed.
func (l *Loop) inferWorker(ctx context.Context, requests <-chan gocv.Mat, results chan<- inferResult) {
	for frame := range requests {
		start := time.Now()
		raw, err := l.engine.Infer(ctx, frame)
		frame.Close()
		results <- inferResult{raw: raw, err: err, duration: time.Since(start)}
	}
	log.Debug("Inference worker stopped")
}

// publish extracts, tracks and annotates, then hands the snapshot to the
// sinks. It takes ownership of img.
func (l *Loop) publish(img gocv.Mat, res inferResult, capturedAt time.Time) {
	ext := detection.Extract(res.raw, img.Rows(), img.Cols(), l.cfg.Threshold)
	l.stats.recordInference(res.duration, ext.Malformed)

	var dets []detection.Record
	trackStart := time.Now()
	if ext.Count() > 0 {
		dets = l.tracker.Update(ext.Records)
	} else {
		// tracks still age on empty frames
		l.tracker.Update(nil)
	}
	l.stats.recordTracking(time.Since(trackStart))

	frame := img
	if len(dets) > 0 && l.annotator != nil {
		frame = l.annotator.Annotate(img, dets)
		img.Close()
	}

	l.seq++
	snap := NewSnapshot(frame, dets, l.seq, capturedAt)
	l.sinks.Publish(snap)
	snap.Release()
	l.stats.recordPublish(len(dets) == 0)
}

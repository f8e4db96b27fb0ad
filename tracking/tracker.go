package tracking

import (
	"sync"

	"github.com/shurvir/hailo-robot/detection"
)

// Tracker assigns stable identifiers to detections across frames.
// Each track carries a constant-velocity Kalman filter; detections are
// associated to predicted boxes by optimal assignment on 1-IoU cost.
type Tracker struct {
	cfg    Config
	mu     sync.Mutex
	tracks []*track
	nextID int
}

// NewTracker creates a tracker, filling unset config fields with defaults
func NewTracker(cfg Config) *Tracker {
	def := DefaultConfig()
	if cfg.IoUThreshold <= 0 {
		cfg.IoUThreshold = def.IoUThreshold
	}
	if cfg.MaxMisses <= 0 {
		cfg.MaxMisses = def.MaxMisses
	}
	if cfg.ProcessNoise <= 0 {
		cfg.ProcessNoise = def.ProcessNoise
	}
	if cfg.MeasurementNoise <= 0 {
		cfg.MeasurementNoise = def.MeasurementNoise
	}
	return &Tracker{cfg: cfg, nextID: 1}
}

// Update associates the frame's detections with existing tracks and returns
// a copy of dets, in the same order, with TrackID set. Calling Update with no
// detections ages every track.
func (t *Tracker) Update(dets []detection.Record) []detection.Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	predicted := make([]detection.BBox, len(t.tracks))
	for j, tr := range t.tracks {
		predicted[j] = tr.predict()
	}

	cost := make([][]float64, len(dets))
	for i, d := range dets {
		cost[i] = make([]float64, len(t.tracks))
		for j, tr := range t.tracks {
			cost[i][j] = forbidden
			if !t.cfg.MixClasses && tr.ClassID != d.ClassID {
				continue
			}
			if iou := d.BBox.IoU(predicted[j]); iou >= t.cfg.IoUThreshold {
				cost[i][j] = 1 - iou
			}
		}
	}

	matched := make([]bool, len(t.tracks))
	out := make([]detection.Record, len(dets))
	copy(out, dets)

	for i, j := range assign(cost) {
		if j < 0 {
			tr := &track{
				Track: Track{ID: t.nextID, ClassID: dets[i].ClassID},
				kf:    NewKalmanFilter(t.cfg.ProcessNoise, t.cfg.MeasurementNoise),
			}
			t.nextID++
			tr.update(dets[i].BBox)
			t.tracks = append(t.tracks, tr)
			out[i].TrackID = tr.ID
			log.Debugf("New track #%d class %d", tr.ID, tr.ClassID)
			continue
		}
		t.tracks[j].update(dets[i].BBox)
		matched[j] = true
		out[i].TrackID = t.tracks[j].ID
	}

	kept := t.tracks[:0]
	for j, tr := range t.tracks {
		if j < len(matched) && !matched[j] {
			tr.Misses++
			if tr.Misses > t.cfg.MaxMisses {
				log.Debugf("Dropped track #%d after %d misses", tr.ID, tr.Misses)
				continue
			}
		}
		kept = append(kept, tr)
	}
	t.tracks = kept

	return out
}

// Tracks returns a snapshot of the live tracks
func (t *Tracker) Tracks() []Track {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Track, len(t.tracks))
	for i, tr := range t.tracks {
		out[i] = tr.Track
	}
	return out
}

// Reset drops every track and restarts identifiers at 1
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracks = nil
	t.nextID = 1
}

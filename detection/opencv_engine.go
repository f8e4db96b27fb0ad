package detection

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// OpenCVEngine runs a YOLO-style network through the OpenCV DNN module.
// Output rows are [cx, cy, w, h, objectness, class scores...].
type OpenCVEngine struct {
	net    gocv.Net
	opts   EngineOptions
	cuda   bool
	mu     sync.Mutex
	info   EngineInfo
	height int
	width  int
}

// NewOpenCVEngine loads the network and selects the CUDA or CPU backend
func NewOpenCVEngine(opts EngineOptions, cuda bool) (*OpenCVEngine, error) {
	if opts.InputHeight <= 0 || opts.InputWidth <= 0 {
		return nil, fmt.Errorf("%w: model input %dx%d", ErrBadDimensions, opts.InputWidth, opts.InputHeight)
	}

	net := gocv.ReadNet(opts.ModelPath, opts.ConfigPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s and %s", opts.ModelPath, opts.ConfigPath)
	}

	backend := "CPU"
	if cuda {
		net.SetPreferableBackend(gocv.NetBackendCUDA)
		net.SetPreferableTarget(gocv.NetTargetCUDA)
		backend = "CUDA"
	} else {
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
	}

	return &OpenCVEngine{
		net:    net,
		opts:   opts,
		cuda:   cuda,
		height: opts.InputHeight,
		width:  opts.InputWidth,
		info:   EngineInfo{Type: "opencv", Backend: backend},
	}, nil
}

// InputSize returns the model input geometry
func (e *OpenCVEngine) InputSize() (int, int) {
	return e.height, e.width
}

// Info returns information about the engine
func (e *OpenCVEngine) Info() EngineInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.info
}

// Infer runs one forward pass and regroups the output per class
func (e *OpenCVEngine) Infer(ctx context.Context, frame gocv.Mat) (RawOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(e.width, e.height), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	e.net.SetInput(blob, "")
	output := e.net.Forward("")
	defer output.Close()

	sizes := output.Size()
	if len(sizes) == 0 {
		return nil, fmt.Errorf("empty network output")
	}
	cols := sizes[len(sizes)-1]
	if cols <= 5 {
		return nil, fmt.Errorf("unexpected network output width %d", cols)
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("reading network output: %w", err)
	}

	numClasses := cols - 5
	e.info.NumClasses = numClasses
	raw := make(RawOutput, numClasses)

	for off := 0; off+cols <= len(data); off += cols {
		row := data[off : off+cols]

		classID, best := 0, float32(0)
		for c, s := range row[5:] {
			if s > best {
				classID, best = c, s
			}
		}
		score := float64(best)
		if e.opts.Objectness {
			score *= float64(row[4])
		}
		if score < e.opts.ScoreFloor || score <= 0 {
			continue
		}

		cx, cy, w, h := float64(row[0]), float64(row[1]), float64(row[2]), float64(row[3])
		if e.opts.PixelCoords {
			cx, w = cx/float64(e.width), w/float64(e.width)
			cy, h = cy/float64(e.height), h/float64(e.height)
		}
		raw[classID] = append(raw[classID], []float64{
			clamp01(cy - h/2),
			clamp01(cx - w/2),
			clamp01(cy + h/2),
			clamp01(cx + w/2),
			score,
		})
	}

	for i := range raw {
		raw[i] = suppress(raw[i], e.opts.NMSThreshold)
	}
	return raw, nil
}

// Close releases the network
func (e *OpenCVEngine) Close() error {
	return e.net.Close()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

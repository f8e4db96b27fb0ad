package detection

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gocv.io/x/gocv"
)

// Engine wraps the inference accelerator: one preprocessed frame in, raw
// per-class rows out. Implementations must be safe for use from a single
// worker goroutine; callers do not pipeline requests.
type Engine interface {
	Infer(ctx context.Context, frame gocv.Mat) (RawOutput, error)
	InputSize() (height, width int)
	Info() EngineInfo
	Close() error
}

// EngineInfo contains information about the inference engine
type EngineInfo struct {
	Type       string // "opencv" or "remote"
	Backend    string // "CUDA", "CPU", endpoint URL
	NumClasses int
	InitTime   time.Duration
}

// EngineOptions selects and configures an engine
type EngineOptions struct {
	Kind         string // "opencv" (default) or "remote"
	ModelPath    string
	ConfigPath   string
	Target       string // "auto", "cuda" or "cpu"
	InputHeight  int
	InputWidth   int
	NMSThreshold float64
	ScoreFloor   float64
	Objectness   bool // multiply class score by the objectness column
	PixelCoords  bool // model emits box coordinates in input pixels
	Endpoint     string
	Timeout      time.Duration
}

// OpenEngine creates the configured engine, runs a warm-up inference and
// validates the class table against what the model emits. Any failure here
// is a startup configuration error.
func OpenEngine(opts EngineOptions, classes *ClassTable) (Engine, error) {
	start := time.Now()

	var (
		engine Engine
		err    error
	)
	switch strings.ToLower(opts.Kind) {
	case "", "opencv":
		engine, err = openOpenCV(opts)
	case "remote":
		engine, err = NewRemoteEngine(opts.Endpoint, opts.InputHeight, opts.InputWidth, opts.Timeout)
	default:
		return nil, fmt.Errorf("unknown engine kind %q", opts.Kind)
	}
	if err != nil {
		return nil, err
	}

	numClasses, err := warmUp(engine)
	if err != nil {
		engine.Close()
		return nil, fmt.Errorf("warm-up inference failed: %w", err)
	}
	if err := classes.CheckCount(numClasses); err != nil {
		engine.Close()
		return nil, err
	}

	info := engine.Info()
	log.Infof("%s engine ready (%s, %d classes, %v)", info.Type, info.Backend, numClasses, time.Since(start))
	return engine, nil
}

// openOpenCV tries CUDA first when requested or auto-detected and falls back to CPU
func openOpenCV(opts EngineOptions) (Engine, error) {
	target := strings.ToLower(opts.Target)
	if target == "" {
		target = "auto"
	}

	if target == "cuda" || (target == "auto" && hasGPUCapability()) {
		log.Info("Attempting CUDA initialization...")
		engine, err := NewOpenCVEngine(opts, true)
		if err == nil {
			_, werr := warmUp(engine)
			if werr == nil {
				return engine, nil
			}
			log.Warnf("CUDA test inference failed: %v, falling back to CPU", werr)
			engine.Close()
		} else {
			log.Warnf("CUDA initialization failed: %v, falling back to CPU", err)
		}
		if target == "cuda" {
			return nil, fmt.Errorf("cuda target requested but unavailable")
		}
	}

	engine, err := NewOpenCVEngine(opts, false)
	if err != nil {
		return nil, fmt.Errorf("cpu engine failed: %w", err)
	}
	return engine, nil
}

// hasGPUCapability checks if GPU inference is possible
func hasGPUCapability() bool {
	out, err := exec.Command("lspci").Output()
	if err != nil || !strings.Contains(strings.ToLower(string(out)), "nvidia") {
		log.Debug("No NVIDIA GPU detected")
		return false
	}
	if err := exec.Command("nvidia-smi", "--query-gpu=name", "--format=csv,noheader").Run(); err != nil {
		log.Debug("NVIDIA drivers not loaded")
		return false
	}
	matches, _ := filepath.Glob("/dev/nvidia*")
	return len(matches) > 0
}

// warmUp performs a test inference on a blank frame and returns the class count
func warmUp(engine Engine) (int, error) {
	h, w := engine.InputSize()
	frame := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	defer frame.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	raw, err := engine.Infer(ctx, frame)
	if err != nil {
		return 0, err
	}
	return len(raw), nil
}

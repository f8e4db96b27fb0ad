package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/shurvir/hailo-robot/actuator"
	"github.com/shurvir/hailo-robot/calibration"
	"github.com/shurvir/hailo-robot/detection"
)

// SampleFile is the on-disk form of a calibration session
type SampleFile struct {
	FrameWidth  int                  `yaml:"frame_width"`
	FrameHeight int                  `yaml:"frame_height"`
	Reference   string               `yaml:"reference"`
	Samples     []calibration.Sample `yaml:"samples"`
}

// placementSnippet mirrors the placement block of the service config
type placementSnippet struct {
	Placement struct {
		Strategy  string             `yaml:"strategy"`
		Reference string             `yaml:"reference"`
		Linear    calibration.Linear `yaml:"linear"`
	} `yaml:"placement"`
}

// Collector gathers samples by asking the operator for a box and reading the
// arm position after they jog the gripper onto the object
type Collector struct {
	arm     *actuator.Arm
	scanner *bufio.Scanner
}

func (c *Collector) Collect(ctx context.Context) ([]calibration.Sample, error) {
	var samples []calibration.Sample
	for i := 1; ; i++ {
		fmt.Printf("📦 [%d] Box as x1 y1 x2 y2 (blank to finish): ", i)
		if !c.scanner.Scan() {
			break
		}
		line := strings.TrimSpace(c.scanner.Text())
		if line == "" {
			break
		}
		box, err := parseBox(line)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			i--
			continue
		}

		fmt.Printf("🖐️  Jog the gripper onto the object and press Enter...")
		c.scanner.Scan()

		st, err := c.arm.State(ctx)
		if err != nil {
			return samples, fmt.Errorf("reading arm state: %w", err)
		}
		target := calibration.Target{X: st.X, Y: st.Y, Z: st.Z}
		samples = append(samples, calibration.Sample{Box: box, Target: target})
		fmt.Printf("✅ Sample %d: center (%.0f, %.0f) -> arm (%.1f, %.1f, %.1f)\n",
			i, box.CenterX(), box.CenterY(), target.X, target.Y, target.Z)
	}
	return samples, nil
}

func parseBox(s string) (detection.BBox, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(fields) != 4 {
		return detection.BBox{}, fmt.Errorf("expected 4 numbers, got %d", len(fields))
	}
	var v [4]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return detection.BBox{}, fmt.Errorf("bad number %q", f)
		}
		v[i] = n
	}
	if v[2] < v[0] || v[3] < v[1] {
		return detection.BBox{}, fmt.Errorf("box corners out of order")
	}
	return detection.BBox{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}, nil
}

func loadSamples(path string) (SampleFile, error) {
	var sf SampleFile
	data, err := os.ReadFile(path)
	if err != nil {
		return sf, err
	}
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return sf, fmt.Errorf("parsing %s: %w", path, err)
	}
	return sf, nil
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func main() {
	samplesPath := flag.String("samples", "", "YAML file of recorded samples; when empty samples are collected interactively")
	armHost := flag.String("arm", "", "arm HTTP address for interactive collection")
	serialDev := flag.String("serial", "", "arm serial device for interactive collection")
	width := flag.Int("width", 1280, "frame width in pixels")
	height := flag.Int("height", 1280, "frame height in pixels")
	reference := flag.String("reference", "center", "box y reference: center or bottom")
	outDir := flag.String("out", "", "output directory (default /tmp/placement_fit_<timestamp>)")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	entry := logrus.WithField("component", "FITTER")

	if *outDir == "" {
		*outDir = fmt.Sprintf("/tmp/placement_fit_%s", time.Now().Format("2006-01-02_15-04-05"))
	}
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		entry.Fatalf("Failed to create output directory: %v", err)
	}

	sf := SampleFile{FrameWidth: *width, FrameHeight: *height, Reference: *reference}
	if *samplesPath != "" {
		loaded, err := loadSamples(*samplesPath)
		if err != nil {
			entry.Fatalf("Failed to load samples: %v", err)
		}
		if loaded.FrameWidth > 0 {
			sf.FrameWidth, sf.FrameHeight = loaded.FrameWidth, loaded.FrameHeight
		}
		if loaded.Reference != "" {
			sf.Reference = loaded.Reference
		}
		sf.Samples = loaded.Samples
	} else {
		var transport actuator.Transport
		switch {
		case *serialDev != "":
			st, err := actuator.OpenSerial(*serialDev, actuator.PortOptions{}, 2*time.Second)
			if err != nil {
				entry.Fatalf("Failed to open serial: %v", err)
			}
			transport = st
		case *armHost != "":
			transport = actuator.NewHTTPTransport(*armHost, 5*time.Second)
		default:
			entry.Fatal("Either -samples, -arm or -serial is required")
		}

		ctx := context.Background()
		arm, err := actuator.NewArm(ctx, transport, actuator.DefaultOptions())
		if err != nil {
			entry.Fatalf("Arm unavailable: %v", err)
		}
		defer arm.Close()

		fmt.Printf("📏 Frame %d x %d, reference %s\n\n", sf.FrameWidth, sf.FrameHeight, sf.Reference)
		collector := &Collector{arm: arm, scanner: bufio.NewScanner(os.Stdin)}
		samples, err := collector.Collect(ctx)
		sf.Samples = samples
		if werr := writeYAML(filepath.Join(*outDir, "samples.yaml"), sf); werr != nil {
			entry.Errorf("Failed to save samples: %v", werr)
		}
		if err != nil {
			entry.Fatalf("Collection stopped: %v", err)
		}
	}

	ref, err := calibration.ParseReference(sf.Reference)
	if err != nil {
		entry.Fatal(err)
	}
	linear, err := calibration.FitLinear(sf.Samples, sf.FrameWidth, sf.FrameHeight, ref)
	if err != nil {
		entry.Fatalf("Fit failed: %v", err)
	}

	var snippet placementSnippet
	snippet.Placement.Strategy = "linear"
	snippet.Placement.Reference = ref.String()
	snippet.Placement.Linear = linear

	fmt.Printf("\n📋 FITTED PLACEMENT (%d samples)\n", len(sf.Samples))
	fmt.Printf("   x = %.4f * (H - y) + %.2f\n", linear.XSlope, linear.XIntercept)
	fmt.Printf("   y = %.4f * (W/2 - cx) + %.2f\n", linear.YSlope, linear.YIntercept)
	fmt.Printf("   z = %.2f\n", linear.Z)
	for i, s := range sf.Samples {
		got := linear.Place(s.Box, sf.FrameWidth, sf.FrameHeight)
		fmt.Printf("   sample %2d residual: dx=%7.2f dy=%7.2f\n", i+1, got.X-s.Target.X, got.Y-s.Target.Y)
	}

	outPath := filepath.Join(*outDir, "placement.yaml")
	if err := writeYAML(outPath, snippet); err != nil {
		entry.Fatalf("Failed to save placement: %v", err)
	}
	fmt.Printf("✅ Placement config saved to: %s\n", outPath)
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/shurvir/hailo-robot/actuator"
	"github.com/shurvir/hailo-robot/calibration"
	"github.com/shurvir/hailo-robot/chat"
	"github.com/shurvir/hailo-robot/detection"
	"github.com/shurvir/hailo-robot/dispatch"
	"github.com/shurvir/hailo-robot/media"
	"github.com/shurvir/hailo-robot/pipeline"
	"github.com/shurvir/hailo-robot/tracking"
)

// ErrInvalid is returned when the configuration cannot be used
var ErrInvalid = errors.New("invalid configuration")

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"` // text or json
}

type Camera struct {
	// device index ("0") or a stream URL
	Device string `yaml:"device" env:"CAMERA_DEVICE"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Flip   bool   `yaml:"flip" env:"CAMERA_FLIP"`
}

type Detection struct {
	Labels       string        `yaml:"labels" env:"DETECTION_LABELS"`
	Engine       string        `yaml:"engine" env:"DETECTION_ENGINE"`
	Model        string        `yaml:"model" env:"DETECTION_MODEL"`
	ModelConfig  string        `yaml:"model_config"`
	Target       string        `yaml:"target" env:"DETECTION_TARGET"`
	Endpoint     string        `yaml:"endpoint" env:"DETECTION_ENDPOINT"`
	InputHeight  int           `yaml:"input_height"`
	InputWidth   int           `yaml:"input_width"`
	Threshold    float64       `yaml:"threshold" env:"DETECTION_THRESHOLD"`
	NMSThreshold float64       `yaml:"nms_threshold"`
	Objectness   bool          `yaml:"objectness"`
	PixelCoords  bool          `yaml:"pixel_coords"`
	Timeout      time.Duration `yaml:"timeout"`
}

type Tracking struct {
	IoUThreshold     float64 `yaml:"iou_threshold"`
	MaxMisses        int     `yaml:"max_misses"`
	MixClasses       bool    `yaml:"mix_classes"`
	ProcessNoise     float64 `yaml:"process_noise"`
	MeasurementNoise float64 `yaml:"measurement_noise"`
}

type Pipeline struct {
	HistoryCapacity int           `yaml:"history_capacity"`
	StatsInterval   time.Duration `yaml:"stats_interval"`
}

type Placement struct {
	Strategy      string             `yaml:"strategy" env:"PLACEMENT_STRATEGY"`
	Reference     string             `yaml:"reference" env:"PLACEMENT_REFERENCE"`
	Trig          calibration.Trig   `yaml:"trig"`
	Linear        calibration.Linear `yaml:"linear"`
	MinConfidence float64            `yaml:"min_confidence"`
	// largest nudge in degrees per tracking poll
	MaxDegrees float64 `yaml:"max_degrees"`
}

type Session struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	MissTolerance int           `yaml:"miss_tolerance"`
}

type Arm struct {
	// http or serial
	Transport    string                       `yaml:"transport" env:"ARM_TRANSPORT"`
	Host         string                       `yaml:"host" env:"ARM_HOST"`
	Serial       string                       `yaml:"serial" env:"ARM_SERIAL"`
	Port         actuator.PortOptions         `yaml:"port"`
	Timeout      time.Duration                `yaml:"timeout"`
	Speed        int                          `yaml:"speed"`
	Acceleration int                          `yaml:"acceleration"`
	Step         float64                      `yaml:"step"`
	Hover        float64                      `yaml:"hover"`
	Lift         float64                      `yaml:"lift"`
	Settle       time.Duration                `yaml:"settle"`
	Travel       time.Duration                `yaml:"travel"`
	PickupStart  actuator.Pose                `yaml:"pickup_start"`
	Locations    map[string]actuator.Position `yaml:"locations"`
	Limits       actuator.Limits              `yaml:"limits"`
}

type Chat struct {
	APIKey       string        `yaml:"api_key" env:"GEMINI_API_KEY"`
	Model        string        `yaml:"model" env:"GEMINI_MODEL"`
	BaseURL      string        `yaml:"base_url"`
	Temperature  float64       `yaml:"temperature"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
}

type Speech struct {
	Enabled    bool   `yaml:"enabled" env:"SPEECH_ENABLED"`
	Binary     string `yaml:"binary"`
	Model      string `yaml:"model" env:"SPEECH_MODEL"`
	SampleRate int    `yaml:"sample_rate"`
}

type Clip struct {
	FPS       float64 `yaml:"fps"`
	Transcode bool    `yaml:"transcode"`
	FFmpeg    string  `yaml:"ffmpeg"`
}

type Kafka struct {
	Brokers      []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
	GroupID      string   `yaml:"group_id" env:"KAFKA_GROUP_ID"`
	EventsTopic  string   `yaml:"events_topic" env:"EVENTS_TOPIC"`
	RepliesTopic string   `yaml:"replies_topic" env:"REPLIES_TOPIC"`
}

// Media is optional; without an endpoint replies carry media inline
type Media struct {
	Endpoint  string        `yaml:"endpoint" env:"MINIO_ENDPOINT"`
	AccessKey string        `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretKey string        `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	Bucket    string        `yaml:"bucket" env:"MINIO_BUCKET"`
	Prefix    string        `yaml:"prefix"`
	Secure    bool          `yaml:"secure"`
	Expiry    time.Duration `yaml:"expiry"`
}

// Preview is optional; an empty address disables it
type Preview struct {
	Addr    string  `yaml:"addr" env:"PREVIEW_ADDR"`
	FPS     float64 `yaml:"fps"`
	Quality int     `yaml:"quality"`
}

// Config is the service configuration
type Config struct {
	Log       Log       `yaml:"log"`
	Camera    Camera    `yaml:"camera"`
	Detection Detection `yaml:"detection"`
	Tracking  Tracking  `yaml:"tracking"`
	Pipeline  Pipeline  `yaml:"pipeline"`
	Placement Placement `yaml:"placement"`
	Session   Session   `yaml:"session"`
	Arm       Arm       `yaml:"arm"`
	Chat      Chat      `yaml:"chat"`
	Speech    Speech    `yaml:"speech"`
	Clip      Clip      `yaml:"clip"`
	Kafka     Kafka     `yaml:"kafka"`
	Media     Media     `yaml:"media"`
	Preview   Preview   `yaml:"preview"`
}

// Default returns the bench configuration
func Default() *Config {
	arm := actuator.DefaultOptions()
	tr := tracking.DefaultConfig()
	ch := chat.DefaultConfig()

	return &Config{
		Log:    Log{Level: "info", Format: "text"},
		Camera: Camera{Device: "0", Width: 1280, Height: 1280},
		Detection: Detection{
			Labels:       "labels.txt",
			Engine:       "opencv",
			Target:       "auto",
			InputHeight:  640,
			InputWidth:   640,
			Threshold:    0.5,
			NMSThreshold: 0.45,
			Timeout:      5 * time.Second,
		},
		Tracking: Tracking{
			IoUThreshold:     tr.IoUThreshold,
			MaxMisses:        tr.MaxMisses,
			MixClasses:       tr.MixClasses,
			ProcessNoise:     tr.ProcessNoise,
			MeasurementNoise: tr.MeasurementNoise,
		},
		Pipeline: Pipeline{HistoryCapacity: pipeline.DefaultHistoryCapacity, StatsInterval: 30 * time.Second},
		Placement: Placement{
			Strategy:      "trig",
			Reference:     "center",
			Trig:          calibration.DefaultTrig(),
			MinConfidence: 0.5,
			MaxDegrees:    10,
		},
		Session: Session{PollInterval: dispatch.DefaultPollInterval, MissTolerance: dispatch.DefaultMissTolerance},
		Arm: Arm{
			Transport:    "http",
			Timeout:      10 * time.Second,
			Speed:        arm.Speed,
			Acceleration: arm.Acceleration,
			Step:         arm.Step,
			Hover:        arm.Hover,
			Lift:         arm.Lift,
			Settle:       arm.Settle,
			Travel:       arm.Travel,
			PickupStart:  arm.PickupStart,
			Locations:    arm.Locations,
			Limits:       arm.Limits,
		},
		Chat: Chat{
			Model:        ch.Model,
			BaseURL:      ch.BaseURL,
			Temperature:  ch.Temperature,
			PollInterval: ch.PollInterval,
			Timeout:      ch.Timeout,
		},
		Speech:  Speech{Binary: "piper", SampleRate: 22050},
		Clip:    Clip{FPS: 4, FFmpeg: "ffmpeg"},
		Kafka:   Kafka{GroupID: "hailo-robot", EventsTopic: "robot-events", RepliesTopic: "robot-replies"},
		Media:   Media{Bucket: "robot-media", Expiry: 24 * time.Hour},
		Preview: Preview{FPS: 10, Quality: 75},
	}
}

// Load applies the YAML file at path, then environment overrides, on top of
// the defaults and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalid, path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("%w: environment: %w", ErrInvalid, err)
	}
	cfg.Kafka.Brokers = lo.Compact(lo.Map(cfg.Kafka.Brokers, func(b string, _ int) string {
		return strings.TrimSpace(b)
	}))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem at once
func (c *Config) Validate() error {
	var problems []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Errorf(format, args...))
		}
	}

	check(lo.Contains([]string{"text", "json"}, c.Log.Format), "log.format must be text or json, got %q", c.Log.Format)
	check(c.Camera.Device != "", "camera.device is required")
	check(c.Camera.Width > 0 && c.Camera.Height > 0, "camera width and height must be positive")
	check(c.Detection.Labels != "", "detection.labels is required")
	check(c.Detection.Threshold > 0 && c.Detection.Threshold <= 1, "detection.threshold must be in (0, 1]")
	switch strings.ToLower(c.Detection.Engine) {
	case "opencv":
		check(c.Detection.Model != "", "detection.model is required for the opencv engine")
	case "remote":
		check(c.Detection.Endpoint != "", "detection.endpoint is required for the remote engine")
	default:
		check(false, "detection.engine must be opencv or remote, got %q", c.Detection.Engine)
	}
	check(c.Pipeline.HistoryCapacity > 0, "pipeline.history_capacity must be positive")
	if _, err := c.PlacementStrategy(); err != nil {
		check(false, "placement: %v", err)
	}
	check(c.Placement.MinConfidence >= 0 && c.Placement.MinConfidence < 1, "placement.min_confidence must be in [0, 1)")
	check(c.Session.PollInterval > 0, "session.poll_interval must be positive")
	check(c.Session.MissTolerance > 0, "session.miss_tolerance must be positive")
	switch c.Arm.Transport {
	case "http":
		check(c.Arm.Host != "", "arm.host is required for the http transport")
	case "serial":
		check(c.Arm.Serial != "", "arm.serial is required for the serial transport")
	default:
		check(false, "arm.transport must be http or serial, got %q", c.Arm.Transport)
	}
	check(c.Chat.APIKey != "", "chat.api_key (GEMINI_API_KEY) is required")
	check(len(c.Kafka.Brokers) > 0, "kafka.brokers is required")
	check(c.Kafka.EventsTopic != "" && c.Kafka.RepliesTopic != "", "kafka topics are required")
	check(c.Kafka.GroupID != "", "kafka.group_id is required")
	if c.Media.Endpoint != "" {
		check(c.Media.Bucket != "", "media.bucket is required with media.endpoint")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(problems...))
	}
	return nil
}

// PlacementStrategy builds the configured placement
func (c *Config) PlacementStrategy() (calibration.Placement, error) {
	return calibration.NewPlacement(c.Placement.Strategy, c.Placement.Reference, c.Placement.Trig, c.Placement.Linear)
}

// EngineOptions maps the detection section onto engine options
func (c *Config) EngineOptions() detection.EngineOptions {
	d := c.Detection
	return detection.EngineOptions{
		Kind:         d.Engine,
		ModelPath:    d.Model,
		ConfigPath:   d.ModelConfig,
		Target:       d.Target,
		InputHeight:  d.InputHeight,
		InputWidth:   d.InputWidth,
		NMSThreshold: d.NMSThreshold,
		ScoreFloor:   d.Threshold,
		Objectness:   d.Objectness,
		PixelCoords:  d.PixelCoords,
		Endpoint:     d.Endpoint,
		Timeout:      d.Timeout,
	}
}

// TrackerConfig maps the tracking section
func (c *Config) TrackerConfig() tracking.Config {
	t := c.Tracking
	return tracking.Config{
		IoUThreshold:     t.IoUThreshold,
		MaxMisses:        t.MaxMisses,
		MixClasses:       t.MixClasses,
		ProcessNoise:     t.ProcessNoise,
		MeasurementNoise: t.MeasurementNoise,
	}
}

// ArmOptions maps the arm section onto the bench defaults
func (c *Config) ArmOptions() actuator.Options {
	a := c.Arm
	opts := actuator.DefaultOptions()
	opts.Speed = a.Speed
	opts.Acceleration = a.Acceleration
	opts.Step = a.Step
	opts.Hover = a.Hover
	opts.Lift = a.Lift
	opts.Settle = a.Settle
	opts.Travel = a.Travel
	opts.PickupStart = a.PickupStart
	opts.Locations = lo.MapKeys(a.Locations, func(_ actuator.Position, name string) string {
		return strings.ToLower(name)
	})
	opts.Limits = a.Limits
	return opts
}

// ChatConfig maps the chat section
func (c *Config) ChatConfig() chat.Config {
	cfg := chat.DefaultConfig()
	cfg.APIKey = c.Chat.APIKey
	cfg.Model = c.Chat.Model
	cfg.BaseURL = c.Chat.BaseURL
	cfg.Temperature = c.Chat.Temperature
	cfg.PollInterval = c.Chat.PollInterval
	cfg.Timeout = c.Chat.Timeout
	return cfg
}

// MediaOptions maps the media section
func (c *Config) MediaOptions() media.Options {
	m := c.Media
	return media.Options{
		Endpoint:  m.Endpoint,
		AccessKey: m.AccessKey,
		SecretKey: m.SecretKey,
		Bucket:    m.Bucket,
		Prefix:    m.Prefix,
		Secure:    m.Secure,
		Expiry:    m.Expiry,
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/shurvir/hailo-robot/actuator"
	"github.com/shurvir/hailo-robot/bus"
	"github.com/shurvir/hailo-robot/calibration"
	"github.com/shurvir/hailo-robot/chat"
	"github.com/shurvir/hailo-robot/config"
	"github.com/shurvir/hailo-robot/detection"
	"github.com/shurvir/hailo-robot/dispatch"
	"github.com/shurvir/hailo-robot/media"
	"github.com/shurvir/hailo-robot/overlay"
	"github.com/shurvir/hailo-robot/pipeline"
	"github.com/shurvir/hailo-robot/pkg/clip"
	"github.com/shurvir/hailo-robot/preview"
	"github.com/shurvir/hailo-robot/speech"
	"github.com/shurvir/hailo-robot/tracking"
)

// Exit codes
const (
	exitConfig = 1
	exitDevice = 2
)

var (
	configPath = flag.String("config", "config.yaml", "Path to the YAML configuration file\n\t\tEnvironment variables override file values, e.g. GEMINI_API_KEY, KAFKA_BROKERS, ARM_HOST")
	logLevel   = flag.String("log-level", "", "Override log.level (debug, info, warn, error)")
	noSpeech   = flag.Bool("no-speech", false, "Do not speak chat replies even when speech.enabled is set")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Use -h for flag descriptions")
		os.Exit(exitConfig)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *noSpeech {
		cfg.Speech.Enabled = false
	}
	logger := setupLogging(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("Robot stopped")
		if errors.Is(err, pipeline.ErrDevice) {
			os.Exit(exitDevice)
		}
		os.Exit(exitConfig)
	}
	logger.Info("👋 Shut down cleanly")
}

// setupLogging configures logrus and hands every package its component logger
func setupLogging(cfg config.Log) *logrus.Entry {
	root := logrus.New()
	if cfg.Format == "json" {
		root.SetFormatter(&logrus.JSONFormatter{})
	} else {
		root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		root.Warnf("Unknown log level %q, using info", cfg.Level)
		level = logrus.InfoLevel
	}
	root.SetLevel(level)

	component := func(name string) *logrus.Entry { return root.WithField("component", name) }
	detection.SetLogger(component("DETECTION"))
	tracking.SetLogger(component("TRACKING"))
	calibration.SetLogger(component("CALIBRATION"))
	overlay.SetLogger(component("OVERLAY"))
	pipeline.SetLogger(component("PIPELINE"))
	actuator.SetLogger(component("ARM"))
	chat.SetLogger(component("CHAT"))
	speech.SetLogger(component("SPEECH"))
	clip.SetLogger(component("CLIP"))
	dispatch.SetLogger(component("DISPATCH"))
	bus.SetLogger(component("BUS"))
	media.SetLogger(component("MEDIA"))
	preview.SetLogger(component("PREVIEW"))
	return component("MAIN")
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Entry) error {
	log.Info("🤖 Starting hailo-robot")

	// Startup: every failure here is a configuration error
	classes, err := detection.LoadClassTable(cfg.Detection.Labels)
	if err != nil {
		return err
	}
	log.Infof("Loaded %d class names from %s", classes.Len(), cfg.Detection.Labels)

	engine, err := detection.OpenEngine(cfg.EngineOptions(), classes)
	if err != nil {
		return err
	}
	defer engine.Close()

	placement, err := cfg.PlacementStrategy()
	if err != nil {
		return err
	}

	transport, err := openTransport(cfg.Arm)
	if err != nil {
		return err
	}
	probeCtx, cancel := context.WithTimeout(ctx, cfg.Arm.Timeout)
	arm, err := actuator.NewArm(probeCtx, transport, cfg.ArmOptions())
	cancel()
	if err != nil {
		transport.Close()
		return err
	}
	defer arm.Close()

	gemini, err := chat.NewGemini(cfg.ChatConfig())
	if err != nil {
		return err
	}

	camera, err := gocv.OpenVideoCapture(cfg.Camera.Device)
	if err != nil {
		return fmt.Errorf("%w: open camera %s: %w", pipeline.ErrDevice, cfg.Camera.Device, err)
	}
	camera.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Camera.Width))
	camera.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Camera.Height))

	frames := pipeline.NewContext(cfg.Pipeline.HistoryCapacity)
	defer frames.Close()

	loop := pipeline.NewLoop(camera, engine, tracking.NewTracker(cfg.TrackerConfig()), overlay.NewAnnotator(classes), frames,
		pipeline.LoopConfig{
			Threshold:     cfg.Detection.Threshold,
			Flip:          cfg.Camera.Flip,
			StatsInterval: cfg.Pipeline.StatsInterval,
		})

	locator := &calibration.Locator{
		Classes:       classes,
		Placement:     placement,
		MinConfidence: cfg.Placement.MinConfidence,
		MaxDegrees:    cfg.Placement.MaxDegrees,
	}
	log.Infof("Placement strategy %s", placement.Name())

	opts := dispatch.DefaultOptions()
	opts.ClipFPS = cfg.Clip.FPS
	dispatcher := &dispatch.Dispatcher{
		Arm:          arm,
		Frames:       frames,
		Locator:      locator,
		Collaborator: gemini,
		Sessions:     dispatch.NewSessions(frames.Live, arm, locator, cfg.Session.PollInterval, cfg.Session.MissTolerance),
		Options:      opts,
	}
	defer dispatcher.Sessions.Stop()
	if cfg.Speech.Enabled {
		dispatcher.Speaker = speech.NewPiper(cfg.Speech.Binary, cfg.Speech.Model, cfg.Speech.SampleRate)
	}
	if cfg.Clip.Transcode {
		dispatcher.Transcoder = clip.NewTranscoder(cfg.Clip.FFmpeg)
	}

	var uploader bus.Uploader
	if cfg.Media.Endpoint != "" {
		store, err := media.NewStore(cfg.MediaOptions())
		if err != nil {
			return err
		}
		uploader = store
	}
	producer, err := bus.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.RepliesTopic, uploader)
	if err != nil {
		return err
	}
	defer producer.Close()
	consumer, err := bus.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.EventsTopic)
	if err != nil {
		return err
	}
	router := bus.NewRouter(dispatcher, producer, opts.Vocabulary)

	// Running: the acquisition loop owns the camera, everything else reads the sinks
	ctx, cancelAll := context.WithCancel(ctx)
	defer cancelAll()

	var wg sync.WaitGroup
	loopErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		loopErr <- loop.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		consumer.Run(ctx, router)
	}()

	if cfg.Preview.Addr != "" {
		srv := preview.NewServer(frames.Live, cfg.Preview.Addr, cfg.Preview.FPS, cfg.Preview.Quality)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				log.WithError(err).Warn("Preview stopped")
			}
		}()
	}

	log.Infof("✅ Ready: %d arm actions, listening on %s", len(opts.Vocabulary), strings.Join(cfg.Kafka.Brokers, ","))

	var result error
	select {
	case <-ctx.Done():
		log.Info("Received stop signal, cleaning up...")
	case result = <-loopErr:
		if result == nil {
			log.Info("Acquisition loop finished")
		}
	}

	cancelAll()
	consumer.Close()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Warn("Timed out waiting for workers")
	}

	log.Info(loop.Stats().Report().String())
	return result
}

func openTransport(cfg config.Arm) (actuator.Transport, error) {
	if cfg.Transport == "serial" {
		return actuator.OpenSerial(cfg.Serial, cfg.Port, cfg.Timeout)
	}
	return actuator.NewHTTPTransport(cfg.Host, cfg.Timeout), nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/LdDl/plate-passages/opencv"
	"github.com/LdDl/plate-passages/plates"
	"github.com/LdDl/plate-passages/service"
	"github.com/LdDl/plate-passages/settings"
	"github.com/LdDl/plate-passages/store"
	"github.com/rs/zerolog"
)

var (
	videoPath      = flag.String("video", "", "Video file to count plates in")
	streamURL      = flag.String("stream", "", "RTSP camera url; ?duration=N overrides and saves stream duration")
	duration       = flag.Int("duration", 0, "Stream duration in seconds for this run only (0 = saved setting)")
	dbPath         = flag.String("db", "data/plates.db", "Path to sqlite database with plate counters")
	settingsPath   = flag.String("settings", "data/settings.yaml", "Path to persisted camera settings")
	plateModel     = flag.String("plate-model", "weights/detection.onnx", "Plate region model (YOLOv8 ONNX)")
	charModel      = flag.String("char-model", "weights/recognition.onnx", "Character model (YOLOv8 ONNX)")
	inputSize      = flag.Int("input-size", opencv.DefaultInputSize, "Network input size")
	accuracy       = flag.Int("accuracy", -1, "Detection accuracy in percent, 0-100")
	frameSkip      = flag.Int("frame-skip", 0, "Process every N-th frame")
	sessionTimeout = flag.Int("session-timeout", 0, "Processed frames without a plate that end its passage")
	rotation       = flag.String("rotation", "", "Camera rotation: off, 90, 180, 270 (saved)")
	search         = flag.String("search", "", "Plate number to look up")
	list           = flag.Bool("list", false, "Print every stored plate")
	reset          = flag.Bool("reset", false, "Reset all counters")
	removeVideo    = flag.Bool("remove-video", false, "Delete video file once processed")
	logLevel       = flag.String("log-level", "info", "Log level: debug, info, warn, error")
)

func main() {
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error().Err(err).Msg("failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, logger zerolog.Logger) error {
	cfg, err := settings.Load(*settingsPath, plates.DefaultConfig(), logger)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
		return err
	}
	st, err := store.Open(*dbPath, logger.With().Str("component", "store").Logger())
	if err != nil {
		return err
	}
	defer st.Close()

	recognizer := plates.NewRecognizer(opencv.ModelLoader(opencv.ModelPaths{
		Plates:     *plateModel,
		Characters: *charModel,
		InputSize:  *inputSize,
	}, logger), logger)
	svc := service.New(
		recognizer,
		st,
		opencv.FileOpener(logger),
		opencv.StreamOpener(logger),
		plates.NewSettings(cfg),
		service.Options{SettingsPath: *settingsPath, RemoveVideo: *removeVideo},
		logger,
	)

	if err := applyFlags(svc); err != nil {
		return err
	}

	switch {
	case *reset:
		return svc.ResetCounters(ctx)
	case *search != "":
		found, n, err := svc.Search(ctx, *search)
		if err != nil {
			return err
		}
		if !found {
			fmt.Printf("%s not found in records\n", *search)
			return nil
		}
		fmt.Printf("%s found %d time(s)\n", *search, n)
		return nil
	case *list:
		summary, err := svc.AllPlates(ctx)
		if err != nil {
			return err
		}
		printCounts(summary.Plates)
		fmt.Printf("%d plates, %d passages\n", summary.TotalPlates, summary.TotalPassages)
		return nil
	case *videoPath != "":
		svc.Warmup()
		report, err := svc.ProcessVideo(ctx, *videoPath)
		if err != nil {
			return err
		}
		printCounts(report.Counts)
		return nil
	case *streamURL != "":
		url, urlDuration, err := service.ParseCameraURL(*streamURL)
		if err != nil {
			return err
		}
		if urlDuration > 0 {
			if _, err := svc.UpdateStreamDuration(urlDuration); err != nil {
				logger.Error().Err(err).Msg("can't save stream duration from url")
			}
		}
		runDuration := *duration
		if runDuration == 0 {
			runDuration = urlDuration
		}
		svc.Warmup()
		report, err := svc.ProcessStream(ctx, url, runDuration)
		if err != nil {
			return err
		}
		printCounts(report.Counts)
		return nil
	}
	status, err := svc.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("accuracy: %d%%\nframe skip: %d\nsession timeout: %d\nrotation: %s\nstream duration: %ds\npassages: %d\n",
		status.Accuracy, status.FrameSkip, status.SessionTimeout, status.Rotation, status.StreamDuration, status.TotalPassages)
	return nil
}

// applyFlags pushes settings given on command line into svc
func applyFlags(svc *service.Service) error {
	if *accuracy >= 0 {
		if _, err := svc.UpdateAccuracy(*accuracy); err != nil {
			return err
		}
	}
	if *frameSkip != 0 {
		svc.UpdateFrameSkip(*frameSkip)
	}
	if *sessionTimeout != 0 {
		svc.UpdateSessionTimeout(*sessionTimeout)
	}
	if *rotation != "" {
		if _, err := svc.UpdateRotation(*rotation); err != nil {
			return err
		}
	}
	return nil
}

func printCounts(counts plates.Counts) {
	if len(counts) == 0 {
		fmt.Println("no license plates detected")
		return
	}
	for _, plate := range counts.Plates() {
		fmt.Printf("%s: %d time(s)\n", plate, counts[plate])
	}
}

package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/LdDl/plate-passages/plates"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Store persists passages across runs
type Store interface {
	AddPlates(ctx context.Context, plateNumbers []string) error
	Search(ctx context.Context, plate string) (bool, int, error)
	All(ctx context.Context) (plates.Counts, error)
	Reset(ctx context.Context) error
}

const (
	DefaultMaxVideoSize = 20 * 1024 * 1024
)

// SupportedVideoFormats lists accepted file extensions
var SupportedVideoFormats = []string{"mp4", "avi", "mov", "mkv"}

var (
	ErrInvalidVideo     = errors.New("invalid video file")
	ErrInvalidCameraURL = errors.New("invalid camera url")
)

// Options tune a Service
type Options struct {
	// Where rotation and stream duration are persisted. Empty disables persistence
	SettingsPath string
	// Remove video file once it was processed
	RemoveVideo bool
	// Largest accepted video in bytes. Zero means DefaultMaxVideoSize
	MaxVideoSize int64
}

// Service is the entry point used by front ends: it runs the pipeline,
// merges results into the store and manages settings.
type Service struct {
	recognizer *plates.Recognizer
	pipeline   *plates.Pipeline
	settings   *plates.Settings
	store      Store
	openFile   plates.FileOpener
	openStream plates.StreamOpener
	opts       Options
	logger     zerolog.Logger
}

func New(recognizer *plates.Recognizer, store Store, openFile plates.FileOpener, openStream plates.StreamOpener, cfg *plates.Settings, opts Options, logger zerolog.Logger) *Service {
	if opts.MaxVideoSize <= 0 {
		opts.MaxVideoSize = DefaultMaxVideoSize
	}
	return &Service{
		recognizer: recognizer,
		pipeline:   plates.NewPipeline(recognizer, logger),
		settings:   cfg,
		store:      store,
		openFile:   openFile,
		openStream: openStream,
		opts:       opts,
		logger:     logger,
	}
}

// Warmup starts model loading in background
func (s *Service) Warmup() {
	s.recognizer.Warmup()
}

// ProcessVideo counts passages in a video file and adds them to the store.
// Nothing is stored when recognition fails.
func (s *Service) ProcessVideo(ctx context.Context, path string) (*plates.Report, error) {
	if s.opts.RemoveVideo {
		defer s.removeVideo(path)
	}
	if err := s.ValidateVideoFile(path); err != nil {
		return nil, err
	}
	cfg := s.settings.Snapshot()
	s.logger.Info().Str("path", path).Msg("processing video file")
	report, err := s.background(ctx, func() (*plates.Report, error) {
		return s.pipeline.ProcessFile(ctx, s.openFile, path, cfg)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "can't process video %q", path)
	}
	if err := s.merge(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// ProcessStream counts passages on a camera for duration seconds, the configured duration when zero.
func (s *Service) ProcessStream(ctx context.Context, url string, duration int) (*plates.Report, error) {
	cfg := s.settings.Snapshot()
	if duration > 0 {
		var err error
		if cfg, err = cfg.WithStreamDuration(duration); err != nil {
			return nil, err
		}
	}
	if err := s.ValidateCameraURL(ctx, url); err != nil {
		return nil, err
	}
	s.logger.Info().Str("url", url).Str("rotation", string(cfg.Rotation)).Int("duration_s", cfg.StreamDuration).Msg("processing camera stream")
	report, err := s.background(ctx, func() (*plates.Report, error) {
		return s.pipeline.ProcessStream(ctx, s.openStream, url, cfg)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "can't process stream %q", url)
	}
	if err := s.merge(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

type outcome struct {
	report *plates.Report
	err    error
}

// background runs fn on its own goroutine so the caller only waits on a channel
func (s *Service) background(ctx context.Context, fn func() (*plates.Report, error)) (*plates.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := fn()
		done <- outcome{report: report, err: err}
	}()
	select {
	case res := <-done:
		return res.report, res.err
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "stopped waiting for run")
	}
}

// merge adds one stored passage per counted passage
func (s *Service) merge(ctx context.Context, report *plates.Report) error {
	if len(report.Counts) == 0 {
		return nil
	}
	if err := s.store.AddPlates(ctx, report.Counts.Expand()); err != nil {
		return errors.Wrap(err, "can't store passages")
	}
	s.logger.Info().Str("run_id", report.RunID.String()).Int("plates", len(report.Counts)).Int("passages", report.Counts.Total()).Msg("passages stored")
	return nil
}

func (s *Service) removeVideo(path string) {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Str("path", path).Msg("video file already removed")
			return
		}
		s.logger.Error().Err(err).Str("path", path).Msg("can't remove video file")
		return
	}
	s.logger.Info().Str("path", path).Msg("video file removed")
}

// ValidateVideoFile checks that path exists, fits the size limit and has a supported extension
func (s *Service) ValidateVideoFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(ErrInvalidVideo, "file does not exist: %s", path)
	}
	if info.Size() > s.opts.MaxVideoSize {
		return errors.Wrapf(ErrInvalidVideo, "file size exceeds %dMB limit", s.opts.MaxVideoSize/(1024*1024))
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, format := range SupportedVideoFormats {
		if ext == format {
			return nil
		}
	}
	return errors.Wrapf(ErrInvalidVideo, "unsupported format %q, supported: %s", ext, strings.Join(SupportedVideoFormats, ", "))
}

// ValidateCameraURL checks url shape and that a connection can be made
func (s *Service) ValidateCameraURL(ctx context.Context, url string) error {
	if strings.TrimSpace(url) == "" {
		return errors.Wrap(ErrInvalidCameraURL, "url is empty")
	}
	if !strings.HasPrefix(url, "rtsp://") {
		return errors.Wrap(ErrInvalidCameraURL, "url must start with rtsp://")
	}
	reader, err := s.openStream(ctx, url)
	if err != nil {
		return errors.Wrapf(ErrInvalidCameraURL, "can't connect: %v", err)
	}
	if err := reader.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("can't close probe connection")
	}
	return nil
}

// Search returns stored passages of plate; input case does not matter
func (s *Service) Search(ctx context.Context, plate string) (bool, int, error) {
	found, n, err := s.store.Search(ctx, plate)
	return found, n, errors.Wrapf(err, "can't search plate %q", plate)
}

// Summary is every stored plate with totals
type Summary struct {
	Plates        plates.Counts
	TotalPlates   int
	TotalPassages int
}

func (s *Service) AllPlates(ctx context.Context) (*Summary, error) {
	counts, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Plates:        counts,
		TotalPlates:   len(counts),
		TotalPassages: counts.Total(),
	}, nil
}

func (s *Service) ResetCounters(ctx context.Context) error {
	return s.store.Reset(ctx)
}

// Status is current configuration plus store totals
type Status struct {
	Accuracy       int
	FrameSkip      int
	SessionTimeout int
	Rotation       plates.Rotation
	StreamDuration int
	TotalPassages  int
	ModelsLoaded   bool
}

func (s *Service) Status(ctx context.Context) (*Status, error) {
	cfg := s.settings.Snapshot()
	summary, err := s.AllPlates(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{
		Accuracy:       cfg.Accuracy(),
		FrameSkip:      cfg.FrameSkip,
		SessionTimeout: cfg.SessionTimeout,
		Rotation:       cfg.Rotation,
		StreamDuration: cfg.StreamDuration,
		TotalPassages:  summary.TotalPassages,
		ModelsLoaded:   s.recognizer.Loaded(),
	}, nil
}

package plates

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Mode is kind of source a run reads
type Mode string

const (
	ModeFile   Mode = "file"
	ModeStream Mode = "stream"
)

// Report is the outcome of one run
type Report struct {
	RunID uuid.UUID
	Mode  Mode
	// Frames read from the source, including skipped ones
	FramesRead      int
	FramesProcessed int
	// Stream only: frame rate used and frame budget derived from it
	FPS      float64
	Budget   int
	Passages []PassageEvent
	Counts   Counts
}

func newReport(mode Mode) *Report {
	return &Report{
		RunID:    uuid.New(),
		Mode:     mode,
		Passages: make([]PassageEvent, 0),
		Counts:   make(Counts),
	}
}

func (report *Report) record(passages []PassageEvent) {
	report.Passages = append(report.Passages, passages...)
	report.Counts.Record(passages...)
}

// Pipeline reads frames, recognizes plates in sampled ones and counts passages.
// A single run is sequential; the Pipeline itself keeps no per-run state.
type Pipeline struct {
	recognizer *Recognizer
	logger     zerolog.Logger
}

func NewPipeline(recognizer *Recognizer, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		recognizer: recognizer,
		logger:     logger,
	}
}

// ProcessFile opens a finite source and counts passages in it.
// A source that can't be opened yields an empty report and no error.
func (p *Pipeline) ProcessFile(ctx context.Context, open FileOpener, uri string, cfg Config) (*Report, error) {
	if _, err := p.recognizer.Ready(ctx); err != nil {
		return nil, err
	}
	reader, err := open(ctx, uri)
	if err != nil {
		p.logger.Error().Err(err).Str("uri", uri).Msg("can't open video file")
		return newReport(ModeFile), nil
	}
	defer p.closeReader(reader)
	return p.RunFile(ctx, reader, cfg)
}

// ProcessStream connects to a live source and counts passages for cfg.StreamDuration seconds.
// A source that can't be opened yields an empty report and no error.
func (p *Pipeline) ProcessStream(ctx context.Context, open StreamOpener, uri string, cfg Config) (*Report, error) {
	if _, err := p.recognizer.Ready(ctx); err != nil {
		return nil, err
	}
	reader, err := open(ctx, uri)
	if err != nil {
		p.logger.Error().Err(err).Str("uri", uri).Msg("can't open camera stream")
		return newReport(ModeStream), nil
	}
	defer p.closeReader(reader)
	return p.RunStream(ctx, reader, cfg)
}

// RunFile reads reader until it is exhausted. Sessions share one absence window.
func (p *Pipeline) RunFile(ctx context.Context, reader FrameReader, cfg Config) (*Report, error) {
	report := newReport(ModeFile)
	run, err := p.newRun(ctx, report, cfg, SharedWindow)
	if err != nil {
		return nil, err
	}
	run.logger.Info().Int("frame_skip", cfg.FrameSkip).Int("session_timeout", cfg.SessionTimeout).Msg("video processing started")

	for {
		frame, ok := reader.Next()
		if !ok {
			break
		}
		report.FramesRead++
		if !shouldProcess(report.FramesRead, cfg.FrameSkip) {
			closeFrame(frame)
			continue
		}
		if err := run.process(frame); err != nil {
			return nil, err
		}
	}
	return run.finish(), nil
}

// RunStream reads reader while it is live and the frame budget lasts. Every plate has its own absence counter.
func (p *Pipeline) RunStream(ctx context.Context, reader StreamReader, cfg Config) (*Report, error) {
	report := newReport(ModeStream)
	run, err := p.newRun(ctx, report, cfg, PerPlate)
	if err != nil {
		return nil, err
	}
	report.FPS = EffectiveFPS(reader.ProbeFPS())
	report.Budget = FrameBudget(report.FPS, cfg.StreamDuration)
	run.logger.Info().
		Str("rotation", string(cfg.Rotation)).
		Int("duration_s", cfg.StreamDuration).
		Float64("fps", report.FPS).
		Int("budget", report.Budget).
		Msg("stream processing started")

	for reader.Live() && report.FramesRead < report.Budget {
		frame, ok := reader.Next()
		if !ok {
			break
		}
		frame, err := rotate(frame, cfg.Rotation)
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d", report.FramesRead+1)
		}
		report.FramesRead++
		if !shouldProcess(report.FramesRead, cfg.FrameSkip) {
			closeFrame(frame)
			continue
		}
		if report.FramesRead%50 == 0 {
			run.logger.Info().Msgf("processed camera frame %d/%d", report.FramesRead, report.Budget)
		}
		if err := run.process(frame); err != nil {
			return nil, err
		}
	}
	return run.finish(), nil
}

// run is state of a single pass over a source
type run struct {
	ctx       context.Context
	cfg       Config
	report    *Report
	assembler *Assembler
	tracker   *SessionTracker
	logger    zerolog.Logger
}

func (p *Pipeline) newRun(ctx context.Context, report *Report, cfg Config, policy Policy) (*run, error) {
	models, err := p.recognizer.Ready(ctx)
	if err != nil {
		return nil, err
	}
	logger := p.logger.With().Str("run_id", report.RunID.String()).Str("mode", string(report.Mode)).Logger()
	return &run{
		ctx:       ctx,
		cfg:       cfg,
		report:    report,
		assembler: NewAssembler(models.Plates, models.Characters, logger),
		tracker:   NewSessionTracker(policy, cfg.SessionTimeout, logger),
		logger:    logger,
	}, nil
}

// process recognizes plates in a sampled frame and feeds the tracker. Frame is closed
func (r *run) process(frame Frame) error {
	index := r.report.FramesRead
	found, err := r.assembler.Assemble(r.ctx, frame, r.cfg)
	closeFrame(frame)
	if err != nil {
		return errors.Wrapf(err, "frame %d", index)
	}
	r.report.FramesProcessed++
	if len(found) > 0 {
		r.logger.Debug().Int("frame", index).Strs("plates", found).Int("open_sessions", r.tracker.Open()).Msg("plates in frame")
	}
	r.report.record(r.tracker.Observe(index, found))
	return nil
}

func (r *run) finish() *Report {
	r.report.record(r.tracker.Close())
	r.logger.Info().
		Int("frames_read", r.report.FramesRead).
		Int("frames_processed", r.report.FramesProcessed).
		Str("counts", fmt.Sprint(map[string]int(r.report.Counts))).
		Msg("processing finished")
	return r.report
}

func (p *Pipeline) closeReader(reader FrameReader) {
	if err := reader.Close(); err != nil {
		p.logger.Warn().Err(err).Msg("can't close frame source")
	}
}

// rotate applies camera rotation. Source frame is released when a copy is made
func rotate(frame Frame, rotation Rotation) (Frame, error) {
	if rotation == RotationOff || rotation == "" {
		return frame, nil
	}
	rotated, err := frame.Rotate(rotation)
	closeFrame(frame)
	if err != nil {
		return nil, errors.Wrapf(err, "can't rotate frame by %s", rotation)
	}
	return rotated, nil
}

func closeFrame(frame Frame) {
	if frame != nil {
		_ = frame.Close()
	}
}

// Package pipeline runs the two-stage interpreter: capture and recognition
// feeding translation, synthesis and playback through a bounded queue.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lexiqai/voice-interpreter/internal/audio"
	"github.com/lexiqai/voice-interpreter/internal/config"
	"github.com/lexiqai/voice-interpreter/internal/observability"
	"github.com/lexiqai/voice-interpreter/internal/resilience"
	"github.com/lexiqai/voice-interpreter/internal/sessionlog"
	"github.com/lexiqai/voice-interpreter/internal/speech"
	"github.com/lexiqai/voice-interpreter/internal/stt"
	"github.com/lexiqai/voice-interpreter/internal/textfilter"
	"github.com/lexiqai/voice-interpreter/internal/translate"
	"github.com/lexiqai/voice-interpreter/internal/tts"
)

var (
	// ErrQueueFull is returned by FragmentQueue.Offer. The pipeline counts it
	// as a drop and keeps going.
	ErrQueueFull = errors.New("fragment queue full")

	// ErrTooManyFailures aborts a run after a stage fails too many times in a row.
	ErrTooManyFailures = errors.New("too many consecutive engine failures")

	// ErrShutdownTimeout means a stage was still busy when the grace period ran out.
	ErrShutdownTimeout = errors.New("pipeline did not stop within the grace period")
)

// Skip reasons reported in metrics and logs.
const (
	skipRecognized = "asr_filter"
	skipTranslated = "mt_filter"
	skipSanitized  = "sanitized_empty"
	skipDensity    = "symbol_density"
	skipFailed     = "engine_failure"
)

// Config tunes a pipeline run.
type Config struct {
	SampleRate             int
	Direction              speech.Direction // DirAuto resolves per fragment
	VAD                    audio.VADConfig
	QueueSize              int
	EnqueueWait            time.Duration
	PollInterval           time.Duration
	ShutdownGrace          time.Duration
	MaxConsecutiveFailures int // 0 disables
}

// NewConfig derives the run configuration from the loaded settings.
func NewConfig(cfg *config.Config) (Config, error) {
	dir, err := speech.ParseDirection(cfg.App.Dir)
	if err != nil {
		return Config{}, err
	}
	return Config{
		SampleRate: cfg.App.SampleRate,
		Direction:  dir,
		VAD: audio.VADConfig{
			EnergyThreshold: cfg.VAD.Threshold,
			MinSpeechMs:     cfg.VAD.MinSpeechMs,
			MinSilenceMs:    cfg.VAD.MinSilenceMs,
			SampleRate:      cfg.App.SampleRate,
		},
		QueueSize:              cfg.Pipeline.QueueSize,
		EnqueueWait:            cfg.Pipeline.EnqueueWait,
		PollInterval:           cfg.Pipeline.PollInterval,
		ShutdownGrace:          cfg.Pipeline.ShutdownGrace,
		MaxConsecutiveFailures: cfg.Pipeline.MaxConsecutiveFailures,
	}, nil
}

// Engines are the external collaborators of a run.
type Engines struct {
	Source      audio.Source
	Recognizer  stt.Recognizer
	Translator  translate.Translator
	Synthesizer tts.Synthesizer
	Player      audio.Player
	SessionLog  sessionlog.Logger
}

// Stats counts what happened to fragments during a run.
type Stats struct {
	Segments int64
	Created  int64
	Dropped  int64
	Skipped  int64
	Spoken   int64
	Failures int64
}

// Pipeline wires a VAD, the engines and a fragment queue together. A Pipeline
// runs once.
type Pipeline struct {
	cfg     Config
	engines Engines
	vad     *audio.VADDetector
	queue   *FragmentQueue
	logger  zerolog.Logger
	now     func() time.Time
	start   time.Time

	asrBudget  *resilience.FailureBudget
	mtBudget   *resilience.FailureBudget
	ttsBudget  *resilience.FailureBudget
	playBudget *resilience.FailureBudget

	segments atomic.Int64
	created  atomic.Int64
	dropped  atomic.Int64
	skipped  atomic.Int64
	spoken   atomic.Int64
	failures atomic.Int64
}

// New validates the engines against cfg and builds a pipeline. A source whose
// rate differs from cfg.SampleRate is audio.ErrSampleRateMismatch.
func New(cfg Config, engines Engines, logger zerolog.Logger) (*Pipeline, error) {
	if engines.Source == nil || engines.Recognizer == nil || engines.Translator == nil ||
		engines.Synthesizer == nil || engines.Player == nil {
		return nil, fmt.Errorf("%w: pipeline needs a source and all engines", speech.ErrEngineNotInitialized)
	}
	if engines.SessionLog == nil {
		engines.SessionLog = sessionlog.Nop{}
	}
	if rate := engines.Source.SampleRate(); rate != cfg.SampleRate {
		return nil, fmt.Errorf("%w: source is %d Hz, pipeline expects %d Hz", audio.ErrSampleRateMismatch, rate, cfg.SampleRate)
	}
	if cfg.Direction == "" {
		cfg.Direction = speech.DirAuto
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = time.Second
	}
	cfg.VAD.SampleRate = cfg.SampleRate

	return &Pipeline{
		cfg:        cfg,
		engines:    engines,
		vad:        audio.NewVADDetector(&cfg.VAD),
		queue:      NewFragmentQueue(cfg.QueueSize),
		logger:     logger,
		now:        time.Now,
		asrBudget:  resilience.NewFailureBudget(cfg.MaxConsecutiveFailures),
		mtBudget:   resilience.NewFailureBudget(cfg.MaxConsecutiveFailures),
		ttsBudget:  resilience.NewFailureBudget(cfg.MaxConsecutiveFailures),
		playBudget: resilience.NewFailureBudget(cfg.MaxConsecutiveFailures),
	}, nil
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Segments: p.segments.Load(),
		Created:  p.created.Load(),
		Dropped:  p.dropped.Load(),
		Skipped:  p.skipped.Load(),
		Spoken:   p.spoken.Load(),
		Failures: p.failures.Load(),
	}
}

// Run processes audio until the source is exhausted or ctx is cancelled.
// Cancelling ctx stops capture; fragments already queued are still
// translated and spoken, bounded by the shutdown grace period. A run that
// ends normally returns nil.
func (p *Pipeline) Run(ctx context.Context) error {
	p.start = p.now()

	// Engine calls run detached from ctx; only the grace timeout cancels them.
	runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRun()

	g, gctx := errgroup.WithContext(runCtx)

	captureCtx, stopCapture := context.WithCancel(gctx)
	defer stopCapture()
	unlink := context.AfterFunc(ctx, stopCapture)
	defer unlink()

	captured := make(chan struct{})
	g.Go(func() error {
		defer close(captured)
		return p.capture(captureCtx, gctx)
	})
	g.Go(func() error {
		return p.consume(gctx, captured)
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		p.logger.Info().Int("queued", p.queue.Len()).Msg("Stop requested, draining queue")
		timer := time.NewTimer(p.cfg.ShutdownGrace)
		select {
		case err = <-done:
			timer.Stop()
		case <-timer.C:
			cancelRun()
			err = ErrShutdownTimeout
		}
	}

	stats := p.Stats()
	p.logger.Info().
		Int64("segments", stats.Segments).
		Int64("created", stats.Created).
		Int64("dropped", stats.Dropped).
		Int64("skipped", stats.Skipped).
		Int64("spoken", stats.Spoken).
		Int64("failures", stats.Failures).
		Dur("elapsed", p.now().Sub(p.start)).
		Msg("Pipeline stopped")
	return err
}

// capture reads blocks, segments them and enqueues recognized fragments. It
// never blocks on a full queue beyond the enqueue wait. Cancelling ctx ends
// the loop at the next block; a segment already handed to recognition runs on
// engineCtx and is still enqueued.
func (p *Pipeline) capture(ctx, engineCtx context.Context) error {
	src := p.engines.Source
	for {
		block, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.logger.Info().Msg("Audio source exhausted")
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("audio source: %w", err)
		}

		segment := p.vad.Push(block)
		if segment == nil {
			continue
		}
		if err := p.handleSegment(engineCtx, segment); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (p *Pipeline) handleSegment(ctx context.Context, segment []float32) error {
	rate := p.cfg.SampleRate
	duration := audio.Seconds(len(segment), rate)
	p.segments.Add(1)
	observability.RecordSegment(time.Duration(duration * float64(time.Second)))

	spanCtx, span := observability.StartStageSpan(ctx, observability.StageRecognition, "")
	started := time.Now()
	result, err := p.engines.Recognizer.Recognize(spanCtx, segment, rate)
	observability.RecordStage(observability.StageRecognition, started, err)
	observability.EndSpan(span, err)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return p.stageFailure(observability.StageRecognition, p.asrBudget, "", err)
	}
	p.asrBudget.Success()
	if result == nil {
		result = &stt.TranscriptionResult{}
	}

	if !textfilter.IsMeaningful(result.Text, textfilter.MinRecognizedLen) {
		p.skip(skipRecognized, "", result.Text)
		return nil
	}

	dir := speech.ResolveDirection(p.cfg.Direction, result.Language)
	tStart := p.now().Sub(p.start).Seconds()
	f := speech.NewFragment(tStart, duration, result.Language, result.Text, dir)
	p.created.Add(1)
	observability.RecordFragmentCreated(dir.String())

	p.logger.Debug().
		Str("fragment_id", f.ID).
		Str("src_lang", f.SrcLang).
		Str("direction", dir.String()).
		Str("text", f.ASRText).
		Msg("Fragment recognized")
	if err := p.engines.SessionLog.LogRecognition(f); err != nil {
		p.logger.Warn().Err(err).Str("fragment_id", f.ID).Msg("Failed to log recognition")
	}

	err = p.queue.Offer(ctx, f, p.cfg.EnqueueWait)
	observability.SetQueueDepth(p.queue.Len())
	if errors.Is(err, ErrQueueFull) {
		p.dropped.Add(1)
		observability.RecordFragmentDropped()
		p.logger.Warn().
			Str("fragment_id", f.ID).
			Int("capacity", p.queue.Cap()).
			Msg("Queue full, fragment dropped")
	}
	return nil
}

// consume drains the queue until capture has finished and the queue is empty.
func (p *Pipeline) consume(ctx context.Context, captured <-chan struct{}) error {
	for {
		f, ok := p.queue.Poll(ctx, p.cfg.PollInterval)
		if !ok {
			if ctx.Err() != nil {
				return nil
			}
			select {
			case <-captured:
				if p.queue.Len() == 0 {
					return nil
				}
			default:
			}
			continue
		}

		observability.SetQueueDepth(p.queue.Len())
		if err := p.process(ctx, f); err != nil {
			return err
		}
	}
}

// process translates, synthesizes and plays one fragment.
func (p *Pipeline) process(ctx context.Context, f *speech.Fragment) error {
	if !textfilter.IsMeaningful(f.ASRText, textfilter.MinRecognizedLen) {
		p.skip(skipRecognized, f.ID, f.ASRText)
		return nil
	}

	spanCtx, span := observability.StartStageSpan(ctx, observability.StageTranslation, f.ID)
	started := time.Now()
	hyp, err := p.engines.Translator.Translate(spanCtx, f.ASRText, f.MTDir)
	observability.RecordStage(observability.StageTranslation, started, err)
	observability.EndSpan(span, err)
	if err != nil {
		return p.stageFailure(observability.StageTranslation, p.mtBudget, f.ID, err)
	}
	p.mtBudget.Success()

	if !textfilter.IsMeaningful(hyp, textfilter.MinTranslatedLen) {
		p.skip(skipTranslated, f.ID, hyp)
		return nil
	}
	f.MTText = hyp

	if err := p.engines.SessionLog.LogTranslation(f); err != nil {
		p.logger.Warn().Err(err).Str("fragment_id", f.ID).Msg("Failed to log translation")
	}
	if err := p.engines.SessionLog.LogDialogue(f); err != nil {
		p.logger.Warn().Err(err).Str("fragment_id", f.ID).Msg("Failed to log dialogue")
	}

	text := textfilter.SanitizeForSynthesis(hyp)
	if !textfilter.IsMeaningful(text, textfilter.MinTranslatedLen) {
		p.skip(skipSanitized, f.ID, hyp)
		return nil
	}
	if textfilter.TooDense(text) {
		p.skip(skipDensity, f.ID, text)
		return nil
	}

	lang := f.MTDir.TargetLang()
	spanCtx, span = observability.StartStageSpan(ctx, observability.StageSynthesis, f.ID)
	started = time.Now()
	buf, err := p.engines.Synthesizer.Synthesize(spanCtx, text, lang)
	observability.RecordStage(observability.StageSynthesis, started, err)
	observability.EndSpan(span, err)
	if err != nil {
		return p.stageFailure(observability.StageSynthesis, p.ttsBudget, f.ID, err)
	}
	p.ttsBudget.Success()

	if err := p.engines.SessionLog.LogSynthesis(f.ID, lang, text, buf); err != nil {
		p.logger.Warn().Err(err).Str("fragment_id", f.ID).Msg("Failed to log synthesis")
	}

	spanCtx, span = observability.StartStageSpan(ctx, observability.StagePlayback, f.ID)
	started = time.Now()
	err = p.engines.Player.Play(spanCtx, buf)
	observability.RecordStage(observability.StagePlayback, started, err)
	observability.EndSpan(span, err)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return p.stageFailure(observability.StagePlayback, p.playBudget, f.ID, err)
	}
	p.playBudget.Success()

	p.spoken.Add(1)
	observability.RecordFragmentSpoken()
	p.logger.Debug().
		Str("fragment_id", f.ID).
		Str("direction", f.MTDir.String()).
		Dur("audio", buf.Duration()).
		Msg("Fragment spoken")
	return nil
}

// stageFailure logs a per-fragment engine failure and escalates once the
// stage's budget is exhausted.
func (p *Pipeline) stageFailure(stage string, budget *resilience.FailureBudget, fragmentID string, err error) error {
	p.failures.Add(1)
	p.skipped.Add(1)
	observability.RecordFragmentSkipped(skipFailed)

	p.logger.Error().
		Err(err).
		Str("stage", stage).
		Str("fragment_id", fragmentID).
		Int("consecutive", budget.Consecutive()+1).
		Msg("Engine call failed, skipping fragment")

	if budget.Failure() {
		return fmt.Errorf("%w: %s failed %d times: %w", ErrTooManyFailures, stage, budget.Consecutive(), err)
	}
	return nil
}

func (p *Pipeline) skip(reason, fragmentID, text string) {
	p.skipped.Add(1)
	observability.RecordFragmentSkipped(reason)
	p.logger.Debug().
		Str("reason", reason).
		Str("fragment_id", fragmentID).
		Str("text", text).
		Msg("Fragment skipped")
}

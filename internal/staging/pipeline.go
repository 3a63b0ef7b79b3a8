package staging

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/robertrittmuller/stagemaster-ai/internal/domain"
	"github.com/robertrittmuller/stagemaster-ai/internal/infra"
	"github.com/robertrittmuller/stagemaster-ai/internal/media"
	"github.com/robertrittmuller/stagemaster-ai/internal/storage"
)

// Options wires a Pipeline. Text and Images are usually the same OpenRouter client.
type Options struct {
	Config     Config
	Jobs       domain.JobRepository
	Store      storage.ObjectStore
	Text       TextCompleter
	Images     ImageGenerator
	Loader     ImageLoader
	Downloader media.Fetcher
	Logger     *infra.Logger
	Now        func() time.Time
}

// Pipeline drives a job through analyze, plan, synthesize and render.
type Pipeline struct {
	cfg         Config
	jobs        domain.JobRepository
	store       storage.ObjectStore
	analyzer    *Analyzer
	planner     *Planner
	synthesizer *Synthesizer
	renderer    *Renderer
	logger      *infra.Logger
	now         func() time.Time
}

func NewPipeline(opts Options) (*Pipeline, error) {
	switch {
	case opts.Jobs == nil:
		return nil, errors.New("staging: job repository is required")
	case opts.Store == nil:
		return nil, errors.New("staging: object store is required")
	case opts.Text == nil || opts.Images == nil:
		return nil, errors.New("staging: inference clients are required")
	case opts.Loader == nil || opts.Downloader == nil:
		return nil, errors.New("staging: image loader and downloader are required")
	}
	cfg := opts.Config
	if strings.TrimSpace(cfg.ResultsBucket) == "" {
		cfg.ResultsBucket = "results"
	}
	logger := infra.LoggerOrDiscard(opts.Logger)
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		cfg:         cfg,
		jobs:        opts.Jobs,
		store:       opts.Store,
		analyzer:    NewAnalyzer(opts.Text, opts.Loader, cfg.AnalysisModel, logger),
		planner:     NewPlanner(opts.Text, cfg.AnalysisModel, logger),
		synthesizer: NewSynthesizer(opts.Text, cfg.AnalysisModel, logger),
		renderer:    NewRenderer(opts.Images, opts.Loader, opts.Downloader, cfg.GenerationModel, logger),
		logger:      logger,
		now:         now,
	}, nil
}

// Process runs one job to a terminal state. It never returns an error: load
// failures are logged and leave the job untouched, and every later failure is
// recorded on the job itself.
func (p *Pipeline) Process(ctx context.Context, jobID string) {
	logger := p.logger.With().Str("job_id", jobID).Logger()

	job, image, err := p.jobs.FindJobWithImage(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Error().Msg("staging: job or associated image not found")
		} else {
			logger.Error().Err(err).Msg("staging: load job")
		}
		return
	}
	if job.Status.Terminal() {
		logger.Warn().Str("status", string(job.Status)).Msg("staging: job already finished, skipping")
		return
	}

	t := newTracker(job, p.jobs, &logger, p.now)
	if err := p.run(ctx, t, job, image, &logger); err != nil {
		logger.Error().Err(err).Msg("staging: error processing job")
		if errors.Is(err, ErrJobTerminal) {
			return
		}
		if ferr := t.fail(context.WithoutCancel(ctx), err); ferr != nil {
			logger.Error().Err(ferr).Msg("staging: record job failure")
		}
	}
}

func (p *Pipeline) run(ctx context.Context, t *tracker, job *domain.Job, image *domain.SourceImage, logger *infra.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("staging panic: %v", r)
		}
	}()

	if err := t.start(ctx); err != nil {
		return err
	}

	logger.Info().Str("stage", "analyze").Msg("staging: analyzing room")
	analysis, err := p.analyzer.Analyze(ctx, image.OriginalURL)
	if err != nil {
		return err
	}
	if err := t.advance(ctx, percentDetecting, stepDetecting); err != nil {
		return err
	}

	logger.Info().Str("stage", "plan").Msg("staging: planning furniture placement")
	plan, err := p.planner.Plan(ctx, PlanInput{
		Analysis:        analysis,
		RoomType:        job.RoomType,
		StylePreset:     job.StylePreset,
		WallDecorations: job.WallDecorations,
	})
	if err != nil {
		return err
	}
	if err := t.advance(ctx, percentPlanning, stepPlanning); err != nil {
		return err
	}

	logger.Info().Str("stage", "synthesize").Msg("staging: generating render prompt")
	prompt, err := p.synthesizer.Synthesize(ctx, SynthesisInput{
		OriginalImageURL: image.OriginalURL,
		Analysis:         analysis,
		Plan:             plan,
		StylePreset:      job.StylePreset,
		FixWhiteBalance:  job.FixWhiteBalance,
		WallDecorations:  job.WallDecorations,
	})
	if err != nil {
		return err
	}
	if err := t.advance(ctx, percentRendering, stepRendering); err != nil {
		return err
	}

	logger.Info().Str("stage", "render").Msg("staging: rendering image")
	data, err := p.renderer.Render(ctx, RenderInput{
		Prompt:          prompt,
		SourceURL:       image.OriginalURL,
		FixWhiteBalance: job.FixWhiteBalance,
	})
	if err != nil {
		return err
	}

	resultURL, err := p.upload(ctx, job.ID, data)
	if err != nil {
		return err
	}
	return t.complete(ctx, resultURL)
}

func (p *Pipeline) upload(ctx context.Context, jobID string, data []byte) (string, error) {
	contentType := ResultContentType(data)
	key := jobID + storage.ExtensionForContentType(contentType)
	url, err := p.store.Write(ctx, p.cfg.ResultsBucket, key, data, contentType)
	if err != nil {
		return "", fmt.Errorf("upload result: %w", err)
	}
	return url, nil
}

// ResultContentType sniffs rendered bytes, defaulting to JPEG for anything
// that is not recognisably PNG or WEBP.
func ResultContentType(data []byte) string {
	switch ct := http.DetectContentType(data); ct {
	case media.MediaTypePNG, media.MediaTypeWEBP:
		return ct
	default:
		return media.MediaTypeJPEG
	}
}

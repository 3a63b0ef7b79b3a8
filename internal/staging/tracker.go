package staging

import (
	"context"
	"fmt"
	"time"

	"github.com/robertrittmuller/stagemaster-ai/internal/domain"
	"github.com/robertrittmuller/stagemaster-ai/internal/infra"
)

// Progress checkpoints recorded as the pipeline advances.
const (
	percentAnalyzing = 10
	percentDetecting = 30
	percentPlanning  = 60
	percentRendering = 80
	percentComplete  = 100

	stepAnalyzing = "Analyzing room layout..."
	stepDetecting = "Detecting surfaces and depth..."
	stepPlanning  = "Generating furniture placement plan..."
	stepRendering = "Rendering final image..."
	stepComplete  = "Final rendering complete"
)

// tracker owns one job for the length of a run and commits every change
// through the repository before returning.
type tracker struct {
	job    *domain.Job
	jobs   domain.JobRepository
	logger *infra.Logger
	now    func() time.Time
}

func newTracker(job *domain.Job, jobs domain.JobRepository, logger *infra.Logger, now func() time.Time) *tracker {
	if now == nil {
		now = time.Now
	}
	return &tracker{job: job, jobs: jobs, logger: infra.LoggerOrDiscard(logger), now: now}
}

func (t *tracker) start(ctx context.Context) error {
	if t.job.Status.Terminal() {
		return ErrJobTerminal
	}
	t.job.Status = domain.JobStatusInProgress
	if t.job.StartedAt == nil {
		started := t.now().UTC()
		t.job.StartedAt = &started
	}
	if t.job.ProgressPercent > percentAnalyzing {
		t.job.ProgressPercent = 0
	}
	return t.advance(ctx, percentAnalyzing, stepAnalyzing)
}

func (t *tracker) advance(ctx context.Context, percent float64, step string) error {
	if t.job.Status.Terminal() {
		return ErrJobTerminal
	}
	if percent < t.job.ProgressPercent {
		return fmt.Errorf("%w: %.0f -> %.0f", ErrProgressRegressed, t.job.ProgressPercent, percent)
	}
	t.job.ProgressPercent = percent
	t.job.CurrentStep = step
	if err := t.commit(ctx); err != nil {
		return err
	}
	t.logger.Info().Float64("percent", percent).Str("step", step).Msg("staging: progress")
	return nil
}

func (t *tracker) complete(ctx context.Context, resultURL string) error {
	if t.job.Status.Terminal() {
		return ErrJobTerminal
	}
	prev := *t.job
	t.job.Status = domain.JobStatusCompleted
	t.job.ProgressPercent = percentComplete
	t.job.CurrentStep = stepComplete
	t.job.ResultURL = resultURL
	t.job.ErrorMessage = ""
	if t.job.CompletedAt == nil {
		completed := t.now().UTC()
		t.job.CompletedAt = &completed
	}
	if err := t.commit(ctx); err != nil {
		// An unpersisted completion must not block recording the failure.
		*t.job = prev
		return err
	}
	t.logger.Info().Str("result_url", resultURL).Msg("staging: job completed")
	return nil
}

// fail records cause as the job's error. Progress and step stay at the last
// completed checkpoint.
func (t *tracker) fail(ctx context.Context, cause error) error {
	if t.job.Status.Terminal() {
		return ErrJobTerminal
	}
	t.job.Status = domain.JobStatusError
	t.job.ErrorMessage = cause.Error()
	t.job.ResultURL = ""
	if err := t.commit(ctx); err != nil {
		return err
	}
	t.logger.Warn().Str("error_message", t.job.ErrorMessage).Float64("percent", t.job.ProgressPercent).Msg("staging: job failed")
	return nil
}

func (t *tracker) commit(ctx context.Context) error {
	if err := t.jobs.UpdateJob(ctx, t.job); err != nil {
		return fmt.Errorf("persist job %s: %w", t.job.ID, err)
	}
	return nil
}

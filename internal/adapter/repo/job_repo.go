package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/robertrittmuller/stagemaster-ai/internal/domain"
	"github.com/robertrittmuller/stagemaster-ai/internal/infra"
	"github.com/robertrittmuller/stagemaster-ai/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// FindJobWithImage fetches a job together with the image it stages.
func (r *JobRepositoryPG) FindJobWithImage(ctx context.Context, jobID string) (*domain.Job, *domain.SourceImage, error) {
	if !validID(jobID) {
		return nil, nil, domain.ErrNotFound
	}
	row := r.sql.QueryRow(ctx, sqlinline.QSelectJobWithImage, jobID)
	var (
		job   domain.Job
		image domain.SourceImage
	)
	dest := append(jobColumns(&job),
		&image.ID,
		&image.OriginalURL,
		&image.Filename,
		&image.ContentType,
		&image.CreatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		if infra.IsNoRows(err) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, fmt.Errorf("select job %s: %w", jobID, err)
	}
	return &job, &image, nil
}

// UpdateJob persists status, progress and outcome fields.
func (r *JobRepositoryPG) UpdateJob(ctx context.Context, job *domain.Job) error {
	if job == nil || !validID(job.ID) {
		return domain.ErrNotFound
	}
	row := r.sql.QueryRow(ctx, sqlinline.QUpdateJob,
		job.ID,
		string(job.Status),
		job.ProgressPercent,
		job.CurrentStep,
		job.ResultURL,
		job.ErrorMessage,
		job.StartedAt,
		job.CompletedAt,
	)
	var updatedAt time.Time
	if err := row.Scan(&updatedAt); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	job.UpdatedAt = updatedAt
	return nil
}

// Create inserts a new job record. An empty ID is assigned a fresh UUID.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	if job == nil {
		return domain.ErrInvalidInput
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = domain.JobStatusPending
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertJob,
		job.ID,
		job.ImageID,
		string(job.Status),
		job.RoomType,
		job.StylePreset,
		job.FixWhiteBalance,
		job.WallDecorations,
		job.ProgressPercent,
		job.CurrentStep,
	)
	if err := row.Scan(&job.CreatedAt, &job.UpdatedAt); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	if !validID(jobID) {
		return nil, domain.ErrNotFound
	}
	row := r.sql.QueryRow(ctx, sqlinline.QSelectJobByID, jobID)
	var job domain.Job
	if err := row.Scan(jobColumns(&job)...); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select job %s: %w", jobID, err)
	}
	return &job, nil
}

func jobColumns(job *domain.Job) []any {
	return []any{
		&job.ID,
		&job.ImageID,
		&job.Status,
		&job.RoomType,
		&job.StylePreset,
		&job.FixWhiteBalance,
		&job.WallDecorations,
		&job.ProgressPercent,
		&job.CurrentStep,
		&job.ResultURL,
		&job.ErrorMessage,
		&job.StartedAt,
		&job.CompletedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)

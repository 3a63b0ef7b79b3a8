package domain

import "context"

// JobRepository defines persistence for staging jobs.
type JobRepository interface {
	// FindJobWithImage loads a job joined with its source image. It returns
	// ErrNotFound when either side is missing.
	FindJobWithImage(ctx context.Context, jobID string) (*Job, *SourceImage, error)
	// UpdateJob writes the job's mutable fields. The write is durable when it returns.
	UpdateJob(ctx context.Context, job *Job) error
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
}

// ImageRepository handles persistence for uploaded source images.
type ImageRepository interface {
	Create(ctx context.Context, image *SourceImage) error
	GetByID(ctx context.Context, imageID string) (*SourceImage, error)
}

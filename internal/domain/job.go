package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusError      JobStatus = "error"
)

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusInProgress, JobStatusCompleted, JobStatusError:
		return true
	default:
		return false
	}
}

// Job is a single virtual staging request and its progress.
type Job struct {
	ID              string
	ImageID         string
	Status          JobStatus
	RoomType        string
	StylePreset     string
	FixWhiteBalance bool
	WallDecorations bool
	ProgressPercent float64
	CurrentStep     string
	ResultURL       string
	ErrorMessage    string
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SourceImage references the uploaded room photo a job stages.
type SourceImage struct {
	ID          string
	OriginalURL string
	Filename    string
	ContentType string
	CreatedAt   time.Time
}

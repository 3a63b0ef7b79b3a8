package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/robertrittmuller/stagemaster-ai/internal/domain"
)

type createJobRequest struct {
	ImageID         string `json:"image_id"`
	RoomType        string `json:"room_type"`
	StylePreset     string `json:"style_preset"`
	FixWhiteBalance *bool  `json:"fix_white_balance"`
	WallDecorations *bool  `json:"wall_decorations"`
}

type jobResponse struct {
	ID              string     `json:"id"`
	ImageID         string     `json:"image_id"`
	Status          string     `json:"status"`
	RoomType        string     `json:"room_type"`
	StylePreset     string     `json:"style_preset"`
	FixWhiteBalance bool       `json:"fix_white_balance"`
	WallDecorations bool       `json:"wall_decorations"`
	ProgressPercent float64    `json:"progress_percent"`
	CurrentStep     string     `json:"current_step,omitempty"`
	ResultURL       string     `json:"result_url,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func newJobResponse(job *domain.Job) jobResponse {
	return jobResponse{
		ID:              job.ID,
		ImageID:         job.ImageID,
		Status:          string(job.Status),
		RoomType:        job.RoomType,
		StylePreset:     job.StylePreset,
		FixWhiteBalance: job.FixWhiteBalance,
		WallDecorations: job.WallDecorations,
		ProgressPercent: job.ProgressPercent,
		CurrentStep:     job.CurrentStep,
		ResultURL:       job.ResultURL,
		ErrorMessage:    job.ErrorMessage,
		StartedAt:       job.StartedAt,
		CompletedAt:     job.CompletedAt,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

// CreateJob records a pending staging job for an uploaded image and queues it.
func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.ImageID = strings.TrimSpace(req.ImageID)
	req.RoomType = strings.TrimSpace(req.RoomType)
	req.StylePreset = strings.TrimSpace(req.StylePreset)
	if req.ImageID == "" || req.RoomType == "" || req.StylePreset == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "image_id, room_type and style_preset are required")
		return
	}

	if _, err := a.Images.GetByID(r.Context(), req.ImageID); err != nil {
		a.fail(w, err, "image not found")
		return
	}

	job := &domain.Job{
		ImageID:         req.ImageID,
		RoomType:        req.RoomType,
		StylePreset:     req.StylePreset,
		FixWhiteBalance: boolOr(req.FixWhiteBalance, true),
		WallDecorations: boolOr(req.WallDecorations, true),
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.fail(w, err, "failed to create job")
		return
	}
	// The row is already pending; workers sweep stale pending jobs, so a
	// failed push only delays the job.
	if err := a.Queue.Enqueue(r.Context(), job.ID); err != nil {
		a.Logger.Warn().Err(err).Str("job_id", job.ID).Msg("api: enqueue failed, job left for the pending sweep")
	}
	a.Logger.Info().Str("job_id", job.ID).Str("image_id", job.ImageID).Msg("api: job created")
	a.json(w, http.StatusAccepted, newJobResponse(job))
}

func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.fail(w, err, "failed to load job")
		return
	}
	a.json(w, http.StatusOK, newJobResponse(job))
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/robertrittmuller/stagemaster-ai/internal/domain"
	"github.com/robertrittmuller/stagemaster-ai/internal/infra"
	"github.com/robertrittmuller/stagemaster-ai/internal/queue"
	"github.com/robertrittmuller/stagemaster-ai/internal/storage"
)

// App holds the dependencies shared by every HTTP handler.
type App struct {
	Jobs           domain.JobRepository
	Images         domain.ImageRepository
	Store          storage.ObjectStore
	Queue          queue.Queue
	UploadsBucket  string
	AllowedOrigins []string
	WatchInterval  time.Duration
	Logger         *infra.Logger
}

func NewApp(jobs domain.JobRepository, images domain.ImageRepository, store storage.ObjectStore, q queue.Queue, cfg *infra.Config, logger *infra.Logger) *App {
	return &App{
		Jobs:           jobs,
		Images:         images,
		Store:          store,
		Queue:          q,
		UploadsBucket:  cfg.BucketUploads,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		WatchInterval:  time.Second,
		Logger:         infra.LoggerOrDiscard(logger),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": message, "code": errCode})
}

// fail maps domain errors onto HTTP statuses.
func (a *App) fail(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", message)
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, "bad_request", message)
	default:
		a.Logger.Error().Err(err).Msg(message)
		a.error(w, http.StatusInternalServerError, "internal", message)
	}
}

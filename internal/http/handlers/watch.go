package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/robertrittmuller/stagemaster-ai/internal/domain"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

func (a *App) upgrader() *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(a.AllowedOrigins))
	for _, origin := range a.AllowedOrigins {
		allowed[origin] = struct{}{}
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// WatchJob streams the job as JSON over a websocket each time it changes and
// closes the socket once the job reaches a terminal state.
func (a *App) WatchJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		a.fail(w, err, "job not found")
		return
	}

	conn, err := a.upgrader().Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Warn().Err(err).Str("job_id", jobID).Msg("api: websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader: only pongs and close frames are expected from the client.
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	interval := a.WatchInterval
	if interval <= 0 {
		interval = time.Second
	}
	poll := time.NewTicker(interval)
	defer poll.Stop()
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	var last *jobResponse
	// emit pushes job when it differs from what the client last saw and
	// reports whether the stream is finished.
	emit := func(job *domain.Job) bool {
		view := newJobResponse(job)
		if last == nil || changed(*last, view) {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(view); err != nil {
				return true
			}
			last = &view
		}
		if job.Status.Terminal() {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(job.Status)))
			return true
		}
		return false
	}

	if emit(job) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-poll.C:
			next, err := a.Jobs.GetByID(ctx, jobID)
			if err != nil {
				if !errors.Is(err, domain.ErrNotFound) && ctx.Err() == nil {
					a.Logger.Warn().Err(err).Str("job_id", jobID).Msg("api: watch poll failed")
				}
				continue
			}
			if emit(next) {
				return
			}
		}
	}
}

func changed(prev, next jobResponse) bool {
	return prev.Status != next.Status ||
		prev.ProgressPercent != next.ProgressPercent ||
		prev.CurrentStep != next.CurrentStep ||
		prev.ResultURL != next.ResultURL ||
		prev.ErrorMessage != next.ErrorMessage
}

package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/robertrittmuller/stagemaster-ai/internal/http/handlers"
	"github.com/robertrittmuller/stagemaster-ai/internal/middleware"
)

type RouterOptions struct {
	Logger          zerolog.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
	// StaticDir serves locally stored objects under /static when set.
	StaticDir string
}

func NewRouter(app *handlers.App, opts RouterOptions) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, middleware.Logger(opts.Logger), chimw.Recoverer, middleware.CORS(opts.AllowedOrigins))

	limited := middleware.RateLimit(opts.RateLimitPerMin, time.Minute)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)

		r.With(limited).Post("/images", app.UploadImage)

		r.Route("/jobs", func(r chi.Router) {
			r.With(limited).Post("/", app.CreateJob)
			r.Get("/{id}", app.GetJob)
			r.Get("/{id}/watch", app.WatchJob)
		})
	})

	if opts.StaticDir != "" {
		fs := stdhttp.StripPrefix("/static/", stdhttp.FileServer(stdhttp.Dir(opts.StaticDir)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}

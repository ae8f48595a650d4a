package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/staging"
)

// NewRouter wires the chi router: middleware stack, the staging API, the
// upload/result pages and the static mounts for reference images and the
// dev file store.
func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
	)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORSOrigins))
	}

	r.Get("/healthz", app.Health)

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimitPerMin > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))
		}
		r.Post("/stage-room", app.StageRoom)
	})

	r.Get("/", app.UploadPage)
	r.Get("/result", app.ResultPage)

	// Reference images must be fetchable by the generation capability when
	// the deployment origin is public.
	mountStatic(r, staging.StaticReferencePath, cfg.ExampleRoomsDir)
	// Dev file-store exposure so locally "uploaded" files resolve.
	mountStatic(r, "/static/", cfg.StoragePath)

	return r
}

func mountStatic(r chi.Router, prefix, dir string) {
	fs := http.StripPrefix(strings.TrimSuffix(prefix, "/"), http.FileServer(http.Dir(dir)))
	r.Get(prefix+"*", func(w http.ResponseWriter, req *http.Request) {
		fs.ServeHTTP(w, req)
	})
}

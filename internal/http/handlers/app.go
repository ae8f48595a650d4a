package handlers

import (
	"encoding/json"
	"net/http"

	"server/internal/infra"
	"server/internal/staging"
)

// App bundles the dependencies shared by all handlers. It is assembled once
// in main and holds no per-request state.
type App struct {
	Config *infra.Config
	Logger infra.Logger
	Stager *staging.Stager
}

// NewApp constructs the handler container.
func NewApp(cfg *infra.Config, logger infra.Logger, stager *staging.Stager) *App {
	return &App{Config: cfg, Logger: logger, Stager: stager}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// error writes the plain {error} body used by input-validation rejections.
func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]string{"error": message})
}

// failure writes the {error, details} body used for upstream failures.
func (a *App) failure(w http.ResponseWriter, code int, message string, details any) {
	a.json(w, code, map[string]any{"error": message, "details": details})
}

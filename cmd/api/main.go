package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/providers/fal"
	"server/internal/staging"
	"server/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	falClient, err := fal.NewClient(fal.Options{
		APIKey:       cfg.FalAPIKey,
		QueueBaseURL: cfg.FalBaseURL,
		Logger:       &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build fal client")
	}

	// Without credentials the fal storage API is unusable; fall back to the
	// local file store so pages and uploads still work in development.
	var uploader staging.Uploader = falClient
	if !falClient.HasCredentials() {
		logger.Warn().Msg("FAL_KEY not set, using local file store for uploads")
		store, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init file store")
		}
		uploader = store
	}

	stager := staging.NewStager(
		uploader,
		fal.NewEditGenerator(falClient, cfg.FalModel),
		staging.ReferenceResolver{Dir: cfg.ExampleRoomsDir, MaxCount: cfg.MaxReferences},
		staging.PromptBuilder{Template: cfg.PromptTemplate},
		logger,
	)

	app := handlers.NewApp(cfg, logger, stager)
	router := httpapi.NewRouter(app, cfg, logger)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

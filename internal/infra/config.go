package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	Port              string
	FalAPIKey         string
	FalBaseURL        string
	FalModel          string
	ExampleRoomsDir   string
	MaxReferences     int
	PromptTemplate    string
	StoragePath       string
	StorageBaseURL    string
	PublicOrigin      string
	CORSOrigins       []string
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	GenerationTimeout time.Duration
	RateLimitPerMin   int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		FalAPIKey:         os.Getenv("FAL_KEY"),
		FalBaseURL:        getEnv("FAL_BASE_URL", "https://queue.fal.run"),
		FalModel:          getEnv("FAL_MODEL", "fal-ai/nano-banana/edit"),
		ExampleRoomsDir:   getEnv("EXAMPLE_ROOMS_DIR", "public/example-rooms"),
		MaxReferences:     getEnvInt("MAX_REFERENCE_IMAGES", 3),
		PromptTemplate:    os.Getenv("STAGING_PROMPT"),
		StoragePath:       getEnv("STORAGE_PATH", "data/storage"),
		StorageBaseURL:    getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		PublicOrigin:      os.Getenv("PUBLIC_ORIGIN"),
		CORSOrigins:       splitCSV(os.Getenv("CORS_ALLOWED_ORIGINS")),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 300)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		GenerationTimeout: time.Second * time.Duration(getEnvInt("GENERATION_TIMEOUT_SECONDS", 240)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.MaxReferences < 0 {
		return nil, fmt.Errorf("MAX_REFERENCE_IMAGES must not be negative")
	}
	if cfg.MaxReferences > 3 {
		cfg.MaxReferences = 3
	}

	// The write timeout bounds the whole synchronous generation call, so it
	// must not undercut the generation timeout.
	if cfg.HTTPWriteTimeout < cfg.GenerationTimeout {
		cfg.HTTPWriteTimeout = cfg.GenerationTimeout + 30*time.Second
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

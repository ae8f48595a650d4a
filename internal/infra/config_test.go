package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.FalModel != "fal-ai/nano-banana/edit" {
		t.Fatalf("FalModel = %q", cfg.FalModel)
	}
	if cfg.MaxReferences != 3 {
		t.Fatalf("MaxReferences = %d, want 3", cfg.MaxReferences)
	}
	if cfg.HTTPWriteTimeout < cfg.GenerationTimeout {
		t.Fatalf("write timeout %s undercuts generation timeout %s", cfg.HTTPWriteTimeout, cfg.GenerationTimeout)
	}
}

func TestLoadConfigReferenceCap(t *testing.T) {
	t.Setenv("MAX_REFERENCE_IMAGES", "7")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() unexpected error: %v", err)
	}
	if cfg.MaxReferences != 3 {
		t.Fatalf("MaxReferences = %d, want capped 3", cfg.MaxReferences)
	}
}

func TestLoadConfigNegativeReferences(t *testing.T) {
	t.Setenv("MAX_REFERENCE_IMAGES", "-1")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig() expected error for negative reference count")
	}
}

func TestLoadConfigWriteTimeoutStretch(t *testing.T) {
	t.Setenv("HTTP_WRITE_TIMEOUT_SECONDS", "10")
	t.Setenv("GENERATION_TIMEOUT_SECONDS", "120")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() unexpected error: %v", err)
	}
	want := 120*time.Second + 30*time.Second
	if cfg.HTTPWriteTimeout != want {
		t.Fatalf("HTTPWriteTimeout = %s, want %s", cfg.HTTPWriteTimeout, want)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ChangeDetector.BufferSize != 10 {
		t.Fatalf("unexpected buffer size: %d", cfg.ChangeDetector.BufferSize)
	}
	if cfg.ChangeDetector.SignificantChangeThreshold != 0.15 {
		t.Fatalf("unexpected significance threshold: %f", cfg.ChangeDetector.SignificantChangeThreshold)
	}
	if cfg.OCR.TimeoutMs != 10000 || cfg.Vision.TimeoutMs != 5000 {
		t.Fatalf("unexpected stage timeouts: ocr=%d vision=%d", cfg.OCR.TimeoutMs, cfg.Vision.TimeoutMs)
	}
	if cfg.Detector.MinConfidence != 0.7 {
		t.Fatalf("unexpected detector floor: %f", cfg.Detector.MinConfidence)
	}
	if cfg.Validator.MinSuccessRate != 0.8 {
		t.Fatalf("unexpected min success rate: %f", cfg.Validator.MinSuccessRate)
	}
	if !cfg.Coordinator.DropOnBackpressure {
		t.Fatalf("backpressure default should drop new frames")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
detector:
  min_confidence: 0.9
solution:
  preferred_models:
    - "modelA"
    - "modelB"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Detector.MinConfidence != 0.9 {
		t.Fatalf("file override lost: %f", cfg.Detector.MinConfidence)
	}
	if len(cfg.Solution.PreferredModels) != 2 || cfg.Solution.PreferredModels[0] != "modelA" {
		t.Fatalf("model list override lost: %v", cfg.Solution.PreferredModels)
	}
	// Untouched sections keep defaults.
	if cfg.ChangeDetector.BufferSize != 10 {
		t.Fatalf("defaults clobbered: %d", cfg.ChangeDetector.BufferSize)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Name != "screensage" {
		t.Fatalf("unexpected config name: %s", cfg.Name)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SCREENSAGE_DB_PATH", "/tmp/override.db")
	t.Setenv("SCREENSAGE_LLM_BASE_URL", "http://llm:9999")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Path != "/tmp/override.db" {
		t.Fatalf("db env override lost: %s", cfg.Store.Path)
	}
	if cfg.Solution.BaseURL != "http://llm:9999" {
		t.Fatalf("llm env override lost: %s", cfg.Solution.BaseURL)
	}
	if cfg.DatabasePath() != "/tmp/override.db" {
		t.Fatalf("absolute db path must not be re-rooted: %s", cfg.DatabasePath())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detector.MinConfidence = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for out-of-range confidence")
	}

	cfg = DefaultConfig()
	cfg.Solution.PreferredModels = nil
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for empty model list")
	}
}

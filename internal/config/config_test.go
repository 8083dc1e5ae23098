package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if cfg.Capture.MaxDurationSeconds != defaultMaxDurationSeconds {
		t.Fatalf("expected default max duration, got %d", cfg.Capture.MaxDurationSeconds)
	}
	if cfg.Upload.MaxSizeMB != defaultMaxSizeMB {
		t.Fatalf("expected default max size, got %d", cfg.Upload.MaxSizeMB)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[capture]
max_duration_seconds = 120

[upload]
max_size_mb = 5
allowed_types = ["Audio/WebM", "audio/webm", " image/png "]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatal("expected config file to be found")
	}
	if cfg.Capture.MaxDurationSeconds != 120 {
		t.Fatalf("max duration = %d, want 120", cfg.Capture.MaxDurationSeconds)
	}
	if got := cfg.Upload.AllowedTypes; len(got) != 2 || got[0] != "audio/webm" || got[1] != "image/png" {
		t.Fatalf("allowed types not normalized: %v", got)
	}
	if cfg.MaxUploadBytes() != 5<<20 {
		t.Fatalf("MaxUploadBytes = %d", cfg.MaxUploadBytes())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Capture.MaxDurationSeconds = 0
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "max_duration_seconds") {
		t.Fatalf("expected max duration error, got %v", err)
	}

	cfg = Default()
	cfg.Upload.AllowedTypes = nil
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "allowed_types") {
		t.Fatalf("expected allowed types error, got %v", err)
	}

	cfg = Default()
	cfg.Assistant.Enabled = true
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "assistant.api_key") {
		t.Fatalf("expected assistant key error, got %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.MediaDir = filepath.Join(base, "media")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.MediaDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("directory %s missing: %v", dir, err)
		}
	}
}

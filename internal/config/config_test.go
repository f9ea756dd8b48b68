package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.WindowCapacity == 0 {
		t.Error("WindowCapacity should be positive")
	}
	if cfg.RendererPath != "dot" {
		t.Errorf("RendererPath = %q, want dot", cfg.RendererPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() should validate: %v", err)
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WindowCapacity != Default().WindowCapacity {
		t.Errorf("expected default window capacity")
	}
}

func TestLoad_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	body := "window_capacity: 1048576\nrenderer_path: /usr/bin/dot\noutput_dir: /tmp/out\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WindowCapacity != 1048576 {
		t.Errorf("WindowCapacity = %d, want 1048576", cfg.WindowCapacity)
	}
	if cfg.RendererPath != "/usr/bin/dot" {
		t.Errorf("RendererPath = %q", cfg.RendererPath)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestValidate_RejectsUnknownLogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestValidate_RejectsZeroCapacity(t *testing.T) {
	cfg := Default()
	cfg.WindowCapacity = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero window capacity")
	}
}

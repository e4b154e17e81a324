package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ivlev/kinema/internal/config"
)

func TestParseFlagsOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kinema.yaml")
	if err := os.WriteFile(path, []byte("width: 640\nheight: 480\nfade: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := parseFlags([]string{"-config", path, "-height", "360", "-zoom"})
	if err != nil {
		t.Fatalf("parseFlags failed: %v", err)
	}
	if cfg.Width != 640 {
		t.Errorf("Expected width from file 640, got %d", cfg.Width)
	}
	if cfg.Height != 360 {
		t.Errorf("Expected height flag 360 to win, got %d", cfg.Height)
	}
	if cfg.FadeDuration != 1 || !cfg.Zoom {
		t.Errorf("Expected fade 1 and zoom, got %v %v", cfg.FadeDuration, cfg.Zoom)
	}
}

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := parseFlags(nil)
	if err != nil {
		t.Fatal(err)
	}
	if def := config.Default(); cfg.Width != def.Width || cfg.TraceLevel != def.TraceLevel {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
}

func TestOutputName(t *testing.T) {
	name := outputName(&config.Config{InputPath: "input/pdf/My Slides.pdf"})
	if !strings.HasPrefix(name, filepath.Join("output", "My_Slides_")) || !strings.HasSuffix(name, ".mp4") {
		t.Errorf("Expected output/My_Slides_<timestamp>.mp4, got %s", name)
	}
}

func TestSetTraceLevel(t *testing.T) {
	if err := setTraceLevel("Loud"); err == nil {
		t.Error("Expected an error for an unknown level")
	}
	if err := setTraceLevel("Error"); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kinema.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileKeepsDefaults(t *testing.T) {
	cfg, err := LoadFile(writeFile(t, "width: 640\nfps: 25\nzoom: true\n"))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Width != 640 || cfg.FPS != 25 || !cfg.Zoom {
		t.Errorf("Expected file values, got %dx fps %v zoom %v", cfg.Width, cfg.FPS, cfg.Zoom)
	}
	if cfg.Height != 720 || cfg.FadeDuration != 0.5 || cfg.Detector != "contrast" {
		t.Errorf("Expected defaults for missing keys, got height %d fade %v detector %q",
			cfg.Height, cfg.FadeDuration, cfg.Detector)
	}
}

func TestLoadFileEmpty(t *testing.T) {
	cfg, err := LoadFile(writeFile(t, ""))
	if err != nil {
		t.Fatalf("Expected an empty file to load, got %v", err)
	}
	if cfg.Width != Default().Width {
		t.Errorf("Expected default width, got %d", cfg.Width)
	}
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	if _, err := LoadFile(writeFile(t, "widht: 640\n")); err == nil {
		t.Error("Expected an error for a misspelled key")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		edit    func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero width", func(c *Config) { c.Width = 0 }, true},
		{"zero fps", func(c *Config) { c.FPS = 0 }, true},
		{"project and input", func(c *Config) { c.ProjectPath, c.InputPath = "a.yaml", "b.pdf" }, true},
		{"negative fade", func(c *Config) { c.FadeDuration = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// Package config holds the command line settings, optionally preloaded from
// a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// ProjectPath loads a saved project document.
	ProjectPath string `yaml:"project"`
	// InputPath builds a slideshow from a PDF or an image directory.
	InputPath   string `yaml:"input"`
	OutputVideo string `yaml:"output"`
	// PNGDir writes a numbered PNG sequence instead of a video.
	PNGDir string `yaml:"png_dir"`
	// SavePath writes the project document before rendering.
	SavePath string `yaml:"save"`

	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`
	FPS           float64 `yaml:"fps"`
	TotalDuration float64 `yaml:"duration"`
	Workers       int     `yaml:"workers"`

	// FrameTime renders a single frame to FrameOut when FrameOut is set.
	FrameTime float64 `yaml:"frame"`
	FrameOut  string  `yaml:"frame_out"`
	// WallOut renders a contact sheet of WallCols x WallRows frames.
	WallOut   string `yaml:"wall"`
	WallCols  int    `yaml:"wall_cols"`
	WallRows  int    `yaml:"wall_rows"`
	WallWidth int    `yaml:"wall_width"`

	// Slideshow settings.
	PageDuration float64 `yaml:"page_duration"`
	FadeDuration float64 `yaml:"fade"`
	DPI          int     `yaml:"dpi"`
	Zoom         bool    `yaml:"zoom"`
	Detector     string  `yaml:"detector"`
	Ease         string  `yaml:"ease"`
	Seed         int64   `yaml:"seed"`

	VideoEncoder string `yaml:"encoder"`
	Quality      int    `yaml:"quality"`
	ShowStats    bool   `yaml:"stats"`
	TraceLevel   string `yaml:"trace"`
}

// Default returns the settings used when neither a file nor a flag sets
// a value.
func Default() *Config {
	return &Config{
		Width:        1280,
		Height:       720,
		FPS:          30,
		WallCols:     3,
		WallRows:     3,
		WallWidth:    1920,
		PageDuration: 3,
		FadeDuration: 0.5,
		DPI:          150,
		Detector:     "contrast",
		TraceLevel:   "Info",
	}
}

// LoadFile reads path over the defaults. Keys missing from the file keep
// their default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports settings no run can use.
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid size %dx%d", c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("invalid fps %v", c.FPS)
	}
	if c.ProjectPath != "" && c.InputPath != "" {
		return fmt.Errorf("choose either a project or a slideshow input, not both")
	}
	if c.TotalDuration < 0 || c.FadeDuration < 0 || c.PageDuration < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

package video

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Media is what ffprobe reports about a file's first video stream.
type Media struct {
	Width     int
	Height    int
	FPS       float64
	FrameRate string // exact rate as "num/den"
	Duration  float64
}

type probeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe runs ffprobe on path. Files without a video stream (audio) report
// only a duration.
func Probe(ctx context.Context, path string) (Media, error) {
	cmd := exec.CommandContext(ctx, FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-hide_banner",
		"-i", path,
	)
	out, err := cmd.Output()
	if err != nil {
		return Media{}, fmt.Errorf("ffprobe failed for '%s': %w", path, err)
	}
	return parseProbe(out)
}

func parseProbe(out []byte) (Media, error) {
	var p probeOutput
	if err := json.Unmarshal(out, &p); err != nil {
		return Media{}, fmt.Errorf("decoding ffprobe output: %w", err)
	}

	var m Media
	for _, s := range p.Streams {
		if s.CodecType != "video" {
			continue
		}
		m.Width, m.Height = s.Width, s.Height
		fps, err := parseRate(s.RFrameRate)
		if err != nil {
			return Media{}, err
		}
		m.FPS = fps
		m.FrameRate = s.RFrameRate
		break
	}
	if p.Format.Duration != "" {
		d, err := strconv.ParseFloat(p.Format.Duration, 64)
		if err != nil {
			return Media{}, fmt.Errorf("bad duration %q: %w", p.Format.Duration, err)
		}
		m.Duration = d
	}
	return m, nil
}

func parseRate(s string) (float64, error) {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("bad frame rate %q: %w", s, err)
	}
	if !found {
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("bad frame rate %q", s)
	}
	return n / d, nil
}

// Duration is a shortcut for the container duration of path in seconds.
func Duration(ctx context.Context, path string) (float64, error) {
	m, err := Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return m.Duration, nil
}

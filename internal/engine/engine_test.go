package engine

import (
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"

	"github.com/ivlev/kinema/internal/clip"
	"github.com/ivlev/kinema/internal/effects"
	"github.com/ivlev/kinema/internal/renderer"
	"github.com/ivlev/kinema/internal/source"
)

var green = color.NRGBA{G: 255, A: 255}

func colorClip(w, h int, c color.NRGBA) *clip.Clip {
	r := source.NewColor()
	r.Width, r.Height, r.Color = w, h, c
	return clip.New(r)
}

func smallProject(w, h int) *Project {
	p := NewProject()
	p.SetSize(w, h)
	p.FPS = 10
	p.Workers = 3
	return p
}

// collector keeps copies of the frames it is given.
type collector struct {
	frames []*image.RGBA
	failAt int
}

func (c *collector) WriteFrame(img image.Image) error {
	if c.failAt > 0 && len(c.frames) == c.failAt {
		return errors.New("disk full")
	}
	c.frames = append(c.frames, renderer.Clone(img))
	return nil
}

func (c *collector) Close() error { return nil }

func isGreen(img *image.RGBA, x, y int) bool {
	c := img.RGBAAt(x, y)
	return c.G == 255 && c.R == 0 && c.B == 0
}

func isBlack(img *image.RGBA, x, y int) bool {
	c := img.RGBAAt(x, y)
	return c.R == 0 && c.G == 0 && c.B == 0 && c.A == 255
}

func TestDuration(t *testing.T) {
	p := NewProject()
	if _, err := p.Duration(); !errors.Is(err, ErrUnbounded) {
		t.Errorf("Expected ErrUnbounded, got %v", err)
	}
	p.Target = 5
	if d, _ := p.Duration(); d != 5 {
		t.Errorf("Expected the target 5, got %v", d)
	}
	child := p.Root.AddChild(colorClip(1, 1, green))
	_ = child.Duration.Set(3)
	if d, _ := p.Duration(); d != 3 {
		t.Errorf("Expected the derived 3, got %v", d)
	}
	p.Target = 2
	if d, _ := p.Duration(); d != 2 {
		t.Errorf("Expected the smaller target 2, got %v", d)
	}
}

func TestFrameCount(t *testing.T) {
	tests := []struct {
		fps, d float64
		want   int
	}{
		{30, 1, 30},
		{4, 0.5, 2},
		{1, 1.01, 2},
		{10, 0, 0},
		{0, 5, 0},
	}
	for _, tt := range tests {
		p := &Project{FPS: tt.fps}
		if got := p.FrameCount(tt.d); got != tt.want {
			t.Errorf("Expected %d frames for %vs at %v fps, got %d", tt.want, tt.d, tt.fps, got)
		}
	}
}

func TestFrame(t *testing.T) {
	p := smallProject(6, 3)
	p.Root.AddChild(colorClip(2, 1, green)).AddEffect(effects.At(1, 1))
	img, err := p.Frame(0)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 6 || b.Dy() != 3 {
		t.Fatalf("Expected 6x3, got %dx%d", b.Dx(), b.Dy())
	}
	if !isBlack(img, 0, 0) || !isGreen(img, 1, 1) || !isGreen(img, 2, 1) || !isBlack(img, 3, 1) {
		t.Errorf("Expected the child at 1,1 on black")
	}
}

// closeCounter is an unbounded resource that counts closes.
type closeCounter struct {
	source.Color
	closed int
}

func (c *closeCounter) Close() error {
	c.closed++
	return c.Color.Close()
}

func TestWrite(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "kinema.engine")
	defer teardown()

	p := smallProject(4, 2)
	p.Target = 1
	res := &closeCounter{}
	res.Width, res.Height, res.Color.Color = 1, 1, green
	child := p.Root.AddChild(clip.New(res))
	_ = child.StartTime.Set(0.5)

	sink := &collector{}
	stats, err := p.Write(context.Background(), sink)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Frames != 10 || len(sink.frames) != 10 {
		t.Fatalf("Expected 10 frames, got %d (%d written)", stats.Frames, len(sink.frames))
	}
	if stats.Allocated+stats.Reused != 10 || stats.Allocated > stats.Workers {
		t.Errorf("Expected at most %d buffers reused over 10 frames, got %d allocated and %d reused",
			stats.Workers, stats.Allocated, stats.Reused)
	}
	for i, f := range sink.frames {
		if want := i >= 5; isGreen(f, 0, 0) != want {
			t.Errorf("Frame %d: expected child visible=%v", i, want)
		}
	}
	if res.closed != 1 {
		t.Errorf("Expected the session to close the resource once, got %d", res.closed)
	}
}

func TestWriteStopsOnSinkError(t *testing.T) {
	p := smallProject(2, 2)
	p.Target = 1
	sink := &collector{failAt: 2}
	stats, err := p.Write(context.Background(), sink)
	if err == nil || !strings.Contains(err.Error(), "write frame 2") {
		t.Errorf("Expected a write error at frame 2, got %v", err)
	}
	if stats.Frames != 2 {
		t.Errorf("Expected 2 frames written, got %d", stats.Frames)
	}
}

func TestWriteCancelled(t *testing.T) {
	p := smallProject(2, 2)
	p.Target = 1
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := p.Write(ctx, &collector{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if stats.Frames != 0 {
		t.Errorf("Expected no frames, got %d", stats.Frames)
	}
}

func TestFrameWall(t *testing.T) {
	p := smallProject(4, 2)
	p.Target = 9
	child := p.Root.AddChild(colorClip(4, 2, green))
	_ = child.StartTime.Set(4.5)

	wall, err := p.FrameWall(nil, WallOptions{Width: 8})
	if err != nil {
		t.Fatal(err)
	}
	if b := wall.Bounds(); b.Dx() != 6 || b.Dy() != 3 {
		t.Fatalf("Expected a 6x3 wall, got %dx%d", b.Dx(), b.Dy())
	}
	// tile 4 samples t=4, tile 5 samples t=5
	if !isBlack(wall, 2, 1) {
		t.Errorf("Expected tile 4 black, got %v", wall.RGBAAt(2, 1))
	}
	if !isGreen(wall, 4, 1) {
		t.Errorf("Expected tile 5 green, got %v", wall.RGBAAt(4, 1))
	}
}

func TestWallTimes(t *testing.T) {
	got := WallTimes(9, 3, 3)
	if len(got) != 9 || got[0] != 0 || got[8] != 8 {
		t.Errorf("Expected 0..8, got %v", got)
	}
	if WallTimes(9, 0, 3) != nil {
		t.Errorf("Expected no times without columns")
	}
}

func TestStatsReport(t *testing.T) {
	rows := Stats{Frames: 12, Workers: 2, Allocated: 2, Reused: 10}.Report()
	if rows[0][0] != "Metric" || rows[1][1] != "12" {
		t.Errorf("Expected a header and the frame count, got %v", rows[:2])
	}
	if rows[5][1] != "2 allocated, 10 reused" {
		t.Errorf("Expected the buffer row, got %v", rows[5])
	}
}

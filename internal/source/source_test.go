package source

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/gg"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"

	"github.com/ivlev/kinema/internal/video"
)

func TestColorFrameIsACopy(t *testing.T) {
	c := NewColor()
	c.Width, c.Height = 3, 2
	c.Color = color.NRGBA{R: 10, G: 20, B: 30, A: 255}

	a, err := c.Frame(0)
	if err != nil {
		t.Fatal(err)
	}
	if a.Bounds().Dx() != 3 || a.Bounds().Dy() != 2 {
		t.Fatalf("Expected 3x2, got %v", a.Bounds())
	}
	if got := a.RGBAAt(2, 1); got != (color.RGBA{10, 20, 30, 255}) {
		t.Errorf("Expected colour fill, got %v", got)
	}

	a.SetRGBA(0, 0, color.RGBA{})
	b, _ := c.Frame(1)
	if b.RGBAAt(0, 0).A != 255 {
		t.Errorf("Expected cached frame untouched by caller edits")
	}

	info, _ := c.Info()
	if info.Finite {
		t.Errorf("Expected colour to be unbounded")
	}
}

func TestColorRejectsEmptySize(t *testing.T) {
	c := &Color{}
	if _, err := c.Frame(0); err == nil {
		t.Errorf("Expected error for 0x0 colour")
	}
}

func TestGradient(t *testing.T) {
	g := NewGradient(100, 4, color.NRGBA{A: 255}, color.NRGBA{R: 255, A: 255})
	img, err := g.Frame(0)
	if err != nil {
		t.Fatal(err)
	}
	// gg blends stops in linear light and samples pixel centres, so the
	// ends are not pure black and red; compare against the brush itself
	brush := gg.NewLinearGradientBrush(0, 0, 100, 0).
		AddColorStop(0, gg.FromColor(g.From)).
		AddColorStop(1, gg.FromColor(g.To))
	for _, x := range []int{0, 25, 50, 75, 99} {
		want := brush.ColorAt(float64(x)+0.5, 2.5).R * 255
		if got := float64(img.RGBAAt(x, 2).R); math.Abs(got-want) > 2 {
			t.Errorf("Expected red %.0f at x=%d, got %.0f", want, x, got)
		}
	}
	left, mid, right := img.RGBAAt(0, 2).R, img.RGBAAt(50, 2).R, img.RGBAAt(99, 2).R
	if !(left < mid && mid < right) {
		t.Errorf("Expected red to rise left to right, got %d %d %d", left, mid, right)
	}

	g.X1 = 0
	g.Close()
	if _, err := g.Frame(0); err == nil {
		t.Errorf("Expected error for degenerate gradient line")
	}
}

func TestQRCode(t *testing.T) {
	q := NewQRCode("https://example.org", 64)
	img, err := q.Frame(0)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 64 {
		t.Fatalf("Expected 64x64, got %v", img.Bounds())
	}
	var dark, light int
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if img.RGBAAt(x, y).R == 0 {
				dark++
			} else {
				light++
			}
		}
	}
	if dark == 0 || light == 0 {
		t.Errorf("Expected both modules, got dark=%d light=%d", dark, light)
	}

	q.Recovery = 7
	q.Close()
	if _, err := q.Frame(0); err == nil {
		t.Errorf("Expected error for bad recovery level")
	}
}

func TestImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pic.png")
	src := image.NewRGBA(image.Rect(0, 0, 5, 7))
	src.SetRGBA(4, 6, color.RGBA{G: 255, A: 255})
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, src); err != nil {
		t.Fatal(err)
	}
	f.Close()

	res := NewImage(path)
	info, err := res.Info()
	if err != nil {
		t.Fatal(err)
	}
	if info.Width != 5 || info.Height != 7 {
		t.Errorf("Expected 5x7, got %dx%d", info.Width, info.Height)
	}
	img, err := res.Frame(0)
	if err != nil {
		t.Fatal(err)
	}
	if img.RGBAAt(4, 6).G != 255 {
		t.Errorf("Expected green corner, got %v", img.RGBAAt(4, 6))
	}

	if _, err := NewImage(filepath.Join(t.TempDir(), "missing.png")).Frame(0); err == nil {
		t.Errorf("Expected error for missing file")
	}
}

type fakeReader struct {
	fps    float64
	w, h   int
	calls  int
	closed int
}

func (r *fakeReader) FrameAt(t float64) (*video.Frame, error) {
	r.calls++
	n := float64(int(t * r.fps))
	img := image.NewRGBA(image.Rect(0, 0, r.w, r.h))
	img.Pix[0] = uint8(n)
	return &video.Frame{Image: img, Start: n / r.fps, End: (n + 1) / r.fps}, nil
}

func (r *fakeReader) Close() error {
	r.closed++
	return nil
}

func TestVideoCachesAndBounds(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "kinema.source")
	defer teardown()

	fr := &fakeReader{fps: 10, w: 2, h: 2}
	v := NewVideo("clip.mp4")
	v.media = &video.Media{Width: 2, Height: 2, FPS: 10, Duration: 1}
	v.open = func(string, video.Media) (frameReader, error) { return fr, nil }

	info, _ := v.Info()
	if !info.Finite || info.Duration != 1 {
		t.Errorf("Expected finite duration 1, got %+v", info)
	}

	a, err := v.Frame(0.31)
	if err != nil {
		t.Fatal(err)
	}
	if a.Pix[0] != 3 {
		t.Errorf("Expected frame 3, got %d", a.Pix[0])
	}
	// same frame slot comes from the ring
	if _, err := v.Frame(0.35); err != nil {
		t.Fatal(err)
	}
	if fr.calls != 1 {
		t.Errorf("Expected 1 decode, got %d", fr.calls)
	}

	if img, err := v.Frame(1); img != nil || err != nil {
		t.Errorf("Expected no frame at the end, got %v (%v)", img, err)
	}

	if err := v.Close(); err != nil {
		t.Fatal(err)
	}
	if fr.closed != 1 {
		t.Errorf("Expected reader closed once, got %d", fr.closed)
	}
	if _, err := v.Frame(0.35); err != nil || fr.calls != 2 {
		t.Errorf("Expected a fresh decode after Close, calls=%d err=%v", fr.calls, err)
	}
}

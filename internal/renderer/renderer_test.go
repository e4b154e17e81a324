package renderer

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

type closer struct {
	closed int
	err    error
}

func (c *closer) Close() error {
	c.closed++
	return c.err
}

func TestLocalOffsetsNest(t *testing.T) {
	ctx := NewContext(nil).At(12)
	if ctx.GlobalTime() != 12 || ctx.LocalTime() != 12 {
		t.Fatalf("Expected both cursors at 12, got %v/%v", ctx.GlobalTime(), ctx.LocalTime())
	}

	child := ctx.WithLocalOffset(5)
	grandchild := child.WithLocalOffset(2)
	if child.LocalTime() != 7 || grandchild.LocalTime() != 5 {
		t.Errorf("Expected 7 and 5, got %v and %v", child.LocalTime(), grandchild.LocalTime())
	}
	if grandchild.GlobalTime() != 12 {
		t.Errorf("Global time must not shift, got %v", grandchild.GlobalTime())
	}
	// the parent is unaffected once the nested scope is gone
	if ctx.LocalTime() != 12 {
		t.Errorf("Expected parent local time 12, got %v", ctx.LocalTime())
	}
}

func TestOutputSize(t *testing.T) {
	ctx := NewContext(nil)
	if w, h := ctx.OutputSize(); w != 0 || h != 0 {
		t.Errorf("Expected 0x0 without a record, got %dx%d", w, h)
	}
	rec := &Record{Image: image.NewRGBA(image.Rect(0, 0, 40, 30))}
	ctx = ctx.WithRecord(rec)
	if w, h := ctx.OutputSize(); w != 40 || h != 30 {
		t.Errorf("Expected 40x30, got %dx%d", w, h)
	}
	// effects may swap the image; the context follows the record
	rec.Image = image.NewRGBA(image.Rect(0, 0, 8, 9))
	if w, h := ctx.OutputSize(); w != 8 || h != 9 {
		t.Errorf("Expected 8x9 after swap, got %dx%d", w, h)
	}
}

func TestSessionClosesOnce(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "kinema.renderer")
	defer teardown()

	a, b := &closer{}, &closer{}
	s := NewSession()
	ctx := NewContext(s)
	for i := 0; i < 3; i++ {
		ctx.Track(a)
		ctx.WithLocalOffset(1).Track(a)
	}
	ctx.Track(b)
	if s.Len() != 2 {
		t.Fatalf("Expected 2 tracked handles, got %d", s.Len())
	}
	if err := s.End(); err != nil {
		t.Fatal(err)
	}
	if err := s.End(); err != nil {
		t.Fatal(err)
	}
	if a.closed != 1 || b.closed != 1 {
		t.Errorf("Expected single close each, got %d and %d", a.closed, b.closed)
	}
}

func TestRunReleasesOnError(t *testing.T) {
	boom := errors.New("boom")
	h := &closer{err: errors.New("close failed")}

	err := Run(func(ctx Context) error {
		ctx.Track(h)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected render error to surface, got %v", err)
	}
	if h.closed != 1 {
		t.Errorf("Expected handle closed on error path, got %d", h.closed)
	}
	if !errors.Is(err, h.err) {
		t.Errorf("Expected close error joined, got %v", err)
	}
}

func TestPaste(t *testing.T) {
	blue := color.RGBA{0, 0, 255, 255}
	green := color.RGBA{0, 255, 0, 255}
	palette := map[[3]uint8]byte{{0, 0, 255}: '-', {0, 255, 0}: 'o'}

	dst := solid(6, 3, blue)
	Paste(dst, solid(4, 1, green), 1, 1)
	Paste(dst, solid(2, 1, green), 5, 2) // partly outside
	Paste(dst, solid(2, 1, color.RGBA{}), 0, 0)

	want := []string{"------", "-oooo-", "-----o"}
	got := Grid(dst, palette)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestMergeAlpha(t *testing.T) {
	tests := []struct {
		name     string
		start    uint8
		alpha    float64
		strategy AlphaStrategy
		want     uint8
	}{
		{"min keeps lower", 100, 1, AlphaMin, 100},
		{"min lowers", 255, 0.5, AlphaMin, 128},
		{"max keeps higher", 200, 0.1, AlphaMax, 200},
		{"overwrite", 200, 0.2, AlphaOverwrite, 51},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := solid(2, 2, color.RGBA{tt.start, 0, 0, tt.start})
			MergeAlpha(img, tt.alpha, tt.strategy)
			px := img.RGBAAt(1, 1)
			if px.A != tt.want {
				t.Errorf("Expected alpha %d, got %d", tt.want, px.A)
			}
			if px.R > px.A {
				t.Errorf("Premultiplied colour %d exceeds alpha %d", px.R, px.A)
			}
		})
	}
}

func TestParseAlphaStrategy(t *testing.T) {
	s, err := ParseAlphaStrategy("max")
	if err != nil || s != AlphaMax {
		t.Errorf("Expected AlphaMax, got %v (%v)", s, err)
	}
	if _, err := ParseAlphaStrategy("darken"); err == nil {
		t.Error("Expected error for unknown strategy")
	}
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

package effects

import (
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/ivlev/kinema/internal/renderer"
	"github.com/ivlev/kinema/internal/variable"
)

// Resize strategies.
const (
	// Cover keeps the aspect ratio and covers the whole box, overflowing
	// along one axis.
	Cover = iota
	// Contain keeps the aspect ratio and stays inside the box.
	Contain
	// Stretch forces the exact box.
	Stretch
	// Fit covers the box and crops the overflow, centred.
	Fit
)

var ResizeStrategy = variable.EnumOf("COVER", "CONTAIN", "STRETCH", "FIT")

var errNoSize = errors.New("resize needs a width or a height")

// Resize scales the clip. Either dimension may be left unset. The centre of
// the clip stays where it was.
type Resize struct {
	variable.Holder
	Width    *variable.Variable
	Height   *variable.Variable
	Strategy *variable.Variable
}

func NewResize() *Resize {
	r := &Resize{}
	r.Width = r.Declare("width", variable.Type{Kind: variable.Int}, nil)
	r.Height = r.Declare("height", variable.Type{Kind: variable.Int}, nil)
	r.Strategy = r.Declare("strategy", ResizeStrategy, Fit)
	return r
}

// ResizeTo returns a Resize with both dimensions and a strategy set. A zero
// dimension stays unset.
func ResizeTo(width, height, strategy int) *Resize {
	r := NewResize()
	if width > 0 {
		_ = r.Width.Set(width)
	}
	if height > 0 {
		_ = r.Height.Set(height)
	}
	_ = r.Strategy.Set(strategy)
	return r
}

func (r *Resize) Kind() string { return "resize" }

func (r *Resize) Apply(ctx renderer.Context, rec *renderer.Record) error {
	if rec.Image == nil {
		return nil
	}
	w, _, err := r.Width.Int(ctx)
	if err != nil {
		return err
	}
	h, _, err := r.Height.Int(ctx)
	if err != nil {
		return err
	}
	strategy, err := intOr(ctx, r.Strategy, Fit)
	if err != nil {
		return err
	}
	if w < 0 || h < 0 {
		return fmt.Errorf("resize to negative size %dx%d", w, h)
	}

	old := rec.Image.Bounds()
	out, err := resize(rec.Image, w, h, strategy)
	if err != nil {
		return err
	}
	nb := out.Bounds()
	rec.Image = out
	rec.X -= float64(nb.Dx()-old.Dx()) / 2
	rec.Y -= float64(nb.Dy()-old.Dy()) / 2
	return nil
}

// resize implements the strategies. A zero w or h means unset.
func resize(img *image.RGBA, w, h, strategy int) (*image.RGBA, error) {
	b := img.Bounds()
	iw, ih := b.Dx(), b.Dy()
	if iw == 0 || ih == 0 {
		return img, nil
	}

	switch strategy {
	case Cover:
		bw, bh := orDefault(w, 1), orDefault(h, 1)
		return scale(img, b, coverSize(iw, ih, bw, bh)), nil

	case Contain:
		if w == 0 && h == 0 {
			return nil, errNoSize
		}
		bw, bh := orDefault(w, 1e6), orDefault(h, 1e6)
		return scale(img, b, containSize(iw, ih, bw, bh)), nil

	case Stretch:
		return scale(img, b, image.Pt(orDefault(w, iw), orDefault(h, ih))), nil

	case Fit:
		aw, ah := float64(iw), float64(ih)
		if w != 0 && h == 0 {
			ah *= float64(w) / aw
		} else if w == 0 && h != 0 {
			aw *= float64(h) / ah
		}
		size := image.Pt(orDefault(w, int(aw)), orDefault(h, int(ah)))
		return scale(img, centredCrop(b, size), size), nil
	}
	return nil, fmt.Errorf("unknown resize strategy %d", strategy)
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func coverSize(iw, ih, bw, bh int) image.Point {
	ir := float64(iw) / float64(ih)
	br := float64(bw) / float64(bh)
	switch {
	case ir < br:
		return image.Pt(bw, int(math.Round(float64(ih)/float64(iw)*float64(bw))))
	case ir > br:
		return image.Pt(int(math.Round(float64(iw)/float64(ih)*float64(bh))), bh)
	}
	return image.Pt(bw, bh)
}

func containSize(iw, ih, bw, bh int) image.Point {
	ir := float64(iw) / float64(ih)
	br := float64(bw) / float64(bh)
	switch {
	case ir > br:
		return image.Pt(bw, max(1, int(math.Round(float64(ih)/float64(iw)*float64(bw)))))
	case ir < br:
		return image.Pt(max(1, int(math.Round(float64(iw)/float64(ih)*float64(bh)))), bh)
	}
	return image.Pt(bw, bh)
}

// centredCrop is the largest centred region of b with the aspect of size.
func centredCrop(b image.Rectangle, size image.Point) image.Rectangle {
	iw, ih := float64(b.Dx()), float64(b.Dy())
	out := float64(size.X) / float64(size.Y)
	cw, ch := iw, ih
	if iw/ih >= out {
		cw = out * ih
	} else {
		ch = iw / out
	}
	x0 := b.Min.X + int(math.Round((iw-cw)/2))
	y0 := b.Min.Y + int(math.Round((ih-ch)/2))
	return image.Rect(x0, y0, x0+max(1, int(math.Round(cw))), y0+max(1, int(math.Round(ch))))
}

// scale resamples the src region of img into a new image of size.
func scale(img *image.RGBA, src image.Rectangle, size image.Point) *image.RGBA {
	size.X, size.Y = max(1, size.X), max(1, size.Y)
	out := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	if src.Dx() == size.X && src.Dy() == size.Y {
		draw.Draw(out, out.Bounds(), img, src.Min, draw.Src)
		return out
	}
	draw.CatmullRom.Scale(out, out.Bounds(), img, src, draw.Src, nil)
	return out
}

package effects

import (
	"image"
	"image/color"
	"math"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"

	"github.com/ivlev/kinema/internal/renderer"
	"github.com/ivlev/kinema/internal/variable"
)

// Corner shapes.
const (
	Curve = iota
	Straight
)

var CornerType = variable.EnumOf("CURVE", "LINE")

// Corner describes how one corner of a Border is cut. Width and Height
// override Size per axis; a corner with no extent is left square.
type Corner struct {
	variable.Holder
	Type   *variable.Variable
	Size   *variable.Variable
	Width  *variable.Variable
	Height *variable.Variable
}

func NewCorner() *Corner {
	c := &Corner{}
	c.Type = c.Declare("type", CornerType, Curve)
	c.Size = c.Declare("size", variable.Type{Kind: variable.Int}, nil)
	c.Width = c.Declare("width", variable.Type{Kind: variable.Int}, nil)
	c.Height = c.Declare("height", variable.Type{Kind: variable.Int}, nil)
	return c
}

func (c *Corner) extent(ctx renderer.Context) (kind, w, h int, err error) {
	if kind, err = intOr(ctx, c.Type, Curve); err != nil {
		return
	}
	size, err := intOr(ctx, c.Size, 0)
	if err != nil {
		return
	}
	if w, err = intOr(ctx, c.Width, size); err != nil {
		return
	}
	h, err = intOr(ctx, c.Height, size)
	return
}

// Border frames the clip with a band of Color that is Width pixels wide and
// optionally cuts its corners. The image grows by Width on every side.
type Border struct {
	variable.Holder
	Width *variable.Variable
	Color *variable.Variable

	TopLeft, TopRight       *Corner
	BottomLeft, BottomRight *Corner
}

func NewBorder() *Border {
	b := &Border{
		TopLeft:     NewCorner(),
		TopRight:    NewCorner(),
		BottomLeft:  NewCorner(),
		BottomRight: NewCorner(),
	}
	b.Width = b.Declare("width", variable.Type{Kind: variable.Int}, 5)
	b.Color = b.Declare("color", variable.Type{Kind: variable.Color}, "#ffffff")
	return b
}

// Corners returns the corners keyed by their document names.
func (b *Border) Corners() map[string]*Corner {
	return map[string]*Corner{"tl": b.TopLeft, "tr": b.TopRight, "bl": b.BottomLeft, "br": b.BottomRight}
}

func (b *Border) Kind() string { return "border" }

// cut is a resolved corner with the edges it touches.
type cut struct {
	kind, w, h int
	right      bool
	bottom     bool
}

func (b *Border) Apply(ctx renderer.Context, rec *renderer.Record) error {
	if rec.Image == nil {
		return nil
	}
	bw, err := intOr(ctx, b.Width, 5)
	if err != nil {
		return err
	}
	col, ok, err := b.Color.Color(ctx)
	if err != nil {
		return err
	}
	if !ok {
		col = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	}

	var cuts []cut
	for _, c := range []struct {
		corner        *Corner
		right, bottom bool
	}{
		{b.TopLeft, false, false}, {b.TopRight, true, false},
		{b.BottomLeft, false, true}, {b.BottomRight, true, true},
	} {
		kind, w, h, err := c.corner.extent(ctx)
		if err != nil {
			return err
		}
		if w > 0 && h > 0 {
			cuts = append(cuts, cut{kind: kind, w: w, h: h, right: c.right, bottom: c.bottom})
		}
	}

	img := rec.Image
	if len(cuts) > 0 {
		mask, err := cornerMask(img.Bounds().Dx(), img.Bounds().Dy(), cuts, 0)
		if err != nil {
			return err
		}
		renderer.MergeAlphaMask(img, mask, renderer.AlphaMin)
	}
	if bw <= 0 {
		return nil
	}

	ib := img.Bounds()
	bg := image.NewRGBA(image.Rect(0, 0, ib.Dx()+2*bw, ib.Dy()+2*bw))
	draw.Draw(bg, bg.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
	if len(cuts) > 0 {
		mask, err := cornerMask(bg.Bounds().Dx(), bg.Bounds().Dy(), cuts, bw)
		if err != nil {
			return err
		}
		renderer.MergeAlphaMask(bg, mask, renderer.AlphaMin)
	}
	renderer.Paste(bg, img, bw, bw)
	rec.Image = bg
	rec.X -= float64(bw)
	rec.Y -= float64(bw)
	return nil
}

// cornerSegments is how many straight pieces approximate a quarter ellipse.
const cornerSegments = 32

// cornerMask draws black corner cut-outs on white and returns it as an alpha
// mask. grow enlarges every cut, so the band around an image follows the
// image's own corners.
func cornerMask(w, h int, cuts []cut, grow int) (*image.Alpha, error) {
	dc := gg.NewContext(w, h)
	defer dc.Close()
	dc.ClearWithColor(gg.White)

	for _, c := range cuts {
		cw, ch := float64(c.w+grow), float64(c.h+grow)
		fx := func(v float64) float64 {
			if c.right {
				return float64(w) - v
			}
			return v
		}
		fy := func(v float64) float64 {
			if c.bottom {
				return float64(h) - v
			}
			return v
		}

		dc.SetColor(color.Black)
		if c.kind == Straight {
			dc.MoveTo(fx(0), fy(ch))
			dc.LineTo(fx(0), fy(0))
			dc.LineTo(fx(cw), fy(0))
			dc.ClosePath()
			if err := dc.Fill(); err != nil {
				return nil, err
			}
			continue
		}

		dc.MoveTo(fx(0), fy(0))
		dc.LineTo(fx(cw), fy(0))
		dc.LineTo(fx(cw), fy(ch))
		dc.LineTo(fx(0), fy(ch))
		dc.ClosePath()
		if err := dc.Fill(); err != nil {
			return nil, err
		}

		dc.SetColor(color.White)
		dc.MoveTo(fx(cw), fy(ch))
		for i := 0; i <= cornerSegments; i++ {
			a := float64(i) / cornerSegments * math.Pi / 2
			dc.LineTo(fx(cw-cw*math.Cos(a)), fy(ch-ch*math.Sin(a)))
		}
		dc.ClosePath()
		if err := dc.Fill(); err != nil {
			return nil, err
		}
	}

	px := renderer.Clone(dc.Image())
	mask := image.NewAlpha(px.Bounds())
	for i := range mask.Pix {
		mask.Pix[i] = px.Pix[i*4]
	}
	return mask, nil
}

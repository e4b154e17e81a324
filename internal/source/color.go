package source

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/gogpu/gg"

	"github.com/ivlev/kinema/internal/renderer"
)

// Color is a solid rectangle of one colour.
type Color struct {
	Width  int
	Height int
	Color  color.NRGBA
	cache  still
}

// NewColor returns a 100x100 black resource.
func NewColor() *Color {
	return &Color{Width: 100, Height: 100, Color: color.NRGBA{A: 255}}
}

func (c *Color) Info() (Info, error) {
	return Info{Width: c.Width, Height: c.Height}, nil
}

func (c *Color) Frame(float64) (*image.RGBA, error) {
	return c.cache.frame(func() (*image.RGBA, error) {
		if c.Width <= 0 || c.Height <= 0 {
			return nil, fmt.Errorf("color resource size %dx%d", c.Width, c.Height)
		}
		img := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))
		draw.Draw(img, img.Bounds(), image.NewUniform(c.Color), image.Point{}, draw.Src)
		return img, nil
	})
}

func (c *Color) Close() error {
	c.cache.drop()
	return nil
}

// Gradient fills its rectangle with a linear gradient from From to To along
// the line (X0,Y0)-(X1,Y1). Points before the start take From, points past
// the end take To.
type Gradient struct {
	Width, Height  int
	From, To       color.NRGBA
	X0, Y0, X1, Y1 float64
	cache          still
}

// NewGradient returns a left-to-right gradient over the full width.
func NewGradient(width, height int, from, to color.NRGBA) *Gradient {
	return &Gradient{
		Width: width, Height: height,
		From: from, To: to,
		X1: float64(width),
	}
}

func (g *Gradient) Info() (Info, error) {
	return Info{Width: g.Width, Height: g.Height}, nil
}

func (g *Gradient) Frame(float64) (*image.RGBA, error) {
	return g.cache.frame(g.render)
}

func (g *Gradient) render() (*image.RGBA, error) {
	if g.Width <= 0 || g.Height <= 0 {
		return nil, fmt.Errorf("gradient resource size %dx%d", g.Width, g.Height)
	}
	if g.X0 == g.X1 && g.Y0 == g.Y1 {
		return nil, fmt.Errorf("gradient line is a point (%g,%g)", g.X0, g.Y0)
	}
	dc := gg.NewContext(g.Width, g.Height)
	defer dc.Close()

	brush := gg.NewLinearGradientBrush(g.X0, g.Y0, g.X1, g.Y1).
		AddColorStop(0, gg.FromColor(g.From)).
		AddColorStop(1, gg.FromColor(g.To))
	dc.SetFillBrush(brush)
	dc.DrawRectangle(0, 0, float64(g.Width), float64(g.Height))
	if err := dc.Fill(); err != nil {
		return nil, fmt.Errorf("filling gradient: %w", err)
	}
	return renderer.Clone(dc.Image()), nil
}

func (g *Gradient) Close() error {
	g.cache.drop()
	return nil
}

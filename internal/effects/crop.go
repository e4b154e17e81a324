package effects

import (
	"fmt"
	"image"

	"github.com/ivlev/kinema/internal/renderer"
	"github.com/ivlev/kinema/internal/variable"
)

// Crop cuts pixels off each edge. The centre of what remains stays where the
// centre of the whole image was.
type Crop struct {
	variable.Holder
	Left, Top     *variable.Variable
	Right, Bottom *variable.Variable
}

func NewCrop() *Crop {
	c := &Crop{}
	c.Left = c.Declare("left", variable.Type{Kind: variable.Int}, 0)
	c.Top = c.Declare("top", variable.Type{Kind: variable.Int}, 0)
	c.Right = c.Declare("right", variable.Type{Kind: variable.Int}, 0)
	c.Bottom = c.Declare("bottom", variable.Type{Kind: variable.Int}, 0)
	return c
}

func (c *Crop) Kind() string { return "crop" }

func (c *Crop) Apply(ctx renderer.Context, rec *renderer.Record) error {
	if rec.Image == nil {
		return nil
	}
	var edges [4]int
	for i, v := range []*variable.Variable{c.Left, c.Top, c.Right, c.Bottom} {
		n, err := intOr(ctx, v, 0)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("crop %s is negative: %d", v.Name(), n)
		}
		edges[i] = n
	}
	l, t, r, bt := edges[0], edges[1], edges[2], edges[3]
	if l == 0 && t == 0 && r == 0 && bt == 0 {
		return nil
	}

	b := rec.Image.Bounds()
	if l+r >= b.Dx() || t+bt >= b.Dy() {
		return fmt.Errorf("crop %d,%d,%d,%d leaves nothing of a %dx%d image", l, t, r, bt, b.Dx(), b.Dy())
	}
	region := image.Rect(b.Min.X+l, b.Min.Y+t, b.Max.X-r, b.Max.Y-bt)
	rec.Image = renderer.Clone(rec.Image.SubImage(region))
	rec.X += float64(l+r) / 2
	rec.Y += float64(t+bt) / 2
	return nil
}

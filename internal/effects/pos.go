package effects

import (
	"github.com/ivlev/kinema/internal/renderer"
	"github.com/ivlev/kinema/internal/variable"
)

// Pos places a clip relative to its parent. Relative positioning runs
// first, absolute positioning overrides it and the offsets are added last.
type Pos struct {
	variable.Holder
	// X and Y are absolute positions of the top-left corner, or of the
	// centre when Center is set.
	X, Y    *variable.Variable
	Center  *variable.Variable
	XOffset *variable.Variable
	YOffset *variable.Variable
	// Horizontal and Vertical align within the parent, 0 is left/top and
	// 1 right/bottom.
	Horizontal *variable.Variable
	Vertical   *variable.Variable
	// Weight is how much of the clip stays inside the parent at 0 and 1:
	// 1 keeps it fully inside, 0 puts it just outside.
	Weight *variable.Variable
}

func NewPos() *Pos {
	p := &Pos{}
	p.X = p.Declare("x", variable.Type{Kind: variable.Int}, nil)
	p.Y = p.Declare("y", variable.Type{Kind: variable.Int}, nil)
	p.Center = p.Declare("center", variable.Type{Kind: variable.Bool}, false)
	p.XOffset = p.Declare("x_offset", variable.Type{Kind: variable.Int}, 0)
	p.YOffset = p.Declare("y_offset", variable.Type{Kind: variable.Int}, 0)
	p.Horizontal = p.Declare("horizontal", variable.Type{Kind: variable.Float}, nil)
	p.Vertical = p.Declare("vertical", variable.Type{Kind: variable.Float}, nil)
	p.Weight = p.Declare("weight", variable.Type{Kind: variable.Float}, 1)
	return p
}

// At returns a Pos with absolute coordinates set.
func At(x, y int) *Pos {
	p := NewPos()
	_ = p.X.Set(x)
	_ = p.Y.Set(y)
	return p
}

// Align returns a Pos with relative coordinates set.
func Align(horizontal, vertical float64) *Pos {
	p := NewPos()
	_ = p.Horizontal.Set(horizontal)
	_ = p.Vertical.Set(vertical)
	return p
}

func (p *Pos) Kind() string { return "pos" }

func (p *Pos) Apply(ctx renderer.Context, rec *renderer.Record) error {
	if rec.Image == nil {
		return nil
	}
	b := rec.Image.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	if rec.Parent != nil {
		weight, err := floatOr(ctx, p.Weight, 1)
		if err != nil {
			return err
		}
		outside := 1 - weight
		pb := rec.Parent.Bounds()

		if hv, ok, err := p.Horizontal.Float(ctx); err != nil {
			return err
		} else if ok {
			total := float64(pb.Dx()) + w*outside*2
			rec.X = -w*outside + (total-w)*hv
		}
		if vv, ok, err := p.Vertical.Float(ctx); err != nil {
			return err
		} else if ok {
			total := float64(pb.Dy()) + h*outside*2
			rec.Y = -h*outside + (total-h)*vv
		}
	}

	center, err := p.Center.Bool(ctx)
	if err != nil {
		return err
	}
	if x, ok, err := p.X.Int(ctx); err != nil {
		return err
	} else if ok {
		rec.X = float64(x)
		if center {
			rec.X -= float64(b.Dx() / 2)
		}
	}
	if y, ok, err := p.Y.Int(ctx); err != nil {
		return err
	} else if ok {
		rec.Y = float64(y)
		if center {
			rec.Y -= float64(b.Dy() / 2)
		}
	}

	dx, err := intOr(ctx, p.XOffset, 0)
	if err != nil {
		return err
	}
	dy, err := intOr(ctx, p.YOffset, 0)
	if err != nil {
		return err
	}
	rec.X += float64(dx)
	rec.Y += float64(dy)
	return nil
}

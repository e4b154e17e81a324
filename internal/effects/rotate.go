package effects

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/ivlev/kinema/internal/renderer"
	"github.com/ivlev/kinema/internal/variable"
)

// Rotate turns the clip clockwise by Angle degrees around its centre. The
// canvas grows to hold the rotated image and new area is transparent.
type Rotate struct {
	variable.Holder
	Angle *variable.Variable
}

func NewRotate() *Rotate {
	r := &Rotate{}
	r.Angle = r.Declare("angle", variable.Type{Kind: variable.Float}, 0)
	return r
}

// RotateBy returns a Rotate with a static angle.
func RotateBy(degrees float64) *Rotate {
	r := NewRotate()
	_ = r.Angle.Set(degrees)
	return r
}

func (r *Rotate) Kind() string { return "rotate" }

func (r *Rotate) Apply(ctx renderer.Context, rec *renderer.Record) error {
	if rec.Image == nil {
		return nil
	}
	angle, err := floatOr(ctx, r.Angle, 0)
	if err != nil {
		return err
	}
	old := rec.Image.Bounds()
	out := rotate(rec.Image, angle)
	nb := out.Bounds()
	rec.Image = out
	rec.X += float64(int(float64(old.Dx()-nb.Dx()) / 2))
	rec.Y += float64(int(float64(old.Dy()-nb.Dy()) / 2))
	return nil
}

func rotate(img *image.RGBA, degrees float64) *image.RGBA {
	deg := math.Mod(degrees, 360)
	if deg < 0 {
		deg += 360
	}
	// quarter turns are exact pixel moves
	if deg == 0 || deg == 90 || deg == 180 || deg == 270 {
		return quarterTurns(img, int(deg)/90)
	}

	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	nw := int(math.Ceil(math.Abs(w*cos) + math.Abs(h*sin) - 1e-9))
	nh := int(math.Ceil(math.Abs(w*sin) + math.Abs(h*cos) - 1e-9))
	out := image.NewRGBA(image.Rect(0, 0, nw, nh))

	// source to destination, y points down so this turns clockwise
	sx := float64(b.Min.X) + w/2
	sy := float64(b.Min.Y) + h/2
	dx, dy := float64(nw)/2, float64(nh)/2
	m := f64.Aff3{
		cos, -sin, dx - (cos*sx - sin*sy),
		sin, cos, dy - (sin*sx + cos*sy),
	}
	draw.BiLinear.Transform(out, m, img, b, draw.Src, nil)
	return out
}

func quarterTurns(img *image.RGBA, n int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if n%2 == 1 {
		w, h = h, w
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sx, sy := x-b.Min.X, y-b.Min.Y
			var tx, ty int
			switch n {
			case 0:
				tx, ty = sx, sy
			case 1:
				tx, ty = b.Dy()-1-sy, sx
			case 2:
				tx, ty = b.Dx()-1-sx, b.Dy()-1-sy
			case 3:
				tx, ty = sy, b.Dx()-1-sx
			}
			out.SetRGBA(tx, ty, img.RGBAAt(x, y))
		}
	}
	return out
}

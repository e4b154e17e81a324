package renderer

import (
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/draw"
)

// Record is the result of evaluating one clip: its image and where that
// image goes relative to the parent image's origin. Effects mutate it in
// place; Parent is read-only.
type Record struct {
	Image  *image.RGBA
	X, Y   float64
	Parent *image.RGBA
}

// Clone returns an independent copy of img with its origin at 0,0.
func Clone(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// Paste composites src onto dst with its top-left corner at x, y. Source
// alpha acts as the paste mask; opaque pixels overwrite.
func Paste(dst, src *image.RGBA, x, y int) {
	if dst == nil || src == nil {
		return
	}
	sb := src.Bounds()
	r := image.Rect(x, y, x+sb.Dx(), y+sb.Dy())
	draw.Draw(dst, r, src, sb.Min, draw.Over)
}

// AlphaStrategy decides how a new alpha layer combines with an image's own.
type AlphaStrategy int

const (
	AlphaMin AlphaStrategy = iota
	AlphaMax
	AlphaOverwrite
)

var alphaStrategyNames = []string{"MIN", "MAX", "OVERWRITE"}

func AlphaStrategyNames() []string { return alphaStrategyNames }

func (s AlphaStrategy) String() string {
	if int(s) >= 0 && int(s) < len(alphaStrategyNames) {
		return alphaStrategyNames[s]
	}
	return fmt.Sprintf("AlphaStrategy(%d)", int(s))
}

func ParseAlphaStrategy(name string) (AlphaStrategy, error) {
	for i, n := range alphaStrategyNames {
		if strings.EqualFold(n, name) {
			return AlphaStrategy(i), nil
		}
	}
	return 0, fmt.Errorf("unknown alpha strategy %q", name)
}

// MergeAlpha combines a uniform alpha value in [0,1] into img.
func MergeAlpha(img *image.RGBA, alpha float64, s AlphaStrategy) {
	a := uint8(clamp01(alpha)*255 + 0.5)
	MergeAlphaFunc(img, func(int, int) uint8 { return a }, s)
}

// MergeAlphaMask combines mask into img. Pixels outside the mask count as
// fully opaque.
func MergeAlphaMask(img *image.RGBA, mask *image.Alpha, s AlphaStrategy) {
	mb := mask.Bounds()
	MergeAlphaFunc(img, func(x, y int) uint8 {
		if !(image.Point{X: x, Y: y}).In(mb) {
			return 255
		}
		return mask.AlphaAt(x, y).A
	}, s)
}

// MergeAlphaFunc sets each pixel's alpha from fn under the strategy. The
// image is premultiplied, so colour channels are rescaled with the alpha.
func MergeAlphaFunc(img *image.RGBA, fn func(x, y int) uint8, s AlphaStrategy) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			old := img.Pix[i+3]
			na := fn(x, y)
			switch s {
			case AlphaMin:
				if old < na {
					na = old
				}
			case AlphaMax:
				if old > na {
					na = old
				}
			}
			setAlpha(img.Pix[i:i+4:i+4], old, na)
		}
	}
}

func setAlpha(px []uint8, old, na uint8) {
	if old == na {
		return
	}
	if old == 0 {
		px[0], px[1], px[2] = 0, 0, 0
		px[3] = na
		return
	}
	for c := 0; c < 3; c++ {
		v := uint32(px[c]) * uint32(na) / uint32(old)
		if v > uint32(na) {
			v = uint32(na)
		}
		px[c] = uint8(v)
	}
	px[3] = na
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Grid renders img as rows of characters picked by palette, which is handy
// for asserting small images. Colours missing from the palette render as '?'.
func Grid(img *image.RGBA, palette map[[3]uint8]byte) []string {
	b := img.Bounds()
	rows := make([]string, 0, b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		var sb strings.Builder
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			ch, ok := palette[[3]uint8{c.R, c.G, c.B}]
			if !ok {
				ch = '?'
			}
			sb.WriteByte(ch)
		}
		rows = append(rows, sb.String())
	}
	return rows
}

package engine

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/ivlev/kinema/internal/renderer"
)

// WallOptions lays out a frame wall. Zero values pick the defaults.
type WallOptions struct {
	Width int
	Cols  int
	// Rows applies when no times are selected: Cols*Rows frames are
	// spread evenly over the duration.
	Rows int
}

const (
	DefaultWallWidth = 1920
	DefaultWallCols  = 3
	DefaultWallRows  = 3
)

// WallTimes spreads cols*rows sample times evenly over d, starting at 0.
func WallTimes(d float64, cols, rows int) []float64 {
	n := cols * rows
	if n <= 0 {
		return nil
	}
	step := d / float64(n)
	times := make([]float64, n)
	for i := range times {
		times[i] = float64(i) * step
	}
	return times
}

// FrameWall renders the frames at times as a contact sheet, left to right
// and top to bottom. Without times it samples the whole duration. A frame
// that fails to render leaves its tile black.
func (p *Project) FrameWall(times []float64, opts WallOptions) (*image.RGBA, error) {
	if opts.Width <= 0 {
		opts.Width = DefaultWallWidth
	}
	if opts.Cols <= 0 {
		opts.Cols = DefaultWallCols
	}
	if opts.Rows <= 0 {
		opts.Rows = DefaultWallRows
	}
	if len(times) == 0 {
		d, err := p.Duration()
		if err != nil {
			return nil, err
		}
		times = WallTimes(d, opts.Cols, opts.Rows)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("invalid output size %dx%d", p.Width, p.Height)
	}

	tileW := opts.Width / opts.Cols
	tileH := int(float64(tileW) / float64(p.Width) * float64(p.Height))
	rows := int(math.Ceil(float64(len(times)) / float64(opts.Cols)))
	if tileW <= 0 || tileH <= 0 {
		return nil, fmt.Errorf("wall of width %d is too narrow for %d columns", opts.Width, opts.Cols)
	}
	wall := image.NewRGBA(image.Rect(0, 0, tileW*opts.Cols, tileH*rows))
	draw.Draw(wall, wall.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	err := renderer.Run(func(ctx renderer.Context) error {
		for i, t := range times {
			frame, err := p.render(ctx, t, nil)
			if err != nil {
				tracer().Errorf("wall: %v", err)
				continue
			}
			x, y := (i%opts.Cols)*tileW, (i/opts.Cols)*tileH
			draw.ApproxBiLinear.Scale(wall, image.Rect(x, y, x+tileW, y+tileH), frame, frame.Bounds(), draw.Src, nil)
		}
		return nil
	})
	return wall, err
}

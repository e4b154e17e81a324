// Package engine renders a Project: single frames, contact sheets and whole
// frame sequences written to a sink.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/npillmayer/schuko/tracing"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/kinema/internal/clip"
	"github.com/ivlev/kinema/internal/renderer"
	"github.com/ivlev/kinema/internal/source"
	"github.com/ivlev/kinema/internal/system"
	"github.com/ivlev/kinema/internal/video"
)

// tracer traces with key 'kinema.engine'
func tracer() tracing.Trace {
	return tracing.Select("kinema.engine")
}

const (
	DefaultWidth    = 800
	DefaultHeight   = 600
	DefaultFPS      = 30
	DefaultFilename = "output.mp4"
)

// ErrUnbounded is returned when neither the clip tree nor the project
// declares how long the output runs.
var ErrUnbounded = errors.New("project has no finite duration")

// Project is the top of a composition: the output geometry and the root
// clip, a black Color clip the size of the output.
type Project struct {
	Width    int
	Height   int
	FPS      float64
	Filename string
	// Target caps the duration when positive.
	Target float64
	// Workers bounds parallel frame rendering in Write. Zero picks the
	// host's logical core count.
	Workers int

	Root *clip.Clip

	pool *system.ImagePool
}

func NewProject() *Project {
	p := &Project{
		Width:    DefaultWidth,
		Height:   DefaultHeight,
		FPS:      DefaultFPS,
		Filename: DefaultFilename,
		pool:     system.NewImagePool(),
	}
	bg := source.NewColor()
	bg.Width, bg.Height = p.Width, p.Height
	p.Root = clip.New(bg)
	return p
}

// SetSize changes the output size and resizes a Color root to match.
func (p *Project) SetSize(width, height int) {
	p.Width, p.Height = width, height
	if bg, ok := p.Root.Resource.(*source.Color); ok {
		bg.Width, bg.Height = width, height
		_ = bg.Close()
	}
}

// Duration is the smaller of the root's derived duration and the target.
func (p *Project) Duration() (float64, error) {
	d, ok, err := p.Root.DerivedDuration(renderer.NewContext(nil))
	if err != nil {
		return 0, err
	}
	switch {
	case ok && p.Target > 0:
		return math.Min(d, p.Target), nil
	case ok:
		return d, nil
	case p.Target > 0:
		return p.Target, nil
	}
	return 0, ErrUnbounded
}

// Frame renders the frame at t in a session of its own.
func (p *Project) Frame(t float64) (*image.RGBA, error) {
	var out *image.RGBA
	err := renderer.Run(func(ctx renderer.Context) error {
		var err error
		out, err = p.render(ctx, t, nil)
		return err
	})
	return out, err
}

// render evaluates the root at t and places it on a black canvas of the
// output size. dst is reused when given.
func (p *Project) render(ctx renderer.Context, t float64, dst *image.RGBA) (*image.RGBA, error) {
	if dst == nil {
		dst = image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	rec, err := p.Root.Evaluate(ctx.At(t), nil)
	if err != nil {
		return nil, fmt.Errorf("frame at %.3fs: %w", t, err)
	}
	if rec != nil {
		renderer.Paste(dst, rec.Image, int(rec.X), int(rec.Y))
	}
	return dst, nil
}

// FrameCount is the number of frames at 1/FPS spacing that start before d.
func (p *Project) FrameCount(d float64) int {
	if p.FPS <= 0 || d <= 0 {
		return 0
	}
	n := 0
	for float64(n)/p.FPS < d {
		n++
	}
	return n
}

func (p *Project) workers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return system.DefaultWorkers()
}

// Write renders every frame of the project and hands them to sink in time
// order. Frames render in parallel batches, one Context per frame, sharing
// one session that is ended on every path. ctx is checked between frames;
// everything before the frame being rendered when it is cancelled has been
// written. The sink must not keep frames past WriteFrame, their buffers
// are recycled. The sink is not closed.
func (p *Project) Write(ctx context.Context, sink video.Sink) (stats Stats, err error) {
	start := time.Now()
	stats.Workers = p.workers()
	if p.Width <= 0 || p.Height <= 0 {
		return stats, fmt.Errorf("invalid output size %dx%d", p.Width, p.Height)
	}
	d, err := p.Duration()
	if err != nil {
		return stats, err
	}
	total := p.FrameCount(d)
	tracer().Infof("[*] rendering %d frames (%.2fs at %.2f fps) with %d workers", total, d, p.FPS, stats.Workers)

	session := renderer.NewSession()
	defer func() {
		if endErr := session.End(); endErr != nil {
			err = errors.Join(err, endErr)
		}
	}()
	if p.pool == nil {
		p.pool = system.NewImagePool()
	}
	allocs, reuses := p.pool.Counts()
	defer func() {
		a, r := p.pool.Counts()
		stats.Allocated, stats.Reused = a-allocs, r-reuses
	}()
	base := renderer.NewContext(session)
	rect := image.Rect(0, 0, p.Width, p.Height)

	batch := make([]*image.RGBA, stats.Workers)
	for next := 0; next < total; next += len(batch) {
		n := min(len(batch), total-next)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(stats.Workers)
		for i := 0; i < n; i++ {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				img, err := p.render(base, float64(next+i)/p.FPS, p.pool.Get(rect))
				batch[i] = img
				return err
			})
		}
		if err = g.Wait(); err != nil {
			p.recycle(batch[:n])
			return p.finish(stats, start), err
		}
		for i := 0; i < n; i++ {
			if err = ctx.Err(); err != nil {
				p.recycle(batch[i:n])
				return p.finish(stats, start), err
			}
			if err = sink.WriteFrame(batch[i]); err != nil {
				p.recycle(batch[i:n])
				return p.finish(stats, start), fmt.Errorf("write frame %d: %w", next+i, err)
			}
			p.pool.Put(batch[i])
			batch[i] = nil
			stats.Frames++
		}
		tracer().Debugf("[>] %d/%d frames", stats.Frames, total)
	}
	stats = p.finish(stats, start)
	tracer().Infof("[+++] %d frames in %.2fs (%.2f fps)", stats.Frames, stats.Wall.Seconds(), stats.FPS)
	return stats, nil
}

func (p *Project) recycle(imgs []*image.RGBA) {
	for i, img := range imgs {
		p.pool.Put(img)
		imgs[i] = nil
	}
}

func (p *Project) finish(s Stats, start time.Time) Stats {
	s.Wall = time.Since(start)
	if secs := s.Wall.Seconds(); secs > 0 {
		s.FPS = float64(s.Frames) / secs
	}
	return s
}

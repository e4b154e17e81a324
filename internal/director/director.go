// Package director builds slideshow projects: one clip per page, sized to
// the viewport, cross-faded into the next, with optional camera moves onto
// regions the analyzer finds.
package director

import (
	"errors"
	"fmt"
	"image"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/npillmayer/schuko/tracing"

	"github.com/ivlev/kinema/internal/analyzer"
	"github.com/ivlev/kinema/internal/clip"
	"github.com/ivlev/kinema/internal/effects"
	"github.com/ivlev/kinema/internal/engine"
	"github.com/ivlev/kinema/internal/source"
	"github.com/ivlev/kinema/internal/variable"
)

// tracer traces with key 'kinema.director'
func tracer() tracing.Trace {
	return tracing.Select("kinema.director")
}

var ErrNoPages = errors.New("no pages to show")

// Director lays pages out in time.
type Director struct {
	ViewportWidth  int
	ViewportHeight int
	FPS            float64
	// TotalDuration is the visible length of the whole show. When 0 every
	// page gets PageDuration.
	TotalDuration float64
	PageDuration  float64
	FadeDuration  float64
	MinDwell      float64 // Minimum time per block (seconds)
	MaxDwell      float64 // Maximum time per block (seconds)
	MaxZoom       float64
	// Detector enables focus keyframes when set.
	Detector analyzer.Detector
	// Ease names the easing curve between focus keyframes.
	Ease string

	rand *rand.Rand
}

func NewDirector(viewportWidth, viewportHeight int) *Director {
	return &Director{
		ViewportWidth:  viewportWidth,
		ViewportHeight: viewportHeight,
		FPS:            engine.DefaultFPS,
		PageDuration:   3,
		FadeDuration:   0.5,
		MinDwell:       1.0,
		MaxDwell:       3.0,
		MaxZoom:        3.0,
		Ease:           variable.DefaultEase,
		rand:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Seed makes the duration jitter reproducible.
func (d *Director) Seed(seed int64) {
	d.rand = rand.New(rand.NewSource(seed))
}

// Plan lays out one slide per page.
func (d *Director) Plan(pages []source.Resource) ([]Slide, error) {
	if len(pages) == 0 {
		return nil, ErrNoPages
	}
	durations := d.calculateDurations(len(pages))
	slides := make([]Slide, len(pages))
	start := 0.0
	for i, page := range pages {
		slides[i] = Slide{Index: i, Start: start, Duration: durations[i]}
		start += durations[i] - d.FadeDuration
		if d.Detector == nil {
			continue
		}
		keys, err := d.focus(page, durations[i])
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		slides[i].Keyframes = keys
	}
	return slides, nil
}

// Build plans the pages and turns the slides into a project.
func (d *Director) Build(pages []source.Resource) (*engine.Project, error) {
	slides, err := d.Plan(pages)
	if err != nil {
		return nil, err
	}
	p := engine.NewProject()
	p.SetSize(d.ViewportWidth, d.ViewportHeight)
	p.FPS = d.FPS
	last := slides[len(slides)-1]
	p.Target = last.Start + last.Duration

	for i, s := range slides {
		c := p.Root.AddChild(clip.New(pages[i]))
		if err := c.StartTime.Set(s.Start); err != nil {
			return nil, err
		}
		if err := c.Duration.Set(s.Duration); err != nil {
			return nil, err
		}
		resize := effects.ResizeTo(d.ViewportWidth, d.ViewportHeight, effects.Cover)
		pos := effects.Align(0.5, 0.5)
		if len(s.Keyframes) > 0 {
			if err := d.animate(pages[i], s.Keyframes, resize, pos); err != nil {
				return nil, fmt.Errorf("page %d: %w", i+1, err)
			}
		}
		// each page fades in over the one before; only the last fades out
		out := 0.0
		if i == len(slides)-1 {
			out = d.FadeDuration
		}
		c.AddEffect(resize).AddEffect(pos).AddEffect(effects.FadeInOut(d.FadeDuration, out))
	}
	tracer().Infof("[*] slideshow: %d pages over %.2fs", len(slides), p.Target)
	return p, nil
}

// calculateDurations spreads the show over n pages. Each page varies by up
// to 15% from the one before and every fade overlaps two pages, so the
// durations sum to TotalDuration + (n-1)*FadeDuration.
func (d *Director) calculateDurations(n int) []float64 {
	total := d.TotalDuration
	if total <= 0 {
		total = float64(n) * d.PageDuration
	}
	fade := d.FadeDuration
	clips := total + float64(n-1)*fade
	base := clips / float64(n)

	durations := make([]float64, n)
	durations[0] = base * (1 + d.jitter())
	for i := 1; i < n; i++ {
		durations[i] = durations[i-1] * (1 + d.jitter())
		// a page never ends inside its own fade
		if durations[i] < fade*1.1 {
			durations[i] = fade * 1.1
		}
	}

	sum := 0.0
	for _, x := range durations {
		sum += x
	}
	scale := clips / sum
	for i := range durations {
		durations[i] *= scale
	}
	return durations
}

// jitter is uniform in [-0.15, 0.15).
func (d *Director) jitter() float64 {
	return d.rand.Float64()*0.3 - 0.15
}

// focus detects regions on the page and plans a camera path over them.
func (d *Director) focus(page source.Resource, duration float64) ([]Keyframe, error) {
	img, err := page.Frame(0)
	if err != nil || img == nil {
		return nil, err
	}
	blocks, err := d.Detector.Detect(img)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, nil
	}
	return d.generateKeyframes(d.sortBlocks(blocks), duration, img.Bounds()), nil
}

// sortBlocks sorts blocks in reading order (Western: top-to-bottom, left-to-right)
func (d *Director) sortBlocks(blocks []analyzer.Block) []analyzer.Block {
	sorted := make([]analyzer.Block, len(blocks))
	copy(sorted, blocks)

	sort.SliceStable(sorted, func(i, j int) bool {
		// Threshold for "same row" (20 pixels)
		const threshold = 20
		yDiff := sorted[i].Rect.Min.Y - sorted[j].Rect.Min.Y
		if yDiff > threshold || yDiff < -threshold {
			return sorted[i].Rect.Min.Y < sorted[j].Rect.Min.Y
		}
		return sorted[i].Rect.Min.X < sorted[j].Rect.Min.X
	})
	return sorted
}

// generateKeyframes starts and ends on the full page and visits as many
// blocks as fit at MinDwell each in between.
func (d *Director) generateKeyframes(blocks []analyzer.Block, duration float64, page image.Rectangle) []Keyframe {
	intro := math.Min(1, duration/4)
	available := duration - 2*intro
	n := len(blocks)
	if d.MinDwell > 0 {
		n = min(n, int(available/d.MinDwell))
	}
	if n <= 0 {
		return nil
	}
	dwell := math.Min(math.Max(available/float64(n), d.MinDwell), d.MaxDwell)

	full := Keyframe{
		Focus: "full_view",
		Rect:  Rectangle{X: page.Min.X, Y: page.Min.Y, W: page.Dx(), H: page.Dy()},
		Zoom:  1.0,
	}
	keyframes := []Keyframe{full}
	scale := d.coverScale(page)
	t := intro
	for i, block := range blocks[:n] {
		keyframes = append(keyframes, Keyframe{
			Time:  t,
			Focus: fmt.Sprintf("region_%d", i+1),
			Rect: Rectangle{
				X: block.Rect.Min.X - page.Min.X,
				Y: block.Rect.Min.Y - page.Min.Y,
				W: block.Rect.Dx(),
				H: block.Rect.Dy(),
			},
			Zoom: d.calculateZoom(block.Rect, scale),
		})
		t += dwell
	}
	full.Time = t
	return append(keyframes, full)
}

// coverScale is the factor COVER scales the page by at zoom 1.
func (d *Director) coverScale(page image.Rectangle) float64 {
	if page.Dx() == 0 || page.Dy() == 0 {
		return 1
	}
	return math.Max(float64(d.ViewportWidth)/float64(page.Dx()), float64(d.ViewportHeight)/float64(page.Dy()))
}

// calculateZoom fits the block, as shown at zoom 1, into 90% of the
// viewport, clamped to [1, MaxZoom].
func (d *Director) calculateZoom(block image.Rectangle, scale float64) float64 {
	const padding = 0.9
	bw := float64(block.Dx()) * scale
	bh := float64(block.Dy()) * scale
	if bw == 0 || bh == 0 {
		return 1.0
	}
	zoom := math.Min(float64(d.ViewportWidth)*padding/bw, float64(d.ViewportHeight)*padding/bh)
	return math.Max(1, math.Min(zoom, d.MaxZoom))
}

// animate keys the resize to zoom and the position offsets to bring each
// focused region to the middle of the viewport, without showing past the
// page edges.
func (d *Director) animate(page source.Resource, keys []Keyframe, resize *effects.Resize, pos *effects.Pos) error {
	info, err := page.Info()
	if err != nil {
		return err
	}
	full := image.Rect(0, 0, info.Width, info.Height)
	scale := d.coverScale(full)
	vw, vh := float64(d.ViewportWidth), float64(d.ViewportHeight)

	var ws, hs, xs, ys []*variable.Value
	for i, k := range keys {
		cx, cy := k.Rect.center()
		ox := clamp((float64(info.Width)/2-cx)*scale*k.Zoom, (vw*k.Zoom-vw)/2)
		oy := clamp((float64(info.Height)/2-cy)*scale*k.Zoom, (vh*k.Zoom-vh)/2)
		vals := []any{int(math.Round(vw * k.Zoom)), int(math.Round(vh * k.Zoom)), int(math.Round(ox)), int(math.Round(oy))}
		out := make([]*variable.Value, len(vals))
		for j, v := range vals {
			out[j] = variable.Static(v).At(k.Time)
			if i < len(keys)-1 {
				out[j].Eased(d.Ease)
			}
		}
		ws, hs, xs, ys = append(ws, out[0]), append(hs, out[1]), append(xs, out[2]), append(ys, out[3])
	}
	for _, set := range []struct {
		v    *variable.Variable
		vals []*variable.Value
	}{{resize.Width, ws}, {resize.Height, hs}, {pos.XOffset, xs}, {pos.YOffset, ys}} {
		if err := set.v.Set(set.vals); err != nil {
			return err
		}
	}
	tracer().Debugf("director: %d focus keys over %dx%d page", len(keys), info.Width, info.Height)
	return nil
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}

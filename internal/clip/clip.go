// Package clip implements the composition tree.
//
// A Clip wraps a resource and an ordered list of items, each either an
// effect or a child clip. Evaluation walks the items in insertion order:
// effects transform the clip's render record, children are evaluated in a
// time-shifted scope and pasted onto the clip's image as it is at that
// point.
package clip

import (
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/npillmayer/schuko/tracing"

	"github.com/ivlev/kinema/internal/effects"
	"github.com/ivlev/kinema/internal/renderer"
	"github.com/ivlev/kinema/internal/source"
	"github.com/ivlev/kinema/internal/timemap"
	"github.com/ivlev/kinema/internal/variable"
)

// tracer traces with key 'kinema.clip'
func tracer() tracing.Trace {
	return tracing.Select("kinema.clip")
}

// Item is one entry of a clip. Exactly one field is set.
type Item struct {
	Effect effects.Effect
	Child  *Clip
}

type Clip struct {
	variable.Holder
	Resource source.Resource
	// StartTime is when the clip becomes visible in its parent's timeline.
	StartTime *variable.Variable
	// Duration bounds visibility. Unset, it falls back to the derived
	// duration, and an unbounded clip stays visible once started.
	Duration *variable.Variable

	items []Item

	mu      sync.Mutex
	timeMap *timemap.TimeMap
}

// New wraps r. A nil resource is an error at evaluation.
func New(r source.Resource) *Clip {
	c := &Clip{Resource: r}
	c.StartTime = c.Declare("start_time", variable.Type{Kind: variable.Duration}, 0)
	c.Duration = c.Declare("duration", variable.Type{Kind: variable.Duration}, nil)
	c.Duration.SetFallback(func(ctx renderer.Context) (any, error) {
		d, ok, err := c.DerivedDuration(ctx)
		if err != nil || !ok {
			return nil, err
		}
		return d, nil
	})
	return c
}

func (c *Clip) AddEffect(e effects.Effect) *Clip {
	c.items = append(c.items, Item{Effect: e})
	return c
}

// AddChild appends child and returns it, so a caller can keep configuring
// the child.
func (c *Clip) AddChild(child *Clip) *Clip {
	c.items = append(c.items, Item{Child: child})
	return child
}

// Items returns the items in insertion order.
func (c *Clip) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Children returns the child clips in insertion order.
func (c *Clip) Children() []*Clip {
	var out []*Clip
	for _, it := range c.items {
		if it.Child != nil {
			out = append(out, it.Child)
		}
	}
	return out
}

// TimeMap returns the clip's time map, building the identity map on first
// use. Clips over unbounded resources have none and get nil.
func (c *Clip) TimeMap() (*timemap.TimeMap, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timeMap != nil {
		return c.timeMap, nil
	}
	if c.Resource == nil {
		return nil, nil
	}
	info, err := c.Resource.Info()
	if err != nil {
		return nil, err
	}
	if !info.Finite {
		return nil, nil
	}
	tm, err := timemap.New(info.Duration)
	if err != nil {
		return nil, err
	}
	tracer().Debugf("clip: time map over %.3fs", info.Duration)
	c.timeMap = tm
	return tm, nil
}

// SetTimeMap installs m, replacing whatever the clip built itself.
func (c *Clip) SetTimeMap(m *timemap.TimeMap) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeMap = m
}

// MappedTimeMap returns the time map only if one was built or installed.
func (c *Clip) MappedTimeMap() *timemap.TimeMap {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeMap
}

// DerivedDuration is the mapped duration of a finite resource, extended by
// every child's end. ok is false when nothing bounds the clip.
func (c *Clip) DerivedDuration(ctx renderer.Context) (d float64, ok bool, err error) {
	tm, err := c.TimeMap()
	if err != nil {
		return 0, false, err
	}
	if tm != nil {
		d, ok = tm.Duration(), true
	}
	for _, child := range c.Children() {
		start, err := floatOr(ctx, child.StartTime, 0)
		if err != nil {
			return 0, false, err
		}
		cd, cok, err := child.Length(ctx)
		if err != nil {
			return 0, false, err
		}
		if cok {
			d, ok = math.Max(d, start+cd), true
		}
	}
	return d, ok, nil
}

// Length is the clip's duration: the Duration variable if set, otherwise
// the derived duration.
func (c *Clip) Length(ctx renderer.Context) (float64, bool, error) {
	return c.Duration.Float(ctx)
}

// Evaluate renders the clip at ctx's local time onto a record whose parent
// image is parent. It returns nil when the clip has no output at that time.
func (c *Clip) Evaluate(ctx renderer.Context, parent *image.RGBA) (*renderer.Record, error) {
	if c.Resource == nil {
		return nil, fmt.Errorf("clip has no resource")
	}
	t := ctx.LocalTime()
	tm, err := c.TimeMap()
	if err != nil {
		return nil, err
	}
	if tm != nil {
		var ok bool
		if t, ok = tm.Get(t); !ok {
			return nil, nil
		}
	}

	ctx.Track(c.Resource)
	img, err := c.Resource.Frame(t)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, nil
	}

	rec := &renderer.Record{Image: img, Parent: parent}
	d, finite, err := c.Length(ctx)
	if err != nil {
		return nil, err
	}
	cctx := ctx.WithRecord(rec).WithClipDuration(d, finite)

	for i, it := range c.items {
		switch {
		case it.Effect != nil:
			if err := it.Effect.Apply(cctx, rec); err != nil {
				return nil, fmt.Errorf("effect %d (%s): %w", i, it.Effect.Kind(), err)
			}
		case it.Child != nil:
			if err := c.composite(cctx, rec, it.Child); err != nil {
				return nil, fmt.Errorf("child %d: %w", i, err)
			}
		}
	}
	return rec, nil
}

func (c *Clip) composite(ctx renderer.Context, rec *renderer.Record, child *Clip) error {
	start, err := floatOr(ctx, child.StartTime, 0)
	if err != nil {
		return err
	}
	local := ctx.LocalTime()
	if local < start {
		return nil
	}
	if d, ok, err := child.Length(ctx); err != nil {
		return err
	} else if ok && local >= start+d {
		return nil
	}

	out, err := child.Evaluate(ctx.WithLocalOffset(start), rec.Image)
	if err != nil || out == nil {
		return err
	}
	renderer.Paste(rec.Image, out.Image, int(out.X), int(out.Y))
	return nil
}

func floatOr(ctx renderer.Context, v *variable.Variable, def float64) (float64, error) {
	f, ok, err := v.Float(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	return f, nil
}

package variable

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/tanema/gween/ease"
	"gonum.org/v1/gonum/interp"

	"github.com/ivlev/kinema/internal/expr"
	"github.com/ivlev/kinema/internal/renderer"
)

var ErrTooFewKeys = errors.New("curve interpolation needs at least 3 keys")

// DefaultEase is the easing curve used by Ease keys that name none.
const DefaultEase = "in-out-cubic"

var easings = map[string]ease.TweenFunc{
	"linear":       ease.Linear,
	"in-quad":      ease.InQuad,
	"out-quad":     ease.OutQuad,
	"in-out-quad":  ease.InOutQuad,
	"in-cubic":     ease.InCubic,
	"out-cubic":    ease.OutCubic,
	"in-out-cubic": ease.InOutCubic,
	"in-out-sine":  ease.InOutSine,
	"out-bounce":   ease.OutBounce,
	"out-elastic":  ease.OutElastic,
}

// IsEasing reports whether name is a known easing curve.
func IsEasing(name string) bool {
	_, ok := easings[name]
	return ok || name == ""
}

type fitPredictor interface {
	Fit(xs, ys []float64) error
	Predict(x float64) float64
}

// indexAt returns the index of the last key starting at or before t, or -1
// when t precedes the first key.
func indexAt(values []*Value, t float64) int {
	if t < values[0].Time {
		return -1
	}
	idx := 0
	for i, v := range values {
		if v.Time > t {
			break
		}
		idx = i
	}
	return idx
}

func interpolate(ctx renderer.Context, values []*Value, t float64) (any, error) {
	i := indexAt(values, t)
	if i == -1 {
		return values[0].Resolve(ctx)
	}
	cur := values[i]
	if i == len(values)-1 {
		return cur.Resolve(ctx)
	}

	switch tt := cur.TimeType; {
	case tt == None:
		return cur.Resolve(ctx)
	case tt == Linear:
		next := values[i+1]
		return blend(ctx, cur, next, (t-cur.Time)/(next.Time-cur.Time))
	case tt == Ease:
		name := cur.EaseFunc
		if name == "" {
			name = DefaultEase
		}
		fn, ok := easings[name]
		if !ok {
			return nil, fmt.Errorf("%w: easing %q", ErrUnknownTimeType, name)
		}
		next := values[i+1]
		f := fn(float32(t-cur.Time), 0, 1, float32(next.Time-cur.Time))
		return blend(ctx, cur, next, float64(f))
	case tt.curve():
		return curveAt(ctx, values, tt, t)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownTimeType, int(tt))
	}
}

func blend(ctx renderer.Context, a, b *Value, f float64) (any, error) {
	av, err := a.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	bv, err := b.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	ac, rebuild, ok := components(av)
	if !ok {
		// not numeric, hold the earlier key
		return av, nil
	}
	bc, _, ok := components(bv)
	if !ok || len(bc) != len(ac) {
		return nil, fmt.Errorf("%w: cannot interpolate %v to %v", ErrCoerce, av, bv)
	}
	out := make([]float64, len(ac))
	for k := range ac {
		out[k] = lerp(ac[k], bc[k], f)
	}
	return rebuild(out), nil
}

// curveAt fits a spline through every key, per component. Keys may be
// expressions, so nothing is cached between calls.
func curveAt(ctx renderer.Context, values []*Value, tt TimeType, t float64) (any, error) {
	if len(values) < 3 {
		return nil, fmt.Errorf("%w, have %d", ErrTooFewKeys, len(values))
	}

	xs := make([]float64, len(values))
	var (
		cols    [][]float64
		rebuild func([]float64) any
	)
	for i, v := range values {
		xs[i] = v.Time
		rv, err := v.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		c, rb, ok := components(rv)
		if !ok {
			return nil, fmt.Errorf("%w: cannot fit a curve through %v", ErrCoerce, rv)
		}
		if cols == nil {
			cols = make([][]float64, len(c))
			for k := range cols {
				cols[k] = make([]float64, len(values))
			}
			rebuild = rb
		}
		if len(c) != len(cols) {
			return nil, fmt.Errorf("%w: key %d has %d components, want %d", ErrCoerce, i, len(c), len(cols))
		}
		for k := range c {
			cols[k][i] = c[k]
		}
	}

	out := make([]float64, len(cols))
	for k, ys := range cols {
		fp := newSpline(tt)
		if err := fp.Fit(xs, ys); err != nil {
			tracer().Debugf("%s fit over %d keys failed: %v", tt, len(xs), err)
			return nil, fmt.Errorf("fitting %s: %w", tt, err)
		}
		out[k] = fp.Predict(t)
	}
	return rebuild(out), nil
}

func newSpline(tt TimeType) fitPredictor {
	switch tt {
	case BoundedCurve:
		return &interp.FritschButland{}
	case LooseCurve:
		return &interp.NaturalCubic{}
	default:
		return &interp.AkimaSpline{}
	}
}

// components splits a numeric value into float components together with
// the function that reassembles a value of the same shape.
func components(v any) ([]float64, func([]float64) any, bool) {
	switch x := v.(type) {
	case color.NRGBA:
		return []float64{float64(x.R), float64(x.G), float64(x.B), float64(x.A)},
			func(c []float64) any {
				return color.NRGBA{R: channel(c[0]), G: channel(c[1]), B: channel(c[2]), A: channel(c[3])}
			}, true
	case []float64:
		c := make([]float64, len(x))
		copy(c, x)
		return c, func(c []float64) any { return c }, true
	case []any:
		c := make([]float64, len(x))
		for i, item := range x {
			n, ok := expr.ToFloat(item)
			if !ok {
				return nil, nil, false
			}
			c[i] = n
		}
		return c, func(c []float64) any { return c }, true
	case bool, string:
		return nil, nil, false
	}
	if n, ok := expr.ToFloat(v); ok {
		return []float64{n}, func(c []float64) any { return c[0] }, true
	}
	return nil, nil, false
}

func channel(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}

// lerp performs linear interpolation between a and b
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

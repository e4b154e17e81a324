package variable

import (
	"errors"
	"image/color"
	"math"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"

	"github.com/ivlev/kinema/internal/expr"
	"github.com/ivlev/kinema/internal/renderer"
)

func at(t float64) renderer.Context {
	return renderer.NewContext(nil).At(t)
}

func abs(x float64) float64 {
	return math.Abs(x)
}

func keyed(t *testing.T, tt TimeType, pairs ...float64) *Variable {
	t.Helper()
	v := New("x", Type{Kind: Float}, nil)
	for i := 0; i < len(pairs); i += 2 {
		if err := v.Add(Static(pairs[i+1]).At(pairs[i]).With(tt)); err != nil {
			t.Fatal(err)
		}
	}
	return v
}

func TestSingleStaticValue(t *testing.T) {
	v := New("x", Type{Kind: Float}, nil)
	if err := v.Set(42); err != nil {
		t.Fatal(err)
	}
	for _, tm := range []float64{-10, 0, 3, 1e6} {
		got, ok, err := v.Float(at(tm))
		if err != nil || !ok || got != 42 {
			t.Errorf("At %v: expected 42, got %v (%v, %v)", tm, got, ok, err)
		}
	}
}

func TestLinearAndNone(t *testing.T) {
	times := []float64{0, 0.2, 0.5, 1, 1.5, 2}
	tests := []struct {
		mode TimeType
		want []float64
	}{
		{Linear, []float64{0, 2, 5, 10, 55, 100}},
		{None, []float64{0, 0, 0, 10, 10, 100}},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			v := keyed(t, tt.mode, 0, 0, 1, 10, 2, 100)
			for i, tm := range times {
				got, _, err := v.Float(at(tm))
				if err != nil {
					t.Fatal(err)
				}
				if abs(got-tt.want[i]) > 1e-9 {
					t.Errorf("At %v: expected %v, got %v", tm, tt.want[i], got)
				}
			}
		})
	}
}

func TestBeforeFirstAndAfterLast(t *testing.T) {
	v := keyed(t, Linear, 1, 5, 2, 10)
	if got, _, _ := v.Float(at(0)); got != 5 {
		t.Errorf("Expected first value before first key, got %v", got)
	}
	if got, _, _ := v.Float(at(9)); got != 10 {
		t.Errorf("Expected last value after last key, got %v", got)
	}
}

func TestAddReplacesSameTime(t *testing.T) {
	v := keyed(t, Linear, 0, 0, 1, 10)
	if err := v.Add(Static(20).At(1)); err != nil {
		t.Fatal(err)
	}
	vals := v.Values()
	if len(vals) != 2 {
		t.Fatalf("Expected 2 keys, got %d", len(vals))
	}
	if vals[1].Static != 20.0 {
		t.Errorf("Expected replaced key 20, got %v", vals[1].Static)
	}

	if err := v.Add(map[float64]any{0.5: 3, 3: 7}); err != nil {
		t.Fatal(err)
	}
	vals = v.Values()
	for i := 1; i < len(vals); i++ {
		if !(vals[i].Time > vals[i-1].Time) {
			t.Errorf("Keys out of order: %v then %v", vals[i-1].Time, vals[i].Time)
		}
	}
	if len(vals) != 4 {
		t.Errorf("Expected 4 keys, got %d", len(vals))
	}

	if err := v.Set(1); err != nil {
		t.Fatal(err)
	}
	if len(v.Values()) != 1 {
		t.Errorf("Expected Set to replace all keys, got %d", len(v.Values()))
	}
}

func TestResolutionOrder(t *testing.T) {
	calls := 0
	v := New("duration", Type{Kind: Duration}, nil).SetFallback(func(renderer.Context) (any, error) {
		calls++
		return 7.0, nil
	})

	got, ok, err := v.Float(at(0))
	if err != nil || !ok || got != 7 || calls != 1 {
		t.Errorf("Expected fallback 7, got %v ok=%v err=%v calls=%d", got, ok, err, calls)
	}

	if err := v.SetDefault("2s"); err != nil {
		t.Fatal(err)
	}
	if got, _, _ := v.Float(at(0)); got != 2 || calls != 1 {
		t.Errorf("Expected default 2 without fallback, got %v calls=%d", got, calls)
	}

	if err := v.Set("1500ms"); err != nil {
		t.Fatal(err)
	}
	if got, _, _ := v.Float(at(0)); got != 1.5 {
		t.Errorf("Expected explicit 1.5, got %v", got)
	}

	empty := New("x", Type{Kind: Int}, nil)
	if val, err := empty.Get(at(0)); val != nil || err != nil {
		t.Errorf("Expected nil without values, got %v (%v)", val, err)
	}
}

func TestExpressionValues(t *testing.T) {
	e, err := expr.Parse([]any{"*", "time", 10})
	if err != nil {
		t.Fatal(err)
	}
	v := New("x", Type{Kind: Int}, nil)
	if err := v.Set(e); err != nil {
		t.Fatal(err)
	}
	if got, _, _ := v.Int(at(1.25)); got != 12 {
		t.Errorf("Expected truncated 12, got %v", got)
	}

	// an expression key interpolates like a static one
	w := New("w", Type{Kind: Float}, nil)
	_ = w.Add(Static(0).At(0))
	_ = w.Add(Expression(expr.Symbol{Name: "width"}).At(2))
	rec := &renderer.Record{}
	ctx := at(1).WithRecord(rec)
	if got, _, _ := w.Float(ctx); got != 0 {
		t.Errorf("Expected 0 with empty record, got %v", got)
	}
}

func TestCurves(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "kinema.variable")
	defer teardown()

	for _, mode := range []TimeType{Curve, BoundedCurve, LooseCurve} {
		t.Run(mode.String(), func(t *testing.T) {
			v := keyed(t, mode, 0, 0, 1, 1, 2, 2, 3, 3)
			got, _, err := v.Float(at(1.5))
			if err != nil {
				t.Fatal(err)
			}
			if abs(got-1.5) > 1e-6 {
				t.Errorf("Expected 1.5 on collinear keys, got %v", got)
			}

			short := keyed(t, mode, 0, 0, 1, 1)
			if _, err := short.Get(at(0.5)); !errors.Is(err, ErrTooFewKeys) {
				t.Errorf("Expected ErrTooFewKeys, got %v", err)
			}
		})
	}

	// shape preserving: no overshoot on a step
	v := keyed(t, BoundedCurve, 0, 0, 1, 0, 2, 10, 3, 10)
	for tm := 0.0; tm <= 3; tm += 0.1 {
		got, _, _ := v.Float(at(tm))
		if got < -1e-9 || got > 10+1e-9 {
			t.Errorf("At %v: bounded curve left [0,10]: %v", tm, got)
		}
	}
}

func TestEase(t *testing.T) {
	v := New("x", Type{Kind: Float}, nil)
	_ = v.Add(Static(0).At(0).Eased("in-out-cubic"))
	_ = v.Add(Static(100).At(2))

	mid, _, _ := v.Float(at(1))
	if abs(mid-50) > 1e-3 {
		t.Errorf("Expected symmetric midpoint 50, got %v", mid)
	}
	early, _, _ := v.Float(at(0.5))
	if !(early < 25) {
		t.Errorf("Expected slow start below 25, got %v", early)
	}

	_ = v.Add(Static(0).At(0).Eased("wobble"))
	if _, err := v.Get(at(1)); !errors.Is(err, ErrUnknownTimeType) {
		t.Errorf("Expected ErrUnknownTimeType, got %v", err)
	}
}

func TestColorInterpolation(t *testing.T) {
	v := New("color", Type{Kind: Color}, nil)
	_ = v.Add(Static("#000000").At(0))
	_ = v.Add(Static([]any{200, 100, 50}).At(1))
	got, ok, err := v.Color(at(0.5))
	if err != nil || !ok {
		t.Fatal(err)
	}
	want := color.NRGBA{R: 100, G: 50, B: 25, A: 255}
	if got != want {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestCoercion(t *testing.T) {
	enum := EnumOf("COVER", "CONTAIN", "STRETCH", "FIT")
	tests := []struct {
		name string
		typ  Type
		in   any
		want any
	}{
		{"int truncates", Type{Kind: Int}, 3.9, 3},
		{"int from string", Type{Kind: Int}, "12", 12},
		{"float", Type{Kind: Float}, 2, 2.0},
		{"string", Type{Kind: String}, 5, "5"},
		{"bool", Type{Kind: Bool}, "true", true},
		{"enum by name", enum, "stretch", 2},
		{"enum by ordinal", enum, 1, 1},
		{"duration seconds", Type{Kind: Duration}, 4, 4.0},
		{"duration suffix", Type{Kind: Duration}, "2m", 120.0},
		{"color hex", Type{Kind: Color}, "#ff000080", color.NRGBA{R: 255, A: 128}},
		{"color short hex", Type{Kind: Color}, "#0f0", color.NRGBA{G: 255, A: 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.typ.Coerce(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Expected %v (%T), got %v (%T)", tt.want, tt.want, got, got)
			}
		})
	}

	bad := []struct {
		typ Type
		in  any
	}{
		{enum, "SQUASH"},
		{enum, 9},
		{Type{Kind: Int}, "abc"},
		{Type{Kind: Duration}, "soon"},
		{Type{Kind: Color}, "#12"},
	}
	for _, b := range bad {
		if _, err := b.typ.Coerce(b.in); !errors.Is(err, ErrCoerce) {
			t.Errorf("Coerce(%v) to %s: expected ErrCoerce, got %v", b.in, b.typ.Kind, err)
		}
	}
}

func TestParseTimeType(t *testing.T) {
	tests := []struct {
		in   any
		want TimeType
	}{
		{"linear", Linear},
		{"BOUNDED_CURVE", BoundedCurve},
		{0, None},
		{"4", LooseCurve},
	}
	for _, tt := range tests {
		got, err := ParseTimeType(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseTimeType(%v): expected %v, got %v (%v)", tt.in, tt.want, got, err)
		}
	}
	for _, in := range []any{"spline", 9, 1.5} {
		if _, err := ParseTimeType(in); !errors.Is(err, ErrUnknownTimeType) {
			t.Errorf("ParseTimeType(%v): expected ErrUnknownTimeType, got %v", in, err)
		}
	}
}

func TestHolder(t *testing.T) {
	var h Holder
	x := h.Declare("x", Type{Kind: Int}, 0)
	h.Declare("mode", EnumOf("fit", "fill"), "fit")
	if h.Lookup("x") != x || h.Lookup("y") != nil {
		t.Errorf("Expected lookup by declared name only")
	}
	if err := h.SetAll(map[string]any{"x": "12", "mode": "fill"}); err != nil {
		t.Fatal(err)
	}
	if got, _, _ := x.Int(at(0)); got != 12 {
		t.Errorf("Expected x 12, got %d", got)
	}
	if got, _, _ := h.Lookup("mode").Int(at(0)); got != 1 {
		t.Errorf("Expected mode ordinal 1, got %d", got)
	}
	if err := h.Set("y", 1); !errors.Is(err, ErrUnknownVariable) {
		t.Errorf("Expected ErrUnknownVariable, got %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Errorf("Expected duplicate declaration to panic")
		}
	}()
	h.Declare("x", Type{Kind: Float}, 1.0)
}

// Package variable implements named, time-keyed parameters.
//
// A Variable holds an optional default and a sorted series of keyed
// values. Reading it at a time resolves a single value, interpolates a
// series, falls back to the default and finally to an owner-supplied hook.
// Every value is coerced to the variable's Type on the way in and out.
package variable

import (
	"fmt"
	"image/color"
	"sort"
	"strconv"

	"github.com/npillmayer/schuko/tracing"

	"github.com/ivlev/kinema/internal/expr"
	"github.com/ivlev/kinema/internal/renderer"
)

// tracer traces with key 'kinema.variable'
func tracer() tracing.Trace {
	return tracing.Select("kinema.variable")
}

// Fallback computes a value from the owner when nothing is set.
type Fallback func(ctx renderer.Context) (any, error)

type Variable struct {
	name     string
	typ      Type
	def      *Value
	values   []*Value
	fallback Fallback
}

// New declares a variable. def is the default static value or nil; an
// invalid default is a programming error and panics.
func New(name string, t Type, def any) *Variable {
	v := &Variable{name: name, typ: t}
	if err := v.SetDefault(def); err != nil {
		panic(fmt.Sprintf("variable %s: %v", name, err))
	}
	return v
}

func (v *Variable) Name() string { return v.name }
func (v *Variable) Type() Type   { return v.typ }

// Default is the default value or nil.
func (v *Variable) Default() *Value { return v.def }

// Values returns the keyed values in time order.
func (v *Variable) Values() []*Value {
	out := make([]*Value, len(v.values))
	copy(out, v.values)
	return out
}

// IsSet reports whether any value was assigned.
func (v *Variable) IsSet() bool { return len(v.values) > 0 }

// SetFallback installs the hook used when no value and no default exist.
func (v *Variable) SetFallback(fn Fallback) *Variable {
	v.fallback = fn
	return v
}

// SetDefault replaces the default. A series cannot be a default.
func (v *Variable) SetDefault(x any) error {
	if x == nil {
		v.def = nil
		return nil
	}
	vals, err := v.toValues(x)
	if err != nil {
		return err
	}
	if len(vals) != 1 {
		return fmt.Errorf("variable %s: default must be a single value, got %d", v.name, len(vals))
	}
	v.def = vals[0]
	return nil
}

// Set replaces all values with x.
func (v *Variable) Set(x any) error {
	vals, err := v.toValues(x)
	if err != nil {
		return err
	}
	v.values = nil
	v.merge(vals)
	return nil
}

// Add merges x into the series. A value at an existing key's time
// replaces that key.
func (v *Variable) Add(x any) error {
	vals, err := v.toValues(x)
	if err != nil {
		return err
	}
	v.merge(vals)
	return nil
}

// Clear removes all keyed values, keeping the default.
func (v *Variable) Clear() {
	v.values = nil
}

func (v *Variable) merge(vals []*Value) {
	for _, nv := range vals {
		kept := v.values[:0]
		for _, old := range v.values {
			if old.Time != nv.Time {
				kept = append(kept, old)
			}
		}
		v.values = append(kept, nv)
	}
	sort.SliceStable(v.values, func(i, j int) bool {
		return v.values[i].Time < v.values[j].Time
	})
}

// toValues normalizes the accepted input shapes into coerced values.
func (v *Variable) toValues(x any) ([]*Value, error) {
	switch in := x.(type) {
	case nil:
		return nil, nil
	case *Value:
		c := in.clone()
		if c.Expr == nil {
			s, err := v.typ.Coerce(c.Static)
			if err != nil {
				return nil, fmt.Errorf("variable %s: %w", v.name, err)
			}
			c.Static = s
		}
		return []*Value{c}, nil
	case []*Value:
		var out []*Value
		for _, item := range in {
			vals, err := v.toValues(item)
			if err != nil {
				return nil, err
			}
			out = append(out, vals...)
		}
		return out, nil
	case expr.Expression:
		return []*Value{Expression(in)}, nil
	case map[float64]any:
		return v.keyed(len(in), func(yield func(float64, any) error) error {
			for k, item := range in {
				if err := yield(k, item); err != nil {
					return err
				}
			}
			return nil
		})
	case map[int]any:
		return v.keyed(len(in), func(yield func(float64, any) error) error {
			for k, item := range in {
				if err := yield(float64(k), item); err != nil {
					return err
				}
			}
			return nil
		})
	case map[any]any:
		return v.keyed(len(in), func(yield func(float64, any) error) error {
			for k, item := range in {
				t, ok := keyTime(k)
				if !ok {
					return fmt.Errorf("variable %s: key %v is not a time", v.name, k)
				}
				if err := yield(t, item); err != nil {
					return err
				}
			}
			return nil
		})
	}

	s, err := v.typ.Coerce(x)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", v.name, err)
	}
	return []*Value{Static(s)}, nil
}

func (v *Variable) keyed(n int, each func(yield func(float64, any) error) error) ([]*Value, error) {
	out := make([]*Value, 0, n)
	err := each(func(t float64, item any) error {
		vals, err := v.toValues(item)
		if err != nil {
			return err
		}
		for _, val := range vals {
			val.Time = t
		}
		out = append(out, vals...)
		return nil
	})
	return out, err
}

func keyTime(k any) (float64, bool) {
	if s, ok := k.(string); ok {
		n, err := strconv.ParseFloat(s, 64)
		return n, err == nil
	}
	return expr.ToFloat(k)
}

// Get resolves the variable at ctx's local time.
func (v *Variable) Get(ctx renderer.Context) (any, error) {
	var (
		val any
		err error
	)
	switch {
	case len(v.values) == 1:
		val, err = v.values[0].Resolve(ctx)
	case len(v.values) > 1:
		val, err = interpolate(ctx, v.values, ctx.LocalTime())
	case v.def != nil:
		val, err = v.def.Resolve(ctx)
	case v.fallback != nil:
		val, err = v.fallback(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", v.name, err)
	}
	out, err := v.typ.Coerce(val)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", v.name, err)
	}
	return out, nil
}

// Float reads a numeric variable. ok is false when it resolves to nothing.
func (v *Variable) Float(ctx renderer.Context) (f float64, ok bool, err error) {
	val, err := v.Get(ctx)
	if err != nil || val == nil {
		return 0, false, err
	}
	f, ok = expr.ToFloat(val)
	if !ok {
		return 0, false, fmt.Errorf("variable %s: %w %v to number", v.name, ErrCoerce, val)
	}
	return f, true, nil
}

// Int reads an int or enum variable.
func (v *Variable) Int(ctx renderer.Context) (int, bool, error) {
	f, ok, err := v.Float(ctx)
	return int(f), ok, err
}

func (v *Variable) Bool(ctx renderer.Context) (bool, error) {
	val, err := v.Get(ctx)
	if err != nil || val == nil {
		return false, err
	}
	b, ok := val.(bool)
	if !ok {
		return false, fmt.Errorf("variable %s: %w %v to bool", v.name, ErrCoerce, val)
	}
	return b, nil
}

func (v *Variable) Text(ctx renderer.Context) (string, bool, error) {
	val, err := v.Get(ctx)
	if err != nil || val == nil {
		return "", false, err
	}
	return fmt.Sprint(val), true, nil
}

func (v *Variable) Color(ctx renderer.Context) (color.NRGBA, bool, error) {
	val, err := v.Get(ctx)
	if err != nil || val == nil {
		return color.NRGBA{}, false, err
	}
	c, err := parseColor(val)
	if err != nil {
		return color.NRGBA{}, false, fmt.Errorf("variable %s: %w", v.name, err)
	}
	return c.(color.NRGBA), true, nil
}

package variable

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ivlev/kinema/internal/expr"
	"github.com/ivlev/kinema/internal/renderer"
)

var ErrUnknownTimeType = errors.New("unknown interpolation mode")

// TimeType is the interpolation mode from a key to the next one.
type TimeType int

const (
	None TimeType = iota
	Linear
	Curve
	BoundedCurve
	LooseCurve
	Ease
)

var timeTypeNames = []string{"NONE", "LINEAR", "CURVE", "BOUNDED_CURVE", "LOOSE_CURVE", "EASE"}

func (tt TimeType) String() string {
	if int(tt) >= 0 && int(tt) < len(timeTypeNames) {
		return timeTypeNames[tt]
	}
	return fmt.Sprintf("TimeType(%d)", int(tt))
}

func (tt TimeType) curve() bool {
	return tt == Curve || tt == BoundedCurve || tt == LooseCurve
}

// ParseTimeType accepts a mode name in any case or its ordinal.
func ParseTimeType(v any) (TimeType, error) {
	switch x := v.(type) {
	case TimeType:
		if x < None || x > Ease {
			return 0, fmt.Errorf("%w: %d", ErrUnknownTimeType, int(x))
		}
		return x, nil
	case string:
		for i, n := range timeTypeNames {
			if strings.EqualFold(n, x) {
				return TimeType(i), nil
			}
		}
		if n, err := strconv.Atoi(x); err == nil {
			return ParseTimeType(n)
		}
		return 0, fmt.Errorf("%w: %q", ErrUnknownTimeType, x)
	}
	n, ok := expr.ToFloat(v)
	if !ok || n < 0 || int(n) >= len(timeTypeNames) || float64(int(n)) != n {
		return 0, fmt.Errorf("%w: %v", ErrUnknownTimeType, v)
	}
	return TimeType(int(n)), nil
}

// Value is one assignment within a Variable: either a static value or an
// expression, applicable from Time on.
type Value struct {
	Static   any
	Expr     expr.Expression
	Time     float64
	TimeType TimeType
	// EaseFunc names the easing curve used when TimeType is Ease.
	EaseFunc string
}

// Static returns a static value at time 0 with linear interpolation.
func Static(v any) *Value {
	return &Value{Static: v, TimeType: Linear}
}

// Expression returns an expression value at time 0 with linear
// interpolation.
func Expression(e expr.Expression) *Value {
	return &Value{Expr: e, TimeType: Linear}
}

// At sets the time the value applies from.
func (v *Value) At(t float64) *Value {
	v.Time = t
	return v
}

// With sets the interpolation mode.
func (v *Value) With(tt TimeType) *Value {
	v.TimeType = tt
	return v
}

// Eased selects an easing curve by name and switches the mode to Ease.
func (v *Value) Eased(name string) *Value {
	v.TimeType = Ease
	v.EaseFunc = name
	return v
}

func (v *Value) IsExpression() bool { return v.Expr != nil }

// Resolve evaluates the value against ctx.
func (v *Value) Resolve(ctx renderer.Context) (any, error) {
	if v.Expr != nil {
		return v.Expr.Evaluate(ctx)
	}
	return v.Static, nil
}

func (v *Value) clone() *Value {
	c := *v
	return &c
}

func (v *Value) String() string {
	body := fmt.Sprint(v.Static)
	if v.Expr != nil {
		body = v.Expr.String()
	}
	return fmt.Sprintf("%s@%g/%s", body, v.Time, v.TimeType)
}

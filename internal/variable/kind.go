package variable

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ivlev/kinema/internal/expr"
)

var ErrCoerce = errors.New("cannot coerce value")

// Kind is the semantic type of a parameter.
type Kind int

const (
	Any Kind = iota
	Int
	Float
	String
	Bool
	Enum
	Duration
	Color
)

var kindNames = []string{"any", "int", "float", "string", "bool", "enum", "duration", "color"}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Type selects the coercion applied to every value set on or read from a
// Variable. Names lists the members of an Enum in ordinal order.
type Type struct {
	Kind  Kind
	Names []string
}

func EnumOf(names ...string) Type {
	return Type{Kind: Enum, Names: names}
}

// Coerce converts v to the canonical Go type of the kind: int, float64,
// string, bool, int ordinal for enums, float64 seconds for durations and
// color.NRGBA for colours. nil passes through.
func (t Type) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t.Kind {
	case Any:
		return v, nil
	case Int:
		if s, ok := v.(string); ok {
			n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("%w %q to int", ErrCoerce, s)
			}
			return int(n), nil
		}
		if n, ok := expr.ToFloat(v); ok {
			return int(n), nil
		}
	case Float:
		if s, ok := v.(string); ok {
			n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("%w %q to float", ErrCoerce, s)
			}
			return n, nil
		}
		if n, ok := expr.ToFloat(v); ok {
			return n, nil
		}
	case String:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	case Bool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			p, err := strconv.ParseBool(strings.TrimSpace(b))
			if err != nil {
				return nil, fmt.Errorf("%w %q to bool", ErrCoerce, b)
			}
			return p, nil
		}
		if n, ok := expr.ToFloat(v); ok {
			return n != 0, nil
		}
	case Enum:
		return t.enum(v)
	case Duration:
		return parseDuration(v)
	case Color:
		return parseColor(v)
	}
	return nil, fmt.Errorf("%w %v (%T) to %s", ErrCoerce, v, v, t.Kind)
}

func (t Type) enum(v any) (any, error) {
	if s, ok := v.(string); ok {
		for i, n := range t.Names {
			if strings.EqualFold(n, s) {
				return i, nil
			}
		}
		if n, err := strconv.Atoi(s); err == nil {
			v = n
		} else {
			return nil, fmt.Errorf("%w: %q is not one of %v", ErrCoerce, s, t.Names)
		}
	}
	if s, ok := v.(fmt.Stringer); ok {
		return t.enum(s.String())
	}
	n, ok := expr.ToFloat(v)
	if !ok || n != math.Trunc(n) || n < 0 || int(n) >= len(t.Names) {
		return nil, fmt.Errorf("%w: %v is not an ordinal of %v", ErrCoerce, v, t.Names)
	}
	return int(n), nil
}

// Name returns the enum member name for an ordinal.
func (t Type) Name(ordinal int) string {
	if ordinal >= 0 && ordinal < len(t.Names) {
		return t.Names[ordinal]
	}
	return strconv.Itoa(ordinal)
}

func parseDuration(v any) (any, error) {
	switch d := v.(type) {
	case time.Duration:
		return d.Seconds(), nil
	case string:
		s := strings.TrimSpace(d)
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n, nil
		}
		pd, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("%w %q to duration", ErrCoerce, d)
		}
		return pd.Seconds(), nil
	}
	if n, ok := expr.ToFloat(v); ok {
		return n, nil
	}
	return nil, fmt.Errorf("%w %v (%T) to duration", ErrCoerce, v, v)
}

func parseColor(v any) (any, error) {
	switch c := v.(type) {
	case color.NRGBA:
		return c, nil
	case color.Color:
		return color.NRGBAModel.Convert(c).(color.NRGBA), nil
	case string:
		return parseHex(c)
	case []any:
		return colorFromList(c)
	case []int:
		l := make([]any, len(c))
		for i, x := range c {
			l[i] = x
		}
		return colorFromList(l)
	case []float64:
		l := make([]any, len(c))
		for i, x := range c {
			l[i] = x
		}
		return colorFromList(l)
	}
	return nil, fmt.Errorf("%w %v (%T) to color", ErrCoerce, v, v)
}

func colorFromList(l []any) (any, error) {
	if len(l) != 3 && len(l) != 4 {
		return nil, fmt.Errorf("%w: colour needs 3 or 4 components, got %d", ErrCoerce, len(l))
	}
	var ch [4]uint8
	ch[3] = 255
	for i, x := range l {
		n, ok := expr.ToFloat(x)
		if !ok {
			return nil, fmt.Errorf("%w: colour component %v", ErrCoerce, x)
		}
		ch[i] = uint8(math.Max(0, math.Min(255, math.Round(n))))
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, nil
}

func parseHex(s string) (any, error) {
	if strings.EqualFold(strings.TrimSpace(s), "none") {
		return nil, nil
	}
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 && len(h) != 8 {
		return nil, fmt.Errorf("%w %q to color", ErrCoerce, s)
	}
	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("%w %q to color", ErrCoerce, s)
	}
	if len(h) == 6 {
		n = n<<8 | 0xff
	}
	return color.NRGBA{R: uint8(n >> 24), G: uint8(n >> 16), B: uint8(n >> 8), A: uint8(n)}, nil
}

// FormatColor renders c as #rrggbbaa.
func FormatColor(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

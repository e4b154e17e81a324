package document

import (
	"fmt"
	"image/color"

	"github.com/ivlev/kinema/internal/expr"
	"github.com/ivlev/kinema/internal/variable"
)

// encodeVars stores the keyed values of every set variable into attrs.
// Defaults and fallbacks belong to the constructors and are not stored.
func encodeVars(attrs map[string]any, vars []*variable.Variable) {
	for _, v := range vars {
		if !v.IsSet() {
			continue
		}
		var entries []any
		for _, val := range v.Values() {
			entries = append(entries, encodeValue(val))
		}
		attrs[v.Name()] = entries
	}
}

func encodeValue(val *variable.Value) map[string]any {
	e := map[string]any{
		"time":      val.Time,
		"time_type": val.TimeType.String(),
	}
	if val.TimeType == variable.Ease && val.EaseFunc != "" {
		e["ease"] = val.EaseFunc
	}
	if val.IsExpression() {
		e["type"] = TypeExpression
		e["expr"] = expr.Unparse(val.Expr)
		return e
	}
	e["type"] = TypeValue
	switch s := val.Static.(type) {
	case color.NRGBA:
		e["value"] = variable.FormatColor(s)
	default:
		e["value"] = s
	}
	return e
}

// decodeVars assigns every attribute naming a declared variable. Other
// attributes are left to the caller.
func decodeVars(attrs map[string]any, vars []*variable.Variable) error {
	for _, v := range vars {
		raw, ok := attrs[v.Name()]
		if !ok {
			continue
		}
		list, ok := raw.([]any)
		if !ok {
			return fmt.Errorf("variable %s: expected a list of values, got %T", v.Name(), raw)
		}
		vals := make([]*variable.Value, 0, len(list))
		for i, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				return fmt.Errorf("variable %s entry %d: expected a mapping, got %T", v.Name(), i, item)
			}
			val, err := decodeValue(m)
			if err != nil {
				return fmt.Errorf("variable %s entry %d: %w", v.Name(), i, err)
			}
			vals = append(vals, val)
		}
		if err := v.Set(vals); err != nil {
			return err
		}
	}
	return nil
}

func decodeValue(m map[string]any) (*variable.Value, error) {
	var val *variable.Value
	switch m["type"] {
	case TypeExpression:
		e, err := expr.Parse(m["expr"])
		if err != nil {
			return nil, err
		}
		val = variable.Expression(e)
	case TypeValue, nil:
		val = variable.Static(m["value"])
	default:
		return nil, fmt.Errorf("%w: value entry %v", ErrUnknownType, m["type"])
	}
	if t, ok := m["time"]; ok {
		f, ok := expr.ToFloat(t)
		if !ok {
			return nil, fmt.Errorf("time %v is not a number", t)
		}
		val.At(f)
	}
	if tt, ok := m["time_type"]; ok {
		parsed, err := variable.ParseTimeType(tt)
		if err != nil {
			return nil, err
		}
		val.With(parsed)
	}
	if ease, ok := m["ease"].(string); ok {
		val.Eased(ease)
	}
	return val, nil
}

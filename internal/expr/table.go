package expr

import "fmt"

var symbols = map[string]func(Scope) any{
	"time":        func(s Scope) any { return s.LocalTime() },
	"global-time": func(s Scope) any { return s.GlobalTime() },
	"width": func(s Scope) any {
		w, _ := s.OutputSize()
		return w
	},
	"height": func(s Scope) any {
		_, h := s.OutputSize()
		return h
	},
}

type binaryOp func(a, b float64) (float64, error)

type operator struct {
	fold binaryOp
}

// call folds args left to right through the operator.
func (o operator) call(name string, args []float64) (float64, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrArity, name)
	}
	acc := args[0]
	for _, b := range args[1:] {
		var err error
		if acc, err = o.fold(acc, b); err != nil {
			return 0, err
		}
	}
	return acc, nil
}

var functions = map[string]operator{
	"+": {fold: func(a, b float64) (float64, error) { return a + b, nil }},
	"-": {fold: func(a, b float64) (float64, error) { return a - b, nil }},
	"*": {fold: func(a, b float64) (float64, error) { return a * b, nil }},
	"/": {fold: func(a, b float64) (float64, error) {
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a / b, nil
	}},
}

func IsSymbol(name string) bool {
	_, ok := symbols[name]
	return ok
}

func IsFunction(name string) bool {
	_, ok := functions[name]
	return ok
}

// ToFloat converts the numeric kinds an expression or a persisted document
// may produce.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

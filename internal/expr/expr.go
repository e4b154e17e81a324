// Package expr implements the small formula language used to compute
// parameter values from the render state.
//
// An expression is one of three node kinds: a literal Value, a Symbol that
// reads live render state, or a Function applied to argument expressions.
// Expressions are immutable and are re-evaluated on every access.
package expr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownSymbol   = errors.New("unknown symbol")
	ErrUnknownFunction = errors.New("unknown function")
	ErrArity           = errors.New("function needs at least one argument")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrOperand         = errors.New("operand is not a number")
	ErrEmpty           = errors.New("empty expression list")
)

// Scope is the render state symbols are resolved against.
type Scope interface {
	GlobalTime() float64
	LocalTime() float64
	OutputSize() (width, height int)
}

// Expression is a node of the formula AST.
type Expression interface {
	Evaluate(s Scope) (any, error)
	String() string
}

// Value is a literal.
type Value struct {
	Literal any
}

func (v Value) Evaluate(Scope) (any, error) {
	return v.Literal, nil
}

func (v Value) String() string {
	if s, ok := v.Literal.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(v.Literal)
}

// Symbol reads a named piece of render state.
type Symbol struct {
	Name string
}

func (s Symbol) Evaluate(scope Scope) (any, error) {
	fn, ok := symbols[s.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSymbol, s.Name)
	}
	return fn(scope), nil
}

func (s Symbol) String() string {
	return s.Name
}

// Function applies a named operator to its evaluated arguments.
type Function struct {
	Name string
	Args []Expression
}

func (f Function) Evaluate(scope Scope) (any, error) {
	op, ok := functions[f.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, f.Name)
	}

	args := make([]float64, 0, len(f.Args))
	for i, arg := range f.Args {
		v, err := arg.Evaluate(scope)
		if err != nil {
			return nil, err
		}
		n, ok := ToFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: argument %d of %q is %T", ErrOperand, i, f.Name, v)
		}
		args = append(args, n)
	}
	return op.call(f.Name, args)
}

func (f Function) String() string {
	parts := make([]string, 0, len(f.Args)+1)
	parts = append(parts, f.Name)
	for _, a := range f.Args {
		parts = append(parts, a.String())
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// Parse builds an expression from plain data. A string naming a known
// symbol becomes a Symbol, a list becomes a Function whose first element is
// the operator name, and anything else is a literal Value.
func Parse(v any) (Expression, error) {
	switch x := v.(type) {
	case Expression:
		return x, nil
	case string:
		if IsSymbol(x) {
			return Symbol{Name: x}, nil
		}
		return Value{Literal: x}, nil
	case []any:
		return parseList(x)
	case []string:
		items := make([]any, len(x))
		for i, s := range x {
			items[i] = s
		}
		return parseList(items)
	}
	return Value{Literal: v}, nil
}

func parseList(items []any) (Expression, error) {
	if len(items) == 0 {
		return nil, ErrEmpty
	}
	name, ok := items[0].(string)
	if !ok || !IsFunction(name) {
		return nil, fmt.Errorf("%w: %v", ErrUnknownFunction, items[0])
	}

	args := make([]Expression, 0, len(items)-1)
	for _, item := range items[1:] {
		arg, err := Parse(item)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return Function{Name: name, Args: args}, nil
}

// Unparse is the inverse of Parse for persisted documents.
func Unparse(e Expression) any {
	switch x := e.(type) {
	case Value:
		return x.Literal
	case Symbol:
		return x.Name
	case Function:
		items := make([]any, 0, len(x.Args)+1)
		items = append(items, x.Name)
		for _, a := range x.Args {
			items = append(items, Unparse(a))
		}
		return items
	}
	return nil
}

package variable

import (
	"errors"
	"fmt"
)

var ErrUnknownVariable = errors.New("unknown variable")

// Holder is the set of variables an owner declares, in declaration order.
type Holder struct {
	vars []*Variable
}

// Declare adds a variable and returns it. Names are unique per holder; a
// duplicate is a programming error and panics.
func (h *Holder) Declare(name string, t Type, def any) *Variable {
	if h.Lookup(name) != nil {
		panic(fmt.Sprintf("variable %s declared twice", name))
	}
	v := New(name, t, def)
	h.vars = append(h.vars, v)
	return v
}

// Variables returns the declared variables in declaration order.
func (h *Holder) Variables() []*Variable {
	return h.vars
}

func (h *Holder) Lookup(name string) *Variable {
	for _, v := range h.vars {
		if v.name == name {
			return v
		}
	}
	return nil
}

// Set assigns x to the named variable.
func (h *Holder) Set(name string, x any) error {
	v := h.Lookup(name)
	if v == nil {
		return fmt.Errorf("%w %q", ErrUnknownVariable, name)
	}
	return v.Set(x)
}

// SetAll assigns several variables, stopping at the first failure.
func (h *Holder) SetAll(values map[string]any) error {
	for name, x := range values {
		if err := h.Set(name, x); err != nil {
			return err
		}
	}
	return nil
}

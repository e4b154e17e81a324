// Package effects implements the closed set of transforms a clip applies to
// its render record.
//
// Every parameter is a variable.Variable, so any of them can be keyed over
// time or computed by an expression. Effects read their variables with the
// Context passed to Apply, whose record is the one being transformed.
package effects

import (
	"fmt"

	"github.com/npillmayer/schuko/tracing"

	"github.com/ivlev/kinema/internal/renderer"
	"github.com/ivlev/kinema/internal/variable"
)

// tracer traces with key 'kinema.effects'
func tracer() tracing.Trace {
	return tracing.Select("kinema.effects")
}

type Effect interface {
	// Kind is the stable name used in documents.
	Kind() string
	Apply(ctx renderer.Context, rec *renderer.Record) error
	Variables() []*variable.Variable
}

// Kinds lists every effect kind New understands.
var Kinds = []string{"pos", "resize", "rotate", "fade", "crop", "draw", "border", "seq"}

// New constructs an effect with default parameters by kind.
func New(kind string) (Effect, error) {
	switch kind {
	case "pos":
		return NewPos(), nil
	case "resize":
		return NewResize(), nil
	case "rotate":
		return NewRotate(), nil
	case "fade":
		return NewFade(), nil
	case "crop":
		return NewCrop(), nil
	case "draw":
		return NewDraw(), nil
	case "border":
		return NewBorder(), nil
	case "seq":
		return NewSeq(), nil
	}
	return nil, fmt.Errorf("unknown effect kind %q", kind)
}

// Seq applies its effects in order as a single effect.
type Seq struct {
	Effects []Effect
}

func NewSeq(effects ...Effect) *Seq {
	return &Seq{Effects: effects}
}

func (s *Seq) Add(effects ...Effect) *Seq {
	s.Effects = append(s.Effects, effects...)
	return s
}

func (s *Seq) Kind() string                    { return "seq" }
func (s *Seq) Variables() []*variable.Variable { return nil }

func (s *Seq) Apply(ctx renderer.Context, rec *renderer.Record) error {
	for i, e := range s.Effects {
		// the record may have been replaced by the previous effect
		if err := e.Apply(ctx.WithRecord(rec), rec); err != nil {
			return fmt.Errorf("seq item %d (%s): %w", i, e.Kind(), err)
		}
	}
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

func intOr(ctx renderer.Context, v *variable.Variable, def int) (int, error) {
	n, ok, err := v.Int(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	return n, nil
}

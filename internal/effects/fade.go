package effects

import (
	"math"

	"github.com/ivlev/kinema/internal/renderer"
	"github.com/ivlev/kinema/internal/variable"
)

// Fade scales the clip's alpha. Value is a constant factor. FadeIn ramps
// from 0 over its first seconds and FadeOut ramps to 0 over the last
// seconds of the owning clip. A clip without a duration never fades out.
type Fade struct {
	variable.Holder
	Value         *variable.Variable
	FadeIn        *variable.Variable
	FadeOut       *variable.Variable
	AlphaStrategy *variable.Variable
}

func NewFade() *Fade {
	f := &Fade{}
	f.Value = f.Declare("value", variable.Type{Kind: variable.Float}, 1)
	f.FadeIn = f.Declare("fade_in", variable.Type{Kind: variable.Duration}, nil)
	f.FadeOut = f.Declare("fade_out", variable.Type{Kind: variable.Duration}, nil)
	f.AlphaStrategy = f.Declare("alpha_strategy", variable.EnumOf(renderer.AlphaStrategyNames()...), int(renderer.AlphaMin))
	return f
}

// FadeInOut returns a Fade with both ramps set, in seconds. A zero ramp
// stays unset.
func FadeInOut(in, out float64) *Fade {
	f := NewFade()
	if in > 0 {
		_ = f.FadeIn.Set(in)
	}
	if out > 0 {
		_ = f.FadeOut.Set(out)
	}
	return f
}

func (f *Fade) Kind() string { return "fade" }

func (f *Fade) Apply(ctx renderer.Context, rec *renderer.Record) error {
	if rec.Image == nil {
		return nil
	}
	t := ctx.LocalTime()
	alpha, err := floatOr(ctx, f.Value, 1)
	if err != nil {
		return err
	}

	in, err := floatOr(ctx, f.FadeIn, 0)
	if err != nil {
		return err
	}
	if in > 0 && t <= in {
		alpha = math.Min(alpha, t/in)
	}

	out, err := floatOr(ctx, f.FadeOut, 0)
	if err != nil {
		return err
	}
	if d, finite := ctx.ClipDuration(); out > 0 && finite {
		if start := d - out; t >= start {
			alpha = math.Min(alpha, 1-(t-start)/out)
		}
	}

	strategy, err := intOr(ctx, f.AlphaStrategy, int(renderer.AlphaMin))
	if err != nil {
		return err
	}
	alpha = math.Max(0, math.Min(1, alpha))
	renderer.MergeAlpha(rec.Image, alpha, renderer.AlphaStrategy(strategy))
	return nil
}

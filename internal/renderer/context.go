// Package renderer carries the per-call render state: the time cursors, the
// record being rendered and the session that owns resource handles.
//
// A Context is an immutable value. Nested scopes derive a child Context
// instead of mutating shared state, so one Context per frame makes frames
// safe to render in parallel.
package renderer

import (
	"io"

	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'kinema.renderer'
func tracer() tracing.Trace {
	return tracing.Select("kinema.renderer")
}

type Context struct {
	global       float64
	local        float64
	record       *Record
	session      *Session
	clipDuration float64
	clipFinite   bool
}

// NewContext starts both cursors at 0.
func NewContext(s *Session) Context {
	return Context{session: s}
}

func (c Context) GlobalTime() float64 { return c.global }
func (c Context) LocalTime() float64  { return c.local }
func (c Context) Session() *Session   { return c.session }
func (c Context) Record() *Record     { return c.record }

// OutputSize is the size of the image currently being rendered, 0x0 when
// no record is in scope.
func (c Context) OutputSize() (int, int) {
	if c.record == nil || c.record.Image == nil {
		return 0, 0
	}
	b := c.record.Image.Bounds()
	return b.Dx(), b.Dy()
}

// At sets both cursors to t. It is used once per rendered frame.
func (c Context) At(t float64) Context {
	c.global = t
	c.local = t
	return c
}

// WithLocalOffset shifts the local cursor back by delta for a nested scope.
func (c Context) WithLocalOffset(delta float64) Context {
	c.local -= delta
	return c
}

// WithRecord makes r the record symbols and effects read from.
func (c Context) WithRecord(r *Record) Context {
	c.record = r
	return c
}

// WithClipDuration records the duration of the clip being rendered.
func (c Context) WithClipDuration(d float64, finite bool) Context {
	c.clipDuration = d
	c.clipFinite = finite
	return c
}

// ClipDuration reports the duration of the enclosing clip, if it has one.
func (c Context) ClipDuration() (float64, bool) {
	return c.clipDuration, c.clipFinite
}

// Track hands a resource handle to the session. A Context without a
// session ignores it.
func (c Context) Track(h io.Closer) {
	if c.session != nil && h != nil {
		c.session.Track(h)
	}
}

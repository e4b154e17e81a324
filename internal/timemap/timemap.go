// Package timemap maps a clip's own timeline onto the timeline of a finite
// resource. The mapping is piecewise linear and supports crop and speed
// edits that compose in any order.
package timemap

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalid = errors.New("invalid time map")

// MappingEntry marks a point on the clip timeline. Out is the resource time
// reached when arriving at In and OutEnd the resource time playback continues
// from. They differ only across a cut.
type MappingEntry struct {
	In     float64
	Out    float64
	OutEnd float64
}

// piece is a linear stretch of resource time [outStart, outEnd) played over
// an input length of span.
type piece struct {
	span     float64
	outStart float64
	outEnd   float64
}

type TimeMap struct {
	duration  float64
	base      []piece
	cropStart float64
	cropEnd   float64
	speed     float64
	entries   []MappingEntry
}

// New returns the identity map over a resource of the given length.
func New(duration float64) (*TimeMap, error) {
	if !(duration > 0) || math.IsInf(duration, 0) {
		return nil, fmt.Errorf("%w: resource duration %v", ErrInvalid, duration)
	}
	m := &TimeMap{
		duration: duration,
		base:     []piece{{span: duration, outStart: 0, outEnd: duration}},
		speed:    1,
	}
	if err := m.rebuild(0, 0, 1); err != nil {
		return nil, err
	}
	return m, nil
}

// Get maps a clip time to resource time. It reports false outside
// [0, Duration()).
func (m *TimeMap) Get(in float64) (float64, bool) {
	n := len(m.entries)
	if n == 0 || in < 0 || in >= m.entries[n-1].In {
		return 0, false
	}

	i := 0
	for j := 1; j < n && m.entries[j].In <= in; j++ {
		i = j
	}
	cur := m.entries[i]
	if in == cur.In {
		return cur.OutEnd, true
	}
	next := m.entries[i+1]
	f := (in - cur.In) / (next.In - cur.In)
	return cur.OutEnd + (next.Out-cur.OutEnd)*f, true
}

// Duration is the mapped length, the In of the last entry.
func (m *TimeMap) Duration() float64 {
	if len(m.entries) == 0 {
		return 0
	}
	return m.entries[len(m.entries)-1].In
}

// ResourceDuration is the length of the underlying resource.
func (m *TimeMap) ResourceDuration() float64 { return m.duration }

func (m *TimeMap) CropStart() float64 { return m.cropStart }
func (m *TimeMap) CropEnd() float64   { return m.cropEnd }
func (m *TimeMap) Speed() float64     { return m.speed }

// Entries returns a copy of the current mapping table.
func (m *TimeMap) Entries() []MappingEntry {
	out := make([]MappingEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// SetCropStart drops the first d seconds of resource time, replacing any
// earlier start crop.
func (m *TimeMap) SetCropStart(d float64) error {
	return m.rebuild(d, m.cropEnd, m.speed)
}

// SetCropEnd drops the last d seconds of resource time, replacing any
// earlier end crop.
func (m *TimeMap) SetCropEnd(d float64) error {
	return m.rebuild(m.cropStart, d, m.speed)
}

// SetSpeed plays the resource at factor times its native rate.
func (m *TimeMap) SetSpeed(factor float64) error {
	return m.rebuild(m.cropStart, m.cropEnd, factor)
}

// FitInto picks the speed that makes the mapped length equal d.
func (m *TimeMap) FitInto(d float64) error {
	if !(d > 0) {
		return fmt.Errorf("%w: fit duration %v", ErrInvalid, d)
	}
	natural := m.Duration() * m.speed
	return m.SetSpeed(natural / d)
}

// Clear drops all edits.
func (m *TimeMap) Clear() error {
	return m.rebuild(0, 0, 1)
}

// rebuild applies the edits to the base pieces and commits the result only
// when it passes the invariant check.
func (m *TimeMap) rebuild(cropStart, cropEnd, speed float64) error {
	if cropStart < 0 || cropEnd < 0 {
		return fmt.Errorf("%w: negative crop (start %v, end %v)", ErrInvalid, cropStart, cropEnd)
	}
	if !(speed > 0) || math.IsInf(speed, 0) {
		return fmt.Errorf("%w: speed %v", ErrInvalid, speed)
	}

	lo, hi := cropStart, m.duration-cropEnd
	if !(hi > lo) {
		return fmt.Errorf("%w: crops %v+%v leave nothing of %v", ErrInvalid, cropStart, cropEnd, m.duration)
	}

	var pieces []piece
	for _, p := range m.base {
		q, ok := p.clip(lo, hi)
		if ok {
			pieces = append(pieces, q)
		}
	}

	entries := make([]MappingEntry, 0, len(pieces)+1)
	in := 0.0
	prevOut := math.NaN()
	for _, p := range pieces {
		arrive := p.outStart
		if !math.IsNaN(prevOut) {
			arrive = prevOut
		}
		entries = append(entries, MappingEntry{In: in, Out: arrive, OutEnd: p.outStart})
		in += p.span / speed
		prevOut = p.outEnd
	}
	if len(pieces) > 0 {
		entries = append(entries, MappingEntry{In: in, Out: prevOut, OutEnd: prevOut})
	}

	if err := validate(entries); err != nil {
		return err
	}

	m.cropStart, m.cropEnd, m.speed = cropStart, cropEnd, speed
	m.entries = entries
	tracer().Debugf("time map rebuilt: crop %.3f/%.3f speed %.3f -> %d entries, %.3fs",
		cropStart, cropEnd, speed, len(entries), m.Duration())
	return nil
}

// clip restricts a piece to the resource window [lo, hi], keeping its rate.
func (p piece) clip(lo, hi float64) (piece, bool) {
	start, end := math.Max(p.outStart, lo), math.Min(p.outEnd, hi)
	if !(end > start) {
		return piece{}, false
	}
	rate := p.span / (p.outEnd - p.outStart)
	return piece{span: (end - start) * rate, outStart: start, outEnd: end}, true
}

func validate(entries []MappingEntry) error {
	if len(entries) < 2 {
		return fmt.Errorf("%w: need at least two entries, have %d", ErrInvalid, len(entries))
	}
	if entries[0].In != 0 {
		return fmt.Errorf("%w: first entry starts at %v", ErrInvalid, entries[0].In)
	}
	for i, e := range entries {
		if e.OutEnd < e.Out {
			return fmt.Errorf("%w: entry %d ends before it starts (%v < %v)", ErrInvalid, i, e.OutEnd, e.Out)
		}
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		if !(e.In > prev.In) {
			return fmt.Errorf("%w: entry %d in time %v not after %v", ErrInvalid, i, e.In, prev.In)
		}
		if !(e.Out > prev.OutEnd) {
			return fmt.Errorf("%w: entry %d out time %v not after %v", ErrInvalid, i, e.Out, prev.OutEnd)
		}
	}
	return nil
}

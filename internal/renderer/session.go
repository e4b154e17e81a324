package renderer

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// Session registers the resource handles opened while rendering and
// closes each of them exactly once when it ends. It is safe for use by
// concurrent frame workers.
type Session struct {
	mu      sync.Mutex
	handles []io.Closer
	seen    map[io.Closer]struct{}
	ended   bool
}

func NewSession() *Session {
	tracer().Debugf("session begin")
	return &Session{seen: make(map[io.Closer]struct{})}
}

// Track registers h. Registering the same handle again is a no-op, so a
// resource shared by many clips is closed once. Handles must be comparable,
// pointer types in practice.
func (s *Session) Track(h io.Closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[h]; ok {
		return
	}
	s.seen[h] = struct{}{}
	s.handles = append(s.handles, h)
}

// Len is the number of tracked handles.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// End closes every tracked handle in reverse registration order. Further
// calls return nil.
func (s *Session) End() error {
	s.mu.Lock()
	handles := s.handles
	s.handles = nil
	s.seen = make(map[io.Closer]struct{})
	already := s.ended
	s.ended = true
	s.mu.Unlock()

	if already && len(handles) == 0 {
		return nil
	}

	var errs []error
	for i := len(handles) - 1; i >= 0; i-- {
		if err := handles[i].Close(); err != nil {
			tracer().Errorf("close resource: %v", err)
			errs = append(errs, err)
		}
	}
	tracer().Debugf("session end: closed %d handles", len(handles))
	if len(errs) > 0 {
		return fmt.Errorf("closing session resources: %w", errors.Join(errs...))
	}
	return nil
}

// Run begins a session, calls fn with a fresh Context and ends the
// session on every path. A close failure is reported alongside fn's error.
func Run(fn func(ctx Context) error) (err error) {
	s := NewSession()
	defer func() {
		if endErr := s.End(); endErr != nil {
			err = errors.Join(err, endErr)
		}
	}()
	return fn(NewContext(s))
}

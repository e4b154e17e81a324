// Package source provides the pixel-producing resources clips wrap.
//
// Every resource hands out frames as fresh *image.RGBA values the caller
// owns. A nil image with a nil error means the resource has nothing to
// show at that time. Resources decode lazily and cache what they decode;
// Close drops the cache and any open process, after which the resource can
// be used again.
package source

import (
	"image"
	"sync"

	"github.com/npillmayer/schuko/tracing"

	"github.com/ivlev/kinema/internal/renderer"
)

// tracer traces with key 'kinema.source'
func tracer() tracing.Trace {
	return tracing.Select("kinema.source")
}

// Info describes a resource. Duration is meaningful only when Finite.
type Info struct {
	Width    int
	Height   int
	Duration float64
	Finite   bool
	FPS      float64
}

type Resource interface {
	Info() (Info, error)
	Frame(t float64) (*image.RGBA, error)
	Close() error
}

// still caches one rendered image and hands out copies of it.
type still struct {
	mu  sync.Mutex
	img *image.RGBA
}

func (s *still) frame(render func() (*image.RGBA, error)) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		img, err := render()
		if err != nil {
			return nil, err
		}
		s.img = img
	}
	return renderer.Clone(s.img), nil
}

func (s *still) info() (image.Rectangle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return image.Rectangle{}, false
	}
	return s.img.Bounds(), true
}

func (s *still) drop() {
	s.mu.Lock()
	s.img = nil
	s.mu.Unlock()
}

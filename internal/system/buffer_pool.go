package system

import (
	"image"
	"sync"
)

// DefaultPoolDepth is how many idle frames of one size a pool keeps.
const DefaultPoolDepth = 64

// ImagePool recycles *image.RGBA frames by size. Frames handed out keep
// whatever pixels their last user left; callers overwrite them fully.
// An ImagePool is safe for concurrent use.
type ImagePool struct {
	Depth int

	mu     sync.Mutex
	idle   map[image.Rectangle][]*image.RGBA
	allocs int
	reuses int
}

func NewImagePool() *ImagePool {
	return &ImagePool{Depth: DefaultPoolDepth, idle: make(map[image.Rectangle][]*image.RGBA)}
}

func (p *ImagePool) Get(rect image.Rectangle) *image.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()
	if free := p.idle[rect]; len(free) > 0 {
		img := free[len(free)-1]
		p.idle[rect] = free[:len(free)-1]
		p.reuses++
		return img
	}
	p.allocs++
	return image.NewRGBA(rect)
}

// Put keeps img for a later Get unless the pool already holds Depth idle
// frames of that size.
func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.idle == nil {
		p.idle = make(map[image.Rectangle][]*image.RGBA)
	}
	if free := p.idle[img.Rect]; len(free) < p.Depth {
		p.idle[img.Rect] = append(free, img)
	}
}

// Counts reports how many frames Get allocated and how many it reused.
func (p *ImagePool) Counts() (allocs, reuses int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocs, p.reuses
}

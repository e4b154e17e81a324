package source

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/ivlev/kinema/internal/renderer"
	"github.com/ivlev/kinema/internal/video"
)

// DefaultFrameCache is how many decoded frames a Video keeps around.
const DefaultFrameCache = 16

type frameReader interface {
	FrameAt(t float64) (*video.Frame, error)
	Close() error
}

type cachedFrame struct {
	start, end float64
	img        *image.RGBA
}

// Video decodes frames from a video file through ffmpeg. Recently decoded
// frames are kept in a ring, so frame workers asking for nearby times in a
// slightly shuffled order do not force the reader to seek back.
type Video struct {
	Path string
	// CacheSize bounds the frame ring, DefaultFrameCache when 0.
	CacheSize int

	mu     sync.Mutex
	media  *video.Media
	reader frameReader
	ring   []cachedFrame
	head   int

	// open builds the reader, replaced in tests.
	open func(path string, m video.Media) (frameReader, error)
}

func NewVideo(path string) *Video {
	return &Video{Path: path}
}

func (v *Video) probe() (video.Media, error) {
	if v.media == nil {
		m, err := video.Probe(context.Background(), v.Path)
		if err != nil {
			return video.Media{}, err
		}
		v.media = &m
	}
	return *v.media, nil
}

func (v *Video) Info() (Info, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	m, err := v.probe()
	if err != nil {
		return Info{}, err
	}
	return Info{
		Width:    m.Width,
		Height:   m.Height,
		Duration: m.Duration,
		Finite:   true,
		FPS:      m.FPS,
	}, nil
}

// Frame returns the frame shown at t, nil past the end of the stream.
func (v *Video) Frame(t float64) (*image.RGBA, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if img := v.cached(t); img != nil {
		return renderer.Clone(img), nil
	}

	m, err := v.probe()
	if err != nil {
		return nil, err
	}
	if t < 0 || t >= m.Duration {
		return nil, nil
	}
	if v.reader == nil {
		open := v.open
		if open == nil {
			open = openReader
		}
		r, err := open(v.Path, m)
		if err != nil {
			return nil, err
		}
		v.reader = r
	}

	f, err := v.reader.FrameAt(t)
	if err != nil {
		return nil, fmt.Errorf("video %s at %.3fs: %w", v.Path, t, err)
	}
	if f.EOF || f.Image == nil {
		return nil, nil
	}
	v.remember(f)
	return renderer.Clone(f.Image), nil
}

func openReader(path string, m video.Media) (frameReader, error) {
	return video.NewReader(path, m)
}

func (v *Video) cached(t float64) *image.RGBA {
	for _, c := range v.ring {
		if c.img != nil && c.start <= t && t < c.end {
			return c.img
		}
	}
	return nil
}

func (v *Video) remember(f *video.Frame) {
	size := v.CacheSize
	if size <= 0 {
		size = DefaultFrameCache
	}
	if len(v.ring) != size {
		v.ring = make([]cachedFrame, size)
		v.head = 0
	}
	v.ring[v.head] = cachedFrame{start: f.Start, end: f.End, img: renderer.Clone(f.Image)}
	v.head = (v.head + 1) % size
}

// Close stops the decoder and drops cached frames. Probed metadata is kept.
func (v *Video) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ring = nil
	v.head = 0
	if v.reader == nil {
		return nil
	}
	err := v.reader.Close()
	v.reader = nil
	tracer().Debugf("closed video %s", v.Path)
	return err
}

package source

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/ivlev/kinema/internal/renderer"
)

// Image is a still picture decoded from a file on first use.
type Image struct {
	Path  string
	cache still
}

func NewImage(path string) *Image {
	return &Image{Path: path}
}

// Info reads only the header unless the image is already decoded.
func (s *Image) Info() (Info, error) {
	if b, ok := s.cache.info(); ok {
		return Info{Width: b.Dx(), Height: b.Dy()}, nil
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Info{}, fmt.Errorf("decoding header of %s: %w", s.Path, err)
	}
	return Info{Width: cfg.Width, Height: cfg.Height}, nil
}

func (s *Image) Frame(float64) (*image.RGBA, error) {
	return s.cache.frame(func() (*image.RGBA, error) {
		f, err := os.Open(s.Path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		img, _, err := image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", s.Path, err)
		}
		tracer().Debugf("decoded image %s", s.Path)
		return renderer.Clone(img), nil
	})
}

func (s *Image) Close() error {
	s.cache.drop()
	return nil
}

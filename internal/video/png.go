package video

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

// PNGSequence writes every frame as frame_%06d.png into a directory.
type PNGSequence struct {
	dir  string
	next int
	enc  png.Encoder
}

func NewPNGSequence(dir string) (*PNGSequence, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating frame dir: %w", err)
	}
	return &PNGSequence{dir: dir, enc: png.Encoder{CompressionLevel: png.BestSpeed}}, nil
}

// Path returns the file name used for frame i.
func (s *PNGSequence) Path(i int) string {
	return filepath.Join(s.dir, fmt.Sprintf("frame_%06d.png", i))
}

func (s *PNGSequence) WriteFrame(img image.Image) error {
	p := s.Path(s.next)
	if err := WritePNG(p, img, &s.enc); err != nil {
		return err
	}
	s.next++
	return nil
}

func (s *PNGSequence) Close() error {
	tracer().Infof("[+++] %d frames written to %s", s.next, s.dir)
	return nil
}

// WritePNG encodes img into path. A nil encoder uses the defaults.
func WritePNG(path string, img image.Image, enc *png.Encoder) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if enc == nil {
		enc = &png.Encoder{}
	}
	if err := enc.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}

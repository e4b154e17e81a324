// Package analyzer finds regions of interest on rasterized pages, used by
// the slideshow director to pick zoom targets.
package analyzer

import (
	"image"

	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'kinema.analyzer'
func tracer() tracing.Trace {
	return tracing.Select("kinema.analyzer")
}

// Block is a detected region in the coordinates of the analyzed image.
type Block struct {
	Rect image.Rectangle
	// Type is "text", "header", "figure" or "unknown".
	Type       string
	Confidence float64
}

// Center is the middle of the block.
func (b Block) Center() (float64, float64) {
	return float64(b.Rect.Min.X) + float64(b.Rect.Dx())/2,
		float64(b.Rect.Min.Y) + float64(b.Rect.Dy())/2
}

type Detector interface {
	Detect(img image.Image) ([]Block, error)
}

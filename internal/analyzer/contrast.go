package analyzer

import (
	"image"
	"math"
	"sort"

	"golang.org/x/image/draw"
)

// ContrastDetector finds blocks by Sobel edge detection, dilation and
// connected components. Large pages are analyzed at reduced size and the
// blocks scaled back.
type ContrastDetector struct {
	// MinBlockArea is in pixels of the original image.
	MinBlockArea  int
	EdgeThreshold float64
	// MaxSide bounds the longer side of the analyzed image. 0 analyzes at
	// full size.
	MaxSide int
	// Kernel and Iterations control the dilation joining nearby edges.
	Kernel     int
	Iterations int
}

func NewContrastDetector() *ContrastDetector {
	return &ContrastDetector{
		MinBlockArea:  500,
		EdgeThreshold: 30,
		MaxSide:       800,
		Kernel:        5,
		Iterations:    2,
	}
}

// Detect returns the blocks ordered by area, largest first.
func (d *ContrastDetector) Detect(img image.Image) ([]Block, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, nil
	}
	scale := 1.0
	if side := max(b.Dx(), b.Dy()); d.MaxSide > 0 && side > d.MaxSide {
		scale = float64(d.MaxSide) / float64(side)
	}
	gray := toGray(img, scale)
	edges := sobel(gray, d.EdgeThreshold)
	for i := 0; i < d.Iterations; i++ {
		edges = dilate(edges, d.Kernel/2)
	}

	minArea := float64(d.MinBlockArea) * scale * scale
	var blocks []Block
	for _, r := range components(edges) {
		if float64(r.Dx()*r.Dy()) < minArea {
			continue
		}
		orig := image.Rect(
			b.Min.X+int(float64(r.Min.X)/scale), b.Min.Y+int(float64(r.Min.Y)/scale),
			b.Min.X+int(math.Ceil(float64(r.Max.X)/scale)), b.Min.Y+int(math.Ceil(float64(r.Max.Y)/scale)),
		).Intersect(b)
		blocks = append(blocks, Block{Rect: orig, Type: classify(orig), Confidence: 0.7})
	}
	sort.SliceStable(blocks, func(i, j int) bool {
		return area(blocks[i].Rect) > area(blocks[j].Rect)
	})
	tracer().Debugf("contrast: %d blocks on %dx%d (scale %.2f)", len(blocks), b.Dx(), b.Dy(), scale)
	return blocks, nil
}

func area(r image.Rectangle) int { return r.Dx() * r.Dy() }

// classify guesses from the aspect ratio: wide flat strips read as text
// lines or headers, squarish ones as figures.
func classify(r image.Rectangle) string {
	if r.Dy() == 0 {
		return "unknown"
	}
	switch ratio := float64(r.Dx()) / float64(r.Dy()); {
	case ratio > 8:
		return "header"
	case ratio > 3:
		return "text"
	case ratio > 0.5 && ratio < 2:
		return "figure"
	}
	return "unknown"
}

// toGray converts to grayscale at the given scale, with origin 0,0.
func toGray(img image.Image, scale float64) *image.Gray {
	b := img.Bounds()
	w := max(1, int(float64(b.Dx())*scale))
	h := max(1, int(float64(b.Dy())*scale))
	gray := image.NewGray(image.Rect(0, 0, w, h))
	if scale == 1 {
		draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, b, draw.Src, nil)
	}
	return gray
}

var (
	sobelX = [3][3]float64{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}}
	sobelY = [3][3]float64{{-1, -2, -1}, {0, 0, 0}, {1, 2, 1}}
)

// sobel marks pixels whose gradient magnitude exceeds threshold. The one
// pixel frame stays unmarked.
func sobel(gray *image.Gray, threshold float64) *image.Gray {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	edges := image.NewGray(gray.Rect)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				row := (y + ky) * gray.Stride
				for kx := -1; kx <= 1; kx++ {
					v := float64(gray.Pix[row+x+kx])
					gx += v * sobelX[ky+1][kx+1]
					gy += v * sobelY[ky+1][kx+1]
				}
			}
			if math.Hypot(gx, gy) > threshold {
				edges.Pix[y*edges.Stride+x] = 255
			}
		}
	}
	return edges
}

// dilate grows marked pixels by r in every direction, clamped at the
// image edges.
func dilate(img *image.Gray, r int) *image.Gray {
	if r <= 0 {
		return img
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	// separable: rows first, then columns
	tmp := image.NewGray(img.Rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for k := max(0, x-r); k <= min(w-1, x+r); k++ {
				if img.Pix[y*img.Stride+k] > 128 {
					tmp.Pix[y*tmp.Stride+x] = 255
					break
				}
			}
		}
	}
	out := image.NewGray(img.Rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for k := max(0, y-r); k <= min(h-1, y+r); k++ {
				if tmp.Pix[k*tmp.Stride+x] > 128 {
					out.Pix[y*out.Stride+x] = 255
					break
				}
			}
		}
	}
	return out
}

// components returns the bounding boxes of 4-connected marked regions in
// scan order.
func components(img *image.Gray) []image.Rectangle {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	visited := make([]bool, w*h)
	var rects []image.Rectangle
	var stack []image.Point
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if visited[y*w+x] || img.Pix[y*img.Stride+x] <= 128 {
				continue
			}
			r := image.Rect(x, y, x+1, y+1)
			stack = append(stack[:0], image.Pt(x, y))
			visited[y*w+x] = true
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				r = r.Union(image.Rect(p.X, p.Y, p.X+1, p.Y+1))
				for _, n := range [4]image.Point{{p.X + 1, p.Y}, {p.X - 1, p.Y}, {p.X, p.Y + 1}, {p.X, p.Y - 1}} {
					if n.X < 0 || n.Y < 0 || n.X >= w || n.Y >= h {
						continue
					}
					if i := n.Y*w + n.X; !visited[i] && img.Pix[n.Y*img.Stride+n.X] > 128 {
						visited[i] = true
						stack = append(stack, n)
					}
				}
			}
			rects = append(rects, r)
		}
	}
	return rects
}

package analyzer

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

// page returns a black w x h image with white rectangles.
func page(w, h int, rects ...image.Rectangle) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for _, r := range rects {
		draw.Draw(img, r, image.NewUniform(color.Gray{Y: 255}), image.Point{}, draw.Src)
	}
	return img
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func near(a, b image.Rectangle, tol int) bool {
	return abs(a.Min.X-b.Min.X) <= tol && abs(a.Min.Y-b.Min.Y) <= tol &&
		abs(a.Max.X-b.Max.X) <= tol && abs(a.Max.Y-b.Max.Y) <= tol
}

func TestContrastDetector(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "kinema.analyzer")
	defer teardown()

	want := image.Rect(50, 50, 150, 150)
	blocks, err := NewContrastDetector().Detect(page(200, 200, want))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("Expected 1 block, got %d", len(blocks))
	}
	if !near(blocks[0].Rect, want, 8) {
		t.Errorf("Expected block near %v, got %v", want, blocks[0].Rect)
	}
	if blocks[0].Type != "figure" {
		t.Errorf("Expected a square block to be a figure, got %s", blocks[0].Type)
	}
}

func TestContrastDetectorDownscales(t *testing.T) {
	big := image.Rect(500, 200, 1500, 800)
	small := image.Rect(100, 900, 300, 960)
	blocks, err := NewContrastDetector().Detect(page(2000, 1000, big, small))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("Expected 2 blocks, got %d: %v", len(blocks), blocks)
	}
	if !near(blocks[0].Rect, big, 20) {
		t.Errorf("Expected largest block near %v, got %v", big, blocks[0].Rect)
	}
	if !near(blocks[1].Rect, small, 20) {
		t.Errorf("Expected second block near %v, got %v", small, blocks[1].Rect)
	}
}

func TestContrastDetectorDropsSmallBlocks(t *testing.T) {
	blocks, err := NewContrastDetector().Detect(page(200, 200, image.Rect(10, 10, 14, 14)))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(blocks) != 0 {
		t.Errorf("Expected speck to be ignored, got %v", blocks)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		rect image.Rectangle
		want string
	}{
		{image.Rect(0, 0, 900, 100), "header"},
		{image.Rect(0, 0, 400, 100), "text"},
		{image.Rect(0, 0, 100, 100), "figure"},
		{image.Rect(0, 0, 20, 100), "unknown"},
	}
	for _, tt := range tests {
		if got := classify(tt.rect); got != tt.want {
			t.Errorf("Expected %v to be %s, got %s", tt.rect, tt.want, got)
		}
	}
}

func TestDetectorRegistry(t *testing.T) {
	tests := []struct {
		variant string
		wantErr bool
	}{
		{"contrast", false},
		{"", false},
		{"ocr", true},
		{"invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			detector, err := NewDetector(tt.variant)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if detector == nil {
				t.Error("Expected detector, got nil")
			}
		})
	}
}

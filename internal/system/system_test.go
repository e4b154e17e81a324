package system

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPickEncoder(t *testing.T) {
	tests := []struct {
		listing string
		want    string
	}{
		{" V....D h264_nvenc           NVIDIA NVENC H.264 encoder", "h264_nvenc"},
		{" V....D h264_videotoolbox    VideoToolbox H.264 Encoder\n V....D h264_nvenc", "h264_videotoolbox"},
		{" V....D libx264              libx264 H.264", "libx264"},
	}
	for _, tt := range tests {
		if got := pickEncoder(tt.listing); got != tt.want {
			t.Errorf("Expected %s, got %s", tt.want, got)
		}
	}
}

func TestFindLatestAndList(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "b.png")
	latest := filepath.Join(dir, "a.JPG")
	for _, p := range []string{old, latest, filepath.Join(dir, "notes.txt")} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	got, err := FindLatest(dir, ImageExtensions)
	if err != nil {
		t.Fatal(err)
	}
	if got != latest {
		t.Errorf("Expected %s, got %s", latest, got)
	}

	list, err := ListFiles(dir, ImageExtensions)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0] != latest || list[1] != old {
		t.Errorf("Expected [a.JPG b.png], got %v", list)
	}

	if _, err := FindLatest(dir, PDFExtensions); err == nil {
		t.Errorf("Expected error when no PDF exists")
	}
}

func TestImagePool(t *testing.T) {
	p := NewImagePool()
	p.Depth = 1
	r := image.Rect(0, 0, 8, 4)
	a, b := p.Get(r), p.Get(r)
	if a.Rect != r || a == b {
		t.Fatalf("Expected two distinct %v frames, got %v and %v", r, a.Rect, b.Rect)
	}
	p.Put(a)
	p.Put(b) // over depth, dropped
	if again := p.Get(r); again != a {
		t.Errorf("Expected the idle frame back")
	}
	if c := p.Get(r); c == b {
		t.Errorf("Expected a frame past the depth to be dropped")
	}
	if allocs, reuses := p.Counts(); allocs != 3 || reuses != 1 {
		t.Errorf("Expected 3 allocations and 1 reuse, got %d and %d", allocs, reuses)
	}
	p.Put(nil)
}

func TestDefaultWorkers(t *testing.T) {
	if n := DefaultWorkers(); n < 1 {
		t.Errorf("Expected at least one worker, got %d", n)
	}
}

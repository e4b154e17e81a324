package video

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"

	"github.com/ivlev/kinema/internal/system"
)

func TestBuildWriterArgs(t *testing.T) {
	args := buildWriterArgs("out.mp4", 320, 240, 30, WriterOptions{})
	line := strings.Join(args, " ")

	for _, want := range []string{
		"-s 320x240",
		"-r 30.00",
		"-pix_fmt rgba -i -",
		"-codec:v libx264",
		"-crf 23 -preset medium",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("Expected %q in %q", want, line)
		}
	}
	if args[len(args)-1] != "out.mp4" {
		t.Errorf("Expected output path last, got %q", args[len(args)-1])
	}
}

func TestQualityArgs(t *testing.T) {
	tests := []struct {
		encoder string
		quality int
		want    string
	}{
		{"h264_videotoolbox", 75, "-b:v 7500k"},
		{"h264_nvenc", 19, "-cq 19"},
		{"libx264", 18, "-crf 18 -preset medium"},
		{"libvpx-vp9", 30, "-q:v 30"},
		{"libvpx-vp9", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.encoder, func(t *testing.T) {
			got := strings.Join(qualityArgs(tt.encoder, tt.quality), " ")
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestWriteRawRGBA(t *testing.T) {
	full := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range full.Pix {
		full.Pix[i] = byte(i)
	}

	pool := system.NewImagePool()
	var buf bytes.Buffer
	if err := writeRawRGBA(&buf, full, pool); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Bytes(), full.Pix) {
		t.Errorf("Expected packed image to be written unchanged")
	}

	// a sub-image is not tightly packed and must be repacked
	sub := full.SubImage(image.Rect(1, 1, 3, 3))
	buf.Reset()
	if err := writeRawRGBA(&buf, sub, pool); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 2*2*4 {
		t.Fatalf("Expected 16 bytes, got %d", buf.Len())
	}
	want := full.Pix[full.PixOffset(1, 1) : full.PixOffset(1, 1)+4]
	if !bytes.Equal(buf.Bytes()[:4], want) {
		t.Errorf("Expected first pixel %v, got %v", want, buf.Bytes()[:4])
	}
}

func TestParseProbe(t *testing.T) {
	out := []byte(`{
		"streams": [
			{"codec_type": "audio"},
			{"codec_type": "video", "width": 1280, "height": 720, "r_frame_rate": "30000/1001"}
		],
		"format": {"duration": "12.500000"}
	}`)
	m, err := parseProbe(out)
	if err != nil {
		t.Fatal(err)
	}
	if m.Width != 1280 || m.Height != 720 {
		t.Errorf("Expected 1280x720, got %dx%d", m.Width, m.Height)
	}
	if m.FPS < 29.97 || m.FPS > 29.98 {
		t.Errorf("Expected ~29.97 fps, got %v", m.FPS)
	}
	if m.Duration != 12.5 {
		t.Errorf("Expected duration 12.5, got %v", m.Duration)
	}

	if _, err := parseProbe([]byte(`{"streams":[{"codec_type":"video","r_frame_rate":"30/0"}]}`)); err == nil {
		t.Errorf("Expected error for zero denominator")
	}
}

func TestShortReadError(t *testing.T) {
	var err error = &ShortReadError{Path: "clip.mp4", Expected: 4096, Got: 100}
	want := "Expected 4096 bytes for frame but got 100 from 'clip.mp4'"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
	var sr *ShortReadError
	if !errors.As(err, &sr) || sr.Got != 100 {
		t.Errorf("Expected errors.As to find the short read")
	}
}

func TestReaderNeedsGeometry(t *testing.T) {
	if _, err := NewReader("x.mp4", Media{Width: 10}); err == nil {
		t.Errorf("Expected error without full geometry")
	}
}

func TestPNGSequence(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "kinema.video")
	defer teardown()

	dir := t.TempDir()
	seq, err := NewPNGSequence(dir)
	if err != nil {
		t.Fatal(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	for i := 0; i < 2; i++ {
		if err := seq.WriteFrame(img); err != nil {
			t.Fatal(err)
		}
	}
	if err := seq.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(seq.Path(1))
	if err != nil {
		t.Fatalf("Expected second frame on disk: %v", err)
	}
	defer f.Close()
	got, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if r, _, _, _ := got.At(1, 1).RGBA(); r != 0xffff {
		t.Errorf("Expected red pixel to survive encoding, got r=%x", r)
	}
	if _, err := os.Stat(seq.Path(2)); !os.IsNotExist(err) {
		t.Errorf("Expected no third frame, got %v", err)
	}
}

// Package video talks to ffmpeg: it encodes rendered frames, decodes frames
// from video files and probes media metadata.
package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"time"

	"github.com/npillmayer/schuko/tracing"

	"github.com/ivlev/kinema/internal/system"
)

// tracer traces with key 'kinema.video'
func tracer() tracing.Trace {
	return tracing.Select("kinema.video")
}

// Paths of the external tools. Overridable for non-standard installs.
var (
	FFmpegPath  = "ffmpeg"
	FFprobePath = "ffprobe"
)

// closeTimeout is how long Close waits for ffmpeg before killing it.
const closeTimeout = 5 * time.Second

var ErrFrameSize = errors.New("frame size does not match sink")

// Sink receives rendered frames in time order.
type Sink interface {
	WriteFrame(img image.Image) error
	Close() error
}

// WriterOptions selects the output encoder. An empty Encoder means libx264.
type WriterOptions struct {
	Encoder string
	Quality int
}

// Writer pipes raw RGBA frames into an ffmpeg process.
type Writer struct {
	path   string
	width  int
	height int
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	done   chan error
	frames int
	closed bool
	pool   *system.ImagePool
}

// NewWriter starts ffmpeg writing path. Every frame must be width x height.
func NewWriter(ctx context.Context, path string, width, height int, fps float64, opts WriterOptions) (*Writer, error) {
	if width <= 0 || height <= 0 || fps <= 0 {
		return nil, fmt.Errorf("invalid writer geometry %dx%d@%g", width, height, fps)
	}
	args := buildWriterArgs(path, width, height, fps, opts)
	cmd := exec.CommandContext(ctx, FFmpegPath, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}
	tracer().Debugf("[*] ffmpeg writer started for %s (%dx%d@%g)", path, width, height, fps)

	w := &Writer{
		path:   path,
		width:  width,
		height: height,
		cmd:    cmd,
		stdin:  stdin,
		done:   make(chan error, 1),
		pool:   system.NewImagePool(),
	}
	go func() { w.done <- cmd.Wait() }()
	return w, nil
}

func buildWriterArgs(path string, width, height int, fps float64, opts WriterOptions) []string {
	encoder := opts.Encoder
	if encoder == "" {
		encoder = "libx264"
	}
	args := []string{
		"-y",
		"-loglevel", "quiet",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", fmt.Sprintf("%.02f", fps),
		"-f", "rawvideo",
		"-codec:v", "rawvideo",
		"-pix_fmt", "rgba",
		"-i", "-",
		"-codec:v", encoder,
		"-pix_fmt", "yuv420p",
	}
	args = append(args, qualityArgs(encoder, opts.Quality)...)
	return append(args, path)
}

// qualityArgs maps a quality setting onto the encoder's own knob.
func qualityArgs(encoder string, quality int) []string {
	switch encoder {
	case "h264_videotoolbox":
		// no -q:v on every version, use bitrate
		if quality <= 0 {
			quality = 75
		}
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		if quality <= 0 {
			quality = 23
		}
		return []string{"-cq", fmt.Sprintf("%d", quality)}
	case "libx264":
		if quality <= 0 {
			quality = 23
		}
		return []string{"-crf", fmt.Sprintf("%d", quality), "-preset", "medium"}
	}
	if quality <= 0 {
		return nil
	}
	return []string{"-q:v", fmt.Sprintf("%d", quality)}
}

// WriteFrame appends img as the next frame.
func (w *Writer) WriteFrame(img image.Image) error {
	if w.closed {
		return fmt.Errorf("write to closed writer %s", w.path)
	}
	b := img.Bounds()
	if b.Dx() != w.width || b.Dy() != w.height {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrFrameSize, b.Dx(), b.Dy(), w.width, w.height)
	}
	if err := writeRawRGBA(w.stdin, img, w.pool); err != nil {
		return fmt.Errorf("write raw error on frame %d: %w", w.frames, err)
	}
	w.frames++
	return nil
}

// Frames is the number of frames written so far.
func (w *Writer) Frames() int { return w.frames }

// Close flushes stdin and waits for ffmpeg. A process that does not exit in
// time is killed; either that or a nonzero exit is an error.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.stdin.Close()

	select {
	case err := <-w.done:
		if err != nil {
			return fmt.Errorf("ffmpeg wait error for %s: %w", w.path, err)
		}
	case <-time.After(closeTimeout):
		_ = w.cmd.Process.Kill()
		<-w.done
		return fmt.Errorf("ffmpeg did not exit within %s for %s", closeTimeout, w.path)
	}
	tracer().Infof("[+++] %d frames written to %s", w.frames, w.path)
	return nil
}

// writeRawRGBA writes the pixels of img in packed RGBA order. Images that
// are not a tightly packed *image.RGBA are converted through a buffer from
// pool.
func writeRawRGBA(w io.Writer, img image.Image, pool *system.ImagePool) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if ok && rgba.Stride == bounds.Dx()*4 && rgba.Rect.Min == (image.Point{}) {
		_, err := w.Write(rgba.Pix)
		return err
	}
	rect := image.Rect(0, 0, bounds.Dx(), bounds.Dy())
	buf := pool.Get(rect)
	defer pool.Put(buf)
	draw.Draw(buf, rect, img, bounds.Min, draw.Src)
	_, err := w.Write(buf.Pix)
	return err
}

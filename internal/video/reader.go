package video

import (
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"os/exec"
)

// ShortReadError reports a frame that ended before its full size was read.
type ShortReadError struct {
	Path     string
	Expected int
	Got      int
}

func (e *ShortReadError) Error() string {
	return fmt.Sprintf("Expected %d bytes for frame but got %d from '%s'", e.Expected, e.Got, e.Path)
}

// Frame is one decoded frame and the time window it covers.
type Frame struct {
	Image *image.RGBA
	Start float64
	End   float64
	EOF   bool
}

// DefaultResetThreshold is how far ahead, in seconds, the reader skips
// frames before it restarts ffmpeg with a seek instead.
const DefaultResetThreshold = 5.0

// Reader decodes frames from a video file. It keeps a sequential cursor:
// requests at or after the last frame read forward, anything else restarts
// ffmpeg at the requested time. A Reader is not safe for concurrent use.
type Reader struct {
	path           string
	media          Media
	frameSize      int
	frameTime      float64
	ResetThreshold float64

	cmd    *exec.Cmd
	stdout io.ReadCloser
	last   *Frame
}

// NewReader prepares a reader for path using already probed metadata.
func NewReader(path string, media Media) (*Reader, error) {
	if media.Width <= 0 || media.Height <= 0 || media.FPS <= 0 {
		return nil, fmt.Errorf("no video stream geometry for '%s'", path)
	}
	return &Reader{
		path:           path,
		media:          media,
		frameSize:      media.Width * media.Height * 4,
		frameTime:      1 / media.FPS,
		ResetThreshold: DefaultResetThreshold,
	}, nil
}

// FrameAt returns the frame covering t. Past the end of the stream the
// returned Frame has EOF set. The image is owned by the reader and is only
// valid until the next call.
func (r *Reader) FrameAt(t float64) (*Frame, error) {
	if r.last == nil || r.last.Start > t || r.last.End+r.ResetThreshold < t {
		if err := r.start(t); err != nil {
			return nil, err
		}
	}
	for !r.last.EOF && r.last.End <= t {
		if err := r.next(math.NaN()); err != nil {
			return nil, err
		}
	}
	return r.last, nil
}

func (r *Reader) start(t float64) error {
	if err := r.Close(); err != nil {
		tracer().Errorf("[!] closing reader for '%s': %v", r.path, err)
	}
	if _, err := os.Stat(r.path); err != nil {
		return fmt.Errorf("video file does not exist: %w", err)
	}

	cmd := exec.Command(FFmpegPath,
		"-loglevel", "quiet",
		"-ss", fmt.Sprintf("%.5f", t),
		"-i", r.path,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-codec:v", "rawvideo",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w", err)
	}
	tracer().Debugf("[*] ffmpeg reader for '%s' seeking to %.3fs", r.path, t)
	r.cmd = cmd
	r.stdout = stdout
	return r.next(t)
}

// next reads one frame. A non-NaN at places the frame at the grid slot
// containing at, otherwise it follows the previous frame.
func (r *Reader) next(at float64) error {
	f := &Frame{}
	switch {
	case !math.IsNaN(at):
		n := math.Floor(at / r.frameTime)
		f.Start = n * r.frameTime
	case r.last != nil:
		f.Start = r.last.End
	default:
		return errors.New("unable to place frame in time")
	}
	f.End = f.Start + r.frameTime

	var buf []byte
	if r.last != nil && r.last.Image != nil {
		buf = r.last.Image.Pix
	} else {
		buf = make([]byte, r.frameSize)
	}
	n, err := io.ReadFull(r.stdout, buf)
	switch {
	case n == 0 && (err == io.EOF || err == io.ErrUnexpectedEOF):
		f.EOF = true
		r.last = f
		return nil
	case err == io.ErrUnexpectedEOF:
		return &ShortReadError{Path: r.path, Expected: r.frameSize, Got: n}
	case err != nil:
		return fmt.Errorf("reading frame from '%s': %w", r.path, err)
	}

	f.Image = &image.RGBA{
		Pix:    buf,
		Stride: r.media.Width * 4,
		Rect:   image.Rect(0, 0, r.media.Width, r.media.Height),
	}
	r.last = f
	return nil
}

// Close stops ffmpeg. The reader can be used again afterwards.
func (r *Reader) Close() error {
	r.last = nil
	if r.cmd == nil {
		return nil
	}
	r.stdout.Close()
	_ = r.cmd.Process.Kill()
	err := r.cmd.Wait()
	r.cmd, r.stdout = nil, nil

	var exit *exec.ExitError
	if errors.As(err, &exit) {
		// killed on purpose
		return nil
	}
	return err
}

package source

import (
	"fmt"
	"image"
	"image/color"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/ivlev/kinema/internal/renderer"
)

// QRCode renders Content as a square QR symbol of Size pixels.
type QRCode struct {
	Content    string
	Size       int
	Foreground color.NRGBA
	Background color.NRGBA
	// Recovery is the error correction level, 0 (low) to 3 (highest).
	Recovery int
	NoBorder bool
	cache    still
}

func NewQRCode(content string, size int) *QRCode {
	return &QRCode{
		Content:    content,
		Size:       size,
		Foreground: color.NRGBA{A: 255},
		Background: color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		Recovery:   int(qrcode.Medium),
	}
}

func (q *QRCode) Info() (Info, error) {
	return Info{Width: q.Size, Height: q.Size}, nil
}

func (q *QRCode) Frame(float64) (*image.RGBA, error) {
	return q.cache.frame(func() (*image.RGBA, error) {
		if q.Size <= 0 {
			return nil, fmt.Errorf("qr code size %d", q.Size)
		}
		level := qrcode.RecoveryLevel(q.Recovery)
		if level < qrcode.Low || level > qrcode.Highest {
			return nil, fmt.Errorf("qr code recovery level %d", q.Recovery)
		}
		code, err := qrcode.New(q.Content, level)
		if err != nil {
			return nil, fmt.Errorf("encoding qr code: %w", err)
		}
		code.ForegroundColor = q.Foreground
		code.BackgroundColor = q.Background
		code.DisableBorder = q.NoBorder
		return renderer.Clone(code.Image(q.Size)), nil
	})
}

func (q *QRCode) Close() error {
	q.cache.drop()
	return nil
}

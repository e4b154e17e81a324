package document

import (
	"fmt"
	"image/color"

	"github.com/ivlev/kinema/internal/expr"
	"github.com/ivlev/kinema/internal/source"
	"github.com/ivlev/kinema/internal/variable"
)

// Resource subtypes.
const (
	ResourceColor    = "color"
	ResourceGradient = "gradient"
	ResourceImage    = "image"
	ResourcePDF      = "pdf"
	ResourceQRCode   = "qrcode"
	ResourceVideo    = "video"
)

func encodeResource(r source.Resource) (string, map[string]any, error) {
	switch s := r.(type) {
	case *source.Color:
		return ResourceColor, map[string]any{
			"width":  s.Width,
			"height": s.Height,
			"color":  variable.FormatColor(s.Color),
		}, nil
	case *source.Gradient:
		return ResourceGradient, map[string]any{
			"width":  s.Width,
			"height": s.Height,
			"from":   variable.FormatColor(s.From),
			"to":     variable.FormatColor(s.To),
			"x0":     s.X0, "y0": s.Y0,
			"x1": s.X1, "y1": s.Y1,
		}, nil
	case *source.Image:
		return ResourceImage, map[string]any{"path": s.Path}, nil
	case *source.PDFPage:
		return ResourcePDF, map[string]any{"path": s.Path, "page": s.Page, "dpi": s.DPI}, nil
	case *source.QRCode:
		return ResourceQRCode, map[string]any{
			"content":    s.Content,
			"size":       s.Size,
			"foreground": variable.FormatColor(s.Foreground),
			"background": variable.FormatColor(s.Background),
			"recovery":   s.Recovery,
			"no_border":  s.NoBorder,
		}, nil
	case *source.Video:
		attrs := map[string]any{"path": s.Path}
		if s.CacheSize > 0 {
			attrs["cache_size"] = s.CacheSize
		}
		return ResourceVideo, attrs, nil
	case nil:
		return "", nil, fmt.Errorf("clip without resource")
	}
	return "", nil, fmt.Errorf("%w: resource %T", ErrUnknownType, r)
}

func decodeResource(subtype string, attrs map[string]any) (source.Resource, error) {
	a := attrReader{attrs: attrs}
	var r source.Resource
	switch subtype {
	case ResourceColor:
		c := source.NewColor()
		c.Width = a.int("width", c.Width)
		c.Height = a.int("height", c.Height)
		c.Color = a.color("color", c.Color)
		r = c
	case ResourceGradient:
		g := source.NewGradient(a.int("width", 100), a.int("height", 100),
			a.color("from", color.NRGBA{A: 255}), a.color("to", color.NRGBA{R: 255, G: 255, B: 255, A: 255}))
		g.X0, g.Y0 = a.float("x0", g.X0), a.float("y0", g.Y0)
		g.X1, g.Y1 = a.float("x1", g.X1), a.float("y1", g.Y1)
		r = g
	case ResourceImage:
		r = source.NewImage(a.string("path"))
	case ResourcePDF:
		p := source.NewPDFPage(a.string("path"), a.int("page", 0))
		p.DPI = a.int("dpi", p.DPI)
		r = p
	case ResourceQRCode:
		q := source.NewQRCode(a.string("content"), a.int("size", 256))
		q.Foreground = a.color("foreground", q.Foreground)
		q.Background = a.color("background", q.Background)
		q.Recovery = a.int("recovery", q.Recovery)
		q.NoBorder = a.bool("no_border")
		r = q
	case ResourceVideo:
		v := source.NewVideo(a.string("path"))
		v.CacheSize = a.int("cache_size", 0)
		r = v
	default:
		return nil, fmt.Errorf("%w: resource %q", ErrUnknownType, subtype)
	}
	if a.err != nil {
		return nil, fmt.Errorf("resource %s: %w", subtype, a.err)
	}
	return r, nil
}

// attrReader reads typed attributes, keeping the first error.
type attrReader struct {
	attrs map[string]any
	err   error
}

func (a *attrReader) fail(key string, v any, want string) {
	if a.err == nil {
		a.err = fmt.Errorf("attribute %s: %v is not %s", key, v, want)
	}
}

func (a *attrReader) float(key string, def float64) float64 {
	v, ok := a.attrs[key]
	if !ok || v == nil {
		return def
	}
	f, ok := expr.ToFloat(v)
	if !ok {
		a.fail(key, v, "a number")
		return def
	}
	return f
}

func (a *attrReader) int(key string, def int) int {
	return int(a.float(key, float64(def)))
}

func (a *attrReader) string(key string) string {
	v, ok := a.attrs[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		a.fail(key, v, "a string")
	}
	return s
}

func (a *attrReader) bool(key string) bool {
	v, ok := a.attrs[key]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		a.fail(key, v, "a bool")
	}
	return b
}

func (a *attrReader) color(key string, def color.NRGBA) color.NRGBA {
	v, ok := a.attrs[key]
	if !ok || v == nil {
		return def
	}
	c, err := variable.Type{Kind: variable.Color}.Coerce(v)
	if err != nil || c == nil {
		a.fail(key, v, "a colour")
		return def
	}
	return c.(color.NRGBA)
}

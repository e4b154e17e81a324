package effects

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/kinema/internal/expr"
	"github.com/ivlev/kinema/internal/renderer"
	"github.com/ivlev/kinema/internal/variable"
)

// Finish modes of Draw.
const (
	// Merge pastes the drawing over the clip.
	Merge = iota
	// MergeAlpha uses the drawing's alpha as a mask on the clip.
	MergeAlpha
	// Return replaces the clip with the drawing.
	Return
	// Direct draws straight onto the clip.
	Direct
)

var DrawFinish = variable.EnumOf("MERGE", "MERGE_ALPHA", "RETURN", "DIRECT")

// Draw runs a list of drawing instructions on a canvas the size of the clip
// and finishes it into the record.
type Draw struct {
	variable.Holder
	Finish     *variable.Variable
	Background *variable.Variable

	Instructions []Instruction
}

func NewDraw(instructions ...Instruction) *Draw {
	d := &Draw{Instructions: instructions}
	d.Finish = d.Declare("finish", DrawFinish, Merge)
	d.Background = d.Declare("background", variable.Type{Kind: variable.Color}, nil)
	return d
}

func (d *Draw) Add(instructions ...Instruction) *Draw {
	d.Instructions = append(d.Instructions, instructions...)
	return d
}

func (d *Draw) Kind() string { return "draw" }

func (d *Draw) Apply(ctx renderer.Context, rec *renderer.Record) error {
	if rec.Image == nil {
		return nil
	}
	finish, err := intOr(ctx, d.Finish, Merge)
	if err != nil {
		return err
	}
	bg, hasBG, err := d.Background.Color(ctx)
	if err != nil {
		return err
	}

	var canvas *image.RGBA
	if finish == Direct {
		canvas = rec.Image
	} else {
		canvas = image.NewRGBA(image.Rect(0, 0, rec.Image.Bounds().Dx(), rec.Image.Bounds().Dy()))
	}
	if hasBG {
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(bg), image.Point{}, draw.Over)
	}

	p := newPen(canvas)
	for i, in := range d.Instructions {
		if err := in.draw(ctx, p); err != nil {
			tracer().Debugf("draw: instruction %d of %d failed", i+1, len(d.Instructions))
			p.discard()
			return fmt.Errorf("draw instruction %d (%s): %w", i, in.Kind(), err)
		}
	}
	out, err := p.flush()
	if err != nil {
		return err
	}

	switch finish {
	case Merge:
		renderer.Paste(rec.Image, out, 0, 0)
	case MergeAlpha:
		renderer.MergeAlphaMask(rec.Image, alphaOf(out), renderer.AlphaMin)
	case Return, Direct:
		rec.Image = out
	default:
		return fmt.Errorf("unknown draw finish %d", finish)
	}
	return nil
}

// alphaOf extracts the alpha channel of img.
func alphaOf(img *image.RGBA) *image.Alpha {
	b := img.Bounds()
	a := image.NewAlpha(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			a.Pix[a.PixOffset(x, y)] = img.Pix[img.PixOffset(x, y)+3]
		}
	}
	return a
}

// pen is the drawing state shared by the instructions of one Draw. Vector
// shapes go through a lazily created gg context, text goes straight onto
// the raster canvas, so switching between them flushes the context.
type pen struct {
	canvas   *image.RGBA
	dc       *gg.Context
	color    *color.NRGBA
	fill     *color.NRGBA
	width    float64
	fontSize float64 // 0 until a Config sets it
}

func newPen(canvas *image.RGBA) *pen {
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	return &pen{canvas: canvas, color: &white, width: 1}
}

func (p *pen) context() *gg.Context {
	if p.dc == nil {
		p.dc = gg.NewContextForImage(p.canvas)
	}
	return p.dc
}

// flush copies pending vector drawing into the canvas and returns it.
func (p *pen) flush() (*image.RGBA, error) {
	if p.dc == nil {
		return p.canvas, nil
	}
	out := renderer.Clone(p.dc.Image())
	err := p.dc.Close()
	p.dc = nil
	// DIRECT draws into the record's own image, keep writing through it
	draw.Draw(p.canvas, p.canvas.Bounds(), out, image.Point{}, draw.Src)
	return p.canvas, err
}

func (p *pen) discard() {
	if p.dc != nil {
		_ = p.dc.Close()
		p.dc = nil
	}
}

// paint fills and then strokes the current path of the gg context.
func (p *pen) paint() error {
	dc := p.context()
	if p.fill != nil {
		dc.SetColor(*p.fill)
		if err := dc.FillPreserve(); err != nil {
			return err
		}
	}
	if p.color == nil {
		dc.ClearPath()
		return nil
	}
	dc.SetColor(*p.color)
	dc.SetLineWidth(max(p.width, 1))
	return dc.Stroke()
}

// Instruction is one step of a Draw.
type Instruction interface {
	Kind() string
	Variables() []*variable.Variable
	draw(ctx renderer.Context, p *pen) error
}

// InstructionKinds lists every instruction kind NewInstruction understands.
var InstructionKinds = []string{"config", "rectangle", "ellipse", "line", "text"}

func NewInstruction(kind string) (Instruction, error) {
	switch kind {
	case "config":
		return NewConfig(), nil
	case "rectangle":
		return NewRectangle(), nil
	case "ellipse":
		return NewEllipse(), nil
	case "line":
		return NewLine(), nil
	case "text":
		return NewText(), nil
	}
	return nil, fmt.Errorf("unknown draw instruction %q", kind)
}

// Config changes the pen for the instructions after it. Only variables that
// are set take effect, and a colour set to "none" switches that paint off.
type Config struct {
	variable.Holder
	Color    *variable.Variable
	Fill     *variable.Variable
	PenWidth *variable.Variable
	FontSize *variable.Variable
}

func NewConfig() *Config {
	c := &Config{}
	c.Color = c.Declare("color", variable.Type{Kind: variable.Color}, nil)
	c.Fill = c.Declare("fill", variable.Type{Kind: variable.Color}, nil)
	c.PenWidth = c.Declare("pen_width", variable.Type{Kind: variable.Int}, nil)
	c.FontSize = c.Declare("font_size", variable.Type{Kind: variable.Float}, nil)
	return c
}

func (c *Config) Kind() string { return "config" }

func (c *Config) draw(ctx renderer.Context, p *pen) error {
	for _, target := range []struct {
		v   *variable.Variable
		dst **color.NRGBA
	}{{c.Color, &p.color}, {c.Fill, &p.fill}} {
		if !target.v.IsSet() {
			continue
		}
		col, ok, err := target.v.Color(ctx)
		if err != nil {
			return err
		}
		if ok {
			*target.dst = &col
		} else {
			*target.dst = nil
		}
	}
	if c.PenWidth.IsSet() {
		w, ok, err := c.PenWidth.Int(ctx)
		if err != nil {
			return err
		}
		if ok {
			p.width = float64(w)
		}
	}
	if c.FontSize.IsSet() {
		s, ok, err := c.FontSize.Float(ctx)
		if err != nil {
			return err
		}
		if ok {
			p.fontSize = s
		}
	}
	return nil
}

// box reads x, y, width and height, with the size defaulting to the whole
// canvas. With center set, x and y name the middle of the box.
func box(ctx renderer.Context, p *pen, x, y, w, h, center *variable.Variable) (bx, by, bw, bh float64, err error) {
	cb := p.canvas.Bounds()
	if bx, err = floatOr(ctx, x, 0); err != nil {
		return
	}
	if by, err = floatOr(ctx, y, 0); err != nil {
		return
	}
	if bw, err = floatOr(ctx, w, float64(cb.Dx())); err != nil {
		return
	}
	if bh, err = floatOr(ctx, h, float64(cb.Dy())); err != nil {
		return
	}
	c, err := center.Bool(ctx)
	if err != nil {
		return
	}
	if c {
		bx -= bw / 2
		by -= bh / 2
	}
	return
}

// Rectangle draws an axis-aligned box covering width by height pixels.
type Rectangle struct {
	variable.Holder
	X, Y          *variable.Variable
	Width, Height *variable.Variable
	Center        *variable.Variable
}

func NewRectangle() *Rectangle {
	r := &Rectangle{}
	r.X = r.Declare("x", variable.Type{Kind: variable.Float}, 0)
	r.Y = r.Declare("y", variable.Type{Kind: variable.Float}, 0)
	r.Width = r.Declare("width", variable.Type{Kind: variable.Float}, nil)
	r.Height = r.Declare("height", variable.Type{Kind: variable.Float}, nil)
	r.Center = r.Declare("center", variable.Type{Kind: variable.Bool}, false)
	return r
}

func (r *Rectangle) Kind() string { return "rectangle" }

func (r *Rectangle) draw(ctx renderer.Context, p *pen) error {
	x, y, w, h, err := box(ctx, p, r.X, r.Y, r.Width, r.Height, r.Center)
	if err != nil {
		return err
	}
	p.context().DrawRectangle(x, y, w, h)
	return p.paint()
}

// Ellipse draws an ellipse inscribed in its box. Radius, when set, gives a
// circle and overrides width and height.
type Ellipse struct {
	variable.Holder
	X, Y          *variable.Variable
	Width, Height *variable.Variable
	Radius        *variable.Variable
	Center        *variable.Variable
}

func NewEllipse() *Ellipse {
	e := &Ellipse{}
	e.X = e.Declare("x", variable.Type{Kind: variable.Float}, 0)
	e.Y = e.Declare("y", variable.Type{Kind: variable.Float}, 0)
	e.Width = e.Declare("width", variable.Type{Kind: variable.Float}, nil)
	e.Height = e.Declare("height", variable.Type{Kind: variable.Float}, nil)
	e.Radius = e.Declare("radius", variable.Type{Kind: variable.Float}, nil)
	e.Center = e.Declare("center", variable.Type{Kind: variable.Bool}, false)
	return e
}

func (e *Ellipse) Kind() string { return "ellipse" }

func (e *Ellipse) draw(ctx renderer.Context, p *pen) error {
	x, y, w, h, err := box(ctx, p, e.X, e.Y, e.Width, e.Height, e.Center)
	if err != nil {
		return err
	}
	if r, ok, err := e.Radius.Float(ctx); err != nil {
		return err
	} else if ok {
		// keep the same anchor as the box
		cx, cy := x+w/2, y+h/2
		c, _ := e.Center.Bool(ctx)
		if !c {
			cx, cy = x+r, y+r
		}
		p.context().DrawEllipse(cx, cy, r, r)
		return p.paint()
	}
	p.context().DrawEllipse(x+w/2, y+h/2, w/2, h/2)
	return p.paint()
}

// Line draws a polyline through Path, a list of [x, y] pairs.
type Line struct {
	variable.Holder
	Path  *variable.Variable
	Close *variable.Variable
}

func NewLine() *Line {
	l := &Line{}
	l.Path = l.Declare("path", variable.Type{Kind: variable.Any}, nil)
	l.Close = l.Declare("close", variable.Type{Kind: variable.Bool}, false)
	return l
}

func (l *Line) Kind() string { return "line" }

func (l *Line) draw(ctx renderer.Context, p *pen) error {
	raw, err := l.Path.Get(ctx)
	if err != nil {
		return err
	}
	pts, err := points(raw)
	if err != nil {
		return err
	}
	if len(pts) < 2 {
		return nil
	}
	closed, err := l.Close.Bool(ctx)
	if err != nil {
		return err
	}
	dc := p.context()
	dc.MoveTo(pts[0][0], pts[0][1])
	for _, pt := range pts[1:] {
		dc.LineTo(pt[0], pt[1])
	}
	if closed {
		dc.ClosePath()
	}
	return p.paint()
}

// points reads the path shapes the variable may hold after a YAML load or
// a direct Set.
func points(raw any) ([][2]float64, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case [][2]float64:
		return v, nil
	case [][]float64:
		out := make([][2]float64, len(v))
		for i, pt := range v {
			if len(pt) != 2 {
				return nil, fmt.Errorf("path point %d has %d coordinates", i, len(pt))
			}
			out[i] = [2]float64{pt[0], pt[1]}
		}
		return out, nil
	case []any:
		out := make([][2]float64, len(v))
		for i, item := range v {
			pt, ok := item.([]any)
			if !ok || len(pt) != 2 {
				return nil, fmt.Errorf("path point %d is not a pair: %v", i, item)
			}
			x, okx := expr.ToFloat(pt[0])
			y, oky := expr.ToFloat(pt[1])
			if !okx || !oky {
				return nil, fmt.Errorf("path point %d is not numeric: %v", i, item)
			}
			out[i] = [2]float64{x, y}
		}
		return out, nil
	}
	return nil, fmt.Errorf("path must be a list of points, got %T", raw)
}

// Text writes text in the pen colour. Lines break on newlines. Width wraps
// words onto further lines when a font size is known, from Size or the
// pen, and otherwise scales the font so the widest line fits. Anchor places
// the block relative to x, y: a horizontal l, m or r followed by a vertical
// a, t, m, s, b or d. The default "la" puts the top-left corner at x, y.
type Text struct {
	variable.Holder
	Text   *variable.Variable
	X, Y   *variable.Variable
	Size   *variable.Variable
	Width  *variable.Variable
	Anchor *variable.Variable
}

func NewText() *Text {
	t := &Text{}
	t.Text = t.Declare("text", variable.Type{Kind: variable.String}, "no text")
	t.X = t.Declare("x", variable.Type{Kind: variable.Int}, 0)
	t.Y = t.Declare("y", variable.Type{Kind: variable.Int}, 0)
	t.Size = t.Declare("size", variable.Type{Kind: variable.Float}, nil)
	t.Width = t.Declare("width", variable.Type{Kind: variable.Int}, nil)
	t.Anchor = t.Declare("anchor", variable.Type{Kind: variable.String}, nil)
	return t
}

func (t *Text) Kind() string { return "text" }

var textFace = basicfont.Face7x13

func (t *Text) draw(ctx renderer.Context, p *pen) error {
	s, ok, err := t.Text.Text(ctx)
	if err != nil || !ok || s == "" || p.color == nil {
		return err
	}
	x, err := intOr(ctx, t.X, 0)
	if err != nil {
		return err
	}
	y, err := intOr(ctx, t.Y, 0)
	if err != nil {
		return err
	}
	size, err := floatOr(ctx, t.Size, p.fontSize)
	if err != nil {
		return err
	}
	width, err := intOr(ctx, t.Width, 0)
	if err != nil {
		return err
	}
	anchor, _, err := t.Anchor.Text(ctx)
	if err != nil {
		return err
	}
	h, v, err := parseAnchor(anchor)
	if err != nil {
		return err
	}

	lines := strings.Split(s, "\n")
	switch {
	case width > 0 && size > 0:
		lines = wrapLines(lines, float64(width)*float64(textFace.Height)/size)
	case width > 0:
		if widest := widestLine(lines); widest > 0 {
			size = float64(width) * float64(textFace.Height) / float64(widest)
		}
	}
	if size <= 0 {
		size = float64(textFace.Height)
	}
	if _, err := p.flush(); err != nil {
		return err
	}

	glyphs := typeset(lines, *p.color)
	scale := size / float64(textFace.Height)
	sw := max(1, int(float64(glyphs.Bounds().Dx())*scale+0.5))
	sh := max(1, int(float64(glyphs.Bounds().Dy())*scale+0.5))
	switch h {
	case 'm':
		x -= sw / 2
	case 'r':
		x -= sw
	}
	switch v {
	case 'm':
		y -= sh / 2
	case 's':
		y -= int(float64(textFace.Ascent)*scale + 0.5)
	case 'b', 'd':
		y -= sh
	}
	dst := image.Rect(x, y, x+sw, y+sh)
	if sw == glyphs.Bounds().Dx() && sh == glyphs.Bounds().Dy() {
		draw.Draw(p.canvas, dst, glyphs, image.Point{}, draw.Over)
		return nil
	}
	draw.ApproxBiLinear.Scale(p.canvas, dst, glyphs, glyphs.Bounds(), draw.Over, nil)
	return nil
}

// parseAnchor splits a two letter anchor. An empty anchor is "la".
func parseAnchor(a string) (h, v byte, err error) {
	if a == "" {
		return 'l', 'a', nil
	}
	if len(a) != 2 || !strings.ContainsRune("lmrs", rune(a[0])) || !strings.ContainsRune("atmsbd", rune(a[1])) {
		return 0, 0, fmt.Errorf("invalid text anchor %q", a)
	}
	return a[0], a[1], nil
}

// typeset draws lines at the face's native size, left aligned.
func typeset(lines []string, c color.NRGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, max(widestLine(lines), 1), len(lines)*textFace.Height))
	d := font.Drawer{Dst: img, Src: image.NewUniform(c), Face: textFace}
	for i, line := range lines {
		d.Dot = fixed.P(0, i*textFace.Height+textFace.Ascent)
		d.DrawString(line)
	}
	return img
}

func widestLine(lines []string) int {
	w := 0
	for _, line := range lines {
		w = max(w, font.MeasureString(textFace, line).Ceil())
	}
	return w
}

// wrapLines breaks each line at spaces so it fits limit, measured at the
// face's native size. A word wider than limit keeps a line of its own.
func wrapLines(lines []string, limit float64) []string {
	var out []string
	for _, line := range lines {
		words := strings.Fields(line)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		cur := words[0]
		for _, w := range words[1:] {
			next := cur + " " + w
			if float64(font.MeasureString(textFace, next).Ceil()) > limit {
				out = append(out, cur)
				cur = w
				continue
			}
			cur = next
		}
		out = append(out, cur)
	}
	return out
}

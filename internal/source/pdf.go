package source

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"

	"github.com/ivlev/kinema/internal/renderer"
)

// DefaultDPI is the rasterization density used when a page names none.
const DefaultDPI = 150

// PDFPage is one page of a PDF document rasterized at DPI.
type PDFPage struct {
	Path  string
	Page  int
	DPI   int
	cache still
}

func NewPDFPage(path string, page int) *PDFPage {
	return &PDFPage{Path: path, Page: page, DPI: DefaultDPI}
}

func (p *PDFPage) dpi() float64 {
	if p.DPI <= 0 {
		return DefaultDPI
	}
	return float64(p.DPI)
}

// Info reports the page size in pixels at the page's DPI.
func (p *PDFPage) Info() (Info, error) {
	if b, ok := p.cache.info(); ok {
		return Info{Width: b.Dx(), Height: b.Dy()}, nil
	}
	doc, err := fitz.New(p.Path)
	if err != nil {
		return Info{}, err
	}
	defer doc.Close()

	rect, err := doc.Bound(p.Page)
	if err != nil {
		return Info{}, fmt.Errorf("page %d of %s: %w", p.Page, p.Path, err)
	}
	// bounds are in points
	scale := p.dpi() / 72
	return Info{
		Width:  int(float64(rect.Dx()) * scale),
		Height: int(float64(rect.Dy()) * scale),
	}, nil
}

func (p *PDFPage) Frame(float64) (*image.RGBA, error) {
	return p.cache.frame(func() (*image.RGBA, error) {
		// a document handle per render, fitz documents are not safe to share
		doc, err := fitz.New(p.Path)
		if err != nil {
			return nil, err
		}
		defer doc.Close()

		img, err := doc.ImageDPI(p.Page, p.dpi())
		if err != nil {
			return nil, fmt.Errorf("rendering page %d of %s: %w", p.Page, p.Path, err)
		}
		tracer().Debugf("rasterized page %d of %s at %g dpi", p.Page, p.Path, p.dpi())
		return renderer.Clone(img), nil
	})
}

func (p *PDFPage) Close() error {
	p.cache.drop()
	return nil
}

// PageCount opens path and reports how many pages it has.
func PageCount(path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, err
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// Pages returns one resource per page of the PDF at path.
func Pages(path string, dpi int) ([]*PDFPage, error) {
	n, err := PageCount(path)
	if err != nil {
		return nil, err
	}
	pages := make([]*PDFPage, n)
	for i := range pages {
		pages[i] = &PDFPage{Path: path, Page: i, DPI: dpi}
	}
	return pages, nil
}

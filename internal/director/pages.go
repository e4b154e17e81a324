package director

import (
	"fmt"
	"strings"

	"github.com/ivlev/kinema/internal/source"
	"github.com/ivlev/kinema/internal/system"
)

// Pages opens input as slideshow pages: every page of a PDF, or every
// image of a directory in name order.
func Pages(input string, dpi int) ([]source.Resource, error) {
	if strings.HasSuffix(strings.ToLower(input), ".pdf") {
		pdf, err := source.Pages(input, dpi)
		if err != nil {
			return nil, fmt.Errorf("open pdf %s: %w", input, err)
		}
		pages := make([]source.Resource, len(pdf))
		for i, p := range pdf {
			pages[i] = p
		}
		return pages, nil
	}
	files, err := system.ListFiles(input, system.ImageExtensions)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoPages, input)
	}
	pages := make([]source.Resource, len(files))
	for i, f := range files {
		pages[i] = source.NewImage(f)
	}
	return pages, nil
}

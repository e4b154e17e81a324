package analyzer

import "fmt"

// Variants lists the detector names NewDetector accepts.
var Variants = []string{"contrast"}

// NewDetector creates a detector by variant name. The empty name selects
// the contrast detector.
func NewDetector(variant string) (Detector, error) {
	switch variant {
	case "contrast", "":
		return NewContrastDetector(), nil
	}
	return nil, fmt.Errorf("unknown detector variant %q (have %v)", variant, Variants)
}

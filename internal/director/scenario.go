package director

// Slide is the plan for one page before it becomes a clip.
type Slide struct {
	Index int
	Start float64
	// Duration includes the fade overlap with the next slide.
	Duration  float64
	Keyframes []Keyframe
}

// Keyframe is a camera position within a slide, in slide-local time.
type Keyframe struct {
	Time float64
	// Focus names the region, "full_view" or "region_<n>".
	Focus string
	// Rect is in page pixels.
	Rect Rectangle
	Zoom float64
}

type Rectangle struct {
	X, Y, W, H int
}

func (r Rectangle) center() (float64, float64) {
	return float64(r.X) + float64(r.W)/2, float64(r.Y) + float64(r.H)/2
}

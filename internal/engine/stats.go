package engine

import (
	"fmt"
	"time"

	"github.com/ivlev/kinema/internal/system"
)

// Stats summarizes a Write run.
type Stats struct {
	Frames  int
	Workers int
	Wall    time.Duration
	FPS     float64
	// Frame buffers the run allocated and reused from the project pool.
	Allocated, Reused int
}

// Report lays the stats out as table rows with a header, sampling memory at
// the time of the call.
func (s Stats) Report() [][]string {
	rows := [][]string{
		{"Metric", "Value"},
		{"Frames", fmt.Sprintf("%d", s.Frames)},
		{"Workers", fmt.Sprintf("%d", s.Workers)},
		{"Total Time", fmt.Sprintf("%.2fs", s.Wall.Seconds())},
		{"Effective FPS", fmt.Sprintf("%.2f", s.FPS)},
		{"Frame Buffers", fmt.Sprintf("%d allocated, %d reused", s.Allocated, s.Reused)},
	}
	m, err := system.MemoryReport()
	if err != nil {
		tracer().Errorf("stats: %v", err)
		return rows
	}
	return append(rows,
		[]string{"Process RSS", mib(m.ProcessRSS)},
		[]string{"Memory Available", mib(m.Available)},
		[]string{"Memory Used", fmt.Sprintf("%.1f%%", m.UsedPercent)},
	)
}

func mib(b uint64) string {
	return fmt.Sprintf("%.1f MiB", float64(b)/(1<<20))
}

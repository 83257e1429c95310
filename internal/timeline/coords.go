package timeline

import (
	"fmt"
	"math"
)

// Viewport maps between seconds and horizontal pixels. Build one per call
// from the current measurement; do not keep it across width, duration or
// zoom changes.
type Viewport struct {
	Width        float64
	Duration     float64
	Zoom         float64
	ScrollOffset float64
}

func (v Viewport) visibleSpan() float64 {
	return v.Duration / v.Zoom
}

func (v Viewport) degenerate() bool {
	return v.Duration <= 0 || v.Width <= 0 || v.Zoom <= 0
}

// TimeToX returns the pixel position of t. The result is not clamped and may
// lie outside [0, Width].
func (v Viewport) TimeToX(t float64) float64 {
	if v.degenerate() {
		return 0
	}
	return ((t - v.ScrollOffset) / v.visibleSpan()) * v.Width
}

// XToTime returns the time under pixel x, clamped to [0, Duration].
func (v Viewport) XToTime(x float64) float64 {
	if v.degenerate() {
		return 0
	}
	t := v.ScrollOffset + (x/v.Width)*v.visibleSpan()
	return clamp(t, 0, v.Duration)
}

// Visible reports whether x falls within the viewport extended by margin on
// both sides.
func (v Viewport) Visible(x, margin float64) bool {
	return x >= -margin && x <= v.Width+margin
}

// MarkerInterval returns the ruler tick spacing in seconds for a zoom level.
func MarkerInterval(zoom float64) float64 {
	switch {
	case zoom >= 3:
		return 1
	case zoom >= 2:
		return 2
	default:
		return 5
	}
}

// Tick is one ruler mark.
type Tick struct {
	Time  float64 `json:"time"`
	X     float64 `json:"x"`
	Label string  `json:"label"`
}

const tickMargin = 20

// Ticks returns the visible ruler marks.
func (v Viewport) Ticks() []Tick {
	if v.degenerate() {
		return nil
	}
	interval := MarkerInterval(v.Zoom)
	var ticks []Tick
	for t := 0.0; t <= v.Duration; t += interval {
		x := v.TimeToX(t)
		if !v.Visible(x, tickMargin) {
			continue
		}
		ticks = append(ticks, Tick{Time: t, X: x, Label: FormatTime(t)})
	}
	return ticks
}

// FormatTime renders seconds as MM:SS.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "00:00"
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

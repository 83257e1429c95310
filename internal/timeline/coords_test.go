package timeline

import (
	"math"
	"testing"
)

func TestViewport_RoundTrip(t *testing.T) {
	vp := Viewport{Width: 500, Duration: 100, Zoom: 1}
	for tm := 0.0; tm <= 100; tm += 0.37 {
		got := vp.XToTime(vp.TimeToX(tm))
		if math.Abs(got-tm) > 1e-9 {
			t.Fatalf("XToTime(TimeToX(%v)) = %v", tm, got)
		}
	}
}

func TestViewport_TimeToX(t *testing.T) {
	tests := []struct {
		name string
		vp   Viewport
		t    float64
		want float64
	}{
		{"start", Viewport{Width: 500, Duration: 100, Zoom: 1}, 0, 0},
		{"end", Viewport{Width: 500, Duration: 100, Zoom: 1}, 100, 500},
		{"zoomed", Viewport{Width: 500, Duration: 100, Zoom: 2}, 25, 250},
		{"off screen right", Viewport{Width: 500, Duration: 100, Zoom: 2}, 100, 1000},
		{"scrolled left of view", Viewport{Width: 500, Duration: 100, Zoom: 1, ScrollOffset: 10}, 0, -50},
		{"zero duration", Viewport{Width: 500, Duration: 0, Zoom: 1}, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.vp.TimeToX(tt.t); got != tt.want {
				t.Errorf("TimeToX(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestViewport_XToTimeClamps(t *testing.T) {
	vp := Viewport{Width: 500, Duration: 100, Zoom: 1}
	if got := vp.XToTime(-40); got != 0 {
		t.Errorf("XToTime(-40) = %v, want 0", got)
	}
	if got := vp.XToTime(900); got != 100 {
		t.Errorf("XToTime(900) = %v, want 100", got)
	}
	if got := (Viewport{Width: 500, Zoom: 1}).XToTime(250); got != 0 {
		t.Errorf("XToTime with zero duration = %v, want 0", got)
	}
}

func TestMarkerInterval(t *testing.T) {
	tests := []struct {
		zoom float64
		want float64
	}{{0.5, 5}, {1, 5}, {1.5, 5}, {2, 2}, {2.5, 2}, {3, 1}}
	for _, tt := range tests {
		if got := MarkerInterval(tt.zoom); got != tt.want {
			t.Errorf("MarkerInterval(%v) = %v, want %v", tt.zoom, got, tt.want)
		}
	}
}

func TestViewport_Ticks(t *testing.T) {
	vp := Viewport{Width: 600, Duration: 60, Zoom: 2}
	ticks := vp.Ticks()

	// 30s visible at 2s spacing: 0 through 30.
	if len(ticks) != 16 {
		t.Fatalf("len(ticks) = %d, want 16", len(ticks))
	}
	if ticks[1].Label != "00:02" || ticks[1].X != 40 {
		t.Errorf("ticks[1] = %+v", ticks[1])
	}
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00"},
		{59.9, "00:59"},
		{61, "01:01"},
		{3600, "60:00"},
		{math.NaN(), "00:00"},
		{math.Inf(1), "00:00"},
	}
	for _, tt := range tests {
		if got := FormatTime(tt.in); got != tt.want {
			t.Errorf("FormatTime(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

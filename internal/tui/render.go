package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/heimdex/repcut/internal/timeline"
)

// row is one line of styled single-column cells.
type row []string

func newRow(cols int) row {
	r := make(row, cols)
	for i := range r {
		r[i] = " "
	}
	return r
}

func (r row) set(col int, s string) {
	if col >= 0 && col < len(r) {
		r[col] = s
	}
}

func (r row) String() string {
	return strings.Join(r, "")
}

func column(x float64) int {
	return int(x / cellWidth)
}

// renderTimeline draws the handle, segment, playhead and ruler bands.
func renderTimeline(v timeline.View, cols int) string {
	return strings.Join([]string{
		renderHandles(v.Markers, cols).String(),
		renderSegments(v.Spans, cols).String(),
		renderPlayhead(v.PlayheadX, cols).String(),
		renderRuler(v.Ticks, cols),
	}, "\n")
}

func renderHandles(markers []timeline.CutMarker, cols int) row {
	r := newRow(cols)
	for _, m := range markers {
		style := autoCutStyle
		switch {
		case m.Dragging:
			style = draggingCutStyle
		case m.Selected:
			style = selectedCutStyle
		case m.Type == timeline.CutManual:
			style = manualCutStyle
		}
		r.set(column(m.X), style.Render("▼"))
	}
	return r
}

func renderSegments(spans []timeline.SegmentSpan, cols int) row {
	r := newRow(cols)
	for _, s := range spans {
		start := max(column(s.StartX), 0)
		end := min(column(s.EndX), cols)
		if end <= start {
			continue
		}

		style := segmentStyles[s.Index%len(segmentStyles)]
		switch {
		case s.Selected:
			style = selectedSegmentStyle
		case s.Tagged:
			style = taggedSegmentStyle
		}

		label := s.Label
		if label == "" {
			label = strconv.Itoa(s.Index + 1)
		}
		text := []rune(" " + label)
		for col := start; col < end; col++ {
			ch := " "
			if i := col - start; i < len(text) && i < end-start-1 {
				ch = string(text[i])
			}
			r.set(col, style.Render(ch))
		}
	}
	return r
}

func renderPlayhead(x float64, cols int) row {
	r := newRow(cols)
	r.set(column(x), playheadStyle.Render("▲"))
	return r
}

func renderRuler(ticks []timeline.Tick, cols int) string {
	marks := newRow(cols)
	labels := []rune(strings.Repeat(" ", cols))
	next := 0
	for _, t := range ticks {
		col := column(t.X)
		marks.set(col, mutedStyle.Render("┴"))
		if col < next || col+len(t.Label) > cols {
			continue
		}
		copy(labels[col:], []rune(t.Label))
		next = col + len(t.Label) + 1
	}
	return lipgloss.JoinVertical(lipgloss.Left, marks.String(), mutedStyle.Render(string(labels)))
}

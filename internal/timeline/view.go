package timeline

// SegmentSpan is the draw-relevant projection of a segment.
type SegmentSpan struct {
	Index    int     `json:"index"`
	ID       string  `json:"id"`
	StartX   float64 `json:"startX"`
	EndX     float64 `json:"endX"`
	Label    string  `json:"label,omitempty"`
	Tagged   bool    `json:"tagged"`
	Selected bool    `json:"selected"`
}

// CutMarker is the draw-relevant projection of a cut point. While a drag is
// in progress the dragged marker is drawn at its preview time.
type CutMarker struct {
	ID       string  `json:"id"`
	Time     float64 `json:"time"`
	X        float64 `json:"x"`
	Type     CutType `json:"type"`
	Selected bool    `json:"selected"`
	Dragging bool    `json:"dragging"`
}

// View is everything a renderer needs for one frame.
type View struct {
	Width     float64       `json:"width"`
	PlayheadX float64       `json:"playheadX"`
	Spans     []SegmentSpan `json:"segments"`
	Markers   []CutMarker   `json:"cutPoints"`
	Ticks     []Tick        `json:"ticks"`
}

const markerMargin = 10

// SegmentSpans projects segments onto vp.
func SegmentSpans(s State, vp Viewport) []SegmentSpan {
	spans := make([]SegmentSpan, 0, len(s.Segments))
	for i, seg := range s.Segments {
		span := SegmentSpan{
			Index:    i,
			ID:       seg.ID,
			StartX:   vp.TimeToX(seg.Start),
			EndX:     vp.TimeToX(seg.End),
			Tagged:   seg.Tagged(),
			Selected: s.SelectedSegmentIndex != nil && *s.SelectedSegmentIndex == i,
		}
		if seg.Details != nil {
			span.Label = seg.Details.Name
		}
		spans = append(spans, span)
	}
	return spans
}

// CutMarkers projects the visible cut points onto vp.
func CutMarkers(s State, vp Viewport, g Gesture) []CutMarker {
	var markers []CutMarker
	for _, cp := range s.CutPoints {
		m := CutMarker{
			ID:       cp.ID,
			Time:     cp.Time,
			Type:     cp.Type,
			Selected: s.SelectedCutPointID != nil && *s.SelectedCutPointID == cp.ID,
		}
		if g.Kind == GestureDragging && g.CutPointID == cp.ID {
			m.Time = g.PreviewTime
			m.Dragging = true
		}
		m.X = vp.TimeToX(m.Time)
		if !vp.Visible(m.X, markerMargin) {
			continue
		}
		markers = append(markers, m)
	}
	return markers
}

// BuildView assembles a frame for the controller's current viewport.
func (c *Controller) BuildView() View {
	vp := c.Viewport()
	st := c.store.State()
	return View{
		Width:     vp.Width,
		PlayheadX: vp.TimeToX(st.CurrentTime),
		Spans:     SegmentSpans(st, vp),
		Markers:   CutMarkers(st, vp, c.gesture),
		Ticks:     vp.Ticks(),
	}
}

// Package timeline implements the cut-point and segment model behind the
// repcut editor: coordinate mapping, segment derivation with detail
// carry-over, the timeline state store and the drag controller.
//
// Nothing in this package performs I/O or locking. A Store has exactly one
// writer; hosts serialize access themselves.
package timeline

import "slices"

// CutType marks where a cut point came from.
type CutType string

const (
	CutAuto   CutType = "auto"
	CutManual CutType = "manual"
)

const (
	// BoundaryMargin keeps cut points away from 0 and the video end.
	BoundaryMargin = 0.1
	// MinCutSpacing is the minimum distance between an inserted cut point
	// and any existing one.
	MinCutSpacing = 0.5
	// MatchTolerance is the per-edge tolerance for the exact-ish details match.
	MatchTolerance = 1.0
	// MatchOverlapRatio is the share of a segment that must overlap for details
	// to follow it across an edit.
	MatchOverlapRatio = 0.8

	MinZoom     = 0.5
	MaxZoom     = 3.0
	DefaultZoom = 1.0
	ZoomStep    = 0.5

	// HitToleranceRatio is the share of the duration within which a tap
	// selects a cut point.
	HitToleranceRatio = 0.02
)

// CutPoint is a boundary between two segments.
type CutPoint struct {
	ID   string  `json:"id"`
	Time float64 `json:"time"`
	Type CutType `json:"type"`
}

// SegmentDetails is the exercise metadata attached to a segment.
type SegmentDetails struct {
	Name         string   `json:"name"`
	MuscleGroups []string `json:"muscleGroups"`
	Equipment    []string `json:"equipment"`
	RemoveAudio  bool     `json:"removeAudio"`
}

// Clone returns a deep copy, or nil for a nil receiver.
func (d *SegmentDetails) Clone() *SegmentDetails {
	if d == nil {
		return nil
	}
	return &SegmentDetails{
		Name:         d.Name,
		MuscleGroups: cloneStrings(d.MuscleGroups),
		Equipment:    cloneStrings(d.Equipment),
		RemoveAudio:  d.RemoveAudio,
	}
}

// Segment is a derived range between two adjacent cut points (or the video
// boundaries). ID is synthesized at derivation time and inherited across
// edits the same way details are.
type Segment struct {
	ID      string          `json:"id"`
	Start   float64         `json:"start"`
	End     float64         `json:"end"`
	Details *SegmentDetails `json:"details"`
}

// Duration returns End - Start.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Tagged reports whether details are attached.
func (s Segment) Tagged() bool {
	return s.Details != nil
}

// Tags is the autocomplete vocabulary.
type Tags struct {
	MuscleGroups []string `json:"muscleGroups"`
	Equipment    []string `json:"equipment"`
}

// Clone returns a deep copy.
func (t Tags) Clone() Tags {
	return Tags{
		MuscleGroups: append([]string{}, t.MuscleGroups...),
		Equipment:    append([]string{}, t.Equipment...),
	}
}

// State is an immutable snapshot of the timeline aggregate. Slices and
// details are copies; mutating them does not affect the store.
type State struct {
	VideoURL  string     `json:"videoUrl"`
	Duration  float64    `json:"videoDuration"`
	CutPoints []CutPoint `json:"cutPoints"`
	Segments  []Segment  `json:"segments"`

	SelectedSegmentID    string  `json:"selectedSegmentId,omitempty"`
	SelectedSegmentIndex *int    `json:"selectedSegmentIndex"`
	SelectedCutPointID   *string `json:"selectedCutPointId"`

	ZoomLevel   float64 `json:"zoomLevel"`
	CurrentTime float64 `json:"currentTime"`
	Playing     bool    `json:"isPlaying"`
	Tags        Tags    `json:"existingTags"`
}

// SelectedSegment returns the selected segment, if any.
func (s State) SelectedSegment() (Segment, bool) {
	if s.SelectedSegmentIndex == nil {
		return Segment{}, false
	}
	return s.Segments[*s.SelectedSegmentIndex], true
}

// TaggedSegments returns the segments that carry details.
func (s State) TaggedSegments() []Segment {
	var out []Segment
	for _, seg := range s.Segments {
		if seg.Tagged() {
			out = append(out, seg)
		}
	}
	return out
}

// Phase is the coarse state of the cut-point subsystem.
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseLoaded
	PhaseEditing
)

func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseLoaded:
		return "loaded"
	case PhaseEditing:
		return "editing"
	default:
		return "unknown"
	}
}

// PhaseOf derives the phase from a snapshot and the controller's gesture.
func PhaseOf(s State, g Gesture) Phase {
	if s.Duration <= 0 {
		return PhaseEmpty
	}
	if g.Kind != GestureIdle || s.SelectedCutPointID != nil || s.SelectedSegmentIndex != nil {
		return PhaseEditing
	}
	return PhaseLoaded
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return slices.Clone(in)
}

func cloneCuts(in []CutPoint) []CutPoint {
	if in == nil {
		return []CutPoint{}
	}
	return slices.Clone(in)
}

func cloneSegments(in []Segment) []Segment {
	out := make([]Segment, len(in))
	for i, seg := range in {
		out[i] = seg
		out[i].Details = seg.Details.Clone()
	}
	return out
}

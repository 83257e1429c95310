package timeline

import (
	"math"
	"slices"
	"strconv"

	"github.com/google/uuid"
)

// Store owns the timeline aggregate. Every mutation is synchronous, either
// applies fully or not at all, and re-derives segments from cut points.
// A Store is not safe for concurrent use.
type Store struct {
	videoURL  string
	duration  float64
	cutPoints []CutPoint
	segments  []Segment

	selectedSegmentID  string
	selectedCutPointID string

	zoom        float64
	currentTime float64
	playing     bool
	tags        Tags

	newCutID     func() string
	newSegmentID func() string

	subscribers []subscriber
	nextSubID   int
}

type subscriber struct {
	id int
	fn func(State)
}

// Option configures a Store.
type Option func(*Store)

// WithIDSource replaces the generator used for manual cut point and segment
// ID suffixes.
func WithIDSource(next func() string) Option {
	return func(s *Store) {
		s.newCutID = func() string { return "manual_" + next() }
		s.newSegmentID = func() string { return "seg_" + next() }
	}
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		zoom:         DefaultZoom,
		cutPoints:    []CutPoint{},
		segments:     []Segment{},
		tags:         emptyTags(),
		newCutID:     newManualID,
		newSegmentID: newSegmentID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newManualID is time-ordered so manual IDs sort by creation.
func newManualID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return "manual_" + uuid.NewString()
	}
	return "manual_" + id.String()
}

// LoadVideo replaces the aggregate with a freshly loaded video. Suggested
// times become auto cut points numbered in input order; times that are not
// strictly inside the video are dropped without renumbering the rest.
// Details are never carried over from the previous video.
func (s *Store) LoadVideo(url string, duration float64, suggested []float64) Outcome {
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return RejectedNoVideo
	}

	cuts := make([]CutPoint, 0, len(suggested))
	for i, t := range suggested {
		if math.IsNaN(t) || t <= 0 || t >= duration {
			continue
		}
		cuts = append(cuts, CutPoint{ID: "auto_" + strconv.Itoa(i), Time: t, Type: CutAuto})
	}

	s.videoURL = url
	s.duration = duration
	s.cutPoints = sortedCuts(cuts)
	s.segments = derive(s.cutPoints, duration, nil, s.newSegmentID)
	s.selectedSegmentID = ""
	s.selectedCutPointID = ""
	s.currentTime = 0
	s.playing = false
	return s.applied()
}

// AddCutPoint inserts a manual cut point at t and returns its ID.
func (s *Store) AddCutPoint(t float64) (Outcome, string) {
	if s.duration <= 0 {
		return RejectedNoVideo, ""
	}
	if math.IsNaN(t) || t <= BoundaryMargin || t >= s.duration-BoundaryMargin {
		return RejectedAtBoundary, ""
	}
	for _, cp := range s.cutPoints {
		if math.Abs(cp.Time-t) < MinCutSpacing {
			return RejectedTooCloseToNeighbor, ""
		}
	}

	id := s.newCutID()
	s.setCutPoints(append(cloneCuts(s.cutPoints), CutPoint{ID: id, Time: t, Type: CutManual}))
	return s.applied(), id
}

// UpdateCutPoint moves a cut point, clamping to the boundary margin. The
// spacing rule is not checked, so a cut point may cross its neighbors.
func (s *Store) UpdateCutPoint(id string, t float64) Outcome {
	idx := s.cutIndex(id)
	if idx < 0 {
		return NotFound
	}
	if math.IsNaN(t) {
		t = s.cutPoints[idx].Time
	}

	cuts := cloneCuts(s.cutPoints)
	cuts[idx].Time = clamp(t, BoundaryMargin, s.duration-BoundaryMargin)
	s.setCutPoints(cuts)
	return s.applied()
}

// DeleteCutPoint removes a cut point and clears the cut selection if it
// pointed at it.
func (s *Store) DeleteCutPoint(id string) Outcome {
	idx := s.cutIndex(id)
	if idx < 0 {
		return NotFound
	}
	if s.selectedCutPointID == id {
		s.selectedCutPointID = ""
	}
	s.setCutPoints(slices.Delete(cloneCuts(s.cutPoints), idx, idx+1))
	return s.applied()
}

// ClearAllCutPoints collapses the timeline to one segment and discards all
// details.
func (s *Store) ClearAllCutPoints() Outcome {
	if s.duration <= 0 {
		return RejectedNoVideo
	}
	s.cutPoints = []CutPoint{}
	s.segments = derive(nil, s.duration, nil, s.newSegmentID)
	s.selectedCutPointID = ""
	s.pruneSelection()
	return s.applied()
}

// SelectCutPoint selects a cut point by ID. A nil id clears the selection.
func (s *Store) SelectCutPoint(id *string) Outcome {
	if id == nil {
		s.selectedCutPointID = ""
		return s.applied()
	}
	if s.cutIndex(*id) < 0 {
		return NotFound
	}
	s.selectedCutPointID = *id
	return s.applied()
}

// SelectSegment selects a segment by position. The selection follows the
// segment's identity across later edits. A nil index clears it.
func (s *Store) SelectSegment(index *int) Outcome {
	if index == nil {
		s.selectedSegmentID = ""
		return s.applied()
	}
	if *index < 0 || *index >= len(s.segments) {
		return NotFound
	}
	s.selectedSegmentID = s.segments[*index].ID
	return s.applied()
}

// UpdateSegmentDetails replaces the details of one segment. Nil clears them.
func (s *Store) UpdateSegmentDetails(index int, details *SegmentDetails) Outcome {
	if index < 0 || index >= len(s.segments) {
		return NotFound
	}
	segments := cloneSegments(s.segments)
	segments[index].Details = details.Clone()
	s.segments = segments
	return s.applied()
}

// SetCurrentTime moves the playback cursor. The value is not validated.
func (s *Store) SetCurrentTime(t float64) Outcome {
	s.currentTime = t
	return s.applied()
}

// SetPlaying records the player state.
func (s *Store) SetPlaying(playing bool) Outcome {
	s.playing = playing
	return s.applied()
}

// SetZoomLevel sets the zoom, clamped to [MinZoom, MaxZoom].
func (s *Store) SetZoomLevel(level float64) Outcome {
	if math.IsNaN(level) {
		level = DefaultZoom
	}
	s.zoom = clamp(level, MinZoom, MaxZoom)
	return s.applied()
}

func (s *Store) ZoomIn() Outcome  { return s.SetZoomLevel(s.zoom + ZoomStep) }
func (s *Store) ZoomOut() Outcome { return s.SetZoomLevel(s.zoom - ZoomStep) }

// LoadExistingTags replaces the vocabulary.
func (s *Store) LoadExistingTags(tags Tags) Outcome {
	s.tags = emptyTags()
	s.mergeTags(tags)
	return s.applied()
}

// AddTags merges ad-hoc tags into the vocabulary. Entries are never removed.
func (s *Store) AddTags(tags Tags) Outcome {
	s.mergeTags(tags)
	return s.applied()
}

// Reset returns the store to its initial empty state. Subscribers stay.
func (s *Store) Reset() Outcome {
	s.videoURL = ""
	s.duration = 0
	s.cutPoints = []CutPoint{}
	s.segments = []Segment{}
	s.selectedSegmentID = ""
	s.selectedCutPointID = ""
	s.zoom = DefaultZoom
	s.currentTime = 0
	s.playing = false
	s.tags = emptyTags()
	return s.applied()
}

// Restore rebuilds the aggregate from a persisted snapshot. Cut points are
// trusted as-is apart from sorting; segments are re-derived with the
// snapshot's segments as the previous list so details and IDs survive.
func (s *Store) Restore(snap State) Outcome {
	if snap.Duration <= 0 {
		return s.Reset()
	}
	s.videoURL = snap.VideoURL
	s.duration = snap.Duration
	s.cutPoints = sortedCuts(snap.CutPoints)
	s.segments = derive(s.cutPoints, s.duration, snap.Segments, s.newSegmentID)
	s.selectedSegmentID = snap.SelectedSegmentID
	s.selectedCutPointID = ""
	if snap.SelectedCutPointID != nil && s.cutIndex(*snap.SelectedCutPointID) >= 0 {
		s.selectedCutPointID = *snap.SelectedCutPointID
	}
	s.pruneSelection()
	s.zoom = clamp(snap.ZoomLevel, MinZoom, MaxZoom)
	s.currentTime = snap.CurrentTime
	s.playing = false
	s.tags = emptyTags()
	s.mergeTags(snap.Tags)
	return s.applied()
}

// State returns a snapshot of the aggregate.
func (s *Store) State() State {
	st := State{
		VideoURL:          s.videoURL,
		Duration:          s.duration,
		CutPoints:         cloneCuts(s.cutPoints),
		Segments:          cloneSegments(s.segments),
		SelectedSegmentID: s.selectedSegmentID,
		ZoomLevel:         s.zoom,
		CurrentTime:       s.currentTime,
		Playing:           s.playing,
		Tags:              s.tags.Clone(),
	}
	if idx := s.segmentIndexByID(s.selectedSegmentID); idx >= 0 {
		st.SelectedSegmentIndex = &idx
	}
	if s.selectedCutPointID != "" {
		id := s.selectedCutPointID
		st.SelectedCutPointID = &id
	}
	return st
}

// Phase reports the store's phase without regard to any gesture.
func (s *Store) Phase() Phase {
	return PhaseOf(s.State(), Gesture{})
}

// Duration returns the loaded video's duration, or 0.
func (s *Store) Duration() float64 { return s.duration }

// ZoomLevel returns the current zoom.
func (s *Store) ZoomLevel() float64 { return s.zoom }

// CutPoint returns the cut point with the given ID.
func (s *Store) CutPoint(id string) (CutPoint, bool) {
	idx := s.cutIndex(id)
	if idx < 0 {
		return CutPoint{}, false
	}
	return s.cutPoints[idx], true
}

// CutPointNear returns the cut point closest to t within tolerance seconds.
func (s *Store) CutPointNear(t, tolerance float64) (CutPoint, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, cp := range s.cutPoints {
		d := math.Abs(cp.Time - t)
		if d <= tolerance && d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return CutPoint{}, false
	}
	return s.cutPoints[best], true
}

// SegmentIndexAt returns the index of the segment containing t, or -1. The
// last segment includes the video end.
func (s *Store) SegmentIndexAt(t float64) int {
	for i, seg := range s.segments {
		if t >= seg.Start && (t < seg.End || (i == len(s.segments)-1 && t <= seg.End)) {
			return i
		}
	}
	return -1
}

// TaggedSegments returns copies of the segments that carry details.
func (s *Store) TaggedSegments() []Segment {
	return s.State().TaggedSegments()
}

// Subscribe registers fn to be called with a fresh snapshot after every
// applied mutation. Calls are synchronous and in subscription order.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.nextSubID++
	id := s.nextSubID
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})
	return func() {
		s.subscribers = slices.DeleteFunc(s.subscribers, func(sub subscriber) bool {
			return sub.id == id
		})
	}
}

func (s *Store) applied() Outcome {
	if len(s.subscribers) > 0 {
		st := s.State()
		for _, sub := range slices.Clone(s.subscribers) {
			sub.fn(st)
		}
	}
	return Applied
}

// setCutPoints sorts cuts, re-derives segments with carry-over and drops a
// segment selection whose segment no longer exists.
func (s *Store) setCutPoints(cuts []CutPoint) {
	s.cutPoints = sortedCuts(cuts)
	s.segments = derive(s.cutPoints, s.duration, s.segments, s.newSegmentID)
	s.pruneSelection()
}

func (s *Store) pruneSelection() {
	if s.segmentIndexByID(s.selectedSegmentID) < 0 {
		s.selectedSegmentID = ""
	}
}

func (s *Store) cutIndex(id string) int {
	return slices.IndexFunc(s.cutPoints, func(cp CutPoint) bool { return cp.ID == id })
}

func (s *Store) segmentIndexByID(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(s.segments, func(seg Segment) bool { return seg.ID == id })
}

// emptyTags keeps both lists non-nil so snapshots encode them as arrays.
func emptyTags() Tags {
	return Tags{MuscleGroups: []string{}, Equipment: []string{}}
}

func (s *Store) mergeTags(t Tags) {
	s.tags.MuscleGroups = appendUnique(s.tags.MuscleGroups, t.MuscleGroups)
	s.tags.Equipment = appendUnique(s.tags.Equipment, t.Equipment)
}

func appendUnique(dst, src []string) []string {
	for _, v := range src {
		if v == "" || slices.Contains(dst, v) {
			continue
		}
		dst = append(dst, v)
	}
	return dst
}

package library

import (
	"math"

	"github.com/heimdex/repcut/internal/config"
	"github.com/heimdex/repcut/internal/timeline"
)

// Settings are the scene detector knobs.
type Settings struct {
	Threshold      float64 `json:"threshold"`
	MinSceneLength float64 `json:"min_scene_length"`
}

// DefaultSettings returns the detector defaults.
func DefaultSettings() Settings {
	return Settings{
		Threshold:      config.DefaultDetectThreshold,
		MinSceneLength: config.DefaultDetectMinSceneLen,
	}
}

// Clamp forces both values into the detector's accepted ranges. Zero values
// take the defaults.
func (s Settings) Clamp() Settings {
	if s.Threshold == 0 {
		s.Threshold = config.DefaultDetectThreshold
	}
	if s.MinSceneLength == 0 {
		s.MinSceneLength = config.DefaultDetectMinSceneLen
	}
	s.Threshold = math.Max(config.MinDetectThreshold, math.Min(config.MaxDetectThreshold, s.Threshold))
	s.MinSceneLength = math.Max(config.MinDetectMinSceneLen, math.Min(config.MaxDetectMinSceneLen, s.MinSceneLength))
	return s
}

// DetectResult is the response of POST /process.
type DetectResult struct {
	Success       bool      `json:"success"`
	SceneCount    int       `json:"scene_count"`
	VideoURL      string    `json:"video_url"`
	SuggestedCuts []float64 `json:"suggested_cuts"`
	VideoDuration float64   `json:"video_duration"`
}

// ReprocessResult is the response of GET /reprocess.
type ReprocessResult struct {
	Success       bool      `json:"success"`
	SceneCount    int       `json:"scene_count"`
	SuggestedCuts []float64 `json:"suggested_cuts"`
	Message       string    `json:"message,omitempty"`
}

// tagsResponse is the response of GET /get-tags.
type tagsResponse struct {
	MuscleGroups []string `json:"muscle_groups"`
	Equipment    []string `json:"equipment"`
}

// TimelinePayload is the body of POST /api/timeline/save.
type TimelinePayload struct {
	VideoURL  string              `json:"videoUrl"`
	CutPoints []timeline.CutPoint `json:"cutPoints"`
	Segments  []TimelineSegment   `json:"segments"`
}

type TimelineSegment struct {
	Start   float64                 `json:"start"`
	End     float64                 `json:"end"`
	Details timeline.SegmentDetails `json:"details"`
}

// SaveResult is the response of POST /api/timeline/save.
type SaveResult struct {
	Success    bool   `json:"success"`
	SavedCount int    `json:"saved_count"`
	Message    string `json:"message"`
}

// NewTimelinePayload builds the save payload from a snapshot: every tagged
// segment plus the raw cut point list. ok is false when nothing is tagged.
func NewTimelinePayload(st timeline.State) (TimelinePayload, bool) {
	p := TimelinePayload{
		VideoURL:  st.VideoURL,
		CutPoints: st.CutPoints,
	}
	for _, seg := range st.TaggedSegments() {
		d := *seg.Details
		if d.MuscleGroups == nil {
			d.MuscleGroups = []string{}
		}
		if d.Equipment == nil {
			d.Equipment = []string{}
		}
		p.Segments = append(p.Segments, TimelineSegment{Start: seg.Start, End: seg.End, Details: d})
	}
	return p, len(p.Segments) > 0
}

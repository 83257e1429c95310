// Package export renders tagged timeline segments as CMX3600 edit decision
// lists.
package export

import (
	"fmt"

	"github.com/heimdex/repcut/internal/timeline"
)

const (
	DefaultFrameRate = 30.0
	maxClipNameLen   = 64
)

// Request describes an EDL export of one session.
type Request struct {
	ProjectName string  `json:"project_name"`
	FrameRate   float64 `json:"frame_rate"`
	OutputDir   string  `json:"output_dir"`
}

// Clip is one EDL event: a tagged segment of the source video.
type Clip struct {
	Name      string
	MediaPath string
	Start     float64
	End       float64
	SegmentID string
}

type Response struct {
	Status     string `json:"status"`
	OutputPath string `json:"output_path,omitempty"`
	ClipCount  int    `json:"clip_count"`
}

// ClipsFromState turns the tagged segments of st into clips in timeline
// order. Untagged segments are skipped; a tagged segment without a name is
// labeled by its position.
func ClipsFromState(st timeline.State, mediaPath string) []Clip {
	clips := make([]Clip, 0, len(st.Segments))
	for i, seg := range st.Segments {
		if !seg.Tagged() {
			continue
		}
		name := SanitizeName(seg.Details.Name, maxClipNameLen)
		if name == "" {
			name = fmt.Sprintf("Segment %d", i+1)
		}
		clips = append(clips, Clip{
			Name:      name,
			MediaPath: mediaPath,
			Start:     seg.Start,
			End:       seg.End,
			SegmentID: seg.ID,
		})
	}
	return clips
}

package timeline

import (
	"cmp"
	"math"
	"slices"

	"github.com/google/uuid"
)

// Derive computes the partition of [0, duration] induced by cutPoints.
// Details and segment IDs are carried over from previous where a previous
// segment matches a new one; see matches. New segments get fresh IDs.
func Derive(cutPoints []CutPoint, duration float64, previous []Segment) []Segment {
	return derive(cutPoints, duration, previous, newSegmentID)
}

func derive(cutPoints []CutPoint, duration float64, previous []Segment, nextID func() string) []Segment {
	if duration <= 0 {
		return []Segment{}
	}
	sorted := sortedCuts(cutPoints)

	bounds := make([]float64, 0, len(sorted)+2)
	bounds = append(bounds, 0)
	for _, cp := range sorted {
		bounds = append(bounds, cp.Time)
	}
	bounds = append(bounds, duration)

	claimed := make(map[int]bool, len(previous))
	segments := make([]Segment, 0, len(bounds)-1)
	for i := 0; i < len(bounds)-1; i++ {
		start, end := bounds[i], bounds[i+1]
		seg := Segment{
			Start:   start,
			End:     end,
			Details: matchDetails(start, end, previous),
		}
		if idx := claimIdentity(start, end, previous, claimed); idx >= 0 {
			seg.ID = previous[idx].ID
		} else {
			seg.ID = nextID()
		}
		segments = append(segments, seg)
	}
	return segments
}

// matchDetails returns a copy of the details of the first tagged previous
// segment matching [start, end], or nil.
func matchDetails(start, end float64, previous []Segment) *SegmentDetails {
	for _, prev := range previous {
		if prev.Details == nil {
			continue
		}
		if matches(start, end, prev) {
			return prev.Details.Clone()
		}
	}
	return nil
}

// claimIdentity returns the index of the first unclaimed previous segment
// matching [start, end] and marks it claimed, or -1.
func claimIdentity(start, end float64, previous []Segment, claimed map[int]bool) int {
	for i, prev := range previous {
		if claimed[i] || prev.ID == "" {
			continue
		}
		if matches(start, end, prev) {
			claimed[i] = true
			return i
		}
	}
	return -1
}

// matches reports whether prev is the same segment as [start, end] after an
// edit: both edges within MatchTolerance, or an overlap covering at least
// MatchOverlapRatio of both segments.
func matches(start, end float64, prev Segment) bool {
	if math.Abs(prev.Start-start) <= MatchTolerance && math.Abs(prev.End-end) <= MatchTolerance {
		return true
	}
	overlap := math.Min(end, prev.End) - math.Max(start, prev.Start)
	if overlap <= 0 {
		return false
	}
	return overlap >= MatchOverlapRatio*(end-start) &&
		overlap >= MatchOverlapRatio*prev.Duration()
}

func sortedCuts(cutPoints []CutPoint) []CutPoint {
	sorted := cloneCuts(cutPoints)
	slices.SortStableFunc(sorted, func(a, b CutPoint) int {
		return cmp.Compare(a.Time, b.Time)
	})
	return sorted
}

func newSegmentID() string {
	return "seg_" + uuid.NewString()
}

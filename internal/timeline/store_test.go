package timeline

import (
	"encoding/json"
	"errors"
	"slices"
	"strconv"
	"testing"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return strconv.Itoa(n)
	}
}

func loaded(t *testing.T, duration float64, suggested ...float64) *Store {
	t.Helper()
	s := NewStore(WithIDSource(seqIDs()))
	if out := s.LoadVideo("v.mp4", duration, suggested); out != Applied {
		t.Fatalf("LoadVideo() = %v, want applied", out)
	}
	return s
}

func bounds(segs []Segment) [][2]float64 {
	out := make([][2]float64, len(segs))
	for i, s := range segs {
		out[i] = [2]float64{s.Start, s.End}
	}
	return out
}

func intp(i int) *int { return &i }

func strp(s string) *string { return &s }

func TestStore_InitialState(t *testing.T) {
	s := NewStore()
	st := s.State()

	if st.ZoomLevel != 1.0 {
		t.Errorf("ZoomLevel = %v, want 1.0", st.ZoomLevel)
	}
	if st.Playing {
		t.Error("Playing = true, want false")
	}
	if len(st.CutPoints) != 0 || len(st.Segments) != 0 {
		t.Errorf("expected empty timeline, got %d cuts %d segments", len(st.CutPoints), len(st.Segments))
	}
	if s.Phase() != PhaseEmpty {
		t.Errorf("Phase() = %v, want empty", s.Phase())
	}
}

func TestStore_EmptyTagsEncodeAsArrays(t *testing.T) {
	s := NewStore()
	check := func(step string) {
		t.Helper()
		data, err := json.Marshal(s.State().Tags)
		if err != nil {
			t.Fatal(err)
		}
		if got := string(data); got != `{"muscleGroups":[],"equipment":[]}` {
			t.Errorf("%s: tags = %s", step, got)
		}
	}

	check("new")
	s.LoadExistingTags(Tags{})
	check("load empty")
	s.Reset()
	check("reset")
	s.Restore(State{Duration: 30})
	check("restore")
}

func TestStore_LoadVideo(t *testing.T) {
	s := NewStore()
	s.SetCurrentTime(12)
	s.SetPlaying(true)

	if out := s.LoadVideo("v.mp4", 60, []float64{40, 20}); out != Applied {
		t.Fatalf("LoadVideo() = %v", out)
	}
	st := s.State()

	if len(st.CutPoints) != 2 {
		t.Fatalf("len(CutPoints) = %d, want 2", len(st.CutPoints))
	}
	if st.CutPoints[0].ID != "auto_1" || st.CutPoints[0].Time != 20 {
		t.Errorf("first cut = %+v, want auto_1 at 20", st.CutPoints[0])
	}
	if st.CutPoints[1].ID != "auto_0" || st.CutPoints[1].Type != CutAuto {
		t.Errorf("second cut = %+v, want auto_0 auto", st.CutPoints[1])
	}
	if st.CurrentTime != 0 || st.Playing {
		t.Errorf("playback not reset: time=%v playing=%v", st.CurrentTime, st.Playing)
	}
	if s.Phase() != PhaseLoaded {
		t.Errorf("Phase() = %v, want loaded", s.Phase())
	}
}

func TestStore_LoadVideo_RejectsBadDuration(t *testing.T) {
	for _, d := range []float64{0, -5} {
		s := NewStore()
		if out := s.LoadVideo("v.mp4", d, nil); out != RejectedNoVideo {
			t.Errorf("LoadVideo(duration=%v) = %v, want rejected_no_video", d, out)
		}
	}
}

func TestStore_LoadVideo_DropsOutOfRangeSuggestions(t *testing.T) {
	s := NewStore()
	s.LoadVideo("v.mp4", 30, []float64{-1, 10, 30, 45})

	st := s.State()
	if len(st.CutPoints) != 1 || st.CutPoints[0].ID != "auto_1" {
		t.Fatalf("CutPoints = %+v, want only auto_1", st.CutPoints)
	}
}

func TestStore_SortInvariant(t *testing.T) {
	s := loaded(t, 100, 50)
	s.AddCutPoint(20)
	s.AddCutPoint(80)
	_, id := s.AddCutPoint(35)
	s.UpdateCutPoint(id, 90)
	s.DeleteCutPoint("auto_0")

	times := []float64{}
	for _, cp := range s.State().CutPoints {
		times = append(times, cp.Time)
	}
	if !slices.IsSorted(times) {
		t.Fatalf("cut points not sorted: %v", times)
	}
}

func TestStore_AddCutPoint_Boundary(t *testing.T) {
	for _, d := range []float64{0.3, 10, 60} {
		s := loaded(t, d)
		if out, _ := s.AddCutPoint(0.05); out != RejectedAtBoundary {
			t.Errorf("d=%v AddCutPoint(0.05) = %v, want rejected_at_boundary", d, out)
		}
		if out, _ := s.AddCutPoint(d - 0.05); out != RejectedAtBoundary {
			t.Errorf("d=%v AddCutPoint(d-0.05) = %v, want rejected_at_boundary", d, out)
		}
		if n := len(s.State().CutPoints); n != 0 {
			t.Errorf("d=%v rejected add changed cut points: %d", d, n)
		}
	}
}

func TestStore_AddCutPoint_Proximity(t *testing.T) {
	s := loaded(t, 60, 10)

	out, _ := s.AddCutPoint(10.3)
	if out != RejectedTooCloseToNeighbor {
		t.Fatalf("AddCutPoint(10.3) = %v, want rejected_too_close", out)
	}
	if !errors.Is(out.Err(), ErrTooClose) {
		t.Errorf("Err() = %v, want ErrTooClose", out.Err())
	}

	out, id := s.AddCutPoint(10.6)
	if out != Applied {
		t.Fatalf("AddCutPoint(10.6) = %v, want applied", out)
	}
	cp, ok := s.CutPoint(id)
	if !ok || cp.Type != CutManual || cp.Time != 10.6 {
		t.Errorf("added cut = %+v (found=%v)", cp, ok)
	}
	if id != "manual_3" {
		t.Errorf("id = %q, want manual_ prefix with generated suffix", id)
	}
}

func TestStore_AddCutPoint_NoVideo(t *testing.T) {
	s := NewStore()
	if out, _ := s.AddCutPoint(5); out != RejectedNoVideo {
		t.Fatalf("AddCutPoint() on empty store = %v", out)
	}
}

func TestStore_UpdateCutPoint_ClampsAndCrosses(t *testing.T) {
	s := loaded(t, 60, 20, 40)

	if out := s.UpdateCutPoint("auto_0", 45); out != Applied {
		t.Fatalf("UpdateCutPoint() = %v", out)
	}
	st := s.State()
	if st.CutPoints[0].ID != "auto_1" || st.CutPoints[1].ID != "auto_0" {
		t.Errorf("cut points not re-sorted after crossing: %+v", st.CutPoints)
	}

	s.UpdateCutPoint("auto_0", 100)
	if cp, _ := s.CutPoint("auto_0"); cp.Time != 59.9 {
		t.Errorf("clamped time = %v, want 59.9", cp.Time)
	}
	s.UpdateCutPoint("auto_0", -3)
	if cp, _ := s.CutPoint("auto_0"); cp.Time != 0.1 {
		t.Errorf("clamped time = %v, want 0.1", cp.Time)
	}

	s.UpdateCutPoint("auto_0", 40.2)
	if cp, _ := s.CutPoint("auto_0"); cp.Time != 40.2 {
		t.Errorf("update within spacing rejected: %v", cp.Time)
	}

	if out := s.UpdateCutPoint("missing", 10); out != NotFound {
		t.Errorf("UpdateCutPoint(missing) = %v, want not_found", out)
	}
}

func TestStore_DeleteCutPoint(t *testing.T) {
	s := loaded(t, 60, 20, 40)
	s.SelectCutPoint(strp("auto_0"))

	if out := s.DeleteCutPoint("auto_0"); out != Applied {
		t.Fatalf("DeleteCutPoint() = %v", out)
	}
	st := s.State()
	if st.SelectedCutPointID != nil {
		t.Errorf("selection not cleared: %v", *st.SelectedCutPointID)
	}
	if got := bounds(st.Segments); !slices.Equal(got, [][2]float64{{0, 40}, {40, 60}}) {
		t.Errorf("segments = %v", got)
	}
	if out := s.DeleteCutPoint("auto_0"); out != NotFound {
		t.Errorf("second delete = %v, want not_found", out)
	}
}

func TestStore_DeleteOtherCutKeepsSelection(t *testing.T) {
	s := loaded(t, 60, 20, 40)
	s.SelectCutPoint(strp("auto_1"))
	s.DeleteCutPoint("auto_0")

	if st := s.State(); st.SelectedCutPointID == nil || *st.SelectedCutPointID != "auto_1" {
		t.Errorf("selection changed when another cut was deleted")
	}
}

func TestStore_ExactCarryOver(t *testing.T) {
	s := loaded(t, 60, 5, 15)
	x := &SegmentDetails{Name: "Press", MuscleGroups: []string{"Shoulders"}, Equipment: []string{"Dumbbell"}}
	s.UpdateSegmentDetails(1, x)

	if out, _ := s.AddCutPoint(40); out != Applied {
		t.Fatalf("AddCutPoint(40) = %v", out)
	}

	for _, seg := range s.State().Segments {
		if seg.Start == 5 && seg.End == 15 {
			if seg.Details == nil || seg.Details.Name != "Press" {
				t.Fatalf("details lost: %+v", seg.Details)
			}
			return
		}
	}
	t.Fatal("segment [5,15] not found")
}

func TestStore_ZoomClamp(t *testing.T) {
	s := NewStore()

	s.SetZoomLevel(10)
	if z := s.State().ZoomLevel; z != 3.0 {
		t.Errorf("SetZoomLevel(10) -> %v, want 3", z)
	}
	s.SetZoomLevel(0.1)
	if z := s.State().ZoomLevel; z != 0.5 {
		t.Errorf("SetZoomLevel(0.1) -> %v, want 0.5", z)
	}
	s.ZoomIn()
	s.ZoomIn()
	if z := s.State().ZoomLevel; z != 1.5 {
		t.Errorf("after two ZoomIn -> %v, want 1.5", z)
	}
	s.ZoomOut()
	s.ZoomOut()
	s.ZoomOut()
	if z := s.State().ZoomLevel; z != 0.5 {
		t.Errorf("ZoomOut past minimum -> %v, want 0.5", z)
	}
}

func TestStore_ClearAllDiscardsDetails(t *testing.T) {
	s := loaded(t, 60, 20, 40)
	s.UpdateSegmentDetails(0, &SegmentDetails{Name: "A"})
	s.UpdateSegmentDetails(2, &SegmentDetails{Name: "B"})
	s.SelectCutPoint(strp("auto_0"))

	if out := s.ClearAllCutPoints(); out != Applied {
		t.Fatalf("ClearAllCutPoints() = %v", out)
	}
	st := s.State()
	if len(st.Segments) != 1 || st.Segments[0].Details != nil {
		t.Fatalf("segments after clear = %+v", st.Segments)
	}
	if st.SelectedCutPointID != nil {
		t.Error("cut selection survived clear")
	}
}

func TestStore_EndToEnd(t *testing.T) {
	s := NewStore()
	s.LoadVideo("v.mp4", 60, []float64{20, 40})

	st := s.State()
	if len(st.CutPoints) != 2 {
		t.Fatalf("len(CutPoints) = %d, want 2", len(st.CutPoints))
	}
	if got := bounds(st.Segments); !slices.Equal(got, [][2]float64{{0, 20}, {20, 40}, {40, 60}}) {
		t.Fatalf("segments = %v", got)
	}
	for i, seg := range st.Segments {
		if seg.Details != nil {
			t.Fatalf("segment %d tagged after load", i)
		}
	}

	squat := &SegmentDetails{Name: "Squat", MuscleGroups: []string{"Legs"}, Equipment: []string{}}
	if out := s.UpdateSegmentDetails(1, squat); out != Applied {
		t.Fatalf("UpdateSegmentDetails() = %v", out)
	}
	if out, _ := s.AddCutPoint(30); out != Applied {
		t.Fatalf("AddCutPoint(30) = %v", out)
	}

	st = s.State()
	want := [][2]float64{{0, 20}, {20, 30}, {30, 40}, {40, 60}}
	if got := bounds(st.Segments); !slices.Equal(got, want) {
		t.Fatalf("segments = %v, want %v", got, want)
	}
	for i, seg := range st.Segments {
		if seg.Details != nil {
			t.Errorf("segment %d [%v,%v] details = %+v, want nil", i, seg.Start, seg.End, seg.Details)
		}
	}
}

func TestStore_UpdateSegmentDetails(t *testing.T) {
	s := loaded(t, 60, 30)
	d := &SegmentDetails{Name: "Curl", MuscleGroups: []string{"Arms"}}

	if out := s.UpdateSegmentDetails(5, d); out != NotFound {
		t.Errorf("out-of-range update = %v, want not_found", out)
	}
	s.UpdateSegmentDetails(0, d)
	d.MuscleGroups[0] = "Mutated"

	st := s.State()
	if st.Segments[0].Details.MuscleGroups[0] != "Arms" {
		t.Error("store aliased caller details")
	}
	st.Segments[0].Details.Name = "Mutated"
	if s.State().Segments[0].Details.Name != "Curl" {
		t.Error("snapshot aliased store details")
	}

	s.UpdateSegmentDetails(0, nil)
	if s.State().Segments[0].Details != nil {
		t.Error("nil details did not clear tagging")
	}
}

func TestStore_SelectionFollowsIdentity(t *testing.T) {
	s := loaded(t, 60, 20, 40)
	s.SelectSegment(intp(2))
	id := s.State().SelectedSegmentID

	// Splitting the first segment shifts the selected one to index 3.
	s.AddCutPoint(10)
	st := s.State()
	if st.SelectedSegmentIndex == nil || *st.SelectedSegmentIndex != 3 {
		t.Fatalf("SelectedSegmentIndex = %v, want 3", st.SelectedSegmentIndex)
	}
	if st.SelectedSegmentID != id {
		t.Errorf("SelectedSegmentID = %q, want %q", st.SelectedSegmentID, id)
	}

	// Merging it away clears the selection.
	s.DeleteCutPoint("auto_1")
	st = s.State()
	if st.SelectedSegmentIndex != nil {
		t.Errorf("selection survived merge: %v", *st.SelectedSegmentIndex)
	}
}

func TestStore_SelectOutOfRange(t *testing.T) {
	s := loaded(t, 60, 30)
	s.SelectSegment(intp(1))

	if out := s.SelectSegment(intp(7)); out != NotFound {
		t.Fatalf("SelectSegment(7) = %v, want not_found", out)
	}
	if st := s.State(); st.SelectedSegmentIndex == nil || *st.SelectedSegmentIndex != 1 {
		t.Errorf("rejected select changed selection")
	}
	if out := s.SelectCutPoint(strp("nope")); out != NotFound {
		t.Errorf("SelectCutPoint(nope) = %v, want not_found", out)
	}
	if s.Phase() != PhaseEditing {
		t.Errorf("Phase() = %v, want editing while a segment is selected", s.Phase())
	}
	s.SelectSegment(nil)
	if s.Phase() != PhaseLoaded {
		t.Errorf("Phase() = %v, want loaded", s.Phase())
	}
}

func TestStore_Tags(t *testing.T) {
	s := NewStore()
	s.LoadExistingTags(Tags{MuscleGroups: []string{"Legs", "Legs", "Back"}, Equipment: []string{"Barbell"}})
	s.AddTags(Tags{MuscleGroups: []string{"Core", "Back"}, Equipment: []string{"barbell"}})

	got := s.State().Tags
	if !slices.Equal(got.MuscleGroups, []string{"Legs", "Back", "Core"}) {
		t.Errorf("MuscleGroups = %v", got.MuscleGroups)
	}
	if !slices.Equal(got.Equipment, []string{"Barbell", "barbell"}) {
		t.Errorf("Equipment = %v", got.Equipment)
	}

	s.LoadExistingTags(Tags{MuscleGroups: []string{"Chest"}})
	if got := s.State().Tags.MuscleGroups; !slices.Equal(got, []string{"Chest"}) {
		t.Errorf("LoadExistingTags did not replace: %v", got)
	}
}

func TestStore_Reset(t *testing.T) {
	s := loaded(t, 60, 30)
	s.SetZoomLevel(2)
	s.SelectSegment(intp(0))
	s.Reset()

	st := s.State()
	if st.Duration != 0 || st.VideoURL != "" || len(st.Segments) != 0 || st.ZoomLevel != 1 || st.SelectedSegmentIndex != nil {
		t.Fatalf("Reset left state behind: %+v", st)
	}
	if s.Phase() != PhaseEmpty {
		t.Errorf("Phase() = %v, want empty", s.Phase())
	}
}

func TestStore_Restore(t *testing.T) {
	src := loaded(t, 60, 20, 40)
	src.UpdateSegmentDetails(1, &SegmentDetails{Name: "Row"})
	src.SelectSegment(intp(1))
	src.SetZoomLevel(2)
	snap := src.State()

	dst := NewStore()
	if out := dst.Restore(snap); out != Applied {
		t.Fatalf("Restore() = %v", out)
	}
	st := dst.State()
	if st.Segments[1].ID != snap.Segments[1].ID || st.Segments[1].Details == nil {
		t.Errorf("restored segment = %+v", st.Segments[1])
	}
	if st.SelectedSegmentIndex == nil || *st.SelectedSegmentIndex != 1 {
		t.Errorf("selection not restored")
	}
	if st.ZoomLevel != 2 {
		t.Errorf("ZoomLevel = %v, want 2", st.ZoomLevel)
	}
}

func TestStore_Subscribe(t *testing.T) {
	s := NewStore()
	var calls []int
	cancel := s.Subscribe(func(st State) { calls = append(calls, len(st.CutPoints)) })

	s.LoadVideo("v.mp4", 60, []float64{10})
	s.AddCutPoint(10.2) // rejected, no notification
	s.AddCutPoint(30)
	cancel()
	s.AddCutPoint(50)

	if !slices.Equal(calls, []int{1, 2}) {
		t.Fatalf("notifications = %v, want [1 2]", calls)
	}
}

func TestStore_CutPointNearAndSegmentAt(t *testing.T) {
	s := loaded(t, 60, 20, 40)

	if cp, ok := s.CutPointNear(21, 1.2); !ok || cp.ID != "auto_0" {
		t.Errorf("CutPointNear(21) = %+v, %v", cp, ok)
	}
	if _, ok := s.CutPointNear(30, 1.2); ok {
		t.Error("CutPointNear(30) found a cut")
	}

	tests := []struct {
		t    float64
		want int
	}{{0, 0}, {19.9, 0}, {20, 1}, {59, 2}, {60, 2}, {61, -1}}
	for _, tt := range tests {
		if got := s.SegmentIndexAt(tt.t); got != tt.want {
			t.Errorf("SegmentIndexAt(%v) = %d, want %d", tt.t, got, tt.want)
		}
	}
}

func TestOutcomeErr(t *testing.T) {
	tests := []struct {
		out  Outcome
		want error
	}{
		{Applied, nil},
		{RejectedAtBoundary, ErrAtBoundary},
		{RejectedTooCloseToNeighbor, ErrTooClose},
		{NotFound, ErrNotFound},
		{RejectedNoVideo, ErrNoVideo},
	}
	for _, tt := range tests {
		if err := tt.out.Err(); !errors.Is(err, tt.want) {
			t.Errorf("%v.Err() = %v, want %v", tt.out, err, tt.want)
		}
	}
}

package timeline

import "testing"

func cuts(times ...float64) []CutPoint {
	out := make([]CutPoint, len(times))
	for i, t := range times {
		out[i] = CutPoint{ID: "c" + string(rune('a'+i)), Time: t, Type: CutManual}
	}
	return out
}

func TestDerive_Partition(t *testing.T) {
	tests := []struct {
		name     string
		cuts     []CutPoint
		duration float64
	}{
		{"no cuts", nil, 30},
		{"one cut", cuts(10), 30},
		{"unsorted", cuts(25, 5, 12.5), 30},
		{"coincident cuts", cuts(10, 10), 30},
		{"many", cuts(1, 2, 3, 4, 5, 6, 7, 8, 9), 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs := Derive(tt.cuts, tt.duration, nil)
			if len(segs) != len(tt.cuts)+1 {
				t.Fatalf("len(segments) = %d, want %d", len(segs), len(tt.cuts)+1)
			}
			if segs[0].Start != 0 {
				t.Errorf("first start = %v, want 0", segs[0].Start)
			}
			if last := segs[len(segs)-1]; last.End != tt.duration {
				t.Errorf("last end = %v, want %v", last.End, tt.duration)
			}
			for i := 1; i < len(segs); i++ {
				if segs[i].Start != segs[i-1].End {
					t.Errorf("gap between segment %d and %d: %v != %v", i-1, i, segs[i-1].End, segs[i].Start)
				}
				if segs[i].Start < segs[i-1].Start {
					t.Errorf("segments not ascending at %d", i)
				}
			}
			seen := map[string]bool{}
			for _, s := range segs {
				if s.ID == "" || seen[s.ID] {
					t.Errorf("segment id %q empty or duplicated", s.ID)
				}
				seen[s.ID] = true
			}
		})
	}
}

func TestDerive_ZeroDuration(t *testing.T) {
	if segs := Derive(cuts(1, 2), 0, nil); len(segs) != 0 {
		t.Fatalf("Derive with zero duration = %v, want empty", segs)
	}
}

func TestDerive_ExactMatchCarriesDetails(t *testing.T) {
	x := &SegmentDetails{Name: "Squat", MuscleGroups: []string{"Legs"}}
	prev := []Segment{
		{ID: "s0", Start: 0, End: 5},
		{ID: "s1", Start: 5, End: 15, Details: x},
		{ID: "s2", Start: 15, End: 40},
	}

	segs := Derive(cuts(5.4, 15.8, 30), 40, prev)

	if segs[1].Details == nil || segs[1].Details.Name != "Squat" {
		t.Fatalf("segment [5.4,15.8] details = %+v, want Squat", segs[1].Details)
	}
	if segs[1].ID != "s1" {
		t.Errorf("segment id = %q, want s1", segs[1].ID)
	}
	if segs[1].Details == x {
		t.Error("details were aliased instead of copied")
	}
	for _, i := range []int{0, 2, 3} {
		if segs[i].Details != nil {
			t.Errorf("segment %d details = %+v, want nil", i, segs[i].Details)
		}
	}
}

func TestDerive_SplitLosesDetails(t *testing.T) {
	prev := []Segment{{ID: "s0", Start: 0, End: 20, Details: &SegmentDetails{Name: "Lunge"}}}

	segs := Derive(cuts(10), 20, prev)

	for i, s := range segs {
		if s.Details != nil {
			t.Errorf("segment %d [%v,%v] kept details after a split", i, s.Start, s.End)
		}
		if s.ID == "s0" {
			t.Errorf("segment %d inherited the id of the split segment", i)
		}
	}
}

func TestDerive_MergeLosesDetails(t *testing.T) {
	prev := []Segment{
		{ID: "s0", Start: 0, End: 10, Details: &SegmentDetails{Name: "A"}},
		{ID: "s1", Start: 10, End: 20, Details: &SegmentDetails{Name: "B"}},
	}

	segs := Derive(nil, 20, prev)

	if segs[0].Details != nil {
		t.Fatalf("merged segment details = %+v, want nil", segs[0].Details)
	}
}

func TestDerive_SmallDragKeepsDetails(t *testing.T) {
	prev := []Segment{
		{ID: "s0", Start: 0, End: 20, Details: &SegmentDetails{Name: "A"}},
		{ID: "s1", Start: 20, End: 60, Details: &SegmentDetails{Name: "B"}},
	}

	segs := Derive(cuts(23), 60, prev)

	if segs[0].Details == nil || segs[0].Details.Name != "A" {
		t.Errorf("segment 0 details = %+v, want A", segs[0].Details)
	}
	if segs[1].Details == nil || segs[1].Details.Name != "B" {
		t.Errorf("segment 1 details = %+v, want B", segs[1].Details)
	}
	if segs[0].ID != "s0" || segs[1].ID != "s1" {
		t.Errorf("ids = %q,%q want s0,s1", segs[0].ID, segs[1].ID)
	}
}

func TestMatches(t *testing.T) {
	prev := Segment{Start: 10, End: 20}
	tests := []struct {
		name       string
		start, end float64
		want       bool
	}{
		{"identical", 10, 20, true},
		{"both edges within tolerance", 9.2, 20.9, true},
		{"one edge past tolerance, large overlap", 10, 21.5, true},
		{"half overlap", 10, 15, false},
		{"superset", 5, 25, false},
		{"disjoint", 30, 40, false},
		{"touching", 20, 30, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matches(tt.start, tt.end, prev); got != tt.want {
				t.Errorf("matches(%v,%v) = %v, want %v", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestDerive_SkipsUntaggedForDetails(t *testing.T) {
	prev := []Segment{
		{ID: "a", Start: 0, End: 10},
		{ID: "b", Start: 0.5, End: 10.5, Details: &SegmentDetails{Name: "Row"}},
	}

	segs := Derive(cuts(10), 30, prev)

	if segs[0].Details == nil || segs[0].Details.Name != "Row" {
		t.Fatalf("details = %+v, want Row from the first tagged match", segs[0].Details)
	}
	if segs[0].ID != "a" {
		t.Errorf("id = %q, want a", segs[0].ID)
	}
}

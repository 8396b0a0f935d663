package wall

import (
	"errors"
	"testing"
)

func TestParseLayout(t *testing.T) {
	for _, s := range []string{"1x1", "2x2", "3x3"} {
		l, err := ParseLayout(s)
		if err != nil {
			t.Errorf("ParseLayout(%q): %v", s, err)
		}
		if string(l) != s {
			t.Errorf("ParseLayout(%q) = %q", s, l)
		}
	}
}

func TestParseLayout_invalid(t *testing.T) {
	for _, s := range []string{"", "4x4", "2X2", "quad"} {
		if _, err := ParseLayout(s); !errors.Is(err, ErrInvalidLayout) {
			t.Errorf("ParseLayout(%q): expected ErrInvalidLayout, got %v", s, err)
		}
	}
}

func TestLayout_Slots(t *testing.T) {
	cases := map[Layout]int{Layout1x1: 1, Layout2x2: 4, Layout3x3: 9}
	for l, want := range cases {
		if got := l.Slots(); got != want {
			t.Errorf("%s.Slots() = %d, want %d", l, got, want)
		}
	}
}

func TestLayout_ValidQuadrant(t *testing.T) {
	if !Layout2x2.ValidQuadrant(0) || !Layout2x2.ValidQuadrant(3) {
		t.Error("2x2 should accept quadrants 0..3")
	}
	if Layout2x2.ValidQuadrant(4) || Layout2x2.ValidQuadrant(-1) {
		t.Error("2x2 should reject quadrant 4 and -1")
	}
	if Layout1x1.ValidQuadrant(1) {
		t.Error("1x1 should reject quadrant 1")
	}
}

func TestAutoLayout2x2_hints(t *testing.T) {
	cams := []*Camera{
		{ID: "a", QuadrantHint: 3},
		{ID: "b", QuadrantHint: 1},
		{ID: "c", QuadrantHint: 4},
		{ID: "d", QuadrantHint: 2},
		{ID: "e"}, // unhinted, ignored
	}
	placed, ok := AutoLayout2x2(cams)
	if !ok {
		t.Fatal("expected placement from quadrant hints")
	}
	want := []CameraID{"b", "d", "a", "c"}
	for i := range want {
		if placed[i] != want[i] {
			t.Errorf("quadrant %d = %q, want %q", i, placed[i], want[i])
		}
	}
}

func TestAutoLayout2x2_conflicting_hints_fall_through(t *testing.T) {
	cams := []*Camera{
		{ID: "a", QuadrantHint: 1},
		{ID: "b", QuadrantHint: 1},
		{ID: "c", QuadrantHint: 2},
		{ID: "d", QuadrantHint: 3},
	}
	if _, ok := AutoLayout2x2(cams); ok {
		t.Error("conflicting hints with no name run should not place")
	}
}

func TestAutoLayout2x2_name_run(t *testing.T) {
	cams := []*Camera{
		{ID: "w", Name: "dock-14"},
		{ID: "x", Name: "dock-11"},
		{ID: "y", Name: "dock-13"},
		{ID: "z", Name: "dock-12"},
		{ID: "q", Name: "lobby"},
	}
	placed, ok := AutoLayout2x2(cams)
	if !ok {
		t.Fatal("expected placement from consecutive trailing numbers")
	}
	want := []CameraID{"x", "z", "y", "w"}
	for i := range want {
		if placed[i] != want[i] {
			t.Errorf("quadrant %d = %q, want %q", i, placed[i], want[i])
		}
	}
}

func TestAutoLayout2x2_no_match(t *testing.T) {
	cams := []*Camera{
		{ID: "a", Name: "gate-1"},
		{ID: "b", Name: "gate-3"},
		{ID: "c", Name: "gate-5"},
		{ID: "d", Name: "gate-7"},
	}
	if _, ok := AutoLayout2x2(cams); ok {
		t.Error("non-consecutive numbers should not place")
	}
}

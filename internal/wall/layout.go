package wall

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// Layout is a screen's declared tiling mode.
type Layout string

const (
	Layout1x1 Layout = "1x1"
	Layout2x2 Layout = "2x2"
	Layout3x3 Layout = "3x3"
)

// ErrInvalidLayout is returned when a layout string is not 1x1, 2x2, or 3x3.
var ErrInvalidLayout = errors.New("invalid layout")

// ParseLayout validates a layout string.
func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case Layout1x1, Layout2x2, Layout3x3:
		return Layout(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLayout, s)
}

// Grid returns the row and column count of the layout. Unknown layouts fall
// back to 2x2, the default a freshly registered screen starts in.
func (l Layout) Grid() (rows, cols int) {
	switch l {
	case Layout1x1:
		return 1, 1
	case Layout3x3:
		return 3, 3
	default:
		return 2, 2
	}
}

// Slots returns the number of quadrants in the layout (1, 4, or 9).
func (l Layout) Slots() int {
	rows, cols := l.Grid()
	return rows * cols
}

// ValidQuadrant reports whether q is a valid row-major quadrant index for the
// layout (0-based, contiguous).
func (l Layout) ValidQuadrant(q int) bool {
	return q >= 0 && q < l.Slots()
}

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// AutoLayout2x2 suggests a row-major camera placement for a 2x2 screen.
//
// Explicit quadrant hints win: if exactly four of the given cameras carry
// distinct hints 1..4 they are placed accordingly. Otherwise cameras whose
// names end in four consecutive numbers (e.g. cam-11..cam-14) are placed in
// ascending order. The result is a suggestion only; explicit assignments
// always override it.
func AutoLayout2x2(cams []*Camera) ([]CameraID, bool) {
	if placed, ok := placeByHints(cams); ok {
		return placed, true
	}
	return placeByNameRun(cams)
}

func placeByHints(cams []*Camera) ([]CameraID, bool) {
	placed := make([]CameraID, 4)
	seen := 0
	for _, c := range cams {
		if c.QuadrantHint < 1 || c.QuadrantHint > 4 {
			continue
		}
		if placed[c.QuadrantHint-1] != "" {
			return nil, false // conflicting hints
		}
		placed[c.QuadrantHint-1] = c.ID
		seen++
	}
	if seen != 4 {
		return nil, false
	}
	return placed, true
}

func placeByNameRun(cams []*Camera) ([]CameraID, bool) {
	type numbered struct {
		n  int
		id CameraID
	}
	var nums []numbered
	for _, c := range cams {
		m := trailingDigits.FindStringSubmatch(c.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		nums = append(nums, numbered{n: n, id: c.ID})
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i].n < nums[j].n })

	// Find a run of four consecutive indices.
	for i := 0; i+4 <= len(nums); i++ {
		if nums[i+1].n == nums[i].n+1 &&
			nums[i+2].n == nums[i].n+2 &&
			nums[i+3].n == nums[i].n+3 {
			return []CameraID{nums[i].id, nums[i+1].id, nums[i+2].id, nums[i+3].id}, true
		}
	}
	return nil, false
}

// -----------------------------------------------------------------------
// Frame Set - Tagged union of a contiguous frame range or an explicit list
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// FrameSetKind tags the active variant of a FrameSet
type FrameSetKind string

const (
	FrameSetRange FrameSetKind = "range" // contiguous [Start, End]
	FrameSetList  FrameSetKind = "list"  // explicit sorted frame list
)

// FrameSet is either a contiguous range or an explicit sorted list of
// frames. Frame numbers are always >= 0. The zero value is empty.
//
// The union collapses to an external argument syntax at the launcher
// boundary only: allocation and status code never care which format a
// render backend expects.
type FrameSet struct {
	Kind  FrameSetKind `json:"kind,omitempty"`
	Start int          `json:"start,omitempty"`
	End   int          `json:"end,omitempty"`
	List  []int        `json:"list,omitempty"`
}

var frameTokenPattern = regexp.MustCompile(`\d+(?:-\d+)?`)

// maxFrameCount bounds how many frames one specification may cover.
// Parsing expands range tokens, so an unbounded "0-2000000000" from a
// request body would otherwise allocate gigabytes before validation.
const maxFrameCount = 1_000_000

// NewFrameRange creates a contiguous frame range [start, end]
func NewFrameRange(start, end int) (FrameSet, error) {
	if start < 0 || end < 0 {
		return FrameSet{}, fmt.Errorf("frame numbers must be >= 0, got %d-%d", start, end)
	}
	if end < start {
		return FrameSet{}, fmt.Errorf("invalid frame range: end %d before start %d", end, start)
	}
	return FrameSet{Kind: FrameSetRange, Start: start, End: end}, nil
}

// SingleFrame creates a frame set containing exactly one frame
func SingleFrame(frame int) (FrameSet, error) {
	return NewFrameRange(frame, frame)
}

// NewFrameList creates an explicit frame list. Input is deduplicated and
// sorted; the original submission order is not significant.
func NewFrameList(frames []int) (FrameSet, error) {
	if len(frames) == 0 {
		return FrameSet{}, fmt.Errorf("frame list is empty")
	}

	seen := make(map[int]bool, len(frames))
	list := make([]int, 0, len(frames))
	for _, f := range frames {
		if f < 0 {
			return FrameSet{}, fmt.Errorf("frame numbers must be >= 0, got %d", f)
		}
		if !seen[f] {
			seen[f] = true
			list = append(list, f)
		}
	}
	sort.Ints(list)

	return FrameSet{Kind: FrameSetList, List: list}, nil
}

// ParseFrameString parses a frame specification like "1,3,5-10" into a
// frame set. A contiguous specification ("1-250" or "7") yields a range;
// anything else yields an explicit list.
func ParseFrameString(s string) (FrameSet, error) {
	tokens := frameTokenPattern.FindAllString(s, -1)
	if len(tokens) == 0 {
		return FrameSet{}, fmt.Errorf("no frames found in %q", s)
	}

	// A lone range token never materializes its frames
	if len(tokens) == 1 {
		a, b, err := parseToken(tokens[0])
		if err != nil {
			return FrameSet{}, err
		}
		if b-a+1 > maxFrameCount {
			return FrameSet{}, fmt.Errorf("frame specification %q covers more than %d frames", s, maxFrameCount)
		}
		return NewFrameRange(a, b)
	}

	frames := make([]int, 0, len(tokens))
	for _, token := range tokens {
		a, b, err := parseToken(token)
		if err != nil {
			return FrameSet{}, err
		}
		if len(frames)+(b-a+1) > maxFrameCount {
			return FrameSet{}, fmt.Errorf("frame specification %q covers more than %d frames", s, maxFrameCount)
		}
		for f := a; f <= b; f++ {
			frames = append(frames, f)
		}
	}

	set, err := NewFrameList(frames)
	if err != nil {
		return FrameSet{}, err
	}

	// Collapse to a range when the list is contiguous
	if contiguous(set.List) {
		return NewFrameRange(set.List[0], set.List[len(set.List)-1])
	}
	return set, nil
}

// parseToken resolves one matched token to its inclusive bounds: a bare
// frame number yields a == b.
func parseToken(token string) (int, int, error) {
	if start, end, ok := strings.Cut(token, "-"); ok {
		a, _ := strconv.Atoi(start)
		b, _ := strconv.Atoi(end)
		if b < a {
			return 0, 0, fmt.Errorf("invalid frame range %q", token)
		}
		return a, b, nil
	}
	f, _ := strconv.Atoi(token)
	return f, f, nil
}

func contiguous(frames []int) bool {
	for i := 1; i < len(frames); i++ {
		if frames[i] != frames[i-1]+1 {
			return false
		}
	}
	return len(frames) > 0
}

// IsList returns true for an explicit frame list
func (f FrameSet) IsList() bool {
	return f.Kind == FrameSetList
}

// IsEmpty returns true when the set contains no frames
func (f FrameSet) IsEmpty() bool {
	switch f.Kind {
	case FrameSetRange:
		return false
	case FrameSetList:
		return len(f.List) == 0
	default:
		return true
	}
}

// Count returns the number of frames in the set
func (f FrameSet) Count() int {
	switch f.Kind {
	case FrameSetRange:
		return f.End - f.Start + 1
	case FrameSetList:
		return len(f.List)
	default:
		return 0
	}
}

// Frames expands the set to an ordered slice of frame numbers
func (f FrameSet) Frames() []int {
	switch f.Kind {
	case FrameSetRange:
		out := make([]int, 0, f.Count())
		for i := f.Start; i <= f.End; i++ {
			out = append(out, i)
		}
		return out
	case FrameSetList:
		out := make([]int, len(f.List))
		copy(out, f.List)
		return out
	default:
		return nil
	}
}

// Validate checks the set's internal invariants
func (f FrameSet) Validate() error {
	switch f.Kind {
	case FrameSetRange:
		if f.Start < 0 || f.End < f.Start {
			return fmt.Errorf("invalid frame range %d-%d", f.Start, f.End)
		}
		return nil
	case FrameSetList:
		if len(f.List) == 0 {
			return fmt.Errorf("frame list is empty")
		}
		for i, frame := range f.List {
			if frame < 0 {
				return fmt.Errorf("frame numbers must be >= 0, got %d", frame)
			}
			if i > 0 && frame <= f.List[i-1] {
				return fmt.Errorf("frame list must be strictly ascending")
			}
		}
		return nil
	default:
		return fmt.Errorf("frame set is empty")
	}
}

// String formats the set compactly for display: "1-5", "7", or "1-3, 9, 12-14"
func (f FrameSet) String() string {
	// Ranges format from their bounds; only lists walk their frames
	if f.Kind == FrameSetRange {
		if f.Start == f.End {
			return strconv.Itoa(f.Start)
		}
		return fmt.Sprintf("%d-%d", f.Start, f.End)
	}

	frames := f.Frames()
	if len(frames) == 0 {
		return "[]"
	}

	var parts []string
	start, end := frames[0], frames[0]
	flush := func() {
		if start == end {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, end))
		}
	}
	for _, n := range frames[1:] {
		if n == end+1 {
			end = n
			continue
		}
		flush()
		start, end = n, n
	}
	flush()

	return strings.Join(parts, ", ")
}

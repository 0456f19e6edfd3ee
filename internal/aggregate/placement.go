package aggregate

import "github.com/jonesrussell/north-cloud/insights/internal/period"

// PlacementKind says which window a row landed in.
type PlacementKind int

const (
	Unmatched PlacementKind = iota
	InCurrent
	InPrevious
)

func (k PlacementKind) String() string {
	switch k {
	case InCurrent:
		return "current"
	case InPrevious:
		return "previous"
	default:
		return "unmatched"
	}
}

// Placement is the bucket a row belongs to. Index is meaningful only when
// Kind is InCurrent or InPrevious.
type Placement struct {
	Kind  PlacementKind
	Index int
}

// Place assigns a raw upstream time value to a bucket. The current axis is
// consulted first; a row is never placed in both windows.
func Place(rawTime string, current, previous period.Axis) Placement {
	key, ok := current.KeyFor(rawTime)
	if !ok {
		return Placement{Kind: Unmatched}
	}
	if i, ok := current.Index(key); ok {
		return Placement{Kind: InCurrent, Index: i}
	}
	if i, ok := previous.Index(key); ok {
		return Placement{Kind: InPrevious, Index: i}
	}
	return Placement{Kind: Unmatched}
}

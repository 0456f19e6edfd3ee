package drilldown

import (
	"errors"
	"fmt"

	"github.com/jonesrussell/north-cloud/insights/internal/taxonomy"
)

// Level is the depth of a drilldown view.
type Level int

const (
	// LevelCollapsed shows no entity.
	LevelCollapsed Level = iota
	// LevelPrimary shows one town or category.
	LevelPrimary
	// LevelSecondary shows a primary narrowed to one secondary entity.
	LevelSecondary
)

func (l Level) String() string {
	switch l {
	case LevelCollapsed:
		return "L0"
	case LevelPrimary:
		return "L1"
	case LevelSecondary:
		return "L2"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// LevelFor derives a request's level from the ids it carries.
func LevelFor(primaryID, secondaryID string) Level {
	switch {
	case primaryID == "":
		return LevelCollapsed
	case secondaryID == "":
		return LevelPrimary
	default:
		return LevelSecondary
	}
}

// View is the navigation state of one drilldown panel.
type View struct {
	Level       Level
	Dimension   taxonomy.Dimension
	PrimaryID   string
	SecondaryID string
}

// EventKind is a user action on the panel.
type EventKind int

const (
	SelectPrimary EventKind = iota
	SelectSecondary
	Close
)

// Event carries the selected id. Dimension is only read by SelectPrimary.
type Event struct {
	Kind      EventKind
	Dimension taxonomy.Dimension
	ID        string
}

// ErrInvalidTransition rejects events that make no sense in the current view.
var ErrInvalidTransition = errors.New("invalid drilldown transition")

// Transition applies e to v.
//
//	L0 --primary--> L1 --secondary--> L2
//	L2 --other secondary--> L1
//	any --close--> L0
//
// Selecting a primary from L1 or L2 replaces it and lands on L1.
func Transition(v View, e Event) (View, error) {
	switch e.Kind {
	case Close:
		return View{Level: LevelCollapsed}, nil

	case SelectPrimary:
		if e.ID == "" || e.Dimension == "" {
			return v, fmt.Errorf("%w: primary selection needs a dimension and id", ErrInvalidTransition)
		}
		return View{Level: LevelPrimary, Dimension: e.Dimension, PrimaryID: e.ID}, nil

	case SelectSecondary:
		if e.ID == "" {
			return v, fmt.Errorf("%w: empty secondary id", ErrInvalidTransition)
		}
		switch v.Level {
		case LevelPrimary:
			v.Level = LevelSecondary
			v.SecondaryID = e.ID
			return v, nil
		case LevelSecondary:
			if e.ID == v.SecondaryID {
				return v, nil
			}
			v.Level = LevelPrimary
			v.SecondaryID = ""
			return v, nil
		default:
			return v, fmt.Errorf("%w: secondary selection from %s", ErrInvalidTransition, v.Level)
		}

	default:
		return v, fmt.Errorf("%w: unknown event %d", ErrInvalidTransition, e.Kind)
	}
}

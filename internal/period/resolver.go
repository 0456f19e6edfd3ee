package period

import (
	"time"

	"github.com/jonesrussell/north-cloud/insights/infrastructure/clock"
)

// Resolver turns a granularity and optional bounds into comparison windows.
type Resolver struct {
	clock clock.Clock
}

// NewResolver uses c for "today"; nil means the system clock.
func NewResolver(c clock.Clock) *Resolver {
	if c == nil {
		c = clock.Real()
	}
	return &Resolver{clock: c}
}

// Yesterday is the last complete UTC day.
func (r *Resolver) Yesterday() time.Time {
	return AddDays(Truncate(r.clock.Now()), -1)
}

// Resolve derives the current and previous windows.
//
//   - start and end given: current is [start, end] verbatim.
//   - only end given: current is the standard window ending at end.
//   - neither given: current is the standard window ending yesterday (UTC).
//
// Previous is always the contiguous equal-length predecessor. A start without
// an end is rejected. Callers are expected to keep end no later than
// Yesterday; Resolve does not clamp it.
func (r *Resolver) Resolve(g Granularity, mode Mode, start, end *time.Time) (Ranges, error) {
	if _, err := ParseGranularity(string(g)); err != nil {
		return Ranges{}, err
	}

	var current DateRange
	switch {
	case start != nil && end != nil:
		cr, err := NewDateRange(*start, *end)
		if err != nil {
			return Ranges{}, err
		}
		current = cr
	case start != nil:
		return Ranges{}, &InputError{Field: "start", Message: "requires end"}
	case end != nil:
		current = EndingAt(*end, g.StandardDays(mode))
	default:
		current = EndingAt(r.Yesterday(), g.StandardDays(mode))
	}

	return Ranges{Current: current, Previous: current.Predecessor()}, nil
}

// ResolveStrings is Resolve for raw query parameters. Empty strings count as
// absent.
func (r *Resolver) ResolveStrings(granularity, mode, start, end string) (Granularity, Ranges, error) {
	g, err := ParseGranularity(granularity)
	if err != nil {
		return "", Ranges{}, err
	}
	m, err := ParseMode(mode)
	if err != nil {
		return "", Ranges{}, err
	}

	startPtr, err := optionalDate("start", start)
	if err != nil {
		return "", Ranges{}, err
	}
	endPtr, err := optionalDate("end", end)
	if err != nil {
		return "", Ranges{}, err
	}

	ranges, err := r.Resolve(g, m, startPtr, endPtr)
	if err != nil {
		return "", Ranges{}, err
	}
	return g, ranges, nil
}

func optionalDate(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return nil, &InputError{Field: field, Message: "must be YYYY-MM-DD"}
	}
	return &t, nil
}

// Package period derives comparison windows and the time axes that rows are
// bucketed against.
package period

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput is matched by every rejection caused by caller input.
var ErrInvalidInput = errors.New("invalid input")

// InputError names the offending parameter.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// Granularity is the temporal resolution of a query.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
	Year  Granularity = "year"
)

// Granularities lists every supported value in ascending order.
var Granularities = []Granularity{Day, Week, Month, Year}

// ParseGranularity accepts the long names and their one-letter forms.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "d", "day":
		return Day, nil
	case "w", "week":
		return Week, nil
	case "m", "month":
		return Month, nil
	case "y", "year":
		return Year, nil
	default:
		return "", &InputError{Field: "granularity", Message: fmt.Sprintf("%q is not one of d, w, m, y", s)}
	}
}

// Mode selects between a single headline figure and a chartable series.
// It only changes the standard window of Day.
type Mode string

const (
	ModeKPI    Mode = "kpi"
	ModeSeries Mode = "series"
)

// ParseMode accepts kpi or series; empty means series.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "series":
		return ModeSeries, nil
	case "kpi":
		return ModeKPI, nil
	default:
		return "", &InputError{Field: "mode", Message: fmt.Sprintf("%q is not one of kpi, series", s)}
	}
}

// StandardDays is the window length used when the caller gives no start.
func (g Granularity) StandardDays(mode Mode) int {
	switch g {
	case Day:
		if mode == ModeKPI {
			return 1
		}
		return 7
	case Week:
		return 7
	case Month:
		return 30
	case Year:
		return 365
	default:
		panic(fmt.Sprintf("period: unsupported granularity %q", string(g)))
	}
}

// Monthly reports whether rows are bucketed by month instead of by day.
func (g Granularity) Monthly() bool {
	return g == Year
}

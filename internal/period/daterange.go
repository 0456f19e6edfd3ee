package period

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date format used on the wire.
const DateLayout = time.DateOnly

const day = 24 * time.Hour

// ParseDate parses YYYY-MM-DD into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, &InputError{Field: "date", Message: fmt.Sprintf("%q is not YYYY-MM-DD", s)}
	}
	return t, nil
}

// Truncate drops the clock part of t in UTC.
func Truncate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays shifts a date by n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// DateRange is an inclusive span of calendar days with Start <= End.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange validates start <= end.
func NewDateRange(start, end time.Time) (DateRange, error) {
	start, end = Truncate(start), Truncate(end)
	if start.After(end) {
		return DateRange{}, &InputError{
			Field:   "range",
			Message: fmt.Sprintf("start %s is after end %s", start.Format(DateLayout), end.Format(DateLayout)),
		}
	}
	return DateRange{Start: start, End: end}, nil
}

// EndingAt is the n-day range whose last day is end.
func EndingAt(end time.Time, n int) DateRange {
	end = Truncate(end)
	return DateRange{Start: AddDays(end, -(n - 1)), End: end}
}

// Days is the inclusive day count.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start)/day) + 1
}

// Contains reports whether t falls on a day inside r.
func (r DateRange) Contains(t time.Time) bool {
	t = Truncate(t)
	return !t.Before(r.Start) && !t.After(r.End)
}

// Predecessor is the contiguous equal-length range ending the day before r.
func (r DateRange) Predecessor() DateRange {
	return EndingAt(AddDays(r.Start, -1), r.Days())
}

// Union is the smallest range covering both.
func (r DateRange) Union(o DateRange) DateRange {
	u := r
	if o.Start.Before(u.Start) {
		u.Start = o.Start
	}
	if o.End.After(u.End) {
		u.End = o.End
	}
	return u
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

type wireRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRange{Start: r.Start.Format(DateLayout), End: r.End.Format(DateLayout)})
}

func (r *DateRange) UnmarshalJSON(b []byte) error {
	var w wireRange
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	start, err := ParseDate(w.Start)
	if err != nil {
		return err
	}
	end, err := ParseDate(w.End)
	if err != nil {
		return err
	}
	parsed, err := NewDateRange(start, end)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Ranges is a current window and its comparison window.
type Ranges struct {
	Current  DateRange `json:"current"`
	Previous DateRange `json:"previous"`
}

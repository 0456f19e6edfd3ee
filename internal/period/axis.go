package period

import (
	"fmt"
	"time"
)

// AxisKind is the bucket width of an Axis.
type AxisKind int

const (
	Daily AxisKind = iota
	Monthly
)

// MonthsPerYearAxis is the fixed bucket count for year granularity.
const MonthsPerYearAxis = 12

const (
	monthLabelLayout = "2006-01"
	monthKeyLayout   = "200601"
	compactDayLayout = "20060102"
)

// Axis is an ordered list of time buckets. Labels are for display, Keys are
// what row time values are matched against; both share ordinals.
type Axis struct {
	Kind   AxisKind
	Labels []string
	Keys   []string
	index  map[string]int
	first  time.Time
	last   time.Time
}

// DailyAxis has one bucket per day of r, inclusive. Labels and keys are ISO days.
func DailyAxis(r DateRange) Axis {
	n := r.Days()
	keys := make([]string, n)
	for i := range n {
		keys[i] = AddDays(r.Start, i).Format(DateLayout)
	}
	return newAxis(Daily, keys, keys, r.Start, r.End)
}

// MonthlyAxis has n month buckets ending with the month containing end.
// Labels are YYYY-MM, keys YYYYMM.
func MonthlyAxis(end time.Time, n int) Axis {
	end = Truncate(end)
	lastMonth := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	firstMonth := lastMonth.AddDate(0, -(n - 1), 0)

	labels := make([]string, n)
	keys := make([]string, n)
	for i := range n {
		m := firstMonth.AddDate(0, i, 0)
		labels[i] = m.Format(monthLabelLayout)
		keys[i] = m.Format(monthKeyLayout)
	}
	return newAxis(Monthly, labels, keys, firstMonth, end)
}

func newAxis(kind AxisKind, labels, keys []string, first, last time.Time) Axis {
	idx := make(map[string]int, len(keys))
	for i, k := range keys {
		idx[k] = i
	}
	return Axis{Kind: kind, Labels: labels, Keys: keys, index: idx, first: first, last: last}
}

// AxesFor builds the aligned current and previous axes for g. The monthly
// previous axis ends with the month before the current axis's first month.
func AxesFor(g Granularity, ranges Ranges) (current, previous Axis) {
	if g.Monthly() {
		current = MonthlyAxis(ranges.Current.End, MonthsPerYearAxis)
		return current, MonthlyAxis(AddDays(current.first, -1), MonthsPerYearAxis)
	}
	return DailyAxis(ranges.Current), DailyAxis(ranges.Previous)
}

// Len is the bucket count.
func (a Axis) Len() int {
	return len(a.Keys)
}

// Index returns the ordinal of key.
func (a Axis) Index(key string) (int, bool) {
	i, ok := a.index[key]
	return i, ok
}

// Coverage is the span of days the axis buckets can receive rows for.
func (a Axis) Coverage() DateRange {
	return DateRange{Start: a.first, End: a.last}
}

// KeyFor converts an upstream time value into this axis's key format.
// Accepted inputs are YYYYMMDD, YYYY-MM-DD and, for monthly axes, YYYYMM and
// YYYY-MM.
func (a Axis) KeyFor(raw string) (string, bool) {
	t, grain, ok := parseTimeKey(raw)
	if !ok {
		return "", false
	}
	switch a.Kind {
	case Monthly:
		return t.Format(monthKeyLayout), true
	default:
		if grain != Daily {
			return "", false
		}
		return t.Format(DateLayout), true
	}
}

func parseTimeKey(raw string) (time.Time, AxisKind, bool) {
	layouts := []struct {
		layout string
		grain  AxisKind
	}{
		{compactDayLayout, Daily},
		{DateLayout, Daily},
		{monthKeyLayout, Monthly},
		{monthLabelLayout, Monthly},
	}
	for _, l := range layouts {
		if len(raw) != len(l.layout) {
			continue
		}
		if t, err := time.ParseInLocation(l.layout, raw, time.UTC); err == nil {
			return t, l.grain, true
		}
	}
	return time.Time{}, Daily, false
}

func (k AxisKind) String() string {
	switch k {
	case Daily:
		return "daily"
	case Monthly:
		return "monthly"
	default:
		return fmt.Sprintf("AxisKind(%d)", int(k))
	}
}

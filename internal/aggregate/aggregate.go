// Package aggregate folds classified upstream rows into aligned
// current/previous series, a secondary breakdown and per-URL series.
package aggregate

import (
	"sort"

	"github.com/jonesrussell/north-cloud/insights/internal/period"
	"github.com/jonesrussell/north-cloud/insights/internal/taxonomy"
)

// Breakdown bucket for rows without a sub-activity segment.
const (
	OtherID    = "other"
	OtherLabel = "Other"
)

// Taxonomy is the slice of a catalog the aggregator needs.
type Taxonomy interface {
	Classify(path string) (string, bool)
	Locate(segments []string, id string) (int, bool)
	Label(id string) string
}

// RawRow is one upstream row: a time value, a URL path and a count.
type RawRow struct {
	TimeKey string
	Path    string
	Value   float64
}

// Params selects what to aggregate. Secondary may be nil, in which case no
// breakdown is produced. A non-empty SecondaryFilterID restricts rows to that
// secondary entity and switches the breakdown to sub-activities.
type Params struct {
	Current           period.Axis
	Previous          period.Axis
	Primary           Taxonomy
	PrimaryID         string
	Secondary         Taxonomy
	SecondaryFilterID string
}

// Point is one labelled bucket value.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// SeriesPair holds vectors aligned by ordinal, not by date.
type SeriesPair struct {
	Current  []Point `json:"current"`
	Previous []Point `json:"previous"`
}

// Slice is one breakdown entry, current period only.
type Slice struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// URLSeries is the current-period vector of one matched URL.
type URLSeries struct {
	Name string    `json:"name"`
	Data []float64 `json:"data"`
	Path string    `json:"path"`
}

// Result is the aggregation output.
type Result struct {
	Series        SeriesPair
	Donut         []Slice
	SeriesByURL   []URLSeries
	CurrentTotal  float64
	PreviousTotal float64
	DeltaPct      float64
}

// Aggregate processes rows in delivery order. Rows that do not classify to
// PrimaryID, or whose time falls outside both axes, are dropped.
func Aggregate(rows []RawRow, p Params) Result {
	cur := make([]float64, p.Current.Len())
	prev := make([]float64, p.Previous.Len())
	donut := newGroups()
	urls := newURLGroups(p.Current.Len())

	filtered := p.SecondaryFilterID != "" && p.Secondary != nil

	for _, row := range rows {
		if id, ok := p.Primary.Classify(row.Path); !ok || id != p.PrimaryID {
			continue
		}

		var secondaryID string
		var secondaryOK bool
		if p.Secondary != nil {
			secondaryID, secondaryOK = p.Secondary.Classify(row.Path)
		}
		if filtered && (!secondaryOK || secondaryID != p.SecondaryFilterID) {
			continue
		}

		pl := Place(row.TimeKey, p.Current, p.Previous)
		switch pl.Kind {
		case InPrevious:
			prev[pl.Index] += row.Value
		case InCurrent:
			cur[pl.Index] += row.Value
			switch {
			case filtered:
				id, label := subActivity(row.Path, p)
				donut.add(id, label, row.Value)
				urls.add(row.Path, pl.Index, row.Value)
			case secondaryOK:
				donut.add(secondaryID, p.Secondary.Label(secondaryID), row.Value)
			}
		case Unmatched:
		}
	}

	res := Result{
		Series: SeriesPair{
			Current:  points(p.Current.Labels, cur),
			Previous: points(p.Previous.Labels, prev),
		},
		Donut:         donut.sorted(),
		SeriesByURL:   urls.sorted(),
		CurrentTotal:  sum(cur),
		PreviousTotal: sum(prev),
	}
	res.DeltaPct = DeltaPct(res.CurrentTotal, res.PreviousTotal)
	return res
}

// DeltaPct is the percentage change from previous to current. With no
// previous activity it is 0 when current is also 0 and 100 otherwise.
func DeltaPct(current, previous float64) float64 {
	if previous <= 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	return (current - previous) / previous * 100
}

// subActivity is the path segment right after both matched entities.
func subActivity(path string, p Params) (id, label string) {
	segs := taxonomy.Segments(path)

	last := -1
	if i, ok := p.Primary.Locate(segs, p.PrimaryID); ok {
		last = i
	}
	if i, ok := p.Secondary.Locate(segs, p.SecondaryFilterID); ok && i > last {
		last = i
	}
	if last < 0 || last+1 >= len(segs) {
		return OtherID, OtherLabel
	}
	tok := taxonomy.Normalize(segs[last+1]).Kebab
	if tok == "" {
		return OtherID, OtherLabel
	}
	return tok, tok
}

func points(labels []string, values []float64) []Point {
	out := make([]Point, len(values))
	for i, v := range values {
		out[i] = Point{Label: labels[i], Value: v}
	}
	return out
}

func sum(values []float64) float64 {
	var t float64
	for _, v := range values {
		t += v
	}
	return t
}

// groups accumulates totals keyed by id, remembering first-seen order.
type groups struct {
	order []string
	slice map[string]*Slice
}

func newGroups() *groups {
	return &groups{slice: make(map[string]*Slice)}
}

func (g *groups) add(id, label string, v float64) {
	s, ok := g.slice[id]
	if !ok {
		s = &Slice{ID: id, Label: label}
		g.slice[id] = s
		g.order = append(g.order, id)
	}
	s.Value += v
}

// sorted orders by value descending; equal values keep first-seen order.
func (g *groups) sorted() []Slice {
	out := make([]Slice, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, *g.slice[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}

type urlGroups struct {
	width  int
	order  []string
	series map[string]*URLSeries
	totals map[string]float64
}

func newURLGroups(width int) *urlGroups {
	return &urlGroups{width: width, series: make(map[string]*URLSeries), totals: make(map[string]float64)}
}

func (u *urlGroups) add(path string, idx int, v float64) {
	s, ok := u.series[path]
	if !ok {
		s = &URLSeries{Name: urlName(path), Path: path, Data: make([]float64, u.width)}
		u.series[path] = s
		u.order = append(u.order, path)
	}
	s.Data[idx] += v
	u.totals[path] += v
}

func (u *urlGroups) sorted() []URLSeries {
	out := make([]URLSeries, 0, len(u.order))
	for _, path := range u.order {
		out = append(out, *u.series[path])
	}
	sort.SliceStable(out, func(i, j int) bool { return u.totals[out[i].Path] > u.totals[out[j].Path] })
	return out
}

// urlName is the last path segment, or the path itself for the root.
func urlName(path string) string {
	segs := taxonomy.Segments(path)
	if len(segs) == 0 {
		return path
	}
	return segs[len(segs)-1]
}

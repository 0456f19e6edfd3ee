// Package domain holds the payloads served by the insights API.
package domain

import (
	"github.com/jonesrussell/north-cloud/insights/internal/aggregate"
	"github.com/jonesrussell/north-cloud/insights/internal/period"
	"github.com/jonesrussell/north-cloud/insights/internal/taxonomy"
)

// Context identifies what a payload was computed for.
type Context struct {
	Dimension   taxonomy.Dimension `json:"dimension"`
	PrimaryID   string             `json:"primaryId"`
	SecondaryID string             `json:"secondaryId,omitempty"`
	Level       string             `json:"level"`
}

// Drilldown is the chart payload. Town-first and category-first requests
// share this shape with the taxonomy roles swapped.
type Drilldown struct {
	Granularity period.Granularity    `json:"granularity"`
	Range       period.Ranges         `json:"range"`
	Context     Context               `json:"context"`
	Series      aggregate.SeriesPair  `json:"series"`
	XLabels     []string              `json:"xLabels"`
	Donut       []aggregate.Slice     `json:"donut"`
	DeltaPct    float64               `json:"deltaPct"`
	SeriesByURL []aggregate.URLSeries `json:"seriesByUrl"`
}

// Totals is the KPI card payload.
type Totals struct {
	Granularity period.Granularity `json:"granularity"`
	Range       period.Ranges      `json:"range"`
	Context     Context            `json:"context"`
	Current     float64            `json:"current"`
	Previous    float64            `json:"previous"`
	DeltaPct    float64            `json:"deltaPct"`
}

// Classification answers a single path lookup. ID is null on a miss.
type Classification struct {
	Path      string             `json:"path"`
	Dimension taxonomy.Dimension `json:"dimension"`
	ID        *string            `json:"id"`
	Label     string             `json:"label,omitempty"`
}

// RangesResponse is the resolved window pair.
type RangesResponse struct {
	Granularity period.Granularity `json:"granularity"`
	Mode        period.Mode        `json:"mode"`
	Range       period.Ranges      `json:"range"`
	XLabels     []string           `json:"xLabels"`
}

// Catalog lists one taxonomy.
type Catalog struct {
	Dimension taxonomy.Dimension `json:"dimension"`
	Entities  []taxonomy.Entity  `json:"entities"`
}

// Package upstream speaks to the analytics backends. Every transport accepts
// the same ReportRequest and returns rows whose first dimension is time,
// second is the page path and first metric is the count.
package upstream

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/insights/internal/period"
)

// Dimension names understood by all transports.
const (
	DimensionDate      = "date"
	DimensionYearMonth = "yearMonth"
	DimensionPagePath  = "pagePath"
	DimensionHostName  = "hostName"
)

// DefaultMetric is the count requested when none is configured.
const DefaultMetric = "screenPageViews"

// ErrMalformedResponse is returned when a backend answers with an unexpected body.
var ErrMalformedResponse = errors.New("malformed upstream response")

// ErrPageLimit is returned when paging has not drained a report after
// maxPages pages. Partial rows are never returned.
var ErrPageLimit = fmt.Errorf("%w: page limit reached", ErrMalformedResponse)

// DateRange is the wire form of a date window.
type DateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// Dimension selects a column.
type Dimension struct {
	Name string `json:"name"`
}

// Metric selects a value column.
type Metric struct {
	Name string `json:"name"`
}

// StringFilter matches a dimension value.
type StringFilter struct {
	MatchType     string `json:"matchType,omitempty"`
	Value         string `json:"value"`
	CaseSensitive bool   `json:"caseSensitive,omitempty"`
}

// Filter restricts one dimension.
type Filter struct {
	FieldName    string        `json:"fieldName"`
	StringFilter *StringFilter `json:"stringFilter,omitempty"`
}

// FilterExpression wraps a Filter the way the report API expects.
type FilterExpression struct {
	Filter *Filter `json:"filter,omitempty"`
}

// ReportRequest is the body of a runReport call.
type ReportRequest struct {
	DateRanges      []DateRange       `json:"dateRanges"`
	Dimensions      []Dimension       `json:"dimensions"`
	Metrics         []Metric          `json:"metrics"`
	DimensionFilter *FilterExpression `json:"dimensionFilter,omitempty"`
	Limit           int64             `json:"limit,omitempty"`
	Offset          int64             `json:"offset,omitempty"`
}

// Value is one cell.
type Value struct {
	Value string `json:"value"`
}

// Row is one result line.
type Row struct {
	DimensionValues []Value `json:"dimensionValues"`
	MetricValues    []Value `json:"metricValues"`
}

// ReportResponse is the decoded result. Shared responses are read-only.
type ReportResponse struct {
	Rows     []Row `json:"rows"`
	RowCount int64 `json:"rowCount"`
}

// QueryOptions shape a time by path report.
type QueryOptions struct {
	Metric   string
	HostName string
	Limit    int64
}

// NewTimeByPathRequest asks for daily (or monthly) counts per page path over window.
func NewTimeByPathRequest(window period.DateRange, monthly bool, opts QueryOptions) *ReportRequest {
	timeDim := DimensionDate
	if monthly {
		timeDim = DimensionYearMonth
	}
	metric := opts.Metric
	if metric == "" {
		metric = DefaultMetric
	}

	req := &ReportRequest{
		DateRanges: []DateRange{{
			StartDate: window.Start.Format(time.DateOnly),
			EndDate:   window.End.Format(time.DateOnly),
		}},
		Dimensions: []Dimension{{Name: timeDim}, {Name: DimensionPagePath}},
		Metrics:    []Metric{{Name: metric}},
		Limit:      opts.Limit,
	}
	if opts.HostName != "" {
		req.DimensionFilter = &FilterExpression{Filter: &Filter{
			FieldName:    DimensionHostName,
			StringFilter: &StringFilter{MatchType: "EXACT", Value: opts.HostName},
		}}
	}
	return req
}

// Monthly reports whether the request groups time by month.
func (r *ReportRequest) Monthly() bool {
	return len(r.Dimensions) > 0 && r.Dimensions[0].Name == DimensionYearMonth
}

// Window parses the first date range.
func (r *ReportRequest) Window() (period.DateRange, error) {
	if len(r.DateRanges) == 0 {
		return period.DateRange{}, errors.New("report request has no date range")
	}
	start, err := period.ParseDate(r.DateRanges[0].StartDate)
	if err != nil {
		return period.DateRange{}, err
	}
	end, err := period.ParseDate(r.DateRanges[0].EndDate)
	if err != nil {
		return period.DateRange{}, err
	}
	return period.NewDateRange(start, end)
}

// MetricName returns the first requested metric.
func (r *ReportRequest) MetricName() string {
	if len(r.Metrics) == 0 {
		return DefaultMetric
	}
	return r.Metrics[0].Name
}

// HostFilter returns the exact host filter value, if any.
func (r *ReportRequest) HostFilter() string {
	if r.DimensionFilter == nil || r.DimensionFilter.Filter == nil || r.DimensionFilter.Filter.StringFilter == nil {
		return ""
	}
	return r.DimensionFilter.Filter.StringFilter.Value
}

package upstream_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/insights/internal/period"
	"github.com/jonesrussell/north-cloud/insights/internal/upstream"
)

func window(t *testing.T, start, end string) period.DateRange {
	t.Helper()
	s, err := period.ParseDate(start)
	require.NoError(t, err)
	e, err := period.ParseDate(end)
	require.NoError(t, err)
	r, err := period.NewDateRange(s, e)
	require.NoError(t, err)
	return r
}

func TestNewTimeByPathRequest(t *testing.T) {
	t.Parallel()

	req := upstream.NewTimeByPathRequest(window(t, "2024-03-01", "2024-03-14"), false, upstream.QueryOptions{
		HostName: "www.example.org",
		Limit:    500,
	})

	require.Len(t, req.DateRanges, 1)
	assert.Equal(t, "2024-03-01", req.DateRanges[0].StartDate)
	assert.Equal(t, "2024-03-14", req.DateRanges[0].EndDate)
	assert.Equal(t, []upstream.Dimension{{Name: "date"}, {Name: "pagePath"}}, req.Dimensions)
	assert.Equal(t, upstream.DefaultMetric, req.MetricName())
	assert.Equal(t, "www.example.org", req.HostFilter())
	assert.Equal(t, int64(500), req.Limit)
	assert.False(t, req.Monthly())

	got, err := req.Window()
	require.NoError(t, err)
	assert.Equal(t, 14, got.Days())
}

func TestNewTimeByPathRequest_Monthly(t *testing.T) {
	t.Parallel()

	req := upstream.NewTimeByPathRequest(window(t, "2023-04-01", "2024-03-31"), true, upstream.QueryOptions{Metric: "sessions"})

	assert.True(t, req.Monthly())
	assert.Equal(t, "yearMonth", req.Dimensions[0].Name)
	assert.Equal(t, "sessions", req.MetricName())
	assert.Empty(t, req.HostFilter())
	assert.Nil(t, req.DimensionFilter)
}

func TestReportRequest_WindowErrors(t *testing.T) {
	t.Parallel()

	_, err := (&upstream.ReportRequest{}).Window()
	require.Error(t, err)

	_, err = (&upstream.ReportRequest{DateRanges: []upstream.DateRange{{StartDate: "2024-03-10", EndDate: "2024-03-01"}}}).Window()
	require.Error(t, err)
}

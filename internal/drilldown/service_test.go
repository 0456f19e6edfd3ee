package drilldown_test

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/insights/infrastructure/circuitbreaker"
	"github.com/jonesrussell/north-cloud/insights/infrastructure/clock"
	infraerrors "github.com/jonesrussell/north-cloud/insights/infrastructure/errors"
	"github.com/jonesrussell/north-cloud/insights/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/insights/infrastructure/retry"
	"github.com/jonesrussell/north-cloud/insights/internal/drilldown"
	"github.com/jonesrussell/north-cloud/insights/internal/period"
	"github.com/jonesrussell/north-cloud/insights/internal/resilience"
	"github.com/jonesrussell/north-cloud/insights/internal/upstream"
)

type fakeRunner struct {
	calls int
	last  *upstream.ReportRequest
	opts  resilience.Options
	resp  *upstream.ReportResponse
	err   error
}

func (f *fakeRunner) RunReportSafe(_ context.Context, req *upstream.ReportRequest, opts resilience.Options) (*upstream.ReportResponse, error) {
	f.calls++
	f.last = req
	f.opts = opts
	return f.resp, f.err
}

func row(day, path string, v float64) upstream.Row {
	return upstream.Row{
		DimensionValues: []upstream.Value{{Value: day}, {Value: path}},
		MetricValues:    []upstream.Value{{Value: strconv.FormatFloat(v, 'f', -1, 64)}},
	}
}

func fixtureResponse() *upstream.ReportResponse {
	return &upstream.ReportResponse{Rows: []upstream.Row{
		row("20251017", "/almonte/naturaleza/donana-park/", 10),
		row("20251018", "/almonte/naturaleza/donana-park/", 5),
		row("20251023", "/almonte/naturaleza/acebuche/", 7),
		row("20251020", "/almonte/playas/matalascanas", 4),
		row("20251021", "/almonte/naturaleza", 2),
		row("20251022", "/el-rocio/informacion", 3),
		row("20251012", "/almonte/naturaleza/donana-park/", 6),
		row("20251016", "/almonte/playas/", 8),
		row("20251001", "/almonte/naturaleza/", 100),
		row("20251019", "/moguer/naturaleza/", 50),
	}}
}

// today is 2025-10-24, so the default week is 2025-10-17..2025-10-23.
func newService(runner drilldown.ReportRunner) *drilldown.Service {
	clk := clock.NewManual(time.Date(2025, 10, 24, 15, 0, 0, 0, time.UTC))
	return drilldown.NewService(runner, period.NewResolver(clk), upstream.QueryOptions{HostName: "example.org"}, logger.NewNop())
}

func sum(points []float64) float64 {
	var t float64
	for _, p := range points {
		t += p
	}
	return t
}

func TestTownDrilldown_LevelOne(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{resp: fixtureResponse()}
	svc := newService(runner)

	got, err := svc.TownDrilldown(context.Background(), drilldown.Request{Granularity: "w", PrimaryID: "almonte"})
	require.NoError(t, err)

	assert.Equal(t, period.Week, got.Granularity)
	assert.Equal(t, "2025-10-17", got.Range.Current.Start.Format(time.DateOnly))
	assert.Equal(t, "2025-10-16", got.Range.Previous.End.Format(time.DateOnly))
	assert.Equal(t, "L1", got.Context.Level)
	assert.Empty(t, got.Context.SecondaryID)
	require.Len(t, got.XLabels, 7)
	assert.Equal(t, "2025-10-17", got.XLabels[0])

	var cur, prev float64
	for _, p := range got.Series.Current {
		cur += p.Value
	}
	for _, p := range got.Series.Previous {
		prev += p.Value
	}
	assert.InDelta(t, 31, cur, 1e-9)
	assert.InDelta(t, 14, prev, 1e-9)
	assert.InDelta(t, (31.0-14.0)/14.0*100, got.DeltaPct, 1e-9)

	require.NotEmpty(t, got.Donut)
	assert.Equal(t, "naturaleza", got.Donut[0].ID)
	assert.Empty(t, got.SeriesByURL)

	require.Equal(t, 1, runner.calls)
	assert.Equal(t, resilience.PriorityNormal, runner.opts.Priority)
	assert.Equal(t, "2025-10-10", runner.last.DateRanges[0].StartDate)
	assert.Equal(t, "2025-10-23", runner.last.DateRanges[0].EndDate)
	assert.Equal(t, "example.org", runner.last.HostFilter())
	assert.False(t, runner.last.Monthly())
}

func TestDrilldown_TownCategorySymmetry(t *testing.T) {
	t.Parallel()

	svc := newService(&fakeRunner{resp: fixtureResponse()})
	ctx := context.Background()

	town, err := svc.TownDrilldown(ctx, drilldown.Request{Granularity: "w", PrimaryID: "almonte", SecondaryID: "naturaleza"})
	require.NoError(t, err)
	category, err := svc.CategoryDrilldown(ctx, drilldown.Request{Granularity: "w", PrimaryID: "naturaleza", SecondaryID: "almonte"})
	require.NoError(t, err)

	assert.Equal(t, "L2", town.Context.Level)
	assert.Equal(t, "L2", category.Context.Level)
	assert.Equal(t, town.Series, category.Series)
	assert.InDelta(t, town.DeltaPct, category.DeltaPct, 1e-9)
	assert.Equal(t, town.XLabels, category.XLabels)
	assert.Equal(t, town.Range, category.Range)
	assert.Len(t, category.SeriesByURL, len(town.SeriesByURL))

	var urlTotal float64
	for _, s := range town.SeriesByURL {
		urlTotal += sum(s.Data)
	}
	assert.InDelta(t, 24, urlTotal, 1e-9)
}

func TestDrilldown_SecondaryUsesHighPriority(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{resp: fixtureResponse()}
	_, err := newService(runner).TownDrilldown(context.Background(), drilldown.Request{Granularity: "w", PrimaryID: "almonte", SecondaryID: "playas"})
	require.NoError(t, err)
	assert.Equal(t, resilience.PriorityHigh, runner.opts.Priority)
}

func TestDrilldown_InvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  drilldown.Request
		kind drilldown.Kind
	}{
		{"bad granularity", drilldown.Request{Granularity: "fortnight", PrimaryID: "almonte"}, drilldown.KindInvalidInput},
		{"start after end", drilldown.Request{Granularity: "w", Start: "2025-10-10", End: "2025-10-01", PrimaryID: "almonte"}, drilldown.KindInvalidInput},
		{"start only", drilldown.Request{Granularity: "w", Start: "2025-10-10", PrimaryID: "almonte"}, drilldown.KindInvalidInput},
		{"bad date", drilldown.Request{Granularity: "w", End: "10/10/2025", PrimaryID: "almonte"}, drilldown.KindInvalidInput},
		{"end today", drilldown.Request{Granularity: "d", End: "2025-10-24", PrimaryID: "almonte"}, drilldown.KindInvalidInput},
		{"unknown town", drilldown.Request{Granularity: "w", PrimaryID: "atlantis"}, drilldown.KindUnknownEntity},
		{"unknown category", drilldown.Request{Granularity: "w", PrimaryID: "almonte", SecondaryID: "casinos"}, drilldown.KindUnknownEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runner := &fakeRunner{resp: fixtureResponse()}
			_, err := newService(runner).TownDrilldown(context.Background(), tt.req)
			require.Error(t, err)

			derr, ok := drilldown.AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, derr.Kind)
			assert.Zero(t, runner.calls, "validation must happen before any upstream call")
		})
	}
}

func TestDrilldown_UpstreamErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		kind drilldown.Kind
	}{
		{"circuit open", &circuitbreaker.OpenError{Key: "runReport:1", RetryAfter: 42 * time.Second}, drilldown.KindCircuitOpen},
		{"exhausted", fmt.Errorf("%w after 4 attempts: %w", retry.ErrExhausted, &infraerrors.HTTPError{StatusCode: http.StatusServiceUnavailable}), drilldown.KindUpstreamTransient},
		{"permanent", &infraerrors.HTTPError{StatusCode: http.StatusForbidden}, drilldown.KindUpstreamPermanent},
		{"cancelled", fmt.Errorf("%w: %w", retry.ErrCancelled, context.Canceled), drilldown.KindCancelled},
		{"page limit", fmt.Errorf("run report: %w", upstream.ErrPageLimit), drilldown.KindUpstreamPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := newService(&fakeRunner{err: tt.err}).CategoryDrilldown(context.Background(), drilldown.Request{Granularity: "m", PrimaryID: "playas"})
			require.Error(t, err)
			assert.Nil(t, got, "no partial payload on failure")

			derr, ok := drilldown.AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, derr.Kind)
			assert.ErrorIs(t, err, tt.err)
			if tt.kind == drilldown.KindCircuitOpen {
				assert.Equal(t, 42*time.Second, derr.RetryAfter)
			}
		})
	}
}

func TestTotals_KPIDay(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{resp: &upstream.ReportResponse{Rows: []upstream.Row{
		row("20251010", "/almonte/playas/", 6),
		row("20251009", "/almonte/", 3),
		row("20251010", "/moguer/", 99),
	}}}

	got, err := newService(runner).Totals(context.Background(), "town", drilldown.Request{Granularity: "d", End: "2025-10-10", PrimaryID: "almonte"})
	require.NoError(t, err)

	assert.Equal(t, "2025-10-10", got.Range.Current.Start.Format(time.DateOnly))
	assert.Equal(t, "2025-10-10", got.Range.Current.End.Format(time.DateOnly))
	assert.Equal(t, "2025-10-09", got.Range.Previous.Start.Format(time.DateOnly))
	assert.InDelta(t, 6, got.Current, 1e-9)
	assert.InDelta(t, 3, got.Previous, 1e-9)
	assert.InDelta(t, 100, got.DeltaPct, 1e-9)
	assert.Equal(t, "2025-10-09", runner.last.DateRanges[0].StartDate)
}

func TestDrilldown_YearUsesMonthlyAxis(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{resp: &upstream.ReportResponse{Rows: []upstream.Row{
		row("202510", "/almonte/", 5),
		row("202410", "/almonte/", 2),
	}}}

	got, err := newService(runner).TownDrilldown(context.Background(), drilldown.Request{Granularity: "y", PrimaryID: "almonte"})
	require.NoError(t, err)

	require.Len(t, got.XLabels, 12)
	assert.Equal(t, "2025-10", got.XLabels[11])
	assert.True(t, runner.last.Monthly())
	assert.InDelta(t, 5, got.Series.Current[11].Value, 1e-9)
	assert.InDelta(t, 2, got.Series.Previous[11].Value, 1e-9)
	assert.InDelta(t, 150, got.DeltaPct, 1e-9)
}

func TestDrilldown_DropsMalformedRows(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{resp: &upstream.ReportResponse{Rows: []upstream.Row{
		row("20251020", "/almonte/", 4),
		{DimensionValues: []upstream.Value{{Value: "20251020"}}, MetricValues: []upstream.Value{{Value: "1"}}},
		{DimensionValues: []upstream.Value{{Value: "20251020"}, {Value: "/almonte/"}}, MetricValues: []upstream.Value{{Value: "n/a"}}},
	}}}

	got, err := newService(runner).TownDrilldown(context.Background(), drilldown.Request{Granularity: "w", PrimaryID: "almonte"})
	require.NoError(t, err)

	var cur float64
	for _, p := range got.Series.Current {
		cur += p.Value
	}
	assert.InDelta(t, 4, cur, 1e-9)
}

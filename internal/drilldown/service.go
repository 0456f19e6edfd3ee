// Package drilldown answers town-first and category-first activity queries:
// it resolves the comparison windows, fetches rows through the resilient
// client and aggregates them.
package drilldown

import (
	"context"
	"strconv"

	"github.com/jonesrussell/north-cloud/insights/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/insights/internal/aggregate"
	"github.com/jonesrussell/north-cloud/insights/internal/domain"
	"github.com/jonesrussell/north-cloud/insights/internal/period"
	"github.com/jonesrussell/north-cloud/insights/internal/resilience"
	"github.com/jonesrussell/north-cloud/insights/internal/taxonomy"
	"github.com/jonesrussell/north-cloud/insights/internal/upstream"
)

// ReportRunner is the resilient upstream call.
type ReportRunner interface {
	RunReportSafe(ctx context.Context, req *upstream.ReportRequest, opts resilience.Options) (*upstream.ReportResponse, error)
}

// Request carries raw query parameters. Empty Start/End mean "standard
// window", empty SecondaryID means level L1.
type Request struct {
	Granularity string
	Start       string
	End         string
	PrimaryID   string
	SecondaryID string
}

// Service is safe for concurrent use.
type Service struct {
	runner   ReportRunner
	resolver *period.Resolver
	query    upstream.QueryOptions
	log      logger.Logger
}

// NewService wires a service. query shapes every upstream request.
func NewService(runner ReportRunner, resolver *period.Resolver, query upstream.QueryOptions, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{runner: runner, resolver: resolver, query: query, log: log}
}

// TownDrilldown aggregates activity for a town, optionally narrowed to a category.
func (s *Service) TownDrilldown(ctx context.Context, req Request) (*domain.Drilldown, error) {
	return s.Drilldown(ctx, taxonomy.DimensionTown, req)
}

// CategoryDrilldown aggregates activity for a category, optionally narrowed to a town.
func (s *Service) CategoryDrilldown(ctx context.Context, req Request) (*domain.Drilldown, error) {
	return s.Drilldown(ctx, taxonomy.DimensionCategory, req)
}

// Drilldown aggregates activity with dim as the primary taxonomy.
func (s *Service) Drilldown(ctx context.Context, dim taxonomy.Dimension, req Request) (*domain.Drilldown, error) {
	const op = "drilldown"

	q, err := s.prepare(op, dim, req, period.ModeSeries)
	if err != nil {
		return nil, err
	}

	// Deeper levels are interactive and jump the queue.
	priority := resilience.PriorityNormal
	if q.level == LevelSecondary {
		priority = resilience.PriorityHigh
	}

	res, err := s.fetch(ctx, op, q, priority)
	if err != nil {
		return nil, err
	}

	return &domain.Drilldown{
		Granularity: q.granularity,
		Range:       q.ranges,
		Context:     q.context(),
		Series:      res.Series,
		XLabels:     q.current.Labels,
		Donut:       res.Donut,
		DeltaPct:    res.DeltaPct,
		SeriesByURL: res.SeriesByURL,
	}, nil
}

// Totals returns KPI totals for the primary (and optional secondary) entity.
// A day granularity uses the one-day KPI window.
func (s *Service) Totals(ctx context.Context, dim taxonomy.Dimension, req Request) (*domain.Totals, error) {
	const op = "totals"

	q, err := s.prepare(op, dim, req, period.ModeKPI)
	if err != nil {
		return nil, err
	}

	res, err := s.fetch(ctx, op, q, resilience.PriorityNormal)
	if err != nil {
		return nil, err
	}

	return &domain.Totals{
		Granularity: q.granularity,
		Range:       q.ranges,
		Context:     q.context(),
		Current:     res.CurrentTotal,
		Previous:    res.PreviousTotal,
		DeltaPct:    res.DeltaPct,
	}, nil
}

// query is a validated request ready for fetching.
type query struct {
	dim         taxonomy.Dimension
	granularity period.Granularity
	ranges      period.Ranges
	current     period.Axis
	previous    period.Axis
	primary     *taxonomy.Catalog
	secondary   *taxonomy.Catalog
	primaryID   string
	secondaryID string
	level       Level
}

func (q *query) context() domain.Context {
	return domain.Context{
		Dimension:   q.dim,
		PrimaryID:   q.primaryID,
		SecondaryID: q.secondaryID,
		Level:       q.level.String(),
	}
}

// prepare validates everything before any network call.
func (s *Service) prepare(op string, dim taxonomy.Dimension, req Request, mode period.Mode) (*query, error) {
	primary, err := taxonomy.ForDimension(dim)
	if err != nil {
		return nil, invalidInput(op, err)
	}
	secondary, err := taxonomy.ForDimension(dim.Other())
	if err != nil {
		return nil, invalidInput(op, err)
	}

	g, ranges, err := s.resolver.ResolveStrings(req.Granularity, string(mode), req.Start, req.End)
	if err != nil {
		return nil, invalidInput(op, err)
	}
	if ranges.Current.End.After(s.resolver.Yesterday()) {
		return nil, invalidInput(op, &period.InputError{Field: "end", Message: "must not be later than yesterday (UTC)"})
	}

	if !primary.Has(req.PrimaryID) {
		return nil, unknownEntity(op, string(dim), req.PrimaryID)
	}
	if req.SecondaryID != "" && !secondary.Has(req.SecondaryID) {
		return nil, unknownEntity(op, string(dim.Other()), req.SecondaryID)
	}

	cur, prev := period.AxesFor(g, ranges)
	return &query{
		dim:         dim,
		granularity: g,
		ranges:      ranges,
		current:     cur,
		previous:    prev,
		primary:     primary,
		secondary:   secondary,
		primaryID:   req.PrimaryID,
		secondaryID: req.SecondaryID,
		level:       LevelFor(req.PrimaryID, req.SecondaryID),
	}, nil
}

func (s *Service) fetch(ctx context.Context, op string, q *query, p resilience.Priority) (aggregate.Result, error) {
	window := q.current.Coverage().Union(q.previous.Coverage())
	upReq := upstream.NewTimeByPathRequest(window, q.granularity.Monthly(), s.query)

	resp, err := s.runner.RunReportSafe(ctx, upReq, resilience.Options{Priority: p})
	if err != nil {
		derr := upstreamError(op, err)
		s.log.Warn("Drilldown upstream call failed",
			logger.String("dimension", string(q.dim)),
			logger.String("primary_id", q.primaryID),
			logger.String("kind", string(derr.Kind)),
			logger.Error(err),
		)
		return aggregate.Result{}, derr
	}

	rows := s.toRawRows(resp)
	res := aggregate.Aggregate(rows, aggregate.Params{
		Current:           q.current,
		Previous:          q.previous,
		Primary:           q.primary,
		PrimaryID:         q.primaryID,
		Secondary:         q.secondary,
		SecondaryFilterID: q.secondaryID,
	})
	s.log.Debug("Drilldown aggregated",
		logger.String("window", window.String()),
		logger.String("primary_id", q.primaryID),
		logger.Bool("filtered", q.secondaryID != ""),
		logger.Int("rows", len(rows)),
		logger.Float64("current_total", res.CurrentTotal),
		logger.Float64("previous_total", res.PreviousTotal),
	)
	return res, nil
}

// toRawRows reads column 0 as time, column 1 as path and metric 0 as the
// count. Rows missing a column or with a non-numeric count are dropped.
func (s *Service) toRawRows(resp *upstream.ReportResponse) []aggregate.RawRow {
	rows := make([]aggregate.RawRow, 0, len(resp.Rows))
	skipped := 0
	for _, r := range resp.Rows {
		if len(r.DimensionValues) < 2 || len(r.MetricValues) < 1 {
			skipped++
			continue
		}
		v, err := strconv.ParseFloat(r.MetricValues[0].Value, 64)
		if err != nil {
			skipped++
			continue
		}
		rows = append(rows, aggregate.RawRow{
			TimeKey: r.DimensionValues[0].Value,
			Path:    r.DimensionValues[1].Value,
			Value:   v,
		})
	}
	if skipped > 0 {
		s.log.Warn("Dropped malformed report rows", logger.Int("skipped", skipped))
	}
	return rows
}

package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	infraerrors "github.com/jonesrussell/north-cloud/insights/infrastructure/errors"
	"github.com/jonesrussell/north-cloud/insights/infrastructure/logger"
)

const (
	compositeName    = "by_time_path"
	compositePageMax = 1000
	errorBodyLimit   = 4096
)

// ElasticsearchConfig maps page-view documents onto report columns.
type ElasticsearchConfig struct {
	Index          string
	TimestampField string
	PathField      string
	HostField      string
	// CountField is summed per bucket. Empty counts documents.
	CountField string
	Timeout    time.Duration
	Debug      bool
}

func (c *ElasticsearchConfig) setDefaults() {
	if c.Index == "" {
		c.Index = "pageviews-*"
	}
	if c.TimestampField == "" {
		c.TimestampField = "@timestamp"
	}
	if c.PathField == "" {
		c.PathField = "page.path"
	}
	if c.HostField == "" {
		c.HostField = "page.host"
	}
}

// ElasticsearchTransport answers reports from raw page-view events with a
// composite aggregation over (time bucket, path).
type ElasticsearchTransport struct {
	cfg    ElasticsearchConfig
	client *es.Client
	log    logger.Logger
}

// NewElasticsearchTransport returns a transport querying cfg.Index.
func NewElasticsearchTransport(cfg ElasticsearchConfig, client *es.Client, log logger.Logger) (*ElasticsearchTransport, error) {
	if client == nil {
		return nil, errors.New("elasticsearch client is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	cfg.setDefaults()
	return &ElasticsearchTransport{cfg: cfg, client: client, log: log}, nil
}

// Resource names the index pattern being queried.
func (t *ElasticsearchTransport) Resource() string {
	return "runReport:" + t.cfg.Index
}

type compositeBucket struct {
	Key      map[string]any `json:"key"`
	DocCount int64          `json:"doc_count"`
	Count    *struct {
		Value float64 `json:"value"`
	} `json:"count,omitempty"`
}

type compositeResponse struct {
	Aggregations map[string]struct {
		AfterKey map[string]any    `json:"after_key"`
		Buckets  []compositeBucket `json:"buckets"`
	} `json:"aggregations"`
}

// RunReport pages through the composite aggregation until after_key runs out.
// req.Limit only sizes each page.
func (t *ElasticsearchTransport) RunReport(ctx context.Context, req *ReportRequest) (*ReportResponse, error) {
	window, err := req.Window()
	if err != nil {
		return nil, err
	}

	out := &ReportResponse{}
	var after map[string]any
	for range maxPages {
		query := t.buildQuery(req, window.Start, window.End, after)
		page, err := t.search(ctx, query)
		if err != nil {
			return nil, err
		}

		agg, ok := page.Aggregations[compositeName]
		if !ok {
			return nil, fmt.Errorf("%w: aggregation %q missing", ErrMalformedResponse, compositeName)
		}
		for _, b := range agg.Buckets {
			out.Rows = append(out.Rows, t.toRow(b))
		}
		if len(agg.Buckets) == 0 || agg.AfterKey == nil {
			out.RowCount = int64(len(out.Rows))
			return out, nil
		}
		after = agg.AfterKey
	}

	t.log.Warn("Composite paging stopped at page limit",
		logger.String("index", t.cfg.Index),
		logger.Int("rows", len(out.Rows)),
	)
	return nil, fmt.Errorf("composite aggregation on %s: %w (%d rows)", t.cfg.Index, ErrPageLimit, len(out.Rows))
}

func (t *ElasticsearchTransport) buildQuery(req *ReportRequest, start, end time.Time, after map[string]any) map[string]any {
	interval, format := "1d", "yyyyMMdd"
	if req.Monthly() {
		interval, format = "1M", "yyyyMM"
	}

	filters := []any{
		map[string]any{
			"range": map[string]any{
				t.cfg.TimestampField: map[string]any{
					"gte":    start.Format(time.DateOnly),
					"lte":    end.Format(time.DateOnly),
					"format": "yyyy-MM-dd",
				},
			},
		},
	}
	if host := req.HostFilter(); host != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{t.cfg.HostField: host},
		})
	}

	size := compositePageMax
	if req.Limit > 0 && req.Limit < compositePageMax {
		size = int(req.Limit)
	}

	composite := map[string]any{
		"size": size,
		"sources": []any{
			map[string]any{"time": map[string]any{
				"date_histogram": map[string]any{
					"field":             t.cfg.TimestampField,
					"calendar_interval": interval,
					"format":            format,
					"time_zone":         "UTC",
				},
			}},
			map[string]any{"path": map[string]any{
				"terms": map[string]any{"field": t.cfg.PathField},
			}},
		},
	}
	if after != nil {
		composite["after"] = after
	}

	agg := map[string]any{"composite": composite}
	if t.cfg.CountField != "" {
		agg["aggs"] = map[string]any{
			"count": map[string]any{"sum": map[string]any{"field": t.cfg.CountField}},
		}
	}

	return map[string]any{
		"size":  0,
		"query": map[string]any{"bool": map[string]any{"filter": filters}},
		"aggs":  map[string]any{compositeName: agg},
	}
}

func (t *ElasticsearchTransport) search(ctx context.Context, query map[string]any) (*compositeResponse, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	if t.cfg.Debug {
		t.log.Debug("Elasticsearch report query", logger.String("query", buf.String()))
	}

	opts := []func(*esapi.SearchRequest){
		t.client.Search.WithContext(ctx),
		t.client.Search.WithIndex(t.cfg.Index),
		t.client.Search.WithBody(&buf),
	}
	if t.cfg.Timeout > 0 {
		opts = append(opts, t.client.Search.WithTimeout(t.cfg.Timeout))
	}

	res, err := t.client.Search(opts...)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, errorBodyLimit))
		return nil, &infraerrors.HTTPError{
			StatusCode: res.StatusCode,
			Status:     res.Status(),
			Body:       string(body),
			Message:    strings.TrimSpace(string(body)),
		}
	}

	var out compositeResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return &out, nil
}

func (t *ElasticsearchTransport) toRow(b compositeBucket) Row {
	value := float64(b.DocCount)
	if b.Count != nil {
		value = b.Count.Value
	}
	return Row{
		DimensionValues: []Value{
			{Value: keyString(b.Key["time"])},
			{Value: keyString(b.Key["path"])},
		},
		MetricValues: []Value{{Value: strconv.FormatFloat(value, 'f', -1, 64)}},
	}
}

func keyString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

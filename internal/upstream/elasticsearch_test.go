package upstream_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infraerrors "github.com/jonesrussell/north-cloud/insights/infrastructure/errors"
	"github.com/jonesrussell/north-cloud/insights/internal/upstream"
)

func newESTransport(t *testing.T, cfg upstream.ElasticsearchConfig, h http.HandlerFunc) *upstream.ElasticsearchTransport {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := es.NewClient(es.Config{Addresses: []string{srv.URL}, DisableRetry: true})
	require.NoError(t, err)

	tr, err := upstream.NewElasticsearchTransport(cfg, client, nil)
	require.NoError(t, err)
	return tr
}

func TestElasticsearchTransport_CompositePaging(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	tr := newESTransport(t, upstream.ElasticsearchConfig{Index: "pageviews-*", CountField: "views"}, func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, "/pageviews-*/_search", r.URL.Path)

		var body map[string]any
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			return
		}
		aggs := body["aggs"].(map[string]any)["by_time_path"].(map[string]any)
		composite := aggs["composite"].(map[string]any)
		assert.NotNil(t, aggs["aggs"], "sum sub-aggregation expected when a count field is set")

		switch n {
		case 1:
			assert.Nil(t, composite["after"])
			_, _ = w.Write([]byte(`{"aggregations":{"by_time_path":{
				"after_key":{"time":"20240301","path":"/moguer/"},
				"buckets":[
					{"key":{"time":"20240301","path":"/almonte/"},"doc_count":2,"count":{"value":5}},
					{"key":{"time":"20240301","path":"/moguer/"},"doc_count":1,"count":{"value":1}}
				]}}}`))
		default:
			assert.Equal(t, map[string]any{"time": "20240301", "path": "/moguer/"}, composite["after"])
			_, _ = w.Write([]byte(`{"aggregations":{"by_time_path":{"buckets":[]}}}`))
		}
	})

	req := upstream.NewTimeByPathRequest(window(t, "2024-03-01", "2024-03-02"), false, upstream.QueryOptions{})
	resp, err := tr.RunReport(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, resp.Rows, 2)
	assert.Equal(t, "20240301", resp.Rows[0].DimensionValues[0].Value)
	assert.Equal(t, "/almonte/", resp.Rows[0].DimensionValues[1].Value)
	assert.Equal(t, "5", resp.Rows[0].MetricValues[0].Value)
	assert.Equal(t, int64(2), resp.RowCount)
	assert.Equal(t, int32(2), calls.Load())
}

func TestElasticsearchTransport_LimitSizesPagesOnly(t *testing.T) {
	t.Parallel()

	pages := [][]string{
		{`{"key":{"time":"20240301","path":"/a/"},"doc_count":1}`, `{"key":{"time":"20240301","path":"/b/"},"doc_count":1}`},
		{`{"key":{"time":"20240301","path":"/c/"},"doc_count":1}`, `{"key":{"time":"20240302","path":"/a/"},"doc_count":1}`},
		{`{"key":{"time":"20240302","path":"/b/"},"doc_count":1}`, `{"key":{"time":"20240302","path":"/c/"},"doc_count":1}`},
	}
	var calls atomic.Int32
	tr := newESTransport(t, upstream.ElasticsearchConfig{}, func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1

		var body map[string]any
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			return
		}
		composite := body["aggs"].(map[string]any)["by_time_path"].(map[string]any)["composite"].(map[string]any)
		assert.InDelta(t, 2, composite["size"], 0)

		if n >= len(pages) {
			_, _ = w.Write([]byte(`{"aggregations":{"by_time_path":{"buckets":[]}}}`))
			return
		}
		_, _ = fmt.Fprintf(w, `{"aggregations":{"by_time_path":{"after_key":{"page":%d},"buckets":[%s]}}}`,
			n, strings.Join(pages[n], ","))
	})

	req := upstream.NewTimeByPathRequest(window(t, "2024-03-01", "2024-03-02"), false, upstream.QueryOptions{Limit: 2})
	resp, err := tr.RunReport(context.Background(), req)
	require.NoError(t, err)

	assert.Len(t, resp.Rows, 6)
	assert.Equal(t, int64(6), resp.RowCount)
	assert.Equal(t, int32(4), calls.Load())
}

func TestElasticsearchTransport_PageLimitIsAnError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	tr := newESTransport(t, upstream.ElasticsearchConfig{}, func(w http.ResponseWriter, _ *http.Request) {
		n := calls.Add(1)
		_, _ = fmt.Fprintf(w, `{"aggregations":{"by_time_path":{"after_key":{"page":%d},"buckets":[
			{"key":{"time":"20240301","path":"/p%d/"},"doc_count":1}
		]}}}`, n, n)
	})

	resp, err := tr.RunReport(context.Background(), upstream.NewTimeByPathRequest(window(t, "2024-03-01", "2024-03-01"), false, upstream.QueryOptions{}))
	require.ErrorIs(t, err, upstream.ErrPageLimit)
	require.ErrorIs(t, err, upstream.ErrMalformedResponse)
	assert.Nil(t, resp)
	assert.Equal(t, int32(100), calls.Load())
}

func TestElasticsearchTransport_MonthlyDocCount(t *testing.T) {
	t.Parallel()

	tr := newESTransport(t, upstream.ElasticsearchConfig{}, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			return
		}
		aggs := body["aggs"].(map[string]any)["by_time_path"].(map[string]any)
		sources := aggs["composite"].(map[string]any)["sources"].([]any)
		hist := sources[0].(map[string]any)["time"].(map[string]any)["date_histogram"].(map[string]any)
		assert.Equal(t, "1M", hist["calendar_interval"])
		assert.Equal(t, "yyyyMM", hist["format"])
		assert.Nil(t, aggs["aggs"])

		_, _ = w.Write([]byte(`{"aggregations":{"by_time_path":{"buckets":[
			{"key":{"time":"202403","path":"/playas/"},"doc_count":7}
		]}}}`))
	})

	req := upstream.NewTimeByPathRequest(window(t, "2023-04-01", "2024-03-31"), true, upstream.QueryOptions{HostName: "example.org"})
	resp, err := tr.RunReport(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, "202403", resp.Rows[0].DimensionValues[0].Value)
	assert.Equal(t, "7", resp.Rows[0].MetricValues[0].Value)
	assert.Equal(t, "runReport:pageviews-*", tr.Resource())
}

func TestElasticsearchTransport_ErrorStatus(t *testing.T) {
	t.Parallel()

	tr := newESTransport(t, upstream.ElasticsearchConfig{}, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"search_phase_execution_exception"}`))
	})

	_, err := tr.RunReport(context.Background(), upstream.NewTimeByPathRequest(window(t, "2024-03-01", "2024-03-01"), false, upstream.QueryOptions{}))
	require.Error(t, err)

	code, ok := infraerrors.GetHTTPStatusCode(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

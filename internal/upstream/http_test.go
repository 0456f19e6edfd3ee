package upstream_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infraerrors "github.com/jonesrussell/north-cloud/insights/infrastructure/errors"
	"github.com/jonesrussell/north-cloud/insights/internal/upstream"
)

func newHTTPTransport(t *testing.T, h http.HandlerFunc) *upstream.HTTPTransport {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	tr, err := upstream.NewHTTPTransport(upstream.HTTPConfig{
		BaseURL:     srv.URL + "/",
		PropertyID:  "123",
		AccessToken: "secret",
	}, srv.Client(), nil)
	require.NoError(t, err)
	return tr
}

func row(day, path string, v int) upstream.Row {
	return upstream.Row{
		DimensionValues: []upstream.Value{{Value: day}, {Value: path}},
		MetricValues:    []upstream.Value{{Value: strconv.Itoa(v)}},
	}
}

func TestNewHTTPTransport_Validation(t *testing.T) {
	t.Parallel()

	_, err := upstream.NewHTTPTransport(upstream.HTTPConfig{PropertyID: "1"}, nil, nil)
	require.Error(t, err)
	_, err = upstream.NewHTTPTransport(upstream.HTTPConfig{BaseURL: "http://x"}, nil, nil)
	require.Error(t, err)
}

func TestHTTPTransport_RunReportPages(t *testing.T) {
	t.Parallel()

	all := []upstream.Row{
		row("20240301", "/almonte/", 1),
		row("20240301", "/moguer/", 2),
		row("20240302", "/almonte/", 3),
	}
	var calls atomic.Int32

	tr := newHTTPTransport(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/properties/123:runReport", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req upstream.ReportRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		end := min(req.Offset+req.Limit, int64(len(all)))
		_ = json.NewEncoder(w).Encode(upstream.ReportResponse{
			Rows:     all[req.Offset:end],
			RowCount: int64(len(all)),
		})
	})

	req := upstream.NewTimeByPathRequest(window(t, "2024-03-01", "2024-03-02"), false, upstream.QueryOptions{Limit: 2})
	resp, err := tr.RunReport(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, all, resp.Rows)
	assert.Equal(t, int64(3), resp.RowCount)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int64(0), req.Offset, "caller request must not be mutated")
}

func TestHTTPTransport_EmptyReport(t *testing.T) {
	t.Parallel()

	tr := newHTTPTransport(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	resp, err := tr.RunReport(context.Background(), upstream.NewTimeByPathRequest(window(t, "2024-03-01", "2024-03-01"), false, upstream.QueryOptions{}))
	require.NoError(t, err)
	assert.Empty(t, resp.Rows)
}

func TestHTTPTransport_ErrorStatus(t *testing.T) {
	t.Parallel()

	tr := newHTTPTransport(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Exhausted property tokens per hour","status":"RESOURCE_EXHAUSTED"}}`))
	})

	_, err := tr.RunReport(context.Background(), upstream.NewTimeByPathRequest(window(t, "2024-03-01", "2024-03-01"), false, upstream.QueryOptions{}))
	require.Error(t, err)

	herr, ok := infraerrors.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, herr.StatusCode)
	assert.Equal(t, "RESOURCE_EXHAUSTED", herr.Reason)
	assert.True(t, herr.Temporary())
}

func TestHTTPTransport_MalformedBody(t *testing.T) {
	t.Parallel()

	tr := newHTTPTransport(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := tr.RunReport(context.Background(), upstream.NewTimeByPathRequest(window(t, "2024-03-01", "2024-03-01"), false, upstream.QueryOptions{}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, upstream.ErrMalformedResponse))
}

func TestHTTPTransport_PageLimitIsAnError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	tr := newHTTPTransport(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(upstream.ReportResponse{
			Rows:     []upstream.Row{row("20240301", "/almonte/", 1)},
			RowCount: 1000,
		})
	})

	resp, err := tr.RunReport(context.Background(), upstream.NewTimeByPathRequest(window(t, "2024-03-01", "2024-03-01"), false, upstream.QueryOptions{Limit: 1}))
	require.ErrorIs(t, err, upstream.ErrPageLimit)
	assert.Nil(t, resp, "partial rows are not returned")
	assert.Equal(t, int32(100), calls.Load())
}

func TestHTTPTransport_Resource(t *testing.T) {
	t.Parallel()

	tr := newHTTPTransport(t, func(http.ResponseWriter, *http.Request) {})
	assert.Equal(t, "runReport:123", tr.Resource())
}

package elasticsearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"http://elasticsearch:9200":  "http://elasticsearch:9200",
		"https://elasticsearch:9200": "https://elasticsearch:9200",
		"elasticsearch:9200":         "http://elasticsearch:9200",
		"":                           "http://localhost:9200",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeURL(in), in)
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	var unhealthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		if unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"cluster_block_exception"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client, err := es.NewClient(es.Config{Addresses: []string{srv.URL}, MaxRetries: 0, DisableRetry: true})
	require.NoError(t, err)

	require.NoError(t, Ping(context.Background(), client))

	unhealthy.Store(true)
	err = Ping(context.Background(), client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

//go:build integration

package upstream_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tces "github.com/testcontainers/testcontainers-go/modules/elasticsearch"
	"github.com/testcontainers/testcontainers-go/wait"

	infraconfig "github.com/jonesrussell/north-cloud/insights/infrastructure/config"
	infraes "github.com/jonesrussell/north-cloud/insights/infrastructure/elasticsearch"
	"github.com/jonesrussell/north-cloud/insights/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/insights/internal/upstream"
)

const (
	esImage          = "docker.elastic.co/elasticsearch/elasticsearch:8.11.0"
	esStartupTimeout = 90 * time.Second
	esIndex          = "pageviews-2025.10"
	esMapping        = `{"mappings":{"properties":{
		"@timestamp":{"type":"date"},
		"page":{"properties":{"path":{"type":"keyword"},"host":{"type":"keyword"}}},
		"views":{"type":"long"}}}}`
)

func startElasticsearch(t *testing.T) *es.Client {
	t.Helper()
	ctx := context.Background()

	ctr, err := tces.Run(ctx, esImage,
		testcontainers.WithEnv(map[string]string{"xpack.security.enabled": "false"}),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/").WithPort("9200/tcp").WithStartupTimeout(esStartupTimeout),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	address, err := ctr.PortEndpoint(ctx, "9200/tcp", "http")
	require.NoError(t, err)

	client, err := infraes.NewClient(ctx, infraconfig.ElasticsearchConfig{URL: address}, logger.NewNop())
	require.NoError(t, err)
	return client
}

func seed(t *testing.T, client *es.Client, docs []string) {
	t.Helper()
	ctx := context.Background()

	res, err := client.Indices.Create(esIndex,
		client.Indices.Create.WithBody(strings.NewReader(esMapping)),
		client.Indices.Create.WithContext(ctx),
	)
	require.NoError(t, err)
	require.False(t, res.IsError(), res.String())
	_ = res.Body.Close()

	for _, doc := range docs {
		res, err = client.Index(esIndex, strings.NewReader(doc),
			client.Index.WithRefresh("true"),
			client.Index.WithContext(ctx),
		)
		require.NoError(t, err)
		require.False(t, res.IsError(), res.String())
		_ = res.Body.Close()
	}
}

func view(ts, host, path string, n int) string {
	return fmt.Sprintf(`{"@timestamp":%q,"page":{"host":%q,"path":%q},"views":%d}`, ts, host, path, n)
}

func TestElasticsearchTransport_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("container test")
	}

	client := startElasticsearch(t)
	seed(t, client, []string{
		view("2025-10-17T08:00:00Z", "example.org", "/almonte/naturaleza/", 3),
		view("2025-10-17T21:30:00Z", "example.org", "/almonte/naturaleza/", 2),
		view("2025-10-18T10:00:00Z", "example.org", "/moguer/playas/", 4),
		view("2025-10-18T10:00:00Z", "other.org", "/moguer/playas/", 40),
		view("2025-10-23T23:59:00Z", "example.org", "/el-rocio/", 1),
		view("2025-10-24T00:01:00Z", "example.org", "/almonte/", 9),
	})

	tr, err := upstream.NewElasticsearchTransport(upstream.ElasticsearchConfig{
		Index:      "pageviews-*",
		CountField: "views",
	}, client, logger.NewNop())
	require.NoError(t, err)

	req := upstream.NewTimeByPathRequest(window(t, "2025-10-17", "2025-10-23"), false,
		upstream.QueryOptions{HostName: "example.org"})

	resp, err := tr.RunReport(context.Background(), req)
	require.NoError(t, err)

	got := make(map[string]string, len(resp.Rows))
	for _, r := range resp.Rows {
		got[r.DimensionValues[0].Value+" "+r.DimensionValues[1].Value] = r.MetricValues[0].Value
	}
	assert.Equal(t, map[string]string{
		"20251017 /almonte/naturaleza/": "5",
		"20251018 /moguer/playas/":      "4",
		"20251023 /el-rocio/":           "1",
	}, got)
	assert.Equal(t, int64(3), resp.RowCount)
}

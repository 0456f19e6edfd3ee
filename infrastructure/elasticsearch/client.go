// Package elasticsearch opens verified go-elasticsearch clients.
package elasticsearch

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	infraconfig "github.com/jonesrussell/north-cloud/insights/infrastructure/config"
	"github.com/jonesrussell/north-cloud/insights/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/insights/infrastructure/retry"
)

const pingTimeout = 5 * time.Second

// connectRetry governs the startup ping loop.
var connectRetry = retry.Config{
	MaxAttempts: 5,
	BaseDelay:   2 * time.Second,
	Factor:      2,
	MaxDelay:    10 * time.Second,
	IsRetryable: func(error) bool { return true },
}

// NewClient builds a client for cfg and pings the cluster until it answers or
// the retry budget runs out.
func NewClient(ctx context.Context, cfg infraconfig.ElasticsearchConfig, log logger.Logger) (*es.Client, error) {
	cfg.SetDefaults()
	url := normalizeURL(cfg.URL)

	client, err := es.NewClient(es.Config{
		Addresses:  []string{url},
		Username:   cfg.Username,
		Password:   cfg.Password,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	log.Info("Verifying Elasticsearch connection", logger.String("url", url))

	err = retry.Do(ctx, connectRetry, func(ctx context.Context) error {
		return Ping(ctx, client)
	})
	if err != nil {
		return nil, fmt.Errorf("connect to elasticsearch %s: %w", url, err)
	}

	log.Info("Elasticsearch connection established", logger.String("url", url))
	return client, nil
}

// Ping checks the cluster answers within a short timeout.
func Ping(ctx context.Context, client *es.Client) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	res, err := client.Ping(client.Ping.WithContext(pingCtx))
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("ping returned %s: %s", res.Status(), strings.TrimSpace(string(body)))
	}
	return nil
}

func normalizeURL(url string) string {
	switch {
	case url == "":
		return "http://localhost:9200"
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		return url
	default:
		return "http://" + url
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	infraconfig "github.com/jonesrussell/north-cloud/insights/infrastructure/config"
	infraes "github.com/jonesrussell/north-cloud/insights/infrastructure/elasticsearch"
	infrahttp "github.com/jonesrussell/north-cloud/insights/infrastructure/http"
	"github.com/jonesrussell/north-cloud/insights/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/insights/infrastructure/profiling"
	infraredis "github.com/jonesrussell/north-cloud/insights/infrastructure/redis"
	"github.com/jonesrussell/north-cloud/insights/infrastructure/retry"
	"github.com/jonesrussell/north-cloud/insights/internal/api"
	"github.com/jonesrussell/north-cloud/insights/internal/config"
	"github.com/jonesrussell/north-cloud/insights/internal/drilldown"
	"github.com/jonesrussell/north-cloud/insights/internal/period"
	"github.com/jonesrussell/north-cloud/insights/internal/resilience"
	"github.com/jonesrussell/north-cloud/insights/internal/telemetry"
	"github.com/jonesrussell/north-cloud/insights/internal/upstream"
)

const connectTimeout = 30 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log, err := createLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	if pprofServer := profiling.StartPprof(cfg.Profiling, log); pprofServer != nil {
		defer func() { _ = pprofServer.Close() }()
	}
	profiler, err := profiling.StartPyroscope(cfg.Service.Name, cfg.Service.Version, cfg.Profiling, log)
	if err != nil {
		log.Warn("Continuous profiling disabled", logger.Error(err))
	}
	defer func() { _ = profiler.Stop() }()

	return runServer(cfg, log)
}

// loadConfig loads and validates configuration.
func loadConfig() (*config.Config, error) {
	configPath := infraconfig.GetConfigPath("config.yml")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, fmt.Errorf("validate config: %w", validationErr)
	}
	return cfg, nil
}

// createLogger creates a logger instance from configuration.
func createLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(logger.String("service", cfg.Service.Name)), nil
}

// transport builds the configured upstream. ping is set for drivers with a
// health check of their own.
func transport(ctx context.Context, cfg *config.Config, log logger.Logger) (resilience.Transport, func() error, error) {
	switch cfg.Upstream.Driver {
	case config.DriverElasticsearch:
		client, err := infraes.NewClient(ctx, cfg.Elasticsearch.ElasticsearchConfig, log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect elasticsearch: %w", err)
		}
		es, err := upstream.NewElasticsearchTransport(upstream.ElasticsearchConfig{
			Index:          cfg.Elasticsearch.Index,
			TimestampField: cfg.Elasticsearch.TimestampField,
			PathField:      cfg.Elasticsearch.PathField,
			HostField:      cfg.Elasticsearch.HostField,
			CountField:     cfg.Elasticsearch.CountField,
			Timeout:        cfg.Upstream.Timeout,
			Debug:          cfg.Service.Debug,
		}, client, log)
		if err != nil {
			return nil, nil, err
		}
		ping := func() error {
			return infraes.Ping(context.Background(), client)
		}
		return es, ping, nil

	default:
		httpClient := infrahttp.NewClient(infrahttp.ClientConfig{
			Timeout:             cfg.Upstream.Timeout,
			MaxIdleConnsPerHost: cfg.Resilience.MaxConcurrent,
		})
		h, err := upstream.NewHTTPTransport(upstream.HTTPConfig{
			BaseURL:     cfg.Upstream.BaseURL,
			PropertyID:  cfg.Upstream.PropertyID,
			AccessToken: cfg.Upstream.AccessToken,
		}, httpClient, log)
		if err != nil {
			return nil, nil, err
		}
		return h, nil, nil
	}
}

// reportCache connects Redis when the cache is enabled. A failed connection
// leaves the service running without a cache.
func reportCache(ctx context.Context, cfg *config.Config, log logger.Logger) (*resilience.RedisCache, *goredis.Client) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	client, err := infraredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Warn("Report cache disabled: Redis unavailable",
			logger.String("address", cfg.Redis.Address),
			logger.Error(err),
		)
		return nil, nil
	}
	log.Info("Report cache enabled",
		logger.String("address", cfg.Redis.Address),
		logger.Duration("ttl", cfg.Cache.TTL),
	)
	return resilience.NewRedisCache(client, cfg.Cache.TTL), client
}

// runServer creates all dependencies and starts the HTTP server.
func runServer(cfg *config.Config, log logger.Logger) int {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	reportTransport, esPing, err := transport(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to create upstream transport", logger.Error(err))
		return 1
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	tel := telemetry.NewProvider(registry)

	opts := []resilience.Option{resilience.WithTelemetry(tel)}
	cache, redisClient := reportCache(ctx, cfg, log)
	var redisPing func() error
	if cache != nil {
		opts = append(opts, resilience.WithCache(cache))
		redisPing = infraredis.PingFunc(redisClient)
		defer func() { _ = redisClient.Close() }()
	}

	rc := cfg.Resilience
	client := resilience.New(reportTransport, resilience.Config{
		MaxConcurrent:    rc.MaxConcurrent,
		BreakerThreshold: rc.BreakerThreshold,
		BreakerCooldown:  rc.BreakerCooldown,
		Retry: retry.Config{
			MaxAttempts: rc.MaxAttempts,
			BaseDelay:   rc.BaseDelay,
			Factor:      rc.Factor,
			MaxDelay:    rc.MaxDelay,
			Jitter:      rc.Jitter,
		},
		RequestsPerSecond: rc.RequestsPerSecond,
		Burst:             rc.Burst,
	}, log, opts...)

	resolver := period.NewResolver(nil)
	service := drilldown.NewService(client, resolver, upstream.QueryOptions{
		Metric:   cfg.Upstream.Metric,
		HostName: cfg.Upstream.HostFilter,
		Limit:    int64(cfg.Upstream.RowLimit),
	}, log)

	handler := api.NewHandler(service, resolver, client, log)
	server := api.NewServer(cfg, api.ServerDeps{
		Handler:           handler,
		Telemetry:         tel,
		RedisPing:         redisPing,
		ElasticsearchPing: esPing,
	}, log)

	log.Info("Insights starting",
		logger.Int("port", cfg.Service.Port),
		logger.String("upstream", client.Resource()),
		logger.String("driver", cfg.Upstream.Driver),
	)

	if err = server.Run(); err != nil {
		log.Error("Server error", logger.Error(err))
		return 1
	}

	client.Wait()
	log.Info("Insights exited cleanly")
	return 0
}

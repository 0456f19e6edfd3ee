// Package config loads the insights service configuration.
package config

import (
	"time"

	infraconfig "github.com/jonesrussell/north-cloud/insights/infrastructure/config"
	"github.com/jonesrussell/north-cloud/insights/infrastructure/profiling"
)

// Upstream drivers.
const (
	DriverHTTP          = "http"
	DriverElasticsearch = "elasticsearch"
)

// Default configuration values.
const (
	defaultServiceName = "insights"
	defaultServicePort = 8097
	defaultVersion     = "0.1.0"

	defaultUpstreamURL     = "https://analyticsdata.googleapis.com"
	defaultUpstreamMetric  = "screenPageViews"
	defaultUpstreamTimeout = 30 * time.Second
	defaultRowLimit        = 10000

	defaultESIndex          = "pageviews-*"
	defaultESTimestampField = "@timestamp"
	defaultESPathField      = "page.path"
	defaultESHostField      = "page.host"

	defaultMaxConcurrent    = 4
	defaultBreakerThreshold = 3
	defaultBreakerCooldown  = 60 * time.Second
	defaultMaxAttempts      = 3
	defaultBaseDelay        = time.Second
	defaultBackoffFactor    = 2.0
	defaultMaxDelay         = 8 * time.Second
	defaultJitter           = 250 * time.Millisecond

	defaultCacheTTL = 10 * time.Minute
)

// Config holds the application configuration.
type Config struct {
	Service       ServiceConfig             `yaml:"service"`
	Upstream      UpstreamConfig            `yaml:"upstream"`
	Elasticsearch ElasticsearchConfig       `yaml:"elasticsearch"`
	Resilience    ResilienceConfig          `yaml:"resilience"`
	Cache         CacheConfig               `yaml:"cache"`
	Redis         infraconfig.RedisConfig   `yaml:"redis"`
	Logging       infraconfig.LoggingConfig `yaml:"logging"`
	Profiling     profiling.Config          `yaml:"profiling"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name         string        `yaml:"name"`
	Version      string        `yaml:"version"`
	Port         int           `env:"INSIGHTS_PORT" yaml:"port"`
	Debug        bool          `env:"APP_DEBUG"     yaml:"debug"`
	CORSOrigins  []string      `yaml:"cors_origins"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// UpstreamConfig selects and configures the report transport.
type UpstreamConfig struct {
	Driver      string        `env:"UPSTREAM_DRIVER"       yaml:"driver"`
	BaseURL     string        `env:"UPSTREAM_BASE_URL"     yaml:"base_url"`
	PropertyID  string        `env:"UPSTREAM_PROPERTY_ID"  yaml:"property_id"`
	AccessToken string        `env:"UPSTREAM_ACCESS_TOKEN" yaml:"access_token"`
	Metric      string        `yaml:"metric"`
	HostFilter  string        `env:"UPSTREAM_HOST_FILTER"  yaml:"host_filter"`
	RowLimit    int           `yaml:"row_limit"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ElasticsearchConfig is the connection block plus the index mapping used
// when the upstream driver is elasticsearch.
type ElasticsearchConfig struct {
	infraconfig.ElasticsearchConfig `yaml:",inline"`

	Index          string `env:"ELASTICSEARCH_INDEX" yaml:"index"`
	TimestampField string `yaml:"timestamp_field"`
	PathField      string `yaml:"path_field"`
	HostField      string `yaml:"host_field"`
	CountField     string `yaml:"count_field"`
}

// ResilienceConfig tunes the resilient upstream client.
type ResilienceConfig struct {
	MaxConcurrent     int           `yaml:"max_concurrent"`
	BreakerThreshold  int           `yaml:"breaker_threshold"`
	BreakerCooldown   time.Duration `yaml:"breaker_cooldown"`
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	Factor            float64       `yaml:"factor"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	Jitter            time.Duration `yaml:"jitter"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// CacheConfig controls the Redis report cache.
type CacheConfig struct {
	Enabled bool          `env:"CACHE_ENABLED" yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// Load loads configuration from the specified path.
func Load(path string) (*Config, error) {
	return infraconfig.LoadWithDefaults[Config](path, setDefaults)
}

func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setUpstreamDefaults(&cfg.Upstream)
	setElasticsearchDefaults(&cfg.Elasticsearch)
	setResilienceDefaults(&cfg.Resilience)
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = defaultCacheTTL
	}
	cfg.Redis.SetDefaults()
	cfg.Logging.SetDefaults()
	cfg.Profiling.SetDefaults()
}

func setServiceDefaults(svc *ServiceConfig) {
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = defaultVersion
	}
	if svc.Port == 0 {
		svc.Port = defaultServicePort
	}
}

func setUpstreamDefaults(up *UpstreamConfig) {
	if up.Driver == "" {
		up.Driver = DriverHTTP
	}
	if up.BaseURL == "" {
		up.BaseURL = defaultUpstreamURL
	}
	if up.Metric == "" {
		up.Metric = defaultUpstreamMetric
	}
	if up.RowLimit == 0 {
		up.RowLimit = defaultRowLimit
	}
	if up.Timeout == 0 {
		up.Timeout = defaultUpstreamTimeout
	}
}

func setElasticsearchDefaults(es *ElasticsearchConfig) {
	es.ElasticsearchConfig.SetDefaults()
	if es.Index == "" {
		es.Index = defaultESIndex
	}
	if es.TimestampField == "" {
		es.TimestampField = defaultESTimestampField
	}
	if es.PathField == "" {
		es.PathField = defaultESPathField
	}
	if es.HostField == "" {
		es.HostField = defaultESHostField
	}
}

func setResilienceDefaults(r *ResilienceConfig) {
	if r.MaxConcurrent == 0 {
		r.MaxConcurrent = defaultMaxConcurrent
	}
	if r.BreakerThreshold == 0 {
		r.BreakerThreshold = defaultBreakerThreshold
	}
	if r.BreakerCooldown == 0 {
		r.BreakerCooldown = defaultBreakerCooldown
	}
	if r.MaxAttempts == 0 {
		r.MaxAttempts = defaultMaxAttempts
	}
	if r.BaseDelay == 0 {
		r.BaseDelay = defaultBaseDelay
	}
	if r.Factor == 0 {
		r.Factor = defaultBackoffFactor
	}
	if r.MaxDelay == 0 {
		r.MaxDelay = defaultMaxDelay
	}
	if r.Jitter == 0 {
		r.Jitter = defaultJitter
	}
	if r.RequestsPerSecond > 0 && r.Burst == 0 {
		r.Burst = 1
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := infraconfig.ValidatePort("service.port", c.Service.Port); err != nil {
		return err
	}
	if err := c.Upstream.validate(); err != nil {
		return err
	}
	if c.Upstream.Driver == DriverElasticsearch {
		if err := infraconfig.ValidateURL("elasticsearch.url", c.Elasticsearch.URL); err != nil {
			return err
		}
	}
	if err := c.Resilience.validate(); err != nil {
		return err
	}
	if c.Cache.Enabled {
		if err := infraconfig.ValidateRequired("redis.address", c.Redis.Address); err != nil {
			return err
		}
	}
	return c.Logging.Validate()
}

func (up *UpstreamConfig) validate() error {
	switch up.Driver {
	case DriverHTTP:
		if err := infraconfig.ValidateURL("upstream.base_url", up.BaseURL); err != nil {
			return err
		}
		if err := infraconfig.ValidateRequired("upstream.property_id", up.PropertyID); err != nil {
			return err
		}
	case DriverElasticsearch:
	default:
		return &infraconfig.ValidationError{
			Field:   "upstream.driver",
			Message: "must be one of: http, elasticsearch",
		}
	}
	return infraconfig.ValidatePositive("upstream.row_limit", up.RowLimit)
}

func (r *ResilienceConfig) validate() error {
	if err := infraconfig.ValidatePositive("resilience.max_concurrent", r.MaxConcurrent); err != nil {
		return err
	}
	if err := infraconfig.ValidatePositive("resilience.breaker_threshold", r.BreakerThreshold); err != nil {
		return err
	}
	if err := infraconfig.ValidatePositive("resilience.max_attempts", r.MaxAttempts); err != nil {
		return err
	}
	if r.Factor < 1 {
		return &infraconfig.ValidationError{Field: "resilience.factor", Message: "must be at least 1"}
	}
	if r.RequestsPerSecond < 0 {
		return &infraconfig.ValidationError{Field: "resilience.requests_per_second", Message: "must not be negative"}
	}
	return nil
}

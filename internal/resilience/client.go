// Package resilience wraps an upstream report transport with a circuit
// breaker, single-flight sharing, an optional response cache, a priority
// concurrency limiter and retry with backoff, applied in that order.
package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/jonesrussell/north-cloud/insights/infrastructure/circuitbreaker"
	"github.com/jonesrussell/north-cloud/insights/infrastructure/clock"
	"github.com/jonesrussell/north-cloud/insights/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/insights/infrastructure/retry"
	"github.com/jonesrussell/north-cloud/insights/internal/telemetry"
	"github.com/jonesrussell/north-cloud/insights/internal/upstream"
)

// DefaultMaxConcurrent is the in-flight ceiling when none is configured.
const DefaultMaxConcurrent = 4

// Transport executes one report against a backend.
type Transport interface {
	RunReport(ctx context.Context, req *upstream.ReportRequest) (*upstream.ReportResponse, error)
	// Resource is the default circuit breaker key for this backend.
	Resource() string
}

// Config tunes the client.
type Config struct {
	MaxConcurrent int

	BreakerThreshold int
	BreakerCooldown  time.Duration

	// Retry.IsRetryable defaults to IsRetryable and Retry.Clock to Clock.
	Retry retry.Config

	// RequestsPerSecond paces attempts. Zero disables pacing.
	RequestsPerSecond float64
	Burst             int

	Clock clock.Clock
}

// Options apply to a single call.
type Options struct {
	// ResourceKey selects the circuit. Defaults to the transport resource.
	ResourceKey string
	// CacheKey groups identical calls. Defaults to resource plus the
	// serialized request.
	CacheKey string
	Priority Priority
}

// Option configures optional collaborators.
type Option func(*Client)

// WithCache enables the response cache.
func WithCache(c Cache) Option {
	return func(cl *Client) { cl.cache = c }
}

// WithTelemetry records metrics and spans on p.
func WithTelemetry(p *telemetry.Provider) Option {
	return func(cl *Client) { cl.tel = p }
}

// Client is the single shared gateway to the upstream. Construct one per
// process and pass it by reference.
type Client struct {
	transport Transport
	cfg       Config
	log       logger.Logger
	tel       *telemetry.Provider
	cache     Cache

	breaker *circuitbreaker.Registry
	limiter *Limiter
	pacer   *pacer
	group   singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
	running sync.WaitGroup
}

// flight is the detached context shared by every caller of one cache key.
// It is cancelled once the last caller has gone.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// New builds a client around transport.
func New(transport Transport, cfg Config, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.Retry.IsRetryable == nil {
		cfg.Retry.IsRetryable = IsRetryable
	}
	if cfg.Retry.Clock == nil {
		cfg.Retry.Clock = cfg.Clock
	}

	c := &Client{
		transport: transport,
		cfg:       cfg,
		log:       log,
		pacer:     newPacer(cfg.RequestsPerSecond, cfg.Burst),
		flights:   make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.BreakerThreshold,
		Cooldown:         cfg.BreakerCooldown,
		Clock:            cfg.Clock,
		OnStateChange:    c.onBreakerChange,
	})
	c.limiter = NewLimiter(cfg.MaxConcurrent, func(queued, active int) {
		c.tel.SetQueueDepth(queued)
		c.tel.SetInFlight(active)
	})
	return c
}

// Resource returns the default resource key.
func (c *Client) Resource() string {
	return c.transport.Resource()
}

// RunReportSafe runs req through the breaker, single-flight group, cache,
// limiter and retry loop. Callers sharing a cache key receive the same
// response, which must be treated as read-only.
func (c *Client) RunReportSafe(ctx context.Context, req *upstream.ReportRequest, opts Options) (*upstream.ReportResponse, error) {
	start := time.Now()
	resource := opts.ResourceKey
	if resource == "" {
		resource = c.transport.Resource()
	}

	ctx, span := c.tel.StartSpan(ctx, "upstream.RunReportSafe",
		attribute.String("resource", resource),
		attribute.String("priority", opts.Priority.String()),
	)
	defer span.End()

	resp, err := c.run(ctx, req, resource, opts)

	outcome := outcomeOf(err)
	c.tel.RecordCall(resource, outcome, time.Since(start))
	span.SetAttributes(attribute.String("outcome", outcome))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return resp, err
}

func (c *Client) run(ctx context.Context, req *upstream.ReportRequest, resource string, opts Options) (*upstream.ReportResponse, error) {
	key, err := cacheKey(req, resource, opts.CacheKey)
	if err != nil {
		return nil, err
	}
	// Allow may reserve the half-open trial slot; nothing may fail between it
	// and the flight that records the outcome.
	if err = c.breaker.Allow(resource); err != nil {
		return nil, err
	}

	f := c.join(ctx, key)
	ch := c.group.DoChan(key, func() (any, error) {
		c.running.Add(1)
		defer c.running.Done()
		return c.execute(f.ctx, req, resource, key, opts.Priority)
	})

	select {
	case res := <-ch:
		c.leave(key, f)
		if res.Shared {
			c.tel.RecordShared()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*upstream.ReportResponse), nil
	case <-ctx.Done():
		c.leave(key, f)
		return nil, fmt.Errorf("%w: %w", retry.ErrCancelled, ctx.Err())
	}
}

// cacheKey is override when set, else the resource and the serialized body.
func cacheKey(req *upstream.ReportRequest, resource, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}
	return resource + "|" + string(body), nil
}

func (c *Client) join(ctx context.Context, key string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		c.flights[key] = f
	}
	f.waiters++
	return f
}

func (c *Client) leave(key string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if c.flights[key] == f {
		delete(c.flights, key)
		// Later callers must not join a flight whose context is gone.
		c.group.Forget(key)
	}
}

// execute runs once per flight and records exactly one breaker outcome.
func (c *Client) execute(ctx context.Context, req *upstream.ReportRequest, resource, key string, p Priority) (*upstream.ReportResponse, error) {
	if resp, ok := c.cached(ctx, key); ok {
		// A cache hit says nothing about upstream health.
		c.breaker.RecordCancelled(resource)
		return resp, nil
	}

	if err := c.limiter.Acquire(ctx, p); err != nil {
		c.breaker.RecordCancelled(resource)
		return nil, fmt.Errorf("%w: %w", retry.ErrCancelled, err)
	}
	defer c.limiter.Release()

	resp, err := c.attempt(ctx, req, resource)
	switch {
	case err == nil:
		c.breaker.RecordSuccess(resource)
		c.store(ctx, key, resp)
		return resp, nil
	case errors.Is(err, retry.ErrCancelled):
		c.breaker.RecordCancelled(resource)
	default:
		c.breaker.RecordFailure(resource)
	}
	return nil, err
}

func (c *Client) attempt(ctx context.Context, req *upstream.ReportRequest, resource string) (*upstream.ReportResponse, error) {
	cfg := c.cfg.Retry
	cfg.OnTransition = func(from, to retry.State, attempt int, err error) {
		switch to {
		case retry.StateWaiting:
			c.tel.RecordRetry()
			c.log.Warn("Upstream call failed, retrying",
				logger.String("resource", resource),
				logger.Int("attempt", attempt),
				logger.Error(err),
			)
		case retry.StateExhausted:
			c.log.Error("Upstream retries exhausted",
				logger.String("resource", resource),
				logger.Int("attempts", attempt),
				logger.Error(err),
			)
		case retry.StateFailed:
			c.log.Warn("Upstream call rejected",
				logger.String("resource", resource),
				logger.Error(err),
			)
		default:
			c.log.Debug("Upstream retry transition",
				logger.String("resource", resource),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
				logger.Int("attempt", attempt),
			)
		}
	}

	var resp *upstream.ReportResponse
	err := retry.New(cfg).Run(ctx, func(ctx context.Context) error {
		if err := c.pacer.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", retry.ErrCancelled, err)
		}
		c.tel.RecordAttempt()
		r, err := c.transport.RunReport(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) cached(ctx context.Context, key string) (*upstream.ReportResponse, bool) {
	if c.cache == nil {
		return nil, false
	}
	resp, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		c.tel.RecordCacheLookup(telemetry.CacheError)
		c.log.Warn("Report cache lookup failed", logger.Error(err))
		return nil, false
	case ok:
		c.tel.RecordCacheLookup(telemetry.CacheHit)
		return resp, true
	default:
		c.tel.RecordCacheLookup(telemetry.CacheMiss)
		return nil, false
	}
}

func (c *Client) store(ctx context.Context, key string, resp *upstream.ReportResponse) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, resp); err != nil {
		c.log.Warn("Report cache write failed", logger.Error(err))
	}
}

func (c *Client) onBreakerChange(key string, from, to circuitbreaker.State) {
	c.tel.RecordBreakerState(key, to.String(), int(to))
	c.log.Warn("Upstream circuit state changed",
		logger.String("resource", key),
		logger.String("from", from.String()),
		logger.String("to", to.String()),
	)
}

// Wait blocks until every running upstream call has returned.
func (c *Client) Wait() {
	c.running.Wait()
}

// Status is a point-in-time view of the client.
type Status struct {
	Breakers      []circuitbreaker.Status `json:"breakers"`
	InFlight      int                     `json:"inFlight"`
	Queued        int                     `json:"queued"`
	MaxConcurrent int                     `json:"maxConcurrent"`
}

// Status reports breaker and limiter state. The default resource is always
// included.
func (c *Client) Status() Status {
	breakers := c.breaker.Snapshot()
	seen := false
	for _, b := range breakers {
		if b.Key == c.transport.Resource() {
			seen = true
			break
		}
	}
	if !seen {
		breakers = append([]circuitbreaker.Status{c.breaker.Status(c.transport.Resource())}, breakers...)
	}

	return Status{
		Breakers:      breakers,
		InFlight:      c.limiter.Active(),
		Queued:        c.limiter.Queued(),
		MaxConcurrent: c.limiter.Max(),
	}
}

// Degraded reports whether any circuit is not closed.
func (c *Client) Degraded() bool {
	for _, b := range c.breaker.Snapshot() {
		if b.State != circuitbreaker.StateClosed.String() {
			return true
		}
	}
	return false
}

// ResetBreaker closes the circuit for resource.
func (c *Client) ResetBreaker(resource string) {
	c.breaker.Reset(resource)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeSuccess
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return telemetry.OutcomeCircuitOpen
	case errors.Is(err, retry.ErrCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return telemetry.OutcomeCancelled
	case errors.Is(err, retry.ErrExhausted):
		return telemetry.OutcomeExhausted
	default:
		return telemetry.OutcomePermanent
	}
}

package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"rivalwatch/pkg/logger"
	"rivalwatch/pkg/utils"
)

// ServiceConfig tunes the breaker, retry and cache behavior for one upstream
// service key.
type ServiceConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay"`
	CallTimeout      time.Duration `mapstructure:"call_timeout"`
	// CacheTTL < 0 caches responses indefinitely, 0 disables caching for the
	// service, > 0 expires entries after the given duration.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Config holds per-service settings keyed by service key. Unknown keys fall
// back to defaults.
type Config struct {
	Services map[string]ServiceConfig `mapstructure:"services"`
}

const (
	defaultFailureThreshold = 5
	defaultRecoveryTimeout  = 60 * time.Second
	defaultMaxRetries       = 3
	defaultRetryBaseDelay   = 200 * time.Millisecond
	defaultCallTimeout      = 30 * time.Second
)

// Client guards every upstream call with a per-service circuit breaker,
// exponential-backoff retry and a fingerprint-keyed response cache.
type Client struct {
	logger *logger.Logger
	cache  *cache.Cache

	mu       sync.Mutex
	breakers map[string]*breaker
	configs  map[string]ServiceConfig

	outcomes chan callOutcome
	stopOnce sync.Once
	stopCh   chan struct{}

	sleep func(ctx context.Context, d time.Duration) error
}

type callOutcome struct {
	service  string
	outcome  string
	attempts int
	latency  time.Duration
	err      error
}

// NewClient builds a resilience client from per-service configuration and
// starts the background outcome logger.
func NewClient(cfg Config, log *logger.Logger) *Client {
	configs := make(map[string]ServiceConfig, len(cfg.Services))
	for key, sc := range cfg.Services {
		configs[key] = withDefaults(sc)
	}

	c := &Client{
		logger:   log,
		cache:    cache.New(cache.NoExpiration, 10*time.Minute),
		breakers: make(map[string]*breaker),
		configs:  configs,
		outcomes: make(chan callOutcome, 256),
		stopCh:   make(chan struct{}),
		sleep:    sleepCtx,
	}
	utils.GoSafe(c.drainOutcomes)
	return c
}

// Close stops the background outcome logger.
func (c *Client) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func withDefaults(sc ServiceConfig) ServiceConfig {
	if sc.FailureThreshold <= 0 {
		sc.FailureThreshold = defaultFailureThreshold
	}
	if sc.RecoveryTimeout <= 0 {
		sc.RecoveryTimeout = defaultRecoveryTimeout
	}
	// MaxRetries 0 means "not configured"; -1 disables retries explicitly.
	if sc.MaxRetries == 0 {
		sc.MaxRetries = defaultMaxRetries
	} else if sc.MaxRetries < 0 {
		sc.MaxRetries = 0
	}
	if sc.RetryBaseDelay <= 0 {
		sc.RetryBaseDelay = defaultRetryBaseDelay
	}
	if sc.CallTimeout <= 0 {
		sc.CallTimeout = defaultCallTimeout
	}
	return sc
}

func (c *Client) serviceConfig(service string) ServiceConfig {
	if sc, ok := c.configs[service]; ok {
		return sc
	}
	return withDefaults(ServiceConfig{})
}

func (c *Client) breakerFor(service string) *breaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	br, ok := c.breakers[service]
	if !ok {
		sc := c.serviceConfig(service)
		br = newBreaker(sc.FailureThreshold, sc.RecoveryTimeout)
		c.breakers[service] = br
	}
	return br
}

// BreakerStates reports the circuit position per service key, for health
// reporting.
func (c *Client) BreakerStates() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	states := make(map[string]string, len(c.breakers))
	for key, br := range c.breakers {
		states[key] = br.State().String()
	}
	return states
}

// Request describes one guarded upstream call. An empty Fingerprint disables
// the response cache for the call. Non-idempotent calls are never retried
// beyond their first attempt.
type Request[T any] struct {
	Service     string
	Fingerprint string
	Idempotent  bool
	Call        func(ctx context.Context) (T, error)
}

// Fingerprint derives a cache key from the canonical parts of a request.
func Fingerprint(service string, parts ...string) string {
	return utils.ContentHash(append([]string{service}, parts...)...)
}

// Do executes a guarded upstream call: cache lookup first (a hit bypasses the
// breaker and retry logic entirely), then circuit breaker admission, then the
// call with per-attempt timeout and exponential backoff on transient errors.
func Do[T any](ctx context.Context, c *Client, req Request[T]) (T, error) {
	var zero T
	sc := c.serviceConfig(req.Service)

	cacheKey := ""
	if req.Fingerprint != "" && sc.CacheTTL != 0 {
		cacheKey = req.Fingerprint
		if v, ok := c.cache.Get(cacheKey); ok {
			if typed, ok := v.(T); ok {
				c.record(callOutcome{service: req.Service, outcome: "cache_hit"})
				return typed, nil
			}
		}
	}

	br := c.breakerFor(req.Service)

	maxAttempts := sc.MaxRetries + 1
	if !req.Idempotent {
		maxAttempts = 1
	}

	var lastErr error
	start := time.Now()
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if !br.Allow() {
			c.record(callOutcome{
				service:  req.Service,
				outcome:  "circuit_open",
				attempts: attempt,
				latency:  time.Since(start),
			})
			return zero, NewError(KindCircuitOpen, req.Service, lastErr)
		}

		callCtx, cancel := context.WithTimeout(ctx, sc.CallTimeout)
		resp, err := req.Call(callCtx)
		cancel()

		if err == nil {
			br.Success()
			if cacheKey != "" {
				c.cache.Set(cacheKey, resp, sc.CacheTTL)
			}
			c.record(callOutcome{
				service:  req.Service,
				outcome:  "success",
				attempts: attempt + 1,
				latency:  time.Since(start),
			})
			return resp, nil
		}

		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			br.Release()
			return zero, err
		}

		kind := classify(err)
		if transient(kind) {
			br.Failure()
		} else {
			// The upstream answered; a bad payload is not a health signal.
			br.Success()
		}
		lastErr = err

		if !transient(kind) || attempt == maxAttempts-1 {
			c.record(callOutcome{
				service:  req.Service,
				outcome:  "failure",
				attempts: attempt + 1,
				latency:  time.Since(start),
				err:      err,
			})
			return zero, asError(kind, req.Service, err)
		}

		delay := sc.RetryBaseDelay * (1 << uint(attempt))
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return zero, sleepErr
		}
	}

	c.record(callOutcome{
		service:  req.Service,
		outcome:  "failure",
		attempts: maxAttempts,
		latency:  time.Since(start),
		err:      lastErr,
	})
	return zero, asError(classify(lastErr), req.Service, lastErr)
}

func asError(kind Kind, service string, err error) error {
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return NewError(kind, service, err)
}

// record hands the outcome to the background logger without ever blocking the
// calling path; under backpressure outcomes are dropped, not queued.
func (c *Client) record(o callOutcome) {
	select {
	case c.outcomes <- o:
	default:
	}
}

func (c *Client) drainOutcomes() {
	for {
		select {
		case o := <-c.outcomes:
			fields := []zap.Field{
				logger.StringField("service", o.service),
				logger.StringField("outcome", o.outcome),
				logger.IntField("attempts", o.attempts),
				logger.DurationField("latency", o.latency),
			}
			if o.err != nil {
				fields = append(fields, logger.ErrorField(o.err))
				c.logger.Warn("upstream call completed", fields...)
				continue
			}
			c.logger.Debug("upstream call completed", fields...)
		case <-c.stopCh:
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Package client implements the per-agent request lifecycle: default
// parameter resolution, per-attempt timeouts, retry with exponential backoff
// for transient failures and exactly-once release of the underlying provider
// resource.
package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/agentfleet/core"
	"github.com/hupe1980/agentfleet/logging"
	"github.com/hupe1980/agentfleet/provider"
)

// Backoff pacing shared by all clients. The per-agent BackoffFactor from the
// config controls growth; these bound the absolute delays.
const (
	defaultInitialDelay = 500 * time.Millisecond
	defaultMaxDelay     = 30 * time.Second
	healthProbeTimeout  = 5 * time.Second
)

// Options configure a Client beyond its AgentConfig.
type Options struct {
	// Logger receives invocation and close diagnostics. Defaults to NoOp.
	Logger logging.Logger
	// InitialDelay is the backoff delay before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
	// Jitter randomizes delays by ±10% to avoid thundering herds.
	Jitter bool
}

// Client binds one AgentConfig to one provider instance. It owns the
// provider exclusively: Close releases it exactly once and no invocation may
// proceed after close begins. All methods are safe for concurrent use.
type Client struct {
	cfg      core.AgentConfig
	provider provider.Provider
	logger   logging.Logger

	initialDelay time.Duration
	maxDelay     time.Duration
	jitter       bool

	closed    atomic.Bool
	closeOnce sync.Once

	invocations atomic.Int64
	failures    atomic.Int64
}

// New constructs a Client for a validated config. The config is normalized
// (defaults applied) before use; callers should have run Validate already,
// typically via the registry.
func New(cfg core.AgentConfig, p provider.Provider, optFns ...func(o *Options)) *Client {
	opts := Options{
		Logger:       logging.NoOpLogger{},
		InitialDelay: defaultInitialDelay,
		MaxDelay:     defaultMaxDelay,
		Jitter:       true,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{
		cfg:          cfg.Normalized(),
		provider:     p,
		logger:       opts.Logger,
		initialDelay: opts.InitialDelay,
		maxDelay:     opts.MaxDelay,
		jitter:       opts.Jitter,
	}
}

// Name returns the agent name this client is bound to.
func (c *Client) Name() string { return c.cfg.Name }

// Config returns the normalized config this client was built from.
func (c *Client) Config() core.AgentConfig { return c.cfg }

// Invocations returns the total number of Invoke calls served.
func (c *Client) Invocations() int64 { return c.invocations.Load() }

// Failures returns the number of Invoke calls that ended in error.
func (c *Client) Failures() int64 { return c.failures.Load() }

// Invoke performs one logical completion against the remote API. Transient
// and rate-limit failures are retried up to MaxRetries times with
// exponential backoff; each attempt runs under the configured per-attempt
// timeout and a timed-out attempt consumes retry budget. The returned
// attempts count includes the final attempt regardless of outcome.
func (c *Client) Invoke(ctx context.Context, prompt string, params map[string]any) (string, int, error) {
	if c.closed.Load() {
		return "", 0, core.NewErrorf(core.ErrorTypeClientClosed, "agent %s: client closed", c.cfg.Name)
	}

	c.invocations.Add(1)
	req := c.buildRequest(prompt, params)

	maxRetries := c.cfg.MaxRetries
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoffDelay(attempt)
			select {
			case <-ctx.Done():
				c.failures.Add(1)
				return "", attempt, core.NewErrorWithCause(core.ErrorTypeCancelled, ctx.Err(), "cancelled during backoff")
			case <-time.After(delay):
			}
		}

		if c.closed.Load() {
			c.failures.Add(1)
			return "", attempt, core.NewErrorf(core.ErrorTypeClientClosed, "agent %s: client closed", c.cfg.Name)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		resp, err := c.provider.Complete(attemptCtx, req)
		cancel()

		if err == nil {
			return resp.Text, attempt + 1, nil
		}
		lastErr = err

		// Caller cancellation wins over any provider classification.
		if ctx.Err() != nil {
			c.failures.Add(1)
			return "", attempt + 1, core.NewErrorWithCause(core.ErrorTypeCancelled, ctx.Err(), "invocation cancelled")
		}

		if !retryable(err) {
			c.failures.Add(1)
			return "", attempt + 1, err
		}

		c.logger.Warn("attempt failed, retrying", "agent", c.cfg.Name, "attempt", attempt+1, "max_attempts", maxRetries+1, "error", err)
	}

	c.failures.Add(1)
	return "", maxRetries + 1, core.NewErrorWithCause(
		core.ErrorTypeExhausted,
		lastErr,
		fmt.Sprintf("agent %s: retries exhausted after %d attempts", c.cfg.Name, maxRetries+1),
	)
}

// Health performs a minimal single-attempt probe against the provider. It
// never retries; a healthy agent answers a one-token completion within the
// probe timeout.
func (c *Client) Health(ctx context.Context) error {
	if c.closed.Load() {
		return core.NewErrorf(core.ErrorTypeClientClosed, "agent %s: client closed", c.cfg.Name)
	}

	timeout := healthProbeTimeout
	if c.cfg.Timeout < timeout {
		timeout = c.cfg.Timeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := c.provider.Complete(probeCtx, provider.Request{
		Model:       c.cfg.Model,
		Prompt:      "ping",
		Temperature: 0,
		MaxTokens:   1,
	})
	if err != nil {
		return fmt.Errorf("agent %s health probe: %w", c.cfg.Name, err)
	}
	return nil
}

// Close releases the underlying provider resource. It is idempotent, safe
// when the resource was never opened and never propagates transport close
// failures; those are logged and swallowed so shutdown always completes.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if closer, ok := c.provider.(provider.Closer); ok {
			if err := closer.Close(); err != nil {
				c.logger.Warn("provider close failed", "agent", c.cfg.Name, "error", err)
			}
		}
	})
	return nil
}

// buildRequest resolves configured defaults against per-call overrides.
// Recognized override keys: "model", "temperature", "max_tokens", "system";
// anything else is passed through to the provider verbatim.
func (c *Client) buildRequest(prompt string, params map[string]any) provider.Request {
	req := provider.Request{
		Model:       c.cfg.Model,
		Prompt:      prompt,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	if len(c.cfg.Params) > 0 {
		req.Params = make(map[string]any, len(c.cfg.Params))
		for k, v := range c.cfg.Params {
			req.Params[k] = v
		}
	}

	for k, v := range params {
		switch k {
		case "model":
			if s, ok := v.(string); ok {
				req.Model = s
			}
		case "temperature":
			if f, ok := toFloat(v); ok {
				req.Temperature = f
			}
		case "max_tokens":
			if n, ok := toInt(v); ok {
				req.MaxTokens = n
			}
		case "system":
			if s, ok := v.(string); ok {
				req.System = s
			}
		default:
			if req.Params == nil {
				req.Params = make(map[string]any)
			}
			req.Params[k] = v
		}
	}

	return req
}

// backoffDelay computes the pre-attempt delay: initial * factor^(attempt-1),
// capped at MaxDelay, with optional ±10% jitter.
func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(float64(c.initialDelay) * math.Pow(c.cfg.BackoffFactor, float64(attempt-1)))
	if delay > c.maxDelay {
		delay = c.maxDelay
	}
	if c.jitter {
		jitter := time.Duration((rand.Float64()*0.2 - 0.1) * float64(delay))
		delay += jitter
		if delay < 0 {
			delay = c.initialDelay
		}
	}
	return delay
}

func retryable(err error) bool {
	var fe *core.Error
	if errors.As(err, &fe) {
		return fe.Retryable()
	}
	// Unclassified errors get the transient treatment once.
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

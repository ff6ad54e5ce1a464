// Package textgen is the single capability abstraction for generative and
// embedding calls. Every enrichment stage receives a Client; retry, backoff
// and rate limiting are implemented once here, not per call site.
package textgen

import (
	"context"
	"time"

	"github.com/yungbote/curricula-backend/internal/pkg/httpx"
	"github.com/yungbote/curricula-backend/internal/platform/logger"
)

// Client is the provider-neutral generative interface.
type Client interface {
	// GenerateText produces plain prose from a system + user prompt.
	GenerateText(ctx context.Context, system, user string) (string, error)
	// GenerateJSON produces a JSON object conforming to the given schema.
	GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error)
	// Embed returns one vector per input.
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// RetryPolicy bounds retries before an error becomes stage-local.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	CallTimeout time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseBackoff: 1 * time.Second,
		MaxBackoff:  10 * time.Second,
		CallTimeout: 120 * time.Second,
	}
}

type retryClient struct {
	inner  Client
	log    *logger.Logger
	policy RetryPolicy
}

// WithRetry wraps a client with the shared retry/backoff policy. A call that
// still fails after MaxAttempts surfaces its last error to the caller, which
// treats it as a stage-local failure.
func WithRetry(inner Client, log *logger.Logger, policy RetryPolicy) Client {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.BaseBackoff <= 0 {
		policy.BaseBackoff = time.Second
	}
	return &retryClient{inner: inner, log: log.With("component", "TextGenRetry"), policy: policy}
}

func (c *retryClient) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := c.policy.BaseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		callCtx := ctx
		var cancel context.CancelFunc
		if c.policy.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, c.policy.CallTimeout)
		}
		err := fn(callCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}
		lastErr = err
		if !httpx.IsRetryableError(err) || attempt == c.policy.MaxAttempts {
			return err
		}
		sleepFor := httpx.JitterSleep(backoff)
		c.log.Warn("generative call retrying",
			"op", op,
			"attempt", attempt,
			"max_attempts", c.policy.MaxAttempts,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
		if c.policy.MaxBackoff > 0 && backoff > c.policy.MaxBackoff {
			backoff = c.policy.MaxBackoff
		}
	}
	return lastErr
}

func (c *retryClient) GenerateText(ctx context.Context, system, user string) (string, error) {
	var out string
	err := c.do(ctx, "generate_text", func(ctx context.Context) error {
		var err error
		out, err = c.inner.GenerateText(ctx, system, user)
		return err
	})
	return out, err
}

func (c *retryClient) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	var out map[string]any
	err := c.do(ctx, "generate_json", func(ctx context.Context) error {
		var err error
		out, err = c.inner.GenerateJSON(ctx, system, user, schemaName, schema)
		return err
	})
	return out, err
}

func (c *retryClient) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	var out [][]float32
	err := c.do(ctx, "embed", func(ctx context.Context) error {
		var err error
		out, err = c.inner.Embed(ctx, inputs)
		return err
	})
	return out, err
}

package textgen

import (
	"context"

	"golang.org/x/time/rate"
)

// limitedClient queues callers behind a process-wide limiter shared per
// provider, so bursts from concurrent stage workers never reach the API.
type limitedClient struct {
	inner   Client
	limiter *rate.Limiter
}

// WithRateLimit wraps a client with a shared requests-per-minute limiter.
// Pass the same limiter to every client of one provider.
func WithRateLimit(inner Client, limiter *rate.Limiter) Client {
	if limiter == nil {
		return inner
	}
	return &limitedClient{inner: inner, limiter: limiter}
}

// NewLimiter builds a limiter from a requests-per-minute budget.
func NewLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	perSec := float64(requestsPerMinute) / 60.0
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSec), burst)
}

func (c *limitedClient) GenerateText(ctx context.Context, system, user string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return c.inner.GenerateText(ctx, system, user)
}

func (c *limitedClient) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.GenerateJSON(ctx, system, user, schemaName, schema)
}

func (c *limitedClient) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.Embed(ctx, inputs)
}

package client

import (
	"context"
	"time"

	"github.com/troikatech/collections-agent/pkg/circuitbreaker"
	"github.com/troikatech/collections-agent/pkg/metrics"
	"github.com/troikatech/collections-agent/pkg/retry"
)

// Guard wraps calls to one remote service with a circuit breaker, retry
// with backoff, and service metrics.
type Guard struct {
	service string
	breaker *circuitbreaker.CircuitBreaker
	retry   retry.Config
}

// NewGuard creates a guard for service
func NewGuard(service string, rc retry.Config, bc circuitbreaker.Config) *Guard {
	return &Guard{
		service: service,
		breaker: circuitbreaker.New(service, bc, func(name string, s circuitbreaker.State) {
			metrics.UpdateCircuitBreaker(name, int(s))
		}),
		retry: rc,
	}
}

// NewDefaultGuard uses the default retry and breaker settings
func NewDefaultGuard(service string) *Guard {
	return NewGuard(service, retry.DefaultConfig(), circuitbreaker.DefaultConfig())
}

// Do runs fn under the breaker, retrying transient failures. Each attempt
// is recorded in the service metrics.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return g.breaker.Execute(ctx, func() error {
		return retry.Do(ctx, g.retry, func() error {
			start := time.Now()
			err := fn(ctx)
			metrics.RecordServiceCall(g.service, err == nil, time.Since(start))
			return err
		})
	})
}

// Service returns the guarded service name
func (g *Guard) Service() string {
	return g.service
}

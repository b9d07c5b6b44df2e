package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"labsos-backend/application/ports"
)

// BreakerConfig holds configuration for a circuit breaker
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// Consecutive failures that open the breaker
	Failures uint32
}

func newBreaker(cfg BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// The caller giving up is not the upstream failing
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

// BreakerGenerator stops calling a failing text generator for a while.
type BreakerGenerator struct {
	next ports.TextGenerator
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerGenerator wraps next in a circuit breaker
func NewBreakerGenerator(next ports.TextGenerator, cfg BreakerConfig, logger *zap.Logger) *BreakerGenerator {
	return &BreakerGenerator{next: next, cb: newBreaker(cfg, logger)}
}

func (b *BreakerGenerator) Model() string {
	return b.next.Model()
}

// Generate implements ports.TextGenerator. An open breaker fails with
// gobreaker.ErrOpenState.
func (b *BreakerGenerator) Generate(ctx context.Context, req ports.GenerationRequest) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Generate(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// BreakerEmbedder stops calling a failing embedder for a while, so semantic
// search falls back to full context without waiting on the upstream.
type BreakerEmbedder struct {
	next ports.Embedder
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerEmbedder wraps next in a circuit breaker
func NewBreakerEmbedder(next ports.Embedder, cfg BreakerConfig, logger *zap.Logger) *BreakerEmbedder {
	return &BreakerEmbedder{next: next, cb: newBreaker(cfg, logger)}
}

// Embed implements ports.Embedder
func (b *BreakerEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Embed(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return out.([]float32), nil
}

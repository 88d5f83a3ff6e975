package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/outfitter/backend/internal/domain"
	"github.com/outfitter/backend/internal/metrics"
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxRetries   int           // retries after the first attempt
	InitialDelay time.Duration // doubled after every retry
}

// DefaultRetryConfig retries three times, waiting 1s, 2s and 4s.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:   3,
	InitialDelay: 1 * time.Second,
}

// RetryingInvoker decorates a Generator with bounded exponential backoff on
// transient errors. Any other error is returned immediately.
type RetryingInvoker struct {
	inner  domain.Generator
	config RetryConfig
	sleep  func(ctx context.Context, d time.Duration) error
	logger *zap.Logger
}

// NewRetryingInvoker wraps inner.
func NewRetryingInvoker(inner domain.Generator, config RetryConfig, logger *zap.Logger) *RetryingInvoker {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = DefaultRetryConfig.InitialDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingInvoker{
		inner:  inner,
		config: config,
		sleep:  sleepCtx,
		logger: logger.Named("retry"),
	}
}

// Generate implements domain.Generator.
func (r *RetryingInvoker) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	delay := r.config.InitialDelay
	attempts := r.config.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := r.inner.Generate(ctx, req)
		if err == nil {
			return out, nil
		}
		if !domain.IsTransient(err) {
			return "", err
		}

		lastErr = err
		if attempt == attempts {
			break
		}

		r.logger.Warn("transient failure, backing off",
			zap.String("operation", req.Operation),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		metrics.RetriesTotal.WithLabelValues(req.Operation).Inc()

		if err := r.sleep(ctx, delay); err != nil {
			return "", fmt.Errorf("%w: %s interrupted: %w", domain.ErrRemoteFailure, req.Operation, err)
		}
		delay *= 2
	}

	return "", fmt.Errorf("%w: %s failed after %d attempts: %w", domain.ErrRemoteFailure, req.Operation, attempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

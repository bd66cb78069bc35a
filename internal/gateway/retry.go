package gateway

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/apperr"
)

// RetryPolicy retries gateway failures with linear backoff. Only
// apperr.KindGateway errors are retried; an empty generation or a bad
// prompt will not get better on a second attempt.
type RetryPolicy struct {
	Retries int
	Backoff time.Duration
}

// MaxDuration is the longest one call can take under the policy when each
// attempt is bounded by timeout.
func (p RetryPolicy) MaxDuration(timeout time.Duration) time.Duration {
	retries := p.Retries
	if retries < 0 {
		retries = 0
	}
	total := time.Duration(retries+1) * timeout
	for attempt := 1; attempt <= retries; attempt++ {
		total += time.Duration(attempt) * p.Backoff
	}
	return total
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// policy is exhausted.
func Do[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !apperr.Is(err, apperr.KindGateway) || attempt >= p.Retries {
			return zero, err
		}

		wait := time.Duration(attempt+1) * p.Backoff
		select {
		case <-ctx.Done():
			return zero, err
		case <-time.After(wait):
		}
	}
}

type retryingEmbedder struct {
	next   Embedder
	policy RetryPolicy
	log    zerolog.Logger
}

// WithEmbedRetry wraps e so transient failures are retried.
func WithEmbedRetry(e Embedder, p RetryPolicy, log zerolog.Logger) Embedder {
	if p.Retries <= 0 {
		return e
	}
	return &retryingEmbedder{next: e, policy: p, log: log}
}

func (r *retryingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	attempt := 0
	return Do(ctx, r.policy, func(ctx context.Context) ([]float32, error) {
		if attempt > 0 {
			r.log.Warn().Int("attempt", attempt+1).Msg("Retrying embedding call")
		}
		attempt++
		return r.next.Embed(ctx, text)
	})
}

type retryingGenerator struct {
	next   Generator
	policy RetryPolicy
	log    zerolog.Logger
}

// WithGenerateRetry wraps g so transient failures are retried.
func WithGenerateRetry(g Generator, p RetryPolicy, log zerolog.Logger) Generator {
	if p.Retries <= 0 {
		return g
	}
	return &retryingGenerator{next: g, policy: p, log: log}
}

func (r *retryingGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	attempt := 0
	return Do(ctx, r.policy, func(ctx context.Context) (string, error) {
		if attempt > 0 {
			r.log.Warn().Int("attempt", attempt+1).Msg("Retrying generation call")
		}
		attempt++
		return r.next.Generate(ctx, p)
	})
}

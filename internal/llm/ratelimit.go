package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonathan/resume-tailor/internal/types"
)

// RateLimited bounds the rate of outbound model calls made through a Client
type RateLimited struct {
	next    Client
	limiter *rate.Limiter
}

// NewRateLimited allows one call per interval with the given burst
func NewRateLimited(next Client, interval time.Duration, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Every(interval), burst)}
}

// Generate waits for a token and delegates
func (r *RateLimited) Generate(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, &TransientError{Message: "rate limit wait aborted", Cause: err}
	}
	return r.next.Generate(ctx, req)
}

// Ground waits for a token and delegates
func (r *RateLimited) Ground(ctx context.Context, sourceURL string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", &TransientError{Message: "rate limit wait aborted", Cause: err}
	}
	return r.next.Ground(ctx, sourceURL)
}

// Close closes the wrapped client
func (r *RateLimited) Close() error {
	return r.next.Close()
}

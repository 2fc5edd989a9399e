// Package ratelimit provides per-sender posting rate limits.
package ratelimit

import "context"

// Limiter decides whether a sender may post right now.
type Limiter interface {
	// Allow reports whether the sender is within its posting rate. A
	// successful Allow starts a new rate window for the sender.
	Allow(ctx context.Context, sender string) (bool, error)

	// Close releases any resources held by the limiter.
	Close() error
}

// Noop is a Limiter that allows every post. Used when rate limiting is not
// configured.
type Noop struct{}

// Allow always reports true.
func (Noop) Allow(ctx context.Context, sender string) (bool, error) {
	return true, nil
}

// Close is a no-op.
func (Noop) Close() error {
	return nil
}

// Package ratelimit enforces per-customer sliding-window request
// ceilings. Audio synthesis and text answers carry separate ceilings,
// so each endpoint gets its own Limiter.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Config is one window/ceiling pair.
type Config struct {
	// Window is the sliding window length.
	Window time.Duration

	// Ceiling is the maximum number of requests per key per window.
	Ceiling int
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive")
	}
	if c.Ceiling <= 0 {
		return fmt.Errorf("ceiling must be positive")
	}
	return nil
}

// Limiter answers whether a key may make one more request. The request
// is recorded only when allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}

package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Config holds rate limiting configuration
type Config struct {
	RequestsPerSecond int `json:"requestsPerSecond"`
	MaxRetries        int `json:"maxRetries"`
	InitialBackoffMs  int `json:"initialBackoffMs"`
	MaxBackoffMs      int `json:"maxBackoffMs"`
}

// DefaultConfig returns the default rate limit configuration
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 2,
		MaxRetries:        3,
		InitialBackoffMs:  100,
		MaxBackoffMs:      30000,
	}
}

// WithOverrides returns a config with the given overrides applied on top of defaults
func WithOverrides(overrides PartialConfig) Config {
	cfg := DefaultConfig()
	if overrides.RequestsPerSecond != nil {
		cfg.RequestsPerSecond = *overrides.RequestsPerSecond
	}
	if overrides.MaxRetries != nil {
		cfg.MaxRetries = *overrides.MaxRetries
	}
	if overrides.InitialBackoffMs != nil {
		cfg.InitialBackoffMs = *overrides.InitialBackoffMs
	}
	if overrides.MaxBackoffMs != nil {
		cfg.MaxBackoffMs = *overrides.MaxBackoffMs
	}
	return cfg
}

// PartialConfig allows partial configuration overrides
type PartialConfig struct {
	RequestsPerSecond *int `json:"requestsPerSecond,omitempty"`
	MaxRetries        *int `json:"maxRetries,omitempty"`
	InitialBackoffMs  *int `json:"initialBackoffMs,omitempty"`
	MaxBackoffMs      *int `json:"maxBackoffMs,omitempty"`
}

// RateLimiter throttles outgoing requests to a single portal host
type RateLimiter struct {
	config  Config
	limiter *rate.Limiter
}

// NewRateLimiter creates a new rate limiter with the given config
func NewRateLimiter(config Config) *RateLimiter {
	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultConfig().RequestsPerSecond
	}
	return &RateLimiter{
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// NewRateLimiterDefault creates a rate limiter with default config
func NewRateLimiterDefault() *RateLimiter {
	return NewRateLimiter(DefaultConfig())
}

// GetConfig returns the current configuration
func (r *RateLimiter) GetConfig() Config {
	return r.config
}

// SetConfig updates the configuration
func (r *RateLimiter) SetConfig(config Config) {
	r.config = config
	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultConfig().RequestsPerSecond
	}
	r.limiter.SetLimit(rate.Limit(rps))
}

// Throttle blocks until the next request is allowed under the configured rate
func (r *RateLimiter) Throttle(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

package ratelimiter

import "time"

// Result contains the result of a rate limit check.
type Result struct {
	Limit     int       // Maximum tokens (bucket capacity)
	Remaining int       // Tokens remaining after the check
	ResetAt   time.Time // Time when tokens will be refilled
	allowed   bool
}

// Allowed returns whether the tokens were granted.
func (r *Result) Allowed() bool {
	return r.allowed
}

// RetryAfter returns how long to wait before asking again.
// Returns 0 if the request was allowed.
func (r *Result) RetryAfter(now time.Time) time.Duration {
	if r.allowed {
		return 0
	}
	return max(r.ResetAt.Sub(now), 0)
}

// Config defines the token bucket configuration.
type Config struct {
	Capacity       int           // Maximum tokens the bucket can hold (burst limit)
	RefillRate     int           // Number of tokens added per refill interval
	RefillInterval time.Duration // How often tokens are added
}

// PerSecond returns a config granting units tokens every second with a
// burst of the same size, matching provisioned capacity units.
func PerSecond(units int) Config {
	return Config{
		Capacity:       units,
		RefillRate:     units,
		RefillInterval: time.Second,
	}
}

package bulkhead

import "time"

// Config holds configuration for the Manager.
type Config struct {
	// MembershipFallback resolves the current organization from a user's
	// sole active membership when no explicit selection was made.
	// Resolution never guesses among multiple memberships regardless of
	// this setting. Defaults to true.
	MembershipFallback *bool `json:"membership_fallback,omitempty"`

	// CacheTTL is the time-to-live for cached membership resolutions.
	// Zero means no caching.
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`

	// MaxSweepDepth is the maximum depth the interceptor descends into an
	// outgoing payload. Defaults to 8.
	MaxSweepDepth int `json:"max_sweep_depth,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	t := true
	return Config{
		MembershipFallback: &t,
		MaxSweepDepth:      8,
	}
}

func (c Config) membershipFallback() bool {
	return c.MembershipFallback == nil || *c.MembershipFallback
}

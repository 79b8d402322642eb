package shopauth

import (
	"errors"
	"strings"
	"time"
)

// Config defines a public type used by shopauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	RateLimit RateLimitConfig
	TOTP      TOTPConfig
	Session   SessionControllerConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitPolicy is one (maxAttempts, window) pair.
//
// RateLimitPolicy instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RateLimitPolicy struct {
	MaxAttempts int
	Window      time.Duration
}

// RateLimitConfig holds the two independent storefront limiter policies.
// Auth guards credential-sensitive actions; Checkout guards payment-session
// creation. The two instances never share state.
type RateLimitConfig struct {
	Auth     RateLimitPolicy
	Checkout RateLimitPolicy
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig defines a public type used by shopauth APIs.
//
// TOTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int    // seconds per time step
	Skew      int    // accepted steps of clock drift in each direction
	Algorithm string // "SHA1" (default), "SHA256", "SHA512"
}

/*
====================================
SESSION CONTROLLER CONFIG
====================================
*/

// SessionControllerConfig defines a public type used by shopauth APIs.
//
// SessionControllerConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionControllerConfig struct {
	// EventBuffer bounds the subscription channel handed to the provider.
	EventBuffer int
}

// AuditConfig defines a public type used by shopauth APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by shopauth APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		RateLimit: RateLimitConfig{
			Auth:     RateLimitPolicy{MaxAttempts: 5, Window: 15 * time.Minute},
			Checkout: RateLimitPolicy{MaxAttempts: 3, Window: 5 * time.Minute},
		},
		TOTP: TOTPConfig{
			Issuer:    "solmarkt",
			Digits:    6,
			Period:    30,
			Skew:      1,
			Algorithm: "SHA1",
		},
		Session: SessionControllerConfig{
			EventBuffer: 16,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// DefaultConfig returns the storefront policy defaults: 5 auth attempts per
// 15 minutes, 3 checkout attempts per 5 minutes, standard TOTP profile.
func DefaultConfig() Config {
	return defaultConfig()
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c Config) Validate() error {
	if c.RateLimit.Auth.MaxAttempts <= 0 || c.RateLimit.Auth.Window <= 0 {
		return errors.New("RateLimit.Auth requires positive MaxAttempts and Window")
	}
	if c.RateLimit.Checkout.MaxAttempts <= 0 || c.RateLimit.Checkout.Window <= 0 {
		return errors.New("RateLimit.Checkout requires positive MaxAttempts and Window")
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 10 {
		return errors.New("TOTP.Digits must be between 6 and 10")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("TOTP.Period must be positive")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 2 {
		return errors.New("TOTP.Skew must be between 0 and 2")
	}
	switch strings.ToUpper(c.TOTP.Algorithm) {
	case "", "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("TOTP.Algorithm must be SHA1, SHA256, or SHA512")
	}
	if c.Session.EventBuffer < 0 {
		return errors.New("Session.EventBuffer must not be negative")
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return errors.New("Audit.BufferSize must not be negative")
	}
	return nil
}

func cloneConfig(c Config) Config {
	// All fields are value types; a shallow copy is a deep copy.
	return c
}

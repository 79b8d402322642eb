package shopauth

import (
	"context"
	"errors"

	internalaudit "github.com/solmarkt/shopauth/internal/audit"
	"github.com/solmarkt/shopauth/internal/rate"
)

// Builder defines a public type used by shopauth APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config

	provider  SessionProvider
	profiles  ProfileStore
	roles     RoleStore
	twoFactor TwoFactorStore
	sink      SecuritySink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithSessionProvider describes the withsessionprovider operation and its observable behavior.
//
// WithSessionProvider may return an error when input validation, dependency calls, or security checks fail.
// WithSessionProvider does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithSessionProvider(provider SessionProvider) *Builder {
	b.provider = provider
	return b
}

// WithProfileStore describes the withprofilestore operation and its observable behavior.
//
// WithProfileStore may return an error when input validation, dependency calls, or security checks fail.
// WithProfileStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithProfileStore(profiles ProfileStore) *Builder {
	b.profiles = profiles
	return b
}

// WithRoleStore describes the withrolestore operation and its observable behavior.
//
// WithRoleStore may return an error when input validation, dependency calls, or security checks fail.
// WithRoleStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRoleStore(roles RoleStore) *Builder {
	b.roles = roles
	return b
}

// WithTwoFactorStore describes the withtwofactorstore operation and its observable behavior.
//
// WithTwoFactorStore may return an error when input validation, dependency calls, or security checks fail.
// WithTwoFactorStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithTwoFactorStore(store TwoFactorStore) *Builder {
	b.twoFactor = store
	return b
}

// WithSecuritySink describes the withsecuritysink operation and its observable behavior.
//
// WithSecuritySink may return an error when input validation, dependency calls, or security checks fail.
// WithSecuritySink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithSecuritySink(sink SecuritySink) *Builder {
	b.sink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Core, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.provider == nil {
		return nil, errors.New("session provider required")
	}
	if b.profiles == nil {
		return nil, errors.New("profile store required")
	}
	if b.roles == nil {
		return nil, errors.New("role store required")
	}

	core := &Core{
		config:    cfg,
		provider:  b.provider,
		profiles:  b.profiles,
		roles:     b.roles,
		twoFactor: b.twoFactor,
	}

	// Two independent limiter instances by policy; they must not share
	// state, and neither is a package-level singleton.
	core.authLimiter = rate.NewLimiter(cfg.RateLimit.Auth.MaxAttempts, cfg.RateLimit.Auth.Window)
	core.checkoutLimiter = rate.NewLimiter(cfg.RateLimit.Checkout.MaxAttempts, cfg.RateLimit.Checkout.Window)

	core.totp = NewTOTPEngine(cfg.TOTP)
	core.metrics = NewMetrics(cfg.Metrics)
	core.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.sink)

	core.controller = NewSessionController(b.provider, b.profiles, cfg.Session)
	core.controller.metrics = core.metrics
	core.controller.emit = func(ctx context.Context, event SecurityEvent) {
		core.audit.Emit(ctx, event)
	}

	core.guard = NewAdminAccessGuard(b.provider, b.roles)
	core.guard.metrics = core.metrics
	core.guard.emit = core.controller.emit

	b.built = true

	return core, nil
}

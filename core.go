package shopauth

import (
	"context"
	"time"

	"github.com/google/uuid"
	internalaudit "github.com/solmarkt/shopauth/internal/audit"
	"github.com/solmarkt/shopauth/internal/rate"
)

// Core defines a public type used by shopauth APIs.
//
// Core instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Core struct {
	config Config

	authLimiter     *rate.Limiter
	checkoutLimiter *rate.Limiter
	totp            *TOTPEngine
	controller      *SessionController
	guard           *AdminAccessGuard
	audit           *internalaudit.Dispatcher
	metrics         *Metrics

	provider  SessionProvider
	profiles  ProfileStore
	roles     RoleStore
	twoFactor TwoFactorStore
}

// Start initializes the session controller from the persisted external
// session and begins consuming session-change notifications.
func (c *Core) Start(ctx context.Context) error {
	if c == nil || c.controller == nil {
		return ErrCoreNotReady
	}
	return c.controller.Start(ctx)
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Core) Close() {
	if c == nil {
		return
	}
	if c.controller != nil {
		c.controller.Close()
	}
	if c.audit != nil {
		c.audit.Close()
	}
}

// Controller returns the session lifecycle controller.
func (c *Core) Controller() *SessionController {
	return c.controller
}

// Snapshot returns the controller's current read-only session view.
func (c *Core) Snapshot() SessionSnapshot {
	if c == nil || c.controller == nil {
		return SessionSnapshot{}
	}
	return c.controller.Snapshot()
}

// Guard returns the authoritative admin access gate.
func (c *Core) Guard() *AdminAccessGuard {
	return c.guard
}

// ValidateAccess re-validates the caller against the required role set via
// the [AdminAccessGuard].
func (c *Core) ValidateAccess(ctx context.Context, required ...Role) AccessDecision {
	if c == nil || c.guard == nil {
		return AccessDecision{Reason: ReasonSessionLookupFailed}
	}
	return c.guard.ValidateAccess(ctx, required...)
}

// RequireAdmin describes the requireadmin operation and its observable behavior.
//
// RequireAdmin may return an error when input validation, dependency calls, or security checks fail.
// RequireAdmin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Core) RequireAdmin(ctx context.Context) AccessDecision {
	return c.ValidateAccess(ctx, RoleAdmin, RoleSuperAdmin)
}

// RequireSuperAdmin describes the requiresuperadmin operation and its observable behavior.
//
// RequireSuperAdmin may return an error when input validation, dependency calls, or security checks fail.
// RequireSuperAdmin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Core) RequireSuperAdmin(ctx context.Context) AccessDecision {
	return c.ValidateAccess(ctx, RoleSuperAdmin)
}

// AuthAllowed gates a credential-sensitive attempt (login, password reset,
// 2FA submission) for the identifier. Denial is a normal outcome, not an
// error; the caller reads [Core.AuthRetryAfter] for the wait to display.
func (c *Core) AuthAllowed(ctx context.Context, identifier string) bool {
	if c == nil || c.authLimiter == nil {
		return false
	}
	if !c.authLimiter.Allow(identifier) {
		c.metricInc(MetricAuthRateLimited)
		c.emitEvent(ctx, "auth_rate_limited", SeverityHigh, identifier, map[string]string{
			"retry_after": c.authLimiter.Remaining(identifier).String(),
		})
		return false
	}
	c.metricInc(MetricAuthAttemptAllowed)
	return true
}

// AuthRetryAfter returns how long the identifier must wait before another
// credential-sensitive attempt can succeed.
func (c *Core) AuthRetryAfter(identifier string) time.Duration {
	if c == nil || c.authLimiter == nil {
		return 0
	}
	return c.authLimiter.Remaining(identifier)
}

// CheckoutAllowed gates a checkout attempt for the identifier under the
// stricter checkout policy. State is fully independent of the auth limiter.
func (c *Core) CheckoutAllowed(ctx context.Context, identifier string) bool {
	if c == nil || c.checkoutLimiter == nil {
		return false
	}
	if !c.checkoutLimiter.Allow(identifier) {
		c.metricInc(MetricCheckoutRateLimited)
		c.emitEvent(ctx, "checkout_rate_limited", SeverityMedium, identifier, map[string]string{
			"retry_after": c.checkoutLimiter.Remaining(identifier).String(),
		})
		return false
	}
	c.metricInc(MetricCheckoutAttemptAllowed)
	return true
}

// CheckoutRetryAfter returns the remaining checkout cooldown for the
// identifier.
func (c *Core) CheckoutRetryAfter(identifier string) time.Duration {
	if c == nil || c.checkoutLimiter == nil {
		return 0
	}
	return c.checkoutLimiter.Remaining(identifier)
}

// BeginTwoFactorSetup starts two-factor enrollment for the principal: it
// generates a fresh secret, persists it unconfirmed, and returns the
// [SetupFlow] holding the provisioning URI. The secret is not active until
// the flow reaches Enabled.
func (c *Core) BeginTwoFactorSetup(ctx context.Context, principalID string) (*SetupFlow, error) {
	if c == nil || c.totp == nil {
		return nil, ErrCoreNotReady
	}
	if c.twoFactor == nil {
		return nil, ErrTwoFactorUnavailable
	}

	secret, err := c.totp.GenerateSecret()
	if err != nil {
		return nil, ErrTwoFactorUnavailable
	}

	// Label the provisioning URI with the email when the profile resolves;
	// the principal ID is an acceptable fallback.
	account := principalID
	if profile, err := c.profiles.FetchProfile(ctx, principalID); err == nil && profile != nil && profile.Email != "" {
		account = profile.Email
	}

	record := TwoFactorRecord{PrincipalID: principalID, Secret: secret}
	if err := c.twoFactor.Save(ctx, record); err != nil {
		return nil, ErrTwoFactorUnavailable
	}

	c.metricInc(MetricTwoFactorSetupStarted)
	c.emitEvent(ctx, "two_factor_setup_started", SeverityLow, principalID, nil)

	return &SetupFlow{
		state:       SetupStateSecret,
		principalID: principalID,
		provision: TwoFactorProvision{
			Secret: secret,
			URI:    c.totp.ProvisionURI(secret, account),
		},
		engine: c.totp,
		store:  c.twoFactor,
		now:    time.Now,
		onEnabled: func(ctx context.Context, principalID string) {
			c.metricInc(MetricTwoFactorEnabled)
			c.emitEvent(ctx, "two_factor_enabled", SeverityLow, principalID, nil)
		},
	}, nil
}

// VerifyTwoFactor is the stateless login-time verification: given the
// principal's already-enabled secret, check one submitted code. It is
// layered behind the auth limiter, and a wrong code is indistinguishable
// from an expired one.
func (c *Core) VerifyTwoFactor(ctx context.Context, principalID, code string) error {
	if c == nil || c.totp == nil {
		return ErrCoreNotReady
	}
	if c.twoFactor == nil {
		return ErrTwoFactorUnavailable
	}

	limiterKey := "2fa:" + principalID
	if !c.AuthAllowed(ctx, limiterKey) {
		return ErrRateLimited
	}

	record, err := c.twoFactor.Get(ctx, principalID)
	if err != nil {
		return ErrTwoFactorUnavailable
	}
	if record == nil || !record.Enabled || record.Secret == "" {
		return ErrTwoFactorNotConfigured
	}

	ok, err := c.totp.Verify(record.Secret, code, time.Now())
	if err != nil {
		return ErrTwoFactorUnavailable
	}
	if !ok {
		c.metricInc(MetricTwoFactorFailure)
		c.emitEvent(ctx, "two_factor_failure", SeverityMedium, principalID, nil)
		return ErrTwoFactorCodeInvalid
	}

	c.authLimiter.Reset(limiterKey)
	c.metricInc(MetricTwoFactorSuccess)
	c.emitEvent(ctx, "two_factor_success", SeverityLow, principalID, nil)
	return nil
}

// DisableTwoFactor revokes the principal's two-factor secret. Available to
// the principal and to admins.
func (c *Core) DisableTwoFactor(ctx context.Context, principalID string) error {
	if c == nil {
		return ErrCoreNotReady
	}
	if c.twoFactor == nil {
		return ErrTwoFactorUnavailable
	}

	if err := c.twoFactor.Disable(ctx, principalID); err != nil {
		return ErrTwoFactorUnavailable
	}

	c.metricInc(MetricTwoFactorDisabled)
	c.emitEvent(ctx, "two_factor_disabled", SeverityMedium, principalID, nil)
	return nil
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Core) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return c.metrics.Snapshot()
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Core) AuditDropped() uint64 {
	if c == nil || c.audit == nil {
		return 0
	}
	return c.audit.Dropped()
}

func (c *Core) metricInc(id MetricID) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Inc(id)
}

// emitEvent forwards a security event to the async dispatcher. Emission is
// fire-and-forget: a full or failing sink never blocks the caller.
func (c *Core) emitEvent(ctx context.Context, eventType string, severity Severity, subject string, eventCtx map[string]string) {
	if c == nil || c.audit == nil {
		return
	}
	if requestID := requestIDFromContext(ctx); requestID != "" {
		if eventCtx == nil {
			eventCtx = map[string]string{}
		}
		eventCtx["request_id"] = requestID
	}
	c.audit.Emit(ctx, SecurityEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Severity:  severity,
		Subject:   subject,
		IP:        clientIPFromContext(ctx),
		Context:   eventCtx,
	})
}

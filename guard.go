package shopauth

import (
	"context"
	"time"
)

// AdminAccessGuard is the authoritative gate for privileged mutations. It
// never trusts cached role claims: every check re-fetches the current
// session and then the principal's role from the source-of-truth store.
// [SessionController] snapshots are for UI gating only.
//
// AdminAccessGuard instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AdminAccessGuard struct {
	provider SessionProvider
	roles    RoleStore

	metrics *Metrics
	emit    func(ctx context.Context, event SecurityEvent)
}

// NewAdminAccessGuard creates a guard over the given session provider and
// authoritative role store.
func NewAdminAccessGuard(provider SessionProvider, roles RoleStore) *AdminAccessGuard {
	return &AdminAccessGuard{
		provider: provider,
		roles:    roles,
	}
}

// ValidateAccess re-validates the caller against the required role set.
// Every failure mode yields Granted=false with a distinct reason, so
// callers can render "sign in" separately from "insufficient privilege".
// The guard is generic over any required set; with no roles given, any
// authenticated principal passes.
func (g *AdminAccessGuard) ValidateAccess(ctx context.Context, required ...Role) AccessDecision {
	if g == nil || g.provider == nil || g.roles == nil {
		return AccessDecision{Reason: ReasonSessionLookupFailed}
	}

	session, err := g.provider.GetSession(ctx)
	if err != nil {
		g.deny(ctx, "", ReasonSessionLookupFailed)
		return AccessDecision{Reason: ReasonSessionLookupFailed}
	}
	if session == nil || session.Expired(time.Now()) {
		g.deny(ctx, "", ReasonNoSession)
		return AccessDecision{Reason: ReasonNoSession}
	}

	role, err := g.roles.FetchRole(ctx, session.PrincipalID)
	if err != nil {
		g.deny(ctx, session.PrincipalID, ReasonRoleLookupFailed)
		return AccessDecision{Reason: ReasonRoleLookupFailed}
	}

	if !roleSatisfies(role, required) {
		g.deny(ctx, session.PrincipalID, ReasonInsufficientRole)
		return AccessDecision{Role: role, Reason: ReasonInsufficientRole}
	}

	g.metricInc(MetricAccessGranted)
	return AccessDecision{Granted: true, Role: role, Reason: ReasonGranted}
}

// RequireAdmin is the "any admin" convenience set: admin or super_admin.
func (g *AdminAccessGuard) RequireAdmin(ctx context.Context) AccessDecision {
	return g.ValidateAccess(ctx, RoleAdmin, RoleSuperAdmin)
}

// RequireSuperAdmin is the "super admin only" convenience set.
func (g *AdminAccessGuard) RequireSuperAdmin(ctx context.Context) AccessDecision {
	return g.ValidateAccess(ctx, RoleSuperAdmin)
}

func roleSatisfies(role Role, required []Role) bool {
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if role == r {
			return true
		}
	}
	return false
}

func (g *AdminAccessGuard) deny(ctx context.Context, subject string, reason AccessReason) {
	g.metricInc(MetricAccessDenied)
	if g.emit == nil {
		return
	}

	severity := SeverityMedium
	if reason == ReasonInsufficientRole {
		// An authenticated principal probing above its privilege is a
		// stronger signal than a missing session.
		severity = SeverityHigh
	}
	g.emit(ctx, SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: "admin_access_denied",
		Severity:  severity,
		Subject:   subject,
		IP:        clientIPFromContext(ctx),
		Context:   map[string]string{"reason": string(reason)},
	})
}

func (g *AdminAccessGuard) metricInc(id MetricID) {
	if g == nil || g.metrics == nil {
		return
	}
	g.metrics.Inc(id)
}

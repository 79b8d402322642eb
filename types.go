package shopauth

import (
	"context"
	"io"
	"strings"
	"time"

	internalaudit "github.com/solmarkt/shopauth/internal/audit"
)

// Role is the coarse privilege level attached to a [Principal].
//
// Role instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Role string

const (
	// RoleUser is an exported constant or variable used by the storefront auth core.
	RoleUser Role = "user"
	// RoleAdmin is an exported constant or variable used by the storefront auth core.
	RoleAdmin Role = "admin"
	// RoleSuperAdmin is an exported constant or variable used by the storefront auth core.
	RoleSuperAdmin Role = "super_admin"
)

// NormalizeRole collapses the role spellings found in backend rows to the
// canonical enumeration. Unknown or empty input maps to [RoleUser], the
// least-privileged role.
func NormalizeRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin":
		return RoleAdmin
	case "super_admin", "superadmin", "super-admin":
		return RoleSuperAdmin
	default:
		return RoleUser
	}
}

// IsAdmin reports whether the role carries admin privileges.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// IsSuperAdmin reports whether the role is the highest privilege level.
func (r Role) IsSuperAdmin() bool {
	return r == RoleSuperAdmin
}

// String returns the canonical wire spelling of the role.
func (r Role) String() string {
	return string(r)
}

// Principal is the authenticated identity associated with the current
// session. It is created by the external identity provider at signup and
// only read by this core.
type Principal struct {
	ID          string
	Email       string
	DisplayName string
	Role        Role
	AvatarURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Session is a time-bounded credential binding a [Principal] to the current
// process. It is issued and owned by the external [SessionProvider].
type Session struct {
	PrincipalID  string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	RefreshToken string
}

// Expired reports whether the session's expiry marker has passed.
// A zero ExpiresAt means the provider did not bound the session.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// SessionChangeKind identifies a session-change notification emitted by the
// external provider.
//
// SessionChangeKind instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionChangeKind string

const (
	// SessionSignedIn is an exported constant or variable used by the storefront auth core.
	SessionSignedIn SessionChangeKind = "signed_in"
	// SessionSignedOut is an exported constant or variable used by the storefront auth core.
	SessionSignedOut SessionChangeKind = "signed_out"
	// SessionTokenRefreshed is an exported constant or variable used by the storefront auth core.
	SessionTokenRefreshed SessionChangeKind = "token_refreshed"
)

// SessionChange is one session-change notification. Session is nil for
// signed-out events and may be nil when the provider omits the payload.
type SessionChange struct {
	Kind    SessionChangeKind
	Session *Session
}

// SessionProvider is the externally managed session source. GetSession
// returns the current session or nil when no session exists. Subscribe
// registers a notification channel; the returned cancel func unsubscribes
// and must be safe to call more than once.
//
// Providers must deliver changes in emission order. The [SessionController]
// consumes them one at a time.
type SessionProvider interface {
	GetSession(ctx context.Context) (*Session, error)
	Subscribe(ctx context.Context) (<-chan SessionChange, func(), error)
}

// ProfileStore fetches the [Principal] backing a session.
type ProfileStore interface {
	FetchProfile(ctx context.Context, principalID string) (*Principal, error)
}

// RoleStore fetches the authoritative role for a principal, bypassing any
// cached claims. [AdminAccessGuard] consults it on every check.
type RoleStore interface {
	FetchRole(ctx context.Context, principalID string) (Role, error)
}

// TwoFactorRecord is the persisted two-factor state for one principal.
// Secret is sensitive; the backing store keeps it encrypted at rest.
type TwoFactorRecord struct {
	PrincipalID string
	Secret      string
	Enabled     bool
}

// TwoFactorStore persists TOTP shared secrets. Save writes an unconfirmed
// secret, MarkConfirmed flips it to enabled after a successful setup
// verification, and Disable revokes it.
type TwoFactorStore interface {
	Get(ctx context.Context, principalID string) (*TwoFactorRecord, error)
	Save(ctx context.Context, record TwoFactorRecord) error
	MarkConfirmed(ctx context.Context, principalID string) error
	Disable(ctx context.Context, principalID string) error
}

// TwoFactorProvision holds the shared secret and otpauth:// URI returned by
// [Core.BeginTwoFactorSetup]. The URI is derived, never persisted.
type TwoFactorProvision struct {
	Secret string
	URI    string
}

// AccessReason explains an [AccessDecision]. Callers render different
// messaging for unauthenticated versus under-privileged principals.
//
// AccessReason instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AccessReason string

const (
	// ReasonGranted is an exported constant or variable used by the storefront auth core.
	ReasonGranted AccessReason = "granted"
	// ReasonNoSession is an exported constant or variable used by the storefront auth core.
	ReasonNoSession AccessReason = "no_session"
	// ReasonSessionLookupFailed is an exported constant or variable used by the storefront auth core.
	ReasonSessionLookupFailed AccessReason = "session_lookup_failed"
	// ReasonRoleLookupFailed is an exported constant or variable used by the storefront auth core.
	ReasonRoleLookupFailed AccessReason = "role_lookup_failed"
	// ReasonInsufficientRole is an exported constant or variable used by the storefront auth core.
	ReasonInsufficientRole AccessReason = "insufficient_role"
)

// AccessDecision is returned by [AdminAccessGuard.ValidateAccess]. Role is
// empty unless the principal's role was resolved, so an insufficient-role
// denial still reports which role was found.
type AccessDecision struct {
	Granted bool
	Role    Role
	Reason  AccessReason
}

// Severity grades a [SecurityEvent].
type Severity = internalaudit.Severity

const (
	// SeverityLow is an exported constant or variable used by the storefront auth core.
	SeverityLow = internalaudit.SeverityLow
	// SeverityMedium is an exported constant or variable used by the storefront auth core.
	SeverityMedium = internalaudit.SeverityMedium
	// SeverityHigh is an exported constant or variable used by the storefront auth core.
	SeverityHigh = internalaudit.SeverityHigh
	// SeverityCritical is an exported constant or variable used by the storefront auth core.
	SeverityCritical = internalaudit.SeverityCritical
)

// SecurityEvent is an immutable audit record of a security-relevant
// occurrence (failed login, rate-limit trip, 2FA failure). Append-only.
type SecurityEvent = internalaudit.Event

// SecuritySink receives [SecurityEvent] values from the core's audit
// dispatcher. Sink failures never block the triggering action.
type SecuritySink = internalaudit.Sink

// NoOpSink is a [SecuritySink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [SecuritySink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is a [SecuritySink] that writes JSON-encoded events to an
// [io.Writer], one object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

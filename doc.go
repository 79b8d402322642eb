// Package shopauth is the authentication and access-control core of the
// solmarkt storefront. It owns the session-lifecycle state machine, the
// sliding-window rate limiters guarding credential-sensitive operations,
// TOTP two-factor provisioning and verification, input validation, and the
// authoritative admin access gate.
//
// The package is designed for concurrent server workloads: Core methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// shopauth is the public surface. It exposes [Core], [Builder], [Config],
// the [SessionController] and [AdminAccessGuard], the stateless validators,
// and value types (Principal, Session, SecurityEvent, AccessDecision). All
// internal coordination (attempt windows, audit dispatch, metric storage)
// lives under internal/ and is never exported.
//
// Everything behind the external boundary stays behind interfaces: the
// managed backend that issues sessions is a [SessionProvider], the profile
// database is a [ProfileStore] and [RoleStore], and two-factor secrets are
// persisted through a [TwoFactorStore]. Ready-made adapters live in
// sessionstore/ (Redis), profilestore/ (Postgres), and audit/export/sentry.
//
// # What this package must NOT do
//
//   - Hash or store passwords; the external credential store owns credentials.
//   - Trust cached role claims for privileged mutations. [SessionController]
//     snapshots are advisory; [AdminAccessGuard] re-fetches from the source
//     of truth.
//   - Block a caller on the audit sink. Security events are fire-and-forget.
package shopauth

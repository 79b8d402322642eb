package shopauth

import "errors"

var (
	// ErrCoreNotReady is an exported constant or variable used by the storefront auth core.
	ErrCoreNotReady = errors.New("core not initialized")
	// ErrRateLimited is an exported constant or variable used by the storefront auth core.
	ErrRateLimited = errors.New("rate limited")
	// ErrNoSession is an exported constant or variable used by the storefront auth core.
	ErrNoSession = errors.New("no active session")
	// ErrSessionLookup is an exported constant or variable used by the storefront auth core.
	ErrSessionLookup = errors.New("session lookup failed")
	// ErrProfileLookup is an exported constant or variable used by the storefront auth core.
	ErrProfileLookup = errors.New("profile lookup failed")
	// ErrRoleLookup is an exported constant or variable used by the storefront auth core.
	ErrRoleLookup = errors.New("role lookup failed")
	// ErrPolicyRecursion is the recognized transient backend failure class
	// (a row-level policy referencing itself). It is suppressed from
	// user-facing error surfacing; the affected component still settles
	// into its safe default state.
	ErrPolicyRecursion = errors.New("profile policy recursion")
	// ErrControllerClosed is an exported constant or variable used by the storefront auth core.
	ErrControllerClosed = errors.New("session controller closed")
	// ErrControllerStarted is an exported constant or variable used by the storefront auth core.
	ErrControllerStarted = errors.New("session controller already started")
	// ErrTwoFactorNotConfigured is an exported constant or variable used by the storefront auth core.
	ErrTwoFactorNotConfigured = errors.New("two-factor not configured")
	// ErrTwoFactorCodeInvalid collapses wrong and expired codes into one
	// user-visible failure so the error does not aid guessing attacks.
	ErrTwoFactorCodeInvalid = errors.New("invalid code, try again")
	// ErrTwoFactorUnavailable is an exported constant or variable used by the storefront auth core.
	ErrTwoFactorUnavailable = errors.New("two-factor backend unavailable")
	// ErrSetupNotProvisioned is an exported constant or variable used by the storefront auth core.
	ErrSetupNotProvisioned = errors.New("setup not confirmed as provisioned")
	// ErrSetupAlreadyEnabled is an exported constant or variable used by the storefront auth core.
	ErrSetupAlreadyEnabled = errors.New("two-factor already enabled")
)

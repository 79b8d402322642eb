package shopauth

import (
	"context"
	"sync"
	"time"
)

// SetupState is the position of a [SetupFlow] in the two-factor enrollment
// state machine.
//
// SetupState instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SetupState uint8

const (
	// SetupStateSecret is an exported constant or variable used by the storefront auth core.
	SetupStateSecret SetupState = iota
	// SetupStateVerify is an exported constant or variable used by the storefront auth core.
	SetupStateVerify
	// SetupStateEnabled is an exported constant or variable used by the storefront auth core.
	SetupStateEnabled
)

// String returns a short name for the state.
func (s SetupState) String() string {
	switch s {
	case SetupStateSecret:
		return "setup"
	case SetupStateVerify:
		return "verify"
	case SetupStateEnabled:
		return "enabled"
	default:
		return "unknown"
	}
}

// SetupFlow walks one principal through two-factor enrollment:
//
//	Setup -> Verify -> Enabled
//
// The flow starts in Setup holding a freshly generated secret and its
// provisioning URI. [SetupFlow.ConfirmProvisioned] moves to Verify once the
// operator confirms the secret was added to their authenticator out of band.
// In Verify, each [SetupFlow.SubmitCode] is exactly one verification
// attempt; success persists the secret as confirmed and moves to Enabled,
// failure stays in Verify so the operator can retry. The flow itself does
// not rate-limit submissions; the Core layers its auth limiter around it.
//
// A SetupFlow is not safe for concurrent use by design: it models one
// operator's enrollment.
type SetupFlow struct {
	mu          sync.Mutex
	state       SetupState
	principalID string
	provision   TwoFactorProvision
	engine      *TOTPEngine
	store       TwoFactorStore
	now         func() time.Time
	onEnabled   func(ctx context.Context, principalID string)
}

// State returns the flow's current position.
func (f *SetupFlow) State() SetupState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Provision returns the secret and provisioning URI generated for this
// enrollment. Valid in every state; the URI is derived, never persisted.
func (f *SetupFlow) Provision() TwoFactorProvision {
	return f.provision
}

// ConfirmProvisioned transitions Setup -> Verify. It is the operator's
// out-of-band confirmation that the authenticator holds the secret; no
// verification happens here.
func (f *SetupFlow) ConfirmProvisioned() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case SetupStateSecret:
		f.state = SetupStateVerify
		return nil
	case SetupStateEnabled:
		return ErrSetupAlreadyEnabled
	default:
		// Already in Verify; confirming again is a no-op.
		return nil
	}
}

// SubmitCode consumes one verification attempt. On a matching code the
// secret is persisted as confirmed and the flow transitions to Enabled; on
// a mismatch the flow stays in Verify and returns
// [ErrTwoFactorCodeInvalid]. Wrong and expired codes are indistinguishable
// to the caller.
func (f *SetupFlow) SubmitCode(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case SetupStateSecret:
		return ErrSetupNotProvisioned
	case SetupStateEnabled:
		return ErrSetupAlreadyEnabled
	}

	ok, err := f.engine.Verify(f.provision.Secret, code, f.now())
	if err != nil {
		return ErrTwoFactorUnavailable
	}
	if !ok {
		return ErrTwoFactorCodeInvalid
	}

	if err := f.store.MarkConfirmed(ctx, f.principalID); err != nil {
		return ErrTwoFactorUnavailable
	}

	f.state = SetupStateEnabled
	if f.onEnabled != nil {
		f.onEnabled(ctx, f.principalID)
	}
	return nil
}

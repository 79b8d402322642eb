package shopauth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	internalaudit "github.com/solmarkt/shopauth/internal/audit"
)

// ControllerState is the position of a [SessionController] in its
// lifecycle state machine.
//
// ControllerState instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ControllerState uint8

const (
	// StateUninitialized is an exported constant or variable used by the storefront auth core.
	StateUninitialized ControllerState = iota
	// StateInitializing is an exported constant or variable used by the storefront auth core.
	StateInitializing
	// StateAuthenticated is an exported constant or variable used by the storefront auth core.
	StateAuthenticated
	// StateAnonymous is an exported constant or variable used by the storefront auth core.
	StateAnonymous
	// StateClosed is an exported constant or variable used by the storefront auth core.
	StateClosed
)

// String returns a short name for the state.
func (s ControllerState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionSnapshot is the read-only view of the controller's state, updated
// on each transition. The role-derived flags are cache-derived and
// advisory; privileged mutations go through [AdminAccessGuard].
type SessionSnapshot struct {
	Principal       *Principal
	Loading         bool
	Initialized     bool
	Err             error
	IsAuthenticated bool
	IsAdmin         bool
	IsSuperAdmin    bool
}

// SessionController owns the authenticated-principal lifecycle:
//
//	Uninitialized -> Initializing -> {Authenticated, Anonymous} -> Closed
//
// Start runs initialization exactly once. While settled, the controller
// consumes session-change notifications from the provider one at a time,
// in emission order. Close unsubscribes and discards any update that
// resolves afterwards, so a torn-down controller never applies stale
// writes.
//
// The controller is the single owner of its principal state; no other
// component mutates it.
type SessionController struct {
	provider SessionProvider
	profiles ProfileStore
	cfg      SessionControllerConfig

	metrics *Metrics
	emit    func(ctx context.Context, event SecurityEvent)

	mu         sync.Mutex
	state      ControllerState
	principal  *Principal
	err        error
	generation uint64

	unsubscribe func()
	done        chan struct{}
	wg          sync.WaitGroup
}

// NewSessionController creates a controller over the given provider and
// profile store. The controller is inert until [SessionController.Start].
func NewSessionController(provider SessionProvider, profiles ProfileStore, cfg SessionControllerConfig) *SessionController {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 16
	}
	return &SessionController{
		provider: provider,
		profiles: profiles,
		cfg:      cfg,
		state:    StateUninitialized,
		done:     make(chan struct{}),
	}
}

// Start initializes the controller from the persisted external session and
// begins consuming session-change notifications. It runs exactly once per
// controller lifetime; re-entrant calls return [ErrControllerStarted].
//
// Start never blocks indefinitely on a broken profile fetch: lookup
// failures settle the controller into Anonymous with a non-fatal error in
// the snapshot. The recognized transient class [ErrPolicyRecursion] is
// suppressed from the snapshot entirely.
func (c *SessionController) Start(ctx context.Context) error {
	if c == nil || c.provider == nil || c.profiles == nil {
		return ErrCoreNotReady
	}

	c.mu.Lock()
	switch c.state {
	case StateUninitialized:
		c.state = StateInitializing
	case StateClosed:
		c.mu.Unlock()
		return ErrControllerClosed
	default:
		c.mu.Unlock()
		return ErrControllerStarted
	}
	gen := c.generation
	c.mu.Unlock()

	// Subscribe before the initial session read so a change emitted during
	// initialization is buffered, not lost. Events are consumed only after
	// the controller settles, preserving order.
	events, cancel, err := c.provider.Subscribe(ctx)
	if err != nil {
		c.settle(gen, nil, fmt.Errorf("%w: %v", ErrSessionLookup, err))
		return nil
	}
	c.mu.Lock()
	c.unsubscribe = cancel
	c.mu.Unlock()

	session, err := c.provider.GetSession(ctx)
	switch {
	case err != nil:
		c.settle(gen, nil, fmt.Errorf("%w: %v", ErrSessionLookup, err))
	case session == nil || session.Expired(time.Now()):
		c.settle(gen, nil, nil)
	default:
		principal, err := c.profiles.FetchProfile(ctx, session.PrincipalID)
		if err != nil {
			c.metricInc(MetricProfileFetchFailure)
			c.settle(gen, nil, profileFetchError(err))
		} else {
			c.settle(gen, principal, nil)
		}
	}

	c.metricInc(MetricSessionInitialized)

	c.wg.Add(1)
	go c.consume(events, gen)

	return nil
}

// consume processes provider notifications one at a time, in emission
// order. It exits when the provider closes the channel or the controller
// is closed.
func (c *SessionController) consume(events <-chan SessionChange, gen uint64) {
	defer c.wg.Done()

	for {
		select {
		case change, ok := <-events:
			if !ok {
				return
			}
			c.handleChange(change, gen)
		case <-c.done:
			return
		}
	}
}

func (c *SessionController) handleChange(change SessionChange, gen uint64) {
	ctx := context.Background()

	switch change.Kind {
	case SessionSignedIn:
		c.metricInc(MetricSessionSignedIn)
		c.applyFetched(ctx, change.Session, gen)

	case SessionSignedOut:
		c.metricInc(MetricSessionSignedOut)
		c.settle(gen, nil, nil)

	case SessionTokenRefreshed:
		c.metricInc(MetricSessionRefreshed)
		c.applyRefreshed(ctx, change.Session, gen)

	default:
		// Unrecognized event kinds are a no-op.
	}
}

// applyFetched resolves the principal for a sign-in notification.
func (c *SessionController) applyFetched(ctx context.Context, session *Session, gen uint64) {
	if session == nil {
		c.settle(gen, nil, nil)
		return
	}

	principal, err := c.profiles.FetchProfile(ctx, session.PrincipalID)
	if err != nil {
		c.metricInc(MetricProfileFetchFailure)
		c.emitEvent(ctx, "profile_fetch_failed", internalaudit.SeverityMedium, session.PrincipalID, map[string]string{"stage": "signed_in"})
		c.settle(gen, nil, profileFetchError(err))
		return
	}
	c.settle(gen, principal, nil)
}

// applyRefreshed re-fetches the principal after a token rotation. A fetch
// failure keeps the current principal; the session itself is still valid.
func (c *SessionController) applyRefreshed(ctx context.Context, session *Session, gen uint64) {
	if session == nil {
		return
	}

	principal, err := c.profiles.FetchProfile(ctx, session.PrincipalID)
	if err != nil {
		c.metricInc(MetricProfileFetchFailure)
		c.mu.Lock()
		if c.generation == gen && c.state != StateClosed {
			c.err = profileFetchError(err)
		}
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	if c.generation == gen && c.state != StateClosed {
		c.principal = principal
		c.state = StateAuthenticated
		c.err = nil
	}
	c.mu.Unlock()
}

// settle applies a resolved principal (or anonymity) unless the result is
// stale: the generation comparison discards updates that resolve after
// Close.
func (c *SessionController) settle(gen uint64, principal *Principal, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen || c.state == StateClosed {
		return
	}

	c.principal = principal
	c.err = err
	if principal != nil {
		c.state = StateAuthenticated
	} else {
		c.state = StateAnonymous
	}
}

// Snapshot returns the current read-only session state view.
func (c *SessionController) Snapshot() SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := SessionSnapshot{
		Principal:   c.principal,
		Loading:     c.state == StateInitializing,
		Initialized: c.state == StateAuthenticated || c.state == StateAnonymous,
		Err:         c.err,
	}
	if c.principal != nil {
		snap.IsAuthenticated = true
		snap.IsAdmin = c.principal.Role.IsAdmin()
		snap.IsSuperAdmin = c.principal.Role.IsSuperAdmin()
	}
	return snap
}

// State returns the controller's lifecycle position.
func (c *SessionController) State() ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close tears the controller down: it unsubscribes immediately, stops the
// consumer, and turns any in-flight update completion into a no-op. Safe
// to call more than once.
func (c *SessionController) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.generation++
	c.principal = nil
	c.err = nil
	cancel := c.unsubscribe
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	close(c.done)
	c.wg.Wait()
}

func (c *SessionController) metricInc(id MetricID) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Inc(id)
}

func (c *SessionController) emitEvent(ctx context.Context, eventType string, severity Severity, subject string, eventCtx map[string]string) {
	if c == nil || c.emit == nil {
		return
	}
	c.emit(ctx, SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Severity:  severity,
		Subject:   subject,
		Context:   eventCtx,
	})
}

// profileFetchError maps a profile lookup failure to the snapshot error.
// The recognized transient class is suppressed (safe default state, no
// user-facing error); everything else surfaces as a non-fatal wrapped
// error. The suppression is a deliberate allowlist, not a catch-all.
func profileFetchError(err error) error {
	if errors.Is(err, ErrPolicyRecursion) {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrProfileLookup, err)
}

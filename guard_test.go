package shopauth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeRoles struct {
	mu      sync.Mutex
	roles   map[string]Role
	err     error
	fetches int
}

func (f *fakeRoles) FetchRole(_ context.Context, principalID string) (Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return RoleUser, f.err
	}
	return f.roles[principalID], nil
}

func TestGuardGrantsAdmin(t *testing.T) {
	provider := newFakeProvider()
	provider.session = validSession("u-1")
	roles := &fakeRoles{roles: map[string]Role{"u-1": RoleAdmin}}
	g := NewAdminAccessGuard(provider, roles)

	decision := g.RequireAdmin(context.Background())
	if !decision.Granted {
		t.Fatalf("expected grant, got %+v", decision)
	}
	if decision.Role != RoleAdmin || decision.Reason != ReasonGranted {
		t.Fatalf("unexpected decision: %+v", decision)
	}
}

func TestGuardGrantsSuperAdminForAdminSet(t *testing.T) {
	provider := newFakeProvider()
	provider.session = validSession("u-1")
	roles := &fakeRoles{roles: map[string]Role{"u-1": RoleSuperAdmin}}
	g := NewAdminAccessGuard(provider, roles)

	if d := g.RequireAdmin(context.Background()); !d.Granted {
		t.Fatalf("super_admin must satisfy the admin set: %+v", d)
	}
}

func TestGuardAdminFailsSuperAdminSet(t *testing.T) {
	provider := newFakeProvider()
	provider.session = validSession("u-1")
	roles := &fakeRoles{roles: map[string]Role{"u-1": RoleAdmin}}
	g := NewAdminAccessGuard(provider, roles)

	d := g.RequireSuperAdmin(context.Background())
	if d.Granted {
		t.Fatal("admin must not satisfy the super-admin set")
	}
	if d.Reason != ReasonInsufficientRole || d.Role != RoleAdmin {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestGuardDenialReasons(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		provider := newFakeProvider()
		roles := &fakeRoles{}
		g := NewAdminAccessGuard(provider, roles)

		d := g.RequireAdmin(context.Background())
		if d.Granted || d.Reason != ReasonNoSession {
			t.Fatalf("expected no_session, got %+v", d)
		}
		if roles.fetches != 0 {
			t.Fatal("no role fetch without a session")
		}
	})

	t.Run("expired session", func(t *testing.T) {
		provider := newFakeProvider()
		provider.session = &Session{
			PrincipalID: "u-1",
			ExpiresAt:   time.Now().Add(-time.Minute),
		}
		g := NewAdminAccessGuard(provider, &fakeRoles{})

		if d := g.RequireAdmin(context.Background()); d.Reason != ReasonNoSession {
			t.Fatalf("expected no_session for expired session, got %+v", d)
		}
	})

	t.Run("session lookup failed", func(t *testing.T) {
		provider := newFakeProvider()
		provider.err = errors.New("store down")
		g := NewAdminAccessGuard(provider, &fakeRoles{})

		if d := g.RequireAdmin(context.Background()); d.Reason != ReasonSessionLookupFailed {
			t.Fatalf("expected session_lookup_failed, got %+v", d)
		}
	})

	t.Run("role lookup failed", func(t *testing.T) {
		provider := newFakeProvider()
		provider.session = validSession("u-1")
		roles := &fakeRoles{err: errors.New("roles down")}
		g := NewAdminAccessGuard(provider, roles)

		d := g.RequireAdmin(context.Background())
		if d.Granted {
			t.Fatal("lookup failure must deny, never grant")
		}
		if d.Reason != ReasonRoleLookupFailed {
			t.Fatalf("expected role_lookup_failed, got %+v", d)
		}
	})

	t.Run("insufficient role", func(t *testing.T) {
		provider := newFakeProvider()
		provider.session = validSession("u-1")
		roles := &fakeRoles{roles: map[string]Role{"u-1": RoleUser}}
		g := NewAdminAccessGuard(provider, roles)

		d := g.RequireAdmin(context.Background())
		if d.Reason != ReasonInsufficientRole || d.Role != RoleUser {
			t.Fatalf("expected insufficient_role, got %+v", d)
		}
	})
}

func TestGuardEmptyRequiredSetAdmitsAnyPrincipal(t *testing.T) {
	provider := newFakeProvider()
	provider.session = validSession("u-1")
	roles := &fakeRoles{roles: map[string]Role{"u-1": RoleUser}}
	g := NewAdminAccessGuard(provider, roles)

	if d := g.ValidateAccess(context.Background()); !d.Granted {
		t.Fatalf("empty required set must admit authenticated principals: %+v", d)
	}
}

func TestGuardRefetchesOnEveryCheck(t *testing.T) {
	provider := newFakeProvider()
	provider.session = validSession("u-1")
	roles := &fakeRoles{roles: map[string]Role{"u-1": RoleAdmin}}
	g := NewAdminAccessGuard(provider, roles)
	ctx := context.Background()

	if d := g.RequireAdmin(ctx); !d.Granted {
		t.Fatalf("first check should grant: %+v", d)
	}

	// Demote between checks; the guard must see the new role immediately.
	roles.mu.Lock()
	roles.roles["u-1"] = RoleUser
	roles.mu.Unlock()

	if d := g.RequireAdmin(ctx); d.Granted {
		t.Fatal("revoked admin must be denied on the next check")
	}
	if roles.fetches != 2 {
		t.Fatalf("expected a role fetch per check, got %d", roles.fetches)
	}
}

func TestGuardCheckIsIdempotent(t *testing.T) {
	provider := newFakeProvider()
	provider.session = validSession("u-1")
	roles := &fakeRoles{roles: map[string]Role{"u-1": RoleAdmin}}
	g := NewAdminAccessGuard(provider, roles)
	ctx := context.Background()

	first := g.RequireAdmin(ctx)
	second := g.RequireAdmin(ctx)
	if first != second {
		t.Fatalf("repeated checks with unchanged state must agree: %+v vs %+v", first, second)
	}
}

func TestGuardDenyEmitsSecurityEvent(t *testing.T) {
	provider := newFakeProvider()
	provider.session = validSession("u-1")
	roles := &fakeRoles{roles: map[string]Role{"u-1": RoleUser}}
	g := NewAdminAccessGuard(provider, roles)

	var events []SecurityEvent
	g.emit = func(_ context.Context, event SecurityEvent) {
		events = append(events, event)
	}

	g.RequireAdmin(context.Background())
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if events[0].EventType != "admin_access_denied" || events[0].Severity != SeverityHigh {
		t.Fatalf("unexpected event: %+v", events[0])
	}
	if events[0].Context["reason"] != string(ReasonInsufficientRole) {
		t.Fatalf("unexpected reason: %+v", events[0].Context)
	}
}

func TestGuardNilDepsFailClosed(t *testing.T) {
	var g *AdminAccessGuard
	if d := g.ValidateAccess(context.Background()); d.Granted {
		t.Fatal("nil guard must deny")
	}
	g = NewAdminAccessGuard(nil, nil)
	if d := g.RequireAdmin(context.Background()); d.Granted {
		t.Fatal("guard without deps must deny")
	}
}

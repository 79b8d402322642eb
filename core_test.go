package shopauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RateLimit.Auth = RateLimitPolicy{MaxAttempts: 3, Window: time.Minute}
	cfg.RateLimit.Checkout = RateLimitPolicy{MaxAttempts: 2, Window: time.Minute}
	cfg.Audit.BufferSize = 64
	return cfg
}

func newTestCore(t *testing.T, provider *fakeProvider, profiles *fakeProfiles, roles *fakeRoles, twoFactor TwoFactorStore, sink SecuritySink) *Core {
	t.Helper()

	b := New().
		WithConfig(testConfig()).
		WithSessionProvider(provider).
		WithProfileStore(profiles).
		WithRoleStore(roles)
	if twoFactor != nil {
		b = b.WithTwoFactorStore(twoFactor)
	}
	if sink != nil {
		b = b.WithSecuritySink(sink)
	}

	core, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(core.Close)
	return core
}

func TestCoreAuthAndCheckoutLimitersAreIndependent(t *testing.T) {
	core := newTestCore(t, newFakeProvider(), &fakeProfiles{}, &fakeRoles{}, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !core.AuthAllowed(ctx, "shopper@solmarkt.dev") {
			t.Fatalf("auth attempt %d should pass", i+1)
		}
	}
	if core.AuthAllowed(ctx, "shopper@solmarkt.dev") {
		t.Fatal("auth budget should be exhausted")
	}
	if core.AuthRetryAfter("shopper@solmarkt.dev") <= 0 {
		t.Fatal("exhausted identifier must report a positive wait")
	}

	// The checkout limiter must be untouched by auth exhaustion.
	if !core.CheckoutAllowed(ctx, "shopper@solmarkt.dev") {
		t.Fatal("checkout budget must be independent of auth")
	}
	if !core.CheckoutAllowed(ctx, "shopper@solmarkt.dev") {
		t.Fatal("second checkout attempt should pass")
	}
	if core.CheckoutAllowed(ctx, "shopper@solmarkt.dev") {
		t.Fatal("checkout budget should be exhausted at 2")
	}
	if core.CheckoutRetryAfter("shopper@solmarkt.dev") <= 0 {
		t.Fatal("exhausted checkout identifier must report a positive wait")
	}

	snap := core.MetricsSnapshot()
	if snap.Counters[MetricAuthRateLimited] != 1 {
		t.Fatalf("expected 1 auth denial, got %d", snap.Counters[MetricAuthRateLimited])
	}
	if snap.Counters[MetricCheckoutRateLimited] != 1 {
		t.Fatalf("expected 1 checkout denial, got %d", snap.Counters[MetricCheckoutRateLimited])
	}
}

func TestCoreBeginTwoFactorSetupEndToEnd(t *testing.T) {
	provider := newFakeProvider()
	profiles := &fakeProfiles{profiles: map[string]*Principal{
		"u-1": principalFixture("u-1", RoleUser),
	}}
	store := newMemTwoFactor()
	core := newTestCore(t, provider, profiles, &fakeRoles{}, store, nil)
	ctx := context.Background()

	flow, err := core.BeginTwoFactorSetup(ctx, "u-1")
	if err != nil {
		t.Fatalf("BeginTwoFactorSetup: %v", err)
	}
	if flow.State() != SetupStateSecret {
		t.Fatalf("expected setup state, got %v", flow.State())
	}

	// The unconfirmed secret is persisted but not active.
	rec, _ := store.Get(ctx, "u-1")
	if rec == nil || rec.Enabled {
		t.Fatalf("expected unconfirmed record, got %+v", rec)
	}
	if err := core.VerifyTwoFactor(ctx, "u-1", "123456"); !errors.Is(err, ErrTwoFactorNotConfigured) {
		t.Fatalf("unconfirmed secret must not verify: %v", err)
	}

	if err := flow.ConfirmProvisioned(); err != nil {
		t.Fatalf("ConfirmProvisioned: %v", err)
	}

	key, err := decodeTOTPSecret(flow.Provision().Secret)
	if err != nil {
		t.Fatalf("decode secret: %v", err)
	}
	code, err := hotpCode(key, time.Now().Unix()/30, 6, "SHA1")
	if err != nil {
		t.Fatalf("hotpCode: %v", err)
	}
	if err := flow.SubmitCode(ctx, code); err != nil {
		t.Fatalf("SubmitCode: %v", err)
	}

	// Now the login-time path verifies against the enabled record.
	if err := core.VerifyTwoFactor(ctx, "u-1", code); err != nil {
		t.Fatalf("VerifyTwoFactor after enrollment: %v", err)
	}

	snap := core.MetricsSnapshot()
	for _, id := range []MetricID{MetricTwoFactorSetupStarted, MetricTwoFactorEnabled, MetricTwoFactorSuccess} {
		if snap.Counters[id] != 1 {
			t.Fatalf("expected metric %d to be 1, got %d", id, snap.Counters[id])
		}
	}
}

func TestCoreBeginTwoFactorSetupLabelsURIWithEmail(t *testing.T) {
	profiles := &fakeProfiles{profiles: map[string]*Principal{
		"u-1": principalFixture("u-1", RoleUser),
	}}
	core := newTestCore(t, newFakeProvider(), profiles, &fakeRoles{}, newMemTwoFactor(), nil)

	flow, err := core.BeginTwoFactorSetup(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("BeginTwoFactorSetup: %v", err)
	}
	wantLabel := "otpauth://totp/solmarkt:u-1@solmarkt.dev?"
	if uri := flow.Provision().URI; len(uri) < len(wantLabel) || uri[:len(wantLabel)] != wantLabel {
		t.Fatalf("expected email-labelled URI, got %q", uri)
	}
}

func TestCoreVerifyTwoFactorRateLimited(t *testing.T) {
	store := newMemTwoFactor()
	secret, _ := NewTOTPEngine(TOTPConfig{}).GenerateSecret()
	_ = store.Save(context.Background(), TwoFactorRecord{PrincipalID: "u-1", Secret: secret, Enabled: true})

	core := newTestCore(t, newFakeProvider(), &fakeProfiles{}, &fakeRoles{}, store, nil)
	ctx := context.Background()

	// Burn the budget with wrong codes, then expect ErrRateLimited.
	for i := 0; i < 3; i++ {
		if err := core.VerifyTwoFactor(ctx, "u-1", "000000"); !errors.Is(err, ErrTwoFactorCodeInvalid) {
			t.Fatalf("attempt %d: expected ErrTwoFactorCodeInvalid, got %v", i+1, err)
		}
	}
	if err := core.VerifyTwoFactor(ctx, "u-1", "000000"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestCoreVerifyTwoFactorSuccessResetsLimiter(t *testing.T) {
	store := newMemTwoFactor()
	engine := NewTOTPEngine(TOTPConfig{})
	secret, _ := engine.GenerateSecret()
	_ = store.Save(context.Background(), TwoFactorRecord{PrincipalID: "u-1", Secret: secret, Enabled: true})

	core := newTestCore(t, newFakeProvider(), &fakeProfiles{}, &fakeRoles{}, store, nil)
	ctx := context.Background()

	key, _ := decodeTOTPSecret(secret)
	code, _ := hotpCode(key, time.Now().Unix()/30, 6, "SHA1")

	// Two failures, then a success; the budget must be fully restored.
	_ = core.VerifyTwoFactor(ctx, "u-1", "000000")
	_ = core.VerifyTwoFactor(ctx, "u-1", "000000")
	if err := core.VerifyTwoFactor(ctx, "u-1", code); err != nil {
		t.Fatalf("VerifyTwoFactor: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := core.VerifyTwoFactor(ctx, "u-1", code); errors.Is(err, ErrRateLimited) {
			t.Fatalf("attempt %d after reset must not be rate limited", i+1)
		}
	}
}

func TestCoreVerifyTwoFactorWithoutStore(t *testing.T) {
	core := newTestCore(t, newFakeProvider(), &fakeProfiles{}, &fakeRoles{}, nil, nil)

	if err := core.VerifyTwoFactor(context.Background(), "u-1", "123456"); !errors.Is(err, ErrTwoFactorUnavailable) {
		t.Fatalf("expected ErrTwoFactorUnavailable, got %v", err)
	}
	if _, err := core.BeginTwoFactorSetup(context.Background(), "u-1"); !errors.Is(err, ErrTwoFactorUnavailable) {
		t.Fatalf("expected ErrTwoFactorUnavailable, got %v", err)
	}
}

func TestCoreDisableTwoFactor(t *testing.T) {
	store := newMemTwoFactor()
	secret, _ := NewTOTPEngine(TOTPConfig{}).GenerateSecret()
	_ = store.Save(context.Background(), TwoFactorRecord{PrincipalID: "u-1", Secret: secret, Enabled: true})

	core := newTestCore(t, newFakeProvider(), &fakeProfiles{}, &fakeRoles{}, store, nil)
	ctx := context.Background()

	if err := core.DisableTwoFactor(ctx, "u-1"); err != nil {
		t.Fatalf("DisableTwoFactor: %v", err)
	}
	if err := core.VerifyTwoFactor(ctx, "u-1", "123456"); !errors.Is(err, ErrTwoFactorNotConfigured) {
		t.Fatalf("expected ErrTwoFactorNotConfigured after disable, got %v", err)
	}
}

func TestCoreRateLimitDenialEmitsAuditEvent(t *testing.T) {
	sink := NewChannelSink(16)
	core := newTestCore(t, newFakeProvider(), &fakeProfiles{}, &fakeRoles{}, nil, sink)

	ctx := WithClientIP(WithRequestID(context.Background(), "req-7"), "203.0.113.9")
	for i := 0; i < 4; i++ {
		core.AuthAllowed(ctx, "shopper@solmarkt.dev")
	}

	select {
	case event := <-sink.Events():
		if event.EventType != "auth_rate_limited" || event.Severity != SeverityHigh {
			t.Fatalf("unexpected event: %+v", event)
		}
		if event.Subject != "shopper@solmarkt.dev" {
			t.Fatalf("unexpected subject: %q", event.Subject)
		}
		if event.IP != "203.0.113.9" || event.Context["request_id"] != "req-7" {
			t.Fatalf("context propagation failed: %+v", event)
		}
		if event.ID == "" {
			t.Fatal("event must carry an ID")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected an audit event")
	}
}

func TestCoreStartAndSnapshot(t *testing.T) {
	provider := newFakeProvider()
	provider.session = validSession("u-1")
	profiles := &fakeProfiles{profiles: map[string]*Principal{
		"u-1": principalFixture("u-1", RoleSuperAdmin),
	}}
	roles := &fakeRoles{roles: map[string]Role{"u-1": RoleSuperAdmin}}
	core := newTestCore(t, provider, profiles, roles, nil, nil)

	if err := core.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	snap := core.Snapshot()
	if !snap.IsAuthenticated || !snap.IsSuperAdmin {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	if d := core.RequireSuperAdmin(context.Background()); !d.Granted {
		t.Fatalf("expected super admin grant: %+v", d)
	}
	if d := core.RequireAdmin(context.Background()); !d.Granted {
		t.Fatalf("super admin must satisfy admin set: %+v", d)
	}
}

func TestCoreNilSafety(t *testing.T) {
	var core *Core

	if core.AuthAllowed(context.Background(), "x") {
		t.Fatal("nil core must deny")
	}
	if core.Start(context.Background()) != ErrCoreNotReady {
		t.Fatal("nil core Start must report not ready")
	}
	if d := core.ValidateAccess(context.Background()); d.Granted {
		t.Fatal("nil core must deny access")
	}
	core.Close()
	if got := core.MetricsSnapshot(); len(got.Counters) != 0 {
		t.Fatalf("nil core snapshot must be empty, got %v", got)
	}
}

package sessionstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	shopauth "github.com/solmarkt/shopauth"
	"github.com/solmarkt/shopauth/token"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tokens, err := token.NewManager(token.Config{
		TTL:           time.Minute,
		SigningMethod: token.MethodHS256,
		Key:           []byte("test-signing-key"),
		Issuer:        "solmarkt",
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	s := New(client, tokens, Config{Prefix: "t", SessionTTL: time.Hour})
	t.Cleanup(s.Close)
	return s, mr
}

func principalFixture() shopauth.Principal {
	return shopauth.Principal{
		ID:          "u-1",
		Email:       "shopper@solmarkt.dev",
		DisplayName: "Shopper",
		Role:        shopauth.RoleUser,
	}
}

func TestSignInPersistsAndMintsToken(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	session, accessToken, err := s.SignIn(ctx, principalFixture())
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if session.PrincipalID != "u-1" || session.RefreshToken == "" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if accessToken == "" {
		t.Fatal("expected a signed access token")
	}

	got, err := s.GetSession(ctx)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got == nil || got.PrincipalID != "u-1" || got.RefreshToken != session.RefreshToken {
		t.Fatalf("persisted session mismatch: %+v", got)
	}
}

func TestGetSessionWithoutSignIn(t *testing.T) {
	s, _ := newTestStore(t)

	got, err := s.GetSession(context.Background())
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil session, got %+v", got)
	}
}

func TestGetSessionAfterRedisExpiry(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if _, _, err := s.SignIn(ctx, principalFixture()); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	mr.FastForward(2 * time.Hour)

	got, err := s.GetSession(ctx)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got != nil {
		t.Fatalf("expired record must read as no session, got %+v", got)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	session, _, err := s.SignIn(ctx, principalFixture())
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	refreshed, err := s.Refresh(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.RefreshToken == session.RefreshToken {
		t.Fatal("refresh must rotate the token")
	}
	if !refreshed.ExpiresAt.After(session.ExpiresAt.Add(-time.Second)) {
		t.Fatalf("refresh must extend expiry: %v vs %v", refreshed.ExpiresAt, session.ExpiresAt)
	}

	// The old token is spent.
	if _, err := s.Refresh(ctx, session.RefreshToken); !errors.Is(err, ErrRefreshMismatch) {
		t.Fatalf("expected ErrRefreshMismatch for the spent token, got %v", err)
	}

	// The new one works.
	if _, err := s.Refresh(ctx, refreshed.RefreshToken); err != nil {
		t.Fatalf("Refresh with rotated token: %v", err)
	}
}

func TestRefreshUnknownToken(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Refresh(context.Background(), "no-such-token"); !errors.Is(err, ErrRefreshMismatch) {
		t.Fatalf("expected ErrRefreshMismatch, got %v", err)
	}
}

func TestSignOutClearsSession(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	session, _, err := s.SignIn(ctx, principalFixture())
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if err := s.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	got, err := s.GetSession(ctx)
	if err != nil || got != nil {
		t.Fatalf("expected no session after sign-out: got=%+v err=%v", got, err)
	}
	if _, err := s.Refresh(ctx, session.RefreshToken); !errors.Is(err, ErrRefreshMismatch) {
		t.Fatalf("refresh token must die with the session, got %v", err)
	}
}

func TestSignOutWithoutSessionIsSilent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	events, cancel, err := s.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	if err := s.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	select {
	case change := <-events:
		t.Fatalf("no-op sign-out must not notify subscribers, got %v", change.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeReceivesLifecycleEvents(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	events, cancel, err := s.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	session, _, err := s.SignIn(ctx, principalFixture())
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if _, err := s.Refresh(ctx, session.RefreshToken); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if err := s.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	want := []shopauth.SessionChangeKind{
		shopauth.SessionSignedIn,
		shopauth.SessionTokenRefreshed,
		shopauth.SessionSignedOut,
	}
	for i, kind := range want {
		select {
		case change := <-events:
			if change.Kind != kind {
				t.Fatalf("event %d: expected %q, got %q", i, kind, change.Kind)
			}
			if kind != shopauth.SessionSignedOut && change.Session == nil {
				t.Fatalf("event %d must carry a session", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing event %d (%q)", i, kind)
		}
	}
}

func TestSubscribeCancelIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)

	events, cancel, err := s.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	cancel()
	cancel()

	if _, ok := <-events; ok {
		t.Fatal("cancel must close the channel")
	}

	// Emitting after cancel must not panic or deliver.
	if _, _, err := s.SignIn(context.Background(), principalFixture()); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
}

func TestSubscribeAfterCloseFails(t *testing.T) {
	s, _ := newTestStore(t)
	s.Close()
	if _, _, err := s.Subscribe(context.Background()); err == nil {
		t.Fatal("subscribe on a closed store must fail")
	}
}

func TestSignInWithoutTokenManager(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := New(client, nil, Config{})
	t.Cleanup(s.Close)

	session, accessToken, err := s.SignIn(context.Background(), principalFixture())
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if session == nil || accessToken != "" {
		t.Fatalf("expected session without token: sess=%+v tok=%q", session, accessToken)
	}
}

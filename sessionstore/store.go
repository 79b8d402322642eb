package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	shopauth "github.com/solmarkt/shopauth"
	"github.com/solmarkt/shopauth/token"
)

// ErrRedisUnavailable is an exported constant or variable used by the storefront auth core.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrSessionNotFound is returned when the refresh target session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// ErrRefreshMismatch is returned when a refresh token does not match the stored rotation state.
var ErrRefreshMismatch = errors.New("refresh token mismatch")

// rotateScript swaps the refresh pointer atomically so two concurrent
// refreshes with the same token cannot both succeed.
const rotateScript = `
local sid = redis.call("GET", KEYS[1])
if not sid then
  return ""
end
redis.call("DEL", KEYS[1])
redis.call("SET", KEYS[2], sid, "PX", ARGV[1])
return sid
`

var rotateLua = redis.NewScript(rotateScript)

// Config defines a public type used by shopauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Prefix     string
	SessionTTL time.Duration
}

type record struct {
	SessionID    string    `json:"session_id"`
	PrincipalID  string    `json:"principal_id"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
}

// Store is a Redis-backed [shopauth.SessionProvider]. It persists one
// current session per Store (the storefront edge constructs one Store per
// client scope), issues signed access tokens via the token manager, and
// fans session changes out to subscribers in emission order.
type Store struct {
	redis  redis.UniversalClient
	tokens *token.Manager
	cfg    Config

	mu        sync.Mutex
	currentID string
	subs      map[uint64]chan shopauth.SessionChange
	nextSub   uint64
	closed    bool
}

// New creates a session store. A nil token manager disables access-token
// minting; SignIn then returns an empty token.
func New(redisClient redis.UniversalClient, tokens *token.Manager, cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = "sa"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	return &Store{
		redis:  redisClient,
		tokens: tokens,
		cfg:    cfg,
		subs:   make(map[uint64]chan shopauth.SessionChange),
	}
}

func (s *Store) sessionKey(sessionID string) string {
	return s.cfg.Prefix + ":sess:" + sessionID
}

func (s *Store) refreshKey(refreshToken string) string {
	return s.cfg.Prefix + ":ref:" + refreshToken
}

// SignIn creates a session for the principal, persists it with TTL, and
// notifies subscribers. The returned access token is signed by the token
// manager when one is configured.
func (s *Store) SignIn(ctx context.Context, principal shopauth.Principal) (*shopauth.Session, string, error) {
	now := time.Now().UTC()
	rec := record{
		SessionID:    uuid.NewString(),
		PrincipalID:  principal.ID,
		IssuedAt:     now,
		ExpiresAt:    now.Add(s.cfg.SessionTTL),
		RefreshToken: uuid.NewString(),
	}

	if err := s.persist(ctx, rec); err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	s.currentID = rec.SessionID
	s.mu.Unlock()

	session := rec.session()

	accessToken := ""
	if s.tokens != nil {
		var err error
		accessToken, err = s.tokens.Issue(principal.ID, principal.Role.String(), rec.SessionID, now)
		if err != nil {
			return nil, "", err
		}
	}

	s.broadcast(shopauth.SessionChange{Kind: shopauth.SessionSignedIn, Session: &session})
	return &session, accessToken, nil
}

// Refresh rotates the refresh token, extends the session TTL, and notifies
// subscribers with a token_refreshed event.
func (s *Store) Refresh(ctx context.Context, refreshToken string) (*shopauth.Session, error) {
	next := uuid.NewString()
	ttlMillis := s.cfg.SessionTTL.Milliseconds()

	sid, err := rotateLua.Run(ctx, s.redis,
		[]string{s.refreshKey(refreshToken), s.refreshKey(next)},
		ttlMillis,
	).Text()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if sid == "" {
		return nil, ErrRefreshMismatch
	}

	rec, err := s.load(ctx, sid)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec.RefreshToken = next
	rec.ExpiresAt = now.Add(s.cfg.SessionTTL)
	if err := s.persist(ctx, *rec); err != nil {
		return nil, err
	}

	session := rec.session()
	s.broadcast(shopauth.SessionChange{Kind: shopauth.SessionTokenRefreshed, Session: &session})
	return &session, nil
}

// SignOut destroys the current session and notifies subscribers.
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	sid := s.currentID
	s.currentID = ""
	s.mu.Unlock()

	if sid == "" {
		// Nothing to tear down; do not notify subscribers.
		return nil
	}

	rec, err := s.load(ctx, sid)
	if err == nil && rec != nil {
		_ = s.redis.Del(ctx, s.refreshKey(rec.RefreshToken)).Err()
	}
	if err := s.redis.Del(ctx, s.sessionKey(sid)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	s.broadcast(shopauth.SessionChange{Kind: shopauth.SessionSignedOut})
	return nil
}

// GetSession implements [shopauth.SessionProvider]. A missing or expired
// record is a nil session, not an error.
func (s *Store) GetSession(ctx context.Context) (*shopauth.Session, error) {
	s.mu.Lock()
	sid := s.currentID
	s.mu.Unlock()

	if sid == "" {
		return nil, nil
	}

	rec, err := s.load(ctx, sid)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if rec.ExpiresAt.Before(time.Now().UTC()) {
		return nil, nil
	}

	session := rec.session()
	return &session, nil
}

// Subscribe implements [shopauth.SessionProvider]. The cancel func is
// idempotent and closes the returned channel.
func (s *Store) Subscribe(ctx context.Context) (<-chan shopauth.SessionChange, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil, errors.New("session store closed")
	}

	id := s.nextSub
	s.nextSub++
	ch := make(chan shopauth.SessionChange, 16)
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
			s.mu.Unlock()
		})
	}
	return ch, cancel, nil
}

// Close drops all subscriptions.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// broadcast delivers the change to every subscriber without blocking on a
// full buffer: a subscriber that stopped draining loses events rather than
// stalling every other consumer.
func (s *Store) broadcast(change shopauth.SessionChange) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- change:
		default:
		}
	}
}

func (s *Store) persist(ctx context.Context, rec record) error {
	blob, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.sessionKey(rec.SessionID), blob, s.cfg.SessionTTL)
	pipe.Set(ctx, s.refreshKey(rec.RefreshToken), rec.SessionID, s.cfg.SessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, sessionID string) (*record, error) {
	blob, err := s.redis.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var rec record
	if err := json.Unmarshal(blob, &rec); err != nil {
		return nil, fmt.Errorf("corrupt session blob: %w", err)
	}
	return &rec, nil
}

func (r record) session() shopauth.Session {
	return shopauth.Session{
		PrincipalID:  r.PrincipalID,
		IssuedAt:     r.IssuedAt,
		ExpiresAt:    r.ExpiresAt,
		RefreshToken: r.RefreshToken,
	}
}

package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod defines a public type used by shopauth APIs.
//
// SigningMethod instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SigningMethod string

const (
	// MethodHS256 is an exported constant or variable used by the storefront auth core.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 is an exported constant or variable used by the storefront auth core.
	MethodEd25519 SigningMethod = "ed25519"
)

// Config defines a public type used by shopauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	Key           []byte // HS256 secret or ed25519 private key
	PublicKey     []byte // ed25519 verify key
	Issuer        string
	Leeway        time.Duration
}

// Claims bind an access token to a principal and the session that issued
// it.
type Claims struct {
	PrincipalID string `json:"sub_id"`
	Role        string `json:"role"`
	SessionID   string `json:"sid"`
	jwt.RegisteredClaims
}

// Manager issues and verifies the compact access tokens handed out by the
// bundled session provider.
//
// Manager instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Manager struct {
	config Config
}

// NewManager validates the config and returns a token manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.Key) == 0 {
			return nil, errors.New("hs256 requires a signing key")
		}
	case MethodEd25519:
		if len(cfg.Key) != ed25519.PrivateKeySize {
			return nil, errors.New("invalid ed25519 private key")
		}
		if len(cfg.PublicKey) != ed25519.PublicKeySize {
			return nil, errors.New("invalid ed25519 public key")
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg}, nil
}

// Issue creates a signed access token for the principal.
func (m *Manager) Issue(principalID, role, sessionID string, now time.Time) (string, error) {
	claims := Claims{
		PrincipalID: principalID,
		Role:        role,
		SessionID:   sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(m.method(), claims)
	return token.SignedString(m.signKey())
}

// Parse verifies the token signature and registered claims and returns the
// principal binding.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.verifyKey(), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}

func (m *Manager) method() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodEd25519:
		return jwt.SigningMethodEdDSA
	default:
		return jwt.SigningMethodHS256
	}
}

func (m *Manager) signKey() interface{} {
	switch m.config.SigningMethod {
	case MethodEd25519:
		return ed25519.PrivateKey(m.config.Key)
	default:
		return m.config.Key
	}
}

func (m *Manager) verifyKey() interface{} {
	switch m.config.SigningMethod {
	case MethodEd25519:
		return ed25519.PublicKey(m.config.PublicKey)
	default:
		return m.config.Key
	}
}

package shopauth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// 20 random bytes base32-encode to the 32-character secret authenticator
// apps expect for manual entry.
const totpSecretBytes = 20

// TOTPEngine derives and verifies time-based one-time codes. Verification
// is stateless and deterministic over (secret, time step); all state around
// setup lives in [SetupFlow].
//
// TOTPEngine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TOTPEngine struct {
	config TOTPConfig
}

// NewTOTPEngine creates a TOTP engine. Zero-value fields in cfg fall back
// to the standard 6-digit / 30-second / SHA1 / ±1-step profile.
func NewTOTPEngine(cfg TOTPConfig) *TOTPEngine {
	if cfg.Issuer == "" {
		cfg.Issuer = "solmarkt"
	}
	if cfg.Digits <= 0 {
		cfg.Digits = 6
	}
	if cfg.Period <= 0 {
		cfg.Period = 30
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	if cfg.Skew <= 0 {
		cfg.Skew = 1
	}
	return &TOTPEngine{config: cfg}
}

// GenerateSecret produces a cryptographically random shared secret encoded
// as a fixed-length base32 string suitable for manual entry.
func (e *TOTPEngine) GenerateSecret() (string, error) {
	if e == nil {
		return "", ErrCoreNotReady
	}
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return enc.EncodeToString(raw), nil
}

// ProvisionURI constructs the otpauth://totp/ URI embedding issuer, account
// label, and secret, consumable by standard authenticator apps.
func (e *TOTPEngine) ProvisionURI(secret, account string) string {
	issuer := e.config.Issuer
	label := url.PathEscape(issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", issuer)
	v.Set("period", strconv.Itoa(e.config.Period))
	v.Set("digits", strconv.Itoa(e.config.Digits))
	v.Set("algorithm", strings.ToUpper(e.config.Algorithm))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// Verify checks a submitted code against the time steps now-skew .. now+skew.
// Malformed codes are rejected without key derivation, matches use a
// constant-time compare, and the result never reveals which step matched.
func (e *TOTPEngine) Verify(secret, code string, now time.Time) (bool, error) {
	if e == nil {
		return false, ErrCoreNotReady
	}

	trimmed := strings.TrimSpace(code)
	if len(trimmed) != e.config.Digits || !isNumericString(trimmed) {
		return false, nil
	}

	key, err := decodeTOTPSecret(secret)
	if err != nil {
		return false, err
	}

	baseStep := now.Unix() / int64(e.config.Period)
	for offset := -e.config.Skew; offset <= e.config.Skew; offset++ {
		step := baseStep + int64(offset)
		if step < 0 {
			continue
		}
		generated, err := hotpCode(key, step, e.config.Digits, e.config.Algorithm)
		if err != nil {
			return false, err
		}
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true, nil
		}
	}

	return false, nil
}

func decodeTOTPSecret(secret string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("empty totp secret")
	}
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	key, err := enc.DecodeString(strings.ToUpper(strings.TrimSpace(secret)))
	if err != nil {
		return nil, fmt.Errorf("malformed totp secret: %w", err)
	}
	return key, nil
}

// hotpCode is the RFC 4226 dynamic truncation over an HMAC of the counter.
func hotpCode(secret []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	code := bin % mod
	return fmt.Sprintf("%0*d", digits, code), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, errors.New("unsupported totp algorithm")
	}
}

func isNumericString(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

package identity

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenBinder wraps opaque session ids in signed bearer tokens for transport.
// The session record stays server-side; the token carries only the id, so a
// forged or tampered token fails signature checks before any store lookup.
type TokenBinder struct {
	method  string
	signKey any
	verify  any
	ttl     time.Duration
	issuer  string
}

type sessionClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewTokenBinder validates the signing configuration. sessionLifetime is the
// fallback TTL when cfg.TTL is zero.
func NewTokenBinder(cfg TokenConfig, sessionLifetime time.Duration) (*TokenBinder, error) {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = sessionLifetime
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}

	b := &TokenBinder{
		method: strings.ToLower(cfg.Method),
		ttl:    ttl,
		issuer: cfg.Issuer,
	}

	switch b.method {
	case "hs256":
		if len(cfg.SigningKey) < 32 {
			return nil, errors.New("hs256 requires a signing key of at least 32 bytes")
		}
		b.signKey = cfg.SigningKey
		b.verify = cfg.SigningKey
	case "ed25519":
		if len(cfg.SigningKey) != ed25519.SeedSize {
			return nil, errors.New("ed25519 requires a 32-byte private key seed")
		}
		priv := ed25519.NewKeyFromSeed(cfg.SigningKey)
		b.signKey = priv
		if len(cfg.VerifyKey) == ed25519.PublicKeySize {
			b.verify = ed25519.PublicKey(cfg.VerifyKey)
		} else {
			b.verify = priv.Public()
		}
	default:
		return nil, errors.New("token method must be hs256 or ed25519")
	}

	return b, nil
}

// Issue signs a bearer token referencing the session id.
func (b *TokenBinder) Issue(sessionID string) (string, error) {
	if b == nil {
		return "", ErrEngineNotReady
	}
	if sessionID == "" {
		return "", fmt.Errorf("%w: session id", ErrMissingField)
	}

	now := time.Now()
	claims := sessionClaims{
		SID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    b.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(b.ttl)),
		},
	}

	var method jwt.SigningMethod = jwt.SigningMethodHS256
	if b.method == "ed25519" {
		method = jwt.SigningMethodEdDSA
	}

	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString(b.signKey)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// SessionID verifies a bearer token and returns the session id it references.
// Signature, algorithm, and expiry failures all collapse to ErrTokenInvalid.
func (b *TokenBinder) SessionID(tokenString string) (string, error) {
	if b == nil {
		return "", ErrEngineNotReady
	}

	expectedAlg := jwt.SigningMethodHS256.Alg()
	if b.method == "ed25519" {
		expectedAlg = jwt.SigningMethodEdDSA.Alg()
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != expectedAlg {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return b.verify, nil
	}, jwt.WithIssuedAt())
	if err != nil || !token.Valid {
		return "", ErrTokenInvalid
	}
	if claims.SID == "" {
		return "", ErrTokenInvalid
	}
	if b.issuer != "" && claims.Issuer != b.issuer {
		return "", ErrTokenInvalid
	}

	return claims.SID, nil
}

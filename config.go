package identity

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config defines the engine's tunables. Instances are configured during
// initialization and treated as immutable after [Builder.Build].
type Config struct {
	OTP       OTPConfig
	MagicLink MagicLinkConfig
	Session   SessionConfig
	MFA       MFAConfig
	Audit     AuditConfig
	Token     TokenConfig
}

// OTPConfig controls numeric one-time code issuance.
type OTPConfig struct {
	// Digits is the code length. Valid range 4..10.
	Digits int
	// TTL bounds how long a stored code stays verifiable.
	TTL time.Duration
	// KeyPrefix namespaces OTP keys in the credential store.
	KeyPrefix string
}

// MagicLinkConfig controls single-use link token issuance.
type MagicLinkConfig struct {
	// TTL bounds how long a stored token stays verifiable.
	TTL time.Duration
	// BaseURL is the scheme+host the composed link points at.
	BaseURL string
	// AuthPath is the fixed path handling link verification.
	AuthPath string
	// DefaultRedirect is used when the caller supplies no redirect path.
	DefaultRedirect string
	// KeyPrefix namespaces link-token keys in the credential store.
	KeyPrefix string
}

// SessionConfig controls session lifecycle.
type SessionConfig struct {
	// KeyPrefix namespaces session keys and the conflict journal.
	KeyPrefix string
	// AbsoluteLifetime is the age-based TTL. Revalidation refreshes
	// LastValidatedAt but never extends a session past this limit.
	AbsoluteLifetime time.Duration
}

// MFAConfig controls the admin second-factor gate.
type MFAConfig struct {
	// Digits is the expected code length. The gate format-checks before any
	// storage access.
	Digits int
	// Period is the TOTP step in seconds.
	Period int
	// Skew is the number of adjacent steps accepted either side of now.
	Skew int
	// Algorithm selects the TOTP HMAC: SHA1 (default), SHA256, or SHA512.
	Algorithm string
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events instead of blocking Emit. Audit must never
	// stall an auth decision, so this defaults on.
	DropIfFull bool
}

// TokenConfig controls the optional signed bearer binding of session ids.
// Leave SigningKey empty to disable the binder.
type TokenConfig struct {
	// Method is "hs256" or "ed25519".
	Method string
	// SigningKey is the HMAC secret (hs256) or Ed25519 private key seed.
	SigningKey []byte
	// VerifyKey is the Ed25519 public key; ignored for hs256.
	VerifyKey []byte
	// TTL bounds token validity. Zero inherits Session.AbsoluteLifetime.
	TTL    time.Duration
	Issuer string
}

func defaultConfig() Config {
	return Config{
		OTP: OTPConfig{
			Digits:    6,
			TTL:       5 * time.Minute,
			KeyPrefix: "otp",
		},
		MagicLink: MagicLinkConfig{
			TTL:             15 * time.Minute,
			BaseURL:         "http://localhost:8080",
			AuthPath:        "/auth/magic",
			DefaultRedirect: "/app",
			KeyPrefix:       "mlink",
		},
		Session: SessionConfig{
			KeyPrefix:        "sess",
			AbsoluteLifetime: 24 * time.Hour,
		},
		MFA: MFAConfig{
			Digits:    6,
			Period:    30,
			Skew:      1,
			Algorithm: "SHA1",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

func validateConfig(cfg *Config) error {
	if cfg.OTP.Digits < 4 || cfg.OTP.Digits > 10 {
		return errors.New("otp digits must be between 4 and 10")
	}
	if cfg.OTP.TTL <= 0 {
		return errors.New("otp ttl must be positive")
	}
	if cfg.OTP.KeyPrefix == "" {
		return errors.New("otp key prefix must not be empty")
	}

	if cfg.MagicLink.TTL <= 0 {
		return errors.New("magic link ttl must be positive")
	}
	if _, err := url.Parse(cfg.MagicLink.BaseURL); err != nil || cfg.MagicLink.BaseURL == "" {
		return errors.New("magic link base url invalid")
	}
	if !strings.HasPrefix(cfg.MagicLink.AuthPath, "/") {
		return errors.New("magic link auth path must start with /")
	}
	if cfg.MagicLink.DefaultRedirect == "" {
		return errors.New("magic link default redirect must not be empty")
	}
	if cfg.MagicLink.KeyPrefix == "" {
		return errors.New("magic link key prefix must not be empty")
	}

	if cfg.Session.AbsoluteLifetime <= 0 {
		return errors.New("session absolute lifetime must be positive")
	}
	if cfg.Session.KeyPrefix == "" {
		return errors.New("session key prefix must not be empty")
	}

	if cfg.MFA.Digits != 6 {
		return errors.New("mfa digits must be 6")
	}
	if cfg.MFA.Period <= 0 {
		return errors.New("mfa period must be positive")
	}
	if cfg.MFA.Skew < 0 || cfg.MFA.Skew > 4 {
		return errors.New("mfa skew out of range")
	}
	switch strings.ToUpper(cfg.MFA.Algorithm) {
	case "", "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("unsupported mfa algorithm")
	}

	if cfg.Audit.Enabled && cfg.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be positive")
	}

	if len(cfg.Token.SigningKey) > 0 {
		switch strings.ToLower(cfg.Token.Method) {
		case "hs256", "ed25519":
		default:
			return errors.New("token method must be hs256 or ed25519")
		}
	}

	return nil
}

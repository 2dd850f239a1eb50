package identity

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"strings"
	"time"
)

// totpVerifier checks RFC 6238 time-based codes against an enrolled secret.
// Verification only; enrollment and secret storage belong to the external
// account store behind ProfileProvider.
type totpVerifier struct {
	config MFAConfig
}

func newTOTPVerifier(cfg MFAConfig) *totpVerifier {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	if cfg.Period <= 0 {
		cfg.Period = 30
	}
	if cfg.Digits <= 0 {
		cfg.Digits = 6
	}
	return &totpVerifier{config: cfg}
}

func (v *totpVerifier) VerifyCode(secret []byte, code string, now time.Time) (bool, error) {
	if v == nil {
		return false, ErrEngineNotReady
	}
	if len(secret) == 0 {
		return false, errors.New("empty totp secret")
	}

	trimmed := strings.TrimSpace(code)
	if len(trimmed) != v.config.Digits || !isNumericString(trimmed) {
		return false, nil
	}

	baseCounter := now.Unix() / int64(v.config.Period)
	for step := -v.config.Skew; step <= v.config.Skew; step++ {
		counter := baseCounter + int64(step)
		if counter < 0 {
			continue
		}
		generated, err := hotpCode(secret, counter, v.config.Digits, v.config.Algorithm)
		if err != nil {
			return false, err
		}
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true, nil
		}
	}

	return false, nil
}

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
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

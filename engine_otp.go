package identity

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fieldserve/identity/credential"
	"github.com/fieldserve/identity/internal"
)

// GenerateOTP returns a uniformly random numeric code of the configured
// length. Pass 0 to use the configured default.
func (e *Engine) GenerateOTP(length int) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if length == 0 {
		length = e.config.OTP.Digits
	}
	return internal.NewOTP(length)
}

// StoreOTP writes a code for the contact identifier, replacing any
// outstanding code, and reports success. The OTP surface never returns an
// error: storage failure degrades to false so the caller fails closed without
// special-casing.
func (e *Engine) StoreOTP(ctx context.Context, identifier, code string) bool {
	if e == nil || identifier == "" || code == "" {
		return false
	}

	rec := &credential.Record{
		SubjectID: identifier,
		Purpose:   credential.PurposeOTP,
		Payload:   code,
		ExpiresAt: time.Now().Add(e.config.OTP.TTL).Unix(),
	}

	if err := e.credentials.Save(ctx, e.otpKey(identifier), rec, e.config.OTP.TTL); err != nil {
		e.log().Warn("otp store failed", zap.String("identifier", identifier), zap.Error(err))
		return false
	}

	e.emitAudit(ctx, auditEventOTPIssued, true, "", "", nil, func() map[string]string {
		return map[string]string{"identifier": identifier}
	})
	return true
}

// VerifyOTP consumes the stored code on match and returns true exactly once
// per stored code. A mismatch leaves the stored code intact; absence, expiry,
// and storage failure all return false. No error ever escapes an OTP check.
func (e *Engine) VerifyOTP(ctx context.Context, identifier, code string) bool {
	if e == nil || identifier == "" || code == "" {
		return false
	}

	_, err := e.credentials.Consume(ctx, e.otpKey(identifier), code)
	if err != nil {
		switch {
		case errors.Is(err, credential.ErrMismatch):
			e.emitAudit(ctx, auditEventOTPRejected, false, "", "", err, func() map[string]string {
				return map[string]string{"identifier": identifier, "reason": "mismatch"}
			})
		case errors.Is(err, credential.ErrNotFound):
			// Absent or expired; nothing to audit against.
		default:
			e.log().Warn("otp verify degraded to deny", zap.String("identifier", identifier), zap.Error(err))
		}
		return false
	}

	e.emitAudit(ctx, auditEventOTPVerified, true, "", "", nil, func() map[string]string {
		return map[string]string{"identifier": identifier}
	})
	return true
}

func (e *Engine) otpKey(identifier string) string {
	return e.config.OTP.KeyPrefix + ":" + identifier
}

package identity

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldserve/identity/internal"
	"github.com/fieldserve/identity/session"
)

// CreateSession opens a device-bound session after a successful credential
// verification. IP and user agent are taken from the context carriers when
// present. Missing userID, role, or fingerprint is a caller error, not a
// security event.
func (e *Engine) CreateSession(ctx context.Context, userID, role, deviceFingerprint string) (CreateSessionResult, error) {
	if e == nil {
		return CreateSessionResult{}, ErrEngineNotReady
	}
	switch {
	case userID == "":
		return CreateSessionResult{}, fmt.Errorf("%w: user id", ErrMissingField)
	case role == "":
		return CreateSessionResult{}, fmt.Errorf("%w: role", ErrMissingField)
	case deviceFingerprint == "":
		return CreateSessionResult{}, fmt.Errorf("%w: device fingerprint", ErrMissingField)
	}

	sid, err := internal.NewSessionID()
	if err != nil {
		return CreateSessionResult{}, err
	}

	now := time.Now()
	sess := &session.Session{
		SessionID:         sid.String(),
		UserID:            userID,
		Role:              role,
		DeviceFingerprint: deviceFingerprint,
		IPAddress:         clientIPFromContext(ctx),
		UserAgent:         userAgentFromContext(ctx),
		CreatedAt:         now.Unix(),
		LastValidatedAt:   now.Unix(),
	}

	if err := e.sessions.Save(ctx, sess, e.config.Session.AbsoluteLifetime); err != nil {
		return CreateSessionResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.emitAudit(ctx, auditEventSessionCreated, true, userID, sess.SessionID, nil, func() map[string]string {
		return map[string]string{"role": role}
	})
	return CreateSessionResult{SessionID: sess.SessionID}, nil
}

// ValidateSession looks up the session and compares the caller's current
// device fingerprint (from the context carrier) against the one the session
// was created with. A mismatch is a device conflict: the stored session is
// invalidated, the conflict is journaled, and the result is invalid — the
// caller must re-authenticate, the session is never migrated in place.
// A matching fingerprint refreshes LastValidatedAt, bounded by the absolute
// lifetime. Storage failure surfaces as an error, distinct from a deny.
func (e *Engine) ValidateSession(ctx context.Context, sessionID string) (ValidateResult, error) {
	if e == nil {
		return ValidateResult{}, ErrEngineNotReady
	}
	if sessionID == "" {
		return ValidateResult{}, fmt.Errorf("%w: session id", ErrMissingField)
	}
	if _, err := internal.ParseSessionID(sessionID); err != nil {
		// Not a well-formed id, so it cannot reference a live session. Deny
		// without a store round trip.
		return ValidateResult{}, nil
	}

	sess, err := e.sessions.Get(ctx, sessionID, e.config.Session.AbsoluteLifetime)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return ValidateResult{}, nil
		}
		return ValidateResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	presented := deviceFingerprintFromContext(ctx)
	if presented == "" {
		// The caller did not supply a fingerprint at all. Deny without
		// journaling: there is no new device to record.
		return ValidateResult{}, nil
	}

	if subtle.ConstantTimeCompare([]byte(sess.DeviceFingerprint), []byte(presented)) != 1 {
		e.recordDeviceConflict(ctx, sess, presented)
		return ValidateResult{}, nil
	}

	if err := e.sessions.Touch(ctx, sess, e.config.Session.AbsoluteLifetime); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return ValidateResult{}, nil
		}
		return ValidateResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return ValidateResult{Valid: true, Session: sess}, nil
}

// InvalidateSession destroys a session. Idempotent: invalidating an
// already-gone session is not an error.
func (e *Engine) InvalidateSession(ctx context.Context, sessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if sessionID == "" {
		return fmt.Errorf("%w: session id", ErrMissingField)
	}

	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.emitAudit(ctx, auditEventSessionRevoked, true, "", sessionID, nil, nil)
	return nil
}

// DeviceConflicts returns the user's append-only conflict journal, oldest
// first.
func (e *Engine) DeviceConflicts(ctx context.Context, userID string) ([]session.DeviceConflict, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user id", ErrMissingField)
	}

	conflicts, err := e.sessions.Conflicts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return conflicts, nil
}

// recordDeviceConflict supersedes the stale session and journals the event.
// Advisory-exclusive: the old session is invalidated immediately rather than
// locked pending investigation, bounding the blast radius of a stolen
// session at the cost of the occasional legitimate second device.
func (e *Engine) recordDeviceConflict(ctx context.Context, sess *session.Session, newDevice string) {
	if err := e.sessions.Delete(ctx, sess.SessionID); err != nil {
		e.log().Warn("conflict supersession delete failed", zap.String("session_id", sess.SessionID), zap.Error(err))
	}

	conflict := &session.DeviceConflict{
		ID:         uuid.NewString(),
		UserID:     sess.UserID,
		OldDevice:  sess.DeviceFingerprint,
		NewDevice:  newDevice,
		IPAddress:  clientIPFromContext(ctx),
		UserAgent:  userAgentFromContext(ctx),
		DetectedAt: time.Now().Unix(),
	}
	if err := e.sessions.AppendConflict(ctx, conflict); err != nil {
		// The journal is best-effort relative to the deny decision; the
		// audit event below still records the conflict.
		e.log().Warn("conflict journal append failed", zap.String("user_id", sess.UserID), zap.Error(err))
	}

	e.emitAudit(ctx, auditEventDeviceConflict, false, sess.UserID, sess.SessionID, nil, func() map[string]string {
		return map[string]string{
			"old_device": sess.DeviceFingerprint,
			"new_device": newDevice,
		}
	})
	e.log().Info("device conflict detected",
		zap.String("user_id", sess.UserID),
		zap.String("session_id", sess.SessionID),
	)
}

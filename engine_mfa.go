package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fieldserve/identity/internal"
	"github.com/fieldserve/identity/permission"
	"github.com/fieldserve/identity/session"
)

// StartMFA opens a second-factor challenge for an admin-tier session.
// Sessions that resolve below admin are rejected with ErrMFANotAdmin;
// session ids with no live session behind them with ErrMFANoSession.
// Accounts without an enrolled second factor pass with an explicit Bypassed
// flag rather than silently.
func (e *Engine) StartMFA(ctx context.Context, sessionID string) (MFAChallenge, error) {
	if e == nil {
		return MFAChallenge{}, ErrEngineNotReady
	}

	sess, err := e.adminSession(ctx, sessionID)
	if err != nil {
		return MFAChallenge{}, err
	}

	_, enrolled, err := e.profiles.FetchMFASecret(ctx, sess.UserID)
	if err != nil {
		return MFAChallenge{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !enrolled {
		e.emitAudit(ctx, auditEventMFABypassed, true, sess.UserID, sess.SessionID, nil, nil)
		return MFAChallenge{Required: false, Bypassed: true}, nil
	}

	return MFAChallenge{Required: true}, nil
}

// VerifyMFA checks a submitted second-factor code for an admin-tier session.
// The code format is checked before any storage or provider access, so a
// malformed submission never costs a verification attempt. Success is a
// per-action authorization signal: nothing is written to the session record,
// and the caller must re-challenge for each sensitive operation.
func (e *Engine) VerifyMFA(ctx context.Context, sessionID, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	// Format gate first: no lookups for garbage input.
	if len(code) != e.config.MFA.Digits || !isNumericString(code) {
		return ErrMFACodeFormat
	}

	sess, err := e.adminSession(ctx, sessionID)
	if err != nil {
		return err
	}

	secret, enrolled, err := e.profiles.FetchMFASecret(ctx, sess.UserID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !enrolled {
		return ErrMFANotEnrolled
	}

	ok, err := e.totp.VerifyCode(secret, code, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		e.emitAudit(ctx, auditEventMFARejected, false, sess.UserID, sess.SessionID, ErrMFAInvalid, nil)
		return ErrMFAInvalid
	}

	e.emitAudit(ctx, auditEventMFAVerified, true, sess.UserID, sess.SessionID, nil, nil)
	return nil
}

// adminSession loads the session without touching it and requires the
// resolved role to rank at admin or above. super_admin counts: a stricter
// role must never face a weaker gate than the role below it.
func (e *Engine) adminSession(ctx context.Context, sessionID string) (*session.Session, error) {
	if sessionID == "" {
		return nil, ErrMFANoSession
	}
	if _, err := internal.ParseSessionID(sessionID); err != nil {
		return nil, ErrMFANoSession
	}

	sess, err := e.sessions.Get(ctx, sessionID, e.config.Session.AbsoluteLifetime)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, ErrMFANoSession
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	res := e.ResolveRole(ctx, sess.UserID)
	if !res.IsValid || !res.Role.AtLeast(permission.RoleAdmin) {
		return nil, ErrMFANotAdmin
	}

	return sess, nil
}

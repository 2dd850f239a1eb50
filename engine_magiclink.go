package identity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/fieldserve/identity/credential"
	"github.com/fieldserve/identity/internal"
)

// GenerateLinkToken returns a fresh 256-bit magic-link token as 64 lowercase
// hex characters, drawn from a cryptographically secure source.
func (e *Engine) GenerateLinkToken() (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	return internal.NewLinkToken()
}

// StoreLinkToken writes a token bound to the user and contact identifier and
// reports success. Like the OTP surface, a bare store degrades storage
// failure to false.
func (e *Engine) StoreLinkToken(ctx context.Context, token, userID, identifier string) bool {
	if e == nil || token == "" || userID == "" || identifier == "" {
		return false
	}
	if err := e.saveLinkToken(ctx, token, userID, identifier, ""); err != nil {
		e.log().Warn("magic link store failed", zap.String("identifier", identifier), zap.Error(err))
		return false
	}
	return true
}

// BuildLink stores the token and composes the login URL: configured base URL,
// fixed auth path, the token, and the URL-encoded redirect (default when
// empty). Unlike the OTP surface, a storage failure here propagates as an
// error; a silently half-issued link would hand the user a URL that can never
// work.
func (e *Engine) BuildLink(ctx context.Context, token, userID, identifier, redirectPath string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if token == "" || userID == "" || identifier == "" {
		return "", fmt.Errorf("%w: token, user id, and identifier are required", ErrMissingField)
	}

	if redirectPath == "" {
		redirectPath = e.config.MagicLink.DefaultRedirect
	}

	if err := e.saveLinkToken(ctx, token, userID, identifier, redirectPath); err != nil {
		return "", err
	}

	values := url.Values{}
	values.Set("token", token)
	values.Set("redirect", redirectPath)
	link := e.config.MagicLink.BaseURL + e.config.MagicLink.AuthPath + "?" + values.Encode()

	e.emitAudit(ctx, auditEventLinkIssued, true, userID, "", nil, func() map[string]string {
		return map[string]string{"identifier": identifier, "redirect": redirectPath}
	})
	return link, nil
}

// VerifyMagicLink consumes the token exactly once and returns the bound
// identity. Absent, expired, or already-consumed tokens yield ErrLinkInvalid;
// expired entries are cleaned up as a side effect.
func (e *Engine) VerifyMagicLink(ctx context.Context, token string) (*LinkClaims, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if token == "" {
		return nil, fmt.Errorf("%w: token is required", ErrMissingField)
	}

	rec, err := e.credentials.ConsumeAny(ctx, e.linkKey(token))
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			e.emitAudit(ctx, auditEventLinkRejected, false, "", "", ErrLinkInvalid, nil)
			return nil, ErrLinkInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	claims := &LinkClaims{
		UserID:     rec.SubjectID,
		Identifier: rec.Payload,
	}

	e.emitAudit(ctx, auditEventLinkVerified, true, claims.UserID, "", nil, func() map[string]string {
		return map[string]string{"identifier": claims.Identifier}
	})
	return claims, nil
}

func (e *Engine) saveLinkToken(ctx context.Context, token, userID, identifier, redirectPath string) error {
	rec := &credential.Record{
		SubjectID: userID,
		Purpose:   credential.PurposeMagicLink,
		Payload:   identifier,
		ExpiresAt: time.Now().Add(e.config.MagicLink.TTL).Unix(),
	}
	if redirectPath != "" {
		rec.Extra = map[string]string{"redirect": redirectPath}
	}

	if err := e.credentials.Save(ctx, e.linkKey(token), rec, e.config.MagicLink.TTL); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (e *Engine) linkKey(token string) string {
	return e.config.MagicLink.KeyPrefix + ":" + token
}

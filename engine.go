package identity

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fieldserve/identity/credential"
	"github.com/fieldserve/identity/session"
)

// Engine is the identity core. Instances are built once through
// [Builder.Build] and are safe for concurrent use afterwards.
type Engine struct {
	config      Config
	credentials *credential.Store
	sessions    *session.Store
	profiles    ProfileProvider
	totp        *totpVerifier
	binder      *TokenBinder
	audit       *auditDispatcher
	logger      *zap.Logger
}

// Close drains the audit dispatcher. The Redis client is shared, never owned,
// and is left open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were shed under DropIfFull.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Binder returns the signed-token binder, or nil when no signing key was
// configured.
func (e *Engine) Binder() *TokenBinder {
	if e == nil {
		return nil
	}
	return e.binder
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = err.Error()
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) log() *zap.Logger {
	if e == nil || e.logger == nil {
		return zap.NewNop()
	}
	return e.logger
}

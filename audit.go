package identity

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Audit event types emitted by the engine.
const (
	auditEventOTPIssued      = "otp_issued"
	auditEventOTPVerified    = "otp_verified"
	auditEventOTPRejected    = "otp_rejected"
	auditEventLinkIssued     = "magic_link_issued"
	auditEventLinkVerified   = "magic_link_verified"
	auditEventLinkRejected   = "magic_link_rejected"
	auditEventSessionCreated = "session_created"
	auditEventSessionRevoked = "session_revoked"
	auditEventDeviceConflict = "device_conflict"
	auditEventRoleInvalid    = "role_invalid"
	auditEventMFAVerified    = "mfa_verified"
	auditEventMFARejected    = "mfa_rejected"
	auditEventMFABypassed    = "mfa_bypassed"
)

// AuditEvent is one security-relevant occurrence. Events are emitted
// fire-and-forget: a sink failure never blocks or fails the authentication
// decision that produced the event.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives engine audit events. Implementations must tolerate
// concurrent Emit calls.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events to a buffered channel for external draining.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line to an io.Writer.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// ZapSink emits events through a zap logger, one Info entry per event.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Emit(_ context.Context, event AuditEvent) {
	if s == nil || s.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.Time("timestamp", event.Timestamp),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.SessionID != "" {
		fields = append(fields, zap.String("session_id", event.SessionID))
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", event.Metadata))
	}
	s.logger.Info("audit", fields...)
}

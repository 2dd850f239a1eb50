// Package identity provides the identity and session-trust core for a
// repair-service platform: one-time credential issuance and verification (OTP
// and magic links), device-bound session lifecycle with conflict detection,
// role resolution into permission sets, and a second-factor gate for
// privileged accounts.
//
// The package is designed for request-parallel server workloads: Engine
// methods are safe to call from multiple goroutines after initialization
// through [Builder.Build]. All cross-request state lives in Redis, so
// multiple processes sharing one Redis still enforce single-use credentials.
//
// # Architecture boundaries
//
// identity is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (RoleResolution, MFAChallenge, AuditEvent, etc.). Storage
// coordination lives under credential/ and session/; role tables under
// permission/.
//
// # What this package must NOT do
//
//   - Read transport headers. Callers carry the session id (cookie or bearer)
//     and supply the fingerprint, IP, and user agent via context carriers.
//   - Deliver credentials. OTP codes and magic links are handed back to the
//     caller; SMS/email delivery is the caller's concern.
//   - Retry verification. Consumption is not idempotent, so a blind retry is
//     never safe inside this core.
//
// # Failure posture
//
// Every auth decision fails closed. OTP verification degrades all failures,
// storage included, to false; role resolution degrades to the least-privileged
// role; audit emission is fire-and-forget and never blocks or fails a
// decision.
package identity

package identity

import "context"

type deviceFingerprintContextKey struct{}
type clientIPContextKey struct{}
type userAgentContextKey struct{}

// WithDeviceFingerprint attaches the caller's current device fingerprint to
// ctx. ValidateSession compares it against the fingerprint the session was
// created with; a mismatch is a device conflict.
func WithDeviceFingerprint(ctx context.Context, fingerprint string) context.Context {
	return context.WithValue(ctx, deviceFingerprintContextKey{}, fingerprint)
}

// WithClientIP attaches the caller's IP address to ctx. Used for audit
// records and the device-conflict journal.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. Used for audit
// records and the device-conflict journal.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

func deviceFingerprintFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	fp, _ := ctx.Value(deviceFingerprintContextKey{}).(string)
	return fp
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}

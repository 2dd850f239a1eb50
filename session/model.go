package session

import "time"

// Session is a device-bound authenticated session. DeviceFingerprint and Role
// are fixed at creation; revalidation only ever advances LastValidatedAt.
// A role change requires a new session.
type Session struct {
	SessionID         string
	UserID            string
	Role              string
	DeviceFingerprint string
	IPAddress         string
	UserAgent         string

	CreatedAt       int64
	LastValidatedAt int64
}

// Age returns how long the session has existed at the given instant.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(s.CreatedAt, 0))
}

// DeviceConflict is the append-only audit record written when a session is
// presented from a fingerprint other than the one it was created with.
type DeviceConflict struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	OldDevice  string `json:"old_device"`
	NewDevice  string `json:"new_device"`
	IPAddress  string `json:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	DetectedAt int64  `json:"detected_at"`
}

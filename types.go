package identity

import (
	"context"

	"github.com/fieldserve/identity/permission"
	"github.com/fieldserve/identity/session"
)

// AccountStatus is the lifecycle state of an account as stored in the
// external account projection.
type AccountStatus string

const (
	// StatusActive accounts resolve to their role's permission table.
	StatusActive AccountStatus = "active"
	// StatusSuspended accounts resolve to an empty permission set.
	StatusSuspended AccountStatus = "suspended"
	// StatusPending accounts resolve to an empty permission set until
	// activation completes.
	StatusPending AccountStatus = "pending"
)

// RoleProfile is the read-only projection of an account record fetched from
// the external account store. This core never owns or caches it.
type RoleProfile struct {
	UserID string
	Role   string
	Status AccountStatus
}

// ProfileProvider is the boundary contract to the external account store.
// Implementations must be safe for concurrent use.
type ProfileProvider interface {
	// FetchRoleProfile returns the account's role/status projection. An
	// absent account should be reported as an error; the engine degrades
	// every failure to the least-privileged role.
	FetchRoleProfile(ctx context.Context, userID string) (RoleProfile, error)
	// FetchMFASecret returns the account's enrolled TOTP secret. enrolled is
	// false when the account has no second factor.
	FetchMFASecret(ctx context.Context, userID string) (secret []byte, enrolled bool, err error)
}

// RoleResolution is the outcome of resolving an account's role into an
// effective permission set. On any failure IsValid is false and Role carries
// the least-privileged fallback, never an elevated or unresolved one.
type RoleResolution struct {
	Role        permission.Role
	Permissions []string
	IsValid     bool
	Err         error
}

// CreateSessionResult is returned by [Engine.CreateSession].
type CreateSessionResult struct {
	SessionID string
}

// ValidateResult is returned by [Engine.ValidateSession]. When Valid is
// false, Session is nil and the caller must re-authenticate; the engine never
// auto-repairs a session.
type ValidateResult struct {
	Valid   bool
	Session *session.Session
}

// LinkClaims is the identity bound to a consumed magic-link token.
type LinkClaims struct {
	UserID     string
	Identifier string
}

// MFAChallenge is returned by [Engine.StartMFA]. Bypassed is set when the
// account has no enrolled second factor and the gate lets the action through
// explicitly rather than silently.
type MFAChallenge struct {
	Required bool
	Bypassed bool
}

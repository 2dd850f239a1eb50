package identity

import "errors"

var (
	// ErrEngineNotReady is returned when a method is called on a nil or
	// unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrMissingField is a caller error: a required input was empty. Rejected
	// before any storage access and never audited as a security event.
	ErrMissingField = errors.New("missing required field")
	// ErrStoreUnavailable is a storage error: the backing store could not
	// answer. Never conflated with not-found outcomes.
	ErrStoreUnavailable = errors.New("backing store unavailable")
	// ErrLinkInvalid is returned by VerifyMagicLink for absent, expired, or
	// already-consumed tokens.
	ErrLinkInvalid = errors.New("magic link invalid")
	// ErrProfileUnavailable wraps a failed account-projection fetch.
	ErrProfileUnavailable = errors.New("role profile unavailable")
	// ErrMFANoSession rejects an MFA operation whose session id resolves to
	// nothing (transport maps this to 401).
	ErrMFANoSession = errors.New("mfa challenge requires a valid session")
	// ErrMFANotAdmin rejects an MFA operation on a session below the admin
	// tier (transport maps this to 403).
	ErrMFANotAdmin = errors.New("mfa challenge restricted to admin sessions")
	// ErrMFACodeFormat is a caller error: the submitted code is not exactly
	// six digits. Checked before any storage or provider access.
	ErrMFACodeFormat = errors.New("mfa code must be six digits")
	// ErrMFAInvalid means the submitted code did not verify against the
	// enrolled secret.
	ErrMFAInvalid = errors.New("invalid mfa code")
	// ErrMFANotEnrolled means the account has no enrolled second factor to
	// verify against.
	ErrMFANotEnrolled = errors.New("mfa not enrolled")
	// ErrTokenInvalid is returned by TokenBinder for tokens that fail
	// signature, algorithm, or expiry checks.
	ErrTokenInvalid = errors.New("invalid session token")
)

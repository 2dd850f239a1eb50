package identity

import (
	"context"
	"fmt"

	"github.com/fieldserve/identity/permission"
)

// ResolveRole fetches the account's role/status projection and derives the
// effective permission set. Resolution never caches across requests: a
// suspension must take effect on the next privileged request, not after a
// stale-privilege window.
//
// Every failure degrades to the least-privileged outcome with IsValid false:
// fetch failure or an absent record yields customer defaults, an inactive
// status yields an empty set, an unknown role string yields customer
// defaults and is audited as a security event.
func (e *Engine) ResolveRole(ctx context.Context, userID string) RoleResolution {
	if e == nil {
		return customerFallback(ErrEngineNotReady)
	}
	if userID == "" {
		return customerFallback(fmt.Errorf("%w: user id", ErrMissingField))
	}

	profile, err := e.profiles.FetchRoleProfile(ctx, userID)
	if err != nil {
		return customerFallback(fmt.Errorf("%w: %v", ErrProfileUnavailable, err))
	}

	role, known := permission.FromString(profile.Role)
	if !known {
		err := fmt.Errorf("invalid role: %s", profile.Role)
		e.emitAudit(ctx, auditEventRoleInvalid, false, userID, "", err, func() map[string]string {
			return map[string]string{"role": profile.Role}
		})
		return customerFallback(err)
	}

	if profile.Status != StatusActive {
		return RoleResolution{
			Role:        role,
			Permissions: []string{},
			IsValid:     false,
			Err:         fmt.Errorf("account is %s", profile.Status),
		}
	}

	return RoleResolution{
		Role:        role,
		Permissions: permission.PermissionsFor(role),
		IsValid:     true,
	}
}

// HasPermission reports whether the user's resolved role grants perm.
func (e *Engine) HasPermission(ctx context.Context, userID, perm string) bool {
	res := e.ResolveRole(ctx, userID)
	if !res.IsValid {
		return false
	}
	for _, p := range res.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// HasRole reports whether the user resolves exactly to the named role.
func (e *Engine) HasRole(ctx context.Context, userID, roleName string) bool {
	target, known := permission.FromString(roleName)
	if !known {
		return false
	}
	res := e.ResolveRole(ctx, userID)
	return res.IsValid && res.Role == target
}

// HasRoleOrHigher reports whether the user's resolved role ranks at or above
// the target in the total order customer < technician < staff < manager <
// admin < super_admin. Equal ranks return true.
func (e *Engine) HasRoleOrHigher(ctx context.Context, userID, roleName string) bool {
	target, known := permission.FromString(roleName)
	if !known {
		return false
	}
	res := e.ResolveRole(ctx, userID)
	return res.IsValid && res.Role.AtLeast(target)
}

// IsAdminOrStaff reports whether the user resolves to staff rank or above.
func (e *Engine) IsAdminOrStaff(ctx context.Context, userID string) bool {
	res := e.ResolveRole(ctx, userID)
	return res.IsValid && res.Role.AtLeast(permission.RoleStaff)
}

func customerFallback(err error) RoleResolution {
	return RoleResolution{
		Role:        permission.RoleCustomer,
		Permissions: permission.PermissionsFor(permission.RoleCustomer),
		IsValid:     false,
		Err:         err,
	}
}

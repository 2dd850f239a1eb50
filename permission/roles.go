package permission

// Role identifies an account role. The zero value is RoleCustomer, the least
// privileged role, so a forgotten assignment can never grant privilege.
type Role uint8

const (
	// RoleCustomer is the least-privileged role and the degradation target
	// for every resolution failure.
	RoleCustomer Role = iota
	// RoleTechnician works assigned repair tickets.
	RoleTechnician
	// RoleStaff handles the front desk: all tickets, assignment, customers.
	RoleStaff
	// RoleManager supervises staff and owns pricing and reporting.
	RoleManager
	// RoleAdmin administers users, roles, and settings.
	RoleAdmin
	// RoleSuperAdmin is the unrestricted operator role.
	RoleSuperAdmin
)

var roleNames = map[Role]string{
	RoleCustomer:   "customer",
	RoleTechnician: "technician",
	RoleStaff:      "staff",
	RoleManager:    "manager",
	RoleAdmin:      "admin",
	RoleSuperAdmin: "super_admin",
}

var rolesByName = map[string]Role{
	"customer":    RoleCustomer,
	"technician":  RoleTechnician,
	"staff":       RoleStaff,
	"manager":     RoleManager,
	"admin":       RoleAdmin,
	"super_admin": RoleSuperAdmin,
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "customer"
}

// Rank returns the role's position in the total order. Equal roles compare
// equal; a higher rank strictly dominates a lower one.
func (r Role) Rank() int {
	return int(r)
}

// AtLeast reports whether r's rank is greater than or equal to target's.
func (r Role) AtLeast(target Role) bool {
	return r.Rank() >= target.Rank()
}

// FromString maps a stored role string onto the closed enum. Unknown values
// return (RoleCustomer, false); callers must treat that as a resolution
// failure, not a silent downgrade.
func FromString(name string) (Role, bool) {
	role, ok := rolesByName[name]
	if !ok {
		return RoleCustomer, false
	}
	return role, true
}

// Known reports whether name is a member of the role enum.
func Known(name string) bool {
	_, ok := rolesByName[name]
	return ok
}

var customerPermissions = []string{
	"tickets.create",
	"tickets.view.own",
	"profile.view",
	"profile.update",
}

var technicianPermissions = append(append([]string{}, customerPermissions...),
	"tickets.view.assigned",
	"tickets.update.status",
	"parts.view",
)

var staffPermissions = append(append([]string{}, technicianPermissions...),
	"tickets.view.all",
	"tickets.assign",
	"customers.view",
	"pricing.view",
)

var managerPermissions = append(append([]string{}, staffPermissions...),
	"pricing.manage",
	"reports.view",
	"staff.schedule",
)

var adminPermissions = append(append([]string{}, managerPermissions...),
	"users.manage",
	"roles.assign",
	"settings.manage",
	"audit.view",
)

var superAdminPermissions = append(append([]string{}, adminPermissions...),
	"system.admin",
)

var rolePermissions = map[Role][]string{
	RoleCustomer:   customerPermissions,
	RoleTechnician: technicianPermissions,
	RoleStaff:      staffPermissions,
	RoleManager:    managerPermissions,
	RoleAdmin:      adminPermissions,
	RoleSuperAdmin: superAdminPermissions,
}

// PermissionsFor returns a copy of the role's static permission table.
// Callers may mutate the returned slice freely.
func PermissionsFor(r Role) []string {
	perms, ok := rolePermissions[r]
	if !ok {
		perms = customerPermissions
	}
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// HasPermission reports whether the role's table contains perm.
func HasPermission(r Role, perm string) bool {
	for _, p := range rolePermissions[r] {
		if p == perm {
			return true
		}
	}
	return false
}

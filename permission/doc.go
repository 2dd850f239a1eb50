// Package permission is the single source of truth for roles, role ordering,
// and per-role permission tables.
//
// Roles form a closed enum with a total order used by rank comparisons:
//
//	customer < technician < staff < manager < admin < super_admin
//
// Permission tables are fixed at compile time. Lower roles' read-type
// permissions generally carry upward, but the tables are not pure set
// inclusion: some permissions are role-exclusive (users.manage exists only at
// admin and above).
package permission

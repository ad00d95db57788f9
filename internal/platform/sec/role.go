// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// # User Roles

// UserRole identifies which account variant a principal belongs to.
//
// Roles are not ordered: an admin is not a "super faculty". Route guards
// therefore check membership, never a level.
type UserRole string

const (
	// Platform operators. Approve faculty and run maintenance.
	RoleAdmin UserRole = "admin"

	// Teaching staff. Must be approved by an admin before first login.
	RoleFaculty UserRole = "faculty"

	// Enrolled students. Default role for self-service signup.
	RoleStudent UserRole = "student"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleFaculty, RoleStudent:
		return true
	default:
		return false
	}
}

// In reports whether r is any of the given roles.
func (r UserRole) In(roles ...UserRole) bool {
	for _, candidate := range roles {
		if r == candidate {
			return true
		}
	}
	return false
}

package domain

import "time"

// UserRole enumerates account roles.
type UserRole string

const (
	UserRoleDeveloper UserRole = "Developer"
	UserRoleTester    UserRole = "Tester"
	UserRoleAdmin     UserRole = "Admin"
)

// UserRoles lists the accepted roles.
var UserRoles = []UserRole{UserRoleDeveloper, UserRoleTester, UserRoleAdmin}

// ParseUserRole returns the role matching s exactly.
func ParseUserRole(s string) (UserRole, bool) {
	for _, role := range UserRoles {
		if string(role) == s {
			return role, true
		}
	}
	return "", false
}

// User is an account that reports, owns and discusses bugs.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	CreatedAt    time.Time
}

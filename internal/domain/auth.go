package domain

import "time"

// Identity is the authenticated caller, passed explicitly into every
// operation that acts on behalf of a user.
type Identity struct {
	ID    int64
	Name  string
	Email string
	Role  UserRole
}

// IsAdmin reports whether the caller holds the Admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == UserRoleAdmin
}

// Session is the server-side record behind a login.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      UserRole  `json:"role"`
	LoginTime time.Time `json:"login_time"`
}

// Identity returns the caller identity stored in the session.
func (s Session) Identity() Identity {
	return Identity{ID: s.UserID, Name: s.Name, Email: s.Email, Role: s.Role}
}

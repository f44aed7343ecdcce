package dto

import (
	"time"

	"github.com/bugsage-dev/bugsage/internal/domain"
)

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Role     string `json:"role" form:"role"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse is the public shape of an account.
type UserResponse struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Role      domain.UserRole `json:"role"`
	CreatedAt *time.Time      `json:"created_at,omitempty"`
}

// RoleRequest payload for role changes.
type RoleRequest struct {
	Role string `json:"role" form:"role"`
}

// ProjectRequest payload.
type ProjectRequest struct {
	Name        string `json:"name" form:"name"`
	Description string `json:"description" form:"description"`
}

// ProjectResponse is a project with its bug count.
type ProjectResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	BugCount    int64     `json:"bug_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// NotificationResponse is one in-app notification.
type NotificationResponse struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

func NewUserResponse(user domain.User) UserResponse {
	resp := UserResponse{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}
	if !user.CreatedAt.IsZero() {
		created := user.CreatedAt
		resp.CreatedAt = &created
	}
	return resp
}

func NewUserResponses(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, NewUserResponse(user))
	}
	return out
}

// NewSessionUser renders the identity held by a session.
func NewSessionUser(session domain.Session) UserResponse {
	return UserResponse{ID: session.UserID, Name: session.Name, Email: session.Email, Role: session.Role}
}

func NewProjectResponses(projects []domain.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(projects))
	for _, project := range projects {
		out = append(out, ProjectResponse{
			ID:          project.ID,
			Name:        project.Name,
			Description: project.Description,
			BugCount:    project.BugCount,
			CreatedAt:   project.CreatedAt,
		})
	}
	return out
}

func NewNotificationResponses(items []domain.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NotificationResponse{
			ID:        item.ID,
			Message:   item.Message,
			IsRead:    item.IsRead,
			CreatedAt: item.CreatedAt,
		})
	}
	return out
}

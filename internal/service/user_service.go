package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/bugsage-dev/bugsage/internal/domain"
	"github.com/bugsage-dev/bugsage/internal/repository"
	apperrors "github.com/bugsage-dev/bugsage/pkg/util/errorutil"
)

// UserService lists accounts and manages roles.
type UserService struct {
	users  repository.UserRepository
	logger *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, logger: logger}
}

// List returns every account ordered by name.
func (s *UserService) List(ctx context.Context, actor domain.Identity) ([]domain.User, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, storeFailure(s.logger, "users.list", err)
	}
	return users, nil
}

// UpdateRole changes the role of a user. Admins only.
func (s *UserService) UpdateRole(ctx context.Context, actor domain.Identity, userID int64, role string) error {
	if err := requireIdentity(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return apperrors.NewForbidden("admin role required")
	}
	parsed, ok := domain.ParseUserRole(strings.TrimSpace(role))
	if !ok {
		return apperrors.NewFieldError("role", "invalid role")
	}
	if err := s.users.UpdateRole(ctx, userID, parsed); err != nil {
		return notFoundOr(s.logger, "users.update_role", "user", userID, err)
	}
	s.logger.Info("user role changed",
		zap.Int64("user_id", userID),
		zap.String("role", string(parsed)),
		zap.Int64("changed_by", actor.ID))
	return nil
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/bugsage-dev/bugsage/internal/auth"
	"github.com/bugsage-dev/bugsage/internal/config"
	"github.com/bugsage-dev/bugsage/internal/domain"
	"github.com/bugsage-dev/bugsage/internal/repository"
	apperrors "github.com/bugsage-dev/bugsage/pkg/util/errorutil"
)

const invalidCredentialsMessage = "Invalid credentials"

// AuthService coordinates registration, login and session checks.
type AuthService struct {
	users       repository.UserRepository
	hasher      *auth.PasswordHasher
	sessions    *auth.SessionManager
	validator   *inputValidator
	minPassword int
	logger      *zap.Logger
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
	Sessions *auth.SessionManager
	Logger   *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	minPassword := cfg.PasswordMinLength
	if minPassword <= 0 {
		minPassword = 6
	}
	return &AuthService{
		users:       deps.UserRepo,
		hasher:      auth.NewPasswordHasher(cfg.BcryptCost),
		sessions:    deps.Sessions,
		validator:   newInputValidator(),
		minPassword: minPassword,
		logger:      logger,
	}
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"omitempty,user_role"`
}

// Register creates an account. Role defaults to Developer.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	input.Name = SanitizeText(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Role = strings.TrimSpace(input.Role)
	if err := s.validator.Struct(input); err != nil {
		return nil, err
	}
	if len(input.Password) < s.minPassword {
		return nil, apperrors.NewFieldError("password", "Password too short")
	}
	role := domain.UserRoleDeveloper
	if input.Role != "" {
		role, _ = domain.ParseUserRole(input.Role)
	}

	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, apperrors.NewFieldError("email", "Email already exists")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, storeFailure(s.logger, "users.get_by_email", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.NewFieldError("email", "Email already exists")
		}
		return nil, storeFailure(s.logger, "users.create", err)
	}
	s.logger.Info("user registered", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// LoginInput carries credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is a started session and its signed token.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Session   domain.Session
}

// Login verifies credentials and starts a session. Unknown emails and wrong
// passwords fail identically.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := s.validator.Struct(input); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized(invalidCredentialsMessage)
		}
		return nil, storeFailure(s.logger, "users.get_by_email", err)
	}
	ok, err := s.hasher.Matches(user.PasswordHash, input.Password)
	if err != nil {
		s.logger.Warn("stored password hash unreadable", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	if !ok {
		return nil, apperrors.NewUnauthorized(invalidCredentialsMessage)
	}

	token, expiresAt, session, err := s.sessions.Start(ctx, *user)
	if err != nil {
		return nil, storeFailure(s.logger, "sessions.start", err, zap.Int64("user_id", user.ID))
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Session: *session}, nil
}

// Logout revokes the session behind token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.End(ctx, token); err != nil {
		return storeFailure(s.logger, "sessions.end", err)
	}
	return nil
}

// Check returns the live session behind token, or nil when there is none.
func (s *AuthService) Check(ctx context.Context, token string) (*domain.Session, error) {
	session, err := s.sessions.Resolve(ctx, token)
	if errors.Is(err, auth.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeFailure(s.logger, "sessions.resolve", err)
	}
	return session, nil
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/bugsage-dev/bugsage/internal/auth"
	"github.com/bugsage-dev/bugsage/internal/auth/authtest"
	"github.com/bugsage-dev/bugsage/internal/config"
	"github.com/bugsage-dev/bugsage/internal/domain"
	"github.com/bugsage-dev/bugsage/internal/repository/repotest"
	apperrors "github.com/bugsage-dev/bugsage/pkg/util/errorutil"
)

func newAuthFixture(t *testing.T) (*AuthService, *repotest.Store, *authtest.SessionStore) {
	t.Helper()
	store := repotest.NewStore()
	sessions := authtest.NewSessionStore()
	manager := auth.NewSessionManager(auth.NewTokenManager("test-secret", time.Hour), sessions)
	svc := NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost, PasswordMinLength: 6}, AuthDependencies{
		UserRepo: store.Users(),
		Sessions: manager,
	})
	return svc, store, sessions
}

func TestRegister(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	user, err := svc.Register(context.Background(), RegisterInput{
		Name:     " Alice ",
		Email:    "Alice@Example.com ",
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, domain.UserRoleDeveloper, user.Role)
	assert.NotEqual(t, "secret1", user.PasswordHash)

	_, err = svc.Register(context.Background(), RegisterInput{Name: "A2", Email: "alice@example.com", Password: "secret2"})
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeValidation, de.Code)
	assert.Equal(t, "Email already exists", de.Message)
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	_, err := svc.Register(context.Background(), RegisterInput{Name: "Bob", Email: "bob@example.com", Password: "123"})
	de := apperrors.ToDomainError(err)
	assert.Equal(t, "Password too short", de.Message)
	assert.Equal(t, "password", de.Details["field"])

	_, err = svc.Register(context.Background(), RegisterInput{Name: "Bob", Email: "not-an-email", Password: "secret1"})
	assertFieldError(t, err, "email")

	_, err = svc.Register(context.Background(), RegisterInput{Name: "Bob", Email: "bob@example.com", Password: "secret1", Role: "Root"})
	assertFieldError(t, err, "role")

	user, err := svc.Register(context.Background(), RegisterInput{Name: "Tess", Email: "tess@example.com", Password: "secret1", Role: "Tester"})
	require.NoError(t, err)
	assert.Equal(t, domain.UserRoleTester, user.Role)
}

func TestLogin_StartsSession(t *testing.T) {
	svc, _, sessions := newAuthFixture(t)
	user, err := svc.Register(context.Background(), RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), LoginInput{Email: "ALICE@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, user.ID, result.Session.UserID)
	assert.Equal(t, 1, sessions.Len())

	session, err := svc.Check(context.Background(), result.Token)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "Alice", session.Name)

	require.NoError(t, svc.Logout(context.Background(), result.Token))
	assert.Zero(t, sessions.Len())

	session, err = svc.Check(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestLogin_InvalidCredentialsAreIndistinguishable(t *testing.T) {
	svc, _, sessions := newAuthFixture(t)
	_, err := svc.Register(context.Background(), RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, wrongPassword := svc.Login(context.Background(), LoginInput{Email: "alice@example.com", Password: "nope123"})
	_, unknownEmail := svc.Login(context.Background(), LoginInput{Email: "ghost@example.com", Password: "secret1"})

	for _, err := range []error{wrongPassword, unknownEmail} {
		de := apperrors.ToDomainError(err)
		assert.Equal(t, apperrors.CodeUnauthorized, de.Code)
		assert.Equal(t, "Invalid credentials", de.Message)
	}
	assert.Zero(t, sessions.Len())
}

func TestCheck_GarbageToken(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	session, err := svc.Check(context.Background(), "not-a-jwt")

	require.NoError(t, err)
	assert.Nil(t, session)
	assert.NoError(t, svc.Logout(context.Background(), "not-a-jwt"))
}

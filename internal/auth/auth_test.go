package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/bugsage-dev/bugsage/internal/auth"
	"github.com/bugsage-dev/bugsage/internal/auth/authtest"
	"github.com/bugsage-dev/bugsage/internal/domain"
	apperrors "github.com/bugsage-dev/bugsage/pkg/util/errorutil"
)

const cookieName = "bugsage_session"

func newManager(t *testing.T) (*auth.SessionManager, *authtest.SessionStore) {
	t.Helper()
	store := authtest.NewSessionStore()
	return auth.NewSessionManager(auth.NewTokenManager("test-secret", time.Hour), store), store
}

func newApp(mw *auth.AuthMiddleware, guards ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"error": de.Message, "code": de.Code})
		},
	})
	handlers := append([]fiber.Handler{mw.Handle}, guards...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		principal, _ := auth.PrincipalFromContext(c)
		return c.JSON(fiber.Map{"id": principal.ID, "role": principal.Role})
	})
	app.Get("/me", handlers...)
	return app
}

func TestTokenRoundTrip(t *testing.T) {
	tm := auth.NewTokenManager("secret", time.Hour)
	token, expiresAt, err := tm.GenerateToken("sid-1", 42)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "sid-1", claims.SessionID)
	assert.Equal(t, int64(42), claims.UserID)

	_, err = auth.NewTokenManager("other", time.Hour).ParseToken(token)
	assert.Error(t, err)
}

func TestSessionManager_StartResolveEnd(t *testing.T) {
	manager, store := newManager(t)
	ctx := context.Background()
	user := domain.User{ID: 7, Name: "Dana", Email: "dana@example.com", Role: domain.UserRoleTester}

	token, _, session, err := manager.Start(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	resolved, err := manager.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, session.ID, resolved.ID)
	assert.Equal(t, domain.Identity{ID: 7, Name: "Dana", Email: "dana@example.com", Role: domain.UserRoleTester}, resolved.Identity())

	require.NoError(t, manager.End(ctx, token))
	_, err = manager.Resolve(ctx, token)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

func TestSessionManager_ResolveGarbage(t *testing.T) {
	manager, _ := newManager(t)
	_, err := manager.Resolve(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
	_, err = manager.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

func TestAuthMiddleware(t *testing.T) {
	manager, _ := newManager(t)
	token, _, _, err := manager.Start(context.Background(), domain.User{ID: 3, Name: "Lee", Role: domain.UserRoleDeveloper})
	require.NoError(t, err)
	revoked, _, _, err := manager.Start(context.Background(), domain.User{ID: 4, Name: "Max", Role: domain.UserRoleDeveloper})
	require.NoError(t, err)
	require.NoError(t, manager.End(context.Background(), revoked))

	app := newApp(auth.NewAuthMiddleware(manager, cookieName))

	cases := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"missing", func(r *http.Request) {}, http.StatusUnauthorized},
		{"garbage bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"revoked", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+revoked) }, http.StatusUnauthorized},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: cookieName, Value: token}) }, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tc.setup(req)
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestRequireRole(t *testing.T) {
	manager, _ := newManager(t)
	dev, _, _, err := manager.Start(context.Background(), domain.User{ID: 1, Role: domain.UserRoleDeveloper})
	require.NoError(t, err)
	admin, _, _, err := manager.Start(context.Background(), domain.User{ID: 2, Role: domain.UserRoleAdmin})
	require.NoError(t, err)

	app := newApp(auth.NewAuthMiddleware(manager, cookieName), auth.RequireRole(domain.UserRoleAdmin))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+dev)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPasswordHasher(t *testing.T) {
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	hashed, err := hasher.Hash("hunter22")
	require.NoError(t, err)

	ok, err := hasher.Matches(hashed, "hunter22")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Matches(hashed, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = hasher.Matches("not-a-hash", "x")
	assert.Error(t, err)
}

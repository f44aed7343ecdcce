package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/bugsage-dev/bugsage/internal/domain"
	apperrors "github.com/bugsage-dev/bugsage/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// AuthMiddleware validates session tokens and loads the caller identity.
type AuthMiddleware struct {
	sessions   *SessionManager
	cookieName string
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(sessions *SessionManager, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions, cookieName: cookieName}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token := TokenFromRequest(c, m.cookieName)
	if token == "" {
		return apperrors.NewUnauthorized("authentication required")
	}

	session, err := m.sessions.Resolve(c.UserContext(), token)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return apperrors.NewUnauthorized("session expired or invalid")
		}
		return apperrors.MapError(err)
	}

	WithPrincipal(c, session.Identity())
	return c.Next()
}

// TokenFromRequest reads the session token from the cookie, falling back to
// an Authorization bearer header.
func TokenFromRequest(c *fiber.Ctx, cookieName string) string {
	if token := c.Cookies(cookieName); token != "" {
		return token
	}
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// WithPrincipal stores the authenticated identity on the request.
func WithPrincipal(c *fiber.Ctx, identity domain.Identity) {
	c.Locals(principalKey, identity)
}

// PrincipalFromContext retrieves the authenticated identity.
func PrincipalFromContext(c *fiber.Ctx) (domain.Identity, bool) {
	identity, ok := c.Locals(principalKey).(domain.Identity)
	return identity, ok
}

package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/bugsage-dev/bugsage/internal/auth"
	"github.com/bugsage-dev/bugsage/internal/domain"
	apperrors "github.com/bugsage-dev/bugsage/pkg/util/errorutil"
)

func principal(c *fiber.Ctx) (domain.Identity, error) {
	identity, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.Identity{}, apperrors.NewUnauthorized("authentication required")
	}
	return identity, nil
}

// pathID parses a numeric route parameter. Non-numeric ids cannot name a
// row, so they are reported as missing.
func pathID(c *fiber.Ctx, resource string) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewNotFound(resource, nil)
	}
	return id, nil
}

func bindBody(c *fiber.Ctx, dest any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(dest); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func success(extra fiber.Map) fiber.Map {
	body := fiber.Map{"success": true}
	for k, v := range extra {
		body[k] = v
	}
	return body
}

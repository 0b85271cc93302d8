package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/mroshb/ludus_arena/internal/security"
	"github.com/mroshb/ludus_arena/pkg/errors"
	"github.com/mroshb/ludus_arena/pkg/logger"
)

const ownerIDLocal = "owner_id"

// Auth validates a Bearer token and stores the owner id for handlers.
// With allowQuery set the token may also come from the `token` query
// parameter, since EventSource clients cannot set headers.
func Auth(secret string, allowQuery bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" && allowQuery {
			token = strings.TrimSpace(c.Query("token"))
		}
		if token == "" {
			return errors.New(errors.ErrCodeUnauthorized, "missing bearer token")
		}

		claims, err := security.ValidateJWT(token, secret)
		if err != nil {
			logger.Debug("Rejected token", "path", c.Path(), "error", err)
			return errors.New(errors.ErrCodeUnauthorized, "invalid token")
		}

		c.Locals(ownerIDLocal, claims.OwnerID)
		return c.Next()
	}
}

// OwnerID returns the authenticated owner, or "" on public routes.
func OwnerID(c *fiber.Ctx) string {
	ownerID, _ := c.Locals(ownerIDLocal).(string)
	return ownerID
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

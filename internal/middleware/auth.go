package middleware

import (
	"careview/internal/session"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
)

// RequireAuthorization redirects to the Connect page when the session holds
// no access token.
func RequireAuthorization(store *fibersession.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := session.FromCtx(store, c)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("Session error")
		}
		if !sess.Authenticated() {
			return c.Redirect("/", fiber.StatusFound)
		}

		return c.Next()
	}
}

package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	PageSessionCookie = "checkout_session"
	pageSessionKey    = "pageSessionID"
)

// PageSession resolves the page session cookie into the request locals.
// Requests without a well-formed cookie pass through without a session.
func PageSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Cookies(PageSessionCookie)
		if id != "" {
			if _, err := uuid.Parse(id); err == nil {
				c.Locals(pageSessionKey, id)
			}
		}
		return c.Next()
	}
}

// PageSessionID returns the session id set by PageSession, or "".
func PageSessionID(c *fiber.Ctx) string {
	id, _ := c.Locals(pageSessionKey).(string)
	return id
}

func SetPageSession(c *fiber.Ctx, id string) {
	c.Cookie(&fiber.Cookie{
		Name:     PageSessionCookie,
		Value:    id,
		Path:     "/",
		HTTPOnly: true,
		Secure:   c.Protocol() == "https",
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	c.Locals(pageSessionKey, id)
}

package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"protonmc/internal/auth"
	"protonmc/internal/model"
)

// UserLocalKey holds the authenticated *model.User in fiber locals.
const UserLocalKey = "user"

const tokenParam = "Authorization"

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// TokenFromRequest looks at the Authorization header, then the form field,
// then the query parameter.
func TokenFromRequest(c *fiber.Ctx) string {
	return auth.ExtractToken(c.Get(fiber.HeaderAuthorization), c.FormValue(tokenParam), c.Query(tokenParam))
}

// Auth rejects requests without a valid token with 401.
func Auth(a Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := TokenFromRequest(c)
		if token == "" {
			return WriteError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Token is missing")
		}
		user, err := a.Authenticate(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, auth.ErrMissingToken) {
				return WriteError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Token is missing")
			}
			return WriteError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
		}
		c.Locals(UserLocalKey, user)
		return c.Next()
	}
}

// RequirePermission must run after Auth.
func RequirePermission(name string) fiber.Handler {
	required := auth.Level(name)
	return func(c *fiber.Ctx) error {
		if !CurrentUser(c).Can(required) {
			return WriteError(c, fiber.StatusForbidden, "FORBIDDEN", "You do not have permission")
		}
		return c.Next()
	}
}

// CurrentUser returns the user stored by Auth, or nil.
func CurrentUser(c *fiber.Ctx) *model.User {
	u, _ := c.Locals(UserLocalKey).(*model.User)
	return u
}

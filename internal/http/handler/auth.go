package handler

import (
	"github.com/gofiber/fiber/v2"

	"protonmc/internal/auth"
	"protonmc/internal/http/middleware"
	"protonmc/internal/service"
)

// Login godoc
// @Summary      Log in
// @Tags         login
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        username  formData  string  true  "Username"
// @Param        password  formData  string  true  "Password"
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  middleware.ErrorBody
// @Router       /api/login/ [post]
func Login(svc service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := svc.Login(c.UserContext(), c.FormValue("username"), c.FormValue("password"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"message":    "Logged in",
			"token":      res.Token,
			"expires_at": res.ExpiresAt.Unix(),
		})
	}
}

// CurrentUser godoc
// @Summary      Current user and permission table
// @Tags         login
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]any
// @Failure      401  {object}  middleware.ErrorBody
// @Router       /api/login/ [get]
func CurrentUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := middleware.CurrentUser(c)
		return c.JSON(fiber.Map{
			"username":       u.Username,
			"permissions":    u.Permissions,
			"permission_set": auth.PermissionSet(),
			"granted":        auth.Granted(u.Permissions),
		})
	}
}

// ValidateToken answers 200 for a token Auth accepted.
func ValidateToken() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Validated", "username": middleware.CurrentUser(c).Username})
	}
}

// Logout revokes the presented token.
func Logout(svc service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Logout(c.UserContext(), middleware.TokenFromRequest(c)); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Logged out"})
	}
}

package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CoachHub/app/models"
)

// UserContext is the verified identity of the caller.
type UserContext struct {
	UserID     uint   `json:"user_id"`
	Role       string `json:"role"`
	IsLoggedIn bool   `json:"is_logged_in"`
}

// IsAdmin reports whether the caller has the admin role.
func (u UserContext) IsAdmin() bool {
	return u.IsLoggedIn && u.Role == models.ROLE_ADMIN
}

// Set stores the user context on the request.
func Set(c *fiber.Ctx, u UserContext) {
	c.Locals(KeyUserContext, u)
	c.Locals(KeyUserID, u.UserID)
	c.Locals(KeyRole, u.Role)
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return ctx
	}
	return UserContext{}
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// IsAdmin checks if the current user is an admin
func IsAdmin(c *fiber.Ctx) bool {
	return GetUserContext(c).IsAdmin()
}

// GetUserID returns the current user's ID, or 0 if not logged in
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}

package usercontext

// Locals keys shared by middlewares and controllers
const (
	KeyUserContext = "USER_CONTEXT"
	KeyUserID      = "user_id"
	KeyRole        = "role"
)

package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/ManuelReschke/CoachHub/app/controllers"
	"github.com/ManuelReschke/CoachHub/internal/pkg/middleware"
)

// Pong is the ping response body.
type Pong struct {
	Ping string `json:"ping"`
}

// APIServer serves the v1 JSON API.
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(Pong{Ping: "pong"})
}

func (s *APIServer) PostSubscriptions(c *fiber.Ctx) error {
	return controllers.HandleSubscriptionCreate(c)
}

func (s *APIServer) GetSubscriptions(c *fiber.Ctx) error {
	return controllers.HandleSubscriptionList(c)
}

func (s *APIServer) GetSubscription(c *fiber.Ctx) error {
	return controllers.HandleSubscriptionGet(c)
}

func (s *APIServer) PatchSubscription(c *fiber.Ctx) error {
	return controllers.HandleSubscriptionUpdate(c)
}

func (s *APIServer) PostUnsubscribe(c *fiber.Ctx) error {
	return controllers.HandleSubscriptionUnsubscribe(c)
}

func (s *APIServer) PostSubscriptionPayment(c *fiber.Ctx) error {
	return controllers.HandleSubscriptionPaymentCreate(c)
}

func (s *APIServer) PostPayments(c *fiber.Ctx) error {
	return controllers.HandlePaymentCreate(c)
}

func (s *APIServer) GetPayments(c *fiber.Ctx) error {
	return controllers.HandlePaymentList(c)
}

func (s *APIServer) GetPayment(c *fiber.Ctx) error {
	return controllers.HandlePaymentGet(c)
}

func (s *APIServer) PostSubscriptionSweep(c *fiber.Ctx) error {
	return controllers.HandleAdminSubscriptionSweep(c)
}

func (s *APIServer) PostNotificationSweep(c *fiber.Ctx) error {
	return controllers.HandleAdminNotificationSweep(c)
}

func (s *APIServer) GetSweepStats(c *fiber.Ctx) error {
	return controllers.HandleAdminSweepStats(c)
}

// RegisterHandlers mounts the v1 routes on router. Authentication must
// already have populated the user context.
func RegisterHandlers(router fiber.Router, s *APIServer) {
	router.Get("/ping", s.GetPing)

	subs := router.Group("/subscriptions", middleware.RequireAuth)
	subs.Post("/", s.PostSubscriptions)
	subs.Get("/", s.GetSubscriptions)
	subs.Post("/unsubscribe", s.PostUnsubscribe)
	subs.Get("/:id", s.GetSubscription)
	subs.Patch("/:id", middleware.RequireAdmin, s.PatchSubscription)
	subs.Post("/:id/payments", s.PostSubscriptionPayment)

	payments := router.Group("/payments", middleware.RequireAuth)
	payments.Post("/", s.PostPayments)
	payments.Get("/", middleware.RequireAdmin, s.GetPayments)
	payments.Get("/:id", s.GetPayment)

	admin := router.Group("/admin", middleware.RequireAdmin)
	admin.Post("/sweeps/subscriptions", s.PostSubscriptionSweep)
	admin.Post("/sweeps/notifications", s.PostNotificationSweep)
	admin.Get("/sweeps/stats", s.GetSweepStats)
}

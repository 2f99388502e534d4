package controllers

import (
	"github.com/gofiber/fiber/v2"
)

// Global subscription controller instance
var subscriptionController *SubscriptionController

// InitializeSubscriptionController sets the controller used by the Handle* adapters.
func InitializeSubscriptionController(sc *SubscriptionController) {
	subscriptionController = sc
}

// GetSubscriptionController returns the global subscription controller instance
func GetSubscriptionController() *SubscriptionController {
	if subscriptionController == nil {
		panic("Subscription controller not initialized. Call InitializeSubscriptionController first.")
	}
	return subscriptionController
}

// Adapter functions used by the router

func HandleSubscriptionCreate(c *fiber.Ctx) error {
	return GetSubscriptionController().HandleCreate(c)
}

func HandleSubscriptionList(c *fiber.Ctx) error {
	return GetSubscriptionController().HandleList(c)
}

func HandleSubscriptionGet(c *fiber.Ctx) error {
	return GetSubscriptionController().HandleGet(c)
}

func HandleSubscriptionUpdate(c *fiber.Ctx) error {
	return GetSubscriptionController().HandleUpdate(c)
}

func HandleSubscriptionUnsubscribe(c *fiber.Ctx) error {
	return GetSubscriptionController().HandleUnsubscribe(c)
}

func HandleSubscriptionPaymentCreate(c *fiber.Ctx) error {
	return GetSubscriptionController().HandleCreateSubscriptionPayment(c)
}

func HandlePaymentCreate(c *fiber.Ctx) error {
	return GetSubscriptionController().HandleCreatePayment(c)
}

func HandlePaymentList(c *fiber.Ctx) error {
	return GetSubscriptionController().HandleListPayments(c)
}

func HandlePaymentGet(c *fiber.Ctx) error {
	return GetSubscriptionController().HandleGetPayment(c)
}

func HandleAdminSubscriptionSweep(c *fiber.Ctx) error {
	return GetSubscriptionController().HandleRunSubscriptionSweep(c)
}

func HandleAdminNotificationSweep(c *fiber.Ctx) error {
	return GetSubscriptionController().HandleRunNotificationSweep(c)
}

func HandleAdminSweepStats(c *fiber.Ctx) error {
	return GetSubscriptionController().HandleSweepStats(c)
}

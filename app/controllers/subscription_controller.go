package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CoachHub/app/models"
	"github.com/ManuelReschke/CoachHub/internal/pkg/apperr"
	"github.com/ManuelReschke/CoachHub/internal/pkg/payment"
	"github.com/ManuelReschke/CoachHub/internal/pkg/subscription"
	"github.com/ManuelReschke/CoachHub/internal/pkg/sweeper"
	"github.com/ManuelReschke/CoachHub/internal/pkg/usercontext"
)

// SweepRunner triggers the subscription sweeps on demand.
type SweepRunner interface {
	RunCheck(ctx context.Context) (subscription.SweepResult, error)
	RunNotify(ctx context.Context) (int, error)
	Stats(ctx context.Context) (map[string]int64, error)
}

// SubscriptionController handles the subscription and payment API.
type SubscriptionController struct {
	subscriptions *subscription.Service
	payments      *payment.Issuer
	sweeps        SweepRunner
}

// NewSubscriptionController creates a controller from the engine and issuer.
func NewSubscriptionController(svc *subscription.Service, issuer *payment.Issuer, sweeps SweepRunner) *SubscriptionController {
	return &SubscriptionController{
		subscriptions: svc,
		payments:      issuer,
		sweeps:        sweeps,
	}
}

type unsubscribeRequest struct {
	CoachID uint `json:"coach_id"`
}

type paymentRequest struct {
	SubscriptionID uint                 `json:"subscription_id"`
	Amount         float64              `json:"amount"`
	PaymentMethod  models.PaymentMethod `json:"payment_method"`
	PaymentDate    *string              `json:"payment_date,omitempty"`
}

// HandleCreate starts a pending subscription for the caller.
func (sc *SubscriptionController) HandleCreate(c *fiber.Ctx) error {
	var in subscription.CreateInput
	if err := c.BodyParser(&in); err != nil {
		return respondError(c, apperr.BadRequest("invalid request body"))
	}

	sub, err := sc.subscriptions.Create(c.UserContext(), in, usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

// HandleList returns the active subscriptions visible to the caller's role.
func (sc *SubscriptionController) HandleList(c *fiber.Ctx) error {
	u := usercontext.GetUserContext(c)
	subs, err := sc.subscriptions.FindForRole(c.UserContext(), u.UserID, u.Role)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(subs)
}

// HandleGet returns one subscription. Non-admins only see their own.
func (sc *SubscriptionController) HandleGet(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	sub, err := sc.subscriptions.FindOne(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	u := usercontext.GetUserContext(c)
	if !u.IsAdmin() && sub.SubscriberID != u.UserID && sub.CoachID != u.UserID {
		return respondError(c, apperr.Forbidden("not allowed to view subscription %d", id))
	}
	return c.JSON(sub)
}

// HandleUpdate applies an administrative correction.
func (sc *SubscriptionController) HandleUpdate(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var in subscription.UpdateInput
	if err := c.BodyParser(&in); err != nil {
		return respondError(c, apperr.BadRequest("invalid request body"))
	}

	sub, err := sc.subscriptions.Update(c.UserContext(), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sub)
}

// HandleUnsubscribe cancels the caller's active subscription.
func (sc *SubscriptionController) HandleUnsubscribe(c *fiber.Ctx) error {
	var req unsubscribeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, apperr.BadRequest("invalid request body"))
		}
	}

	sub, err := sc.subscriptions.Unsubscribe(c.UserContext(), usercontext.GetUserID(c), req.CoachID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sub)
}

// HandleCreateSubscriptionPayment pays for the subscription in the path.
func (sc *SubscriptionController) HandleCreateSubscriptionPayment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req paymentRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.BadRequest("invalid request body"))
	}
	in, err := req.toInput(id)
	if err != nil {
		return respondError(c, err)
	}
	return sc.createPayment(c, in)
}

// HandleCreatePayment pays for the subscription named in the body.
func (sc *SubscriptionController) HandleCreatePayment(c *fiber.Ctx) error {
	var req paymentRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.BadRequest("invalid request body"))
	}
	in, err := req.toInput(req.SubscriptionID)
	if err != nil {
		return respondError(c, err)
	}
	return sc.createPayment(c, in)
}

func (sc *SubscriptionController) createPayment(c *fiber.Ctx, in payment.Input) error {
	p, err := sc.subscriptions.CreatePayment(c.UserContext(), in, usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// HandleListPayments returns a page of payments, newest first.
func (sc *SubscriptionController) HandleListPayments(c *fiber.Ctx) error {
	offset, limit := pagination(c)
	list, err := sc.payments.FindAll(c.UserContext(), offset, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"payments": list,
		"offset":   offset,
		"limit":    limit,
	})
}

// HandleGetPayment returns one payment. Non-admins only see their own.
func (sc *SubscriptionController) HandleGetPayment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	p, err := sc.payments.FindOne(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	u := usercontext.GetUserContext(c)
	if !u.IsAdmin() && p.UserID != u.UserID {
		return respondError(c, apperr.Forbidden("not allowed to view payment %d", id))
	}
	return c.JSON(p)
}

// HandleRunSubscriptionSweep runs the expiry/renewal sweep now.
func (sc *SubscriptionController) HandleRunSubscriptionSweep(c *fiber.Ctx) error {
	res, err := sc.sweeps.RunCheck(c.UserContext())
	if err != nil {
		return sweepError(c, err)
	}
	return c.JSON(res)
}

// HandleRunNotificationSweep sends pending expiry notifications now.
func (sc *SubscriptionController) HandleRunNotificationSweep(c *fiber.Ctx) error {
	n, err := sc.sweeps.RunNotify(c.UserContext())
	if err != nil {
		return sweepError(c, err)
	}
	return c.JSON(fiber.Map{"sent": n})
}

// HandleSweepStats returns the recorded sweep totals.
func (sc *SubscriptionController) HandleSweepStats(c *fiber.Ctx) error {
	stats, err := sc.sweeps.Stats(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

func sweepError(c *fiber.Ctx, err error) error {
	if errors.Is(err, sweeper.ErrBusy) {
		return respondError(c, apperr.Conflict("%v", err))
	}
	return respondError(c, err)
}

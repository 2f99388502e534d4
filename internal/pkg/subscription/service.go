package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CoachHub/app/models"
	"github.com/ManuelReschke/CoachHub/app/repository"
	"github.com/ManuelReschke/CoachHub/internal/pkg/apperr"
	"github.com/ManuelReschke/CoachHub/internal/pkg/clock"
	"github.com/ManuelReschke/CoachHub/internal/pkg/payment"
)

// PaymentIssuer mints payment records for a subscription.
type PaymentIssuer interface {
	Create(ctx context.Context, in payment.Input, payerUserID uint) (*models.Payment, error)
}

// Mailer delivers notification emails. mail.Sender satisfies it.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Service owns the subscription lifecycle.
type Service struct {
	users         repository.UserRepository
	subscriptions repository.SubscriptionRepository
	issuer        PaymentIssuer
	mailer        Mailer
	clock         clock.Clock
	validate      *validator.Validate
}

// NewService wires the engine. A nil clock means the system clock.
func NewService(repos *repository.Repositories, issuer PaymentIssuer, mailer Mailer, c clock.Clock) *Service {
	if c == nil {
		c = clock.System()
	}
	return &Service{
		users:         repos.User,
		subscriptions: repos.Subscription,
		issuer:        issuer,
		mailer:        mailer,
		clock:         c,
		validate:      validator.New(),
	}
}

// CreateInput starts a subscription with a coach.
type CreateInput struct {
	CoachID          uint                    `json:"coach_id" validate:"required"`
	SubscriptionType models.SubscriptionType `json:"subscription_type" validate:"required,oneof=MONTHLY YEARLY"`
	AutoRenewal      *bool                   `json:"auto_renewal,omitempty"`
	PaymentHistory   string                  `json:"payment_history,omitempty" validate:"max=2000"`
}

// UpdateInput is a partial administrative correction. Nil fields are left alone.
type UpdateInput struct {
	SubscriptionType *models.SubscriptionType `json:"subscription_type,omitempty" validate:"omitempty,oneof=MONTHLY YEARLY"`
	AutoRenewal      *bool                    `json:"auto_renewal,omitempty"`
	IsActive         *bool                    `json:"is_active,omitempty"`
	PaymentHistory   *string                  `json:"payment_history,omitempty" validate:"omitempty,max=2000"`
}

// Create registers a pending subscription of requestingUserID with a coach.
func (s *Service) Create(ctx context.Context, in CreateInput, requestingUserID uint) (*models.Subscription, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.BadRequest("invalid subscription: %v", err)
	}

	user, err := s.lookupUser(ctx, requestingUserID, "user")
	if err != nil {
		return nil, err
	}
	coach, err := s.lookupUser(ctx, in.CoachID, "coach")
	if err != nil {
		return nil, err
	}
	if !user.IsUser() {
		return nil, apperr.InvalidRole("only users can subscribe to a coach")
	}
	if !coach.IsCoach() {
		return nil, apperr.InvalidRole("user %d is not a coach", coach.ID)
	}

	sub := &models.Subscription{
		SubscriberID:     user.ID,
		CoachID:          coach.ID,
		SubscriptionType: in.SubscriptionType,
		PaymentHistory:   in.PaymentHistory,
	}
	if in.AutoRenewal != nil {
		sub.AutoRenewal = *in.AutoRenewal
	}

	if err := s.subscriptions.CreatePending(ctx, sub, s.clock.Now()); err != nil {
		if errors.Is(err, repository.ErrCurrentSubscriptionExists) {
			return nil, apperr.Conflict("already has an active subscription with this coach")
		}
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	log.Infof("[Subscription] User %d created pending subscription %d with coach %d", user.ID, sub.ID, coach.ID)

	if err := s.UpdateSubscriberCount(ctx, coach.ID); err != nil {
		return nil, err
	}
	return sub, nil
}

// CreatePayment records a payment for a subscription and (re)activates it
// with a fresh term starting now.
func (s *Service) CreatePayment(ctx context.Context, in payment.Input, payerUserID uint) (*models.Payment, error) {
	sub, err := s.getSubscription(ctx, in.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if !sub.SubscriptionType.Valid() {
		return nil, apperr.BadRequest("invalid subscription type %q", sub.SubscriptionType)
	}

	p, err := s.issuer.Create(ctx, in, payerUserID)
	if err != nil {
		return nil, err
	}

	if err := sub.StartTerm(s.clock.Now()); err != nil {
		return nil, apperr.BadRequest("%v", err)
	}
	superseded, err := s.subscriptions.ActivateExclusive(ctx, sub, repository.TermColumns...)
	if err != nil {
		return nil, fmt.Errorf("activate subscription %d: %w", sub.ID, err)
	}
	if superseded > 0 {
		log.Infof("[Subscription] Subscription %d replaced %d active subscription(s) with coach %d", sub.ID, superseded, sub.CoachID)
	}
	log.Infof("[Subscription] Subscription %d activated until %s", sub.ID, sub.EndDate.Format("2006-01-02"))

	if err := s.UpdateSubscriberCount(ctx, sub.CoachID); err != nil {
		return nil, err
	}
	return p, nil
}

// FindAll lists every active subscription.
func (s *Service) FindAll(ctx context.Context) ([]models.Subscription, error) {
	return s.subscriptions.ListActive(ctx)
}

// FindAllByUser lists the active subscriptions a user holds.
func (s *Service) FindAllByUser(ctx context.Context, userID uint) ([]models.Subscription, error) {
	return s.subscriptions.ListActiveBySubscriber(ctx, userID)
}

// FindAllByCoach lists the active subscriptions of a coach's subscribers.
func (s *Service) FindAllByCoach(ctx context.Context, coachID uint) ([]models.Subscription, error) {
	return s.subscriptions.ListActiveByCoach(ctx, coachID)
}

// FindForRole returns the listing visible to a caller with the given role.
func (s *Service) FindForRole(ctx context.Context, userID uint, role string) ([]models.Subscription, error) {
	switch role {
	case models.ROLE_ADMIN:
		return s.FindAll(ctx)
	case models.ROLE_COACH:
		return s.FindAllByCoach(ctx, userID)
	case models.ROLE_USER:
		return s.FindAllByUser(ctx, userID)
	default:
		return nil, apperr.InvalidRole("invalid role")
	}
}

// FindOne returns a subscription regardless of state.
func (s *Service) FindOne(ctx context.Context, id uint) (*models.Subscription, error) {
	return s.getSubscription(ctx, id)
}

// Unsubscribe deactivates the caller's active subscription. coachID selects
// the subscription when the user has several; zero means "the only one".
func (s *Service) Unsubscribe(ctx context.Context, userID, coachID uint) (*models.Subscription, error) {
	active, err := s.subscriptions.ListActiveBySubscriber(ctx, userID)
	if err != nil {
		return nil, err
	}

	var candidates []models.Subscription
	for _, sub := range active {
		if coachID == 0 || sub.CoachID == coachID {
			candidates = append(candidates, sub)
		}
	}
	switch {
	case len(candidates) == 0:
		return nil, apperr.BadRequest("no active subscription")
	case len(candidates) > 1:
		return nil, apperr.BadRequest("multiple active subscriptions, coach_id is required")
	}

	sub := candidates[0]
	sub.IsActive = false
	if err := s.subscriptions.UpdateColumns(ctx, &sub, repository.ColumnIsActive); err != nil {
		return nil, fmt.Errorf("unsubscribe %d: %w", sub.ID, err)
	}
	log.Infof("[Subscription] User %d unsubscribed from coach %d (subscription %d)", userID, sub.CoachID, sub.ID)

	if err := s.UpdateSubscriberCount(ctx, sub.CoachID); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Update merges the non-nil fields of in into subscription id.
func (s *Service) Update(ctx context.Context, id uint, in UpdateInput) (*models.Subscription, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.BadRequest("invalid subscription update: %v", err)
	}
	sub, err := s.getSubscription(ctx, id)
	if err != nil {
		return nil, err
	}

	wasActive := sub.IsActive
	var columns []string
	if in.SubscriptionType != nil && *in.SubscriptionType != sub.SubscriptionType {
		sub.SubscriptionType = *in.SubscriptionType
		columns = append(columns, repository.ColumnSubscriptionType)
		// Dates always follow from start date and type.
		if sub.StartDate != nil {
			if err := sub.StartTerm(*sub.StartDate); err != nil {
				return nil, apperr.BadRequest("%v", err)
			}
			columns = append(columns, repository.TermColumns...)
		}
	}
	if in.AutoRenewal != nil {
		sub.AutoRenewal = *in.AutoRenewal
		columns = append(columns, repository.ColumnAutoRenewal)
	}
	if in.PaymentHistory != nil {
		sub.PaymentHistory = *in.PaymentHistory
		columns = append(columns, repository.ColumnPaymentHistory)
	}
	if in.IsActive != nil {
		if *in.IsActive && sub.StartDate == nil {
			return nil, apperr.BadRequest("subscription %d has not been paid yet", sub.ID)
		}
		sub.IsActive = *in.IsActive
		columns = append(columns, repository.ColumnIsActive)
	}

	if sub.IsActive && !wasActive {
		if _, err := s.subscriptions.ActivateExclusive(ctx, sub, columns...); err != nil {
			return nil, fmt.Errorf("update subscription %d: %w", sub.ID, err)
		}
	} else if err := s.subscriptions.UpdateColumns(ctx, sub, columns...); err != nil {
		return nil, fmt.Errorf("update subscription %d: %w", sub.ID, err)
	}
	if wasActive != sub.IsActive {
		if err := s.UpdateSubscriberCount(ctx, sub.CoachID); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

// UpdateSubscriberCount recomputes the coach's subscriber count from the
// active subscriptions and stores it on the coach.
func (s *Service) UpdateSubscriberCount(ctx context.Context, coachID uint) error {
	n, err := s.subscriptions.CountActiveByCoach(ctx, coachID)
	if err != nil {
		return fmt.Errorf("count subscribers of coach %d: %w", coachID, err)
	}
	if err := s.users.SetSubscriberCount(ctx, coachID, n); err != nil {
		return fmt.Errorf("set subscriber count of coach %d: %w", coachID, err)
	}
	return nil
}

func (s *Service) lookupUser(ctx context.Context, id uint, what string) (*models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("%s with id %d not found", what, id)
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) getSubscription(ctx context.Context, id uint) (*models.Subscription, error) {
	sub, err := s.subscriptions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("subscription with id %d not found", id)
		}
		return nil, err
	}
	return sub, nil
}

package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CoachHub/app/models"
	"github.com/ManuelReschke/CoachHub/app/repository"
	"github.com/ManuelReschke/CoachHub/internal/pkg/apperr"
	"github.com/ManuelReschke/CoachHub/internal/pkg/clock"
)

// MaxTransactionIDAttempts bounds how many transaction ids are tried before giving up.
const MaxTransactionIDAttempts = 5

// Input is a payment submission for a subscription.
type Input struct {
	SubscriptionID uint                 `json:"subscription_id" validate:"required"`
	Amount         float64              `json:"amount" validate:"required,gt=0"`
	PaymentMethod  models.PaymentMethod `json:"payment_method" validate:"required,oneof=credit_card debit_card paypal bank_transfer"`
	PaymentDate    *time.Time           `json:"payment_date,omitempty"`
}

// Issuer creates payment records with unique, application-generated
// transaction ids.
type Issuer struct {
	users         repository.UserRepository
	subscriptions repository.SubscriptionRepository
	payments      repository.PaymentRepository
	clock         clock.Clock
	validate      *validator.Validate
	newID         func() string
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithClock overrides the clock used for the default payment date.
func WithClock(c clock.Clock) Option {
	return func(i *Issuer) { i.clock = c }
}

// WithIDGenerator overrides transaction id generation.
func WithIDGenerator(fn func() string) Option {
	return func(i *Issuer) { i.newID = fn }
}

// NewIssuer creates a payment issuer from injected repositories.
func NewIssuer(repos *repository.Repositories, opts ...Option) *Issuer {
	i := &Issuer{
		users:         repos.User,
		subscriptions: repos.Subscription,
		payments:      repos.Payment,
		clock:         clock.System(),
		validate:      validator.New(),
		newID:         func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Create validates the submission and inserts a payment for payerUserID.
// A duplicate transaction id is retried with a fresh id; any other insert
// error is returned as is.
func (i *Issuer) Create(ctx context.Context, in Input, payerUserID uint) (*models.Payment, error) {
	if err := i.validate.Struct(in); err != nil {
		return nil, apperr.BadRequest("invalid payment: %v", err)
	}

	if _, err := i.users.GetByID(ctx, payerUserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, err
	}

	if _, err := i.subscriptions.GetByID(ctx, in.SubscriptionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("subscription with id %d not found", in.SubscriptionID)
		}
		return nil, err
	}

	paymentDate := i.clock.Now()
	if in.PaymentDate != nil && !in.PaymentDate.IsZero() {
		paymentDate = *in.PaymentDate
	}

	for attempt := 1; attempt <= MaxTransactionIDAttempts; attempt++ {
		p := &models.Payment{
			TransactionID:  i.newID(),
			SubscriptionID: in.SubscriptionID,
			UserID:         payerUserID,
			Amount:         in.Amount,
			PaymentMethod:  in.PaymentMethod,
			PaymentDate:    paymentDate,
		}
		err := i.payments.Create(ctx, p)
		if err == nil {
			log.Infof("[Payment] Created payment %d (tx %s) for subscription %d", p.ID, p.TransactionID, p.SubscriptionID)
			return p, nil
		}
		if !repository.IsDuplicateKey(err) {
			return nil, fmt.Errorf("create payment: %w", err)
		}
		log.Warnf("[Payment] Transaction id collision (attempt %d/%d)", attempt, MaxTransactionIDAttempts)
	}

	return nil, apperr.Conflict("could not generate a unique transaction id")
}

// FindAll lists payments, newest first.
func (i *Issuer) FindAll(ctx context.Context, offset, limit int) ([]models.Payment, error) {
	return i.payments.List(ctx, offset, limit)
}

// FindOne returns a single payment.
func (i *Issuer) FindOne(ctx context.Context, id uint) (*models.Payment, error) {
	p, err := i.payments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("payment with id %d not found", id)
		}
		return nil, err
	}
	return p, nil
}

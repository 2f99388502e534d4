package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/CoachHub/app/models"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateKey is returned when an insert violates a unique index.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrCurrentSubscriptionExists is returned by CreatePending when the pair
	// already has an active subscription whose term has not ended.
	ErrCurrentSubscriptionExists = errors.New("current subscription exists")
)

// Subscription columns that may be written individually.
const (
	ColumnSubscriptionType   = "subscription_type"
	ColumnStartDate          = "start_date"
	ColumnEndDate            = "end_date"
	ColumnGracePeriodEndDate = "grace_period_end_date"
	ColumnIsActive           = "is_active"
	ColumnAutoRenewal        = "auto_renewal"
	ColumnNotificationSent   = "notification_sent"
	ColumnPaymentHistory     = "payment_history"
)

// TermColumns are the columns a new term assigns.
var TermColumns = []string{ColumnStartDate, ColumnEndDate, ColumnGracePeriodEndDate, ColumnNotificationSent}

// UserRepository is the user directory as seen by the subscription engine.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	SetSubscriberCount(ctx context.Context, id uint, count int64) error
}

// SubscriptionRepository defines subscription persistence.
type SubscriptionRepository interface {
	// CreatePending inserts sub unless subscriber and coach already share a
	// subscription that is active with an end date after now.
	CreatePending(ctx context.Context, sub *models.Subscription, now time.Time) error
	GetByID(ctx context.Context, id uint) (*models.Subscription, error)
	// ActivateExclusive marks sub active and writes the given columns of it.
	// Every other active subscription of the same subscriber and coach is
	// deactivated in the same transaction; their number is returned.
	ActivateExclusive(ctx context.Context, sub *models.Subscription, columns ...string) (int64, error)
	// UpdateColumns writes only the named columns of sub.
	UpdateColumns(ctx context.Context, sub *models.Subscription, columns ...string) error
	ListActive(ctx context.Context) ([]models.Subscription, error)
	ListActiveBySubscriber(ctx context.Context, subscriberID uint) ([]models.Subscription, error)
	ListActiveByCoach(ctx context.Context, coachID uint) ([]models.Subscription, error)
	// ListActiveEndedBefore returns active subscriptions whose end date is before now.
	ListActiveEndedBefore(ctx context.Context, now time.Time) ([]models.Subscription, error)
	// ListUnnotifiedEndedBefore returns subscriptions whose end date is before
	// now and that have not been notified for the current term.
	ListUnnotifiedEndedBefore(ctx context.Context, now time.Time) ([]models.Subscription, error)
	// MarkNotificationSent flags the term ending at endDate as notified. A
	// row whose end date has moved since it was read is left alone.
	MarkNotificationSent(ctx context.Context, id uint, endDate time.Time) error
	CountActiveByCoach(ctx context.Context, coachID uint) (int64, error)
}

// PaymentRepository defines payment persistence. Payments are insert-only.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id uint) (*models.Payment, error)
	List(ctx context.Context, offset, limit int) ([]models.Payment, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Subscription SubscriptionRepository
	Payment      PaymentRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Payment:      NewPaymentRepository(db),
	}
}

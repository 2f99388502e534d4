package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/CoachHub/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// CreatePending locks the subscriber row for the duration of the check and
// insert, so two concurrent requests for the same subscriber run one after
// the other.
func (r *subscriptionRepository) CreatePending(ctx context.Context, sub *models.Subscription, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subscriber models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&subscriber, sub.SubscriberID).Error; err != nil {
			return err
		}

		var current int64
		if err := tx.Model(&models.Subscription{}).
			Where("subscriber_id = ? AND coach_id = ? AND is_active = ? AND end_date > ?", sub.SubscriberID, sub.CoachID, true, now).
			Count(&current).Error; err != nil {
			return err
		}
		if current > 0 {
			return ErrCurrentSubscriptionExists
		}

		return tx.Omit(clause.Associations).Create(sub).Error
	})
}

// GetByID retrieves a subscription with its payments in payment order.
func (r *subscriptionRepository) GetByID(ctx context.Context, id uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("payment_date ASC, id ASC")
		}).
		First(&sub, id).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ActivateExclusive takes the same subscriber lock as CreatePending, so an
// activation and a create for one subscriber never interleave.
func (r *subscriptionRepository) ActivateExclusive(ctx context.Context, sub *models.Subscription, columns ...string) (int64, error) {
	var superseded int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subscriber models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&subscriber, sub.SubscriberID).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Subscription{}).
			Where("subscriber_id = ? AND coach_id = ? AND is_active = ? AND id <> ?", sub.SubscriberID, sub.CoachID, true, sub.ID).
			UpdateColumn("is_active", false)
		if res.Error != nil {
			return res.Error
		}
		superseded = res.RowsAffected

		sub.IsActive = true
		return tx.Model(sub).
			Select(append([]string{ColumnIsActive}, columns...)).
			Omit(clause.Associations).
			Updates(sub).Error
	})
	return superseded, err
}

// UpdateColumns writes the named columns only. Zero values are written too.
func (r *subscriptionRepository) UpdateColumns(ctx context.Context, sub *models.Subscription, columns ...string) error {
	if len(columns) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(sub).
		Select(columns).
		Omit(clause.Associations).
		Updates(sub).Error
}

func (r *subscriptionRepository) ListActive(ctx context.Context) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("id ASC").Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) ListActiveBySubscriber(ctx context.Context, subscriberID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("subscriber_id = ? AND is_active = ?", subscriberID, true).
		Order("id ASC").
		Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) ListActiveByCoach(ctx context.Context, coachID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("coach_id = ? AND is_active = ?", coachID, true).
		Order("id ASC").
		Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) ListActiveEndedBefore(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND end_date < ?", true, now).
		Order("id ASC").
		Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) ListUnnotifiedEndedBefore(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Preload("Subscriber").
		Preload("Coach").
		Where("notification_sent = ? AND end_date < ?", false, now).
		Order("id ASC").
		Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) MarkNotificationSent(ctx context.Context, id uint, endDate time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND end_date = ?", id, endDate).
		UpdateColumn("notification_sent", true).Error
}

func (r *subscriptionRepository) CountActiveByCoach(ctx context.Context, coachID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("coach_id = ? AND is_active = ?", coachID, true).
		Count(&count).Error
	return count, err
}

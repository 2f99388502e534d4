package models

import (
	"fmt"
	"time"
)

// SubscriptionType determines the term length.
type SubscriptionType string

const (
	SubscriptionTypeMonthly SubscriptionType = "MONTHLY"
	SubscriptionTypeYearly  SubscriptionType = "YEARLY"
)

// GracePeriod is how long an unrenewed subscription stays active after its term ends.
const GracePeriod = 7 * 24 * time.Hour

// Subscription links a subscriber (role user) to a coach. It stays pending
// (inactive, no dates) until the first payment activates it.
type Subscription struct {
	ID                 uint             `gorm:"primaryKey" json:"id"`
	SubscriberID       uint             `gorm:"not null;index:idx_subscriptions_subscriber_coach,priority:1" json:"subscriber_id"`
	Subscriber         *User            `gorm:"foreignKey:SubscriberID" json:"subscriber,omitempty"`
	CoachID            uint             `gorm:"not null;index:idx_subscriptions_subscriber_coach,priority:2;index:idx_subscriptions_coach_active,priority:1" json:"coach_id"`
	Coach              *User            `gorm:"foreignKey:CoachID" json:"coach,omitempty"`
	SubscriptionType   SubscriptionType `gorm:"type:varchar(16);not null" json:"subscription_type" validate:"required,oneof=MONTHLY YEARLY"`
	StartDate          *time.Time       `gorm:"type:datetime;default:null" json:"start_date"`
	EndDate            *time.Time       `gorm:"type:datetime;default:null;index" json:"end_date"`
	GracePeriodEndDate *time.Time       `gorm:"type:datetime;default:null" json:"grace_period_end_date"`
	IsActive           bool             `gorm:"not null;default:false;index:idx_subscriptions_coach_active,priority:2" json:"is_active"`
	AutoRenewal        bool             `gorm:"not null;default:false" json:"auto_renewal"`
	NotificationSent   bool             `gorm:"not null;default:false" json:"notification_sent"`
	PaymentHistory     string           `gorm:"type:text;default:null" json:"payment_history,omitempty"`
	Payments           []Payment        `gorm:"foreignKey:SubscriptionID" json:"payments,omitempty"`
	CreatedAt          time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// Valid reports whether t is a known term type.
func (t SubscriptionType) Valid() bool {
	return t == SubscriptionTypeMonthly || t == SubscriptionTypeYearly
}

// AddTerm advances from by one term of type t.
func (t SubscriptionType) AddTerm(from time.Time) (time.Time, error) {
	switch t {
	case SubscriptionTypeMonthly:
		return from.AddDate(0, 1, 0), nil
	case SubscriptionTypeYearly:
		return from.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unknown subscription type %q", t)
	}
}

// StartTerm sets start, end and grace dates for a term beginning at start.
// The new term has not been notified yet.
func (s *Subscription) StartTerm(start time.Time) error {
	end, err := s.SubscriptionType.AddTerm(start)
	if err != nil {
		return err
	}
	grace := end.Add(GracePeriod)
	s.StartDate = &start
	s.EndDate = &end
	s.GracePeriodEndDate = &grace
	s.NotificationSent = false
	return nil
}

// Renew advances the term by one period from the current end date and
// reopens the term for notification.
func (s *Subscription) Renew() error {
	if s.EndDate == nil {
		return fmt.Errorf("subscription %d has no end date", s.ID)
	}
	end, err := s.SubscriptionType.AddTerm(*s.EndDate)
	if err != nil {
		return err
	}
	grace := end.Add(GracePeriod)
	s.EndDate = &end
	s.GracePeriodEndDate = &grace
	s.NotificationSent = false
	return nil
}

// IsCurrent reports whether the subscription is active and its term has not ended at now.
func (s *Subscription) IsCurrent(now time.Time) bool {
	return s.IsActive && s.EndDate != nil && s.EndDate.After(now)
}

// Expired reports whether the term has ended at now.
func (s *Subscription) Expired(now time.Time) bool {
	return s.EndDate != nil && s.EndDate.Before(now)
}

// PastGrace reports whether the grace window has closed at now.
func (s *Subscription) PastGrace(now time.Time) bool {
	return s.GracePeriodEndDate != nil && s.GracePeriodEndDate.Before(now)
}

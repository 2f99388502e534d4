package subscription

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CoachHub/app/models"
	"github.com/ManuelReschke/CoachHub/app/repository"
	"github.com/ManuelReschke/CoachHub/internal/pkg/mail"
)

// maxCatchUpTerms bounds how many terms one sweep advances a lapsed
// auto-renewing subscription.
const maxCatchUpTerms = 120

// SweepResult summarizes one CheckSubscriptions run.
type SweepResult struct {
	Renewed int `json:"renewed"`
	Expired int `json:"expired"`
}

// CheckSubscriptions renews or expires active subscriptions whose term has
// ended. Subscriptions still inside their grace window are left alone.
// Running it twice at the same instant changes nothing the second time.
func (s *Service) CheckSubscriptions(ctx context.Context) (SweepResult, error) {
	now := s.clock.Now()
	var res SweepResult

	due, err := s.subscriptions.ListActiveEndedBefore(ctx, now)
	if err != nil {
		return res, fmt.Errorf("list ended subscriptions: %w", err)
	}

	touched := make(map[uint]struct{})
	for i := range due {
		sub := &due[i]
		switch {
		case sub.AutoRenewal:
			for n := 0; n < maxCatchUpTerms && sub.Expired(now); n++ {
				if err := sub.Renew(); err != nil {
					return res, fmt.Errorf("renew subscription %d: %w", sub.ID, err)
				}
			}
			if err := s.subscriptions.UpdateColumns(ctx, sub,
				repository.ColumnEndDate, repository.ColumnGracePeriodEndDate, repository.ColumnNotificationSent); err != nil {
				return res, fmt.Errorf("save renewed subscription %d: %w", sub.ID, err)
			}
			res.Renewed++
			log.Infof("[Subscription] Auto-renewed subscription %d until %s", sub.ID, sub.EndDate.Format("2006-01-02"))
		case sub.PastGrace(now):
			sub.IsActive = false
			if err := s.subscriptions.UpdateColumns(ctx, sub, repository.ColumnIsActive); err != nil {
				return res, fmt.Errorf("save expired subscription %d: %w", sub.ID, err)
			}
			res.Expired++
			touched[sub.CoachID] = struct{}{}
			log.Infof("[Subscription] Subscription %d expired after grace period", sub.ID)
		}
	}

	for coachID := range touched {
		if err := s.UpdateSubscriberCount(ctx, coachID); err != nil {
			return res, err
		}
	}
	return res, nil
}

// SendNotifications sends one expiry warning per ended, unnotified term.
// The flag is set even when sending fails, so a term is attempted at most once.
func (s *Service) SendNotifications(ctx context.Context) (int, error) {
	now := s.clock.Now()
	due, err := s.subscriptions.ListUnnotifiedEndedBefore(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list unnotified subscriptions: %w", err)
	}

	sent := 0
	for i := range due {
		sub := &due[i]
		if err := s.notifyExpiring(ctx, sub); err != nil {
			log.Errorf("[Subscription] Expiry notification for subscription %d failed: %v", sub.ID, err)
		}
		if err := s.subscriptions.MarkNotificationSent(ctx, sub.ID, *sub.EndDate); err != nil {
			return sent, fmt.Errorf("mark subscription %d notified: %w", sub.ID, err)
		}
		sent++
	}
	if sent > 0 {
		log.Infof("[Subscription] Sent %d expiry notifications", sent)
	}
	return sent, nil
}

func (s *Service) notifyExpiring(ctx context.Context, sub *models.Subscription) error {
	if s.mailer == nil {
		return fmt.Errorf("no mailer configured")
	}
	if sub.Subscriber == nil || sub.Subscriber.Email == "" {
		return fmt.Errorf("subscriber %d has no email address", sub.SubscriberID)
	}

	data := mail.ExpiringData{
		SubscriberName: sub.Subscriber.Name,
		Plan:           planName(sub.SubscriptionType),
		EndDate:        sub.EndDate.Format("2006-01-02"),
	}
	if sub.Coach != nil {
		data.CoachName = sub.Coach.Name
	}
	if sub.GracePeriodEndDate != nil {
		data.GraceEndDate = sub.GracePeriodEndDate.Format("2006-01-02")
	}

	body, err := mail.Render(mail.TemplateSubscriptionExpiring, data)
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, sub.Subscriber.Email, "Your subscription has ended", body)
}

func planName(t models.SubscriptionType) string {
	switch t {
	case models.SubscriptionTypeYearly:
		return "yearly"
	default:
		return "monthly"
	}
}

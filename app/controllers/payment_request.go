package controllers

import (
	"time"

	"github.com/ManuelReschke/CoachHub/internal/pkg/apperr"
	"github.com/ManuelReschke/CoachHub/internal/pkg/payment"
)

// toInput accepts RFC 3339 timestamps or plain dates for payment_date.
func (r paymentRequest) toInput(subscriptionID uint) (payment.Input, error) {
	in := payment.Input{
		SubscriptionID: subscriptionID,
		Amount:         r.Amount,
		PaymentMethod:  r.PaymentMethod,
	}
	if r.PaymentDate == nil || *r.PaymentDate == "" {
		return in, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, *r.PaymentDate); err == nil {
			t = t.UTC()
			in.PaymentDate = &t
			return in, nil
		}
	}
	return in, apperr.BadRequest("invalid payment_date %q", *r.PaymentDate)
}

package models

import "time"

// PaymentMethod is how a payment was made.
type PaymentMethod string

const (
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodDebitCard    PaymentMethod = "debit_card"
	PaymentMethodPayPal       PaymentMethod = "paypal"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// Payment is written once and never updated. TransactionID is generated by
// the application, so its uniqueness is enforced by the index.
type Payment struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	TransactionID  string        `gorm:"type:varchar(64);not null;uniqueIndex" json:"transaction_id"`
	SubscriptionID uint          `gorm:"not null;index" json:"subscription_id"`
	UserID         uint          `gorm:"not null;index" json:"user_id"`
	Amount         float64       `gorm:"type:decimal(10,2);not null" json:"amount"`
	PaymentMethod  PaymentMethod `gorm:"type:varchar(32);not null" json:"payment_method"`
	PaymentDate    time.Time     `gorm:"type:datetime;not null" json:"payment_date"`
	CreatedAt      time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

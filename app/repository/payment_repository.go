package repository

import (
	"context"

	"github.com/ManuelReschke/CoachHub/app/models"
	"gorm.io/gorm"
)

// paymentRepository implements the PaymentRepository interface
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Create inserts a payment. A transaction id collision is reported as ErrDuplicateKey.
func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return translateError(r.db.WithContext(ctx).Create(payment).Error)
}

// GetByID retrieves a payment by its ID
func (r *paymentRepository) GetByID(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).First(&payment, id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// List retrieves a paginated list of payments, newest first
func (r *paymentRepository) List(ctx context.Context, offset, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).Order("payment_date DESC, id DESC").Offset(offset).Limit(limit).Find(&payments).Error
	return payments, err
}

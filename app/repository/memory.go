package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ManuelReschke/CoachHub/app/models"
	"gorm.io/gorm"
)

// MemoryStore backs the in-memory repositories used by tests and local
// development. Missing rows are reported as gorm.ErrRecordNotFound, the same
// as the GORM repositories.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[uint]models.User
	subscriptions map[uint]models.Subscription
	payments      map[uint]models.Payment
	nextID        uint
}

// NewMemoryRepositories returns Repositories sharing one in-memory store.
func NewMemoryRepositories() (*Repositories, *MemoryStore) {
	ms := &MemoryStore{
		users:         make(map[uint]models.User),
		subscriptions: make(map[uint]models.Subscription),
		payments:      make(map[uint]models.Payment),
	}
	return &Repositories{
		User:         &memoryUserRepository{ms: ms},
		Subscription: &memorySubscriptionRepository{ms: ms},
		Payment:      &memoryPaymentRepository{ms: ms},
	}, ms
}

func (ms *MemoryStore) id() uint {
	ms.nextID++
	return ms.nextID
}

// User returns a copy of the stored user.
func (ms *MemoryStore) User(id uint) (models.User, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	u, ok := ms.users[id]
	return u, ok
}

// Subscription returns a copy of the stored subscription row.
func (ms *MemoryStore) Subscription(id uint) (models.Subscription, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	s, ok := ms.subscriptions[id]
	return s, ok
}

// PaymentCount returns the number of stored payments.
func (ms *MemoryStore) PaymentCount() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.payments)
}

func (ms *MemoryStore) filterSubscriptions(keep func(models.Subscription) bool) []models.Subscription {
	out := make([]models.Subscription, 0)
	for _, s := range ms.subscriptions {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memoryUserRepository struct {
	ms *MemoryStore
}

func (r *memoryUserRepository) Create(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	r.ms.mu.Lock()
	defer r.ms.mu.Unlock()
	for _, u := range r.ms.users {
		if u.Email == user.Email {
			return ErrDuplicateKey
		}
	}
	user.ID = r.ms.id()
	if user.Status == "" {
		user.Status = models.STATUS_ACTIVE
	}
	r.ms.users[user.ID] = *user
	return nil
}

func (r *memoryUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	r.ms.mu.RLock()
	defer r.ms.mu.RUnlock()
	u, ok := r.ms.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r *memoryUserRepository) SetSubscriberCount(ctx context.Context, id uint, count int64) error {
	r.ms.mu.Lock()
	defer r.ms.mu.Unlock()
	u, ok := r.ms.users[id]
	if !ok {
		return nil
	}
	u.SubscriberCount = count
	r.ms.users[id] = u
	return nil
}

type memorySubscriptionRepository struct {
	ms *MemoryStore
}

func (r *memorySubscriptionRepository) CreatePending(ctx context.Context, sub *models.Subscription, now time.Time) error {
	r.ms.mu.Lock()
	defer r.ms.mu.Unlock()
	if _, ok := r.ms.users[sub.SubscriberID]; !ok {
		return gorm.ErrRecordNotFound
	}
	for _, s := range r.ms.subscriptions {
		if s.SubscriberID == sub.SubscriberID && s.CoachID == sub.CoachID && s.IsCurrent(now) {
			return ErrCurrentSubscriptionExists
		}
	}
	sub.ID = r.ms.id()
	row := *sub
	row.Payments = nil
	r.ms.subscriptions[sub.ID] = row
	return nil
}

func (r *memorySubscriptionRepository) GetByID(ctx context.Context, id uint) (*models.Subscription, error) {
	r.ms.mu.RLock()
	defer r.ms.mu.RUnlock()
	s, ok := r.ms.subscriptions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	for _, p := range r.ms.payments {
		if p.SubscriptionID == id {
			s.Payments = append(s.Payments, p)
		}
	}
	sort.Slice(s.Payments, func(i, j int) bool {
		if s.Payments[i].PaymentDate.Equal(s.Payments[j].PaymentDate) {
			return s.Payments[i].ID < s.Payments[j].ID
		}
		return s.Payments[i].PaymentDate.Before(s.Payments[j].PaymentDate)
	})
	return &s, nil
}

func (r *memorySubscriptionRepository) ActivateExclusive(ctx context.Context, sub *models.Subscription, columns ...string) (int64, error) {
	r.ms.mu.Lock()
	defer r.ms.mu.Unlock()
	row, ok := r.ms.subscriptions[sub.ID]
	if !ok {
		return 0, gorm.ErrRecordNotFound
	}

	var superseded int64
	for id, s := range r.ms.subscriptions {
		if id != sub.ID && s.IsActive && s.SubscriberID == sub.SubscriberID && s.CoachID == sub.CoachID {
			s.IsActive = false
			r.ms.subscriptions[id] = s
			superseded++
		}
	}

	sub.IsActive = true
	if err := copyColumns(&row, sub, append([]string{ColumnIsActive}, columns...)); err != nil {
		return 0, err
	}
	r.ms.subscriptions[sub.ID] = row
	return superseded, nil
}

func (r *memorySubscriptionRepository) UpdateColumns(ctx context.Context, sub *models.Subscription, columns ...string) error {
	r.ms.mu.Lock()
	defer r.ms.mu.Unlock()
	row, ok := r.ms.subscriptions[sub.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if err := copyColumns(&row, sub, columns); err != nil {
		return err
	}
	r.ms.subscriptions[sub.ID] = row
	return nil
}

func copyColumns(dst, src *models.Subscription, columns []string) error {
	for _, col := range columns {
		switch col {
		case ColumnSubscriptionType:
			dst.SubscriptionType = src.SubscriptionType
		case ColumnStartDate:
			dst.StartDate = copyTime(src.StartDate)
		case ColumnEndDate:
			dst.EndDate = copyTime(src.EndDate)
		case ColumnGracePeriodEndDate:
			dst.GracePeriodEndDate = copyTime(src.GracePeriodEndDate)
		case ColumnIsActive:
			dst.IsActive = src.IsActive
		case ColumnAutoRenewal:
			dst.AutoRenewal = src.AutoRenewal
		case ColumnNotificationSent:
			dst.NotificationSent = src.NotificationSent
		case ColumnPaymentHistory:
			dst.PaymentHistory = src.PaymentHistory
		default:
			return fmt.Errorf("unknown subscription column %q", col)
		}
	}
	return nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func (r *memorySubscriptionRepository) ListActive(ctx context.Context) ([]models.Subscription, error) {
	r.ms.mu.RLock()
	defer r.ms.mu.RUnlock()
	return r.ms.filterSubscriptions(func(s models.Subscription) bool { return s.IsActive }), nil
}

func (r *memorySubscriptionRepository) ListActiveBySubscriber(ctx context.Context, subscriberID uint) ([]models.Subscription, error) {
	r.ms.mu.RLock()
	defer r.ms.mu.RUnlock()
	return r.ms.filterSubscriptions(func(s models.Subscription) bool {
		return s.IsActive && s.SubscriberID == subscriberID
	}), nil
}

func (r *memorySubscriptionRepository) ListActiveByCoach(ctx context.Context, coachID uint) ([]models.Subscription, error) {
	r.ms.mu.RLock()
	defer r.ms.mu.RUnlock()
	return r.ms.filterSubscriptions(func(s models.Subscription) bool {
		return s.IsActive && s.CoachID == coachID
	}), nil
}

func (r *memorySubscriptionRepository) ListActiveEndedBefore(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	r.ms.mu.RLock()
	defer r.ms.mu.RUnlock()
	return r.ms.filterSubscriptions(func(s models.Subscription) bool {
		return s.IsActive && s.Expired(now)
	}), nil
}

func (r *memorySubscriptionRepository) ListUnnotifiedEndedBefore(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	r.ms.mu.RLock()
	defer r.ms.mu.RUnlock()
	subs := r.ms.filterSubscriptions(func(s models.Subscription) bool {
		return !s.NotificationSent && s.Expired(now)
	})
	for i := range subs {
		if u, ok := r.ms.users[subs[i].SubscriberID]; ok {
			subs[i].Subscriber = &u
		}
		if c, ok := r.ms.users[subs[i].CoachID]; ok {
			subs[i].Coach = &c
		}
	}
	return subs, nil
}

func (r *memorySubscriptionRepository) MarkNotificationSent(ctx context.Context, id uint, endDate time.Time) error {
	r.ms.mu.Lock()
	defer r.ms.mu.Unlock()
	s, ok := r.ms.subscriptions[id]
	if !ok || s.EndDate == nil || !s.EndDate.Equal(endDate) {
		return nil
	}
	s.NotificationSent = true
	r.ms.subscriptions[id] = s
	return nil
}

func (r *memorySubscriptionRepository) CountActiveByCoach(ctx context.Context, coachID uint) (int64, error) {
	r.ms.mu.RLock()
	defer r.ms.mu.RUnlock()
	var n int64
	for _, s := range r.ms.subscriptions {
		if s.IsActive && s.CoachID == coachID {
			n++
		}
	}
	return n, nil
}

type memoryPaymentRepository struct {
	ms *MemoryStore
}

func (r *memoryPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	r.ms.mu.Lock()
	defer r.ms.mu.Unlock()
	for _, p := range r.ms.payments {
		if p.TransactionID == payment.TransactionID {
			return ErrDuplicateKey
		}
	}
	payment.ID = r.ms.id()
	r.ms.payments[payment.ID] = *payment
	return nil
}

func (r *memoryPaymentRepository) GetByID(ctx context.Context, id uint) (*models.Payment, error) {
	r.ms.mu.RLock()
	defer r.ms.mu.RUnlock()
	p, ok := r.ms.payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r *memoryPaymentRepository) List(ctx context.Context, offset, limit int) ([]models.Payment, error) {
	r.ms.mu.RLock()
	defer r.ms.mu.RUnlock()
	out := make([]models.Payment, 0, len(r.ms.payments))
	for _, p := range r.ms.payments {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PaymentDate.Equal(out[j].PaymentDate) {
			return out[i].ID > out[j].ID
		}
		return out[i].PaymentDate.After(out[j].PaymentDate)
	})
	if offset >= len(out) {
		return []models.Payment{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

package payment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CoachHub/app/models"
	"github.com/ManuelReschke/CoachHub/app/repository"
	"github.com/ManuelReschke/CoachHub/internal/pkg/apperr"
	"github.com/ManuelReschke/CoachHub/internal/pkg/clock"
)

type mockPaymentRepository struct {
	mock.Mock
}

func (m *mockPaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockPaymentRepository) GetByID(ctx context.Context, id uint) (*models.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockPaymentRepository) List(ctx context.Context, offset, limit int) ([]models.Payment, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).([]models.Payment), args.Error(1)
}

var now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	repos   *repository.Repositories
	payerID uint
	subID   uint
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repos, _ := repository.NewMemoryRepositories()
	ctx := context.Background()

	payer := &models.User{Name: "Ulla User", Email: "ulla@example.com", Role: models.ROLE_USER, Status: models.STATUS_ACTIVE}
	coach := &models.User{Name: "Carl Coach", Email: "carl@example.com", Role: models.ROLE_COACH, Status: models.STATUS_ACTIVE}
	require.NoError(t, repos.User.Create(ctx, payer))
	require.NoError(t, repos.User.Create(ctx, coach))

	sub := &models.Subscription{SubscriberID: payer.ID, CoachID: coach.ID, SubscriptionType: models.SubscriptionTypeMonthly}
	require.NoError(t, repos.Subscription.CreatePending(ctx, sub, now))

	return fixture{repos: repos, payerID: payer.ID, subID: sub.ID}
}

func validInput(subID uint) Input {
	return Input{SubscriptionID: subID, Amount: 49.90, PaymentMethod: models.PaymentMethodCreditCard}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("tx-%d", n)
	}
}

func TestCreateDefaultsPaymentDateToNow(t *testing.T) {
	f := newFixture(t)
	issuer := NewIssuer(f.repos, WithClock(&clock.Fixed{At: now}))

	p, err := issuer.Create(context.Background(), validInput(f.subID), f.payerID)

	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.NotEmpty(t, p.TransactionID)
	assert.Equal(t, now, p.PaymentDate)
	assert.Equal(t, f.payerID, p.UserID)
	assert.Equal(t, f.subID, p.SubscriptionID)
}

func TestCreateKeepsExplicitPaymentDate(t *testing.T) {
	f := newFixture(t)
	issuer := NewIssuer(f.repos, WithClock(&clock.Fixed{At: now}))
	in := validInput(f.subID)
	paidAt := now.Add(-48 * time.Hour)
	in.PaymentDate = &paidAt

	p, err := issuer.Create(context.Background(), in, f.payerID)

	require.NoError(t, err)
	assert.Equal(t, paidAt, p.PaymentDate)
}

func TestCreateNotFound(t *testing.T) {
	f := newFixture(t)
	issuer := NewIssuer(f.repos)

	_, err := issuer.Create(context.Background(), validInput(f.subID), 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = issuer.Create(context.Background(), validInput(999), f.payerID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	issuer := NewIssuer(f.repos)

	in := validInput(f.subID)
	in.Amount = 0
	_, err := issuer.Create(context.Background(), in, f.payerID)
	assert.ErrorIs(t, err, apperr.ErrBadRequest)

	in = validInput(f.subID)
	in.PaymentMethod = "cash"
	_, err = issuer.Create(context.Background(), in, f.payerID)
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
}

func TestCreateRetriesOnTransactionIDCollision(t *testing.T) {
	f := newFixture(t)
	payments := &mockPaymentRepository{}
	f.repos.Payment = payments

	payments.On("Create", mock.Anything, mock.Anything).Return(repository.ErrDuplicateKey).Times(MaxTransactionIDAttempts - 1)
	payments.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	issuer := NewIssuer(f.repos, WithIDGenerator(sequentialIDs()))
	p, err := issuer.Create(context.Background(), validInput(f.subID), f.payerID)

	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("tx-%d", MaxTransactionIDAttempts), p.TransactionID)
	payments.AssertNumberOfCalls(t, "Create", MaxTransactionIDAttempts)
}

func TestCreateGivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	payments := &mockPaymentRepository{}
	f.repos.Payment = payments

	payments.On("Create", mock.Anything, mock.Anything).Return(repository.ErrDuplicateKey)

	issuer := NewIssuer(f.repos)
	_, err := issuer.Create(context.Background(), validInput(f.subID), f.payerID)

	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.EqualError(t, err, "could not generate a unique transaction id")
	payments.AssertNumberOfCalls(t, "Create", MaxTransactionIDAttempts)
}

func TestCreateDoesNotRetryOtherErrors(t *testing.T) {
	f := newFixture(t)
	payments := &mockPaymentRepository{}
	f.repos.Payment = payments

	dbErr := errors.New("connection reset")
	payments.On("Create", mock.Anything, mock.Anything).Return(dbErr)

	issuer := NewIssuer(f.repos)
	_, err := issuer.Create(context.Background(), validInput(f.subID), f.payerID)

	assert.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, apperr.ErrConflict)
	payments.AssertNumberOfCalls(t, "Create", 1)
}

func TestCreateCollisionAgainstStoredPayment(t *testing.T) {
	f := newFixture(t)
	ids := []string{"same", "same", "other"}
	next := 0
	gen := func() string {
		id := ids[next]
		next++
		return id
	}
	issuer := NewIssuer(f.repos, WithIDGenerator(gen))

	first, err := issuer.Create(context.Background(), validInput(f.subID), f.payerID)
	require.NoError(t, err)
	second, err := issuer.Create(context.Background(), validInput(f.subID), f.payerID)
	require.NoError(t, err)

	assert.Equal(t, "same", first.TransactionID)
	assert.Equal(t, "other", second.TransactionID)
}

func TestFindOne(t *testing.T) {
	f := newFixture(t)
	issuer := NewIssuer(f.repos)
	created, err := issuer.Create(context.Background(), validInput(f.subID), f.payerID)
	require.NoError(t, err)

	got, err := issuer.FindOne(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.TransactionID, got.TransactionID)

	_, err = issuer.FindOne(context.Background(), 12345)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

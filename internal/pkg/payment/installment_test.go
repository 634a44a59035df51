package payment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aggpay/aggpay/app/models"
)

func seedOrder(t *testing.T, repo *fakeRepo, total int64) *models.Order {
	t.Helper()
	order := &models.Order{
		Reference:     "ORD-PLAN",
		CustomerEmail: "buyer@example.com",
		CustomerName:  "Buyer",
		Currency:      "XOF",
		TotalAmount:   total,
		Status:        models.OrderStatusPending,
	}
	require.NoError(t, repo.CreateOrder(order))
	return order
}

func TestCreatePlan_SlicesSumToTotal(t *testing.T) {
	repo := newFakeRepo()
	order := seedOrder(t, repo, 1000)
	service := NewInstallmentService(repo)

	plan, err := service.CreatePlan(context.Background(), CreatePlanInput{OrderID: order.ID, NumberOfInstallments: 3})
	require.NoError(t, err)

	require.Len(t, plan.Payments, 3)
	assert.Equal(t, int64(333), plan.Payments[0].Amount)
	assert.Equal(t, int64(333), plan.Payments[1].Amount)
	assert.Equal(t, int64(334), plan.Payments[2].Amount, "the rounding remainder lands on the last installment")

	var sum int64
	for _, payment := range plan.Payments {
		sum += payment.Amount
	}
	assert.Equal(t, order.TotalAmount, sum)
	assert.Equal(t, models.InstallmentPlanStatusActive, plan.Status)
	assert.Equal(t, "XOF", plan.Currency)
}

func TestCreatePlan_DueDateSpacing(t *testing.T) {
	repo := newFakeRepo()
	order := seedOrder(t, repo, 9000)
	service := NewInstallmentService(repo)

	before := time.Now()
	plan, err := service.CreatePlan(context.Background(), CreatePlanInput{OrderID: order.ID, NumberOfInstallments: 3, IntervalDays: 14})
	require.NoError(t, err)

	require.Len(t, plan.Payments, 3)
	assert.WithinDuration(t, before, plan.Payments[0].DueDate, time.Minute, "the first installment is due immediately")
	assert.WithinDuration(t, before.AddDate(0, 0, 14), plan.Payments[1].DueDate, time.Minute)
	assert.WithinDuration(t, before.AddDate(0, 0, 28), plan.Payments[2].DueDate, time.Minute)
	for i, payment := range plan.Payments {
		assert.Equal(t, i+1, payment.InstallmentNumber)
		assert.Equal(t, models.InstallmentPaymentStatusPending, payment.Status)
	}
}

func TestCreatePlan_DefaultInterval(t *testing.T) {
	repo := newFakeRepo()
	order := seedOrder(t, repo, 600)
	service := NewInstallmentService(repo)

	plan, err := service.CreatePlan(context.Background(), CreatePlanInput{OrderID: order.ID, NumberOfInstallments: 2})
	require.NoError(t, err)
	assert.Equal(t, 30, plan.IntervalDays)
}

func TestCreatePlan_InvalidCount(t *testing.T) {
	repo := newFakeRepo()
	order := seedOrder(t, repo, 1000)
	service := NewInstallmentService(repo)

	for _, n := range []int{0, 1, 13} {
		_, err := service.CreatePlan(context.Background(), CreatePlanInput{OrderID: order.ID, NumberOfInstallments: n})
		assert.ErrorIs(t, err, ErrInvalidInstallmentCount, "count %d", n)
	}
}

func TestCreatePlan_UnknownOrder(t *testing.T) {
	repo := newFakeRepo()
	service := NewInstallmentService(repo)

	_, err := service.CreatePlan(context.Background(), CreatePlanInput{OrderID: 99, NumberOfInstallments: 3})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestNotifyDue(t *testing.T) {
	repo := newFakeRepo()
	order := seedOrder(t, repo, 900)
	service := NewInstallmentService(repo)

	plan := &models.InstallmentPlan{OrderID: order.ID, TotalAmount: 900, Currency: "XOF", NumberOfInstallments: 3, IntervalDays: 30, Status: models.InstallmentPlanStatusActive}
	payments := []models.InstallmentPayment{
		{InstallmentNumber: 1, Amount: 300, DueDate: time.Now().AddDate(0, 0, -2), Status: models.InstallmentPaymentStatusPending},
		{InstallmentNumber: 2, Amount: 300, DueDate: time.Now().AddDate(0, 0, -1), Status: models.InstallmentPaymentStatusPaid},
		{InstallmentNumber: 3, Amount: 300, DueDate: time.Now().AddDate(0, 0, 30), Status: models.InstallmentPaymentStatusPending},
	}
	require.NoError(t, repo.CreateInstallmentPlan(plan, payments))

	notified, err := service.NotifyDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, notified, "only pending installments past their due date get a reminder")
}

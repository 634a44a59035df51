package payment

import (
	"context"
	"errors"
	"time"

	"github.com/aggpay/aggpay/app/models"
	"github.com/gofiber/fiber/v2/log"
)

const (
	minInstallments = 2
	maxInstallments = 12

	defaultInstallmentIntervalDays = 30
)

// ErrInvalidInstallmentCount is returned when the requested number of
// installments falls outside the allowed range.
var ErrInvalidInstallmentCount = errors.New("number of installments out of range")

// CreatePlanInput carries a validated installment plan request.
type CreatePlanInput struct {
	OrderID              uint
	NumberOfInstallments int
	IntervalDays         int
}

// InstallmentService splits order totals into scheduled payment plans.
type InstallmentService struct {
	repo   Repository
	notify NotifyFunc
}

// NewInstallmentService creates the installment service.
func NewInstallmentService(repo Repository) *InstallmentService {
	return &InstallmentService{repo: repo, notify: Notify}
}

// CreatePlan builds and persists a plan for the order. The total is split
// into equal slices with integer division; the rounding remainder lands on
// the last installment so the slices always sum to the order total. The first
// installment is due immediately.
func (s *InstallmentService) CreatePlan(ctx context.Context, input CreatePlanInput) (*models.InstallmentPlan, error) {
	if input.NumberOfInstallments < minInstallments || input.NumberOfInstallments > maxInstallments {
		return nil, ErrInvalidInstallmentCount
	}
	intervalDays := input.IntervalDays
	if intervalDays <= 0 {
		intervalDays = defaultInstallmentIntervalDays
	}

	order, err := s.repo.GetOrderByID(input.OrderID)
	if err != nil {
		return nil, err
	}

	n := input.NumberOfInstallments
	base := order.TotalAmount / int64(n)
	remainder := order.TotalAmount % int64(n)

	plan := &models.InstallmentPlan{
		OrderID:              order.ID,
		TotalAmount:          order.TotalAmount,
		Currency:             order.Currency,
		NumberOfInstallments: n,
		IntervalDays:         intervalDays,
		Status:               models.InstallmentPlanStatusActive,
	}

	now := time.Now()
	payments := make([]models.InstallmentPayment, n)
	for i := 0; i < n; i++ {
		amount := base
		if i == n-1 {
			amount += remainder
		}
		payments[i] = models.InstallmentPayment{
			InstallmentNumber: i + 1,
			Amount:            amount,
			DueDate:           now.AddDate(0, 0, i*intervalDays),
			Status:            models.InstallmentPaymentStatusPending,
		}
	}

	if err := s.repo.CreateInstallmentPlan(plan, payments); err != nil {
		return nil, err
	}
	plan.Payments = payments

	s.notify(ctx, EventInstallmentPlan, NotificationData{
		OrderReference: order.Reference,
		CustomerEmail:  order.CustomerEmail,
		CustomerName:   order.CustomerName,
		Amount:         order.TotalAmount,
		Currency:       order.Currency,
		Installments:   n,
	})
	return plan, nil
}

// NotifyDue emails a reminder for every pending installment whose due date
// has passed. Intended to run on a periodic sweep.
func (s *InstallmentService) NotifyDue(ctx context.Context) (int, error) {
	due, err := s.repo.DueInstallments(time.Now())
	if err != nil {
		return 0, err
	}

	notified := 0
	for _, payment := range due {
		if payment.Plan == nil || payment.Plan.Order == nil {
			log.Warnf("installment payment %d has no order attached, skipping reminder", payment.ID)
			continue
		}
		order := payment.Plan.Order
		s.notify(ctx, EventInstallmentDue, NotificationData{
			OrderReference: order.Reference,
			CustomerEmail:  order.CustomerEmail,
			CustomerName:   order.CustomerName,
			Amount:         payment.Amount,
			Currency:       payment.Plan.Currency,
		})
		notified++
	}
	return notified, nil
}

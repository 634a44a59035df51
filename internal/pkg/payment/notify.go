package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aggpay/aggpay/internal/pkg/env"
	"github.com/aggpay/aggpay/internal/pkg/mail"
	"github.com/gofiber/fiber/v2/log"
	"github.com/zoobzio/hookz"
)

// Notification event keys.
const (
	EventPaymentSucceeded hookz.Key = "payment.succeeded"
	EventPaymentFailed    hookz.Key = "payment.failed"
	EventPaymentRefunded  hookz.Key = "payment.refunded"
	EventInstallmentPlan  hookz.Key = "installment.plan_created"
	EventInstallmentDue   hookz.Key = "installment.payment_due"
)

// NotificationData is the payload emitted after a payment state change
// commits. Everything a mail template needs is copied in so hooks never touch
// the database.
type NotificationData struct {
	OrderReference    string
	CustomerEmail     string
	CustomerName      string
	Amount            int64
	Currency          string
	ProviderCode      string
	TransactionNumber string
	FailureReason     string
	Installments      int
}

var (
	notifyOnce  sync.Once
	notifyHooks *hookz.Hooks[NotificationData]
)

// Notifications returns the process-wide notification hook service. Hooks run
// asynchronously after the emitting transaction has committed, so a slow SMTP
// server never holds a DB lock.
func Notifications() *hookz.Hooks[NotificationData] {
	notifyOnce.Do(func() {
		notifyHooks = hookz.New[NotificationData](
			hookz.WithWorkers(4),
			hookz.WithTimeout(30*time.Second),
		)
		registerMailHooks(notifyHooks)
	})
	return notifyHooks
}

// NotifyFunc dispatches one notification event. The payment services carry
// it as a field so dispatches stay observable; production wiring uses Notify.
type NotifyFunc func(ctx context.Context, event hookz.Key, data NotificationData)

// Notify emits a notification event, logging instead of failing the caller
// when the hook queue is saturated.
func Notify(ctx context.Context, event hookz.Key, data NotificationData) {
	if err := Notifications().Emit(ctx, event, data); err != nil {
		log.Warnf("notification emit failed for %s (order %s): %v", event, data.OrderReference, err)
	}
}

func registerMailHooks(h *hookz.Hooks[NotificationData]) {
	register := func(event hookz.Key, cb func(context.Context, NotificationData) error) {
		if _, err := h.Hook(event, cb); err != nil {
			log.Errorf("failed to register %s hook: %v", event, err)
		}
	}

	register(EventPaymentSucceeded, func(_ context.Context, d NotificationData) error {
		subject := fmt.Sprintf("Payment confirmation %s", d.OrderReference)
		body := fmt.Sprintf(
			"<p>Hello %s,</p><p>Your payment of %d %s for order %s was received.</p>",
			d.CustomerName, d.Amount, d.Currency, d.OrderReference,
		)
		if err := mail.SendMail(d.CustomerEmail, subject, body); err != nil {
			return err
		}
		if admin := env.GetEnv("ADMIN_EMAIL", ""); admin != "" {
			adminBody := fmt.Sprintf(
				"<p>Order %s paid: %d %s via %s (txn %s).</p>",
				d.OrderReference, d.Amount, d.Currency, d.ProviderCode, d.TransactionNumber,
			)
			return mail.SendMail(admin, "Payment received "+d.OrderReference, adminBody)
		}
		return nil
	})

	register(EventPaymentFailed, func(_ context.Context, d NotificationData) error {
		subject := fmt.Sprintf("Payment failed for order %s", d.OrderReference)
		body := fmt.Sprintf(
			"<p>Hello %s,</p><p>Your payment for order %s could not be completed: %s.</p><p>You can retry with another payment method.</p>",
			d.CustomerName, d.OrderReference, d.FailureReason,
		)
		return mail.SendMail(d.CustomerEmail, subject, body)
	})

	register(EventPaymentRefunded, func(_ context.Context, d NotificationData) error {
		subject := fmt.Sprintf("Refund issued for order %s", d.OrderReference)
		body := fmt.Sprintf(
			"<p>Hello %s,</p><p>A refund of %d %s for order %s has been issued.</p>",
			d.CustomerName, d.Amount, d.Currency, d.OrderReference,
		)
		return mail.SendMail(d.CustomerEmail, subject, body)
	})

	register(EventInstallmentPlan, func(_ context.Context, d NotificationData) error {
		subject := fmt.Sprintf("Installment plan for order %s", d.OrderReference)
		body := fmt.Sprintf(
			"<p>Hello %s,</p><p>Your order %s of %d %s has been split into %d installments.</p>",
			d.CustomerName, d.OrderReference, d.Amount, d.Currency, d.Installments,
		)
		return mail.SendMail(d.CustomerEmail, subject, body)
	})

	register(EventInstallmentDue, func(_ context.Context, d NotificationData) error {
		subject := fmt.Sprintf("Installment due for order %s", d.OrderReference)
		body := fmt.Sprintf(
			"<p>Hello %s,</p><p>An installment of %d %s for order %s is due.</p>",
			d.CustomerName, d.Amount, d.Currency, d.OrderReference,
		)
		return mail.SendMail(d.CustomerEmail, subject, body)
	})
}

// CloseNotifications drains the hook workers. Call on shutdown.
func CloseNotifications() error {
	if notifyHooks == nil {
		return nil
	}
	return notifyHooks.Close()
}

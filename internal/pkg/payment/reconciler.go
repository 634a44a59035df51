package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aggpay/aggpay/app/models"
	"github.com/aggpay/aggpay/internal/pkg/env"
	"github.com/gofiber/fiber/v2/log"
	"github.com/zoobzio/hookz"
)

// Reconciler turns inbound provider notifications into payment state
// transitions. Every delivery is persisted before correlation, transitions
// run under a row lock on the attempt, and replayed deliveries are absorbed
// without side effects.
type Reconciler struct {
	repo     Repository
	registry *Registry
	notify   NotifyFunc
}

// NewReconciler wires the reconciler from its collaborators.
func NewReconciler(repo Repository, registry *Registry) *Reconciler {
	return &Reconciler{repo: repo, registry: registry, notify: Notify}
}

// ProcessEvent ingests one raw webhook delivery. The returned event row is
// always persisted; a nil error does not mean a transition happened, only
// that the delivery was recorded and handled as far as it could be.
func (r *Reconciler) ProcessEvent(ctx context.Context, providerCode string, payload []byte, signature string) (*models.WebhookEvent, error) {
	event := &models.WebhookEvent{
		ProviderCode: providerCode,
		EventType:    extractEventType(payload),
		Payload:      string(payload),
	}
	if err := r.repo.CreateWebhookEvent(event); err != nil {
		return nil, fmt.Errorf("persist webhook event: %w", err)
	}

	adapter, err := r.registry.Get(providerCode)
	if err != nil {
		return r.abandon(event, fmt.Sprintf("unknown provider: %s", providerCode))
	}

	// Providers with a pull API establish authenticity through the status
	// re-check below; their deliveries arrive unsigned, so the signature
	// result is recorded but does not gate them.
	event.SignatureValid = adapter.ValidateWebhookSignature(payload, signature, adapter.WebhookSecret())
	if !event.SignatureValid && !adapter.SupportsStatusCheck() {
		log.Warnf("webhook %d from %s rejected: invalid signature", event.ID, providerCode)
		return r.abandon(event, "invalid signature")
	}

	transactionNumber := adapter.TransactionNumberFromWebhook(payload)
	if transactionNumber == "" && providerCode == models.ProviderCodeKKiaPay && env.GetBool("KKIAPAY_LEGACY_AMOUNT_MATCH", false) {
		transactionNumber = r.matchByAmount(providerCode, payload)
	}
	if transactionNumber == "" {
		return r.abandon(event, "no transaction reference in payload")
	}

	target, detail := r.resolveStatus(ctx, adapter, transactionNumber, payload)
	if target == "" {
		if detail != "" {
			// Authoritative status check failed; leave the event unprocessed
			// so a redelivery or sweep can retry it.
			event.RetryCount++
			return r.abandon(event, detail)
		}
		// Conclusively irrelevant event type. Acknowledge and close it.
		return r.markProcessed(event)
	}

	var notifyEvent string
	var notifyData NotificationData

	found, err := r.repo.ReconcileAttempt(transactionNumber, func(tx ReconcileTx, attempt *models.PaymentAttempt, intent *models.PaymentIntent, order *models.Order) error {
		notifyData = NotificationData{
			OrderReference:    order.Reference,
			CustomerEmail:     order.CustomerEmail,
			CustomerName:      order.CustomerName,
			Amount:            intent.Amount,
			Currency:          intent.Currency,
			ProviderCode:      providerCode,
			TransactionNumber: transactionNumber,
			FailureReason:     detail,
		}

		switch target {
		case models.PaymentStatusSucceeded:
			if attempt.Status == models.AttemptStatusSucceeded {
				// Replayed delivery; the transition already happened.
				return markEventProcessed(tx, event)
			}
			if err := tx.UpdateAttempt(attempt.ID, map[string]any{
				"status":           models.AttemptStatusSucceeded,
				"response_payload": string(payload),
			}); err != nil {
				return err
			}
			if err := tx.UpdateIntent(intent.ID, map[string]any{
				"status":               models.PaymentStatusSucceeded,
				"selected_provider_id": attempt.ProviderID,
			}); err != nil {
				return err
			}
			if err := tx.UpdateOrder(order.ID, map[string]any{"status": models.OrderStatusCompleted}); err != nil {
				return err
			}
			notifyEvent = string(EventPaymentSucceeded)
			return markEventProcessed(tx, event)

		case models.PaymentStatusFailed:
			if attempt.IsTerminal() {
				return markEventProcessed(tx, event)
			}
			if err := tx.UpdateAttempt(attempt.ID, map[string]any{
				"status":           models.AttemptStatusFailed,
				"response_payload": string(payload),
			}); err != nil {
				return err
			}
			// The intent fails only when this attempt was the selected one;
			// a failure on a superseded attempt changes nothing above it.
			if !intent.IsTerminal() && intent.SelectedProviderID != nil && *intent.SelectedProviderID == attempt.ProviderID {
				if err := tx.UpdateIntent(intent.ID, map[string]any{"status": models.PaymentStatusFailed}); err != nil {
					return err
				}
				if err := tx.UpdateOrder(order.ID, map[string]any{"status": models.OrderStatusFailed}); err != nil {
					return err
				}
				notifyEvent = string(EventPaymentFailed)
			}
			return markEventProcessed(tx, event)

		case models.PaymentStatusProcessing:
			// Interim notification: the attempt alone moves, the intent waits
			// for a conclusive delivery. The event stays unprocessed so the
			// record shows the payment is still in flight.
			if attempt.IsTerminal() {
				return nil
			}
			return tx.UpdateAttempt(attempt.ID, map[string]any{"status": models.AttemptStatusProcessing})

		default:
			return markEventProcessed(tx, event)
		}
	})
	if err != nil {
		return event, fmt.Errorf("reconcile transaction %s: %w", transactionNumber, err)
	}
	if !found {
		return r.abandon(event, fmt.Sprintf("no attempt for transaction %s", transactionNumber))
	}

	if notifyEvent != "" {
		r.notify(ctx, hookz.Key(notifyEvent), notifyData)
	}
	log.Infof("webhook %d from %s reconciled txn %s to %s", event.ID, providerCode, transactionNumber, target)
	return event, nil
}

// resolveStatus decides the target payment status for a delivery. Providers
// with a pull API are never trusted on payload contents alone: the claim is
// re-verified against their status endpoint. Returns ("", detail) when the
// authoritative check failed and ("", "") when the event is irrelevant.
func (r *Reconciler) resolveStatus(ctx context.Context, adapter Provider, transactionNumber string, payload []byte) (string, string) {
	if adapter.SupportsStatusCheck() {
		res := adapter.CheckStatus(ctx, transactionNumber)
		if !res.Success {
			return "", fmt.Sprintf("status check failed: %s %s", res.ErrorCode, res.ErrorMessage)
		}
		return res.Status, ""
	}
	return adapter.ClassifyWebhook(payload), ""
}

// matchByAmount is the legacy correlation path for deliveries that omit the
// transaction reference: a unique in-flight attempt with the same amount in
// the last 24 hours is taken as the match. Ambiguity means no match. The
// provider-side transaction id from the payload is stored on the matched
// attempt so later deliveries carrying only that id correlate directly.
func (r *Reconciler) matchByAmount(providerCode string, payload []byte) string {
	var body struct {
		Amount        int64  `json:"amount"`
		TransactionID string `json:"transactionId"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.Amount <= 0 {
		return ""
	}

	provider, err := r.repo.FindProviderByCode(providerCode)
	if err != nil {
		return ""
	}
	attempts, err := r.repo.FindRecentAttemptsByProvider(provider.ID, time.Now().Add(-24*time.Hour), 50)
	if err != nil {
		return ""
	}

	var match *models.PaymentAttempt
	for i := range attempts {
		attempt := &attempts[i]
		if attempt.Status != models.AttemptStatusProcessing || attempt.PaymentIntent == nil {
			continue
		}
		if attempt.PaymentIntent.Amount != body.Amount {
			continue
		}
		if match != nil {
			return ""
		}
		match = attempt
	}
	if match == nil {
		return ""
	}

	if body.TransactionID != "" {
		if err := r.repo.SetAttemptProviderReference(match.ID, body.TransactionID); err != nil {
			log.Warnf("store provider reference %s on attempt %d: %v", body.TransactionID, match.ID, err)
		}
	}
	return match.TransactionNumber
}

func (r *Reconciler) abandon(event *models.WebhookEvent, reason string) (*models.WebhookEvent, error) {
	event.ErrorMessage = reason
	if err := r.repo.SaveWebhookEvent(event); err != nil {
		return event, fmt.Errorf("save webhook event: %w", err)
	}
	return event, nil
}

func (r *Reconciler) markProcessed(event *models.WebhookEvent) (*models.WebhookEvent, error) {
	now := time.Now()
	event.Processed = true
	event.ProcessedAt = &now
	if err := r.repo.SaveWebhookEvent(event); err != nil {
		return event, fmt.Errorf("save webhook event: %w", err)
	}
	return event, nil
}

func markEventProcessed(tx ReconcileTx, event *models.WebhookEvent) error {
	now := time.Now()
	event.Processed = true
	event.ProcessedAt = &now
	return tx.SaveEvent(event)
}

// extractEventType pulls a best-effort event label out of a raw payload for
// the audit log. Unrecognized shapes are filed under "notification".
func extractEventType(payload []byte) string {
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err == nil {
		for _, key := range []string{"type", "event", "event_type"} {
			if v, ok := body[key].(string); ok && v != "" {
				return v
			}
		}
	}
	return "notification"
}

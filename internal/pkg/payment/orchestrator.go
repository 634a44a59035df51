package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aggpay/aggpay/app/models"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// maxFallbackAttempts caps how many providers one initialization will try
// before giving up, no matter how many routes matched.
const maxFallbackAttempts = 3

var (
	// ErrNoEligibleProvider is returned when routing finds no provider for
	// the request, including after the wildcard fallback.
	ErrNoEligibleProvider = errors.New("no eligible payment provider for request")

	// ErrRefundNotAllowed is returned when a refund is requested for an
	// intent that has not succeeded.
	ErrRefundNotAllowed = errors.New("payment is not in a refundable state")
)

// Service orchestrates payment initialization, fallback across providers and
// refunds. It owns intent and attempt state; provider adapters stay stateless.
type Service struct {
	repo     Repository
	resolver *Resolver
	registry *Registry
	notify   NotifyFunc
}

// NewService wires the orchestrator from its collaborators.
func NewService(repo Repository, resolver *Resolver, registry *Registry) *Service {
	return &Service{repo: repo, resolver: resolver, registry: registry, notify: Notify}
}

// InitializePayment creates the order and payment intent for the request and
// walks the resolved provider chain until one accepts the charge.
//
// Idempotency is handled before any row is written: a replay with a known key
// returns the stored intent instead of creating a second order. When the
// caller supplies no key one is generated and returned, so every response
// carries a usable retry key.
func (s *Service) InitializePayment(ctx context.Context, input InitializePaymentInput) (*InitializePaymentResult, error) {
	idemKey := input.IdempotencyKey
	if idemKey == "" {
		idemKey = uuid.NewString()
	} else {
		existing, err := s.repo.FindIntentByIdempotencyKey(idemKey)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("idempotency lookup: %w", err)
		}
		if existing != nil {
			return s.replayResult(existing.ID, idemKey)
		}
	}

	order := &models.Order{
		Reference:     models.NewOrderReference(),
		CustomerEmail: input.CustomerEmail,
		CustomerName:  input.CustomerName,
		CustomerPhone: input.CustomerPhone,
		Currency:      input.Currency,
		TotalAmount:   input.Amount,
		Status:        models.OrderStatusPending,
		MetadataJSON:  input.MetadataJSON,
	}
	if err := s.repo.CreateOrder(order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	intent := &models.PaymentIntent{
		OrderID:        order.ID,
		Amount:         input.Amount,
		Currency:       input.Currency,
		Status:         models.PaymentStatusCreated,
		IdempotencyKey: idemKey,
		MetadataJSON:   input.MetadataJSON,
	}
	if err := s.repo.CreateIntent(intent); err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	candidates, err := s.resolver.Resolve(input.CountryCode, input.Currency, input.PaymentMethod, input.Amount)
	if err != nil {
		return nil, fmt.Errorf("resolve providers: %w", err)
	}
	if len(candidates) == 0 {
		if err := s.repo.UpdateIntentStatus(intent.ID, models.PaymentStatusFailed, nil); err != nil {
			log.Errorf("mark intent %d failed: %v", intent.ID, err)
		}
		return nil, ErrNoEligibleProvider
	}

	limit := maxFallbackAttempts
	if len(candidates) < limit {
		limit = len(candidates)
	}

	var providerErrors []ProviderError
	for _, route := range candidates[:limit] {
		providerCode := route.Provider.Code
		adapter, err := s.registry.Get(providerCode)
		if err != nil {
			providerErrors = append(providerErrors, ProviderError{
				Provider: providerCode,
				Code:     "adapter_unavailable",
				Message:  err.Error(),
			})
			continue
		}

		req := PaymentRequest{
			Amount:            input.Amount,
			Currency:          input.Currency,
			CountryCode:       input.CountryCode,
			OrderID:           order.ID,
			OrderReference:    order.Reference,
			PaymentIntentID:   intent.ID,
			TransactionNumber: models.NewTransactionNumber(),
			Description:       "Order " + order.Reference,
			CustomerEmail:     input.CustomerEmail,
			CustomerName:      input.CustomerName,
			CustomerPhone:     input.CustomerPhone,
			SuccessURL:        input.SuccessURL,
			CancelURL:         input.CancelURL,
			NotifyURL:         input.NotifyURL,
		}
		reqPayload, _ := json.Marshal(req)

		attempt := &models.PaymentAttempt{
			PaymentIntentID:   intent.ID,
			ProviderID:        route.ProviderID,
			TransactionNumber: req.TransactionNumber,
			Status:            models.AttemptStatusPending,
			RequestPayload:    string(reqPayload),
		}
		if err := s.repo.CreateAttempt(attempt); err != nil {
			return nil, fmt.Errorf("create payment attempt: %w", err)
		}
		if err := s.repo.UpdateAttemptStatus(attempt.ID, models.AttemptStatusProcessing); err != nil {
			log.Errorf("mark attempt %d processing: %v", attempt.ID, err)
		}

		res := adapter.CreatePayment(ctx, req)
		if !res.Success {
			if err := s.repo.MarkAttemptFailed(attempt.ID, res.ErrorCode, res.ErrorMessage, res.Response); err != nil {
				log.Errorf("mark attempt %d failed: %v", attempt.ID, err)
			}
			providerErrors = append(providerErrors, ProviderError{
				Provider: providerCode,
				Code:     res.ErrorCode,
				Message:  res.ErrorMessage,
			})
			log.Warnf("provider %s rejected order %s: %s", providerCode, order.Reference, res.ErrorMessage)
			continue
		}

		if err := s.repo.SelectAttempt(attempt.ID, res.Response, intent.ID, route.ProviderID); err != nil {
			return nil, fmt.Errorf("record selected attempt: %w", err)
		}

		log.Infof("order %s initialized via %s (txn %s)", order.Reference, providerCode, req.TransactionNumber)
		return &InitializePaymentResult{
			Success:           true,
			OrderReference:    order.Reference,
			PaymentIntentID:   intent.ID,
			IdempotencyKey:    idemKey,
			TransactionNumber: req.TransactionNumber,
			RedirectURL:       res.RedirectURL,
			WidgetParams:      res.WidgetParams,
			Provider:          providerCode,
		}, nil
	}

	if err := s.repo.UpdateIntentStatus(intent.ID, models.PaymentStatusFailed, nil); err != nil {
		log.Errorf("mark intent %d failed: %v", intent.ID, err)
	}
	s.notify(ctx, EventPaymentFailed, NotificationData{
		OrderReference: order.Reference,
		CustomerEmail:  input.CustomerEmail,
		CustomerName:   input.CustomerName,
		Amount:         input.Amount,
		Currency:       input.Currency,
		FailureReason:  lastErrorMessage(providerErrors),
	})

	return &InitializePaymentResult{
		Success:         false,
		OrderReference:  order.Reference,
		PaymentIntentID: intent.ID,
		IdempotencyKey:  idemKey,
		Errors:          providerErrors,
	}, nil
}

// replayResult rebuilds the response for a replayed idempotency key from the
// stored intent. Redirect URLs are not persisted, so a replay identifies the
// existing intent rather than repeating the provider handshake.
func (s *Service) replayResult(intentID uint, idemKey string) (*InitializePaymentResult, error) {
	intent, err := s.repo.GetIntentByID(intentID)
	if err != nil {
		return nil, fmt.Errorf("load replayed intent: %w", err)
	}

	result := &InitializePaymentResult{
		Success:         intent.Status != models.PaymentStatusFailed && intent.Status != models.PaymentStatusCanceled,
		PaymentIntentID: intent.ID,
		IdempotencyKey:  idemKey,
	}
	if intent.Order != nil {
		result.OrderReference = intent.Order.Reference
	}
	for i := len(intent.Attempts) - 1; i >= 0; i-- {
		attempt := intent.Attempts[i]
		if attempt.Status == models.AttemptStatusFailed || attempt.Status == models.AttemptStatusCanceled {
			continue
		}
		result.TransactionNumber = attempt.TransactionNumber
		if attempt.Provider != nil {
			result.Provider = attempt.Provider.Code
		}
		break
	}
	return result, nil
}

// GetPayment loads an intent with its order and attempt history.
func (s *Service) GetPayment(id uint) (*models.PaymentIntent, error) {
	return s.repo.GetIntentByID(id)
}

// Refund reverses a succeeded payment through the provider that settled it.
func (s *Service) Refund(ctx context.Context, intentID uint) (*RefundResult, error) {
	intent, err := s.repo.GetIntentByID(intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != models.PaymentStatusSucceeded {
		return nil, ErrRefundNotAllowed
	}

	var settled *models.PaymentAttempt
	for i := range intent.Attempts {
		if intent.Attempts[i].Status == models.AttemptStatusSucceeded {
			settled = &intent.Attempts[i]
			break
		}
	}
	if settled == nil || settled.Provider == nil {
		return nil, ErrRefundNotAllowed
	}

	adapter, err := s.registry.Get(settled.Provider.Code)
	if err != nil {
		return nil, err
	}

	res := adapter.Refund(ctx, settled.TransactionNumber, intent.Amount)
	if !res.Success {
		return &res, nil
	}

	if err := s.repo.MarkIntentRefunded(intent.ID, intent.OrderID); err != nil {
		return nil, fmt.Errorf("mark intent refunded: %w", err)
	}

	data := NotificationData{
		Amount:            intent.Amount,
		Currency:          intent.Currency,
		ProviderCode:      settled.Provider.Code,
		TransactionNumber: settled.TransactionNumber,
	}
	if intent.Order != nil {
		data.OrderReference = intent.Order.Reference
		data.CustomerEmail = intent.Order.CustomerEmail
		data.CustomerName = intent.Order.CustomerName
	}
	s.notify(ctx, EventPaymentRefunded, data)

	return &res, nil
}

func lastErrorMessage(errs []ProviderError) string {
	if len(errs) == 0 {
		return "no provider accepted the payment"
	}
	last := errs[len(errs)-1]
	return fmt.Sprintf("%s: %s", last.Provider, last.Message)
}

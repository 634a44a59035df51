package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aggpay/aggpay/app/models"
)

// Provider is the uniform contract every payment provider adapter fulfills.
// Adapters never retry internally; retry and fallback belong to the
// orchestrator. Besides the charge lifecycle, each adapter owns the
// provider-specific webhook knowledge: which field carries the correlating
// transaction number, how to classify a notification, and how to verify its
// signature.
type Provider interface {
	// Code returns the catalog code the adapter serves.
	Code() string

	// CreatePayment initiates a charge with the external provider.
	CreatePayment(ctx context.Context, req PaymentRequest) CreateResult

	// CheckStatus queries the provider's authoritative pull API for the
	// current state of a transaction.
	CheckStatus(ctx context.Context, transactionNumber string) StatusResult

	// Refund reverses a settled transaction where the provider supports it.
	Refund(ctx context.Context, transactionNumber string, amount int64) RefundResult

	// ValidateWebhookSignature verifies an inbound notification in constant
	// time. Missing signature or secret yields false, never an error.
	ValidateWebhookSignature(payload []byte, signature, secret string) bool

	// MapStatus translates provider status vocabulary to an internal payment
	// status. Total: unknown vocabulary maps to failed.
	MapStatus(providerStatus string) string

	// TransactionNumberFromWebhook extracts the correlating transaction
	// number from a raw webhook payload, or "" when absent.
	TransactionNumberFromWebhook(payload []byte) string

	// ClassifyWebhook maps a raw webhook payload to an internal payment
	// status, or "" when the payload is not conclusive on its own.
	ClassifyWebhook(payload []byte) string

	// SupportsStatusCheck reports whether the reconciler should re-verify
	// webhook claims against CheckStatus instead of trusting the payload.
	SupportsStatusCheck() bool

	// WebhookSecret returns the configured secret used for signature checks.
	WebhookSecret() string
}

// Registry builds and caches provider adapters by catalog code.
type Registry struct {
	mu       sync.Mutex
	adapters map[string]Provider
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Provider)}
}

// Get returns the adapter for a provider code, constructing it from the
// environment on first use.
func (r *Registry) Get(code string) (Provider, error) {
	key := strings.ToLower(strings.TrimSpace(code))

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.adapters[key]; ok {
		return p, nil
	}

	var p Provider
	switch key {
	case models.ProviderCodeStripe:
		p = NewStripeFromEnv()
	case models.ProviderCodeCinetPay:
		p = NewCinetPayFromEnv()
	case models.ProviderCodeKKiaPay:
		p = NewKKiaPayFromEnv()
	case models.ProviderCodeMock:
		p = NewMockProvider()
	default:
		return nil, fmt.Errorf("unknown payment provider: %s", code)
	}

	r.adapters[key] = p
	return p, nil
}

// Override registers a pre-built adapter under its code. Used by tests and by
// deployments that construct adapters with explicit credentials.
func (r *Registry) Override(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[strings.ToLower(p.Code())] = p
}

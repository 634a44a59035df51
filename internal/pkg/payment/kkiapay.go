package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aggpay/aggpay/app/models"
	"github.com/aggpay/aggpay/internal/pkg/env"
)

const defaultKKiaPayAPIBaseURL = "https://api.kkiapay.me/api/v1"

// KKiaPayProvider is the widget-based adapter: CreatePayment performs no
// provider call and instead returns the parameters the frontend needs to open
// the KKiaPay widget. Correlation relies on our transaction number being
// passed as the widget's partner reference and echoed back in webhooks.
type KKiaPayProvider struct {
	PublicKey     string
	PrivateKey    string
	SecretKey     string
	Sandbox       bool
	APIBaseURL    string
	webhookSecret string

	HTTPClient *http.Client
}

// NewKKiaPayFromEnv builds the KKiaPay adapter from environment config.
func NewKKiaPayFromEnv() *KKiaPayProvider {
	return &KKiaPayProvider{
		PublicKey:     strings.TrimSpace(env.GetEnv("KKIAPAY_PUBLIC_KEY", "")),
		PrivateKey:    strings.TrimSpace(env.GetEnv("KKIAPAY_PRIVATE_KEY", "")),
		SecretKey:     strings.TrimSpace(env.GetEnv("KKIAPAY_SECRET_KEY", "")),
		Sandbox:       env.GetBool("KKIAPAY_SANDBOX", false),
		APIBaseURL:    strings.TrimRight(env.GetEnv("KKIAPAY_API_BASE_URL", defaultKKiaPayAPIBaseURL), "/"),
		webhookSecret: strings.TrimSpace(env.GetEnv("KKIAPAY_WEBHOOK_SECRET", "")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (p *KKiaPayProvider) Code() string { return models.ProviderCodeKKiaPay }

func (p *KKiaPayProvider) WebhookSecret() string {
	if p.webhookSecret != "" {
		return p.webhookSecret
	}
	// KKiaPay signs webhooks with the account private key by default.
	return p.PrivateKey
}

// KKiaPay webhooks are classified from their payload; the verify endpoint is
// kept for manual checks and refunds but is not part of reconciliation.
func (p *KKiaPayProvider) SupportsStatusCheck() bool { return false }

func (p *KKiaPayProvider) CreatePayment(ctx context.Context, req PaymentRequest) CreateResult {
	if p.PublicKey == "" {
		return CreateResult{Success: false, ErrorCode: "KKIAPAY_NOT_CONFIGURED", ErrorMessage: "kkiapay public key is not configured"}
	}

	widgetParams := map[string]any{
		"amount":       req.Amount,
		"sandbox":      p.Sandbox,
		"key":          p.PublicKey,
		"phone":        req.CustomerPhone,
		"email":        req.CustomerEmail,
		"name":         req.CustomerName,
		"reference":    req.TransactionNumber,
		"partnerId":    req.TransactionNumber,
		"callback_url": req.SuccessURL,
		"return_url":   req.SuccessURL,
		"cancel_url":   req.CancelURL,
		"metadata": map[string]any{
			"orderId":           req.OrderID,
			"paymentIntentId":   req.PaymentIntentID,
			"transactionNumber": req.TransactionNumber,
		},
	}

	response, _ := json.Marshal(map[string]string{"message": "open the kkiapay widget with widgetParams"})
	return CreateResult{
		Success:           true,
		TransactionNumber: req.TransactionNumber,
		WidgetParams:      widgetParams,
		Status:            models.PaymentStatusRequiresAction,
		Response:          string(response),
	}
}

type kkiapayTransaction struct {
	Status string `json:"status"`
	State  string `json:"state"`
}

func (p *KKiaPayProvider) CheckStatus(ctx context.Context, transactionNumber string) StatusResult {
	if p.PrivateKey == "" || p.SecretKey == "" {
		return StatusResult{Success: false, ErrorCode: "KKIAPAY_NOT_CONFIGURED", ErrorMessage: "kkiapay keys are not configured for verification"}
	}

	raw, err := p.post(ctx, p.APIBaseURL+"/transactions/status", map[string]string{"transactionId": transactionNumber})
	if err != nil {
		return StatusResult{Success: false, ErrorCode: "KKIAPAY_NETWORK_ERROR", ErrorMessage: err.Error()}
	}

	var tx kkiapayTransaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return StatusResult{Success: false, ErrorCode: "KKIAPAY_BAD_RESPONSE", ErrorMessage: err.Error()}
	}

	status := tx.Status
	if status == "" {
		status = tx.State
	}
	return StatusResult{
		Success:  true,
		Status:   p.MapStatus(status),
		Response: string(raw),
	}
}

func (p *KKiaPayProvider) Refund(ctx context.Context, transactionNumber string, amount int64) RefundResult {
	if p.PrivateKey == "" || p.SecretKey == "" {
		return RefundResult{Success: false, ErrorCode: "KKIAPAY_NOT_CONFIGURED", ErrorMessage: "kkiapay keys are not configured"}
	}

	raw, err := p.post(ctx, p.APIBaseURL+"/transactions/revert", map[string]string{"transactionId": transactionNumber})
	if err != nil {
		return RefundResult{Success: false, ErrorCode: "KKIAPAY_NETWORK_ERROR", ErrorMessage: err.Error()}
	}
	return RefundResult{Success: true, Response: string(raw)}
}

func (p *KKiaPayProvider) MapStatus(providerStatus string) string {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "success", "successful", "completed":
		return models.PaymentStatusSucceeded
	case "pending", "processing", "waiting":
		return models.PaymentStatusProcessing
	case "canceled", "cancelled":
		return models.PaymentStatusCanceled
	default:
		return models.PaymentStatusFailed
	}
}

func (p *KKiaPayProvider) ValidateWebhookSignature(payload []byte, signature, secret string) bool {
	return verifyHMACSHA256(payload, signature, secret)
}

type kkiapayWebhookPayload struct {
	PartnerID        string `json:"partnerId"`
	TransactionID    string `json:"transactionId"`
	TransactionIDAlt string `json:"transaction_id"`
	Event            string `json:"event"`
	IsPaymentSuccess *bool  `json:"isPaymentSucces"`
	Amount           int64  `json:"amount"`
}

func (p *KKiaPayProvider) TransactionNumberFromWebhook(payload []byte) string {
	var body kkiapayWebhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	if body.PartnerID != "" {
		return body.PartnerID
	}
	if body.TransactionID != "" {
		return body.TransactionID
	}
	return body.TransactionIDAlt
}

func (p *KKiaPayProvider) ClassifyWebhook(payload []byte) string {
	var body kkiapayWebhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}

	if body.IsPaymentSuccess != nil {
		if *body.IsPaymentSuccess {
			return models.PaymentStatusSucceeded
		}
		return models.PaymentStatusFailed
	}

	event := strings.ToLower(body.Event)
	switch {
	case event == "transaction.success" || strings.Contains(event, "success"):
		return models.PaymentStatusSucceeded
	case event == "transaction.failed" || strings.Contains(event, "failed"):
		return models.PaymentStatusFailed
	}
	return ""
}

func (p *KKiaPayProvider) post(ctx context.Context, endpoint string, payload map[string]string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.PublicKey)
	httpReq.Header.Set("x-private-key", p.PrivateKey)
	httpReq.Header.Set("x-secret-key", p.SecretKey)

	resp, err := p.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

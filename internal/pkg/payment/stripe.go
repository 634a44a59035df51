package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aggpay/aggpay/app/models"
	"github.com/aggpay/aggpay/internal/pkg/env"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com/v1"

// Currencies without a minor unit; Stripe takes their amounts as-is.
var stripeZeroDecimalCurrencies = map[string]bool{
	"XAF": true, "XOF": true, "GNF": true, "JPY": true, "KRW": true,
}

// StripeProvider is the hosted-checkout adapter: CreatePayment opens a
// Checkout Session and returns its redirect URL. The session carries our
// transaction number as client_reference_id and metadata so webhooks echo a
// stable correlation handle.
type StripeProvider struct {
	SecretKey     string
	APIBaseURL    string
	webhookSecret string

	HTTPClient *http.Client
}

// NewStripeFromEnv builds the Stripe adapter from environment config.
func NewStripeFromEnv() *StripeProvider {
	return &StripeProvider{
		SecretKey:     strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		APIBaseURL:    strings.TrimRight(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL), "/"),
		webhookSecret: strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (p *StripeProvider) Code() string { return models.ProviderCodeStripe }

func (p *StripeProvider) WebhookSecret() string { return p.webhookSecret }

// Stripe webhooks carry conclusive event types, so the reconciler classifies
// the payload instead of re-querying the API.
func (p *StripeProvider) SupportsStatusCheck() bool { return false }

type stripeSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
	Error         *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *StripeProvider) CreatePayment(ctx context.Context, req PaymentRequest) CreateResult {
	if p.SecretKey == "" {
		return CreateResult{Success: false, ErrorCode: "STRIPE_NOT_CONFIGURED", ErrorMessage: "stripe secret key is not configured"}
	}

	unitAmount := req.Amount
	if !stripeZeroDecimalCurrencies[strings.ToUpper(req.Currency)] {
		unitAmount = req.Amount * 100
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("client_reference_id", req.TransactionNumber)
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][product_data][name]", "Order "+req.OrderReference)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(unitAmount, 10))
	form.Set("line_items[0][quantity]", "1")
	form.Set("metadata[transaction_number]", req.TransactionNumber)
	form.Set("metadata[order_id]", strconv.FormatUint(uint64(req.OrderID), 10))
	form.Set("metadata[payment_intent_id]", strconv.FormatUint(uint64(req.PaymentIntentID), 10))

	raw, session, err := p.doForm(ctx, http.MethodPost, p.APIBaseURL+"/checkout/sessions", form)
	if err != nil {
		return CreateResult{Success: false, ErrorCode: "STRIPE_NETWORK_ERROR", ErrorMessage: err.Error()}
	}
	if session.Error != nil || session.ID == "" {
		result := CreateResult{Success: false, ErrorCode: "STRIPE_CREATE_FAILED", Response: raw}
		if session.Error != nil {
			result.ErrorMessage = session.Error.Message
			if session.Error.Code != "" {
				result.ErrorCode = "STRIPE_" + strings.ToUpper(session.Error.Code)
			}
		}
		return result
	}

	return CreateResult{
		Success:           true,
		TransactionNumber: req.TransactionNumber,
		RedirectURL:       session.URL,
		Status:            models.PaymentStatusRequiresAction,
		Response:          raw,
	}
}

func (p *StripeProvider) CheckStatus(ctx context.Context, transactionNumber string) StatusResult {
	raw, session, err := p.doForm(ctx, http.MethodGet, p.APIBaseURL+"/checkout/sessions/"+url.PathEscape(transactionNumber), nil)
	if err != nil {
		return StatusResult{Success: false, ErrorCode: "STRIPE_NETWORK_ERROR", ErrorMessage: err.Error()}
	}
	if session.Error != nil {
		return StatusResult{Success: false, ErrorCode: "STRIPE_CHECK_FAILED", ErrorMessage: session.Error.Message, Response: raw}
	}
	return StatusResult{
		Success:  true,
		Status:   p.MapStatus(session.PaymentStatus),
		Response: raw,
	}
}

func (p *StripeProvider) Refund(ctx context.Context, transactionNumber string, amount int64) RefundResult {
	return RefundResult{
		Success:      false,
		ErrorCode:    "STRIPE_REFUND_UNSUPPORTED",
		ErrorMessage: "stripe refunds require the payment intent id, not the checkout session; use the dashboard",
	}
}

func (p *StripeProvider) MapStatus(providerStatus string) string {
	switch providerStatus {
	case "paid", "no_payment_required":
		return models.PaymentStatusSucceeded
	case "unpaid":
		return models.PaymentStatusProcessing
	default:
		return models.PaymentStatusFailed
	}
}

// ValidateWebhookSignature verifies a Stripe-Signature header
// ("t=<ts>,v1=<hex>,..."): HMAC-SHA256 over "<ts>.<payload>".
func (p *StripeProvider) ValidateWebhookSignature(payload []byte, signature, secret string) bool {
	if strings.TrimSpace(signature) == "" || secret == "" {
		return false
	}

	var timestamp string
	var candidates []string
	for _, part := range strings.Split(signature, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			candidates = append(candidates, kv[1])
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%s", timestamp, payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(strings.ToLower(candidate))) {
			return true
		}
	}
	return false
}

type stripeWebhookPayload struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                string            `json:"id"`
			ClientReferenceID string            `json:"client_reference_id"`
			Metadata          map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

func (p *StripeProvider) TransactionNumberFromWebhook(payload []byte) string {
	var body stripeWebhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	obj := body.Data.Object
	if txn := obj.Metadata["transaction_number"]; txn != "" {
		return txn
	}
	if obj.ClientReferenceID != "" {
		return obj.ClientReferenceID
	}
	return obj.ID
}

func (p *StripeProvider) ClassifyWebhook(payload []byte) string {
	var body stripeWebhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	switch body.Type {
	case "checkout.session.completed":
		return models.PaymentStatusSucceeded
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		return models.PaymentStatusFailed
	default:
		return ""
	}
}

func (p *StripeProvider) doForm(ctx context.Context, method, endpoint string, form url.Values) (string, *stripeSession, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return "", nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.SecretKey)
	if form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := p.HTTPClient.Do(httpReq)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, err
	}

	var session stripeSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return "", nil, err
	}
	return string(raw), &session, nil
}

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
	"github.com/gofiber/fiber/v2/log"
)

const (
	defaultCinetPayPaymentURL = "https://api-checkout.cinetpay.com/v2/payment"
	defaultCinetPayCheckURL   = "https://api-checkout.cinetpay.com/v2/payment/check"
)

// CinetPay forbids these characters in payment descriptions.
var cinetpayDescriptionStrip = strings.NewReplacer("#", " ", "/", " ", "$", " ", "_", " ", "&", " ")

// CinetPayProvider is the direct-API adapter: the charge is initiated server
// side and the customer is redirected to a hosted payment page. CinetPay
// exposes an authoritative check endpoint, so the reconciler re-verifies
// every webhook claim against it instead of trusting pushed payloads.
type CinetPayProvider struct {
	APIKey        string
	SiteID        string
	PaymentURL    string
	CheckURL      string
	webhookSecret string

	HTTPClient *http.Client
}

// NewCinetPayFromEnv builds the CinetPay adapter from environment config.
func NewCinetPayFromEnv() *CinetPayProvider {
	return &CinetPayProvider{
		APIKey:        strings.TrimSpace(env.GetEnv("CINETPAY_API_KEY", "")),
		SiteID:        strings.TrimSpace(env.GetEnv("CINETPAY_SITE_ID", "")),
		PaymentURL:    strings.TrimSpace(env.GetEnv("CINETPAY_PAYMENT_URL", defaultCinetPayPaymentURL)),
		CheckURL:      strings.TrimSpace(env.GetEnv("CINETPAY_CHECK_URL", defaultCinetPayCheckURL)),
		webhookSecret: strings.TrimSpace(env.GetEnv("CINETPAY_WEBHOOK_SECRET", "")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (p *CinetPayProvider) Code() string { return models.ProviderCodeCinetPay }

func (p *CinetPayProvider) WebhookSecret() string { return p.webhookSecret }

func (p *CinetPayProvider) SupportsStatusCheck() bool { return true }

type cinetpayCreateResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		PaymentToken string `json:"payment_token"`
		PaymentURL   string `json:"payment_url"`
	} `json:"data"`
}

func (p *CinetPayProvider) CreatePayment(ctx context.Context, req PaymentRequest) CreateResult {
	description := req.Description
	if description == "" {
		description = "Payment for Order " + req.OrderReference
	}
	description = cinetpayDescriptionStrip.Replace(description)
	if len(description) > 100 {
		description = description[:100]
	}

	metadata, _ := json.Marshal(map[string]any{
		"paymentIntentId": req.PaymentIntentID,
		"orderId":         req.OrderID,
	})

	customerName := req.CustomerName
	if customerName == "" {
		customerName = "Customer"
	}
	customerPhone := req.CustomerPhone
	if customerPhone == "" {
		customerPhone = "+23700000000"
	}
	country := req.CountryCode
	if country == "" {
		country = "CM"
	}

	payload := map[string]any{
		"apikey":                p.APIKey,
		"site_id":               p.SiteID,
		"transaction_id":        req.TransactionNumber,
		"amount":                req.Amount,
		"currency":              req.Currency,
		"description":           description,
		"customer_id":           req.CustomerEmail,
		"customer_name":         customerName,
		"customer_surname":      "User",
		"customer_phone_number": customerPhone,
		"customer_email":        req.CustomerEmail,
		"customer_address":      "N/A",
		"customer_city":         "N/A",
		"customer_country":      country,
		"customer_state":        country,
		"customer_zip_code":     "00000",
		"notify_url":            req.NotifyURL,
		"return_url":            req.SuccessURL,
		"channels":              "ALL",
		"metadata":              string(metadata),
		"lang":                  "fr",
		"invoice_data":          map[string]any{"Order": req.OrderReference},
	}

	raw, data, err := p.postJSON(ctx, p.PaymentURL, payload)
	if err != nil {
		return CreateResult{
			Success:      false,
			ErrorCode:    "CINETPAY_NETWORK_ERROR",
			ErrorMessage: err.Error(),
		}
	}

	if data.Code != "201" {
		return CreateResult{
			Success:      false,
			ErrorCode:    "CINETPAY_" + data.Code,
			ErrorMessage: data.Message,
			Response:     raw,
		}
	}

	return CreateResult{
		Success:           true,
		TransactionNumber: req.TransactionNumber,
		RedirectURL:       data.Data.PaymentURL,
		Status:            models.PaymentStatusRequiresAction,
		Response:          raw,
	}
}

type cinetpayCheckResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		Status string `json:"status"`
	} `json:"data"`
}

func (p *CinetPayProvider) CheckStatus(ctx context.Context, transactionNumber string) StatusResult {
	payload := map[string]any{
		"apikey":         p.APIKey,
		"site_id":        p.SiteID,
		"transaction_id": transactionNumber,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return StatusResult{Success: false, ErrorMessage: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.CheckURL, bytes.NewReader(body))
	if err != nil {
		return StatusResult{Success: false, ErrorMessage: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.HTTPClient.Do(httpReq)
	if err != nil {
		return StatusResult{Success: false, ErrorCode: "CINETPAY_NETWORK_ERROR", ErrorMessage: err.Error()}
	}
	defer resp.Body.Close()

	var data cinetpayCheckResponse
	raw := new(bytes.Buffer)
	if err := json.NewDecoder(io.TeeReader(resp.Body, raw)).Decode(&data); err != nil {
		return StatusResult{Success: false, ErrorCode: "CINETPAY_BAD_RESPONSE", ErrorMessage: err.Error()}
	}

	// Code 00 is a settled check, 662 means the customer is still paying.
	isNormal := data.Code == "00" || data.Code == "662"
	if !isNormal {
		log.Errorf("cinetpay status check error for %s: %s (code %s)", transactionNumber, data.Message, data.Code)
	}

	status := ""
	if data.Data != nil {
		s := data.Data.Status
		if s == "" {
			s = data.Message
		}
		status = p.MapStatus(s)
	}

	return StatusResult{
		Success:      isNormal,
		Status:       status,
		Response:     raw.String(),
		ErrorCode:    data.Code,
		ErrorMessage: data.Message,
	}
}

func (p *CinetPayProvider) Refund(ctx context.Context, transactionNumber string, amount int64) RefundResult {
	return RefundResult{
		Success:      false,
		ErrorCode:    "CINETPAY_REFUND_UNSUPPORTED",
		ErrorMessage: "cinetpay refunds are handled through the merchant dashboard",
	}
}

// MapStatus translates CinetPay status vocabulary; unknown values map to
// failed so a new provider status can never be mistaken for success.
func (p *CinetPayProvider) MapStatus(providerStatus string) string {
	switch strings.ToUpper(strings.TrimSpace(providerStatus)) {
	case "ACCEPTED":
		return models.PaymentStatusSucceeded
	case "REFUSED", "CANCEL":
		return models.PaymentStatusFailed
	case "WAITING", "WAITING_CUSTOMER_PAYMENT", "WAITING_FOR_CUSTOMER":
		return models.PaymentStatusProcessing
	default:
		return models.PaymentStatusFailed
	}
}

// ValidateWebhookSignature checks the x-token HMAC over the raw body.
func (p *CinetPayProvider) ValidateWebhookSignature(payload []byte, signature, secret string) bool {
	return verifyHMACSHA256(payload, signature, secret)
}

type cinetpayWebhookPayload struct {
	CpmTransID          string `json:"cpm_trans_id"`
	ClientTransactionID string `json:"client_transaction_id"`
	CpmResult           string `json:"cpm_result"`
}

func (p *CinetPayProvider) TransactionNumberFromWebhook(payload []byte) string {
	var body cinetpayWebhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	if body.CpmTransID != "" {
		return body.CpmTransID
	}
	return body.ClientTransactionID
}

func (p *CinetPayProvider) ClassifyWebhook(payload []byte) string {
	var body cinetpayWebhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	switch body.CpmResult {
	case "00":
		return models.PaymentStatusSucceeded
	case "waiting":
		return models.PaymentStatusProcessing
	case "":
		return ""
	default:
		return models.PaymentStatusFailed
	}
}

func (p *CinetPayProvider) postJSON(ctx context.Context, url string, payload map[string]any) (string, *cinetpayCreateResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.HTTPClient.Do(httpReq)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, err
	}

	var data cinetpayCreateResponse
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", nil, err
	}
	return string(raw), &data, nil
}

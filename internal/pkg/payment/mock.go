package payment

import (
	"context"
	"encoding/json"

	"github.com/aggpay/aggpay/app/models"
)

// MockProvider always succeeds. Used in development and tests; never seed it
// into a production route table.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Code() string { return models.ProviderCodeMock }

func (p *MockProvider) WebhookSecret() string { return "mock-secret" }

func (p *MockProvider) SupportsStatusCheck() bool { return false }

func (p *MockProvider) CreatePayment(ctx context.Context, req PaymentRequest) CreateResult {
	response, _ := json.Marshal(map[string]string{"provider": "mock", "transaction": req.TransactionNumber})
	return CreateResult{
		Success:           true,
		TransactionNumber: req.TransactionNumber,
		RedirectURL:       req.SuccessURL,
		Status:            models.PaymentStatusRequiresAction,
		Response:          string(response),
	}
}

func (p *MockProvider) CheckStatus(ctx context.Context, transactionNumber string) StatusResult {
	return StatusResult{Success: true, Status: models.PaymentStatusSucceeded, Response: `{"status":"ACCEPTED"}`}
}

func (p *MockProvider) Refund(ctx context.Context, transactionNumber string, amount int64) RefundResult {
	return RefundResult{Success: true, Response: `{"refunded":true}`}
}

func (p *MockProvider) MapStatus(providerStatus string) string {
	if providerStatus == "ACCEPTED" {
		return models.PaymentStatusSucceeded
	}
	return models.PaymentStatusFailed
}

func (p *MockProvider) ValidateWebhookSignature(payload []byte, signature, secret string) bool {
	return verifyHMACSHA256(payload, signature, secret)
}

func (p *MockProvider) TransactionNumberFromWebhook(payload []byte) string {
	var body struct {
		TransactionNumber string `json:"transactionNumber"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return body.TransactionNumber
}

func (p *MockProvider) ClassifyWebhook(payload []byte) string {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	switch body.Status {
	case "succeeded":
		return models.PaymentStatusSucceeded
	case "failed":
		return models.PaymentStatusFailed
	case "processing":
		return models.PaymentStatusProcessing
	}
	return ""
}

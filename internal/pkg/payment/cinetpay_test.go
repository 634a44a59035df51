package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aggpay/aggpay/app/models"
)

func newTestCinetPay(serverURL string) *CinetPayProvider {
	return &CinetPayProvider{
		APIKey:        "test-api-key",
		SiteID:        "12345",
		PaymentURL:    serverURL + "/v2/payment",
		CheckURL:      serverURL + "/v2/payment/check",
		webhookSecret: "cp-secret",
		HTTPClient:    http.DefaultClient,
	}
}

func TestCinetPayMapStatus(t *testing.T) {
	p := &CinetPayProvider{}
	tests := []struct {
		in   string
		want string
	}{
		{in: "ACCEPTED", want: models.PaymentStatusSucceeded},
		{in: "accepted", want: models.PaymentStatusSucceeded},
		{in: "REFUSED", want: models.PaymentStatusFailed},
		{in: "CANCEL", want: models.PaymentStatusFailed},
		{in: "WAITING", want: models.PaymentStatusProcessing},
		{in: "WAITING_CUSTOMER_PAYMENT", want: models.PaymentStatusProcessing},
		{in: "SOMETHING_NEW", want: models.PaymentStatusFailed},
		{in: "", want: models.PaymentStatusFailed},
	}
	for _, tt := range tests {
		if got := p.MapStatus(tt.in); got != tt.want {
			t.Fatalf("MapStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCinetPayCreatePayment(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"code":    "201",
			"message": "CREATED",
			"data": map[string]any{
				"payment_token": "tok_123",
				"payment_url":   "https://checkout.cinetpay.com/pay/tok_123",
			},
		})
	}))
	defer server.Close()

	p := newTestCinetPay(server.URL)
	res := p.CreatePayment(context.Background(), PaymentRequest{
		Amount:            5000,
		Currency:          "XOF",
		CountryCode:       "CI",
		OrderReference:    "ORD-TEST-1",
		TransactionNumber: "TXN-TEST-1",
		Description:       "Order #1 / books & pens",
		CustomerEmail:     "jo@example.com",
	})

	if !res.Success {
		t.Fatalf("expected success, got error %s: %s", res.ErrorCode, res.ErrorMessage)
	}
	if res.RedirectURL != "https://checkout.cinetpay.com/pay/tok_123" {
		t.Fatalf("unexpected redirect url %q", res.RedirectURL)
	}
	if res.Status != models.PaymentStatusRequiresAction {
		t.Fatalf("unexpected status %q", res.Status)
	}
	if received["transaction_id"] != "TXN-TEST-1" {
		t.Fatalf("transaction id not forwarded, got %v", received["transaction_id"])
	}

	desc, _ := received["description"].(string)
	for _, forbidden := range []string{"#", "/", "&", "_", "$"} {
		if strings.Contains(desc, forbidden) {
			t.Fatalf("description %q still contains forbidden character %q", desc, forbidden)
		}
	}
}

func TestCinetPayCreatePayment_ProviderRejects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": "608", "message": "MINIMUM_REQUIRED_FIELDS"})
	}))
	defer server.Close()

	p := newTestCinetPay(server.URL)
	res := p.CreatePayment(context.Background(), PaymentRequest{Amount: 100, Currency: "XOF", TransactionNumber: "TXN-X"})

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.ErrorCode != "CINETPAY_608" {
		t.Fatalf("unexpected error code %q", res.ErrorCode)
	}
}

func TestCinetPayCheckStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code":    "00",
			"message": "SUCCES",
			"data":    map[string]any{"status": "ACCEPTED"},
		})
	}))
	defer server.Close()

	p := newTestCinetPay(server.URL)
	res := p.CheckStatus(context.Background(), "TXN-TEST-1")

	if !res.Success {
		t.Fatalf("expected success, got %s: %s", res.ErrorCode, res.ErrorMessage)
	}
	if res.Status != models.PaymentStatusSucceeded {
		t.Fatalf("expected succeeded, got %q", res.Status)
	}
}

func TestCinetPayCheckStatus_WaitingCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code":    "662",
			"message": "WAITING_CUSTOMER_PAYMENT",
			"data":    map[string]any{"status": "WAITING_CUSTOMER_PAYMENT"},
		})
	}))
	defer server.Close()

	p := newTestCinetPay(server.URL)
	res := p.CheckStatus(context.Background(), "TXN-TEST-1")

	if !res.Success {
		t.Fatal("code 662 is a normal in-progress answer, expected success")
	}
	if res.Status != models.PaymentStatusProcessing {
		t.Fatalf("expected processing, got %q", res.Status)
	}
}

func TestCinetPayCheckStatus_ErrorCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": "600", "message": "PAYMENT_FAILED"})
	}))
	defer server.Close()

	p := newTestCinetPay(server.URL)
	res := p.CheckStatus(context.Background(), "TXN-TEST-1")

	if res.Success {
		t.Fatal("expected failure for error code 600")
	}
}

func TestCinetPayWebhookExtraction(t *testing.T) {
	p := &CinetPayProvider{}

	payload := []byte(`{"cpm_trans_id":"TXN-A","cpm_result":"00"}`)
	if got := p.TransactionNumberFromWebhook(payload); got != "TXN-A" {
		t.Fatalf("expected TXN-A, got %q", got)
	}
	if got := p.ClassifyWebhook(payload); got != models.PaymentStatusSucceeded {
		t.Fatalf("expected succeeded, got %q", got)
	}

	fallback := []byte(`{"client_transaction_id":"TXN-B","cpm_result":"627"}`)
	if got := p.TransactionNumberFromWebhook(fallback); got != "TXN-B" {
		t.Fatalf("expected TXN-B fallback, got %q", got)
	}
	if got := p.ClassifyWebhook(fallback); got != models.PaymentStatusFailed {
		t.Fatalf("expected failed, got %q", got)
	}

	if got := p.ClassifyWebhook([]byte(`{"cpm_trans_id":"TXN-C"}`)); got != "" {
		t.Fatalf("expected inconclusive for missing cpm_result, got %q", got)
	}
}

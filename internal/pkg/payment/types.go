package payment

// PaymentRequest is the provider-agnostic shape handed to an adapter when
// creating a charge. TransactionNumber is generated by the orchestrator and
// must be embedded in the outbound request so the provider echoes it back in
// webhooks.
type PaymentRequest struct {
	Amount            int64
	Currency          string
	CountryCode       string
	OrderID           uint
	OrderReference    string
	PaymentIntentID   uint
	TransactionNumber string
	Description       string
	CustomerEmail     string
	CustomerName      string
	CustomerPhone     string
	SuccessURL        string
	CancelURL         string
	NotifyURL         string
}

// CreateResult is the normalized outcome of an adapter's CreatePayment call.
// On success exactly one of RedirectURL or WidgetParams is set, depending on
// whether the provider is redirect-based or widget-based.
type CreateResult struct {
	Success           bool
	TransactionNumber string
	RedirectURL       string
	WidgetParams      map[string]any
	Status            string
	Response          string
	ErrorCode         string
	ErrorMessage      string
}

// StatusResult is the normalized outcome of an authoritative status check.
type StatusResult struct {
	Success      bool
	Status       string
	Response     string
	ErrorCode    string
	ErrorMessage string
}

// RefundResult is the normalized outcome of a refund call.
type RefundResult struct {
	Success      bool
	Response     string
	ErrorCode    string
	ErrorMessage string
}

// ProviderError is one entry of the per-provider error chain returned when
// every fallback candidate failed.
type ProviderError struct {
	Provider string `json:"provider"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// InitializePaymentInput carries the validated request into the orchestrator.
type InitializePaymentInput struct {
	CustomerEmail  string
	CustomerName   string
	CustomerPhone  string
	Currency       string
	Amount         int64
	PaymentMethod  string
	CountryCode    string
	SuccessURL     string
	CancelURL      string
	NotifyURL      string
	IdempotencyKey string
	MetadataJSON   string
}

// InitializePaymentResult is the outward-facing result of InitializePayment.
// IdempotencyKey always carries the key under which the intent is stored,
// whether supplied by the caller or generated, so clients can retry safely.
type InitializePaymentResult struct {
	Success           bool            `json:"success"`
	OrderReference    string          `json:"orderReference"`
	PaymentIntentID   uint            `json:"paymentIntentId"`
	IdempotencyKey    string          `json:"idempotencyKey"`
	TransactionNumber string          `json:"transactionNumber,omitempty"`
	RedirectURL       string          `json:"redirectUrl,omitempty"`
	WidgetParams      map[string]any  `json:"widgetParams,omitempty"`
	Provider          string          `json:"provider,omitempty"`
	Errors            []ProviderError `json:"errors,omitempty"`
}

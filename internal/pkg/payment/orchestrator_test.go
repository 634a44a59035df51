package payment

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aggpay/aggpay/app/models"
)

// fakeRepo is an in-memory Repository shared by the service tests.
type fakeRepo struct {
	orders       map[uint]*models.Order
	intents      map[uint]*models.PaymentIntent
	attempts     map[uint]*models.PaymentAttempt
	events       map[uint]*models.WebhookEvent
	providers    map[uint]*models.PaymentProvider
	plans        map[uint]*models.InstallmentPlan
	installments []models.InstallmentPayment
	nextID       uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders:    map[uint]*models.Order{},
		intents:   map[uint]*models.PaymentIntent{},
		attempts:  map[uint]*models.PaymentAttempt{},
		events:    map[uint]*models.WebhookEvent{},
		providers: map[uint]*models.PaymentProvider{},
		plans:     map[uint]*models.InstallmentPlan{},
	}
}

func (f *fakeRepo) id() uint {
	f.nextID++
	return f.nextID
}

func (f *fakeRepo) addProvider(code string) *models.PaymentProvider {
	p := &models.PaymentProvider{ID: f.id(), Code: code, Name: code, IsActive: true, SupportCard: true, SupportMobileMoney: true}
	f.providers[p.ID] = p
	return p
}

func (f *fakeRepo) CreateOrder(order *models.Order) error {
	order.ID = f.id()
	f.orders[order.ID] = order
	return nil
}

func (f *fakeRepo) GetOrderByID(id uint) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (f *fakeRepo) CreateIntent(intent *models.PaymentIntent) error {
	intent.ID = f.id()
	f.intents[intent.ID] = intent
	return nil
}

func (f *fakeRepo) FindIntentByIdempotencyKey(key string) (*models.PaymentIntent, error) {
	for _, intent := range f.intents {
		if intent.IdempotencyKey == key {
			return intent, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) GetIntentByID(id uint) (*models.PaymentIntent, error) {
	intent, ok := f.intents[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	loaded := *intent
	loaded.Order = f.orders[intent.OrderID]
	loaded.Attempts = nil
	for _, attempt := range f.attempts {
		if attempt.PaymentIntentID == id {
			withProvider := *attempt
			withProvider.Provider = f.providers[attempt.ProviderID]
			loaded.Attempts = append(loaded.Attempts, withProvider)
		}
	}
	sort.Slice(loaded.Attempts, func(i, j int) bool { return loaded.Attempts[i].ID < loaded.Attempts[j].ID })
	return &loaded, nil
}

func (f *fakeRepo) UpdateIntentStatus(id uint, status string, selectedProviderID *uint) error {
	intent, ok := f.intents[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	intent.Status = status
	if selectedProviderID != nil {
		intent.SelectedProviderID = selectedProviderID
	}
	return nil
}

func (f *fakeRepo) CreateAttempt(attempt *models.PaymentAttempt) error {
	attempt.ID = f.id()
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}
	f.attempts[attempt.ID] = attempt
	return nil
}

func (f *fakeRepo) UpdateAttemptStatus(id uint, status string) error {
	attempt, ok := f.attempts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	attempt.Status = status
	return nil
}

func (f *fakeRepo) MarkAttemptFailed(id uint, errorCode, errorMessage, responsePayload string) error {
	attempt, ok := f.attempts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	attempt.Status = models.AttemptStatusFailed
	attempt.ErrorCode = errorCode
	attempt.ErrorMessage = errorMessage
	attempt.ResponsePayload = responsePayload
	return nil
}

func (f *fakeRepo) SelectAttempt(attemptID uint, responsePayload string, intentID, providerID uint) error {
	attempt, ok := f.attempts[attemptID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	attempt.Status = models.AttemptStatusSucceeded
	attempt.ResponsePayload = responsePayload

	intent, ok := f.intents[intentID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	intent.Status = models.PaymentStatusSucceeded
	intent.SelectedProviderID = &providerID
	return nil
}

func (f *fakeRepo) FindAttemptByTransactionNumber(transactionNumber string) (*models.PaymentAttempt, error) {
	for _, attempt := range f.attempts {
		if attempt.TransactionNumber == transactionNumber {
			return attempt, nil
		}
		if attempt.ProviderReference != "" && attempt.ProviderReference == transactionNumber {
			return attempt, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) SetAttemptProviderReference(id uint, reference string) error {
	attempt, ok := f.attempts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	attempt.ProviderReference = reference
	return nil
}

func (f *fakeRepo) FindRecentAttemptsByProvider(providerID uint, since time.Time, limit int) ([]models.PaymentAttempt, error) {
	var out []models.PaymentAttempt
	for _, attempt := range f.attempts {
		if attempt.ProviderID != providerID || attempt.CreatedAt.Before(since) {
			continue
		}
		withIntent := *attempt
		if intent, ok := f.intents[attempt.PaymentIntentID]; ok {
			loaded := *intent
			loaded.Order = f.orders[intent.OrderID]
			withIntent.PaymentIntent = &loaded
		}
		out = append(out, withIntent)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRepo) FindProviderByCode(code string) (*models.PaymentProvider, error) {
	for _, provider := range f.providers {
		if provider.Code == code {
			return provider, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) CreateWebhookEvent(event *models.WebhookEvent) error {
	event.ID = f.id()
	f.events[event.ID] = event
	return nil
}

func (f *fakeRepo) SaveWebhookEvent(event *models.WebhookEvent) error {
	f.events[event.ID] = event
	return nil
}

type fakeReconcileTx struct {
	repo *fakeRepo
}

func applyStatus(updates map[string]any, set func(string)) {
	if status, ok := updates["status"].(string); ok {
		set(status)
	}
}

func (t *fakeReconcileTx) UpdateAttempt(id uint, updates map[string]any) error {
	attempt, ok := t.repo.attempts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	applyStatus(updates, func(s string) { attempt.Status = s })
	if payload, ok := updates["response_payload"].(string); ok {
		attempt.ResponsePayload = payload
	}
	return nil
}

func (t *fakeReconcileTx) UpdateIntent(id uint, updates map[string]any) error {
	intent, ok := t.repo.intents[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	applyStatus(updates, func(s string) { intent.Status = s })
	if providerID, ok := updates["selected_provider_id"].(uint); ok {
		intent.SelectedProviderID = &providerID
	}
	return nil
}

func (t *fakeReconcileTx) UpdateOrder(id uint, updates map[string]any) error {
	order, ok := t.repo.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	applyStatus(updates, func(s string) { order.Status = s })
	return nil
}

func (t *fakeReconcileTx) SaveEvent(event *models.WebhookEvent) error {
	t.repo.events[event.ID] = event
	return nil
}

func (f *fakeRepo) ReconcileAttempt(transactionNumber string, fn ReconcileFunc) (bool, error) {
	attempt, err := f.FindAttemptByTransactionNumber(transactionNumber)
	if err != nil {
		return false, nil
	}
	intent := f.intents[attempt.PaymentIntentID]
	order := f.orders[intent.OrderID]
	return true, fn(&fakeReconcileTx{repo: f}, attempt, intent, order)
}

func (f *fakeRepo) MarkIntentRefunded(intentID, orderID uint) error {
	intent, ok := f.intents[intentID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	intent.Status = models.PaymentStatusRefunded
	if order, ok := f.orders[orderID]; ok {
		order.Status = models.OrderStatusRefunded
	}
	return nil
}

func (f *fakeRepo) CreateInstallmentPlan(plan *models.InstallmentPlan, payments []models.InstallmentPayment) error {
	plan.ID = f.id()
	f.plans[plan.ID] = plan
	for i := range payments {
		payments[i].ID = f.id()
		payments[i].PlanID = plan.ID
	}
	f.installments = append(f.installments, payments...)
	return nil
}

func (f *fakeRepo) DueInstallments(before time.Time) ([]models.InstallmentPayment, error) {
	var due []models.InstallmentPayment
	for _, payment := range f.installments {
		if payment.Status != models.InstallmentPaymentStatusPending || payment.DueDate.After(before) {
			continue
		}
		loaded := payment
		if plan, ok := f.plans[payment.PlanID]; ok {
			withOrder := *plan
			withOrder.Order = f.orders[plan.OrderID]
			loaded.Plan = &withOrder
		}
		due = append(due, loaded)
	}
	return due, nil
}

// stubProvider is a configurable Provider used by the service tests.
type stubProvider struct {
	code          string
	createRes     CreateResult
	statusRes     StatusResult
	refundRes     RefundResult
	supportsCheck bool
	classify      string
	txnFromHook   string
	sigValid      bool
	createCalls   int
}

func (s *stubProvider) Code() string { return s.code }

func (s *stubProvider) CreatePayment(_ context.Context, req PaymentRequest) CreateResult {
	s.createCalls++
	res := s.createRes
	if res.Success {
		res.TransactionNumber = req.TransactionNumber
	}
	return res
}

func (s *stubProvider) CheckStatus(context.Context, string) StatusResult { return s.statusRes }

func (s *stubProvider) Refund(context.Context, string, int64) RefundResult { return s.refundRes }

func (s *stubProvider) ValidateWebhookSignature([]byte, string, string) bool { return s.sigValid }

func (s *stubProvider) MapStatus(string) string { return models.PaymentStatusFailed }

func (s *stubProvider) TransactionNumberFromWebhook([]byte) string { return s.txnFromHook }

func (s *stubProvider) ClassifyWebhook([]byte) string { return s.classify }

func (s *stubProvider) SupportsStatusCheck() bool { return s.supportsCheck }

func (s *stubProvider) WebhookSecret() string { return "stub-secret" }

// staticRoutes is a RouteSource serving a fixed table keyed country|currency.
type staticRoutes struct {
	table map[string][]models.ProviderRoute
}

func (s *staticRoutes) GetActiveRoutes(countryCode, currency string) ([]models.ProviderRoute, error) {
	return s.table[countryCode+"|"+currency], nil
}

func routesFor(routes ...models.ProviderRoute) *staticRoutes {
	table := map[string][]models.ProviderRoute{}
	for _, route := range routes {
		key := route.CountryCode + "|" + route.Currency
		table[key] = append(table[key], route)
	}
	return &staticRoutes{table: table}
}

func baseInput() InitializePaymentInput {
	return InitializePaymentInput{
		CustomerEmail: "buyer@example.com",
		CustomerName:  "Buyer",
		Currency:      "XOF",
		Amount:        5000,
		PaymentMethod: models.PaymentMethodMobileMoney,
		CountryCode:   "CI",
		SuccessURL:    "https://shop.example/ok",
	}
}

func newTestService(repo *fakeRepo, routes RouteSource, stubs ...*stubProvider) *Service {
	registry := NewRegistry()
	for _, stub := range stubs {
		registry.Override(stub)
	}
	return NewService(repo, NewResolver(routes, false), registry)
}

func TestInitializePayment_FirstProviderSucceeds(t *testing.T) {
	repo := newFakeRepo()
	alpha := repo.addProvider("alpha")
	beta := repo.addProvider("beta")

	stubAlpha := &stubProvider{code: "alpha", createRes: CreateResult{Success: true, RedirectURL: "https://pay.alpha/x"}}
	stubBeta := &stubProvider{code: "beta", createRes: CreateResult{Success: true}}

	service := newTestService(repo, routesFor(
		models.ProviderRoute{ProviderID: alpha.ID, Provider: alpha, CountryCode: "CI", Currency: "XOF", Priority: 1, IsActive: true},
		models.ProviderRoute{ProviderID: beta.ID, Provider: beta, CountryCode: "CI", Currency: "XOF", Priority: 2, IsActive: true},
	), stubAlpha, stubBeta)

	result, err := service.InitializePayment(context.Background(), baseInput())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "alpha", result.Provider)
	assert.Equal(t, "https://pay.alpha/x", result.RedirectURL)
	assert.NotEmpty(t, result.TransactionNumber)
	assert.NotEmpty(t, result.IdempotencyKey, "a generated idempotency key must be returned")
	assert.NotEmpty(t, result.OrderReference)
	assert.Zero(t, stubBeta.createCalls, "fallback provider must not be called")

	intent := repo.intents[result.PaymentIntentID]
	require.NotNil(t, intent)
	assert.Equal(t, models.PaymentStatusSucceeded, intent.Status)
	require.NotNil(t, intent.SelectedProviderID)
	assert.Equal(t, alpha.ID, *intent.SelectedProviderID)

	for _, attempt := range repo.attempts {
		assert.Equal(t, models.AttemptStatusSucceeded, attempt.Status)
	}
}

func TestInitializePayment_FallsBackToSecondProvider(t *testing.T) {
	repo := newFakeRepo()
	alpha := repo.addProvider("alpha")
	beta := repo.addProvider("beta")

	stubAlpha := &stubProvider{code: "alpha", createRes: CreateResult{Success: false, ErrorCode: "ALPHA_DOWN", ErrorMessage: "maintenance"}}
	stubBeta := &stubProvider{code: "beta", createRes: CreateResult{Success: true, RedirectURL: "https://pay.beta/y"}}

	service := newTestService(repo, routesFor(
		models.ProviderRoute{ProviderID: alpha.ID, Provider: alpha, CountryCode: "CI", Currency: "XOF", Priority: 1, IsActive: true},
		models.ProviderRoute{ProviderID: beta.ID, Provider: beta, CountryCode: "CI", Currency: "XOF", Priority: 2, IsActive: true},
	), stubAlpha, stubBeta)

	result, err := service.InitializePayment(context.Background(), baseInput())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "beta", result.Provider)
	assert.Equal(t, 1, stubAlpha.createCalls)
	assert.Equal(t, 1, stubBeta.createCalls)

	var failed, succeeded int
	for _, attempt := range repo.attempts {
		switch attempt.Status {
		case models.AttemptStatusFailed:
			failed++
			assert.Equal(t, "ALPHA_DOWN", attempt.ErrorCode)
		case models.AttemptStatusSucceeded:
			succeeded++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, succeeded)

	intent := repo.intents[result.PaymentIntentID]
	assert.Equal(t, models.PaymentStatusSucceeded, intent.Status)
	require.NotNil(t, intent.SelectedProviderID)
	assert.Equal(t, beta.ID, *intent.SelectedProviderID)
}

func TestInitializePayment_AllProvidersFail(t *testing.T) {
	repo := newFakeRepo()
	alpha := repo.addProvider("alpha")
	beta := repo.addProvider("beta")

	stubAlpha := &stubProvider{code: "alpha", createRes: CreateResult{Success: false, ErrorCode: "ALPHA_DOWN", ErrorMessage: "down"}}
	stubBeta := &stubProvider{code: "beta", createRes: CreateResult{Success: false, ErrorCode: "BETA_DOWN", ErrorMessage: "down too"}}

	service := newTestService(repo, routesFor(
		models.ProviderRoute{ProviderID: alpha.ID, Provider: alpha, CountryCode: "CI", Currency: "XOF", Priority: 1, IsActive: true},
		models.ProviderRoute{ProviderID: beta.ID, Provider: beta, CountryCode: "CI", Currency: "XOF", Priority: 2, IsActive: true},
	), stubAlpha, stubBeta)

	result, err := service.InitializePayment(context.Background(), baseInput())
	require.NoError(t, err)

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "alpha", result.Errors[0].Provider)
	assert.Equal(t, "beta", result.Errors[1].Provider)

	intent := repo.intents[result.PaymentIntentID]
	assert.Equal(t, models.PaymentStatusFailed, intent.Status)
}

func TestInitializePayment_AttemptCap(t *testing.T) {
	repo := newFakeRepo()
	var routes []models.ProviderRoute
	var stubs []*stubProvider
	codes := []string{"p1", "p2", "p3", "p4"}
	for i, code := range codes {
		provider := repo.addProvider(code)
		routes = append(routes, models.ProviderRoute{ProviderID: provider.ID, Provider: provider, CountryCode: "CI", Currency: "XOF", Priority: i + 1, IsActive: true})
		stubs = append(stubs, &stubProvider{code: code, createRes: CreateResult{Success: false, ErrorCode: "DOWN"}})
	}

	service := newTestService(repo, routesFor(routes...), stubs...)

	result, err := service.InitializePayment(context.Background(), baseInput())
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Len(t, result.Errors, 3, "fallback stops after three providers")
	assert.Len(t, repo.attempts, 3)
	assert.Zero(t, stubs[3].createCalls)
}

func TestInitializePayment_NoEligibleProvider(t *testing.T) {
	repo := newFakeRepo()
	service := newTestService(repo, routesFor())

	_, err := service.InitializePayment(context.Background(), baseInput())
	assert.ErrorIs(t, err, ErrNoEligibleProvider)

	require.Len(t, repo.intents, 1)
	for _, intent := range repo.intents {
		assert.Equal(t, models.PaymentStatusFailed, intent.Status)
	}
}

func TestInitializePayment_IdempotentReplay(t *testing.T) {
	repo := newFakeRepo()
	alpha := repo.addProvider("alpha")
	stubAlpha := &stubProvider{code: "alpha", createRes: CreateResult{Success: true}}

	service := newTestService(repo, routesFor(
		models.ProviderRoute{ProviderID: alpha.ID, Provider: alpha, CountryCode: "CI", Currency: "XOF", Priority: 1, IsActive: true},
	), stubAlpha)

	input := baseInput()
	input.IdempotencyKey = "replay-key-1"

	first, err := service.InitializePayment(context.Background(), input)
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := service.InitializePayment(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first.PaymentIntentID, second.PaymentIntentID)
	assert.Equal(t, first.OrderReference, second.OrderReference)
	assert.Equal(t, "replay-key-1", second.IdempotencyKey)
	assert.Len(t, repo.orders, 1, "replay must not create a second order")
	assert.Equal(t, 1, stubAlpha.createCalls, "replay must not recharge the provider")
}

func TestRefund(t *testing.T) {
	repo := newFakeRepo()
	alpha := repo.addProvider("alpha")

	order := &models.Order{Reference: "ORD-R", CustomerEmail: "r@example.com", Currency: "XOF", TotalAmount: 5000, Status: models.OrderStatusCompleted}
	require.NoError(t, repo.CreateOrder(order))
	selected := alpha.ID
	intent := &models.PaymentIntent{OrderID: order.ID, Amount: 5000, Currency: "XOF", Status: models.PaymentStatusSucceeded, SelectedProviderID: &selected}
	require.NoError(t, repo.CreateIntent(intent))
	attempt := &models.PaymentAttempt{PaymentIntentID: intent.ID, ProviderID: alpha.ID, TransactionNumber: "TXN-R", Status: models.AttemptStatusSucceeded}
	require.NoError(t, repo.CreateAttempt(attempt))

	stubAlpha := &stubProvider{code: "alpha", refundRes: RefundResult{Success: true}}
	service := newTestService(repo, routesFor(), stubAlpha)

	res, err := service.Refund(context.Background(), intent.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, models.PaymentStatusRefunded, repo.intents[intent.ID].Status)
	assert.Equal(t, models.OrderStatusRefunded, repo.orders[order.ID].Status)
}

func TestRefund_NotSucceeded(t *testing.T) {
	repo := newFakeRepo()
	order := &models.Order{Reference: "ORD-R2", Currency: "XOF", TotalAmount: 100}
	require.NoError(t, repo.CreateOrder(order))
	intent := &models.PaymentIntent{OrderID: order.ID, Amount: 100, Currency: "XOF", Status: models.PaymentStatusProcessing}
	require.NoError(t, repo.CreateIntent(intent))

	service := newTestService(repo, routesFor())
	_, err := service.Refund(context.Background(), intent.ID)
	assert.ErrorIs(t, err, ErrRefundNotAllowed)
}

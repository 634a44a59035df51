package payment

import (
	"time"

	"github.com/aggpay/aggpay/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReconcileTx is the narrow transactional surface handed to a reconcile
// callback. Every mutation made through it commits or rolls back as one unit.
type ReconcileTx interface {
	UpdateAttempt(id uint, updates map[string]any) error
	UpdateIntent(id uint, updates map[string]any) error
	UpdateOrder(id uint, updates map[string]any) error
	SaveEvent(event *models.WebhookEvent) error
}

// ReconcileFunc applies one webhook-driven state transition. The attempt row
// is locked for the duration of the callback, so concurrent deliveries for
// the same transaction number serialize here.
type ReconcileFunc func(tx ReconcileTx, attempt *models.PaymentAttempt, intent *models.PaymentIntent, order *models.Order) error

// Repository provides the DB operations used by the payment services.
type Repository interface {
	CreateOrder(order *models.Order) error
	GetOrderByID(id uint) (*models.Order, error)

	CreateIntent(intent *models.PaymentIntent) error
	FindIntentByIdempotencyKey(key string) (*models.PaymentIntent, error)
	GetIntentByID(id uint) (*models.PaymentIntent, error)
	UpdateIntentStatus(id uint, status string, selectedProviderID *uint) error

	CreateAttempt(attempt *models.PaymentAttempt) error
	UpdateAttemptStatus(id uint, status string) error
	MarkAttemptFailed(id uint, errorCode, errorMessage, responsePayload string) error
	SelectAttempt(attemptID uint, responsePayload string, intentID, providerID uint) error
	FindAttemptByTransactionNumber(transactionNumber string) (*models.PaymentAttempt, error)
	SetAttemptProviderReference(id uint, reference string) error
	FindRecentAttemptsByProvider(providerID uint, since time.Time, limit int) ([]models.PaymentAttempt, error)

	FindProviderByCode(code string) (*models.PaymentProvider, error)

	CreateWebhookEvent(event *models.WebhookEvent) error
	SaveWebhookEvent(event *models.WebhookEvent) error
	ReconcileAttempt(transactionNumber string, fn ReconcileFunc) (bool, error)

	MarkIntentRefunded(intentID, orderID uint) error

	CreateInstallmentPlan(plan *models.InstallmentPlan, payments []models.InstallmentPayment) error
	DueInstallments(before time.Time) ([]models.InstallmentPayment, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateOrder(order *models.Order) error {
	return r.db.Create(order).Error
}

func (r *gormRepository) GetOrderByID(id uint) (*models.Order, error) {
	var order models.Order
	if err := r.db.First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormRepository) CreateIntent(intent *models.PaymentIntent) error {
	return r.db.Create(intent).Error
}

func (r *gormRepository) FindIntentByIdempotencyKey(key string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.Preload("Order").Where("idempotency_key = ?", key).First(&intent).Error
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *gormRepository) GetIntentByID(id uint) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.
		Preload("Order").
		Preload("Attempts", func(db *gorm.DB) *gorm.DB { return db.Order("payment_attempts.created_at ASC") }).
		Preload("Attempts.Provider").
		First(&intent, id).Error
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *gormRepository) UpdateIntentStatus(id uint, status string, selectedProviderID *uint) error {
	updates := map[string]any{"status": status}
	if selectedProviderID != nil {
		updates["selected_provider_id"] = *selectedProviderID
	}
	return r.db.Model(&models.PaymentIntent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) CreateAttempt(attempt *models.PaymentAttempt) error {
	return r.db.Create(attempt).Error
}

func (r *gormRepository) UpdateAttemptStatus(id uint, status string) error {
	return r.db.Model(&models.PaymentAttempt{}).Where("id = ?", id).Update("status", status).Error
}

func (r *gormRepository) MarkAttemptFailed(id uint, errorCode, errorMessage, responsePayload string) error {
	return r.db.Model(&models.PaymentAttempt{}).Where("id = ?", id).Updates(map[string]any{
		"status":           models.AttemptStatusFailed,
		"error_code":       errorCode,
		"error_message":    errorMessage,
		"response_payload": responsePayload,
	}).Error
}

// SelectAttempt records a successful charge in one transaction: the attempt
// keeps its provider response and both attempt and intent move to succeeded,
// with the intent recording which provider won the fallback chain. A later
// webhook for the same transaction is absorbed as a replay.
func (r *gormRepository) SelectAttempt(attemptID uint, responsePayload string, intentID, providerID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PaymentAttempt{}).Where("id = ?", attemptID).Updates(map[string]any{
			"status":           models.AttemptStatusSucceeded,
			"response_payload": responsePayload,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&models.PaymentIntent{}).Where("id = ?", intentID).Updates(map[string]any{
			"status":               models.PaymentStatusSucceeded,
			"selected_provider_id": providerID,
		}).Error
	})
}

func (r *gormRepository) FindAttemptByTransactionNumber(transactionNumber string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := r.db.
		Preload("Provider").
		Preload("PaymentIntent").
		Preload("PaymentIntent.Order").
		Where("transaction_number = ? OR (provider_reference <> '' AND provider_reference = ?)", transactionNumber, transactionNumber).
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// SetAttemptProviderReference stores the provider-side transaction id on an
// attempt so later notifications carrying only that id correlate directly.
func (r *gormRepository) SetAttemptProviderReference(id uint, reference string) error {
	return r.db.Model(&models.PaymentAttempt{}).Where("id = ?", id).Update("provider_reference", reference).Error
}

func (r *gormRepository) FindRecentAttemptsByProvider(providerID uint, since time.Time, limit int) ([]models.PaymentAttempt, error) {
	var attempts []models.PaymentAttempt
	err := r.db.
		Preload("PaymentIntent").
		Preload("PaymentIntent.Order").
		Where("provider_id = ? AND created_at >= ?", providerID, since).
		Order("created_at DESC").
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

func (r *gormRepository) FindProviderByCode(code string) (*models.PaymentProvider, error) {
	var provider models.PaymentProvider
	if err := r.db.Where("code = ?", code).First(&provider).Error; err != nil {
		return nil, err
	}
	return &provider, nil
}

func (r *gormRepository) CreateWebhookEvent(event *models.WebhookEvent) error {
	return r.db.Create(event).Error
}

func (r *gormRepository) SaveWebhookEvent(event *models.WebhookEvent) error {
	return r.db.Save(event).Error
}

// ReconcileAttempt locks the attempt row for the given transaction number and
// runs fn inside one transaction. Returns false without calling fn when no
// attempt matches.
func (r *gormRepository) ReconcileAttempt(transactionNumber string, fn ReconcileFunc) (bool, error) {
	found := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var attempt models.PaymentAttempt
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("transaction_number = ? OR (provider_reference <> '' AND provider_reference = ?)", transactionNumber, transactionNumber).
			First(&attempt).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return err
		}
		found = true

		var intent models.PaymentIntent
		if err := tx.First(&intent, attempt.PaymentIntentID).Error; err != nil {
			return err
		}
		var order models.Order
		if err := tx.First(&order, intent.OrderID).Error; err != nil {
			return err
		}

		return fn(&gormReconcileTx{tx: tx}, &attempt, &intent, &order)
	})
	return found, err
}

type gormReconcileTx struct {
	tx *gorm.DB
}

func (t *gormReconcileTx) UpdateAttempt(id uint, updates map[string]any) error {
	return t.tx.Model(&models.PaymentAttempt{}).Where("id = ?", id).Updates(updates).Error
}

func (t *gormReconcileTx) UpdateIntent(id uint, updates map[string]any) error {
	return t.tx.Model(&models.PaymentIntent{}).Where("id = ?", id).Updates(updates).Error
}

func (t *gormReconcileTx) UpdateOrder(id uint, updates map[string]any) error {
	return t.tx.Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}

func (t *gormReconcileTx) SaveEvent(event *models.WebhookEvent) error {
	return t.tx.Save(event).Error
}

// MarkIntentRefunded flips the intent and its order to refunded atomically.
func (r *gormRepository) MarkIntentRefunded(intentID, orderID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PaymentIntent{}).Where("id = ?", intentID).
			Update("status", models.PaymentStatusRefunded).Error; err != nil {
			return err
		}
		return tx.Model(&models.Order{}).Where("id = ?", orderID).
			Update("status", models.OrderStatusRefunded).Error
	})
}

// CreateInstallmentPlan persists the plan and its full schedule in one
// transaction.
func (r *gormRepository) CreateInstallmentPlan(plan *models.InstallmentPlan, payments []models.InstallmentPayment) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(plan).Error; err != nil {
			return err
		}
		for i := range payments {
			payments[i].PlanID = plan.ID
		}
		return tx.Create(&payments).Error
	})
}

func (r *gormRepository) DueInstallments(before time.Time) ([]models.InstallmentPayment, error) {
	var payments []models.InstallmentPayment
	err := r.db.
		Preload("Plan").
		Preload("Plan.Order").
		Where("due_date <= ? AND status = ?", before, models.InstallmentPaymentStatusPending).
		Order("due_date ASC").
		Find(&payments).Error
	return payments, err
}

package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	AttemptStatusPending    = "pending"
	AttemptStatusProcessing = "processing"
	AttemptStatusSucceeded  = "succeeded"
	AttemptStatusFailed     = "failed"
	AttemptStatusCanceled   = "canceled"
)

// PaymentAttempt is one concrete try against one provider for one intent.
// Rows are append-only: they are created before the external provider call so
// a crash mid-call leaves an auditable orphan rather than a silent charge,
// and they are never deleted afterwards.
//
// TransactionNumber is the sole handle external notifications correlate on;
// it is unique per provider.
type PaymentAttempt struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	PaymentIntentID   uint             `gorm:"not null;index" json:"payment_intent_id"`
	PaymentIntent     *PaymentIntent   `gorm:"foreignKey:PaymentIntentID" json:"payment_intent,omitempty"`
	ProviderID        uint             `gorm:"not null;index:ux_payment_attempts_provider_txn,unique,priority:1" json:"provider_id"`
	Provider          *PaymentProvider `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`
	TransactionNumber string           `gorm:"type:varchar(255);not null;index:ux_payment_attempts_provider_txn,unique,priority:2;index" json:"transaction_number"`
	ProviderReference string           `gorm:"type:varchar(255);not null;default:'';index" json:"provider_reference"`
	Status            string           `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	RequestPayload    string           `gorm:"type:longtext" json:"request_payload"`
	ResponsePayload   string           `gorm:"type:longtext" json:"response_payload"`
	ErrorCode         string           `gorm:"type:varchar(100)" json:"error_code"`
	ErrorMessage      string           `gorm:"type:text" json:"error_message"`
	CreatedAt         time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the attempt reached an absorbing state.
func (a *PaymentAttempt) IsTerminal() bool {
	switch a.Status {
	case AttemptStatusSucceeded, AttemptStatusFailed, AttemptStatusCanceled:
		return true
	}
	return false
}

// NewTransactionNumber generates the internal correlation number handed to
// providers on every outbound charge.
func NewTransactionNumber() string {
	ts := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:9])
	return "TXN-" + ts + "-" + suffix
}

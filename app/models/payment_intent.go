package models

import "time"

const (
	PaymentStatusCreated        = "created"
	PaymentStatusProcessing     = "processing"
	PaymentStatusRequiresAction = "requires_action"
	PaymentStatusSucceeded      = "succeeded"
	PaymentStatusCanceled       = "canceled"
	PaymentStatusFailed         = "failed"
	PaymentStatusRefunded       = "refunded"
)

// PaymentIntent is one purchase's payment lifecycle record, independent of
// which provider ultimately fulfills it. Amount and currency are fixed at
// creation; SelectedProviderID is set exactly once, on success.
//
// The idempotency key is checked at application level before insert. It is
// intentionally not a DB unique index: the original schema ran into the MySQL
// per-table key limit and the lookup-before-insert contract covers it.
type PaymentIntent struct {
	ID                 uint             `gorm:"primaryKey" json:"id"`
	OrderID            uint             `gorm:"not null;index" json:"order_id"`
	Order              *Order           `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	Amount             int64            `gorm:"not null" json:"amount"`
	Currency           string           `gorm:"type:varchar(10);not null" json:"currency"`
	Status             string           `gorm:"type:varchar(20);not null;default:'created';index" json:"status"`
	IdempotencyKey     string           `gorm:"type:varchar(255);index" json:"idempotency_key"`
	SelectedProviderID *uint            `gorm:"default:null" json:"selected_provider_id,omitempty"`
	MetadataJSON       string           `gorm:"type:longtext" json:"metadata_json"`
	Attempts           []PaymentAttempt `gorm:"foreignKey:PaymentIntentID" json:"attempts,omitempty"`
	CreatedAt          time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the intent reached a state that no further
// attempt or webhook may change.
func (p *PaymentIntent) IsTerminal() bool {
	switch p.Status {
	case PaymentStatusSucceeded, PaymentStatusCanceled, PaymentStatusRefunded:
		return true
	}
	return false
}

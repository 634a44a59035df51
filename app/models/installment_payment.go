package models

import "time"

const (
	InstallmentPaymentStatusPending = "pending"
	InstallmentPaymentStatusPaid    = "paid"
	InstallmentPaymentStatusFailed  = "failed"
	InstallmentPaymentStatusWaived  = "waived"
)

// InstallmentPayment is one scheduled slice of an installment plan. It links
// to the PaymentIntent that settles it once that intent exists.
type InstallmentPayment struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	PlanID            uint             `gorm:"not null;index" json:"plan_id"`
	Plan              *InstallmentPlan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	PaymentIntentID   *uint            `gorm:"default:null" json:"payment_intent_id,omitempty"`
	InstallmentNumber int              `gorm:"not null" json:"installment_number"`
	Amount            int64            `gorm:"not null" json:"amount"`
	DueDate           time.Time        `gorm:"not null;index" json:"due_date"`
	Status            string           `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaidAt            *time.Time       `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt         time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

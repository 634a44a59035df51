package models

import "time"

const (
	InstallmentPlanStatusActive    = "active"
	InstallmentPlanStatusCompleted = "completed"
	InstallmentPlanStatusCanceled  = "canceled"
	InstallmentPlanStatusFailed    = "failed"
)

// InstallmentPlan splits an order total into a fixed schedule of payments.
type InstallmentPlan struct {
	ID                   uint                 `gorm:"primaryKey" json:"id"`
	OrderID              uint                 `gorm:"not null;index" json:"order_id"`
	Order                *Order               `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	TotalAmount          int64                `gorm:"not null" json:"total_amount"`
	Currency             string               `gorm:"type:varchar(10);not null" json:"currency"`
	NumberOfInstallments int                  `gorm:"not null" json:"number_of_installments"`
	IntervalDays         int                  `gorm:"not null;default:30" json:"interval_days"`
	Status               string               `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	Payments             []InstallmentPayment `gorm:"foreignKey:PlanID" json:"payments,omitempty"`
	CreatedAt            time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

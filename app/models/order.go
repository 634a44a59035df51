package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusFailed     = "failed"
	OrderStatusRefunded   = "refunded"
)

// Order is one purchase with its monetary total. The reference is the
// human-readable handle exposed to customers; payment state lives on the
// PaymentIntent rows attached to the order.
type Order struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Reference     string          `gorm:"type:varchar(100);not null;uniqueIndex" json:"reference"`
	CustomerEmail string          `gorm:"type:varchar(255);not null;index" json:"customer_email"`
	CustomerName  string          `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerPhone string          `gorm:"type:varchar(50)" json:"customer_phone"`
	Currency      string          `gorm:"type:varchar(10);not null" json:"currency"`
	TotalAmount   int64           `gorm:"not null" json:"total_amount"`
	Status        string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	MetadataJSON  string          `gorm:"type:longtext" json:"metadata_json"`
	Intents       []PaymentIntent `gorm:"foreignKey:OrderID" json:"intents,omitempty"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewOrderReference builds a globally unique human-readable order reference.
func NewOrderReference() string {
	ts := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "ORD-" + ts + "-" + suffix
}

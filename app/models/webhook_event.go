package models

import "time"

// WebhookEvent is the immutable log of one inbound provider notification.
// A row is written for every delivery before any correlation is attempted, so
// no notification is ever lost; Processed flips to true only inside the same
// transaction that applies the resulting state transition.
type WebhookEvent struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ProviderCode   string     `gorm:"type:varchar(50);not null;index" json:"provider_code"`
	ProviderID     *uint      `gorm:"default:null" json:"provider_id,omitempty"`
	EventType      string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Payload        string     `gorm:"type:longtext;not null" json:"payload"`
	SignatureValid bool       `gorm:"default:false;index" json:"signature_valid"`
	Processed      bool       `gorm:"default:false;index" json:"processed"`
	ProcessedAt    *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ErrorMessage   string     `gorm:"type:text" json:"error_message"`
	RetryCount     int        `gorm:"default:0" json:"retry_count"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const apiKeyPrefix = "sk_"

// ApiClient is a caller allowed to initialize payments. Only the SHA-256 hash
// of the issued key is stored; the raw secret is shown exactly once.
type ApiClient struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Owner            string     `gorm:"type:varchar(255);not null" json:"owner"`
	KeyHash          string     `gorm:"type:char(64);not null;uniqueIndex" json:"-"`
	KeyPrefix        string     `gorm:"type:varchar(20);default:''" json:"key_prefix"`
	IsActive         bool       `gorm:"default:true;index" json:"is_active"`
	KeyLastUsedAt    *time.Time `json:"key_last_used_at,omitempty"`
	KeyRevokedAt     *time.Time `json:"key_revoked_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IssueKey generates a new API key, stores its hash and prefix on the struct,
// and returns the raw secret. Callers must persist the struct afterwards.
func (c *ApiClient) IssueKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	rawKey := apiKeyPrefix + hex.EncodeToString(b)
	if len(rawKey) < 12 {
		return "", fmt.Errorf("api key generation failed: key too short")
	}
	c.KeyHash = HashAPIKey(rawKey)
	c.KeyPrefix = rawKey[:16]
	c.KeyRevokedAt = nil
	c.KeyLastUsedAt = nil
	return rawKey, nil
}

// Revoke clears the key material without deleting the record.
func (c *ApiClient) Revoke() {
	now := time.Now()
	c.IsActive = false
	c.KeyRevokedAt = &now
}

// HasActiveKey reports whether the client can authenticate.
func (c *ApiClient) HasActiveKey() bool {
	return c != nil && c.IsActive && c.KeyHash != "" && c.KeyRevokedAt == nil
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

package repository

import (
	"strings"
	"time"

	"github.com/aggpay/aggpay/app/models"
	"gorm.io/gorm"
)

// apiClientRepository implements the ApiClientRepository interface
type apiClientRepository struct {
	db *gorm.DB
}

// NewApiClientRepository creates a new API client repository instance
func NewApiClientRepository(db *gorm.DB) ApiClientRepository {
	return &apiClientRepository{db: db}
}

// Create creates a new API client record
func (r *apiClientRepository) Create(client *models.ApiClient) error {
	return r.db.Create(client).Error
}

// GetByID retrieves an API client by its ID
func (r *apiClientRepository) GetByID(id uint) (*models.ApiClient, error) {
	var client models.ApiClient
	err := r.db.First(&client, id).Error
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// GetByKeyHash resolves an API key hash to its client record
func (r *apiClientRepository) GetByKeyHash(hash string) (*models.ApiClient, error) {
	trimmed := strings.TrimSpace(hash)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var client models.ApiClient
	err := r.db.Where("key_hash = ?", trimmed).First(&client).Error
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// Update persists changes to an API client record
func (r *apiClientRepository) Update(client *models.ApiClient) error {
	return r.db.Save(client).Error
}

// TouchLastUsed stamps the key's last-used time. Best effort; callers ignore
// the error on the hot path.
func (r *apiClientRepository) TouchLastUsed(id uint, at time.Time) error {
	return r.db.Model(&models.ApiClient{}).Where("id = ?", id).
		Update("key_last_used_at", at).Error
}

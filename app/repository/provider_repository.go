package repository

import (
	"github.com/aggpay/aggpay/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// providerRepository implements the ProviderRepository interface
type providerRepository struct {
	db *gorm.DB
}

// NewProviderRepository creates a new provider repository instance
func NewProviderRepository(db *gorm.DB) ProviderRepository {
	return &providerRepository{db: db}
}

// Create creates a new provider catalog entry
func (r *providerRepository) Create(provider *models.PaymentProvider) error {
	return r.db.Create(provider).Error
}

// GetByID retrieves a provider by its ID
func (r *providerRepository) GetByID(id uint) (*models.PaymentProvider, error) {
	var provider models.PaymentProvider
	err := r.db.First(&provider, id).Error
	if err != nil {
		return nil, err
	}
	return &provider, nil
}

// GetByCode retrieves a provider by its catalog code
func (r *providerRepository) GetByCode(code string) (*models.PaymentProvider, error) {
	var provider models.PaymentProvider
	err := r.db.Where("code = ?", code).First(&provider).Error
	if err != nil {
		return nil, err
	}
	return &provider, nil
}

// GetActive retrieves all active providers
func (r *providerRepository) GetActive() ([]models.PaymentProvider, error) {
	var providers []models.PaymentProvider
	err := r.db.Where("is_active = ?", true).Order("code ASC").Find(&providers).Error
	return providers, err
}

// Update persists changes to a provider catalog entry
func (r *providerRepository) Update(provider *models.PaymentProvider) error {
	return r.db.Save(provider).Error
}

// CreateRoute creates a new eligibility route
func (r *providerRepository) CreateRoute(route *models.ProviderRoute) error {
	return r.db.Create(route).Error
}

// GetActiveRoutes retrieves active routes for a country and currency with
// their providers preloaded, ordered by ascending priority.
func (r *providerRepository) GetActiveRoutes(countryCode, currency string) ([]models.ProviderRoute, error) {
	var routes []models.ProviderRoute
	err := r.db.
		Preload("Provider").
		Where("country_code = ? AND currency = ? AND is_active = ?", countryCode, currency, true).
		Order("priority ASC, id ASC").
		Find(&routes).Error
	return routes, err
}

// UpsertRoute inserts a route or updates the existing row for the same
// provider, country and currency. Used by seeding.
func (r *providerRepository) UpsertRoute(route *models.ProviderRoute) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider_id"}, {Name: "country_code"}, {Name: "currency"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"min_amount", "max_amount", "priority", "is_active"}),
	}).Create(route).Error
}

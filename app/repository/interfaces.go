package repository

import (
	"time"

	"github.com/aggpay/aggpay/app/models"
	"gorm.io/gorm"
)

// ProviderRepository defines the interface for provider catalog operations
type ProviderRepository interface {
	Create(provider *models.PaymentProvider) error
	GetByID(id uint) (*models.PaymentProvider, error)
	GetByCode(code string) (*models.PaymentProvider, error)
	GetActive() ([]models.PaymentProvider, error)
	Update(provider *models.PaymentProvider) error
	CreateRoute(route *models.ProviderRoute) error
	GetActiveRoutes(countryCode, currency string) ([]models.ProviderRoute, error)
	UpsertRoute(route *models.ProviderRoute) error
}

// ApiClientRepository defines the interface for API client key operations
type ApiClientRepository interface {
	Create(client *models.ApiClient) error
	GetByID(id uint) (*models.ApiClient, error)
	GetByKeyHash(hash string) (*models.ApiClient, error)
	Update(client *models.ApiClient) error
	TouchLastUsed(id uint, at time.Time) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Provider  ProviderRepository
	ApiClient ApiClientRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Provider:  NewProviderRepository(db),
		ApiClient: NewApiClientRepository(db),
	}
}

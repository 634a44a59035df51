package main

import (
	"log"

	"github.com/aggpay/aggpay/app/models"
	"github.com/aggpay/aggpay/app/repository"
	"github.com/aggpay/aggpay/internal/pkg/database"
	"github.com/aggpay/aggpay/internal/pkg/env"
	"gorm.io/gorm"
)

// Seeds the provider catalog, the default routing table and one development
// API client. Safe to run repeatedly.
func main() {
	env.SetupEnvFile()
	database.SetupDatabase()
	repository.InitializeFactory(database.GetDB())

	repos := repository.GetGlobalRepositories()

	providers := []models.PaymentProvider{
		{Code: models.ProviderCodeStripe, Name: "Stripe", IsActive: true, SupportCard: true, SupportMobileMoney: false},
		{Code: models.ProviderCodeCinetPay, Name: "CinetPay", IsActive: true, SupportCard: true, SupportMobileMoney: true},
		{Code: models.ProviderCodeKKiaPay, Name: "KKiaPay", IsActive: true, SupportCard: true, SupportMobileMoney: true},
	}

	ids := map[string]uint{}
	for i := range providers {
		p := &providers[i]
		existing, err := repos.Provider.GetByCode(p.Code)
		switch {
		case err == nil:
			ids[p.Code] = existing.ID
			continue
		case err != gorm.ErrRecordNotFound:
			log.Fatalf("Failed to look up provider %s: %v", p.Code, err)
		}
		if err := repos.Provider.Create(p); err != nil {
			log.Fatalf("Failed to create provider %s: %v", p.Code, err)
		}
		ids[p.Code] = p.ID
		log.Printf("Created provider %s (id %d)", p.Code, p.ID)
	}

	routes := []models.ProviderRoute{
		// CinetPay covers francophone West and Central Africa first.
		{ProviderID: ids[models.ProviderCodeCinetPay], CountryCode: "CI", Currency: "XOF", MinAmount: 100, Priority: 1, IsActive: true},
		{ProviderID: ids[models.ProviderCodeCinetPay], CountryCode: "SN", Currency: "XOF", MinAmount: 100, Priority: 1, IsActive: true},
		{ProviderID: ids[models.ProviderCodeCinetPay], CountryCode: "CM", Currency: "XAF", MinAmount: 100, Priority: 1, IsActive: true},
		{ProviderID: ids[models.ProviderCodeCinetPay], CountryCode: "GN", Currency: "GNF", MinAmount: 1000, Priority: 1, IsActive: true},
		// KKiaPay leads in Benin, CinetPay as fallback.
		{ProviderID: ids[models.ProviderCodeKKiaPay], CountryCode: "BJ", Currency: "XOF", MinAmount: 100, Priority: 1, IsActive: true},
		{ProviderID: ids[models.ProviderCodeCinetPay], CountryCode: "BJ", Currency: "XOF", MinAmount: 100, Priority: 2, IsActive: true},
		// Stripe catches card payments everywhere else.
		{ProviderID: ids[models.ProviderCodeStripe], CountryCode: models.RouteCountryWildcard, Currency: "EUR", MinAmount: 50, Priority: 10, IsActive: true},
		{ProviderID: ids[models.ProviderCodeStripe], CountryCode: models.RouteCountryWildcard, Currency: "USD", MinAmount: 50, Priority: 10, IsActive: true},
	}

	for i := range routes {
		route := routes[i]
		if err := repos.Provider.UpsertRoute(&route); err != nil {
			log.Fatalf("Failed to upsert route %s/%s: %v", route.CountryCode, route.Currency, err)
		}
	}
	log.Printf("Seeded %d routes", len(routes))

	if env.IsDev() {
		seedDevClient(repos.ApiClient)
	}
}

func seedDevClient(clients repository.ApiClientRepository) {
	client := &models.ApiClient{Owner: "dev", IsActive: true}
	rawKey, err := client.IssueKey()
	if err != nil {
		log.Fatalf("Failed to issue dev API key: %v", err)
	}
	if err := clients.Create(client); err != nil {
		log.Printf("Dev API client already exists, skipping")
		return
	}
	// Printed once; only the hash is stored.
	log.Printf("Dev API key: %s", rawKey)
}

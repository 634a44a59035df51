package models

import "time"

// Provider codes known to the adapter factory.
const (
	ProviderCodeStripe   = "stripe"
	ProviderCodeCinetPay = "cinetpay"
	ProviderCodeKKiaPay  = "kkiapay"
	ProviderCodeMock     = "mock"
)

const (
	PaymentMethodCard        = "card"
	PaymentMethodMobileMoney = "mobile_money"
)

// PaymentProvider is a static catalog entry for one external payment
// provider. Read-mostly; credentials themselves live in the environment, the
// CredentialRef only names which credential set an adapter should load.
type PaymentProvider struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Code               string    `gorm:"type:varchar(50);not null;uniqueIndex" json:"code"`
	Name               string    `gorm:"type:varchar(100);not null" json:"name"`
	IsActive           bool      `gorm:"default:true;index" json:"is_active"`
	SupportCard        bool      `gorm:"default:false" json:"support_card"`
	SupportMobileMoney bool      `gorm:"default:true" json:"support_mobile_money"`
	APIEndpoint        string    `gorm:"type:varchar(500)" json:"api_endpoint"`
	CredentialRef      string    `gorm:"type:varchar(100)" json:"credential_ref"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// SupportsMethod reports whether the provider can process the given payment
// method.
func (p *PaymentProvider) SupportsMethod(method string) bool {
	switch method {
	case PaymentMethodCard:
		return p.SupportCard
	case PaymentMethodMobileMoney:
		return p.SupportMobileMoney
	}
	return false
}

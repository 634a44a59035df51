package models

import "time"

// RouteCountryWildcard matches any country when no country-specific route
// applies.
const RouteCountryWildcard = "*"

// ProviderRoute is one eligibility rule mapping (country, currency, amount
// range) to a provider, with a priority for ordering. Lower priority values
// are tried first. MaxAmount nil means unbounded.
type ProviderRoute struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	ProviderID  uint             `gorm:"not null;index;index:ux_provider_routes_scope,unique,priority:1" json:"provider_id"`
	Provider    *PaymentProvider `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`
	CountryCode string           `gorm:"type:varchar(10);not null;index:idx_provider_routes_country_currency,priority:1;index:ux_provider_routes_scope,unique,priority:2" json:"country_code"`
	Currency    string           `gorm:"type:varchar(10);not null;index:idx_provider_routes_country_currency,priority:2;index:ux_provider_routes_scope,unique,priority:3" json:"currency"`
	MinAmount   int64            `gorm:"not null;default:0" json:"min_amount"`
	MaxAmount   *int64           `gorm:"default:null" json:"max_amount,omitempty"`
	Priority    int              `gorm:"not null;default:0" json:"priority"`
	IsActive    bool             `gorm:"default:true;index" json:"is_active"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// Matches reports whether the route covers the given amount.
func (r *ProviderRoute) Matches(amount int64) bool {
	if amount < r.MinAmount {
		return false
	}
	if r.MaxAmount != nil && amount > *r.MaxAmount {
		return false
	}
	return true
}

package payment

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/aggpay/aggpay/app/models"
	"github.com/aggpay/aggpay/internal/pkg/cache"
	"github.com/gofiber/fiber/v2/log"
)

// routeCacheTTL is short on purpose: route changes in the admin catalog must
// take effect quickly, the cache only absorbs request bursts.
const routeCacheTTL = 60 * time.Second

// RouteSource loads candidate routes from the provider catalog.
type RouteSource interface {
	GetActiveRoutes(countryCode, currency string) ([]models.ProviderRoute, error)
}

// Resolver turns (country, currency, method, amount) into an ordered list of
// eligible providers. Country-specific routes win; the wildcard country is
// consulted only when no country-specific route matches at all.
type Resolver struct {
	routes   RouteSource
	useCache bool
}

// NewResolver creates a resolver on top of the given route source. When
// useCache is set, resolved candidate lists are kept in the cache for a short
// TTL.
func NewResolver(routes RouteSource, useCache bool) *Resolver {
	return &Resolver{routes: routes, useCache: useCache}
}

// Resolve returns the eligible routes ordered by ascending priority, provider
// preloaded. An empty slice means no provider can serve the request.
func (r *Resolver) Resolve(countryCode, currency, method string, amount int64) ([]models.ProviderRoute, error) {
	cacheKey := fmt.Sprintf("routes:v1:%s:%s:%s:%d", countryCode, currency, method, amount)
	if r.useCache {
		if cached, err := cache.Get(cacheKey); err == nil {
			var routes []models.ProviderRoute
			if err := json.Unmarshal([]byte(cached), &routes); err == nil {
				return routes, nil
			}
		}
	}

	// The wildcard is a fallback for countries with no usable route of their
	// own, decided before the capability filter: a country whose routes only
	// lack the requested method yields nothing rather than widening to
	// wildcard providers.
	candidates, err := r.resolveCountry(countryCode, currency, amount)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 && countryCode != models.RouteCountryWildcard {
		candidates, err = r.resolveCountry(models.RouteCountryWildcard, currency, amount)
		if err != nil {
			return nil, err
		}
	}
	candidates = filterByMethod(candidates, method)

	if r.useCache {
		if data, err := json.Marshal(candidates); err == nil {
			if err := cache.Set(cacheKey, data, routeCacheTTL); err != nil {
				log.Warnf("route cache write failed: %v", err)
			}
		}
	}
	return candidates, nil
}

func (r *Resolver) resolveCountry(countryCode, currency string, amount int64) ([]models.ProviderRoute, error) {
	routes, err := r.routes.GetActiveRoutes(countryCode, currency)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.ProviderRoute, 0, len(routes))
	for _, route := range routes {
		if !route.Matches(amount) {
			continue
		}
		if route.Provider == nil || !route.Provider.IsActive {
			continue
		}
		candidates = append(candidates, route)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority < candidates[j].Priority
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates, nil
}

func filterByMethod(routes []models.ProviderRoute, method string) []models.ProviderRoute {
	filtered := routes[:0]
	for _, route := range routes {
		if route.Provider.SupportsMethod(method) {
			filtered = append(filtered, route)
		}
	}
	return filtered
}

package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aggpay/aggpay/app/models"
)

func activeProvider(id uint, code string, card, mobileMoney bool) *models.PaymentProvider {
	return &models.PaymentProvider{ID: id, Code: code, Name: code, IsActive: true, SupportCard: card, SupportMobileMoney: mobileMoney}
}

func resolverCodes(routes []models.ProviderRoute) []string {
	codes := make([]string, 0, len(routes))
	for _, route := range routes {
		codes = append(codes, route.Provider.Code)
	}
	return codes
}

func TestResolve_PriorityOrdering(t *testing.T) {
	low := activeProvider(1, "low-prio", false, true)
	high := activeProvider(2, "high-prio", false, true)

	resolver := NewResolver(routesFor(
		models.ProviderRoute{ID: 1, ProviderID: low.ID, Provider: low, CountryCode: "CI", Currency: "XOF", Priority: 5, IsActive: true},
		models.ProviderRoute{ID: 2, ProviderID: high.ID, Provider: high, CountryCode: "CI", Currency: "XOF", Priority: 1, IsActive: true},
	), false)

	candidates, err := resolver.Resolve("CI", "XOF", models.PaymentMethodMobileMoney, 5000)
	require.NoError(t, err)
	assert.Equal(t, []string{"high-prio", "low-prio"}, resolverCodes(candidates))
}

func TestResolve_TiesBreakOnRouteID(t *testing.T) {
	a := activeProvider(1, "first", false, true)
	b := activeProvider(2, "second", false, true)

	resolver := NewResolver(routesFor(
		models.ProviderRoute{ID: 9, ProviderID: b.ID, Provider: b, CountryCode: "CI", Currency: "XOF", Priority: 1, IsActive: true},
		models.ProviderRoute{ID: 3, ProviderID: a.ID, Provider: a, CountryCode: "CI", Currency: "XOF", Priority: 1, IsActive: true},
	), false)

	candidates, err := resolver.Resolve("CI", "XOF", models.PaymentMethodMobileMoney, 5000)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, resolverCodes(candidates))
}

func TestResolve_MethodCapabilityFilter(t *testing.T) {
	cardOnly := activeProvider(1, "card-only", true, false)
	momoOnly := activeProvider(2, "momo-only", false, true)

	resolver := NewResolver(routesFor(
		models.ProviderRoute{ID: 1, ProviderID: cardOnly.ID, Provider: cardOnly, CountryCode: "CI", Currency: "XOF", Priority: 1, IsActive: true},
		models.ProviderRoute{ID: 2, ProviderID: momoOnly.ID, Provider: momoOnly, CountryCode: "CI", Currency: "XOF", Priority: 2, IsActive: true},
	), false)

	cards, err := resolver.Resolve("CI", "XOF", models.PaymentMethodCard, 5000)
	require.NoError(t, err)
	assert.Equal(t, []string{"card-only"}, resolverCodes(cards))

	momo, err := resolver.Resolve("CI", "XOF", models.PaymentMethodMobileMoney, 5000)
	require.NoError(t, err)
	assert.Equal(t, []string{"momo-only"}, resolverCodes(momo))
}

func TestResolve_AmountWindow(t *testing.T) {
	capped := activeProvider(1, "capped", false, true)
	floor := activeProvider(2, "floor", false, true)

	max := int64(10000)
	resolver := NewResolver(routesFor(
		models.ProviderRoute{ID: 1, ProviderID: capped.ID, Provider: capped, CountryCode: "CI", Currency: "XOF", MaxAmount: &max, Priority: 1, IsActive: true},
		models.ProviderRoute{ID: 2, ProviderID: floor.ID, Provider: floor, CountryCode: "CI", Currency: "XOF", MinAmount: 1000, Priority: 2, IsActive: true},
	), false)

	small, err := resolver.Resolve("CI", "XOF", models.PaymentMethodMobileMoney, 500)
	require.NoError(t, err)
	assert.Equal(t, []string{"capped"}, resolverCodes(small), "below the floor route's minimum")

	large, err := resolver.Resolve("CI", "XOF", models.PaymentMethodMobileMoney, 20000)
	require.NoError(t, err)
	assert.Equal(t, []string{"floor"}, resolverCodes(large), "above the capped route's maximum")

	boundary, err := resolver.Resolve("CI", "XOF", models.PaymentMethodMobileMoney, 10000)
	require.NoError(t, err)
	assert.Equal(t, []string{"capped", "floor"}, resolverCodes(boundary), "bounds are inclusive")
}

func TestResolve_InactiveProviderSkipped(t *testing.T) {
	dormant := activeProvider(1, "dormant", false, true)
	dormant.IsActive = false
	live := activeProvider(2, "live", false, true)

	resolver := NewResolver(routesFor(
		models.ProviderRoute{ID: 1, ProviderID: dormant.ID, Provider: dormant, CountryCode: "CI", Currency: "XOF", Priority: 1, IsActive: true},
		models.ProviderRoute{ID: 2, ProviderID: live.ID, Provider: live, CountryCode: "CI", Currency: "XOF", Priority: 2, IsActive: true},
	), false)

	candidates, err := resolver.Resolve("CI", "XOF", models.PaymentMethodMobileMoney, 5000)
	require.NoError(t, err)
	assert.Equal(t, []string{"live"}, resolverCodes(candidates))
}

func TestResolve_WildcardFallback(t *testing.T) {
	local := activeProvider(1, "local", false, true)
	global := activeProvider(2, "global", true, true)

	resolver := NewResolver(routesFor(
		models.ProviderRoute{ID: 1, ProviderID: local.ID, Provider: local, CountryCode: "BJ", Currency: "XOF", Priority: 1, IsActive: true},
		models.ProviderRoute{ID: 2, ProviderID: global.ID, Provider: global, CountryCode: models.RouteCountryWildcard, Currency: "XOF", Priority: 10, IsActive: true},
	), false)

	// Country with its own route: the wildcard stays out of the list.
	bj, err := resolver.Resolve("BJ", "XOF", models.PaymentMethodMobileMoney, 5000)
	require.NoError(t, err)
	assert.Equal(t, []string{"local"}, resolverCodes(bj))

	// Country with no route of its own falls through to the wildcard.
	sn, err := resolver.Resolve("SN", "XOF", models.PaymentMethodMobileMoney, 5000)
	require.NoError(t, err)
	assert.Equal(t, []string{"global"}, resolverCodes(sn))
}

func TestResolve_NoMatch(t *testing.T) {
	resolver := NewResolver(routesFor(), false)

	candidates, err := resolver.Resolve("CI", "XOF", models.PaymentMethodMobileMoney, 5000)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestResolve_MethodMismatchDoesNotWidenToWildcard(t *testing.T) {
	cardLocal := activeProvider(1, "card-local", true, false)
	momoGlobal := activeProvider(2, "momo-global", false, true)

	resolver := NewResolver(routesFor(
		models.ProviderRoute{ID: 1, ProviderID: cardLocal.ID, Provider: cardLocal, CountryCode: "CM", Currency: "XAF", Priority: 1, IsActive: true},
		models.ProviderRoute{ID: 2, ProviderID: momoGlobal.ID, Provider: momoGlobal, CountryCode: models.RouteCountryWildcard, Currency: "XAF", Priority: 10, IsActive: true},
	), false)

	// CM has its own route, so the wildcard is never consulted; the method
	// filter emptying the country's list yields no match.
	momo, err := resolver.Resolve("CM", "XAF", models.PaymentMethodMobileMoney, 5000)
	require.NoError(t, err)
	assert.Empty(t, momo)

	cards, err := resolver.Resolve("CM", "XAF", models.PaymentMethodCard, 5000)
	require.NoError(t, err)
	assert.Equal(t, []string{"card-local"}, resolverCodes(cards))
}

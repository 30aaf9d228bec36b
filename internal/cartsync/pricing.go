package cartsync

import "github.com/angelmondragon/grocery-backend/pkg/db/models"

// PriceFor picks the unit price captured when a line is added. Household
// shopping uses the household tier, everyone else the customer tier, and each
// falls back to the base price.
func PriceFor(product models.Product, forHousehold bool) float64 {
	tier := product.CustomerPrice
	if forHousehold {
		tier = product.HouseholdPrice
	}
	if tier != nil {
		return *tier
	}
	return product.BasePrice
}

package helpers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/grocery-backend/pkg/currency"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
)

func line(vendor *uuid.UUID, price, qty float64) models.CartLineItem {
	return models.CartLineItem{ID: uuid.New(), VendorID: vendor, UnitPrice: price, Quantity: qty, Currency: enums.CurrencyILS}
}

func TestSplitTwoVendorsConservesSubtotals(t *testing.T) {
	t.Parallel()
	vendorA, vendorB := uuid.New(), uuid.New()
	items := []models.CartLineItem{
		line(&vendorA, 10, 2),
		line(&vendorB, 4.5, 3),
		line(&vendorA, 1.25, 4),
	}
	opts := SplitOptions{
		TargetCurrency: enums.CurrencyILS,
		Converter:      currency.MustConverter(currency.DefaultILSPerUSD),
		Vendors: map[uuid.UUID]models.Vendor{
			vendorA: {ID: vendorA, DeliveryFee: 5, Currency: enums.CurrencyILS},
			vendorB: {ID: vendorB, DeliveryFee: 0, Currency: enums.CurrencyILS},
		},
	}

	groups, warnings, err := SplitByVendor(items, opts)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, groups, 2)
	assert.Equal(t, vendorA, groups[0].VendorID, "first-seen vendor first")
	assert.Len(t, groups[0].Items, 2)

	var lineSum, groupSum float64
	for _, item := range items {
		lineSum += item.UnitPrice * item.Quantity
	}
	for _, g := range groups {
		groupSum += g.Subtotal
		assert.InDelta(t, g.Subtotal+g.DeliveryFee, g.Total, 1e-9)
	}
	assert.InDelta(t, lineSum, groupSum, 1e-9)
	assert.InDelta(t, 25.0, groups[0].Subtotal, 1e-9)
	assert.InDelta(t, 30.0, groups[0].Total, 1e-9)
}

func TestSplitWorkedExampleInUSD(t *testing.T) {
	t.Parallel()
	vendor := uuid.New()
	opts := SplitOptions{
		TargetCurrency: currency.ForLanguage(enums.LanguageEnglish),
		Converter:      currency.MustConverter(3.24),
		Vendors:        map[uuid.UUID]models.Vendor{vendor: {ID: vendor, DeliveryFee: 5, Currency: enums.CurrencyILS}},
	}

	groups, _, err := SplitByVendor([]models.CartLineItem{line(&vendor, 10, 3)}, opts)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	g := groups[0]
	assert.Equal(t, enums.CurrencyUSD, g.Currency)
	assert.Equal(t, 3.09, currency.Round2(g.Items[0].UnitPrice))
	assert.Equal(t, 1.54, currency.Round2(g.DeliveryFee))
	assert.Equal(t, 10.80, currency.Round2(g.Total))
}

func TestSplitDefaultVendorAndDroppedRows(t *testing.T) {
	t.Parallel()
	fallback := uuid.New()
	orphan := line(nil, 3, 1)

	groups, warnings, err := SplitByVendor([]models.CartLineItem{orphan}, SplitOptions{
		TargetCurrency:  enums.CurrencyILS,
		DefaultVendorID: &fallback,
		Vendors:         map[uuid.UUID]models.Vendor{fallback: {ID: fallback, DeliveryFee: 2}},
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, groups, 1)
	assert.Equal(t, fallback, groups[0].VendorID)
	assert.InDelta(t, 5.0, groups[0].Total, 1e-9)

	groups, warnings, err = SplitByVendor([]models.CartLineItem{orphan}, SplitOptions{TargetCurrency: enums.CurrencyILS})
	require.NoError(t, err)
	assert.Empty(t, groups)
	require.Len(t, warnings, 1)
	assert.Equal(t, orphan.ID, warnings[0].LineID)
}

func TestSplitTargetVendorSelectsOneGroup(t *testing.T) {
	t.Parallel()
	vendorA, vendorB := uuid.New(), uuid.New()
	items := []models.CartLineItem{line(&vendorA, 1, 1), line(&vendorB, 2, 1)}

	groups, warnings, err := SplitByVendor(items, SplitOptions{TargetVendorID: &vendorB, TargetCurrency: enums.CurrencyILS})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, vendorB, groups[0].VendorID)
	require.Len(t, warnings, 1, "unknown vendor yields a fee warning")
}

func TestSplitRejectsUnknownCurrency(t *testing.T) {
	t.Parallel()
	_, _, err := SplitByVendor(nil, SplitOptions{TargetCurrency: "EUR"})
	assert.Error(t, err)
}

func TestValidateDelivery(t *testing.T) {
	t.Parallel()
	blank := "  "
	d := &Delivery{Address: " 1 Herzl St ", City: "Haifa", Notes: &blank}
	require.NoError(t, ValidateDelivery(d))
	assert.Equal(t, "1 Herzl St", d.Address)
	assert.Nil(t, d.Notes)

	err := ValidateDelivery(&Delivery{Address: "x"})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.Error(t, ValidateDelivery(nil))
}

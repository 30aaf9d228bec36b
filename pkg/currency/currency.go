// Package currency converts prices between the base currency (ILS) and USD at
// a fixed, configured rate. Values keep full float precision; rounding is a
// presentation concern handled by Round2.
package currency

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/grocery-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
)

// Base is the currency catalog prices are authored in.
const Base = enums.CurrencyILS

// DefaultILSPerUSD is used when no rate is configured.
const DefaultILSPerUSD = 3.24

// Converter is deterministic: the same input always yields the same output.
type Converter struct {
	ilsPerUSD float64
}

// NewConverter builds a converter for the given ILS-per-USD rate.
func NewConverter(ilsPerUSD float64) (Converter, error) {
	if ilsPerUSD <= 0 {
		return Converter{}, pkgerrors.Validation(fmt.Sprintf("conversion rate must be positive, got %v", ilsPerUSD))
	}
	return Converter{ilsPerUSD: ilsPerUSD}, nil
}

// MustConverter panics on an invalid rate. Intended for wiring with constants.
func MustConverter(ilsPerUSD float64) Converter {
	c, err := NewConverter(ilsPerUSD)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Converter) Rate() float64 {
	if c.ilsPerUSD <= 0 {
		return DefaultILSPerUSD
	}
	return c.ilsPerUSD
}

// ToTarget converts an amount in the base currency into target.
func (c Converter) ToTarget(amountBase float64, target enums.Currency) (float64, error) {
	switch target {
	case enums.CurrencyILS:
		return amountBase, nil
	case enums.CurrencyUSD:
		return amountBase / c.Rate(), nil
	default:
		return 0, unsupported(target)
	}
}

// ToBase converts an amount expressed in source back into the base currency.
func (c Converter) ToBase(amountTarget float64, source enums.Currency) (float64, error) {
	switch source {
	case enums.CurrencyILS:
		return amountTarget, nil
	case enums.CurrencyUSD:
		return amountTarget * c.Rate(), nil
	default:
		return 0, unsupported(source)
	}
}

// Convert moves an amount between any two supported currencies via the base.
func (c Converter) Convert(amount float64, from, to enums.Currency) (float64, error) {
	if from == to {
		if !from.IsValid() {
			return 0, unsupported(from)
		}
		return amount, nil
	}
	base, err := c.ToBase(amount, from)
	if err != nil {
		return 0, err
	}
	return c.ToTarget(base, to)
}

// ForLanguage returns the currency an order placed in lang is priced in.
func ForLanguage(lang enums.Language) enums.Currency {
	if lang == enums.LanguageEnglish {
		return enums.CurrencyUSD
	}
	return Base
}

// Round2 rounds half away from zero to two decimals for display.
func Round2(amount float64) float64 {
	rounded, _ := decimal.NewFromFloat(amount).Round(2).Float64()
	return rounded
}

func unsupported(c enums.Currency) error {
	return pkgerrors.Validation(fmt.Sprintf("unsupported currency %q", c))
}

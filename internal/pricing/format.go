package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	TaxLabelFallback = "Incl. Tax"
	TaxLabelFree     = "Tax free"
)

var currencySymbols = map[string]string{
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
	"CHF": "CHF ",
	"CZK": "CZK ",
}

// TaxRate is the display-relevant part of an imported Stripe tax rate.
type TaxRate struct {
	DisplayName string
	Percentage  decimal.Decimal
	Active      bool
	Inclusive   bool
}

// FormatAmount renders minor currency units, e.g. 2000 EUR as "€20.00".
func FormatAmount(minor int64, currency string) string {
	code := strings.ToUpper(currency)
	symbol, ok := currencySymbols[code]
	if !ok {
		symbol = code + " "
	}

	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return sign + symbol + decimal.New(minor, -2).StringFixed(2)
}

// TaxLabel describes the tax contained in a price. It never changes the amount;
// an unresolvable rate degrades to a generic label.
func TaxLabel(rate *TaxRate) string {
	if rate == nil || !rate.Active || !rate.Inclusive {
		return TaxLabelFallback
	}
	if rate.Percentage.IsZero() {
		return TaxLabelFree
	}
	label := fmt.Sprintf("Incl. %s%%", rate.Percentage.String())
	if rate.DisplayName != "" {
		label += " " + rate.DisplayName
	}
	return label
}

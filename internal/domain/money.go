package domain

import "github.com/shopspring/decimal"

// Money converts a backend float price into an exact decimal.
func Money(price float64) decimal.Decimal {
	return decimal.NewFromFloat(price)
}

// FormatUSD renders an amount the way the shop displays prices, e.g. "$9.99".
func FormatUSD(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

package domain

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const usdPrecision = 2

// FormatUSD renders a USD value with exactly two decimal places (half away from zero), e.g. "120000.00".
func FormatUSD(d decimal.Decimal) string {
	return d.StringFixed(usdPrecision)
}

// ZeroUSD is the rendering of an empty USD total.
func ZeroUSD() string {
	return FormatUSD(decimal.Zero)
}

// SumUSD adds a list of decimals.
func SumUSD(values []decimal.Decimal) decimal.Decimal {
	return lo.Reduce(values, func(acc decimal.Decimal, v decimal.Decimal, _ int) decimal.Decimal {
		return acc.Add(v)
	}, decimal.Zero)
}

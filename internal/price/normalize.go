package price

import (
	"github.com/shopspring/decimal"

	"github.com/mtlprog/treasury/internal/domain"
)

// Normalize converts a raw integer amount into units of the asset: raw / 10^decimals.
// The conversion is exact; no floating point is involved. decimals must already satisfy
// domain.ValidateDecimals; anything else panics.
func Normalize(raw domain.RawAmount, decimals int) decimal.Decimal {
	if err := domain.ValidateDecimals(decimals); err != nil {
		panic("price.Normalize: " + err.Error())
	}
	return decimal.NewFromBigInt(raw.BigInt(), -int32(decimals))
}

// USDValue returns Normalize(raw, decimals) * priceUSD.
func USDValue(raw domain.RawAmount, decimals int, priceUSD decimal.Decimal) decimal.Decimal {
	return Normalize(raw, decimals).Mul(priceUSD)
}

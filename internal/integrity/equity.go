package integrity

import (
	"fmt"

	"github.com/samber/lo"
)

// ComputeEquity derives reserve - liability for every asset present on either side.
// Negative equity is a shortfall and is returned as is. If both sides hold a positive amount
// of an asset with different decimal counts, the whole computation fails with ErrDecimalMismatch.
func ComputeEquity(reserves, liabilities map[string]Holding) (map[string]Holding, error) {
	assets := lo.Union(lo.Keys(reserves), lo.Keys(liabilities))

	equity := make(map[string]Holding, len(assets))
	for _, asset := range assets {
		r := reserves[asset]
		l := liabilities[asset]

		if r.Raw.IsPositive() && l.Raw.IsPositive() && r.Decimals != l.Decimals {
			return nil, fmt.Errorf("%w for %s: reserve has %d decimals, liability has %d",
				ErrDecimalMismatch, asset, r.Decimals, l.Decimals)
		}

		equity[asset] = Holding{
			Raw:      r.Raw.Sub(l.Raw),
			Decimals: max(r.Decimals, l.Decimals),
		}
	}
	return equity, nil
}

package domain

import (
	"strings"

	"github.com/samber/lo"
)

// NetworkDefinition describes a supported chain and its native asset.
type NetworkDefinition struct {
	Name        string `json:"name"`
	ChainID     string `json:"chainId"`
	AssetSymbol string `json:"assetSymbol"`
	Decimals    int    `json:"decimals"`
	CoinGeckoID string `json:"coinGeckoId"`
}

var networkRegistry = []NetworkDefinition{
	{Name: "ETH", ChainID: "1", AssetSymbol: "ETH", Decimals: 18, CoinGeckoID: "ethereum"},
	{Name: "BSC", ChainID: "56", AssetSymbol: "BNB", Decimals: 18, CoinGeckoID: "binancecoin"},
	{Name: "SOL", ChainID: "solana", AssetSymbol: "SOL", Decimals: 9, CoinGeckoID: "solana"},
	{Name: "BTC", ChainID: "bitcoin", AssetSymbol: "BTC", Decimals: 8, CoinGeckoID: "bitcoin"},
	{Name: "XRP", ChainID: "ripple", AssetSymbol: "XRP", Decimals: 6, CoinGeckoID: "ripple"},
}

// NetworkRegistry returns a copy of the fixed network definitions the sync process maintains.
func NetworkRegistry() []NetworkDefinition {
	return append([]NetworkDefinition(nil), networkRegistry...)
}

// NetworkByName looks up a definition case-insensitively.
func NetworkByName(name string) (NetworkDefinition, bool) {
	return lo.Find(networkRegistry, func(d NetworkDefinition) bool {
		return strings.EqualFold(d.Name, name)
	})
}

// KnownSymbols returns the distinct asset symbols of all registered networks.
func KnownSymbols() []string {
	return lo.Uniq(lo.Map(networkRegistry, func(d NetworkDefinition, _ int) string {
		return d.AssetSymbol
	}))
}

// CoinGeckoIDs maps asset symbols to CoinGecko coin ids.
func CoinGeckoIDs() map[string]string {
	return lo.SliceToMap(networkRegistry, func(d NetworkDefinition) (string, string) {
		return d.AssetSymbol, d.CoinGeckoID
	})
}

// Network is a persisted chain record.
type Network struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ChainID  string `json:"chainId"`
	IsActive bool   `json:"isActive"`
}

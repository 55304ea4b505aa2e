package domain

import "time"

// NetworkStatus is the derived freshness of a network in an overview.
type NetworkStatus string

const (
	StatusOK    NetworkStatus = "OK"
	StatusStale NetworkStatus = "STALE"
	StatusError NetworkStatus = "ERROR"
)

// PriceStatus is the freshness of the prices consulted for a report.
type PriceStatus string

const (
	PriceFresh PriceStatus = "FRESH"
	PriceStale PriceStatus = "STALE"
)

// AssetAmount is a raw per-asset quantity. Amount is the normalized decimal rendering.
type AssetAmount struct {
	Asset    string    `json:"asset"`
	Raw      RawAmount `json:"raw"`
	Decimals int       `json:"decimals"`
	Amount   string    `json:"amount,omitempty"`
}

// NetworkMetrics is the per-network section of the global overview.
type NetworkMetrics struct {
	NetworkID      int64         `json:"networkId"`
	NetworkName    string        `json:"networkName"`
	WalletCount    int           `json:"walletCount"`
	LastSync       *time.Time    `json:"lastSync"`
	Status         NetworkStatus `json:"status"`
	Error          string        `json:"error,omitempty"`
	Reserves       []AssetAmount `json:"reserves"`
	Liabilities    []AssetAmount `json:"liabilities"`
	Equity         []AssetAmount `json:"equity"`
	USDReserves    string        `json:"usdReserves"`
	USDLiabilities string        `json:"usdLiabilities"`
	USDEquity      string        `json:"usdEquity"`
}

// CombinedAsset is one asset summed across all healthy networks.
type CombinedAsset struct {
	Asset     string    `json:"asset"`
	Decimals  int       `json:"decimals"`
	Reserve   RawAmount `json:"reserve"`
	Liability RawAmount `json:"liability"`
	Equity    RawAmount `json:"equity"`
}

// USDSummary holds the combined USD totals.
type USDSummary struct {
	TotalReserveUSD   string      `json:"totalReserveUsd"`
	TotalLiabilityUSD string      `json:"totalLiabilityUsd"`
	TotalEquityUSD    string      `json:"totalEquityUsd"`
	PriceStatus       PriceStatus `json:"priceStatus"`
}

// CombinedMetrics is the cross-network section of the global overview.
type CombinedMetrics struct {
	RawByAsset []CombinedAsset `json:"rawByAsset"`
	USDSummary USDSummary      `json:"usdSummary"`
	Warnings   []string        `json:"warnings,omitempty"`
}

// GlobalOverview is the full reconciliation report. It is computed per call and never stored.
type GlobalOverview struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	Networks    []NetworkMetrics `json:"networks"`
	Combined    CombinedMetrics  `json:"combined"`
}

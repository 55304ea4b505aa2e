package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MaxAssetSymbolLen bounds asset symbols stored in the integrity tables.
const MaxAssetSymbolLen = 20

// MaxDecimals is the largest decimal count a raw amount may carry. Raw amounts are stored as
// NUMERIC(78,0).
const MaxDecimals = 77

var (
	// ErrInvalidAsset is returned for empty or oversized asset symbols.
	ErrInvalidAsset = errors.New("invalid asset symbol")

	// ErrInvalidDecimals is returned for decimal counts outside [0, MaxDecimals].
	ErrInvalidDecimals = errors.New("invalid decimals")
)

// ValidateAssetSymbol checks that a symbol is non-empty and at most MaxAssetSymbolLen characters.
func ValidateAssetSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAsset)
	}
	if n := len([]rune(symbol)); n > MaxAssetSymbolLen {
		return fmt.Errorf("%w: %q has %d characters, max %d", ErrInvalidAsset, symbol, n, MaxAssetSymbolLen)
	}
	return nil
}

// ValidateDecimals checks that decimals is within [0, MaxDecimals].
func ValidateDecimals(decimals int) error {
	if decimals < 0 || decimals > MaxDecimals {
		return fmt.Errorf("%w: %d, want 0..%d", ErrInvalidDecimals, decimals, MaxDecimals)
	}
	return nil
}

// LedgerRecord is one row of reserve_entries or liability_entries as stored.
// Amount is the integer text read from the store; it is validated before use.
type LedgerRecord struct {
	AssetSymbol string
	Amount      string
	Decimals    int
}

// Wallet is the synthetic vault record holding a network's on-chain reserve.
type Wallet struct {
	NetworkID int64
	Address   string
	Balance   RawAmount
	IsActive  bool
}

// SyncRecordStatus is the status persisted in sync_state.
type SyncRecordStatus string

const (
	SyncRecordOK    SyncRecordStatus = "OK"
	SyncRecordError SyncRecordStatus = "ERROR"
)

// SyncState records the outcome of the last sync for a network.
type SyncState struct {
	NetworkID          int64
	LastSuccessfulSync *time.Time
	Status             SyncRecordStatus
	ErrorMessage       string
	RunID              string
}

// PriceQuote is a cached USD price.
type PriceQuote struct {
	AssetSymbol string
	PriceUSD    decimal.Decimal
	UpdatedAt   time.Time
	TTL         time.Duration
}

// IsStale reports whether the quote is older than its TTL at now.
func (q PriceQuote) IsStale(now time.Time) bool {
	return now.Sub(q.UpdatedAt) > q.TTL
}

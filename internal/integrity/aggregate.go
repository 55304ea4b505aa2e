package integrity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mtlprog/treasury/internal/domain"
)

// DefaultStaleThreshold is the sync age after which a network is reported STALE.
const DefaultStaleThreshold = 300 * time.Second

// Holding is a summed raw amount of one asset.
type Holding struct {
	Raw      domain.RawAmount
	Decimals int
}

// NetworkData is the aggregated view of one network.
type NetworkData struct {
	WalletCount int
	Reserves    map[string]Holding
	Liabilities map[string]Holding
	LastSync    *time.Time
	Status      domain.NetworkStatus
}

// Aggregator sums a network's reserve and liability records and derives its sync freshness.
type Aggregator struct {
	store Store
	now   func() time.Time
}

// NewAggregator creates an Aggregator reading from store.
func NewAggregator(store Store, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{store: store, now: now}
}

// Aggregate reads and validates every ledger record of a network. Any invalid record aborts
// the whole network with an error wrapping ErrIntegrityViolation.
func (a *Aggregator) Aggregate(ctx context.Context, networkID int64, networkName string, staleThreshold time.Duration) (NetworkData, error) {
	if staleThreshold <= 0 {
		staleThreshold = DefaultStaleThreshold
	}

	walletCount, err := a.store.CountActiveWallets(ctx, networkID)
	if err != nil {
		return NetworkData{}, err
	}

	reserveRecords, err := a.store.ReserveRecords(ctx, networkID)
	if err != nil {
		return NetworkData{}, err
	}
	reserves, err := sumRecords(networkName, "reserve", reserveRecords)
	if err != nil {
		return NetworkData{}, err
	}

	liabilityRecords, err := a.store.LiabilityRecords(ctx, networkID)
	if err != nil {
		return NetworkData{}, err
	}
	liabilities, err := sumRecords(networkName, "liability", liabilityRecords)
	if err != nil {
		return NetworkData{}, err
	}

	state, err := a.store.SyncState(ctx, networkID)
	found := true
	if err != nil {
		if !errors.Is(err, ErrSyncStateNotFound) {
			return NetworkData{}, err
		}
		found = false
	}

	return NetworkData{
		WalletCount: walletCount,
		Reserves:    reserves,
		Liabilities: liabilities,
		LastSync:    state.LastSuccessfulSync,
		Status:      deriveStatus(state, found, a.now(), staleThreshold),
	}, nil
}

// sumRecords validates records and sums them per asset symbol. When rows of one asset disagree
// on decimals the last row wins and a warning is logged.
func sumRecords(networkName, side string, records []domain.LedgerRecord) (map[string]Holding, error) {
	totals := make(map[string]Holding, len(records))
	for _, rec := range records {
		if err := domain.ValidateAssetSymbol(rec.AssetSymbol); err != nil {
			return nil, fmt.Errorf("%w: %s %s entry: %w", ErrIntegrityViolation, networkName, side, err)
		}
		raw, err := domain.ParseRawAmount(rec.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s entry for %s: %w", ErrIntegrityViolation, networkName, side, rec.AssetSymbol, err)
		}
		if err := domain.ValidateDecimals(rec.Decimals); err != nil {
			return nil, fmt.Errorf("%w: %s %s entry for %s: %w", ErrIntegrityViolation, networkName, side, rec.AssetSymbol, err)
		}

		prev, seen := totals[rec.AssetSymbol]
		if seen && prev.Decimals != rec.Decimals {
			slog.Warn("inconsistent decimals within ledger, keeping last",
				"network", networkName, "side", side, "asset", rec.AssetSymbol,
				"previous", prev.Decimals, "current", rec.Decimals)
		}
		totals[rec.AssetSymbol] = Holding{Raw: prev.Raw.Add(raw), Decimals: rec.Decimals}
	}
	return totals, nil
}

// deriveStatus: ERROR when the last sync failed or never succeeded, STALE when older than
// the threshold, OK otherwise. An age exactly equal to the threshold is still OK.
func deriveStatus(state domain.SyncState, found bool, now time.Time, threshold time.Duration) domain.NetworkStatus {
	if !found || state.Status == domain.SyncRecordError || state.LastSuccessfulSync == nil {
		return domain.StatusError
	}
	if now.Sub(*state.LastSuccessfulSync) > threshold {
		return domain.StatusStale
	}
	return domain.StatusOK
}

package ledgersync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/treasury/internal/domain"
)

// PriceFetcher fetches live USD prices keyed by asset symbol.
type PriceFetcher interface {
	FetchLivePrices(ctx context.Context) (map[string]decimal.Decimal, error)
}

// QuoteSaver persists a USD price into the price cache.
type QuoteSaver interface {
	SaveQuote(ctx context.Context, symbol string, priceUSD decimal.Decimal, ttl time.Duration, at time.Time) error
}

// Invalidator drops in-process copies of cached prices.
type Invalidator interface {
	Invalidate()
}

// Result summarizes one sync run.
type Result struct {
	RunID         string
	StartedAt     time.Time
	FinishedAt    time.Time
	Synced        []string
	Failed        []string
	PricesUpdated int
}

// Service rebuilds the integrity tables from the platform's wallet and balance stores
// and refreshes the price cache.
type Service struct {
	writer        Writer
	wallets       WalletSource
	balances      BalanceSource
	fetcher       PriceFetcher
	quotes        QuoteSaver
	invalidator   Invalidator
	systemAccount string
	priceTTL      time.Duration
	networks      []domain.NetworkDefinition
	now           func() time.Time
}

// NewService creates a new sync Service. invalidator may be nil.
func NewService(
	writer Writer,
	wallets WalletSource,
	balances BalanceSource,
	fetcher PriceFetcher,
	quotes QuoteSaver,
	invalidator Invalidator,
	systemAccount string,
	priceTTL time.Duration,
) *Service {
	if writer == nil {
		panic("ledgersync.NewService: writer is nil")
	}
	if wallets == nil {
		panic("ledgersync.NewService: wallets is nil")
	}
	if balances == nil {
		panic("ledgersync.NewService: balances is nil")
	}
	if fetcher == nil {
		panic("ledgersync.NewService: fetcher is nil")
	}
	if quotes == nil {
		panic("ledgersync.NewService: quotes is nil")
	}
	return &Service{
		writer:        writer,
		wallets:       wallets,
		balances:      balances,
		fetcher:       fetcher,
		quotes:        quotes,
		invalidator:   invalidator,
		systemAccount: systemAccount,
		priceTTL:      priceTTL,
		networks:      domain.NetworkRegistry(),
		now:           time.Now,
	}
}

// WithClock replaces the time source. It is meant for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type upserted struct {
	id  int64
	def domain.NetworkDefinition
}

// Run performs one full sync. A network whose rebuild fails is marked ERROR and the remaining
// networks continue; the returned error joins every per-network failure. A price fetch failure
// keeps the existing cache and is not an error.
func (s *Service) Run(ctx context.Context, skipPrices bool) (Result, error) {
	res := Result{RunID: uuid.NewString(), StartedAt: s.now()}
	log := slog.With("run_id", res.RunID)
	log.Info("sync started", "skip_prices", skipPrices)

	networks := make([]upserted, 0, len(s.networks))
	for _, def := range s.networks {
		id, err := s.writer.UpsertNetwork(ctx, def)
		if err != nil {
			res.FinishedAt = s.now()
			return res, err
		}
		networks = append(networks, upserted{id: id, def: def})
	}

	var errs []error
	rebuilt := make([]upserted, 0, len(networks))
	for _, n := range networks {
		if err := s.rebuild(ctx, n); err != nil {
			log.Error("network rebuild failed", "network", n.def.Name, "error", err)
			if markErr := s.writer.MarkSyncError(ctx, n.id, res.RunID, err.Error()); markErr != nil {
				log.Error("recording sync failure", "network", n.def.Name, "error", markErr)
			}
			res.Failed = append(res.Failed, n.def.Name)
			errs = append(errs, fmt.Errorf("rebuilding %s: %w", n.def.Name, err))
			continue
		}
		rebuilt = append(rebuilt, n)
	}

	if !skipPrices {
		res.PricesUpdated = s.refreshPrices(ctx, log)
	}

	for _, n := range rebuilt {
		if err := s.writer.MarkSyncOK(ctx, n.id, res.RunID, s.now()); err != nil {
			res.Failed = append(res.Failed, n.def.Name)
			errs = append(errs, err)
			continue
		}
		res.Synced = append(res.Synced, n.def.Name)
	}

	res.FinishedAt = s.now()
	log.Info("sync completed",
		"synced", len(res.Synced), "failed", len(res.Failed),
		"prices", res.PricesUpdated, "duration", res.FinishedAt.Sub(res.StartedAt))
	return res, errors.Join(errs...)
}

func (s *Service) rebuild(ctx context.Context, n upserted) error {
	addresses, err := s.wallets.Addresses(ctx, n.def.Name)
	if err != nil {
		return err
	}
	liability, err := s.balances.LiabilityTotal(ctx, n.def.AssetSymbol, s.systemAccount)
	if err != nil {
		return err
	}

	return s.writer.ReplaceNetwork(ctx, NetworkSnapshot{
		NetworkID:    n.id,
		VaultAddress: VaultAddress(n.def),
		AssetSymbol:  n.def.AssetSymbol,
		Decimals:     n.def.Decimals,
		Reserve:      ReserveTotal(addresses),
		Liability:    liability,
	})
}

// refreshPrices fetches live prices once and upserts them. It returns the number of prices saved.
func (s *Service) refreshPrices(ctx context.Context, log *slog.Logger) int {
	prices, err := s.fetcher.FetchLivePrices(ctx)
	if err != nil {
		log.Warn("price fetch failed, keeping cached prices", "error", err)
		return 0
	}

	at := s.now()
	saved := 0
	for _, symbol := range lo.Keys(prices) {
		if err := s.quotes.SaveQuote(ctx, symbol, prices[symbol], s.priceTTL, at); err != nil {
			log.Error("saving price", "asset", symbol, "error", err)
			continue
		}
		saved++
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate()
	}
	return saved
}

// VaultAddress is the synthetic address of a network's aggregate reserve wallet.
func VaultAddress(def domain.NetworkDefinition) string {
	return "vault:" + strings.ToLower(def.Name)
}

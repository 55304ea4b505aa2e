package integrity

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/treasury/internal/domain"
	"github.com/mtlprog/treasury/internal/price"
)

// PriceSessions opens a per-report price lookup session.
type PriceSessions interface {
	NewSession(ttl time.Duration) *price.Session
}

// Orchestrator builds the global reconciliation overview across all active networks.
type Orchestrator struct {
	store          Store
	aggregator     *Aggregator
	prices         PriceSessions
	networkTimeout time.Duration
	now            func() time.Time
}

// NewOrchestrator creates an Orchestrator. networkTimeout bounds each network's aggregation;
// zero means no per-network deadline beyond the caller's context.
func NewOrchestrator(store Store, prices PriceSessions, networkTimeout time.Duration, now func() time.Time) *Orchestrator {
	if store == nil {
		panic("integrity.NewOrchestrator: store is nil")
	}
	if prices == nil {
		panic("integrity.NewOrchestrator: prices is nil")
	}
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		store:          store,
		aggregator:     NewAggregator(store, now),
		prices:         prices,
		networkTimeout: networkTimeout,
		now:            now,
	}
}

// networkOutcome is the result of aggregating one network: either data+equity or err.
type networkOutcome struct {
	network domain.Network
	data    NetworkData
	equity  map[string]Holding
	err     error
}

// GetGlobalOverview aggregates every active network in store order. A failing network yields an
// ERROR entry and never blocks the others. The only error returned is failure to list networks.
func (o *Orchestrator) GetGlobalOverview(ctx context.Context, staleThreshold time.Duration) (domain.GlobalOverview, error) {
	if staleThreshold <= 0 {
		staleThreshold = DefaultStaleThreshold
	}

	networks, err := o.store.ActiveNetworks(ctx)
	if err != nil {
		return domain.GlobalOverview{}, fmt.Errorf("listing networks: %w", err)
	}

	outcomes := lo.Map(networks, func(n domain.Network, _ int) networkOutcome {
		return o.evaluate(ctx, n, staleThreshold)
	})

	session := o.prices.NewSession(0)

	metrics := make([]domain.NetworkMetrics, 0, len(outcomes))
	for _, out := range outcomes {
		if out.err != nil {
			slog.Warn("network aggregation failed", "network", out.network.Name, "error", out.err)
			metrics = append(metrics, errorMetrics(out))
			continue
		}
		metrics = append(metrics, o.networkMetrics(ctx, session, out))
	}

	combined := o.combine(ctx, session, outcomes)
	combined.USDSummary.PriceStatus = session.Status()

	return domain.GlobalOverview{
		GeneratedAt: o.now().UTC(),
		Networks:    metrics,
		Combined:    combined,
	}, nil
}

func (o *Orchestrator) evaluate(ctx context.Context, n domain.Network, staleThreshold time.Duration) networkOutcome {
	out := networkOutcome{network: n}

	if o.networkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.networkTimeout)
		defer cancel()
	}

	data, err := o.aggregator.Aggregate(ctx, n.ID, n.Name, staleThreshold)
	if err != nil {
		out.err = fmt.Errorf("aggregating %s: %w", n.Name, err)
		return out
	}
	if err := ctx.Err(); err != nil {
		out.err = fmt.Errorf("aggregating %s: %w", n.Name, err)
		return out
	}

	equity, err := ComputeEquity(data.Reserves, data.Liabilities)
	if err != nil {
		out.err = fmt.Errorf("computing equity for %s: %w", n.Name, err)
		return out
	}

	out.data = data
	out.equity = equity
	return out
}

func errorMetrics(out networkOutcome) domain.NetworkMetrics {
	return domain.NetworkMetrics{
		NetworkID:      out.network.ID,
		NetworkName:    out.network.Name,
		Status:         domain.StatusError,
		Error:          out.err.Error(),
		Reserves:       []domain.AssetAmount{},
		Liabilities:    []domain.AssetAmount{},
		Equity:         []domain.AssetAmount{},
		USDReserves:    domain.ZeroUSD(),
		USDLiabilities: domain.ZeroUSD(),
		USDEquity:      domain.ZeroUSD(),
	}
}

func (o *Orchestrator) networkMetrics(ctx context.Context, session *price.Session, out networkOutcome) domain.NetworkMetrics {
	usdReserves := usdTotal(ctx, session, out.data.Reserves)
	usdLiabilities := usdTotal(ctx, session, out.data.Liabilities)

	return domain.NetworkMetrics{
		NetworkID:      out.network.ID,
		NetworkName:    out.network.Name,
		WalletCount:    out.data.WalletCount,
		LastSync:       out.data.LastSync,
		Status:         out.data.Status,
		Reserves:       sortedAmounts(out.data.Reserves),
		Liabilities:    sortedAmounts(out.data.Liabilities),
		Equity:         sortedAmounts(out.equity),
		USDReserves:    domain.FormatUSD(usdReserves),
		USDLiabilities: domain.FormatUSD(usdLiabilities),
		USDEquity:      domain.FormatUSD(usdReserves.Sub(usdLiabilities)),
	}
}

// usdTotal sums Normalize(raw)*price over assets with a positive amount and a cached price.
// Assets without a price are skipped, not valued at zero.
func usdTotal(ctx context.Context, session *price.Session, holdings map[string]Holding) decimal.Decimal {
	total := decimal.Zero
	for _, asset := range sortedKeys(holdings) {
		h := holdings[asset]
		if !h.Raw.IsPositive() {
			continue
		}
		p, ok := session.Lookup(ctx, asset)
		if !ok {
			continue
		}
		total = total.Add(price.USDValue(h.Raw, h.Decimals, p.USD))
	}
	return total
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

func sortedAmounts(holdings map[string]Holding) []domain.AssetAmount {
	return lo.Map(sortedKeys(holdings), func(asset string, _ int) domain.AssetAmount {
		h := holdings[asset]
		return domain.AssetAmount{
			Asset:    asset,
			Raw:      h.Raw,
			Decimals: h.Decimals,
			Amount:   price.Normalize(h.Raw, h.Decimals).String(),
		}
	})
}

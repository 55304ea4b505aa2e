package integrity

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/treasury/internal/domain"
	"github.com/mtlprog/treasury/internal/price"
)

type combinedEntry struct {
	reserve     domain.RawAmount
	liability   domain.RawAmount
	decimals    int
	hasDecimals bool
	conflicts   map[int]bool
}

// combine re-sums every healthy network's raw reserves and liabilities per asset and values the
// totals independently of the per-network USD figures. An asset held with different decimal
// counts on different networks is reported as a warning and left out of the USD totals.
func (o *Orchestrator) combine(ctx context.Context, session *price.Session, outcomes []networkOutcome) domain.CombinedMetrics {
	entries := make(map[string]*combinedEntry)
	entry := func(asset string) *combinedEntry {
		e, ok := entries[asset]
		if !ok {
			e = &combinedEntry{conflicts: make(map[int]bool)}
			entries[asset] = e
		}
		return e
	}

	for _, out := range outcomes {
		if out.err != nil {
			continue
		}
		for _, asset := range sortedKeys(out.data.Reserves) {
			h := out.data.Reserves[asset]
			e := entry(asset)
			e.reserve = e.reserve.Add(h.Raw)
			e.track(h)
		}
		for _, asset := range sortedKeys(out.data.Liabilities) {
			h := out.data.Liabilities[asset]
			e := entry(asset)
			e.liability = e.liability.Add(h.Raw)
			e.track(h)
		}
	}

	var warnings []string
	totalReserve := decimal.Zero
	totalLiability := decimal.Zero
	rows := make([]domain.CombinedAsset, 0, len(entries))

	for _, asset := range sortedKeys(entries) {
		e := entries[asset]
		rows = append(rows, domain.CombinedAsset{
			Asset:     asset,
			Decimals:  e.decimals,
			Reserve:   e.reserve,
			Liability: e.liability,
			Equity:    e.reserve.Sub(e.liability),
		})

		if len(e.conflicts) > 0 {
			seen := lo.Keys(e.conflicts)
			sort.Ints(seen)
			w := fmt.Sprintf("asset %s has conflicting decimals %v across networks, excluded from combined USD totals", asset, seen)
			slog.Warn(w)
			warnings = append(warnings, w)
			continue
		}

		if !e.reserve.IsPositive() && !e.liability.IsPositive() {
			continue
		}
		p, ok := session.Lookup(ctx, asset)
		if !ok {
			continue
		}
		if e.reserve.IsPositive() {
			totalReserve = totalReserve.Add(price.USDValue(e.reserve, e.decimals, p.USD))
		}
		if e.liability.IsPositive() {
			totalLiability = totalLiability.Add(price.USDValue(e.liability, e.decimals, p.USD))
		}
	}

	return domain.CombinedMetrics{
		RawByAsset: rows,
		USDSummary: domain.USDSummary{
			TotalReserveUSD:   domain.FormatUSD(totalReserve),
			TotalLiabilityUSD: domain.FormatUSD(totalLiability),
			TotalEquityUSD:    domain.FormatUSD(totalReserve.Sub(totalLiability)),
		},
		Warnings: warnings,
	}
}

// track records the decimal count of a holding. Positive holdings are authoritative; a zero
// holding only supplies decimals when nothing has been recorded yet.
func (e *combinedEntry) track(h Holding) {
	if !h.Raw.IsPositive() {
		if !e.hasDecimals {
			e.decimals = h.Decimals
		}
		return
	}
	if e.hasDecimals && e.decimals != h.Decimals {
		e.conflicts[e.decimals] = true
		e.conflicts[h.Decimals] = true
	}
	e.decimals = h.Decimals
	e.hasDecimals = true
}

package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/mtlprog/treasury/internal/domain"
)

// OverviewGenerator builds the global reconciliation overview.
type OverviewGenerator interface {
	GetGlobalOverview(ctx context.Context, staleThreshold time.Duration) (domain.GlobalOverview, error)
}

// OverviewObserver receives every generated overview, e.g. to update metrics.
type OverviewObserver interface {
	ObserveOverview(overview domain.GlobalOverview)
}

// AfterReportHook is called after each successful overview generation.
type AfterReportHook interface {
	Export(ctx context.Context, overview domain.GlobalOverview) error
}

// ReportWorker periodically computes the overview and reports unhealthy networks.
type ReportWorker struct {
	generator      OverviewGenerator
	interval       time.Duration
	staleThreshold time.Duration
	observer       OverviewObserver // optional
	hook           AfterReportHook  // optional
}

// NewReportWorker creates a new ReportWorker with optional observer and post-generation hook.
func NewReportWorker(generator OverviewGenerator, interval, staleThreshold time.Duration, observer OverviewObserver, hook AfterReportHook) *ReportWorker {
	return &ReportWorker{
		generator:      generator,
		interval:       interval,
		staleThreshold: staleThreshold,
		observer:       observer,
		hook:           hook,
	}
}

// runHook calls the post-generation hook if one is configured.
func (w *ReportWorker) runHook(ctx context.Context, overview domain.GlobalOverview) {
	if w.hook == nil {
		return
	}
	if err := w.hook.Export(ctx, overview); err != nil {
		slog.Error("ReportWorker: export hook failed", "error", err)
	} else {
		slog.Info("ReportWorker: export hook completed")
	}
}

func (w *ReportWorker) runOnce(ctx context.Context) {
	overview, err := w.generator.GetGlobalOverview(ctx, w.staleThreshold)
	if err != nil {
		slog.Error("ReportWorker: generation failed", "error", err)
		return
	}
	slog.Info("ReportWorker: generation completed",
		"networks", len(overview.Networks),
		"total_equity_usd", overview.Combined.USDSummary.TotalEquityUSD,
		"price_status", overview.Combined.USDSummary.PriceStatus)

	reportFindings(overview)
	if w.observer != nil {
		w.observer.ObserveOverview(overview)
	}
	w.runHook(ctx, overview)
}

// reportFindings logs every network that needs attention.
func reportFindings(overview domain.GlobalOverview) {
	for _, n := range overview.Networks {
		switch n.Status {
		case domain.StatusError:
			slog.Error("ReportWorker: network in error", "network", n.NetworkName, "error", n.Error)
		case domain.StatusStale:
			slog.Warn("ReportWorker: network stale", "network", n.NetworkName, "last_sync", n.LastSync)
		}
		for _, e := range n.Equity {
			if e.Raw.Sign() < 0 {
				slog.Warn("ReportWorker: negative equity",
					"network", n.NetworkName, "asset", e.Asset, "amount", e.Amount)
			}
		}
	}
	if overview.Combined.USDSummary.PriceStatus == domain.PriceStale {
		slog.Warn("ReportWorker: report uses stale prices")
	}
	for _, warning := range overview.Combined.Warnings {
		slog.Warn("ReportWorker: " + warning)
	}
}

// Run starts the report worker loop. It blocks until the context is cancelled.
func (w *ReportWorker) Run(ctx context.Context) {
	slog.Info("ReportWorker: starting")

	// Generate immediately on startup
	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("ReportWorker: shutting down")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

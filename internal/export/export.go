package export

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/treasury/internal/domain"
	"github.com/mtlprog/treasury/internal/price"
)

// Sheet names shared by every report writer.
const (
	NetworksSheet = "NETWORKS"
	AssetsSheet   = "ASSETS"
	HistorySheet  = "HISTORY"
)

// combinedLabel marks cross-network rows in the ASSETS sheet.
const combinedLabel = "ALL"

// ReportWriter writes a full overview to a spreadsheet destination.
type ReportWriter interface {
	Write(ctx context.Context, overview domain.GlobalOverview) error
}

// HistoryWriter appends a one-row summary of an overview.
type HistoryWriter interface {
	AppendHistory(ctx context.Context, overview domain.GlobalOverview) error
}

// Service delegates an overview to a ReportWriter and an optional HistoryWriter.
type Service struct {
	writer  ReportWriter
	history HistoryWriter
}

// NewService creates a new export Service. history may be nil.
func NewService(writer ReportWriter, history HistoryWriter) *Service {
	if writer == nil {
		panic("export.NewService: writer is nil")
	}
	return &Service{writer: writer, history: history}
}

// Export writes the overview and appends its history row.
// Implements worker.AfterReportHook.
func (s *Service) Export(ctx context.Context, overview domain.GlobalOverview) error {
	if err := s.writer.Write(ctx, overview); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if s.history == nil {
		return nil
	}
	if err := s.history.AppendHistory(ctx, overview); err != nil {
		return fmt.Errorf("appending history: %w", err)
	}
	return nil
}

var networkHeader = []any{
	"Network", "Status", "Wallets", "Last Sync",
	"USD Reserves", "USD Liabilities", "USD Equity", "Error",
}

// buildNetworkRows builds the NETWORKS sheet data.
// Columns: Network | Status | Wallets | Last Sync | USD Reserves | USD Liabilities | USD Equity | Error
func buildNetworkRows(overview domain.GlobalOverview) [][]any {
	data := make([][]any, 0, len(overview.Networks)+2)
	data = append(data, networkHeader)

	for _, n := range overview.Networks {
		data = append(data, []any{
			n.NetworkName,
			string(n.Status),
			n.WalletCount,
			formatTime(n.LastSync),
			usdCell(n.USDReserves),
			usdCell(n.USDLiabilities),
			usdCell(n.USDEquity),
			n.Error,
		})
	}

	s := overview.Combined.USDSummary
	data = append(data, []any{
		combinedLabel,
		string(s.PriceStatus),
		"",
		formatTime(&overview.GeneratedAt),
		usdCell(s.TotalReserveUSD),
		usdCell(s.TotalLiabilityUSD),
		usdCell(s.TotalEquityUSD),
		"",
	})

	return data
}

var assetHeader = []any{"Network", "Asset", "Decimals", "Reserve", "Liability", "Equity", "Raw Equity"}

// buildAssetRows builds the ASSETS sheet data: one row per network and asset, followed by the
// cross-network totals. Amounts are written as exact decimal strings.
// Columns: Network | Asset | Decimals | Reserve | Liability | Equity | Raw Equity
func buildAssetRows(overview domain.GlobalOverview) [][]any {
	data := [][]any{assetHeader}

	for _, n := range overview.Networks {
		reserves := byAsset(n.Reserves)
		liabilities := byAsset(n.Liabilities)
		for _, e := range n.Equity {
			data = append(data, []any{
				n.NetworkName,
				e.Asset,
				e.Decimals,
				reserves[e.Asset].Amount,
				liabilities[e.Asset].Amount,
				e.Amount,
				e.Raw.String(),
			})
		}
	}

	for _, c := range overview.Combined.RawByAsset {
		data = append(data, []any{
			combinedLabel,
			c.Asset,
			c.Decimals,
			normalized(c.Reserve, c.Decimals),
			normalized(c.Liability, c.Decimals),
			normalized(c.Equity, c.Decimals),
			c.Equity.String(),
		})
	}

	return data
}

var historyHeader = []any{
	"Generated At", "Total Reserve USD", "Total Liability USD", "Total Equity USD",
	"Price Status", "Networks OK", "Networks STALE", "Networks ERROR",
}

// buildHistoryRow summarizes an overview in one row.
// Columns: Generated At | Total Reserve USD | Total Liability USD | Total Equity USD |
// Price Status | Networks OK | Networks STALE | Networks ERROR
func buildHistoryRow(overview domain.GlobalOverview) []any {
	counts := make(map[domain.NetworkStatus]int, 3)
	for _, n := range overview.Networks {
		counts[n.Status]++
	}

	s := overview.Combined.USDSummary
	return []any{
		formatTime(&overview.GeneratedAt),
		usdCell(s.TotalReserveUSD),
		usdCell(s.TotalLiabilityUSD),
		usdCell(s.TotalEquityUSD),
		string(s.PriceStatus),
		counts[domain.StatusOK],
		counts[domain.StatusStale],
		counts[domain.StatusError],
	}
}

func byAsset(amounts []domain.AssetAmount) map[string]domain.AssetAmount {
	m := make(map[string]domain.AssetAmount, len(amounts))
	for _, a := range amounts {
		m[a.Asset] = a
	}
	return m
}

func normalized(raw domain.RawAmount, decimals int) string {
	return price.Normalize(raw, decimals).String()
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// usdCell converts a formatted USD string into a spreadsheet number.
func usdCell(s string) any {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	f, _ := d.Float64()
	return f
}

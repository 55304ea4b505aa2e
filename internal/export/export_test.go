package export

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mtlprog/treasury/internal/domain"
)

func testOverview() domain.GlobalOverview {
	lastSync := time.Date(2025, 3, 1, 11, 59, 0, 0, time.UTC)
	return domain.GlobalOverview{
		GeneratedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Networks: []domain.NetworkMetrics{
			{
				NetworkID:   1,
				NetworkName: "ETH",
				WalletCount: 1,
				LastSync:    &lastSync,
				Status:      domain.StatusOK,
				Reserves: []domain.AssetAmount{
					{Asset: "ETH", Raw: domain.MustRawAmount("100000000000000000000"), Decimals: 18, Amount: "100"},
				},
				Liabilities: []domain.AssetAmount{
					{Asset: "ETH", Raw: domain.MustRawAmount("40000000000000000000"), Decimals: 18, Amount: "40"},
				},
				Equity: []domain.AssetAmount{
					{Asset: "ETH", Raw: domain.MustRawAmount("60000000000000000000"), Decimals: 18, Amount: "60"},
				},
				USDReserves:    "200000.00",
				USDLiabilities: "80000.00",
				USDEquity:      "120000.00",
			},
			{
				NetworkID:      2,
				NetworkName:    "SOL",
				Status:         domain.StatusError,
				Error:          "aggregating SOL: connection reset",
				Reserves:       []domain.AssetAmount{},
				Liabilities:    []domain.AssetAmount{},
				Equity:         []domain.AssetAmount{},
				USDReserves:    "0.00",
				USDLiabilities: "0.00",
				USDEquity:      "0.00",
			},
		},
		Combined: domain.CombinedMetrics{
			RawByAsset: []domain.CombinedAsset{{
				Asset:     "ETH",
				Decimals:  18,
				Reserve:   domain.MustRawAmount("100000000000000000000"),
				Liability: domain.MustRawAmount("40000000000000000000"),
				Equity:    domain.MustRawAmount("60000000000000000000"),
			}},
			USDSummary: domain.USDSummary{
				TotalReserveUSD:   "200000.00",
				TotalLiabilityUSD: "80000.00",
				TotalEquityUSD:    "120000.00",
				PriceStatus:       domain.PriceFresh,
			},
		},
	}
}

func TestBuildNetworkRows(t *testing.T) {
	rows := buildNetworkRows(testOverview())

	// header + 2 networks + combined
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if len(row) != len(networkHeader) {
			t.Errorf("row %d: expected %d columns, got %d", i, len(networkHeader), len(row))
		}
	}

	eth := rows[1]
	if eth[0] != "ETH" || eth[1] != "OK" || eth[2] != 1 {
		t.Errorf("ETH row = %v", eth)
	}
	if eth[3] != "2025-03-01T11:59:00Z" {
		t.Errorf("last sync = %v", eth[3])
	}
	if eth[6] != 120000.0 {
		t.Errorf("USD equity = %v, want 120000", eth[6])
	}

	sol := rows[2]
	if sol[1] != "ERROR" || sol[3] != "" || sol[7] != "aggregating SOL: connection reset" {
		t.Errorf("SOL row = %v", sol)
	}

	total := rows[3]
	if total[0] != combinedLabel || total[1] != "FRESH" || total[6] != 120000.0 {
		t.Errorf("combined row = %v", total)
	}
}

func TestBuildAssetRows(t *testing.T) {
	rows := buildAssetRows(testOverview())

	// header + ETH/ETH + ALL/ETH; the ERROR network has no assets
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	want := []any{"ETH", "ETH", 18, "100", "40", "60", "60000000000000000000"}
	for i, v := range want {
		if rows[1][i] != v {
			t.Errorf("network row col %d = %v, want %v", i, rows[1][i], v)
		}
	}

	want[0] = combinedLabel
	for i, v := range want {
		if rows[2][i] != v {
			t.Errorf("combined row col %d = %v, want %v", i, rows[2][i], v)
		}
	}
}

func TestBuildHistoryRow(t *testing.T) {
	row := buildHistoryRow(testOverview())

	if len(row) != len(historyHeader) {
		t.Fatalf("expected %d columns, got %d", len(historyHeader), len(row))
	}
	if row[0] != "2025-03-01T12:00:00Z" {
		t.Errorf("generated at = %v", row[0])
	}
	if row[3] != 120000.0 || row[4] != "FRESH" {
		t.Errorf("row = %v", row)
	}
	if row[5] != 1 || row[6] != 0 || row[7] != 1 {
		t.Errorf("status counts = %v/%v/%v, want 1/0/1", row[5], row[6], row[7])
	}
}

func TestUSDCell(t *testing.T) {
	if got := usdCell("-120000.50"); got != -120000.5 {
		t.Errorf("usdCell = %v", got)
	}
	if got := usdCell("n/a"); got != "n/a" {
		t.Errorf("unparsable value should pass through, got %v", got)
	}
}

type mockReportWriter struct {
	calls int
	err   error
}

func (m *mockReportWriter) Write(_ context.Context, _ domain.GlobalOverview) error {
	m.calls++
	return m.err
}

type mockHistoryWriter struct {
	calls int
}

func (m *mockHistoryWriter) AppendHistory(_ context.Context, _ domain.GlobalOverview) error {
	m.calls++
	return nil
}

func TestServiceExport(t *testing.T) {
	writer := &mockReportWriter{}
	history := &mockHistoryWriter{}
	svc := NewService(writer, history)

	if err := svc.Export(context.Background(), testOverview()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if writer.calls != 1 || history.calls != 1 {
		t.Errorf("writer calls = %d, history calls = %d", writer.calls, history.calls)
	}
}

func TestServiceExportWriterErrorSkipsHistory(t *testing.T) {
	writer := &mockReportWriter{err: errors.New("quota exceeded")}
	history := &mockHistoryWriter{}
	svc := NewService(writer, history)

	if err := svc.Export(context.Background(), testOverview()); err == nil {
		t.Fatal("expected error")
	}
	if history.calls != 0 {
		t.Error("history must not be appended after a failed write")
	}
}

func TestServiceExportWithoutHistory(t *testing.T) {
	writer := &mockReportWriter{}
	if err := NewService(writer, nil).Export(context.Background(), testOverview()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

package integrity

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mtlprog/treasury/internal/domain"
)

const (
	e18x100 = "100000000000000000000"
	e18x40  = "40000000000000000000"
)

func ethNetwork(reserve, liability string) *mockNetwork {
	return &mockNetwork{
		network:     domain.Network{ID: 1, Name: "ETH", ChainID: "1", IsActive: true},
		wallets:     2,
		reserves:    []domain.LedgerRecord{rec("ETH", reserve, 18)},
		liabilities: []domain.LedgerRecord{rec("ETH", liability, 18)},
		state:       okState(1, time.Minute),
	}
}

func TestGlobalOverviewSingleNetwork(t *testing.T) {
	store := &mockStore{networks: []*mockNetwork{ethNetwork(e18x100, e18x40)}}
	o := newTestOrchestrator(store, map[string]domain.PriceQuote{"ETH": freshQuote("ETH", "2000")})

	overview, err := o.GetGlobalOverview(context.Background(), 300*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(overview.Networks) != 1 {
		t.Fatalf("got %d networks, want 1", len(overview.Networks))
	}
	eth := overview.Networks[0]
	if eth.Status != domain.StatusOK {
		t.Errorf("Status = %s, want OK", eth.Status)
	}
	if eth.WalletCount != 2 {
		t.Errorf("WalletCount = %d, want 2", eth.WalletCount)
	}
	if len(eth.Equity) != 1 || !eth.Equity[0].Raw.Equal(domain.MustRawAmount("60000000000000000000")) {
		t.Errorf("Equity = %+v, want 60e18 ETH", eth.Equity)
	}
	if eth.Equity[0].Amount != "60" {
		t.Errorf("Equity amount = %q, want 60", eth.Equity[0].Amount)
	}
	if eth.USDReserves != "200000.00" || eth.USDLiabilities != "80000.00" || eth.USDEquity != "120000.00" {
		t.Errorf("USD = %s/%s/%s, want 200000.00/80000.00/120000.00", eth.USDReserves, eth.USDLiabilities, eth.USDEquity)
	}

	summary := overview.Combined.USDSummary
	if summary.TotalEquityUSD != "120000.00" {
		t.Errorf("TotalEquityUSD = %s, want 120000.00", summary.TotalEquityUSD)
	}
	if summary.PriceStatus != domain.PriceFresh {
		t.Errorf("PriceStatus = %s, want FRESH", summary.PriceStatus)
	}
	if !overview.GeneratedAt.Equal(testNow) {
		t.Errorf("GeneratedAt = %v, want %v", overview.GeneratedAt, testNow)
	}
}

func TestGlobalOverviewShortfall(t *testing.T) {
	store := &mockStore{networks: []*mockNetwork{ethNetwork(e18x40, e18x100)}}
	o := newTestOrchestrator(store, map[string]domain.PriceQuote{"ETH": freshQuote("ETH", "2000")})

	overview, err := o.GetGlobalOverview(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	eth := overview.Networks[0]
	if eth.Status != domain.StatusOK {
		t.Errorf("shortfall must not change status, got %s", eth.Status)
	}
	if !eth.Equity[0].Raw.Equal(domain.MustRawAmount("-60000000000000000000")) {
		t.Errorf("Equity = %s, want -60e18", eth.Equity[0].Raw)
	}
	if eth.USDEquity != "-120000.00" {
		t.Errorf("USDEquity = %s, want -120000.00", eth.USDEquity)
	}
	if overview.Combined.USDSummary.TotalEquityUSD != "-120000.00" {
		t.Errorf("TotalEquityUSD = %s, want -120000.00", overview.Combined.USDSummary.TotalEquityUSD)
	}
}

func TestGlobalOverviewStalePriceTaintsReport(t *testing.T) {
	btc := &mockNetwork{
		network:  domain.Network{ID: 2, Name: "BTC"},
		reserves: []domain.LedgerRecord{rec("BTC", "100000000", 8)},
		state:    okState(2, 0),
	}
	store := &mockStore{networks: []*mockNetwork{ethNetwork(e18x100, e18x40), btc}}
	o := newTestOrchestrator(store, map[string]domain.PriceQuote{
		"ETH": freshQuote("ETH", "2000"),
		"BTC": staleQuote("BTC", "60000"),
	})

	overview, err := o.GetGlobalOverview(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if overview.Combined.USDSummary.PriceStatus != domain.PriceStale {
		t.Errorf("PriceStatus = %s, want STALE", overview.Combined.USDSummary.PriceStatus)
	}
	// Stale prices are still used for valuation.
	if overview.Networks[1].USDReserves != "60000.00" {
		t.Errorf("BTC USDReserves = %s, want 60000.00", overview.Networks[1].USDReserves)
	}
}

func TestGlobalOverviewMissingPriceSkipsAsset(t *testing.T) {
	n := ethNetwork(e18x100, e18x40)
	n.reserves = append(n.reserves, rec("UNPRICED", "5000", 2))
	store := &mockStore{networks: []*mockNetwork{n}}
	o := newTestOrchestrator(store, map[string]domain.PriceQuote{"ETH": freshQuote("ETH", "2000")})

	overview, err := o.GetGlobalOverview(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eth := overview.Networks[0]
	if eth.USDReserves != "200000.00" {
		t.Errorf("USDReserves = %s, want 200000.00", eth.USDReserves)
	}
	if len(eth.Reserves) != 2 {
		t.Errorf("unpriced asset must still be listed, got %+v", eth.Reserves)
	}
	if overview.Combined.USDSummary.PriceStatus != domain.PriceFresh {
		t.Errorf("missing price must not mark STALE, got %s", overview.Combined.USDSummary.PriceStatus)
	}
}

func TestGlobalOverviewErrorIsolation(t *testing.T) {
	broken := &mockNetwork{
		network: domain.Network{ID: 2, Name: "SOL"},
		err:     errors.New("connection reset"),
	}
	store := &mockStore{networks: []*mockNetwork{ethNetwork(e18x100, e18x40), broken}}
	o := newTestOrchestrator(store, map[string]domain.PriceQuote{"ETH": freshQuote("ETH", "2000")})

	overview, err := o.GetGlobalOverview(context.Background(), 0)
	if err != nil {
		t.Fatalf("one broken network must not fail the report: %v", err)
	}
	if len(overview.Networks) != 2 {
		t.Fatalf("got %d networks, want 2", len(overview.Networks))
	}

	sol := overview.Networks[1]
	if sol.Status != domain.StatusError {
		t.Errorf("Status = %s, want ERROR", sol.Status)
	}
	if !strings.Contains(sol.Error, "connection reset") {
		t.Errorf("Error = %q, want the underlying cause", sol.Error)
	}
	if len(sol.Reserves) != 0 || len(sol.Liabilities) != 0 || len(sol.Equity) != 0 {
		t.Error("ERROR entry must carry empty asset lists")
	}
	if sol.USDReserves != "0.00" || sol.USDLiabilities != "0.00" || sol.USDEquity != "0.00" {
		t.Errorf("ERROR entry USD = %s/%s/%s, want 0.00", sol.USDReserves, sol.USDLiabilities, sol.USDEquity)
	}

	if overview.Networks[0].Status != domain.StatusOK {
		t.Errorf("healthy network affected: %s", overview.Networks[0].Status)
	}
	if overview.Combined.USDSummary.TotalEquityUSD != "120000.00" {
		t.Errorf("TotalEquityUSD = %s, want 120000.00", overview.Combined.USDSummary.TotalEquityUSD)
	}
}

func TestGlobalOverviewErrorEntryMarshalsEmptyArrays(t *testing.T) {
	store := &mockStore{networks: []*mockNetwork{{
		network: domain.Network{ID: 3, Name: "XRP"},
		err:     errors.New("boom"),
	}}}
	o := newTestOrchestrator(store, nil)

	overview, err := o.GetGlobalOverview(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, err := json.Marshal(overview.Networks[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(body), `"reserves":[]`) {
		t.Errorf("expected empty reserves array, got %s", body)
	}
}

func TestGlobalOverviewDecimalMismatchIsNetworkError(t *testing.T) {
	n := &mockNetwork{
		network:     domain.Network{ID: 1, Name: "ETH"},
		reserves:    []domain.LedgerRecord{rec("USDT", "1000000", 6)},
		liabilities: []domain.LedgerRecord{rec("USDT", "1000000000000000000", 18)},
		state:       okState(1, 0),
	}
	o := newTestOrchestrator(&mockStore{networks: []*mockNetwork{n}}, nil)

	overview, err := o.GetGlobalOverview(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := overview.Networks[0]
	if got.Status != domain.StatusError {
		t.Errorf("Status = %s, want ERROR", got.Status)
	}
	if !strings.Contains(got.Error, "decimal mismatch") {
		t.Errorf("Error = %q, want decimal mismatch", got.Error)
	}
}

func TestGlobalOverviewNetworkTimeout(t *testing.T) {
	slow := &mockNetwork{network: domain.Network{ID: 2, Name: "BSC"}, block: true}
	store := &mockStore{networks: []*mockNetwork{ethNetwork(e18x100, e18x40), slow}}
	pricer := newTestOrchestrator(store, map[string]domain.PriceQuote{"ETH": freshQuote("ETH", "2000")}).prices
	o := NewOrchestrator(store, pricer, 20*time.Millisecond, fixedClock)

	overview, err := o.GetGlobalOverview(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bsc := overview.Networks[1]
	if bsc.Status != domain.StatusError {
		t.Errorf("Status = %s, want ERROR", bsc.Status)
	}
	if !strings.Contains(bsc.Error, context.DeadlineExceeded.Error()) {
		t.Errorf("Error = %q, want deadline exceeded", bsc.Error)
	}
	if overview.Networks[0].Status != domain.StatusOK {
		t.Errorf("ETH Status = %s, want OK", overview.Networks[0].Status)
	}
}

func TestGlobalOverviewStaleSync(t *testing.T) {
	n := ethNetwork(e18x100, e18x40)
	n.state = okState(1, 10*time.Minute)
	o := newTestOrchestrator(&mockStore{networks: []*mockNetwork{n}}, map[string]domain.PriceQuote{"ETH": freshQuote("ETH", "2000")})

	overview, err := o.GetGlobalOverview(context.Background(), 300*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if overview.Networks[0].Status != domain.StatusStale {
		t.Errorf("Status = %s, want STALE", overview.Networks[0].Status)
	}
	// A STALE network still contributes figures.
	if overview.Networks[0].USDEquity != "120000.00" {
		t.Errorf("USDEquity = %s, want 120000.00", overview.Networks[0].USDEquity)
	}

	overview, err = o.GetGlobalOverview(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if overview.Networks[0].Status != domain.StatusOK {
		t.Errorf("with a 1h threshold Status = %s, want OK", overview.Networks[0].Status)
	}
}

func TestGlobalOverviewNeverSynced(t *testing.T) {
	n := ethNetwork(e18x100, e18x40)
	n.state = nil
	o := newTestOrchestrator(&mockStore{networks: []*mockNetwork{n}}, map[string]domain.PriceQuote{"ETH": freshQuote("ETH", "2000")})

	overview, err := o.GetGlobalOverview(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := overview.Networks[0]
	if got.Status != domain.StatusError {
		t.Errorf("Status = %s, want ERROR", got.Status)
	}
	if got.LastSync != nil {
		t.Errorf("LastSync = %v, want nil", got.LastSync)
	}
}

func TestGlobalOverviewDeterministicOrdering(t *testing.T) {
	n := &mockNetwork{
		network: domain.Network{ID: 5, Name: "BSC"},
		reserves: []domain.LedgerRecord{
			rec("USDT", "1", 18), rec("BNB", "1", 18), rec("CAKE", "1", 18),
		},
		state: okState(5, 0),
	}
	store := &mockStore{networks: []*mockNetwork{n, ethNetwork(e18x100, e18x40)}}
	o := newTestOrchestrator(store, nil)

	first, err := o.GetGlobalOverview(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := o.GetGlobalOverview(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Error("identical inputs produced different reports")
	}

	if first.Networks[0].NetworkName != "BSC" || first.Networks[1].NetworkName != "ETH" {
		t.Errorf("network order not preserved: %s, %s", first.Networks[0].NetworkName, first.Networks[1].NetworkName)
	}
	assets := []string{first.Networks[0].Reserves[0].Asset, first.Networks[0].Reserves[1].Asset, first.Networks[0].Reserves[2].Asset}
	if assets[0] != "BNB" || assets[1] != "CAKE" || assets[2] != "USDT" {
		t.Errorf("assets not sorted: %v", assets)
	}
}

func TestGlobalOverviewListingFailure(t *testing.T) {
	o := newTestOrchestrator(&mockStore{listErr: errors.New("db down")}, nil)

	if _, err := o.GetGlobalOverview(context.Background(), 0); err == nil {
		t.Fatal("expected error when networks cannot be listed")
	}
}

func TestGlobalOverviewEmpty(t *testing.T) {
	o := newTestOrchestrator(&mockStore{}, nil)

	overview, err := o.GetGlobalOverview(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(overview.Networks) != 0 {
		t.Errorf("got %d networks, want 0", len(overview.Networks))
	}
	s := overview.Combined.USDSummary
	if s.TotalReserveUSD != "0.00" || s.TotalEquityUSD != "0.00" || s.PriceStatus != domain.PriceFresh {
		t.Errorf("summary = %+v", s)
	}
}

func TestCombinedSumsAcrossNetworks(t *testing.T) {
	bsc := &mockNetwork{
		network:     domain.Network{ID: 2, Name: "BSC"},
		reserves:    []domain.LedgerRecord{rec("ETH", e18x100, 18)},
		liabilities: []domain.LedgerRecord{rec("ETH", e18x40, 18)},
		state:       okState(2, 0),
	}
	store := &mockStore{networks: []*mockNetwork{ethNetwork(e18x100, e18x40), bsc}}
	o := newTestOrchestrator(store, map[string]domain.PriceQuote{"ETH": freshQuote("ETH", "2000")})

	overview, err := o.GetGlobalOverview(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := overview.Combined.RawByAsset
	if len(rows) != 1 {
		t.Fatalf("got %d combined rows, want 1", len(rows))
	}
	if !rows[0].Reserve.Equal(domain.MustRawAmount("200000000000000000000")) {
		t.Errorf("combined reserve = %s, want 200e18", rows[0].Reserve)
	}
	if !rows[0].Equity.Equal(domain.MustRawAmount("120000000000000000000")) {
		t.Errorf("combined equity = %s, want 120e18", rows[0].Equity)
	}
	s := overview.Combined.USDSummary
	if s.TotalReserveUSD != "400000.00" || s.TotalLiabilityUSD != "160000.00" || s.TotalEquityUSD != "240000.00" {
		t.Errorf("summary = %+v", s)
	}
	if len(overview.Combined.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", overview.Combined.Warnings)
	}
}

func TestCombinedDecimalConflictWarns(t *testing.T) {
	eth := &mockNetwork{
		network:  domain.Network{ID: 1, Name: "ETH"},
		reserves: []domain.LedgerRecord{rec("USDT", "1000000", 6)},
		state:    okState(1, 0),
	}
	bsc := &mockNetwork{
		network:  domain.Network{ID: 2, Name: "BSC"},
		reserves: []domain.LedgerRecord{rec("USDT", "1000000000000000000", 18)},
		state:    okState(2, 0),
	}
	store := &mockStore{networks: []*mockNetwork{eth, bsc}}
	o := newTestOrchestrator(store, map[string]domain.PriceQuote{"USDT": freshQuote("USDT", "1")})

	overview, err := o.GetGlobalOverview(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Each network values its own USDT correctly.
	for _, n := range overview.Networks {
		if n.USDReserves != "1.00" {
			t.Errorf("%s USDReserves = %s, want 1.00", n.NetworkName, n.USDReserves)
		}
	}
	if len(overview.Combined.Warnings) != 1 || !strings.Contains(overview.Combined.Warnings[0], "USDT") {
		t.Fatalf("Warnings = %v, want one USDT warning", overview.Combined.Warnings)
	}
	if overview.Combined.USDSummary.TotalReserveUSD != "0.00" {
		t.Errorf("conflicting asset must be excluded, TotalReserveUSD = %s", overview.Combined.USDSummary.TotalReserveUSD)
	}
}

func TestNewOrchestratorPanicsOnNilDeps(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil store")
		}
	}()
	NewOrchestrator(nil, nil, 0, nil)
}

package integrity

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/treasury/internal/domain"
	"github.com/mtlprog/treasury/internal/price"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type mockNetwork struct {
	network     domain.Network
	wallets     int
	reserves    []domain.LedgerRecord
	liabilities []domain.LedgerRecord
	state       *domain.SyncState
	err         error
	block       bool
}

type mockStore struct {
	networks []*mockNetwork
	listErr  error
}

func (m *mockStore) find(id int64) (*mockNetwork, error) {
	for _, n := range m.networks {
		if n.network.ID == id {
			return n, nil
		}
	}
	return nil, errors.New("unknown network")
}

func (m *mockStore) ActiveNetworks(_ context.Context) ([]domain.Network, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Network
	for _, n := range m.networks {
		out = append(out, n.network)
	}
	return out, nil
}

func (m *mockStore) CountActiveWallets(ctx context.Context, id int64) (int, error) {
	n, err := m.find(id)
	if err != nil {
		return 0, err
	}
	if n.block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if n.err != nil {
		return 0, n.err
	}
	return n.wallets, nil
}

func (m *mockStore) ReserveRecords(_ context.Context, id int64) ([]domain.LedgerRecord, error) {
	n, err := m.find(id)
	if err != nil {
		return nil, err
	}
	return n.reserves, nil
}

func (m *mockStore) LiabilityRecords(_ context.Context, id int64) ([]domain.LedgerRecord, error) {
	n, err := m.find(id)
	if err != nil {
		return nil, err
	}
	return n.liabilities, nil
}

func (m *mockStore) SyncState(_ context.Context, id int64) (domain.SyncState, error) {
	n, err := m.find(id)
	if err != nil {
		return domain.SyncState{}, err
	}
	if n.state == nil {
		return domain.SyncState{}, ErrSyncStateNotFound
	}
	return *n.state, nil
}

type mockQuotes struct {
	quotes map[string]domain.PriceQuote
}

func (m *mockQuotes) GetQuote(_ context.Context, symbol string) (domain.PriceQuote, error) {
	q, ok := m.quotes[symbol]
	if !ok {
		return domain.PriceQuote{}, price.ErrQuoteNotFound
	}
	return q, nil
}

func (m *mockQuotes) GetAllQuotes(_ context.Context) ([]domain.PriceQuote, error) {
	return nil, nil
}

func (m *mockQuotes) SaveQuote(_ context.Context, _ string, _ decimal.Decimal, _ time.Duration, _ time.Time) error {
	return nil
}

func freshQuote(symbol, usd string) domain.PriceQuote {
	return domain.PriceQuote{AssetSymbol: symbol, PriceUSD: decimal.RequireFromString(usd), UpdatedAt: testNow, TTL: 300 * time.Second}
}

func staleQuote(symbol, usd string) domain.PriceQuote {
	q := freshQuote(symbol, usd)
	q.UpdatedAt = testNow.Add(-301 * time.Second)
	return q
}

func okState(id int64, age time.Duration) *domain.SyncState {
	at := testNow.Add(-age)
	return &domain.SyncState{NetworkID: id, LastSuccessfulSync: &at, Status: domain.SyncRecordOK}
}

func rec(asset, amount string, decimals int) domain.LedgerRecord {
	return domain.LedgerRecord{AssetSymbol: asset, Amount: amount, Decimals: decimals}
}

func newTestOrchestrator(store Store, quotes map[string]domain.PriceQuote) *Orchestrator {
	pricer := price.NewPricer(&mockQuotes{quotes: quotes}, 0).WithClock(fixedClock)
	return NewOrchestrator(store, pricer, time.Second, fixedClock)
}

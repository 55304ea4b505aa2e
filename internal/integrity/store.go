package integrity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtlprog/treasury/internal/domain"
)

// ErrSyncStateNotFound indicates that a network has never been synced.
var ErrSyncStateNotFound = errors.New("sync state not found")

// Store is the read side of the integrity tables.
type Store interface {
	ActiveNetworks(ctx context.Context) ([]domain.Network, error)
	CountActiveWallets(ctx context.Context, networkID int64) (int, error)
	ReserveRecords(ctx context.Context, networkID int64) ([]domain.LedgerRecord, error)
	LiabilityRecords(ctx context.Context, networkID int64) ([]domain.LedgerRecord, error)
	SyncState(ctx context.Context, networkID int64) (domain.SyncState, error)
}

// PgStore implements Store with PostgreSQL.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL integrity store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) ActiveNetworks(ctx context.Context) ([]domain.Network, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, chain_id, is_active FROM networks WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing active networks: %w", err)
	}
	defer rows.Close()

	var networks []domain.Network
	for rows.Next() {
		var n domain.Network
		if err := rows.Scan(&n.ID, &n.Name, &n.ChainID, &n.IsActive); err != nil {
			return nil, fmt.Errorf("scanning network: %w", err)
		}
		networks = append(networks, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating networks: %w", err)
	}
	return networks, nil
}

func (s *PgStore) CountActiveWallets(ctx context.Context, networkID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM wallets WHERE network_id = $1 AND is_active`, networkID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting wallets for network %d: %w", networkID, err)
	}
	return n, nil
}

func (s *PgStore) ReserveRecords(ctx context.Context, networkID int64) ([]domain.LedgerRecord, error) {
	return s.ledgerRecords(ctx,
		`SELECT asset_symbol, amount::text, decimals FROM reserve_entries WHERE network_id = $1 ORDER BY id`,
		networkID)
}

func (s *PgStore) LiabilityRecords(ctx context.Context, networkID int64) ([]domain.LedgerRecord, error) {
	return s.ledgerRecords(ctx,
		`SELECT asset_symbol, amount::text, decimals FROM liability_entries WHERE network_id = $1 ORDER BY id`,
		networkID)
}

// ledgerRecords reads NUMERIC amounts as text so they are never routed through float64.
func (s *PgStore) ledgerRecords(ctx context.Context, query string, networkID int64) ([]domain.LedgerRecord, error) {
	rows, err := s.pool.Query(ctx, query, networkID)
	if err != nil {
		return nil, fmt.Errorf("reading ledger entries for network %d: %w", networkID, err)
	}
	defer rows.Close()

	var records []domain.LedgerRecord
	for rows.Next() {
		var r domain.LedgerRecord
		if err := rows.Scan(&r.AssetSymbol, &r.Amount, &r.Decimals); err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ledger entries: %w", err)
	}
	return records, nil
}

func (s *PgStore) SyncState(ctx context.Context, networkID int64) (domain.SyncState, error) {
	var st domain.SyncState
	var status string
	var errMsg, runID *string
	err := s.pool.QueryRow(ctx,
		`SELECT network_id, last_successful_sync, status, error_message, run_id::text
		 FROM sync_state WHERE network_id = $1`, networkID).
		Scan(&st.NetworkID, &st.LastSuccessfulSync, &status, &errMsg, &runID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SyncState{}, ErrSyncStateNotFound
		}
		return domain.SyncState{}, fmt.Errorf("getting sync state for network %d: %w", networkID, err)
	}
	st.Status = domain.SyncRecordStatus(status)
	if errMsg != nil {
		st.ErrorMessage = *errMsg
	}
	if runID != nil {
		st.RunID = *runID
	}
	return st, nil
}

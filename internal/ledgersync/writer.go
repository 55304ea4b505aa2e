package ledgersync

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtlprog/treasury/internal/database"
	"github.com/mtlprog/treasury/internal/domain"
)

// NetworkSnapshot is the freshly computed integrity data of one network.
type NetworkSnapshot struct {
	NetworkID    int64
	VaultAddress string
	AssetSymbol  string
	Decimals     int
	Reserve      domain.RawAmount
	Liability    domain.RawAmount
}

// Writer is the write side of the integrity tables.
type Writer interface {
	UpsertNetwork(ctx context.Context, def domain.NetworkDefinition) (int64, error)
	ReplaceNetwork(ctx context.Context, snap NetworkSnapshot) error
	MarkSyncOK(ctx context.Context, networkID int64, runID string, at time.Time) error
	MarkSyncError(ctx context.Context, networkID int64, runID string, message string) error
}

// PgWriter implements Writer with PostgreSQL.
type PgWriter struct {
	pool *pgxpool.Pool
}

// NewPgWriter creates a new PostgreSQL integrity writer.
func NewPgWriter(pool *pgxpool.Pool) *PgWriter {
	return &PgWriter{pool: pool}
}

func (w *PgWriter) UpsertNetwork(ctx context.Context, def domain.NetworkDefinition) (int64, error) {
	var id int64
	err := w.pool.QueryRow(ctx,
		`INSERT INTO networks (name, chain_id, is_active)
		 VALUES ($1, $2, TRUE)
		 ON CONFLICT (name) DO UPDATE SET chain_id = $2, is_active = TRUE
		 RETURNING id`, def.Name, def.ChainID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting network %s: %w", def.Name, err)
	}
	return id, nil
}

// ReplaceNetwork deletes a network's wallet, reserve and liability rows and inserts the new
// ones in a single transaction.
func (w *PgWriter) ReplaceNetwork(ctx context.Context, snap NetworkSnapshot) error {
	return database.WithTx(ctx, w.pool, func(tx pgx.Tx) error {
		for _, table := range []string{"reserve_entries", "liability_entries", "wallets"} {
			if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE network_id = $1`, snap.NetworkID); err != nil {
				return fmt.Errorf("clearing %s for network %d: %w", table, snap.NetworkID, err)
			}
		}

		var walletID int64
		err := tx.QueryRow(ctx,
			`INSERT INTO wallets (network_id, address, balance, is_active)
			 VALUES ($1, $2, $3::numeric, TRUE) RETURNING id`,
			snap.NetworkID, snap.VaultAddress, snap.Reserve.String()).Scan(&walletID)
		if err != nil {
			return fmt.Errorf("inserting vault wallet for network %d: %w", snap.NetworkID, err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO reserve_entries (network_id, wallet_id, asset_symbol, amount, decimals)
			 VALUES ($1, $2, $3, $4::numeric, $5)`,
			snap.NetworkID, walletID, snap.AssetSymbol, snap.Reserve.String(), snap.Decimals); err != nil {
			return fmt.Errorf("inserting reserve entry for network %d: %w", snap.NetworkID, err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO liability_entries (network_id, asset_symbol, amount, decimals)
			 VALUES ($1, $2, $3::numeric, $4)`,
			snap.NetworkID, snap.AssetSymbol, snap.Liability.String(), snap.Decimals); err != nil {
			return fmt.Errorf("inserting liability entry for network %d: %w", snap.NetworkID, err)
		}
		return nil
	})
}

func (w *PgWriter) MarkSyncOK(ctx context.Context, networkID int64, runID string, at time.Time) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO sync_state (network_id, last_successful_sync, status, error_message, run_id, updated_at)
		 VALUES ($1, $2, 'OK', NULL, $3::uuid, $2)
		 ON CONFLICT (network_id) DO UPDATE
		 SET last_successful_sync = $2, status = 'OK', error_message = NULL, run_id = $3::uuid, updated_at = $2`,
		networkID, at, runID)
	if err != nil {
		return fmt.Errorf("marking network %d synced: %w", networkID, err)
	}
	return nil
}

// MarkSyncError records a failed rebuild. The last successful sync time is kept.
func (w *PgWriter) MarkSyncError(ctx context.Context, networkID int64, runID string, message string) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO sync_state (network_id, last_successful_sync, status, error_message, run_id, updated_at)
		 VALUES ($1, NULL, 'ERROR', $2, $3::uuid, NOW())
		 ON CONFLICT (network_id) DO UPDATE
		 SET status = 'ERROR', error_message = $2, run_id = $3::uuid, updated_at = NOW()`,
		networkID, message, runID)
	if err != nil {
		return fmt.Errorf("marking network %d failed: %w", networkID, err)
	}
	return nil
}

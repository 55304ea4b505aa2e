package ledgersync

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"github.com/mtlprog/treasury/internal/domain"
)

// AddressRecord is one generated deposit address with its last observed on-chain balance.
type AddressRecord struct {
	Address string
	Balance domain.RawAmount
}

// WalletSource reads the platform's generated deposit addresses.
type WalletSource interface {
	Addresses(ctx context.Context, network string) ([]AddressRecord, error)
}

// BalanceSource reads users' internal balances, which are the platform's liabilities.
type BalanceSource interface {
	LiabilityTotal(ctx context.Context, asset, excludeAccount string) (domain.RawAmount, error)
}

// ReserveTotal sums the on-chain balance of every provisioned address. Addresses are compared
// case-insensitively and a duplicated address contributes only its largest balance.
func ReserveTotal(records []AddressRecord) domain.RawAmount {
	provisioned := lo.Filter(records, func(r AddressRecord, _ int) bool {
		return strings.TrimSpace(r.Address) != ""
	})

	byAddress := make(map[string]domain.RawAmount, len(provisioned))
	for _, r := range provisioned {
		key := strings.ToLower(strings.TrimSpace(r.Address))
		byAddress[key] = byAddress[key].Max(r.Balance)
	}

	return lo.Reduce(lo.Values(byAddress), func(acc domain.RawAmount, b domain.RawAmount, _ int) domain.RawAmount {
		return acc.Add(b)
	}, domain.ZeroRaw())
}

// PgSources implements WalletSource and BalanceSource over the platform tables.
type PgSources struct {
	pool *pgxpool.Pool
}

// NewPgSources creates PostgreSQL-backed upstream sources.
func NewPgSources(pool *pgxpool.Pool) *PgSources {
	return &PgSources{pool: pool}
}

func (s *PgSources) Addresses(ctx context.Context, network string) ([]AddressRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT COALESCE(address, ''), COALESCE(last_known_balance, 0)::text
		 FROM user_addresses WHERE chain = $1`, network)
	if err != nil {
		return nil, fmt.Errorf("reading addresses for %s: %w", network, err)
	}
	defer rows.Close()

	var records []AddressRecord
	for rows.Next() {
		var address, balance string
		if err := rows.Scan(&address, &balance); err != nil {
			return nil, fmt.Errorf("scanning address: %w", err)
		}
		raw, err := domain.ParseRawAmount(balance)
		if err != nil {
			return nil, fmt.Errorf("address %s balance: %w", address, err)
		}
		records = append(records, AddressRecord{Address: address, Balance: raw})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating addresses: %w", err)
	}
	return records, nil
}

func (s *PgSources) LiabilityTotal(ctx context.Context, asset, excludeAccount string) (domain.RawAmount, error) {
	var total string
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(balance), 0)::text
		 FROM user_balances WHERE asset = $1 AND user_id <> $2`, asset, excludeAccount).Scan(&total)
	if err != nil {
		return domain.RawAmount{}, fmt.Errorf("summing liabilities for %s: %w", asset, err)
	}
	raw, err := domain.ParseRawAmount(total)
	if err != nil {
		return domain.RawAmount{}, fmt.Errorf("liability total for %s: %w", asset, err)
	}
	return raw, nil
}

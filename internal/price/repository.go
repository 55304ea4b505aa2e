package price

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/treasury/internal/domain"
)

// ErrQuoteNotFound indicates that no cached price exists for the asset.
var ErrQuoteNotFound = errors.New("price quote not found")

// QuoteRepository defines persistent storage for the USD price cache.
type QuoteRepository interface {
	GetQuote(ctx context.Context, symbol string) (domain.PriceQuote, error)
	GetAllQuotes(ctx context.Context) ([]domain.PriceQuote, error)
	SaveQuote(ctx context.Context, symbol string, priceUSD decimal.Decimal, ttl time.Duration, at time.Time) error
}

// PgRepository implements QuoteRepository with PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL price cache repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) SaveQuote(ctx context.Context, symbol string, priceUSD decimal.Decimal, ttl time.Duration, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO price_cache (asset_symbol, price_usd, last_updated, ttl_seconds)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (asset_symbol) DO UPDATE
		 SET price_usd = $2, last_updated = $3, ttl_seconds = $4`,
		symbol, priceUSD, at, int64(ttl/time.Second))
	if err != nil {
		return fmt.Errorf("saving price for %s: %w", symbol, err)
	}
	return nil
}

func (r *PgRepository) GetQuote(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	q, err := scanQuote(r.pool.QueryRow(ctx,
		`SELECT asset_symbol, price_usd, last_updated, ttl_seconds
		 FROM price_cache WHERE asset_symbol = $1`, symbol))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PriceQuote{}, ErrQuoteNotFound
		}
		return domain.PriceQuote{}, fmt.Errorf("getting price for %s: %w", symbol, err)
	}
	return q, nil
}

func (r *PgRepository) GetAllQuotes(ctx context.Context) ([]domain.PriceQuote, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT asset_symbol, price_usd, last_updated, ttl_seconds
		 FROM price_cache ORDER BY asset_symbol`)
	if err != nil {
		return nil, fmt.Errorf("getting all prices: %w", err)
	}
	defer rows.Close()

	var quotes []domain.PriceQuote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning price: %w", err)
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

func scanQuote(row pgx.Row) (domain.PriceQuote, error) {
	var q domain.PriceQuote
	var ttlSeconds int64
	if err := row.Scan(&q.AssetSymbol, &q.PriceUSD, &q.UpdatedAt, &ttlSeconds); err != nil {
		return domain.PriceQuote{}, err
	}
	q.TTL = time.Duration(ttlSeconds) * time.Second
	return q, nil
}

package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtlprog/treasury/internal/config"
	"github.com/mtlprog/treasury/internal/database"
	"github.com/mtlprog/treasury/internal/domain"
	"github.com/mtlprog/treasury/internal/external"
	"github.com/mtlprog/treasury/internal/integrity"
	"github.com/mtlprog/treasury/internal/ledgersync"
	"github.com/mtlprog/treasury/internal/metrics"
	"github.com/mtlprog/treasury/internal/price"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// application holds the wired services shared by every command.
type application struct {
	cfg          config.Config
	pool         *pgxpool.Pool
	quotes       *price.PgRepository
	orchestrator *integrity.Orchestrator
	coordinator  *ledgersync.Coordinator
	recorder     *metrics.Recorder
}

// connect opens the database and applies pending migrations.
func connect(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	migrationsSub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating migrations sub-fs: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, migrationsSub); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return pool, nil
}

func newApplication(ctx context.Context, cfg config.Config) (*application, error) {
	pool, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	quoteRepo := price.NewPgRepository(pool)
	pricer := price.NewPricer(quoteRepo, cfg.QuoteCacheTTL)
	recorder := metrics.NewRecorder()

	orchestrator := integrity.NewOrchestrator(integrity.NewPgStore(pool), pricer, cfg.NetworkTimeout, time.Now)

	coingecko := external.NewCoinGeckoClient(
		cfg.CoinGeckoURL, domain.CoinGeckoIDs(),
		cfg.CoinGeckoDelay, cfg.CoinGeckoRetryMax, cfg.CoinGeckoMinInterval,
	)
	sources := ledgersync.NewPgSources(pool)
	syncSvc := ledgersync.NewService(
		ledgersync.NewPgWriter(pool), sources, sources,
		coingecko, quoteRepo, pricer,
		cfg.SystemAccountID, cfg.PriceTTL,
	)
	coordinator := ledgersync.NewCoordinator(syncSvc, cfg.SyncMinInterval, recorder)

	return &application{
		cfg:          cfg,
		pool:         pool,
		quotes:       quoteRepo,
		orchestrator: orchestrator,
		coordinator:  coordinator,
		recorder:     recorder,
	}, nil
}

func (a *application) Close() {
	a.pool.Close()
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mtlprog/treasury/internal/api"
	"github.com/mtlprog/treasury/internal/config"
	"github.com/mtlprog/treasury/internal/export"
	"github.com/mtlprog/treasury/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.SetDefault(config.NewLoggerFromEnv(os.Stderr))
	cfg := config.Load()

	app := &cli.App{
		Name:  "treasury",
		Usage: "reconcile on-chain reserves against platform liabilities",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the sync and report workers and the admin HTTP API",
				Action: func(c *cli.Context) error {
					return serve(c.Context, cfg, stop)
				},
			},
			{
				Name:  "sync",
				Usage: "rebuild the integrity tables once",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "ignore the minimum sync interval"},
					&cli.BoolFlag{Name: "skip-prices", Usage: "do not refresh prices"},
				},
				Action: func(c *cli.Context) error {
					return runSync(c.Context, cfg, c.Bool("force"), c.Bool("skip-prices"))
				},
			},
			{
				Name:  "overview",
				Usage: "print the global overview as JSON",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "stale-threshold", Value: int(cfg.StaleThreshold / time.Second), Usage: "sync staleness threshold in seconds"},
					&cli.StringFlag{Name: "xlsx", Usage: "also write the overview to this XLSX file"},
				},
				Action: func(c *cli.Context) error {
					threshold := time.Duration(c.Int("stale-threshold")) * time.Second
					return printOverview(c.Context, cfg, threshold, c.String("xlsx"))
				},
			},
			{
				Name:  "prices",
				Usage: "list cached USD prices",
				Action: func(c *cli.Context) error {
					return printPrices(c.Context, cfg)
				},
			},
			{
				Name:  "migrate",
				Usage: "apply database migrations",
				Action: func(c *cli.Context) error {
					pool, err := connect(c.Context, cfg)
					if err != nil {
						return err
					}
					pool.Close()
					slog.Info("migrations applied")
					return nil
				},
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func serve(ctx context.Context, cfg config.Config, stop context.CancelFunc) error {
	a, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var hook worker.AfterReportHook
	if cfg.SheetsEnabled() {
		sheetsWriter, err := export.NewSheetsWriter(ctx, cfg.GoogleSheetsID, cfg.GoogleCredentialsJSON)
		if err != nil {
			return fmt.Errorf("creating sheets writer: %w", err)
		}
		hook = export.NewService(sheetsWriter, sheetsWriter)
	} else {
		slog.Info("GOOGLE_SHEETS_ID or GOOGLE_CREDENTIALS_JSON not set, sheets export disabled")
	}

	// Start workers
	syncWorker := worker.NewSyncWorker(a.coordinator, cfg.SyncWorkerInterval)
	go syncWorker.Run(ctx)

	reportWorker := worker.NewReportWorker(a.orchestrator, cfg.ReportWorkerInterval, cfg.StaleThreshold, a.recorder, hook)
	go reportWorker.Run(ctx)

	if cfg.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY not set, admin endpoints are unprotected")
	}

	// Start HTTP server
	handler := api.NewHandler(a.orchestrator, a.coordinator, a.pool, cfg.StaleThreshold)
	srv := api.NewServer(cfg.HTTPPort, handler, a.recorder.Handler(), cfg.AdminAPIKey)

	go func() {
		slog.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
	return nil
}

func runSync(ctx context.Context, cfg config.Config, force, skipPrices bool) error {
	a, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	synced, at, err := a.coordinator.Sync(ctx, force, skipPrices)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	slog.Info("sync finished", "synced", synced, "at", at)
	return nil
}

func printOverview(ctx context.Context, cfg config.Config, threshold time.Duration, xlsxPath string) error {
	a, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	overview, err := a.orchestrator.GetGlobalOverview(ctx, threshold)
	if err != nil {
		return err
	}

	if xlsxPath != "" {
		if err := export.NewXLSXWriter(xlsxPath).Write(ctx, overview); err != nil {
			return err
		}
		slog.Info("overview written", "file", xlsxPath)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(overview)
}

func printPrices(ctx context.Context, cfg config.Config) error {
	a, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	quotes, err := a.quotes.GetAllQuotes(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ASSET\tUSD\tUPDATED\tSTALE")
	for _, q := range quotes {
		if q.TTL <= 0 {
			q.TTL = cfg.PriceTTL
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%v\n", q.AssetSymbol, q.PriceUSD.String(), q.UpdatedAt.UTC().Format(time.RFC3339), q.IsStale(now))
	}
	return tw.Flush()
}

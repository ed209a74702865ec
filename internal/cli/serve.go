package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/minifi-app/minifi/internal/api"
	"github.com/minifi-app/minifi/internal/app/accounts"
	"github.com/minifi-app/minifi/internal/app/points"
	"github.com/minifi-app/minifi/internal/app/vault"
	"github.com/minifi-app/minifi/internal/daemon"
	"github.com/minifi-app/minifi/internal/domain"
	"github.com/minifi-app/minifi/internal/infra/catalog"
	"github.com/minifi-app/minifi/internal/infra/clock"
	"github.com/minifi-app/minifi/internal/infra/leaderboard"
	"github.com/minifi-app/minifi/internal/infra/memstore"
	"github.com/minifi-app/minifi/internal/infra/postgres"
	"github.com/minifi-app/minifi/internal/infra/sqlite"
	"github.com/minifi-app/minifi/internal/infra/wallet"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine HTTP API",
	Long: `Start the staking and points engine and serve its REST API.
The storage backend, listen address, and optional Redis leaderboard come
from the config file (see 'minifi --help' for the default path).`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var board *leaderboard.Redis
	if cfg.Redis.Enabled {
		board, err = leaderboard.New(ctx, leaderboard.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer board.Close()
	}

	reg := accounts.NewRegistry(store)
	clk := clock.System{}
	w := wallet.NewMemory()

	v := vault.New(cat, reg, w, clk)
	var lb domain.Leaderboard
	if board != nil {
		lb = board
	}
	p := points.New(cat, reg, lb, clk)

	srv := api.NewServer(cat, v, p)
	if cfg.API.Metrics {
		srv.EnableMetrics()
	}
	if board != nil {
		srv.SetLeaderboard(board)
	}

	httpSrv := &http.Server{
		Addr:              cfg.API.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("minifi: listening on %s (storage=%s)", cfg.API.Addr(), cfg.Storage.Backend)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Printf("minifi: received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func loadCatalog(cfg daemon.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(cfg.Catalog.Path)
}

func openStore(ctx context.Context, cfg daemon.Config) (domain.LedgerStore, func(), error) {
	switch cfg.Storage.Backend {
	case "memory":
		return memstore.New(), func() {}, nil
	case "sqlite":
		if err := os.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir %s: %w", cfg.Storage.Dir, err)
		}
		db, err := sqlite.Open(cfg.Storage.Dir)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { db.Close() }, nil
	case "postgres":
		pg, err := postgres.Open(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package main

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chattermon/chattermon/internal/battle"
	"github.com/chattermon/chattermon/internal/catalog"
	"github.com/chattermon/chattermon/internal/config"
	"github.com/chattermon/chattermon/internal/coord"
	"github.com/chattermon/chattermon/internal/game"
	gamepg "github.com/chattermon/chattermon/internal/game/postgres"
	"github.com/chattermon/chattermon/internal/logging"
	"github.com/chattermon/chattermon/internal/observability"
	"github.com/chattermon/chattermon/internal/progress"
	"github.com/chattermon/chattermon/internal/roster"
	"github.com/chattermon/chattermon/internal/shop"
	"github.com/chattermon/chattermon/internal/spawn"
	"github.com/chattermon/chattermon/internal/store"
	"github.com/chattermon/chattermon/internal/trade"
)

// coordSweepInterval is how often expired coordination rows are
// reclaimed.
const coordSweepInterval = time.Minute

// Engine bundles the wired game services. The chat dispatch layer (out
// of scope here) consumes these.
type Engine struct {
	Spawn    *spawn.Service
	Progress *progress.Service
	Battle   *battle.Service
	Trade    *trade.Service
	Roster   *roster.Service
	Shop     *shop.Service
	Users    game.UserRepository
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the engine process",
		Long: `Start the engine process: connects to the database, wires the
game services, and serves metrics and health probes until interrupted.`,
		RunE: runServe,
	}
	cmd.Flags().String("database-url", "", "PostgreSQL connection string")
	cmd.Flags().String("metrics-addr", "", "observability listen address")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("chattermon", version, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	obs := observability.NewServer(cfg.MetricsAddr, func() bool {
		return pool.Ping(ctx) == nil
	})
	errCh, err := obs.Start()
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if stopErr := obs.Stop(shutdownCtx); stopErr != nil {
			slog.Error("observability shutdown failed", "error", stopErr)
		}
	}()

	coordStore := coord.NewPostgresStore(pool)
	// The dispatch layer consumes the engine; constructing it here
	// validates configuration and catalog before the process reports
	// ready.
	if _, err := BuildEngine(cfg, pool, coordStore, obs.Metrics()); err != nil {
		return err
	}

	go sweepLoop(ctx, coordStore)

	slog.Info("engine ready", "metrics_addr", obs.Addr())
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}

// BuildEngine wires repositories and services against one pool.
func BuildEngine(cfg config.Config, pool *pgxpool.Pool, coordStore coord.Store, metrics *observability.Metrics) (*Engine, error) {
	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	users := gamepg.NewUserRepository(pool)
	creatures := gamepg.NewCreatureRepository(pool)
	spawns := gamepg.NewSpawnRepository(pool)
	battles := gamepg.NewBattleRepository(pool)
	trades := gamepg.NewTradeRepository(pool)
	inventory := gamepg.NewInventoryRepository(pool)
	tx := gamepg.NewTransactor(pool)

	sampler := spawn.NewSampler(cat, rand.NewPCG(rand.Uint64(), rand.Uint64()))

	spawnSvc, err := spawn.NewService(spawn.ServiceConfig{
		Spawns:    spawns,
		Creatures: creatures,
		Users:     users,
		Tx:        tx,
		Coord:     coordStore,
		Catalog:   cat,
		Sampler:   sampler,
		Config: spawn.Config{
			ChatAllowlist: cfg.Spawn.ChatAllowlist,
			Expiry:        cfg.Spawn.Expiry,
			CooldownMin:   cfg.Spawn.CooldownMin,
			CooldownMax:   cfg.Spawn.CooldownMax,
			ClaimCooldown: cfg.Spawn.ClaimCooldown,
			LockTTL:       cfg.Spawn.LockTTL,
		},
		Metrics: metrics,
	})
	if err != nil {
		return nil, err
	}

	progressSvc := progress.NewService(progress.ServiceConfig{
		Creatures: creatures,
		Users:     users,
		Coord:     coordStore,
		Catalog:   cat,
		Metrics:   metrics,
	})

	battleSvc := battle.NewService(battle.ServiceConfig{
		Battles:   battles,
		Creatures: creatures,
		Users:     users,
		Coord:     coordStore,
		Catalog:   cat,
		Progress:  progressSvc,
		Config: battle.Config{
			InactivityTimeout: cfg.Battle.InactivityTimeout,
			LockTTL:           cfg.Battle.LockTTL,
		},
		Metrics: metrics,
	})

	tradeSvc := trade.NewService(trade.ServiceConfig{
		Trades:    trades,
		Creatures: creatures,
		Tx:        tx,
		Coord:     coordStore,
		Config: trade.Config{
			OfferDeadline: cfg.Trade.OfferDeadline,
			LockTTL:       cfg.Trade.LockTTL,
		},
		Metrics: metrics,
	})

	rosterSvc := roster.NewService(roster.ServiceConfig{
		Creatures: creatures,
		Tx:        tx,
	})

	shopSvc := shop.NewService(shop.ServiceConfig{
		Users:     users,
		Inventory: inventory,
		Tx:        tx,
		Metrics:   metrics,
	})

	return &Engine{
		Spawn:    spawnSvc,
		Progress: progressSvc,
		Battle:   battleSvc,
		Trade:    tradeSvc,
		Roster:   rosterSvc,
		Shop:     shopSvc,
		Users:    users,
	}, nil
}

// loadCatalog loads the configured dataset, falling back to the embedded
// one.
func loadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogPath != "" {
		return catalog.LoadFile(cfg.CatalogPath)
	}
	return catalog.Default()
}

// loadConfig loads layered configuration for a command.
func loadConfig(flags *pflag.FlagSet) (config.Config, error) {
	return config.Load(configFile, flags)
}

// sweepLoop periodically reclaims expired coordination rows. Safety net
// only: expiry is enforced on every read.
func sweepLoop(ctx context.Context, coordStore *coord.PostgresStore) {
	ticker := time.NewTicker(coordSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := coordStore.SweepExpired(ctx); err != nil {
				slog.Warn("coord sweep failed", "error", err)
			} else if n > 0 {
				slog.Debug("coord sweep", "removed", n)
			}
		}
	}
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rupeeverse/internal/config"
	"rupeeverse/internal/db"
	"rupeeverse/internal/economy"
	"rupeeverse/internal/player"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Error("schema bootstrap failed", "err", err)
		os.Exit(1)
	}

	players := player.NewStore(pool, logger)
	ledger := economy.NewService(pool, players, logger)

	runOnce := strings.EqualFold(strings.TrimSpace(os.Getenv("RUPEEVERSE_WORKER_RUN_ONCE")), "true")
	if runOnce {
		n, err := ledger.MatureDeposits(ctx)
		if err != nil {
			logger.Error("maturity sweep failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed", "matured", n)
		return
	}

	ticker := time.NewTicker(cfg.FDSweepEvery)
	defer ticker.Stop()

	logger.Info("worker started", "sweep_every", cfg.FDSweepEvery.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			n, err := ledger.MatureDeposits(ctx)
			if err != nil {
				logger.Error("maturity sweep failed", "err", err)
				continue
			}
			if n > 0 {
				logger.Info("fixed deposits matured", "count", n)
			}
		}
	}
}

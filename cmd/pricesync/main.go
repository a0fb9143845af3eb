// Package main однократно переносит цены подарков из внешнего источника в рынки.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mmeshcher/giftfutures/internal/config"
	"github.com/mmeshcher/giftfutures/internal/market"
	"github.com/mmeshcher/giftfutures/internal/oracle"
	"github.com/mmeshcher/giftfutures/internal/repository"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.ParsePriceSync()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	syncer := oracle.NewSyncer(oracle.NewClient(cfg.PriceFeedURL, cfg.Timeout), market.NewService(repo, logger), 0, logger)

	res, err := syncer.SyncOnce(ctx)
	if err != nil {
		sugar.Fatalw("price sync failed", "error", err)
	}

	sugar.Infow("prices applied",
		"updated_markets", res.UpdatedMarkets,
		"unknown_gifts", res.UnknownGifts,
	)
}

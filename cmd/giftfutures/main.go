// Package main запускает HTTP-сервер кастодиального леджера и фьючерсов на подарки.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/giftfutures/internal/accounting"
	"github.com/mmeshcher/giftfutures/internal/config"
	"github.com/mmeshcher/giftfutures/internal/deposit"
	"github.com/mmeshcher/giftfutures/internal/futures"
	"github.com/mmeshcher/giftfutures/internal/handler"
	"github.com/mmeshcher/giftfutures/internal/market"
	"github.com/mmeshcher/giftfutures/internal/middleware"
	"github.com/mmeshcher/giftfutures/internal/oracle"
	"github.com/mmeshcher/giftfutures/internal/profile"
	"github.com/mmeshcher/giftfutures/internal/repository"
	"github.com/mmeshcher/giftfutures/internal/repository/memory"
	"github.com/mmeshcher/giftfutures/internal/withdrawal"
)

// store — полный набор возможностей хранилища, нужный всем сервисам.
type store interface {
	accounting.Store
	deposit.Store
	withdrawal.Store
	futures.Store
	market.Store
	profile.Store
	handler.Pinger
	Close() error
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)

	repo, err := openStore(cfg, authMiddleware, sugar)
	if err != nil {
		sugar.Fatalw("storage initialization error", "error", err.Error())
	}
	defer repo.Close()

	ledger := accounting.NewService(repo, logger)
	markets := market.NewService(repo, logger)
	services := handler.Services{
		Accounting:  ledger,
		Deposits:    deposit.NewService(repo, ledger, cfg.DepositWalletAddress, logger),
		Withdrawals: withdrawal.NewService(repo, ledger, logger),
		Futures:     futures.NewService(repo, ledger, cfg.MarginCurrency, logger),
		Markets:     markets,
		Profiles:    profile.NewService(repo, logger),
		Health:      repo,
	}

	h := handler.NewHandler(services, handler.Options{
		AdminToken:         cfg.AdminToken,
		TonWebhookSecret:   cfg.TonWebhookSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}, logger, authMiddleware)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Фоновая синхронизация цен рынков
	if cfg.PriceFeedURL != "" {
		syncer := oracle.NewSyncer(oracle.NewClient(cfg.PriceFeedURL, 0), markets, cfg.PriceSyncInterval, logger)
		g.Go(func() error {
			sugar.Infow("starting price sync", "feed", cfg.PriceFeedURL, "interval", cfg.PriceSyncInterval)
			syncer.Run(ctx)
			return nil
		})
	}

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting giftfutures server", "addr", cfg.RunAddress, "margin_currency", cfg.MarginCurrency)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

// openStore подключает PostgreSQL или, без DATABASE_URI, заполненное демо-данными хранилище в памяти.
func openStore(cfg *config.Config, auth *middleware.AuthMiddleware, sugar *zap.SugaredLogger) (store, error) {
	if cfg.DatabaseURI != "" {
		repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}

	mem := memory.New()
	if err := memory.SeedDemo(context.Background(), mem); err != nil {
		return nil, err
	}

	sugar.Warn("DATABASE_URI is empty, using in-memory store with demo data")
	for _, id := range []int64{1, 2} {
		token, err := auth.IssueToken(id, 24*time.Hour)
		if err != nil {
			return nil, fmt.Errorf("issue dev token: %w", err)
		}
		sugar.Infow("dev access token", "userID", id, "deposit_comment", deposit.UserComment(id), "token", token)
	}
	return mem, nil
}

// Package config содержит логику чтения конфигурации сервиса фьючерсов на подарки.
package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mmeshcher/giftfutures/internal/model"
)

// Config содержит параметры конфигурации HTTP-сервиса.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	// JWTSecret — ключ проверки access-токенов сервиса идентификации.
	JWTSecret string `env:"JWT_SECRET"`
	// AdminToken включает административные маршруты. Пустое значение отключает их.
	AdminToken string `env:"ADMIN_TOKEN"`
	// TonWebhookSecret сверяется с заголовком X-Ton-Webhook-Secret. Пустое значение отключает проверку.
	TonWebhookSecret     string         `env:"TON_WEBHOOK_SECRET"`
	DepositWalletAddress string         `env:"TON_PROJECT_WALLET_ADDRESS"`
	MarginCurrency       model.Currency `env:"MARGIN_CURRENCY"`
	CORSAllowedOrigins   []string       `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	// PriceFeedURL включает фоновую синхронизацию цен рынков.
	PriceFeedURL      string        `env:"PRICE_FEED_URL"`
	PriceSyncInterval time.Duration `env:"PRICE_SYNC_INTERVAL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	var margin, origins string
	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, empty for in-memory store")
	flag.StringVar(&cfg.JWTSecret, "j", "", "secret for access token verification")
	flag.StringVar(&cfg.AdminToken, "t", "", "admin bearer token")
	flag.StringVar(&cfg.TonWebhookSecret, "w", "", "TON webhook shared secret")
	flag.StringVar(&cfg.DepositWalletAddress, "deposit-address", "", "project wallet address for deposits")
	flag.StringVar(&margin, "margin-currency", string(model.BaseCurrency), "currency of futures margin")
	flag.StringVar(&origins, "cors", "", "comma separated list of allowed CORS origins")
	flag.StringVar(&cfg.PriceFeedURL, "f", "", "price feed URL, empty disables price sync")
	flag.DurationVar(&cfg.PriceSyncInterval, "price-interval", time.Minute, "price sync interval")

	flag.Parse()

	cfg.MarginCurrency = model.Currency(margin)
	cfg.CORSAllowedOrigins = splitList(origins)

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.PriceSyncInterval <= 0 {
		cfg.PriceSyncInterval = time.Minute
	}

	currency, err := model.ParseCurrency(string(cfg.MarginCurrency))
	if err != nil {
		return nil, fmt.Errorf("margin currency: %w", err)
	}
	cfg.MarginCurrency = currency

	return cfg, nil
}

// PriceSyncConfig содержит параметры утилиты синхронизации цен.
type PriceSyncConfig struct {
	DatabaseURI  string        `env:"DATABASE_URI"`
	PriceFeedURL string        `env:"PRICE_FEED_URL"`
	Timeout      time.Duration `env:"PRICE_FEED_TIMEOUT"`
}

// ParsePriceSync считывает конфигурацию утилиты синхронизации цен.
func ParsePriceSync() (*PriceSyncConfig, error) {
	cfg := &PriceSyncConfig{}

	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.PriceFeedURL, "f", "", "price feed URL")
	flag.DurationVar(&cfg.Timeout, "timeout", 15*time.Second, "price feed request timeout")

	flag.Parse()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI is required")
	}
	if cfg.PriceFeedURL == "" {
		return nil, fmt.Errorf("price feed URL is required")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var res []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			res = append(res, p)
		}
	}
	return res
}

// Package profile выдаёт данные пользователя и управляет привязкой его кошелька TON.
package profile

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/giftfutures/internal/model"
	"github.com/mmeshcher/giftfutures/internal/validation"
)

// ErrInvalidAddress возвращается для строки, не похожей на адрес TON.
var ErrInvalidAddress = fmt.Errorf("invalid TON address: %w", model.ErrInvalidInput)

// Store описывает хранилище пользователей.
type Store interface {
	GetUser(ctx context.Context, userID int64) (*model.User, error)
	SetUserWallet(ctx context.Context, userID int64, address *string) (*model.User, error)
}

// Service отвечает за профиль пользователя.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService создаёт сервис профиля.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Get возвращает профиль пользователя.
func (s *Service) Get(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	return u, nil
}

// ConnectWallet привязывает адрес TON к пользователю, заменяя прежний.
func (s *Service) ConnectWallet(ctx context.Context, userID int64, address string) (*model.User, error) {
	address = strings.TrimSpace(address)
	if !validation.IsValidTONAddress(address) {
		return nil, ErrInvalidAddress
	}

	u, err := s.store.SetUserWallet(ctx, userID, &address)
	if err != nil {
		return nil, fmt.Errorf("connect wallet for user %d: %w", userID, err)
	}

	s.logger.Info("wallet connected",
		zap.String("event", "wallet_connected"),
		zap.Int64("userID", userID),
	)
	return u, nil
}

// DisconnectWallet отвязывает кошелёк. Повторный вызов без привязанного кошелька не ошибка.
func (s *Service) DisconnectWallet(ctx context.Context, userID int64) error {
	if _, err := s.store.SetUserWallet(ctx, userID, nil); err != nil {
		return fmt.Errorf("disconnect wallet for user %d: %w", userID, err)
	}

	s.logger.Info("wallet disconnected",
		zap.String("event", "wallet_disconnected"),
		zap.Int64("userID", userID),
	)
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package shop

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/chattermon/chattermon/internal/game"
	"github.com/chattermon/chattermon/internal/observability"
)

// ServiceConfig holds dependencies for the shop Service.
type ServiceConfig struct {
	Users     game.UserRepository
	Inventory game.InventoryRepository
	Tx        game.Transactor
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

// Service sells items: it debits coins and grants inventory stacks in
// one transaction.
type Service struct {
	users     game.UserRepository
	inventory game.InventoryRepository
	tx        game.Transactor
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewService creates a shop Service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetrics(nil)
	}
	return &Service{
		users:     cfg.Users,
		inventory: cfg.Inventory,
		tx:        cfg.Tx,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
}

// PurchaseResult describes a completed purchase.
type PurchaseResult struct {
	Item     Item
	Quantity int64
	Cost     int64

	// Balance is the buyer's coin balance after the purchase.
	Balance int64
}

// Purchase debits the item's price and grants the stack. The debit is
// balance-guarded and shares a transaction with the grant, so a buyer
// who cannot cover the cost neither pays nor receives anything.
func (s *Service) Purchase(ctx context.Context, userID ulid.ULID, itemCode string, quantity int64) (*PurchaseResult, error) {
	if quantity <= 0 {
		return nil, &game.ValidationError{Field: "quantity", Message: "must be positive"}
	}
	item, ok := Lookup(itemCode)
	if !ok {
		return nil, oops.Code("SHOP_UNKNOWN_ITEM").With("item_code", itemCode).Wrap(game.ErrNotFound)
	}
	cost := item.Price * quantity

	err := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.SpendCoins(ctx, userID, cost); err != nil {
			return err
		}
		return s.inventory.Grant(ctx, userID, item.Code, quantity)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.PurchasesTotal.WithLabelValues(item.Code).Inc()

	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("item purchased",
		"user_id", userID.String(),
		"item_code", item.Code,
		"quantity", quantity,
		"cost", cost)
	return &PurchaseResult{Item: item, Quantity: quantity, Cost: cost, Balance: u.Coins}, nil
}

// Inventory returns a user's item stacks.
func (s *Service) Inventory(ctx context.Context, userID ulid.ULID) ([]game.InventoryEntry, error) {
	return s.inventory.List(ctx, userID)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

// Package trade implements the trade escrow: propose, counter-offer,
// confirm, and all-or-nothing settlement.
package trade

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/chattermon/chattermon/internal/coord"
	"github.com/chattermon/chattermon/internal/game"
	"github.com/chattermon/chattermon/internal/observability"
)

// Config holds trade engine tuning.
type Config struct {
	// OfferDeadline is how long a trade stays open before lazy expiry.
	OfferDeadline time.Duration

	// LockTTL bounds how long a crashed party can hold a trade lock.
	LockTTL time.Duration
}

// DefaultConfig returns production trade tuning.
func DefaultConfig() Config {
	return Config{
		OfferDeadline: 15 * time.Minute,
		LockTTL:       10 * time.Second,
	}
}

// ServiceConfig holds dependencies for the trade Service.
type ServiceConfig struct {
	Trades    game.TradeRepository
	Creatures game.CreatureRepository
	Tx        game.Transactor
	Coord     coord.Store
	Config    Config
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

// Service is the trade engine.
type Service struct {
	trades    game.TradeRepository
	creatures game.CreatureRepository
	tx        game.Transactor
	coord     coord.Store
	cfg       Config
	logger    *slog.Logger
	metrics   *observability.Metrics

	// now is injectable for tests.
	now func() time.Time
}

// NewService creates a trade Service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetrics(nil)
	}
	return &Service{
		trades:    cfg.Trades,
		creatures: cfg.Creatures,
		tx:        cfg.Tx,
		coord:     cfg.Coord,
		cfg:       cfg.Config,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		now:       time.Now,
	}
}

// SetClock overrides the service clock. Test use only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Propose opens a trade: the proposer offers a set of their creatures to
// a counterparty. Ownership is validated here and again at settlement;
// the second check is the one that counts.
func (s *Service) Propose(ctx context.Context, proposerID, counterpartyID ulid.ULID, offer []ulid.ULID) (*game.Trade, error) {
	t := &game.Trade{
		ID:             ulid.Make(),
		ProposerID:     proposerID,
		CounterpartyID: counterpartyID,
		ProposerOffer:  offer,
		Status:         game.TradeProposed,
		ExpiresAt:      s.now().Add(s.cfg.OfferDeadline),
		CreatedAt:      s.now(),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.validateOffer(ctx, proposerID, offer); err != nil {
		return nil, err
	}
	if err := s.trades.Create(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info("trade proposed",
		"trade_id", t.ID.String(),
		"proposer_id", proposerID.String(),
		"counterparty_id", counterpartyID.String(),
		"offer_size", len(offer))
	return t, nil
}

// AddCounterOffer sets the counterparty's offer. Changing an offer
// voids any confirmations already given: both parties must re-approve
// what is actually on the table.
func (s *Service) AddCounterOffer(ctx context.Context, tradeID, userID ulid.ULID, offer []ulid.ULID) (*game.Trade, error) {
	return s.withTrade(ctx, tradeID, func(ctx context.Context, t *game.Trade) error {
		if t.CounterpartyID != userID {
			return oops.Code("TRADE_NOT_COUNTERPARTY").With("trade_id", tradeID.String()).Wrap(game.ErrNotFound)
		}
		if len(offer) == 0 {
			return &game.ValidationError{Field: "offer", Message: "cannot be empty"}
		}
		if err := s.validateOffer(ctx, userID, offer); err != nil {
			return err
		}
		t.CounterpartyOffer = offer
		t.ProposerConfirmed = false
		t.CounterpartyConfirmed = false
		// Both offers are on the table now.
		t.Status = game.TradePartiallyConfirmed
		return s.trades.Update(ctx, t)
	})
}

// Confirm records a party's approval. Confirmation requires both offers
// to be on the table, and re-confirming is a no-op. The second
// confirmation settles the trade: every offered creature is
// re-validated and transferred in one transaction, so either every
// creature changes hands or none does. A stale offer cancels the trade.
func (s *Service) Confirm(ctx context.Context, tradeID, userID ulid.ULID) (*game.Trade, error) {
	return s.withTrade(ctx, tradeID, func(ctx context.Context, t *game.Trade) error {
		if !t.IsParty(userID) {
			return oops.Code("TRADE_NOT_PARTY").With("trade_id", tradeID.String()).Wrap(game.ErrNotFound)
		}
		if len(t.CounterpartyOffer) == 0 {
			return oops.Code("TRADE_OFFER_INCOMPLETE").
				With("trade_id", tradeID.String()).
				Wrap(game.ErrInvalidTransition)
		}
		if t.Confirmed(userID) {
			// Idempotent: double-submit changes nothing.
			return nil
		}

		switch userID {
		case t.ProposerID:
			t.ProposerConfirmed = true
		case t.CounterpartyID:
			t.CounterpartyConfirmed = true
		}

		if !t.BothConfirmed() {
			return s.trades.Update(ctx, t)
		}

		if err := s.settle(ctx, t); err != nil {
			if errors.Is(err, game.ErrStaleOffer) {
				// No creature moved; the escrow is void.
				t.Status = game.TradeCancelled
				if updErr := s.trades.Update(ctx, t); updErr != nil {
					return updErr
				}
				s.metrics.TradesTotal.WithLabelValues("stale").Inc()
			}
			return err
		}
		s.metrics.TradesTotal.WithLabelValues("confirmed").Inc()
		s.logger.Info("trade settled", "trade_id", t.ID.String())
		return nil
	})
}

// Cancel voids a non-terminal trade. Either party may cancel.
func (s *Service) Cancel(ctx context.Context, tradeID, userID ulid.ULID) (*game.Trade, error) {
	return s.withTrade(ctx, tradeID, func(ctx context.Context, t *game.Trade) error {
		if !t.IsParty(userID) {
			return oops.Code("TRADE_NOT_PARTY").With("trade_id", tradeID.String()).Wrap(game.ErrNotFound)
		}
		t.Status = game.TradeCancelled
		if err := s.trades.Update(ctx, t); err != nil {
			return err
		}
		s.metrics.TradesTotal.WithLabelValues("cancelled").Inc()
		return nil
	})
}

// Get returns a trade, applying lazy expiry.
func (s *Service) Get(ctx context.Context, tradeID ulid.ULID) (*game.Trade, error) {
	t, err := s.trades.Get(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !t.Status.Terminal() && t.ExpiredAt(s.now()) {
		t.Status = game.TradeExpired
		if err := s.trades.Update(ctx, t); err != nil {
			return nil, err
		}
		s.metrics.TradesTotal.WithLabelValues("expired").Inc()
	}
	return t, nil
}

// withTrade runs fn on a locked, live trade: lock, load, lazy expiry,
// terminal-state check.
func (s *Service) withTrade(ctx context.Context, tradeID ulid.ULID, fn func(ctx context.Context, t *game.Trade) error) (*game.Trade, error) {
	lockKey := coord.TradeLockKey(tradeID)
	token, ok, err := s.coord.AcquireLock(ctx, lockKey, s.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, oops.Code("TRADE_CONTENDED").With("trade_id", tradeID.String()).Wrap(game.ErrContended)
	}
	defer func() {
		if relErr := s.coord.ReleaseLock(ctx, lockKey, token); relErr != nil {
			s.logger.Warn("trade lock release failed", "trade_id", tradeID.String(), "error", relErr)
		}
	}()

	t, err := s.trades.Get(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if t.Status.Terminal() {
		return nil, oops.Code("TRADE_TERMINAL").
			With("trade_id", tradeID.String()).
			With("status", t.Status.String()).
			Wrap(game.ErrInvalidTransition)
	}
	if t.ExpiredAt(s.now()) {
		t.Status = game.TradeExpired
		if err := s.trades.Update(ctx, t); err != nil {
			return nil, err
		}
		s.metrics.TradesTotal.WithLabelValues("expired").Inc()
		return nil, oops.Code("TRADE_EXPIRED").With("trade_id", tradeID.String()).Wrap(game.ErrExpired)
	}

	if err := fn(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// settle transfers both offer sets in a single transaction and marks the
// trade CONFIRMED. The owner-guarded transfer writes are the
// re-validation: any creature no longer owned by its offeror fails the
// guard, rolls everything back, and surfaces ErrStaleOffer.
func (s *Service) settle(ctx context.Context, t *game.Trade) error {
	return s.tx.InTransaction(ctx, func(ctx context.Context) error {
		for _, id := range t.ProposerOffer {
			if err := s.creatures.TransferOwnership(ctx, id, t.ProposerID, t.CounterpartyID); err != nil {
				return err
			}
		}
		for _, id := range t.CounterpartyOffer {
			if err := s.creatures.TransferOwnership(ctx, id, t.CounterpartyID, t.ProposerID); err != nil {
				return err
			}
		}
		t.Status = game.TradeConfirmed
		return s.trades.Update(ctx, t)
	})
}

// validateOffer checks that every offered creature exists, is owned by
// the offeror, and appears only once.
func (s *Service) validateOffer(ctx context.Context, ownerID ulid.ULID, offer []ulid.ULID) error {
	seen := make(map[ulid.ULID]struct{}, len(offer))
	for _, id := range offer {
		if _, dup := seen[id]; dup {
			return &game.ValidationError{Field: "offer", Message: "duplicate creature in offer"}
		}
		seen[id] = struct{}{}

		c, err := s.creatures.Get(ctx, id)
		if err != nil {
			return err
		}
		if !c.OwnedBy(ownerID) {
			return oops.Code("TRADE_NOT_OWNER").
				With("creature_id", id.String()).
				With("user_id", ownerID.String()).
				Wrap(game.ErrStaleOffer)
		}
	}
	return nil
}

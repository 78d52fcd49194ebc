// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/chattermon/chattermon/internal/game"
)

// TradeRepository implements game.TradeRepository using PostgreSQL.
type TradeRepository struct {
	db DB
}

// NewTradeRepository creates a new TradeRepository.
func NewTradeRepository(db DB) *TradeRepository {
	return &TradeRepository{db: db}
}

const tradeColumns = `id, proposer_id, counterparty_id, proposer_offer, counterparty_offer,
	proposer_confirmed, counterparty_confirmed, status, expires_at, created_at`

// Get retrieves a trade by ID.
func (r *TradeRepository) Get(ctx context.Context, id ulid.ULID) (*game.Trade, error) {
	row := q(ctx, r.db).QueryRow(ctx, `
		SELECT `+tradeColumns+` FROM trades WHERE id = $1
	`, id.String())
	t, err := scanTradeRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TRADE_NOT_FOUND").With("id", id.String()).Wrap(game.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get trade").With("id", id.String()).Wrap(err)
	}
	return t, nil
}

// Create persists a new trade.
// Callers must validate the trade before calling this method.
func (r *TradeRepository) Create(ctx context.Context, t *game.Trade) error {
	_, err := q(ctx, r.db).Exec(ctx, `
		INSERT INTO trades (`+tradeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, t.ID.String(), t.ProposerID.String(), t.CounterpartyID.String(),
		ulidsToStrings(t.ProposerOffer), ulidsToStrings(t.CounterpartyOffer),
		t.ProposerConfirmed, t.CounterpartyConfirmed, string(t.Status), t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return oops.With("operation", "create trade").With("id", t.ID.String()).Wrap(err)
	}
	return nil
}

// Update writes offers, confirmation flags, and status.
func (r *TradeRepository) Update(ctx context.Context, t *game.Trade) error {
	result, err := q(ctx, r.db).Exec(ctx, `
		UPDATE trades SET proposer_offer = $2, counterparty_offer = $3,
		proposer_confirmed = $4, counterparty_confirmed = $5, status = $6
		WHERE id = $1
	`, t.ID.String(), ulidsToStrings(t.ProposerOffer), ulidsToStrings(t.CounterpartyOffer),
		t.ProposerConfirmed, t.CounterpartyConfirmed, string(t.Status))
	if err != nil {
		return oops.With("operation", "update trade").With("id", t.ID.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("TRADE_NOT_FOUND").With("id", t.ID.String()).Wrap(game.ErrNotFound)
	}
	return nil
}

// scanTradeRow scans a single trade from a row.
func scanTradeRow(row pgx.Row) (*game.Trade, error) {
	var t game.Trade
	var idStr, proposerStr, counterpartyStr, statusStr string
	var proposerOffer, counterpartyOffer []string

	err := row.Scan(
		&idStr, &proposerStr, &counterpartyStr, &proposerOffer, &counterpartyOffer,
		&t.ProposerConfirmed, &t.CounterpartyConfirmed, &statusStr, &t.ExpiresAt, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = game.TradeStatus(statusStr)
	t.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.With("operation", "parse trade id").With("id", idStr).Wrap(err)
	}
	t.ProposerID, err = ulid.Parse(proposerStr)
	if err != nil {
		return nil, oops.With("operation", "parse proposer_id").With("proposer_id", proposerStr).Wrap(err)
	}
	t.CounterpartyID, err = ulid.Parse(counterpartyStr)
	if err != nil {
		return nil, oops.With("operation", "parse counterparty_id").With("counterparty_id", counterpartyStr).Wrap(err)
	}
	t.ProposerOffer, err = parseULIDs(proposerOffer, "proposer_offer")
	if err != nil {
		return nil, err
	}
	t.CounterpartyOffer, err = parseULIDs(counterpartyOffer, "counterparty_offer")
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Compile-time interface check.
var _ game.TradeRepository = (*TradeRepository)(nil)

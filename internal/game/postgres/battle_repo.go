// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/chattermon/chattermon/internal/game"
)

// BattleRepository implements game.BattleRepository using PostgreSQL.
// Combat state lives in a jsonb document; the relational columns exist
// for lookups only. Whole-document writes are safe because the engine
// serializes turns with a per-battle lock.
type BattleRepository struct {
	db DB
}

// NewBattleRepository creates a new BattleRepository.
func NewBattleRepository(db DB) *BattleRepository {
	return &BattleRepository{db: db}
}

// battleState is the jsonb combat document.
type battleState struct {
	Sides   [2]game.BattleSide    `json:"sides"`
	Turn    int                   `json:"turn"`
	Pending [2]*game.Action       `json:"pending"`
	Log     []game.ResolvedAction `json:"log"`
	Winner  *int                  `json:"winner,omitempty"`
	Seed    int64                 `json:"seed"`
}

// Get retrieves a battle by ID.
func (r *BattleRepository) Get(ctx context.Context, id ulid.ULID) (*game.Battle, error) {
	row := q(ctx, r.db).QueryRow(ctx, `
		SELECT id, status, state, last_activity_at, created_at
		FROM battles WHERE id = $1
	`, id.String())
	b, err := scanBattleRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("BATTLE_NOT_FOUND").With("id", id.String()).Wrap(game.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get battle").With("id", id.String()).Wrap(err)
	}
	return b, nil
}

// Create persists a new battle.
func (r *BattleRepository) Create(ctx context.Context, b *game.Battle) error {
	state, err := marshalBattleState(b)
	if err != nil {
		return err
	}
	_, err = q(ctx, r.db).Exec(ctx, `
		INSERT INTO battles (id, status, user_a, user_b, state, last_activity_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, b.ID.String(), string(b.Status),
		ulidToStringPtr(b.Sides[game.SideA].UserID), ulidToStringPtr(b.Sides[game.SideB].UserID),
		state, b.LastActivityAt, b.CreatedAt)
	if err != nil {
		return oops.With("operation", "create battle").With("id", b.ID.String()).Wrap(err)
	}
	return nil
}

// Update writes the battle's full state document.
func (r *BattleRepository) Update(ctx context.Context, b *game.Battle) error {
	state, err := marshalBattleState(b)
	if err != nil {
		return err
	}
	result, err := q(ctx, r.db).Exec(ctx, `
		UPDATE battles SET status = $2, state = $3, last_activity_at = $4 WHERE id = $1
	`, b.ID.String(), string(b.Status), state, b.LastActivityAt)
	if err != nil {
		return oops.With("operation", "update battle").With("id", b.ID.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("BATTLE_NOT_FOUND").With("id", b.ID.String()).Wrap(game.ErrNotFound)
	}
	return nil
}

// ActiveForUser returns the user's IN_PROGRESS battle, if any.
func (r *BattleRepository) ActiveForUser(ctx context.Context, userID ulid.ULID) (*game.Battle, error) {
	row := q(ctx, r.db).QueryRow(ctx, `
		SELECT id, status, state, last_activity_at, created_at
		FROM battles
		WHERE status = $2 AND (user_a = $1 OR user_b = $1)
		ORDER BY created_at DESC LIMIT 1
	`, userID.String(), string(game.BattleInProgress))
	b, err := scanBattleRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("BATTLE_NOT_FOUND").With("user_id", userID.String()).Wrap(game.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get active battle").With("user_id", userID.String()).Wrap(err)
	}
	return b, nil
}

// marshalBattleState serializes the combat document for the jsonb state
// column.
func marshalBattleState(b *game.Battle) ([]byte, error) {
	doc := battleState{
		Sides:   b.Sides,
		Turn:    b.Turn,
		Pending: b.Pending,
		Log:     b.Log,
		Winner:  b.Winner,
		Seed:    b.Seed,
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, oops.With("operation", "marshal battle state").With("id", b.ID.String()).Wrap(err)
	}
	return out, nil
}

// scanBattleRow scans a single battle from a row.
func scanBattleRow(row pgx.Row) (*game.Battle, error) {
	var b game.Battle
	var idStr, statusStr string
	var state []byte

	err := row.Scan(&idStr, &statusStr, &state, &b.LastActivityAt, &b.CreatedAt)
	if err != nil {
		return nil, err
	}

	b.Status = game.BattleStatus(statusStr)
	b.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.With("operation", "parse battle id").With("id", idStr).Wrap(err)
	}

	var doc battleState
	if err := json.Unmarshal(state, &doc); err != nil {
		return nil, oops.With("operation", "unmarshal battle state").With("id", idStr).Wrap(err)
	}
	b.Sides = doc.Sides
	b.Turn = doc.Turn
	b.Pending = doc.Pending
	b.Log = doc.Log
	b.Winner = doc.Winner
	b.Seed = doc.Seed
	return &b, nil
}

// Compile-time interface check.
var _ game.BattleRepository = (*BattleRepository)(nil)

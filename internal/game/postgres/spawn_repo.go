// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/chattermon/chattermon/internal/game"
)

// SpawnRepository implements game.SpawnRepository using PostgreSQL.
type SpawnRepository struct {
	db DB
}

// NewSpawnRepository creates a new SpawnRepository.
func NewSpawnRepository(db DB) *SpawnRepository {
	return &SpawnRepository{db: db}
}

const spawnColumns = `id, chat_id, species_code, level, shiny, status, caught_by, spawned_at, expires_at`

// Get retrieves a spawn by ID.
func (r *SpawnRepository) Get(ctx context.Context, id ulid.ULID) (*game.Spawn, error) {
	row := q(ctx, r.db).QueryRow(ctx, `
		SELECT `+spawnColumns+` FROM spawns WHERE id = $1
	`, id.String())
	s, err := scanSpawnRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SPAWN_NOT_FOUND").With("id", id.String()).Wrap(game.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get spawn").With("id", id.String()).Wrap(err)
	}
	return s, nil
}

// Create persists a new spawn.
// Callers must validate the spawn before calling this method.
func (r *SpawnRepository) Create(ctx context.Context, s *game.Spawn) error {
	_, err := q(ctx, r.db).Exec(ctx, `
		INSERT INTO spawns (`+spawnColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, s.ID.String(), s.ChatID, s.SpeciesCode, s.Level, s.Shiny,
		string(s.Status), ulidToStringPtr(s.CaughtBy), s.SpawnedAt, s.ExpiresAt)
	if err != nil {
		return oops.With("operation", "create spawn").With("id", s.ID.String()).Wrap(err)
	}
	return nil
}

// ActiveInChat returns the most recent ACTIVE, unexpired spawn in a chat.
func (r *SpawnRepository) ActiveInChat(ctx context.Context, chatID string, now time.Time) (*game.Spawn, error) {
	row := q(ctx, r.db).QueryRow(ctx, `
		SELECT `+spawnColumns+` FROM spawns
		WHERE chat_id = $1 AND status = $2 AND expires_at > $3
		ORDER BY spawned_at DESC LIMIT 1
	`, chatID, string(game.SpawnActive), now)
	s, err := scanSpawnRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SPAWN_NOT_FOUND").With("chat_id", chatID).Wrap(game.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get active spawn").With("chat_id", chatID).Wrap(err)
	}
	return s, nil
}

// MarkCaught transitions ACTIVE -> CAUGHT. The status guard means the
// write itself arbitrates ties: of any number of concurrent claimants,
// exactly one flips the row.
func (r *SpawnRepository) MarkCaught(ctx context.Context, id, caughtBy ulid.ULID) error {
	result, err := q(ctx, r.db).Exec(ctx, `
		UPDATE spawns SET status = $3, caught_by = $2 WHERE id = $1 AND status = $4
	`, id.String(), caughtBy.String(), string(game.SpawnCaught), string(game.SpawnActive))
	if err != nil {
		return oops.With("operation", "mark spawn caught").With("id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SPAWN_ALREADY_CLAIMED").With("id", id.String()).Wrap(game.ErrAlreadyClaimed)
	}
	return nil
}

// MarkExpired transitions ACTIVE -> EXPIRED. A no-op when the spawn
// already reached a terminal state, so lazy expiry racing a claim never
// clobbers CAUGHT.
func (r *SpawnRepository) MarkExpired(ctx context.Context, id ulid.ULID) error {
	_, err := q(ctx, r.db).Exec(ctx, `
		UPDATE spawns SET status = $2 WHERE id = $1 AND status = $3
	`, id.String(), string(game.SpawnExpired), string(game.SpawnActive))
	if err != nil {
		return oops.With("operation", "mark spawn expired").With("id", id.String()).Wrap(err)
	}
	return nil
}

// scanSpawnRow scans a single spawn from a row.
func scanSpawnRow(row pgx.Row) (*game.Spawn, error) {
	var s game.Spawn
	var idStr, statusStr string
	var caughtByStr *string

	err := row.Scan(
		&idStr, &s.ChatID, &s.SpeciesCode, &s.Level, &s.Shiny,
		&statusStr, &caughtByStr, &s.SpawnedAt, &s.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	s.Status = game.SpawnStatus(statusStr)
	s.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.With("operation", "parse spawn id").With("id", idStr).Wrap(err)
	}
	s.CaughtBy, err = parseOptionalULID(caughtByStr, "caught_by")
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Compile-time interface check.
var _ game.SpawnRepository = (*SpawnRepository)(nil)

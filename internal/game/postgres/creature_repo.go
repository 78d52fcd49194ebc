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

// CreatureRepository implements game.CreatureRepository using PostgreSQL.
type CreatureRepository struct {
	db DB
}

// NewCreatureRepository creates a new CreatureRepository.
func NewCreatureRepository(db DB) *CreatureRepository {
	return &CreatureRepository{db: db}
}

const creatureColumns = `id, owner_id, species_code, nickname, level, experience,
	stats, nature, shiny, in_team, team_slot, revision, created_at`

// Get retrieves a creature by ID.
func (r *CreatureRepository) Get(ctx context.Context, id ulid.ULID) (*game.Creature, error) {
	row := q(ctx, r.db).QueryRow(ctx, `
		SELECT `+creatureColumns+` FROM creatures WHERE id = $1
	`, id.String())
	c, err := scanCreatureRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CREATURE_NOT_FOUND").With("id", id.String()).Wrap(game.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get creature").With("id", id.String()).Wrap(err)
	}
	return c, nil
}

// Create persists a new creature.
// Callers must validate the creature before calling this method.
func (r *CreatureRepository) Create(ctx context.Context, c *game.Creature) error {
	stats, err := marshalStats(c.Stats)
	if err != nil {
		return err
	}
	_, err = q(ctx, r.db).Exec(ctx, `
		INSERT INTO creatures (`+creatureColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, c.ID.String(), ulidToStringPtr(c.OwnerID), c.SpeciesCode, c.Nickname, c.Level, c.Experience,
		stats, c.Nature, c.Shiny, c.InTeam, c.TeamSlot, c.Revision, c.CreatedAt)
	if err != nil {
		return oops.With("operation", "create creature").With("id", c.ID.String()).Wrap(err)
	}
	return nil
}

// ListByOwner returns a user's creatures, newest first, with pagination.
func (r *CreatureRepository) ListByOwner(ctx context.Context, ownerID ulid.ULID, limit, offset int) ([]*game.Creature, error) {
	rows, err := q(ctx, r.db).Query(ctx, `
		SELECT `+creatureColumns+` FROM creatures
		WHERE owner_id = $1 ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, ownerID.String(), limit, offset)
	if err != nil {
		return nil, oops.With("operation", "list creatures by owner").With("owner_id", ownerID.String()).Wrap(err)
	}
	defer rows.Close()

	return scanCreatures(rows)
}

// ListTeam returns a user's active team ordered by slot.
func (r *CreatureRepository) ListTeam(ctx context.Context, ownerID ulid.ULID) ([]*game.Creature, error) {
	rows, err := q(ctx, r.db).Query(ctx, `
		SELECT `+creatureColumns+` FROM creatures
		WHERE owner_id = $1 AND in_team ORDER BY team_slot
	`, ownerID.String())
	if err != nil {
		return nil, oops.With("operation", "list team").With("owner_id", ownerID.String()).Wrap(err)
	}
	defer rows.Close()

	return scanCreatures(rows)
}

// UpdateProgress conditionally writes level, experience, stats, and
// species code. The revision guard makes concurrent awards serialize:
// exactly one writer per revision wins, the rest observe
// ErrRevisionMismatch and retry on a fresh read.
func (r *CreatureRepository) UpdateProgress(ctx context.Context, c *game.Creature, expectedRevision int64) error {
	stats, err := marshalStats(c.Stats)
	if err != nil {
		return err
	}
	result, err := q(ctx, r.db).Exec(ctx, `
		UPDATE creatures SET species_code = $2, level = $3, experience = $4,
		stats = $5, revision = revision + 1
		WHERE id = $1 AND revision = $6
	`, c.ID.String(), c.SpeciesCode, c.Level, c.Experience, stats, expectedRevision)
	if err != nil {
		return oops.With("operation", "update creature progress").With("id", c.ID.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CREATURE_REVISION_MISMATCH").
			With("id", c.ID.String()).
			With("expected_revision", expectedRevision).
			Wrap(game.ErrRevisionMismatch)
	}
	c.Revision = expectedRevision + 1
	return nil
}

// SetNickname updates the nickname if the creature is owned by ownerID.
func (r *CreatureRepository) SetNickname(ctx context.Context, id, ownerID ulid.ULID, nickname string) error {
	result, err := q(ctx, r.db).Exec(ctx, `
		UPDATE creatures SET nickname = $3 WHERE id = $1 AND owner_id = $2
	`, id.String(), ownerID.String(), nickname)
	if err != nil {
		return oops.With("operation", "set nickname").With("id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CREATURE_NOT_FOUND").With("id", id.String()).Wrap(game.ErrNotFound)
	}
	return nil
}

// SetTeam updates team membership if the creature is owned by ownerID.
func (r *CreatureRepository) SetTeam(ctx context.Context, id, ownerID ulid.ULID, inTeam bool, slot *int) error {
	result, err := q(ctx, r.db).Exec(ctx, `
		UPDATE creatures SET in_team = $3, team_slot = $4 WHERE id = $1 AND owner_id = $2
	`, id.String(), ownerID.String(), inTeam, slot)
	if err != nil {
		return oops.With("operation", "set team").With("id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CREATURE_NOT_FOUND").With("id", id.String()).Wrap(game.ErrNotFound)
	}
	return nil
}

// CountTeam returns the size of a user's active team.
func (r *CreatureRepository) CountTeam(ctx context.Context, ownerID ulid.ULID) (int, error) {
	var n int
	err := q(ctx, r.db).QueryRow(ctx, `
		SELECT count(*) FROM creatures WHERE owner_id = $1 AND in_team
	`, ownerID.String()).Scan(&n)
	if err != nil {
		return 0, oops.With("operation", "count team").With("owner_id", ownerID.String()).Wrap(err)
	}
	return n, nil
}

// TransferOwnership reassigns a creature from one owner to another and
// removes it from the old owner's team. The guard on the current owner
// is what makes trade settlement all-or-nothing: a creature traded away
// or released since the offer was made fails the guard.
func (r *CreatureRepository) TransferOwnership(ctx context.Context, id, from, to ulid.ULID) error {
	result, err := q(ctx, r.db).Exec(ctx, `
		UPDATE creatures SET owner_id = $3, in_team = FALSE, team_slot = NULL, nickname = ''
		WHERE id = $1 AND owner_id = $2
	`, id.String(), from.String(), to.String())
	if err != nil {
		return oops.With("operation", "transfer ownership").With("id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CREATURE_STALE_OFFER").
			With("id", id.String()).
			With("from", from.String()).
			Wrap(game.ErrStaleOffer)
	}
	return nil
}

// marshalStats serializes a stat block for the jsonb stats column.
func marshalStats(s game.StatBlock) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, oops.With("operation", "marshal stats").Wrap(err)
	}
	return b, nil
}

// scanCreatureRow scans a single creature from a row.
func scanCreatureRow(row pgx.Row) (*game.Creature, error) {
	var c game.Creature
	var idStr string
	var ownerIDStr *string
	var stats []byte

	err := row.Scan(
		&idStr, &ownerIDStr, &c.SpeciesCode, &c.Nickname, &c.Level, &c.Experience,
		&stats, &c.Nature, &c.Shiny, &c.InTeam, &c.TeamSlot, &c.Revision, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := parseCreatureFields(idStr, ownerIDStr, stats, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// parseCreatureFields converts scan fields to creature fields.
func parseCreatureFields(idStr string, ownerIDStr *string, stats []byte, c *game.Creature) error {
	var err error
	c.ID, err = ulid.Parse(idStr)
	if err != nil {
		return oops.With("operation", "parse creature id").With("id", idStr).Wrap(err)
	}
	c.OwnerID, err = parseOptionalULID(ownerIDStr, "owner_id")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(stats, &c.Stats); err != nil {
		return oops.With("operation", "unmarshal stats").With("id", idStr).Wrap(err)
	}
	return nil
}

func scanCreatures(rows pgx.Rows) ([]*game.Creature, error) {
	creatures := make([]*game.Creature, 0)
	for rows.Next() {
		var c game.Creature
		var idStr string
		var ownerIDStr *string
		var stats []byte

		if err := rows.Scan(
			&idStr, &ownerIDStr, &c.SpeciesCode, &c.Nickname, &c.Level, &c.Experience,
			&stats, &c.Nature, &c.Shiny, &c.InTeam, &c.TeamSlot, &c.Revision, &c.CreatedAt,
		); err != nil {
			return nil, oops.With("operation", "scan creature").Wrap(err)
		}

		if err := parseCreatureFields(idStr, ownerIDStr, stats, &c); err != nil {
			return nil, err
		}

		creatures = append(creatures, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate creatures").Wrap(err)
	}

	return creatures, nil
}

// Compile-time interface check.
var _ game.CreatureRepository = (*CreatureRepository)(nil)

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/chattermon/chattermon/internal/game"
)

// UserRepository implements game.UserRepository using PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, platform_id, trainer_level, experience, coins,
	daily_streak, last_daily_claim, battles_won, battles_lost, creatures_caught, created_at`

// Get retrieves a user by ID.
func (r *UserRepository) Get(ctx context.Context, id ulid.ULID) (*game.User, error) {
	row := q(ctx, r.db).QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id.String())
	u, err := scanUserRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(game.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get user").With("id", id.String()).Wrap(err)
	}
	return u, nil
}

// GetByPlatformID retrieves a user by platform identity.
func (r *UserRepository) GetByPlatformID(ctx context.Context, platformID string) (*game.User, error) {
	row := q(ctx, r.db).QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE platform_id = $1
	`, platformID)
	u, err := scanUserRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("platform_id", platformID).Wrap(game.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get user by platform id").With("platform_id", platformID).Wrap(err)
	}
	return u, nil
}

// Create persists a new user.
// Callers must validate the user before calling this method.
func (r *UserRepository) Create(ctx context.Context, u *game.User) error {
	_, err := q(ctx, r.db).Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, u.ID.String(), u.PlatformID, u.TrainerLevel, u.Experience, u.Coins,
		u.DailyStreak, u.LastDailyClaim, u.BattlesWon, u.BattlesLost, u.CreaturesCaught, u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_DUPLICATE").With("platform_id", u.PlatformID).Wrap(game.ErrDuplicate)
		}
		return oops.With("operation", "create user").With("id", u.ID.String()).Wrap(err)
	}
	return nil
}

// RecordCatch atomically increments the catch counter and trainer
// experience.
func (r *UserRepository) RecordCatch(ctx context.Context, id ulid.ULID, expDelta int64) error {
	result, err := q(ctx, r.db).Exec(ctx, `
		UPDATE users SET creatures_caught = creatures_caught + 1, experience = experience + $2
		WHERE id = $1
	`, id.String(), expDelta)
	if err != nil {
		return oops.With("operation", "record catch").With("id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(game.ErrNotFound)
	}
	return nil
}

// AddExperience atomically adds trainer experience.
func (r *UserRepository) AddExperience(ctx context.Context, id ulid.ULID, expDelta int64) error {
	result, err := q(ctx, r.db).Exec(ctx, `
		UPDATE users SET experience = experience + $2 WHERE id = $1
	`, id.String(), expDelta)
	if err != nil {
		return oops.With("operation", "add experience").With("id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(game.ErrNotFound)
	}
	return nil
}

// RecordBattleResult atomically increments the win or loss counter.
func (r *UserRepository) RecordBattleResult(ctx context.Context, id ulid.ULID, won bool) error {
	column := "battles_lost"
	if won {
		column = "battles_won"
	}
	result, err := q(ctx, r.db).Exec(ctx, `
		UPDATE users SET `+column+` = `+column+` + 1 WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.With("operation", "record battle result").With("id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(game.ErrNotFound)
	}
	return nil
}

// RaiseTrainerLevel sets the trainer level if it is currently lower. The
// guarded write keeps level monotonic under concurrent awards; losing
// the guard is not an error.
func (r *UserRepository) RaiseTrainerLevel(ctx context.Context, id ulid.ULID, level int) error {
	_, err := q(ctx, r.db).Exec(ctx, `
		UPDATE users SET trainer_level = $2 WHERE id = $1 AND trainer_level < $2
	`, id.String(), level)
	if err != nil {
		return oops.With("operation", "raise trainer level").With("id", id.String()).Wrap(err)
	}
	return nil
}

// RecordDailyClaim sets the streak, claim timestamp, and coin/exp payout
// in a single write.
func (r *UserRepository) RecordDailyClaim(ctx context.Context, id ulid.ULID, streak int, claimedAt time.Time, coins, exp int64) error {
	result, err := q(ctx, r.db).Exec(ctx, `
		UPDATE users SET daily_streak = $2, last_daily_claim = $3,
		coins = coins + $4, experience = experience + $5
		WHERE id = $1
	`, id.String(), streak, claimedAt, coins, exp)
	if err != nil {
		return oops.With("operation", "record daily claim").With("id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(game.ErrNotFound)
	}
	return nil
}

// SpendCoins atomically debits a user's balance. The guard keeps the
// balance non-negative under concurrent spends; an existing user whose
// balance cannot cover the amount reports ErrInsufficientFunds.
func (r *UserRepository) SpendCoins(ctx context.Context, id ulid.ULID, amount int64) error {
	result, err := q(ctx, r.db).Exec(ctx, `
		UPDATE users SET coins = coins - $2 WHERE id = $1 AND coins >= $2
	`, id.String(), amount)
	if err != nil {
		return oops.With("operation", "spend coins").With("id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_INSUFFICIENT_FUNDS").
			With("id", id.String()).
			With("amount", amount).
			Wrap(game.ErrInsufficientFunds)
	}
	return nil
}

// scanUserRow scans a single user from a row.
func scanUserRow(row pgx.Row) (*game.User, error) {
	var u game.User
	var idStr string

	err := row.Scan(
		&idStr, &u.PlatformID, &u.TrainerLevel, &u.Experience, &u.Coins,
		&u.DailyStreak, &u.LastDailyClaim, &u.BattlesWon, &u.BattlesLost, &u.CreaturesCaught, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.With("operation", "parse user id").With("id", idStr).Wrap(err)
	}
	return &u, nil
}

// Compile-time interface check.
var _ game.UserRepository = (*UserRepository)(nil)

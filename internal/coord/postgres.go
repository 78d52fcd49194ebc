// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package coord

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// DB abstracts the pgx pool surface the store needs. Satisfied by
// *pgxpool.Pool and by pgxmock pools in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on a single coord_entries table. All
// primitives are single atomic statements evaluated against the
// database clock, so concurrent workers see one consistent arbiter.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// AcquireLock implements Store. The upsert succeeds only when no row
// exists or the existing row has expired; a live lock leaves the row
// untouched and reports zero rows affected.
func (s *PostgresStore) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := newToken()
	tag, err := s.db.Exec(ctx, `
		INSERT INTO coord_entries (key, token, expires_at)
		VALUES ($1, $2, now() + make_interval(secs => $3))
		ON CONFLICT (key) DO UPDATE
		SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at
		WHERE coord_entries.expires_at <= now()
	`, key, token, ttl.Seconds())
	if err != nil {
		return "", false, oops.Code("COORD_ACQUIRE_FAILED").With("key", key).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseLock implements Store. Deleting is conditional on the token so
// a holder whose lock expired and was re-acquired cannot release the new
// holder's lock.
func (s *PostgresStore) ReleaseLock(ctx context.Context, key, token string) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM coord_entries WHERE key = $1 AND token = $2
	`, key, token)
	if err != nil {
		return oops.Code("COORD_RELEASE_FAILED").With("key", key).Wrap(err)
	}
	return nil
}

// SetCooldown implements Store.
func (s *PostgresStore) SetCooldown(ctx context.Context, key string, ttl time.Duration) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO coord_entries (key, token, expires_at)
		VALUES ($1, '', now() + make_interval(secs => $2))
		ON CONFLICT (key) DO UPDATE
		SET expires_at = EXCLUDED.expires_at
	`, key, ttl.Seconds())
	if err != nil {
		return oops.Code("COORD_COOLDOWN_FAILED").With("key", key).Wrap(err)
	}
	return nil
}

// OnCooldown implements Store.
func (s *PostgresStore) OnCooldown(ctx context.Context, key string) (bool, error) {
	var live bool
	err := s.db.QueryRow(ctx, `
		SELECT expires_at > now() FROM coord_entries WHERE key = $1
	`, key).Scan(&live)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, oops.Code("COORD_CHECK_FAILED").With("key", key).Wrap(err)
	}
	return live, nil
}

// SweepExpired deletes rows past their TTL and returns how many were
// removed. A safety net against abandoned entries; expiry itself is
// always decided by the TTL comparison in the primitives above.
func (s *PostgresStore) SweepExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM coord_entries WHERE expires_at <= now()`)
	if err != nil {
		return 0, oops.Code("COORD_SWEEP_FAILED").Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package postgres

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/chattermon/chattermon/internal/game"
)

// InventoryRepository implements game.InventoryRepository using PostgreSQL.
type InventoryRepository struct {
	db DB
}

// NewInventoryRepository creates a new InventoryRepository.
func NewInventoryRepository(db DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// Grant adds quantity to a user's stack, creating the row when absent.
func (r *InventoryRepository) Grant(ctx context.Context, userID ulid.ULID, itemCode string, quantity int64) error {
	_, err := q(ctx, r.db).Exec(ctx, `
		INSERT INTO inventory (user_id, item_code, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, item_code) DO UPDATE
		SET quantity = inventory.quantity + EXCLUDED.quantity
	`, userID.String(), itemCode, quantity)
	if err != nil {
		return oops.With("operation", "grant item").
			With("user_id", userID.String()).
			With("item_code", itemCode).
			Wrap(err)
	}
	return nil
}

// List returns a user's non-empty stacks ordered by item code.
func (r *InventoryRepository) List(ctx context.Context, userID ulid.ULID) ([]game.InventoryEntry, error) {
	rows, err := q(ctx, r.db).Query(ctx, `
		SELECT item_code, quantity FROM inventory
		WHERE user_id = $1 AND quantity > 0
		ORDER BY item_code
	`, userID.String())
	if err != nil {
		return nil, oops.With("operation", "list inventory").With("user_id", userID.String()).Wrap(err)
	}
	defer rows.Close()

	entries := make([]game.InventoryEntry, 0)
	for rows.Next() {
		e := game.InventoryEntry{UserID: userID}
		if err := rows.Scan(&e.ItemCode, &e.Quantity); err != nil {
			return nil, oops.With("operation", "scan inventory entry").With("user_id", userID.String()).Wrap(err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "list inventory").With("user_id", userID.String()).Wrap(err)
	}
	return entries, nil
}

// Compile-time interface check.
var _ game.InventoryRepository = (*InventoryRepository)(nil)

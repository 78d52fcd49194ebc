// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package game

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// UserRepository manages trainer persistence.
type UserRepository interface {
	// Get retrieves a user by ID.
	Get(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByPlatformID retrieves a user by platform identity.
	GetByPlatformID(ctx context.Context, platformID string) (*User, error)

	// Create persists a new user. Platform identity is unique.
	Create(ctx context.Context, u *User) error

	// RecordCatch atomically increments the catch counter and trainer
	// experience.
	RecordCatch(ctx context.Context, id ulid.ULID, expDelta int64) error

	// AddExperience atomically adds trainer experience.
	AddExperience(ctx context.Context, id ulid.ULID, expDelta int64) error

	// RecordBattleResult atomically increments the win or loss counter.
	RecordBattleResult(ctx context.Context, id ulid.ULID, won bool) error

	// RaiseTrainerLevel sets the trainer level if it is currently lower.
	// Level is monotonically non-decreasing, so the guarded write is
	// race-safe without a revision column.
	RaiseTrainerLevel(ctx context.Context, id ulid.ULID, level int) error

	// RecordDailyClaim sets the streak, claim timestamp, and coin/exp
	// payout in a single write.
	RecordDailyClaim(ctx context.Context, id ulid.ULID, streak int, claimedAt time.Time, coins, exp int64) error

	// SpendCoins atomically debits a user's balance. The write is guarded
	// on the balance covering the amount; ErrInsufficientFunds is returned
	// when it does not.
	SpendCoins(ctx context.Context, id ulid.ULID, amount int64) error
}

// CreatureRepository manages creature persistence.
type CreatureRepository interface {
	// Get retrieves a creature by ID.
	Get(ctx context.Context, id ulid.ULID) (*Creature, error)

	// Create persists a new creature.
	Create(ctx context.Context, c *Creature) error

	// ListByOwner returns a user's creatures with pagination.
	ListByOwner(ctx context.Context, ownerID ulid.ULID, limit, offset int) ([]*Creature, error)

	// ListTeam returns a user's active team ordered by slot.
	ListTeam(ctx context.Context, ownerID ulid.ULID) ([]*Creature, error)

	// UpdateProgress conditionally writes level, experience, stats, and
	// species code. The write succeeds only if the stored revision equals
	// expectedRevision; on success the revision is incremented. Returns
	// ErrRevisionMismatch when the condition fails.
	UpdateProgress(ctx context.Context, c *Creature, expectedRevision int64) error

	// SetNickname updates the nickname if the creature is owned by ownerID.
	SetNickname(ctx context.Context, id, ownerID ulid.ULID, nickname string) error

	// SetTeam updates team membership if the creature is owned by ownerID.
	SetTeam(ctx context.Context, id, ownerID ulid.ULID, inTeam bool, slot *int) error

	// CountTeam returns the size of a user's active team.
	CountTeam(ctx context.Context, ownerID ulid.ULID) (int, error)

	// TransferOwnership reassigns a creature from one owner to another
	// and removes it from the old owner's team. The write is guarded on
	// the current owner; ErrStaleOffer is returned when the creature is
	// no longer owned by from.
	TransferOwnership(ctx context.Context, id, from, to ulid.ULID) error
}

// InventoryRepository manages per-user item stacks.
type InventoryRepository interface {
	// Grant adds quantity to a user's stack of an item, creating the
	// stack when absent.
	Grant(ctx context.Context, userID ulid.ULID, itemCode string, quantity int64) error

	// List returns a user's non-empty stacks ordered by item code.
	List(ctx context.Context, userID ulid.ULID) ([]InventoryEntry, error)
}

// SpawnRepository manages spawn persistence.
type SpawnRepository interface {
	// Get retrieves a spawn by ID.
	Get(ctx context.Context, id ulid.ULID) (*Spawn, error)

	// Create persists a new spawn.
	Create(ctx context.Context, s *Spawn) error

	// ActiveInChat returns the most recent ACTIVE, unexpired spawn in a
	// chat, or ErrNotFound.
	ActiveInChat(ctx context.Context, chatID string, now time.Time) (*Spawn, error)

	// MarkCaught transitions ACTIVE -> CAUGHT. The write is guarded on
	// status; ErrAlreadyClaimed is returned when the spawn is no longer
	// ACTIVE.
	MarkCaught(ctx context.Context, id, caughtBy ulid.ULID) error

	// MarkExpired transitions ACTIVE -> EXPIRED. A no-op (nil) when the
	// spawn already reached a terminal state.
	MarkExpired(ctx context.Context, id ulid.ULID) error
}

// BattleRepository manages battle persistence. Turn serialization is the
// caller's responsibility (per-battle lock), so updates are whole-record
// writes.
type BattleRepository interface {
	// Get retrieves a battle by ID.
	Get(ctx context.Context, id ulid.ULID) (*Battle, error)

	// Create persists a new battle.
	Create(ctx context.Context, b *Battle) error

	// Update writes the battle's full state document.
	Update(ctx context.Context, b *Battle) error

	// ActiveForUser returns the user's IN_PROGRESS battle, or ErrNotFound.
	ActiveForUser(ctx context.Context, userID ulid.ULID) (*Battle, error)
}

// TradeRepository manages trade persistence.
type TradeRepository interface {
	// Get retrieves a trade by ID.
	Get(ctx context.Context, id ulid.ULID) (*Trade, error)

	// Create persists a new trade.
	Create(ctx context.Context, t *Trade) error

	// Update writes offers, confirmation flags, and status.
	Update(ctx context.Context, t *Trade) error
}

// Transactor runs a function inside a storage transaction. Repositories
// called with the returned context participate in the same transaction;
// a non-nil error rolls everything back.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

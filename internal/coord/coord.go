// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

// Package coord provides the low-latency coordination primitives the
// engines use for mutual exclusion and cooldowns. Every entry carries a
// TTL; expiry is decided by comparing against the store's clock, so a
// crashed holder never wedges a lock for longer than its TTL.
//
// The store is the sole arbiter of mutual exclusion for spawn claims and
// per-battle turn serialization. Engines hold no process-local lock
// state, so any number of stateless workers can run concurrently.
package coord

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Store is the coordination contract: an atomic set-if-absent-with-TTL
// lock primitive and a TTL cooldown primitive.
type Store interface {
	// AcquireLock attempts to take the lock for key. It succeeds when no
	// live (unexpired) lock exists, returning an opaque token that must
	// be presented to release it. ok is false when another holder has
	// the lock; that is an expected outcome, not an error.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)

	// ReleaseLock releases the lock if token still owns it. Releasing an
	// expired or stolen lock is a no-op.
	ReleaseLock(ctx context.Context, key, token string) error

	// SetCooldown starts (or restarts) a cooldown window for key.
	SetCooldown(ctx context.Context, key string, ttl time.Duration) error

	// OnCooldown reports whether a live cooldown window exists for key.
	OnCooldown(ctx context.Context, key string) (bool, error)
}

// newToken returns a fresh lock token.
func newToken() string {
	return ulid.Make().String()
}

// Key builders. All coordination keys are namespaced so the same store
// can back every engine.

// SpawnCooldownKey is the chat-level spawn cooldown key.
func SpawnCooldownKey(chatID string) string {
	return fmt.Sprintf("cooldown:spawn:%s", chatID)
}

// ClaimCooldownKey is the per-user claim cooldown key. It bounds lock
// contention from rapid repeat attempts by the same user.
func ClaimCooldownKey(userID ulid.ULID) string {
	return fmt.Sprintf("cooldown:claim:%s", userID)
}

// SpawnLockKey is the claim mutual-exclusion key for one spawn.
func SpawnLockKey(spawnID ulid.ULID) string {
	return fmt.Sprintf("lock:spawn:%s", spawnID)
}

// BattleLockKey is the turn-serialization key for one battle.
func BattleLockKey(battleID ulid.ULID) string {
	return fmt.Sprintf("lock:battle:%s", battleID)
}

// TradeLockKey is the handshake-serialization key for one trade.
func TradeLockKey(tradeID ulid.ULID) string {
	return fmt.Sprintf("lock:trade:%s", tradeID)
}

// DailyLockKey guards a user's daily reward claim.
func DailyLockKey(userID ulid.ULID) string {
	return fmt.Sprintf("lock:daily:%s", userID)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package gametest

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/chattermon/chattermon/internal/game"
)

type userRepo struct{ s *Store }

func (r *userRepo) Get(_ context.Context, id ulid.ULID) (*game.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, game.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *userRepo) GetByPlatformID(_ context.Context, platformID string) (*game.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.byPlat[platformID]
	if !ok {
		return nil, game.ErrNotFound
	}
	return cloneUser(r.s.users[id]), nil
}

func (r *userRepo) Create(_ context.Context, u *game.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, dup := r.s.byPlat[u.PlatformID]; dup {
		return game.ErrDuplicate
	}
	r.s.users[u.ID] = cloneUser(u)
	r.s.byPlat[u.PlatformID] = u.ID
	return nil
}

func (r *userRepo) RecordCatch(_ context.Context, id ulid.ULID, expDelta int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return game.ErrNotFound
	}
	u.CreaturesCaught++
	u.Experience += expDelta
	return nil
}

func (r *userRepo) AddExperience(_ context.Context, id ulid.ULID, expDelta int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return game.ErrNotFound
	}
	u.Experience += expDelta
	return nil
}

func (r *userRepo) RecordBattleResult(_ context.Context, id ulid.ULID, won bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return game.ErrNotFound
	}
	if won {
		u.BattlesWon++
	} else {
		u.BattlesLost++
	}
	return nil
}

func (r *userRepo) RaiseTrainerLevel(_ context.Context, id ulid.ULID, level int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return game.ErrNotFound
	}
	if u.TrainerLevel < level {
		u.TrainerLevel = level
	}
	return nil
}

func (r *userRepo) RecordDailyClaim(_ context.Context, id ulid.ULID, streak int, claimedAt time.Time, coins, exp int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return game.ErrNotFound
	}
	u.DailyStreak = streak
	t := claimedAt
	u.LastDailyClaim = &t
	u.Coins += coins
	u.Experience += exp
	return nil
}

func (r *userRepo) SpendCoins(_ context.Context, id ulid.ULID, amount int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok || u.Coins < amount {
		return game.ErrInsufficientFunds
	}
	u.Coins -= amount
	return nil
}

type inventoryRepo struct{ s *Store }

func (r *inventoryRepo) Grant(_ context.Context, userID ulid.ULID, itemCode string, quantity int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stacks, ok := r.s.items[userID]
	if !ok {
		stacks = make(map[string]int64)
		r.s.items[userID] = stacks
	}
	stacks[itemCode] += quantity
	return nil
}

func (r *inventoryRepo) List(_ context.Context, userID ulid.ULID) ([]game.InventoryEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	entries := make([]game.InventoryEntry, 0)
	for code, qty := range r.s.items[userID] {
		if qty > 0 {
			entries = append(entries, game.InventoryEntry{UserID: userID, ItemCode: code, Quantity: qty})
		}
	}
	// Order by item code, matching the Postgres listing.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].ItemCode < entries[j-1].ItemCode; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	return entries, nil
}

type creatureRepo struct{ s *Store }

func (r *creatureRepo) Get(_ context.Context, id ulid.ULID) (*game.Creature, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.critters[id]
	if !ok {
		return nil, game.ErrNotFound
	}
	return cloneCreature(c), nil
}

func (r *creatureRepo) Create(_ context.Context, c *game.Creature) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.critters[c.ID] = cloneCreature(c)
	return nil
}

func (r *creatureRepo) ListByOwner(_ context.Context, ownerID ulid.ULID, limit, offset int) ([]*game.Creature, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var owned []*game.Creature
	for _, c := range r.s.critters {
		if c.OwnedBy(ownerID) {
			owned = append(owned, cloneCreature(c))
		}
	}
	newestFirst(owned)

	if offset >= len(owned) {
		return []*game.Creature{}, nil
	}
	owned = owned[offset:]
	if limit < len(owned) {
		owned = owned[:limit]
	}
	return owned, nil
}

func (r *creatureRepo) ListTeam(_ context.Context, ownerID ulid.ULID) ([]*game.Creature, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	team := make([]*game.Creature, 0)
	for _, c := range r.s.critters {
		if c.OwnedBy(ownerID) && c.InTeam {
			team = append(team, cloneCreature(c))
		}
	}
	// Order by slot.
	for i := 1; i < len(team); i++ {
		for j := i; j > 0 && *team[j].TeamSlot < *team[j-1].TeamSlot; j-- {
			team[j], team[j-1] = team[j-1], team[j]
		}
	}
	return team, nil
}

func (r *creatureRepo) UpdateProgress(_ context.Context, c *game.Creature, expectedRevision int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.critters[c.ID]
	if !ok || stored.Revision != expectedRevision {
		return game.ErrRevisionMismatch
	}
	stored.SpeciesCode = c.SpeciesCode
	stored.Level = c.Level
	stored.Experience = c.Experience
	stored.Stats = c.Stats
	stored.Revision = expectedRevision + 1
	c.Revision = expectedRevision + 1
	return nil
}

func (r *creatureRepo) SetNickname(_ context.Context, id, ownerID ulid.ULID, nickname string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.critters[id]
	if !ok || !c.OwnedBy(ownerID) {
		return game.ErrNotFound
	}
	c.Nickname = nickname
	return nil
}

func (r *creatureRepo) SetTeam(_ context.Context, id, ownerID ulid.ULID, inTeam bool, slot *int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.critters[id]
	if !ok || !c.OwnedBy(ownerID) {
		return game.ErrNotFound
	}
	c.InTeam = inTeam
	if slot != nil {
		v := *slot
		c.TeamSlot = &v
	} else {
		c.TeamSlot = nil
	}
	return nil
}

func (r *creatureRepo) CountTeam(_ context.Context, ownerID ulid.ULID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, c := range r.s.critters {
		if c.OwnedBy(ownerID) && c.InTeam {
			n++
		}
	}
	return n, nil
}

func (r *creatureRepo) TransferOwnership(_ context.Context, id, from, to ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.critters[id]
	if !ok || !c.OwnedBy(from) {
		return game.ErrStaleOffer
	}
	owner := to
	c.OwnerID = &owner
	c.InTeam = false
	c.TeamSlot = nil
	c.Nickname = ""
	return nil
}

type spawnRepo struct{ s *Store }

func (r *spawnRepo) Get(_ context.Context, id ulid.ULID) (*game.Spawn, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sp, ok := r.s.spawns[id]
	if !ok {
		return nil, game.ErrNotFound
	}
	return cloneSpawn(sp), nil
}

func (r *spawnRepo) Create(_ context.Context, sp *game.Spawn) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.spawns[sp.ID] = cloneSpawn(sp)
	return nil
}

func (r *spawnRepo) ActiveInChat(_ context.Context, chatID string, now time.Time) (*game.Spawn, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var latest *game.Spawn
	for _, sp := range r.s.spawns {
		if sp.ChatID != chatID || sp.Status != game.SpawnActive || !sp.ExpiresAt.After(now) {
			continue
		}
		if latest == nil || sp.SpawnedAt.After(latest.SpawnedAt) {
			latest = sp
		}
	}
	if latest == nil {
		return nil, game.ErrNotFound
	}
	return cloneSpawn(latest), nil
}

func (r *spawnRepo) MarkCaught(_ context.Context, id, caughtBy ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sp, ok := r.s.spawns[id]
	if !ok || sp.Status != game.SpawnActive {
		return game.ErrAlreadyClaimed
	}
	claimant := caughtBy
	sp.Status = game.SpawnCaught
	sp.CaughtBy = &claimant
	return nil
}

func (r *spawnRepo) MarkExpired(_ context.Context, id ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sp, ok := r.s.spawns[id]
	if !ok {
		return game.ErrNotFound
	}
	if sp.Status == game.SpawnActive {
		sp.Status = game.SpawnExpired
	}
	return nil
}

type battleRepo struct{ s *Store }

func (r *battleRepo) Get(_ context.Context, id ulid.ULID) (*game.Battle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.battles[id]
	if !ok {
		return nil, game.ErrNotFound
	}
	return cloneBattle(b), nil
}

func (r *battleRepo) Create(_ context.Context, b *game.Battle) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.battles[b.ID] = cloneBattle(b)
	return nil
}

func (r *battleRepo) Update(_ context.Context, b *game.Battle) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.battles[b.ID]; !ok {
		return game.ErrNotFound
	}
	r.s.battles[b.ID] = cloneBattle(b)
	return nil
}

func (r *battleRepo) ActiveForUser(_ context.Context, userID ulid.ULID) (*game.Battle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.battles {
		if b.Status != game.BattleInProgress {
			continue
		}
		if _, ok := b.SideOf(userID); ok {
			return cloneBattle(b), nil
		}
	}
	return nil, game.ErrNotFound
}

type tradeRepo struct{ s *Store }

func (r *tradeRepo) Get(_ context.Context, id ulid.ULID) (*game.Trade, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.trades[id]
	if !ok {
		return nil, game.ErrNotFound
	}
	return cloneTrade(t), nil
}

func (r *tradeRepo) Create(_ context.Context, t *game.Trade) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.trades[t.ID] = cloneTrade(t)
	return nil
}

func (r *tradeRepo) Update(_ context.Context, t *game.Trade) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.trades[t.ID]; !ok {
		return game.ErrNotFound
	}
	r.s.trades[t.ID] = cloneTrade(t)
	return nil
}

// Compile-time interface checks.
var (
	_ game.UserRepository      = (*userRepo)(nil)
	_ game.InventoryRepository = (*inventoryRepo)(nil)
	_ game.CreatureRepository  = (*creatureRepo)(nil)
	_ game.SpawnRepository     = (*spawnRepo)(nil)
	_ game.BattleRepository    = (*battleRepo)(nil)
	_ game.TradeRepository     = (*tradeRepo)(nil)
	_ game.Transactor          = (*transactor)(nil)
)

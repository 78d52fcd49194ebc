// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

// Package gametest provides in-memory repository fakes for service
// tests. The fakes honor the repository contracts that the engines lean
// on: revision-guarded progress writes, status-guarded spawn
// transitions, owner-guarded transfers, and all-or-nothing transactions
// (implemented by snapshotting state and restoring it when the
// transaction function fails).
package gametest

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/chattermon/chattermon/internal/game"
)

// Store is an in-memory database shared by the repository fakes it
// hands out.
type Store struct {
	mu sync.Mutex

	users    map[ulid.ULID]*game.User
	byPlat   map[string]ulid.ULID
	critters map[ulid.ULID]*game.Creature
	spawns   map[ulid.ULID]*game.Spawn
	battles  map[ulid.ULID]*game.Battle
	trades   map[ulid.ULID]*game.Trade
	items    map[ulid.ULID]map[string]int64

	// txMu serializes transactions so snapshot/restore pairs nest
	// correctly under concurrent callers.
	txMu sync.Mutex
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users:    make(map[ulid.ULID]*game.User),
		byPlat:   make(map[string]ulid.ULID),
		critters: make(map[ulid.ULID]*game.Creature),
		spawns:   make(map[ulid.ULID]*game.Spawn),
		battles:  make(map[ulid.ULID]*game.Battle),
		trades:   make(map[ulid.ULID]*game.Trade),
		items:    make(map[ulid.ULID]map[string]int64),
	}
}

// Users returns the user repository view.
func (s *Store) Users() game.UserRepository { return &userRepo{s} }

// Creatures returns the creature repository view.
func (s *Store) Creatures() game.CreatureRepository { return &creatureRepo{s} }

// Spawns returns the spawn repository view.
func (s *Store) Spawns() game.SpawnRepository { return &spawnRepo{s} }

// Battles returns the battle repository view.
func (s *Store) Battles() game.BattleRepository { return &battleRepo{s} }

// Trades returns the trade repository view.
func (s *Store) Trades() game.TradeRepository { return &tradeRepo{s} }

// Inventory returns the inventory repository view.
func (s *Store) Inventory() game.InventoryRepository { return &inventoryRepo{s} }

// Tx returns a transactor that rolls state back when fn fails.
func (s *Store) Tx() game.Transactor { return &transactor{s} }

type transactor struct{ s *Store }

func (t *transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()

	snap := t.s.snapshot()
	if err := fn(ctx); err != nil {
		t.s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	users    map[ulid.ULID]*game.User
	byPlat   map[string]ulid.ULID
	critters map[ulid.ULID]*game.Creature
	spawns   map[ulid.ULID]*game.Spawn
	battles  map[ulid.ULID]*game.Battle
	trades   map[ulid.ULID]*game.Trade
	items    map[ulid.ULID]map[string]int64
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := snapshot{
		users:    make(map[ulid.ULID]*game.User, len(s.users)),
		byPlat:   make(map[string]ulid.ULID, len(s.byPlat)),
		critters: make(map[ulid.ULID]*game.Creature, len(s.critters)),
		spawns:   make(map[ulid.ULID]*game.Spawn, len(s.spawns)),
		battles:  make(map[ulid.ULID]*game.Battle, len(s.battles)),
		trades:   make(map[ulid.ULID]*game.Trade, len(s.trades)),
		items:    make(map[ulid.ULID]map[string]int64, len(s.items)),
	}
	for k, v := range s.users {
		snap.users[k] = cloneUser(v)
	}
	for k, v := range s.byPlat {
		snap.byPlat[k] = v
	}
	for k, v := range s.critters {
		snap.critters[k] = cloneCreature(v)
	}
	for k, v := range s.spawns {
		snap.spawns[k] = cloneSpawn(v)
	}
	for k, v := range s.battles {
		snap.battles[k] = cloneBattle(v)
	}
	for k, v := range s.trades {
		snap.trades[k] = cloneTrade(v)
	}
	for k, stacks := range s.items {
		copied := make(map[string]int64, len(stacks))
		for code, qty := range stacks {
			copied[code] = qty
		}
		snap.items[k] = copied
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = snap.users
	s.byPlat = snap.byPlat
	s.critters = snap.critters
	s.spawns = snap.spawns
	s.battles = snap.battles
	s.trades = snap.trades
	s.items = snap.items
}

// Clone helpers. Repositories always hand out copies so callers cannot
// mutate stored state without going through a write method.

func cloneUser(u *game.User) *game.User {
	c := *u
	if u.LastDailyClaim != nil {
		t := *u.LastDailyClaim
		c.LastDailyClaim = &t
	}
	return &c
}

func cloneCreature(c *game.Creature) *game.Creature {
	out := *c
	if c.OwnerID != nil {
		id := *c.OwnerID
		out.OwnerID = &id
	}
	if c.TeamSlot != nil {
		slot := *c.TeamSlot
		out.TeamSlot = &slot
	}
	return &out
}

func cloneSpawn(s *game.Spawn) *game.Spawn {
	out := *s
	if s.CaughtBy != nil {
		id := *s.CaughtBy
		out.CaughtBy = &id
	}
	return &out
}

func cloneBattle(b *game.Battle) *game.Battle {
	out := *b
	for i := range b.Sides {
		out.Sides[i] = cloneSide(b.Sides[i])
	}
	for i, p := range b.Pending {
		if p != nil {
			a := *p
			out.Pending[i] = &a
		}
	}
	out.Log = append([]game.ResolvedAction(nil), b.Log...)
	if b.Winner != nil {
		w := *b.Winner
		out.Winner = &w
	}
	return &out
}

func cloneSide(s game.BattleSide) game.BattleSide {
	out := s
	if s.UserID != nil {
		id := *s.UserID
		out.UserID = &id
	}
	out.Team = make([]game.Combatant, len(s.Team))
	for i, c := range s.Team {
		out.Team[i] = c
		out.Team[i].Moves = append([]string(nil), c.Moves...)
	}
	return out
}

func cloneTrade(t *game.Trade) *game.Trade {
	out := *t
	out.ProposerOffer = append([]ulid.ULID(nil), t.ProposerOffer...)
	out.CounterpartyOffer = append([]ulid.ULID(nil), t.CounterpartyOffer...)
	return &out
}

// newestFirst orders creatures newest first, matching the Postgres
// list ordering.
func newestFirst(list []*game.Creature) {
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && laterThan(list[j], list[j-1]); j-- {
			list[j], list[j-1] = list[j-1], list[j]
		}
	}
}

func laterThan(a, b *game.Creature) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.Compare(b.ID) > 0
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

//go:build integration

package integration

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/chattermon/chattermon/internal/battle"
	"github.com/chattermon/chattermon/internal/catalog"
	"github.com/chattermon/chattermon/internal/game"
	gamepg "github.com/chattermon/chattermon/internal/game/postgres"
	"github.com/chattermon/chattermon/internal/progress"
	"github.com/chattermon/chattermon/internal/roster"
	"github.com/chattermon/chattermon/internal/shop"
	"github.com/chattermon/chattermon/internal/spawn"
	"github.com/chattermon/chattermon/internal/trade"
)

// engine wires every service against the suite's shared pool, the same
// way the serve command does.
type engine struct {
	cat       *catalog.Catalog
	users     *gamepg.UserRepository
	creatures *gamepg.CreatureRepository
	spawns    *gamepg.SpawnRepository
	battles   *gamepg.BattleRepository
	trades    *gamepg.TradeRepository

	spawn    *spawn.Service
	progress *progress.Service
	battle   *battle.Service
	trade    *trade.Service
	roster   *roster.Service
	shop     *shop.Service
}

func newEngine() *engine {
	cat, err := catalog.Default()
	Expect(err).NotTo(HaveOccurred())

	logger := slog.New(slog.DiscardHandler)

	users := gamepg.NewUserRepository(pool)
	creatures := gamepg.NewCreatureRepository(pool)
	spawns := gamepg.NewSpawnRepository(pool)
	battles := gamepg.NewBattleRepository(pool)
	trades := gamepg.NewTradeRepository(pool)
	tx := gamepg.NewTransactor(pool)

	spawnSvc, err := spawn.NewService(spawn.ServiceConfig{
		Spawns:    spawns,
		Creatures: creatures,
		Users:     users,
		Tx:        tx,
		Coord:     coordStore,
		Catalog:   cat,
		Sampler:   spawn.NewSampler(cat, rand.NewPCG(rand.Uint64(), rand.Uint64())),
		Config: spawn.Config{
			Expiry:        5 * time.Minute,
			CooldownMin:   time.Millisecond,
			CooldownMax:   2 * time.Millisecond,
			ClaimCooldown: 0,
			LockTTL:       5 * time.Second,
		},
		Logger: logger,
	})
	Expect(err).NotTo(HaveOccurred())

	progressSvc := progress.NewService(progress.ServiceConfig{
		Creatures: creatures,
		Users:     users,
		Coord:     coordStore,
		Catalog:   cat,
		Logger:    logger,
	})

	battleSvc := battle.NewService(battle.ServiceConfig{
		Battles:   battles,
		Creatures: creatures,
		Users:     users,
		Coord:     coordStore,
		Catalog:   cat,
		Progress:  progressSvc,
		Config: battle.Config{
			InactivityTimeout: 30 * time.Minute,
			LockTTL:           5 * time.Second,
		},
		Logger: logger,
	})

	tradeSvc := trade.NewService(trade.ServiceConfig{
		Trades:    trades,
		Creatures: creatures,
		Tx:        tx,
		Coord:     coordStore,
		Config: trade.Config{
			OfferDeadline: 15 * time.Minute,
			LockTTL:       5 * time.Second,
		},
		Logger: logger,
	})

	rosterSvc := roster.NewService(roster.ServiceConfig{
		Creatures: creatures,
		Tx:        tx,
		Logger:    logger,
	})

	shopSvc := shop.NewService(shop.ServiceConfig{
		Users:     users,
		Inventory: gamepg.NewInventoryRepository(pool),
		Tx:        tx,
		Logger:    logger,
	})

	return &engine{
		cat:       cat,
		users:     users,
		creatures: creatures,
		spawns:    spawns,
		battles:   battles,
		trades:    trades,
		spawn:     spawnSvc,
		progress:  progressSvc,
		battle:    battleSvc,
		trade:     tradeSvc,
		roster:    rosterSvc,
		shop:      shopSvc,
	}
}

func (e *engine) newUser(ctx context.Context) *game.User {
	u, err := game.NewUser("telegram:" + ulid.Make().String())
	Expect(err).NotTo(HaveOccurred())
	Expect(e.users.Create(ctx, u)).To(Succeed())
	return u
}

func (e *engine) seedCreature(ctx context.Context, ownerID ulid.ULID, code string, level int) *game.Creature {
	sp, err := e.cat.Lookup(code)
	Expect(err).NotTo(HaveOccurred())

	c := &game.Creature{
		ID:          ulid.Make(),
		OwnerID:     &ownerID,
		SpeciesCode: code,
		Level:       level,
		Stats:       catalog.DeriveStats(sp.Base, level, "hardy"),
		Nature:      "hardy",
		Revision:    1,
		CreatedAt:   time.Now(),
	}
	Expect(e.creatures.Create(ctx, c)).To(Succeed())
	return c
}

// spawnIn triggers until a spawn lands in a fresh chat. The cooldown
// window is milliseconds here, so a suppressed trigger only means the
// previous spawn in that chat is still active.
func (e *engine) spawnIn(ctx context.Context, chatID string) *game.Spawn {
	res, err := e.spawn.TriggerSpawn(ctx, chatID)
	Expect(err).NotTo(HaveOccurred())
	Expect(res.OnCooldown).To(BeFalse())
	Expect(res.Spawn).NotTo(BeNil())
	return res.Spawn
}

var _ = Describe("Spawn lifecycle", func() {
	var (
		ctx context.Context
		eng *engine
	)

	BeforeEach(func() {
		ctx = context.Background()
		eng = newEngine()
	})

	It("spawns, claims, and persists the catch", func() {
		user := eng.newUser(ctx)
		sp := eng.spawnIn(ctx, "chat-"+ulid.Make().String())

		creature, err := eng.spawn.Claim(ctx, sp.ID, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(creature.OwnerID).NotTo(BeNil())
		Expect(*creature.OwnerID).To(Equal(user.ID))
		Expect(creature.SpeciesCode).To(Equal(sp.SpeciesCode))
		Expect(creature.Level).To(Equal(sp.Level))

		stored, err := eng.spawns.Get(ctx, sp.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Status).To(Equal(game.SpawnCaught))
		Expect(stored.CaughtBy).NotTo(BeNil())
		Expect(*stored.CaughtBy).To(Equal(user.ID))

		claimed, err := eng.users.Get(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(claimed.CreaturesCaught).To(Equal(1))
		Expect(claimed.Experience).To(BeNumerically(">", 0))
	})

	It("rejects a claim on an already-caught spawn", func() {
		winner := eng.newUser(ctx)
		late := eng.newUser(ctx)
		sp := eng.spawnIn(ctx, "chat-"+ulid.Make().String())

		_, err := eng.spawn.Claim(ctx, sp.ID, winner.ID)
		Expect(err).NotTo(HaveOccurred())

		_, err = eng.spawn.Claim(ctx, sp.ID, late.ID)
		Expect(err).To(MatchError(game.ErrAlreadyClaimed))
	})

	It("arbitrates concurrent claimants to exactly one winner", func() {
		const claimants = 12

		sp := eng.spawnIn(ctx, "chat-"+ulid.Make().String())

		users := make([]*game.User, claimants)
		for i := range users {
			users[i] = eng.newUser(ctx)
		}

		var wins atomic.Int64
		var wg sync.WaitGroup
		for i := range claimants {
			wg.Add(1)
			go func(u *game.User) {
				defer wg.Done()
				if _, err := eng.spawn.Claim(ctx, sp.ID, u.ID); err == nil {
					wins.Add(1)
				}
			}(users[i])
		}
		wg.Wait()

		Expect(wins.Load()).To(Equal(int64(1)), "exactly one claimant may win")

		stored, err := eng.spawns.Get(ctx, sp.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Status).To(Equal(game.SpawnCaught))
	})
})

var _ = Describe("Progression", func() {
	var (
		ctx context.Context
		eng *engine
	)

	BeforeEach(func() {
		ctx = context.Background()
		eng = newEngine()
	})

	It("levels up a creature and persists the revision-guarded write", func() {
		user := eng.newUser(ctx)
		c := eng.seedCreature(ctx, user.ID, "mossmouse", 1)

		// 7 to reach level 2, 19 more to reach level 3.
		res, err := eng.progress.AwardExperience(ctx, c.ID, 26)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.LevelsGained).To(Equal(2))

		stored, err := eng.creatures.Get(ctx, c.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Level).To(Equal(3))
		Expect(stored.Experience).To(Equal(int64(0)))
		Expect(stored.Revision).To(Equal(int64(2)))
	})

	It("evolves at the species threshold", func() {
		user := eng.newUser(ctx)
		c := eng.seedCreature(ctx, user.ID, "emberling", 29)

		exp := catalog.CubicCurve().Threshold(29)
		res, err := eng.progress.AwardExperience(ctx, c.ID, exp)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Evolved).To(BeTrue())
		Expect(res.EvolvedTo).To(Equal("pyroclaw"))

		stored, err := eng.creatures.Get(ctx, c.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.SpeciesCode).To(Equal("pyroclaw"))
		Expect(stored.Level).To(Equal(30))
	})

	It("pays the daily reward once per day", func() {
		user := eng.newUser(ctx)

		res, err := eng.progress.ClaimDaily(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Streak).To(Equal(1))
		Expect(res.Coins).To(Equal(int64(100)))

		_, err = eng.progress.ClaimDaily(ctx, user.ID)
		Expect(err).To(MatchError(game.ErrOnCooldown))

		stored, err := eng.users.Get(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Coins).To(Equal(int64(1100)))
		Expect(stored.DailyStreak).To(Equal(1))
	})
})

var _ = Describe("Trading", func() {
	var (
		ctx context.Context
		eng *engine
	)

	BeforeEach(func() {
		ctx = context.Background()
		eng = newEngine()
	})

	It("settles a confirmed trade atomically", func() {
		alice := eng.newUser(ctx)
		bob := eng.newUser(ctx)
		ca := eng.seedCreature(ctx, alice.ID, "puddlepup", 5)
		cb := eng.seedCreature(ctx, bob.ID, "cindersprat", 6)

		Expect(eng.roster.Rename(ctx, alice.ID, ca.ID, "Puddles")).To(Succeed())

		t, err := eng.trade.Propose(ctx, alice.ID, bob.ID, []ulid.ULID{ca.ID})
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Status).To(Equal(game.TradeProposed))

		_, err = eng.trade.AddCounterOffer(ctx, t.ID, bob.ID, []ulid.ULID{cb.ID})
		Expect(err).NotTo(HaveOccurred())

		t, err = eng.trade.Confirm(ctx, t.ID, alice.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Status).To(Equal(game.TradePartiallyConfirmed))

		t, err = eng.trade.Confirm(ctx, t.ID, bob.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Status).To(Equal(game.TradeConfirmed))

		swappedA, err := eng.creatures.Get(ctx, ca.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(*swappedA.OwnerID).To(Equal(bob.ID))
		Expect(swappedA.Nickname).To(BeEmpty(), "nicknames do not travel")

		swappedB, err := eng.creatures.Get(ctx, cb.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(*swappedB.OwnerID).To(Equal(alice.ID))
	})

	It("cancels cleanly and leaves ownership untouched", func() {
		alice := eng.newUser(ctx)
		bob := eng.newUser(ctx)
		ca := eng.seedCreature(ctx, alice.ID, "puddlepup", 5)

		t, err := eng.trade.Propose(ctx, alice.ID, bob.ID, []ulid.ULID{ca.ID})
		Expect(err).NotTo(HaveOccurred())

		t, err = eng.trade.Cancel(ctx, t.ID, bob.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Status).To(Equal(game.TradeCancelled))

		stored, err := eng.creatures.Get(ctx, ca.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(*stored.OwnerID).To(Equal(alice.ID))
	})
})

var _ = Describe("Roster", func() {
	var (
		ctx context.Context
		eng *engine
	)

	BeforeEach(func() {
		ctx = context.Background()
		eng = newEngine()
	})

	It("manages team membership with compacted slots", func() {
		user := eng.newUser(ctx)
		first := eng.seedCreature(ctx, user.ID, "flitfinch", 3)
		second := eng.seedCreature(ctx, user.ID, "mossmouse", 4)

		Expect(eng.roster.AddToTeam(ctx, user.ID, first.ID)).To(Succeed())
		Expect(eng.roster.AddToTeam(ctx, user.ID, second.ID)).To(Succeed())

		Expect(eng.roster.RemoveFromTeam(ctx, user.ID, first.ID)).To(Succeed())

		team, err := eng.roster.Team(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(team).To(HaveLen(1))
		Expect(team[0].ID).To(Equal(second.ID))
		Expect(*team[0].TeamSlot).To(Equal(1))
	})

	It("pages the roster newest first", func() {
		user := eng.newUser(ctx)
		for i := range 3 {
			eng.seedCreature(ctx, user.ID, "puddlepup", i+1)
		}

		page, err := eng.roster.List(ctx, user.ID, 2, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(page).To(HaveLen(2))

		rest, err := eng.roster.List(ctx, user.ID, 2, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(rest).To(HaveLen(1))
	})
})

var _ = Describe("Shop", func() {
	var (
		ctx context.Context
		eng *engine
	)

	BeforeEach(func() {
		ctx = context.Background()
		eng = newEngine()
	})

	It("sells items for coins and stocks the inventory", func() {
		user := eng.newUser(ctx)

		res, err := eng.shop.Purchase(ctx, user.ID, "capture_orb", 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Cost).To(Equal(int64(300)))
		Expect(res.Balance).To(Equal(int64(700)))

		inv, err := eng.shop.Inventory(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(inv).To(HaveLen(1))
		Expect(inv[0].ItemCode).To(Equal("capture_orb"))
		Expect(inv[0].Quantity).To(Equal(int64(3)))
	})

	It("rejects a purchase the balance cannot cover", func() {
		user := eng.newUser(ctx)

		_, err := eng.shop.Purchase(ctx, user.ID, "shimmer_charm", 1)
		Expect(err).To(MatchError(game.ErrInsufficientFunds))

		stored, err := eng.users.Get(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Coins).To(Equal(int64(1000)), "a failed purchase charges nothing")

		inv, err := eng.shop.Inventory(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(inv).To(BeEmpty())
	})
})

var _ = Describe("Battle", func() {
	var (
		ctx context.Context
		eng *engine
	)

	BeforeEach(func() {
		ctx = context.Background()
		eng = newEngine()
	})

	It("runs a PvE battle to completion and pays rewards", func() {
		user := eng.newUser(ctx)
		c := eng.seedCreature(ctx, user.ID, "pyroclaw", 40)
		Expect(eng.roster.AddToTeam(ctx, user.ID, c.ID)).To(Succeed())

		b, err := eng.battle.StartPvE(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())

		side, ok := b.SideOf(user.ID)
		Expect(ok).To(BeTrue())

		// The scripted opponent answers automatically, so each submission
		// resolves a full turn.
		for range 500 {
			if b.Status != game.BattleInProgress {
				break
			}
			move := b.Sides[side].ActiveCombatant().Moves[0]
			res, err := eng.battle.SubmitTurn(ctx, b.ID, user.ID, b.Turn,
				game.Action{Kind: game.ActionMove, Move: move})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Resolved).To(BeTrue())
			b = res.Battle
		}

		Expect(b.Status).To(Equal(game.BattleComplete))
		Expect(b.Winner).NotTo(BeNil())

		stored, err := eng.users.Get(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		if *b.Winner == side {
			Expect(stored.BattlesWon).To(Equal(1))
			Expect(stored.Experience).To(BeNumerically(">", 0))
		} else {
			Expect(stored.BattlesLost).To(Equal(1))
		}
	})

	It("rejects a second simultaneous battle for the same user", func() {
		user := eng.newUser(ctx)
		c := eng.seedCreature(ctx, user.ID, "voltadrake", 35)
		Expect(eng.roster.AddToTeam(ctx, user.ID, c.ID)).To(Succeed())

		_, err := eng.battle.StartPvE(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())

		_, err = eng.battle.StartPvE(ctx, user.ID)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Coordination store", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("grants a lock to one holder at a time", func() {
		key := fmt.Sprintf("lock:test:%s", ulid.Make())

		token, ok, err := coordStore.AcquireLock(ctx, key, 5*time.Second)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		_, ok, err = coordStore.AcquireLock(ctx, key, 5*time.Second)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())

		Expect(coordStore.ReleaseLock(ctx, key, token)).To(Succeed())

		_, ok, err = coordStore.AcquireLock(ctx, key, 5*time.Second)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("expires cooldowns on the database clock", func() {
		key := fmt.Sprintf("cooldown:test:%s", ulid.Make())

		Expect(coordStore.SetCooldown(ctx, key, 200*time.Millisecond)).To(Succeed())

		hot, err := coordStore.OnCooldown(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(hot).To(BeTrue())

		Eventually(func() bool {
			cool, err := coordStore.OnCooldown(ctx, key)
			Expect(err).NotTo(HaveOccurred())
			return cool
		}, 2*time.Second, 50*time.Millisecond).Should(BeFalse())
	})

	It("sweeps expired rows", func() {
		key := fmt.Sprintf("cooldown:sweep:%s", ulid.Make())
		Expect(coordStore.SetCooldown(ctx, key, time.Millisecond)).To(Succeed())

		Eventually(func() error {
			_, err := coordStore.SweepExpired(ctx)
			return err
		}, 2*time.Second, 100*time.Millisecond).Should(Succeed())
	})
})

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package progress_test

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chattermon/chattermon/internal/catalog"
	"github.com/chattermon/chattermon/internal/coord"
	"github.com/chattermon/chattermon/internal/game"
	"github.com/chattermon/chattermon/internal/game/gametest"
	"github.com/chattermon/chattermon/internal/progress"
	"github.com/chattermon/chattermon/pkg/errutil"
)

// chainDataset carries a three-stage evolution line with low thresholds
// so a single award can cross several of them.
const chainDataset = `{
	"format_version": "1.0.0",
	"default_levels": [1, 100],
	"tiers": [
		{"tier": "common", "weight": 100, "catch_exp": 10}
	],
	"species": [
		{
			"code": "wisp",
			"name": "Wisp",
			"type": "spirit",
			"tier": "common",
			"base": {"hp": 30, "attack": 35, "defense": 30, "sp_attack": 50, "sp_defense": 40, "speed": 60},
			"moves": [{"name": "flicker", "power": 30, "type": "spirit"}],
			"evolution": {"to_code": "wraith", "at_level": 3}
		},
		{
			"code": "wraith",
			"name": "Wraith",
			"type": "spirit",
			"tier": "common",
			"base": {"hp": 45, "attack": 50, "defense": 45, "sp_attack": 70, "sp_defense": 55, "speed": 75},
			"moves": [{"name": "haunt", "power": 45, "type": "spirit"}],
			"evolution": {"to_code": "phantom", "at_level": 4}
		},
		{
			"code": "phantom",
			"name": "Phantom",
			"type": "spirit",
			"tier": "common",
			"base": {"hp": 60, "attack": 65, "defense": 60, "sp_attack": 95, "sp_defense": 75, "speed": 90},
			"moves": [{"name": "dread", "power": 60, "type": "spirit"}]
		}
	]
}`

type progressFixture struct {
	svc   *progress.Service
	store *gametest.Store
	coord *coord.MemoryStore
	cat   *catalog.Catalog
}

func newProgress(t *testing.T) *progressFixture {
	t.Helper()

	cat, err := catalog.Load([]byte(chainDataset))
	require.NoError(t, err)

	store := gametest.NewStore()
	mem := coord.NewMemoryStore()
	svc := progress.NewService(progress.ServiceConfig{
		Creatures: store.Creatures(),
		Users:     store.Users(),
		Coord:     mem,
		Catalog:   cat,
		Logger:    slog.New(slog.DiscardHandler),
	})
	return &progressFixture{svc: svc, store: store, coord: mem, cat: cat}
}

func (f *progressFixture) seedCreature(t *testing.T, species string, level int, exp int64) *game.Creature {
	t.Helper()

	sp, err := f.cat.Lookup(species)
	require.NoError(t, err)
	c := &game.Creature{
		ID:          ulid.Make(),
		SpeciesCode: species,
		Level:       level,
		Experience:  exp,
		Stats:       catalog.DeriveStats(sp.Base, level, "hardy"),
		Nature:      "hardy",
		Revision:    1,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, f.store.Creatures().Create(context.Background(), c))
	return c
}

func (f *progressFixture) seedUser(t *testing.T) ulid.ULID {
	t.Helper()
	u, err := game.NewUser("telegram:1")
	require.NoError(t, err)
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return u.ID
}

// flakyCreatures injects revision mismatches before delegating.
type flakyCreatures struct {
	game.CreatureRepository
	mismatches atomic.Int32
}

func (f *flakyCreatures) UpdateProgress(ctx context.Context, c *game.Creature, expectedRevision int64) error {
	if f.mismatches.Add(-1) >= 0 {
		return game.ErrRevisionMismatch
	}
	return f.CreatureRepository.UpdateProgress(ctx, c, expectedRevision)
}

func TestAwardExperience(t *testing.T) {
	ctx := context.Background()

	t.Run("negative amount is rejected", func(t *testing.T) {
		f := newProgress(t)
		c := f.seedCreature(t, "wisp", 1, 0)
		_, err := f.svc.AwardExperience(ctx, c.ID, -1)
		var verr *game.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("award below the threshold accumulates", func(t *testing.T) {
		f := newProgress(t)
		c := f.seedCreature(t, "wisp", 1, 0)

		res, err := f.svc.AwardExperience(ctx, c.ID, 5)
		require.NoError(t, err)
		assert.Equal(t, 0, res.LevelsGained)
		assert.False(t, res.Evolved)

		stored, err := f.store.Creatures().Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.Level)
		assert.Equal(t, int64(5), stored.Experience)
		assert.Equal(t, int64(2), stored.Revision, "award lands in one guarded write")
	})

	t.Run("surplus carries over across levels", func(t *testing.T) {
		f := newProgress(t)
		c := f.seedCreature(t, "wisp", 1, 0)

		// Thresholds: level 1 needs 7, level 2 needs 19.
		res, err := f.svc.AwardExperience(ctx, c.ID, 7+19+5)
		require.NoError(t, err)
		assert.Equal(t, 2, res.LevelsGained)

		stored, err := f.store.Creatures().Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, stored.Level)
		assert.Equal(t, int64(5), stored.Experience)
	})

	t.Run("reaching the rule level evolves the creature", func(t *testing.T) {
		f := newProgress(t)
		c := f.seedCreature(t, "wisp", 2, 0)

		res, err := f.svc.AwardExperience(ctx, c.ID, 19)
		require.NoError(t, err)
		assert.True(t, res.Evolved)
		assert.Equal(t, "wisp", res.EvolvedFrom)
		assert.Equal(t, "wraith", res.EvolvedTo)

		stored, err := f.store.Creatures().Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "wraith", stored.SpeciesCode)

		wraith, err := f.cat.Lookup("wraith")
		require.NoError(t, err)
		assert.Equal(t, catalog.DeriveStats(wraith.Base, 3, "hardy"), stored.Stats,
			"stats must be recomputed from the evolved base")
	})

	t.Run("one award can chain evolutions", func(t *testing.T) {
		f := newProgress(t)
		c := f.seedCreature(t, "wisp", 1, 0)

		// 7+19+37 crosses levels 2, 3, and 4 in one award.
		res, err := f.svc.AwardExperience(ctx, c.ID, 7+19+37)
		require.NoError(t, err)
		assert.Equal(t, 3, res.LevelsGained)
		assert.True(t, res.Evolved)
		assert.Equal(t, "wisp", res.EvolvedFrom)
		assert.Equal(t, "phantom", res.EvolvedTo)

		stored, err := f.store.Creatures().Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "phantom", stored.SpeciesCode)
		assert.Equal(t, 4, stored.Level)
	})

	t.Run("the remainder survives reaching the level cap", func(t *testing.T) {
		f := newProgress(t)
		c := f.seedCreature(t, "phantom", 99, 0)

		// Level 99 needs 29701; the extra 500 stays on the record.
		res, err := f.svc.AwardExperience(ctx, c.ID, 29701+500)
		require.NoError(t, err)
		assert.Equal(t, 1, res.LevelsGained)

		stored, err := f.store.Creatures().Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, game.MaxCreatureLevel, stored.Level)
		assert.Equal(t, int64(500), stored.Experience)
	})

	t.Run("partial progress carries into the cap", func(t *testing.T) {
		f := newProgress(t)
		c := f.seedCreature(t, "phantom", 99, 29671)

		res, err := f.svc.AwardExperience(ctx, c.ID, 60)
		require.NoError(t, err)
		assert.Equal(t, 1, res.LevelsGained)

		stored, err := f.store.Creatures().Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, game.MaxCreatureLevel, stored.Level)
		assert.Equal(t, int64(30), stored.Experience)
	})

	t.Run("award at the cap is a no-op gain", func(t *testing.T) {
		f := newProgress(t)
		c := f.seedCreature(t, "phantom", 100, 30)

		res, err := f.svc.AwardExperience(ctx, c.ID, 1000)
		require.NoError(t, err)
		assert.Equal(t, 0, res.LevelsGained)

		stored, err := f.store.Creatures().Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 100, stored.Level)
		assert.Equal(t, int64(30), stored.Experience, "capped creatures keep their remainder untouched")
	})

	t.Run("split awards land in the same state as one", func(t *testing.T) {
		f := newProgress(t)
		split := f.seedCreature(t, "wisp", 1, 0)
		whole := f.seedCreature(t, "wisp", 1, 0)

		_, err := f.svc.AwardExperience(ctx, split.ID, 11)
		require.NoError(t, err)
		_, err = f.svc.AwardExperience(ctx, split.ID, 20)
		require.NoError(t, err)
		_, err = f.svc.AwardExperience(ctx, whole.ID, 31)
		require.NoError(t, err)

		a, err := f.store.Creatures().Get(ctx, split.ID)
		require.NoError(t, err)
		b, err := f.store.Creatures().Get(ctx, whole.ID)
		require.NoError(t, err)
		assert.Equal(t, b.Level, a.Level)
		assert.Equal(t, b.Experience, a.Experience)
		assert.Equal(t, b.SpeciesCode, a.SpeciesCode)
	})

	t.Run("revision conflicts retry and succeed", func(t *testing.T) {
		f := newProgress(t)
		c := f.seedCreature(t, "wisp", 1, 0)

		flaky := &flakyCreatures{CreatureRepository: f.store.Creatures()}
		flaky.mismatches.Store(2)
		svc := progress.NewService(progress.ServiceConfig{
			Creatures: flaky,
			Users:     f.store.Users(),
			Coord:     f.coord,
			Catalog:   f.cat,
			Logger:    slog.New(slog.DiscardHandler),
		})

		res, err := svc.AwardExperience(ctx, c.ID, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(5), res.Creature.Experience)

		stored, err := f.store.Creatures().Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5), stored.Experience)
	})

	t.Run("exhausted retry budget surfaces contention", func(t *testing.T) {
		f := newProgress(t)
		c := f.seedCreature(t, "wisp", 1, 0)

		flaky := &flakyCreatures{CreatureRepository: f.store.Creatures()}
		flaky.mismatches.Store(100)
		svc := progress.NewService(progress.ServiceConfig{
			Creatures: flaky,
			Users:     f.store.Users(),
			Coord:     f.coord,
			Catalog:   f.cat,
			Logger:    slog.New(slog.DiscardHandler),
		})

		_, err := svc.AwardExperience(ctx, c.ID, 5)
		require.Error(t, err)
		assert.ErrorIs(t, err, game.ErrContended)
		errutil.AssertErrorCode(t, err, "PROGRESS_CONTENDED")
	})
}

func TestClaimDaily(t *testing.T) {
	ctx := context.Background()
	day1 := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	t.Run("first claim starts the streak", func(t *testing.T) {
		f := newProgress(t)
		userID := f.seedUser(t)
		f.svc.SetClock(func() time.Time { return day1 })

		res, err := f.svc.ClaimDaily(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Streak)
		assert.Equal(t, int64(100), res.Coins)
		assert.Equal(t, int64(50), res.Exp)

		u, err := f.store.Users().Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, int64(1100), u.Coins)
		assert.Equal(t, int64(50), u.Experience)
		require.NotNil(t, u.LastDailyClaim)
		assert.Equal(t, 3, u.TrainerLevel, "50 exp lands at trainer level 3")
	})

	t.Run("same-day second claim is rejected", func(t *testing.T) {
		f := newProgress(t)
		userID := f.seedUser(t)
		f.svc.SetClock(func() time.Time { return day1 })

		_, err := f.svc.ClaimDaily(ctx, userID)
		require.NoError(t, err)

		f.svc.SetClock(func() time.Time { return day1.Add(3 * time.Hour) })
		_, err = f.svc.ClaimDaily(ctx, userID)
		require.Error(t, err)
		assert.ErrorIs(t, err, game.ErrOnCooldown)
		errutil.AssertErrorCode(t, err, "DAILY_ALREADY_CLAIMED")
	})

	t.Run("consecutive-day claim extends the streak", func(t *testing.T) {
		f := newProgress(t)
		userID := f.seedUser(t)

		f.svc.SetClock(func() time.Time { return day1 })
		_, err := f.svc.ClaimDaily(ctx, userID)
		require.NoError(t, err)

		f.svc.SetClock(func() time.Time { return day1.Add(24 * time.Hour) })
		res, err := f.svc.ClaimDaily(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Streak)
		assert.Equal(t, int64(125), res.Coins)
	})

	t.Run("a missed day resets the streak", func(t *testing.T) {
		f := newProgress(t)
		userID := f.seedUser(t)
		threeDaysAgo := day1.Add(-72 * time.Hour)
		require.NoError(t, f.store.Users().RecordDailyClaim(ctx, userID, 5, threeDaysAgo, 0, 0))

		f.svc.SetClock(func() time.Time { return day1 })
		res, err := f.svc.ClaimDaily(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Streak)
		assert.Equal(t, int64(100), res.Coins)
	})

	t.Run("streak bonus caps", func(t *testing.T) {
		f := newProgress(t)
		userID := f.seedUser(t)
		yesterday := day1.Add(-24 * time.Hour)
		require.NoError(t, f.store.Users().RecordDailyClaim(ctx, userID, 25, yesterday, 0, 0))

		f.svc.SetClock(func() time.Time { return day1 })
		res, err := f.svc.ClaimDaily(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 26, res.Streak)
		assert.Equal(t, int64(100+25*20), res.Coins)
	})

	t.Run("held lock means contended", func(t *testing.T) {
		f := newProgress(t)
		userID := f.seedUser(t)

		_, ok, err := f.coord.AcquireLock(ctx, coord.DailyLockKey(userID), time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		_, err = f.svc.ClaimDaily(ctx, userID)
		require.Error(t, err)
		assert.ErrorIs(t, err, game.ErrContended)
		errutil.AssertErrorCode(t, err, "DAILY_CONTENDED")
	})
}

func TestAwardTrainerExperience(t *testing.T) {
	ctx := context.Background()

	t.Run("negative amount is rejected", func(t *testing.T) {
		f := newProgress(t)
		userID := f.seedUser(t)
		err := f.svc.AwardTrainerExperience(ctx, userID, -5)
		var verr *game.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("crossing a curve boundary raises the trainer level", func(t *testing.T) {
		f := newProgress(t)
		userID := f.seedUser(t)

		require.NoError(t, f.svc.AwardTrainerExperience(ctx, userID, 130))

		u, err := f.store.Users().Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, int64(130), u.Experience)
		assert.Equal(t, 5, u.TrainerLevel)
	})

	t.Run("trainer level never goes down", func(t *testing.T) {
		f := newProgress(t)
		userID := f.seedUser(t)

		require.NoError(t, f.svc.AwardTrainerExperience(ctx, userID, 1000))
		before, err := f.store.Users().Get(ctx, userID)
		require.NoError(t, err)

		require.NoError(t, f.svc.SyncTrainerLevel(ctx, userID))
		after, err := f.store.Users().Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, before.TrainerLevel, after.TrainerLevel)
	})
}

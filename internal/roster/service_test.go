// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package roster_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chattermon/chattermon/internal/game"
	"github.com/chattermon/chattermon/internal/game/gametest"
	"github.com/chattermon/chattermon/internal/roster"
	"github.com/chattermon/chattermon/pkg/errutil"
)

type rosterFixture struct {
	svc    *roster.Service
	store  *gametest.Store
	userID ulid.ULID
}

func newRoster(t *testing.T) *rosterFixture {
	t.Helper()

	store := gametest.NewStore()
	svc := roster.NewService(roster.ServiceConfig{
		Creatures: store.Creatures(),
		Tx:        store.Tx(),
		Logger:    slog.New(slog.DiscardHandler),
	})

	u, err := game.NewUser("telegram:1")
	require.NoError(t, err)
	require.NoError(t, store.Users().Create(context.Background(), u))
	return &rosterFixture{svc: svc, store: store, userID: u.ID}
}

func (f *rosterFixture) seedCreature(t *testing.T, createdAt time.Time) *game.Creature {
	t.Helper()
	c := &game.Creature{
		ID:          ulid.Make(),
		OwnerID:     &f.userID,
		SpeciesCode: "puddlepup",
		Level:       7,
		Stats:       game.StatBlock{HP: 30, Attack: 20, Defense: 20, SpAttack: 20, SpDefense: 20, Speed: 20},
		Nature:      "hardy",
		Revision:    1,
		CreatedAt:   createdAt,
	}
	require.NoError(t, f.store.Creatures().Create(context.Background(), c))
	return c
}

func TestList(t *testing.T) {
	ctx := context.Background()

	t.Run("pages newest first", func(t *testing.T) {
		f := newRoster(t)
		base := time.Now()
		oldest := f.seedCreature(t, base.Add(-3*time.Hour))
		middle := f.seedCreature(t, base.Add(-2*time.Hour))
		newest := f.seedCreature(t, base.Add(-time.Hour))

		page, err := f.svc.List(ctx, f.userID, 2, 0)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, newest.ID, page[0].ID)
		assert.Equal(t, middle.ID, page[1].ID)

		page, err = f.svc.List(ctx, f.userID, 2, 2)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, oldest.ID, page[0].ID)
	})

	t.Run("clamps pagination bounds", func(t *testing.T) {
		f := newRoster(t)
		f.seedCreature(t, time.Now())

		page, err := f.svc.List(ctx, f.userID, -5, -10)
		require.NoError(t, err)
		assert.Len(t, page, 1, "non-positive limit and offset fall back to defaults")

		page, err = f.svc.List(ctx, f.userID, 0, 100)
		require.NoError(t, err)
		assert.Empty(t, page)
	})
}

func TestRename(t *testing.T) {
	ctx := context.Background()

	t.Run("sets and clears a nickname", func(t *testing.T) {
		f := newRoster(t)
		c := f.seedCreature(t, time.Now())

		require.NoError(t, f.svc.Rename(ctx, f.userID, c.ID, "Puddles"))
		got, err := f.store.Creatures().Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "Puddles", got.Nickname)

		require.NoError(t, f.svc.Rename(ctx, f.userID, c.ID, ""))
		got, err = f.store.Creatures().Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Nickname)
	})

	t.Run("rejects an invalid nickname", func(t *testing.T) {
		f := newRoster(t)
		c := f.seedCreature(t, time.Now())
		err := f.svc.Rename(ctx, f.userID, c.ID, "has\nnewline")
		var verr *game.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("only the owner may rename", func(t *testing.T) {
		f := newRoster(t)
		c := f.seedCreature(t, time.Now())
		err := f.svc.Rename(ctx, ulid.Make(), c.ID, "Mine")
		assert.ErrorIs(t, err, game.ErrNotFound)
	})
}

func TestAddToTeam(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns the next free slot", func(t *testing.T) {
		f := newRoster(t)
		first := f.seedCreature(t, time.Now())
		second := f.seedCreature(t, time.Now())

		require.NoError(t, f.svc.AddToTeam(ctx, f.userID, first.ID))
		require.NoError(t, f.svc.AddToTeam(ctx, f.userID, second.ID))

		team, err := f.svc.Team(ctx, f.userID)
		require.NoError(t, err)
		require.Len(t, team, 2)
		assert.Equal(t, first.ID, team[0].ID)
		assert.Equal(t, 1, *team[0].TeamSlot)
		assert.Equal(t, second.ID, team[1].ID)
		assert.Equal(t, 2, *team[1].TeamSlot)
	})

	t.Run("re-adding a member is a no-op", func(t *testing.T) {
		f := newRoster(t)
		c := f.seedCreature(t, time.Now())
		require.NoError(t, f.svc.AddToTeam(ctx, f.userID, c.ID))
		require.NoError(t, f.svc.AddToTeam(ctx, f.userID, c.ID))

		team, err := f.svc.Team(ctx, f.userID)
		require.NoError(t, err)
		assert.Len(t, team, 1)
	})

	t.Run("the team caps at six", func(t *testing.T) {
		f := newRoster(t)
		for range game.MaxTeamSize {
			c := f.seedCreature(t, time.Now())
			require.NoError(t, f.svc.AddToTeam(ctx, f.userID, c.ID))
		}

		extra := f.seedCreature(t, time.Now())
		err := f.svc.AddToTeam(ctx, f.userID, extra.ID)
		var verr *game.ValidationError
		require.ErrorAs(t, err, &verr)

		got, err := f.store.Creatures().Get(ctx, extra.ID)
		require.NoError(t, err)
		assert.False(t, got.InTeam, "a failed add leaves the creature out of the team")
	})

	t.Run("only the owner may add", func(t *testing.T) {
		f := newRoster(t)
		c := f.seedCreature(t, time.Now())
		err := f.svc.AddToTeam(ctx, ulid.Make(), c.ID)
		require.Error(t, err)
		assert.ErrorIs(t, err, game.ErrNotFound)
		errutil.AssertErrorCode(t, err, "ROSTER_NOT_OWNER")
	})
}

func TestRemoveFromTeam(t *testing.T) {
	ctx := context.Background()

	t.Run("removal compacts the remaining slots", func(t *testing.T) {
		f := newRoster(t)
		members := make([]*game.Creature, 3)
		for i := range members {
			members[i] = f.seedCreature(t, time.Now())
			require.NoError(t, f.svc.AddToTeam(ctx, f.userID, members[i].ID))
		}

		require.NoError(t, f.svc.RemoveFromTeam(ctx, f.userID, members[0].ID))

		team, err := f.svc.Team(ctx, f.userID)
		require.NoError(t, err)
		require.Len(t, team, 2)
		assert.Equal(t, members[1].ID, team[0].ID)
		assert.Equal(t, 1, *team[0].TeamSlot)
		assert.Equal(t, members[2].ID, team[1].ID)
		assert.Equal(t, 2, *team[1].TeamSlot)

		removed, err := f.store.Creatures().Get(ctx, members[0].ID)
		require.NoError(t, err)
		assert.False(t, removed.InTeam)
		assert.Nil(t, removed.TeamSlot)
	})

	t.Run("removing a non-member fails", func(t *testing.T) {
		f := newRoster(t)
		c := f.seedCreature(t, time.Now())

		err := f.svc.RemoveFromTeam(ctx, f.userID, c.ID)
		require.Error(t, err)
		assert.ErrorIs(t, err, game.ErrNotFound)
		errutil.AssertErrorCode(t, err, "ROSTER_NOT_IN_TEAM")
	})
}

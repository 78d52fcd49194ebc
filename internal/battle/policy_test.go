// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package battle_test

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chattermon/chattermon/internal/battle"
	"github.com/chattermon/chattermon/internal/catalog"
	"github.com/chattermon/chattermon/internal/game"
	"github.com/chattermon/chattermon/pkg/errutil"
)

func arenaCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load([]byte(arenaDataset))
	require.NoError(t, err)
	return cat
}

func combat(code string, moves ...string) game.Combatant {
	return game.Combatant{
		SpeciesCode: code,
		Name:        code,
		Level:       10,
		Stats:       game.StatBlock{HP: 60, Attack: 50, Defense: 50, SpAttack: 50, SpDefense: 50, Speed: 50},
		HP:          60,
		Moves:       moves,
	}
}

func duelState(a, b []game.Combatant) *game.Battle {
	return &game.Battle{
		ID:     ulid.Make(),
		Status: game.BattleInProgress,
		Sides: [2]game.BattleSide{
			{Team: a},
			{Team: b},
		},
		Turn: 1,
		Seed: 1,
	}
}

func TestGreedyPolicy(t *testing.T) {
	cat := arenaCatalog(t)

	t.Run("prefers the super-effective move", func(t *testing.T) {
		b := duelState(
			[]game.Combatant{combat("cinder", "ember", "tackle")},
			[]game.Combatant{combat("sproutling", "leaf")},
		)
		action, err := battle.GreedyPolicy{}.Choose(b, game.SideA, cat)
		require.NoError(t, err)
		assert.Equal(t, game.ActionMove, action.Kind)
		assert.Equal(t, "ember", action.Move)
	})

	t.Run("avoids the resisted move", func(t *testing.T) {
		// Fire into fire is resisted, so the neutral move wins.
		b := duelState(
			[]game.Combatant{combat("cinder", "ember", "tackle")},
			[]game.Combatant{combat("cinder", "ember", "tackle")},
		)
		action, err := battle.GreedyPolicy{}.Choose(b, game.SideA, cat)
		require.NoError(t, err)
		assert.Equal(t, "tackle", action.Move)
	})

	t.Run("score tie goes to pool order", func(t *testing.T) {
		b := duelState(
			[]game.Combatant{combat("plainling", "thump", "bump")},
			[]game.Combatant{combat("cinder", "ember")},
		)
		action, err := battle.GreedyPolicy{}.Choose(b, game.SideA, cat)
		require.NoError(t, err)
		assert.Equal(t, "thump", action.Move)
	})

	t.Run("no usable move is an error", func(t *testing.T) {
		b := duelState(
			[]game.Combatant{combat("cinder", "roar")},
			[]game.Combatant{combat("plainling", "thump")},
		)
		_, err := battle.GreedyPolicy{}.Choose(b, game.SideA, cat)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "POLICY_NO_MOVE")
	})
}

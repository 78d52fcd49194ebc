// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package battle

import (
	"github.com/samber/oops"

	"github.com/chattermon/chattermon/internal/catalog"
	"github.com/chattermon/chattermon/internal/game"
)

// Policy chooses an action for a generated (non-user) side. Choices must
// be deterministic given the battle state, or replay determinism breaks.
type Policy interface {
	Choose(b *game.Battle, side int, cat *catalog.Catalog) (game.Action, error)
}

// GreedyPolicy picks the move with the highest expected damage
// (power × type effectiveness), breaking ties by move-pool order.
type GreedyPolicy struct{}

// Choose implements Policy.
func (GreedyPolicy) Choose(b *game.Battle, side int, cat *catalog.Catalog) (game.Action, error) {
	attacker := b.Sides[side].ActiveCombatant()
	defender := b.Sides[1-side].ActiveCombatant()

	defSpecies, err := cat.Lookup(defender.SpeciesCode)
	if err != nil {
		return game.Action{}, err
	}
	atkSpecies, err := cat.Lookup(attacker.SpeciesCode)
	if err != nil {
		return game.Action{}, err
	}

	best := ""
	bestScore := -1.0
	for _, name := range attacker.Moves {
		mv := findMove(atkSpecies, name)
		if mv == nil {
			continue
		}
		score := float64(mv.Power) * catalog.TypeEffectiveness(mv.Type, defSpecies.Type)
		if score > bestScore {
			bestScore = score
			best = mv.Name
		}
	}
	if best == "" {
		return game.Action{}, oops.Code("POLICY_NO_MOVE").
			With("species", attacker.SpeciesCode).
			Errorf("combatant has no usable move")
	}
	return game.Action{Kind: game.ActionMove, Move: best}, nil
}

// findMove resolves a move name in a species move pool.
func findMove(sp *catalog.Species, name string) *catalog.Move {
	for i := range sp.Moves {
		if sp.Moves[i].Name == name {
			return &sp.Moves[i]
		}
	}
	return nil
}

// Compile-time interface check.
var _ Policy = GreedyPolicy{}

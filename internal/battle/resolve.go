// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package battle

import (
	"math/rand/v2"

	"github.com/samber/oops"

	"github.com/chattermon/chattermon/internal/catalog"
	"github.com/chattermon/chattermon/internal/game"
)

// Damage formula constants, matching the derived-stat scale.
const (
	damageScale   = 0.4
	damageRollMin = 0.85
	damageRollMax = 1.0
)

// resolveTurn resolves one complete turn: both pending actions in speed
// order, log appends, faints, and completion. The per-turn RNG is
// derived from (seed, turn), so resolving the same stored state twice
// produces byte-identical results regardless of when or where it runs.
func resolveTurn(b *game.Battle, cat *catalog.Catalog) error {
	if b.Pending[game.SideA] == nil || b.Pending[game.SideB] == nil {
		return oops.Code("BATTLE_TURN_INCOMPLETE").Errorf("both sides must submit before resolution")
	}

	rng := rand.New(rand.NewPCG(uint64(b.Seed), uint64(b.Turn)))

	index := 0
	for _, side := range actionOrder(b) {
		action := *b.Pending[side]
		entry := game.ResolvedAction{
			Turn:     b.Turn,
			Index:    index,
			Side:     side,
			Kind:     action.Kind,
			Move:     action.Move,
			SwitchTo: action.SwitchTo,
		}

		switch action.Kind {
		case game.ActionSwitch:
			resolveSwitch(b, side, action, &entry)
		case game.ActionMove:
			if err := resolveMove(b, side, action, cat, rng, &entry); err != nil {
				return err
			}
		default:
			return oops.Code("BATTLE_BAD_ACTION").With("kind", string(action.Kind)).
				Errorf("unknown action kind %q", action.Kind)
		}

		b.Log = append(b.Log, entry)
		index++
	}

	for side := range b.Sides {
		if b.Sides[side].Defeated() {
			winner := 1 - side
			b.Status = game.BattleComplete
			b.Winner = &winner
			b.Pending = [2]*game.Action{}
			return nil
		}
	}

	for side := range b.Sides {
		autoSwitch(&b.Sides[side])
	}

	b.Turn++
	b.Pending = [2]*game.Action{}
	return nil
}

// actionOrder returns side indices in resolution order: by active
// combatant speed, descending; ties go to the lower side index.
func actionOrder(b *game.Battle) [2]int {
	speedA := b.Sides[game.SideA].ActiveCombatant().Stats.Speed
	speedB := b.Sides[game.SideB].ActiveCombatant().Stats.Speed
	if speedB > speedA {
		return [2]int{game.SideB, game.SideA}
	}
	return [2]int{game.SideA, game.SideB}
}

// resolveSwitch swaps the side's active combatant. Switching to a
// combatant that fainted earlier this turn fizzles.
func resolveSwitch(b *game.Battle, side int, action game.Action, entry *game.ResolvedAction) {
	s := &b.Sides[side]
	if action.SwitchTo < 0 || action.SwitchTo >= len(s.Team) || s.Team[action.SwitchTo].Fainted() {
		entry.Fizzled = true
		return
	}
	s.Active = action.SwitchTo
}

// resolveMove applies one attack. A fainted attacker or target fizzles
// the action rather than erroring: the submission was legal when made.
func resolveMove(b *game.Battle, side int, action game.Action, cat *catalog.Catalog, rng *rand.Rand, entry *game.ResolvedAction) error {
	attacker := b.Sides[side].ActiveCombatant()
	defender := b.Sides[1-side].ActiveCombatant()

	if attacker.Fainted() || defender.Fainted() {
		entry.Fizzled = true
		return nil
	}

	atkSpecies, err := cat.Lookup(attacker.SpeciesCode)
	if err != nil {
		return err
	}
	defSpecies, err := cat.Lookup(defender.SpeciesCode)
	if err != nil {
		return err
	}
	mv := findMove(atkSpecies, action.Move)
	if mv == nil {
		return oops.Code("BATTLE_UNKNOWN_MOVE").
			With("species", attacker.SpeciesCode).
			With("move", action.Move).
			Errorf("combatant does not know move %q", action.Move)
	}

	eff := catalog.TypeEffectiveness(mv.Type, defSpecies.Type)
	roll := damageRollMin + rng.Float64()*(damageRollMax-damageRollMin)
	damage := int(float64(attacker.Stats.Attack) * float64(mv.Power) /
		float64(defender.Stats.Defense) * damageScale * eff * roll)
	if damage < 1 {
		damage = 1
	}

	defender.HP -= damage
	if defender.HP < 0 {
		defender.HP = 0
	}
	entry.Damage = damage

	if defender.Fainted() {
		entry.FaintedTarget = true
	}
	return nil
}

// autoSwitch advances a side's active slot to its first standing
// combatant after a faint. Runs at end of turn so that a second action
// targeting the fainted combatant fizzles instead of hitting the
// replacement.
func autoSwitch(s *game.BattleSide) {
	if !s.ActiveCombatant().Fainted() {
		return
	}
	for i := range s.Team {
		if !s.Team[i].Fainted() {
			s.Active = i
			return
		}
	}
}

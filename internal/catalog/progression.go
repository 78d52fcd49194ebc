// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package catalog

import (
	"github.com/chattermon/chattermon/internal/game"
)

// Curve maps a level to the experience required to reach the next one.
// Threshold must be monotonically non-decreasing in level.
type Curve interface {
	Threshold(level int) int64
}

// cubicCurve is the default curve: total experience for level L is L³,
// so the per-level threshold is (L+1)³ − L³.
type cubicCurve struct{}

func (cubicCurve) Threshold(level int) int64 {
	next := int64(level + 1)
	cur := int64(level)
	return next*next*next - cur*cur*cur
}

// CubicCurve returns the default level-experience curve.
func CubicCurve() Curve {
	return cubicCurve{}
}

// TrainerLevel maps total trainer experience to a trainer level on the
// cubic total-experience curve: the largest L with L³ ≤ exp, clamped to
// [1, 100].
func TrainerLevel(exp int64) int {
	level := 1
	for level < 100 {
		next := int64(level + 1)
		if next*next*next > exp {
			break
		}
		level++
	}
	return level
}

// natureModifiers maps a nature to its stat multipliers. Stats absent
// from the map are unmodified.
var natureModifiers = map[string]map[string]float64{
	"hardy":   {},
	"adamant": {"attack": 1.1, "sp_attack": 0.9},
	"modest":  {"sp_attack": 1.1, "attack": 0.9},
	"timid":   {"speed": 1.1, "attack": 0.9},
	"jolly":   {"speed": 1.1, "sp_attack": 0.9},
	"bold":    {"defense": 1.1, "attack": 0.9},
	"calm":    {"sp_defense": 1.1, "attack": 0.9},
}

// Natures returns the known nature names in a fixed order, for uniform
// draws.
func Natures() []string {
	return []string{"hardy", "adamant", "modest", "timid", "jolly", "bold", "calm"}
}

// DeriveStats computes a creature's stat block from species base stats,
// level, and nature. The shiny flag is cosmetic and does not affect
// stats.
func DeriveStats(base BaseStats, level int, nature string) game.StatBlock {
	mods := natureModifiers[nature]

	stat := func(baseValue int, name string) int {
		v := (2*baseValue+31)*level/100 + 5
		if m, ok := mods[name]; ok {
			v = int(float64(v) * m)
		}
		return v
	}

	return game.StatBlock{
		HP:        (2*base.HP+31)*level/100 + level + 10,
		Attack:    stat(base.Attack, "attack"),
		Defense:   stat(base.Defense, "defense"),
		SpAttack:  stat(base.SpAttack, "sp_attack"),
		SpDefense: stat(base.SpDefense, "sp_defense"),
		Speed:     stat(base.Speed, "speed"),
	}
}

// TypeEffectiveness returns the damage multiplier for an attacking move
// type against a defending species type. Unlisted pairings are neutral.
func TypeEffectiveness(attacking, defending string) float64 {
	chart := map[string]map[string]float64{
		"fire":     {"grass": 2.0, "water": 0.5, "fire": 0.5},
		"water":    {"fire": 2.0, "grass": 0.5, "water": 0.5},
		"grass":    {"water": 2.0, "fire": 0.5, "grass": 0.5},
		"electric": {"water": 2.0, "grass": 0.5, "electric": 0.5, "ground": 0.0},
		"ground":   {"electric": 2.0, "grass": 0.5, "flying": 0.0},
		"flying":   {"grass": 2.0, "electric": 2.0, "ground": 0.0},
	}
	if m, ok := chart[attacking]; ok {
		if eff, ok := m[defending]; ok {
			return eff
		}
	}
	return 1.0
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package game

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// BattleStatus identifies the lifecycle state of a battle.
type BattleStatus string

// Battle statuses. COMPLETE is terminal. A battle abandoned past its
// inactivity deadline completes lazily with no winner.
const (
	BattleInProgress BattleStatus = "in_progress"
	BattleComplete   BattleStatus = "complete"
)

// String returns the string representation of the battle status.
func (s BattleStatus) String() string {
	return string(s)
}

// Side indices into Battle.Sides.
const (
	SideA = 0
	SideB = 1
)

// ActionKind identifies what a combatant does on its turn.
type ActionKind string

// Action kinds.
const (
	ActionMove   ActionKind = "move"
	ActionSwitch ActionKind = "switch"
)

// Action is a turn submission for one side.
type Action struct {
	Kind     ActionKind `json:"kind"`
	Move     string     `json:"move,omitempty"`      // move name, for ActionMove
	SwitchTo int        `json:"switch_to,omitempty"` // team index, for ActionSwitch
}

// Combatant is a snapshot of a creature at battle start. Stats are
// copied, not referenced, so ownership or progression changes during the
// battle cannot corrupt combat state.
type Combatant struct {
	CreatureID  ulid.ULID `json:"creature_id"`
	SpeciesCode string    `json:"species_code"`
	Name        string    `json:"name"`
	Level       int       `json:"level"`
	Stats       StatBlock `json:"stats"`
	HP          int       `json:"hp"` // current hit points
	Moves       []string  `json:"moves"`
}

// Fainted reports whether the combatant is out of hit points.
func (c *Combatant) Fainted() bool {
	return c.HP <= 0
}

// BattleSide is one side of a battle: a user (or a generated opponent)
// and its team snapshot.
type BattleSide struct {
	UserID *ulid.ULID  `json:"user_id,omitempty"` // nil for generated opponents
	Active int         `json:"active"`            // index of the active combatant
	Team   []Combatant `json:"team"`
}

// Defeated reports whether every team member has fainted.
func (s *BattleSide) Defeated() bool {
	for i := range s.Team {
		if !s.Team[i].Fainted() {
			return false
		}
	}
	return true
}

// ActiveCombatant returns the side's active combatant.
func (s *BattleSide) ActiveCombatant() *Combatant {
	return &s.Team[s.Active]
}

// ResolvedAction is one entry in the battle log: a fully resolved action
// and its state delta. The log is append-only and ordered by turn, then
// action index; it is the authoritative replay record.
type ResolvedAction struct {
	Turn  int `json:"turn"`
	Index int `json:"index"` // resolution order within the turn
	Side  int `json:"side"`

	Kind     ActionKind `json:"kind"`
	Move     string     `json:"move,omitempty"`
	SwitchTo int        `json:"switch_to,omitempty"`

	Damage        int  `json:"damage,omitempty"`
	Fizzled       bool `json:"fizzled,omitempty"` // target fainted earlier this turn
	FaintedTarget bool `json:"fainted_target,omitempty"`
}

// Battle is a turn-based fight between two sides. Turn N+1 cannot
// resolve before turn N; submissions carrying a stale turn index are
// rejected.
type Battle struct {
	ID     ulid.ULID
	Status BattleStatus

	Sides [2]BattleSide

	// Turn is the index of the turn currently accepting submissions,
	// starting at 1.
	Turn int

	// Pending holds submitted-but-unresolved actions for the current
	// turn, one slot per side. Both present triggers resolution.
	Pending [2]*Action

	Log    []ResolvedAction
	Winner *int // side index, nil until COMPLETE (and nil if abandoned)

	// Seed drives every random draw in the battle. Identical snapshots,
	// seed, and action choices replay to an identical log and winner.
	Seed int64

	LastActivityAt time.Time
	CreatedAt      time.Time
}

// SideOf returns the side index the user fights on.
func (b *Battle) SideOf(userID ulid.ULID) (int, bool) {
	for i := range b.Sides {
		if b.Sides[i].UserID != nil && *b.Sides[i].UserID == userID {
			return i, true
		}
	}
	return 0, false
}

// InactiveSince reports whether the battle has seen no activity for the
// given window as of now.
func (b *Battle) InactiveSince(now time.Time, window time.Duration) bool {
	return now.Sub(b.LastActivityAt) >= window
}

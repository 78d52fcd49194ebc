// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package game

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Creature level bounds and team limits.
const (
	MinCreatureLevel = 1
	MaxCreatureLevel = 100
	MaxTeamSize      = 6
	MaxNicknameLen   = 20
)

// StatBlock is the derived stat set for a creature at its current level.
// Values are recomputed from catalog base stats whenever level or species
// changes; they are never edited directly.
type StatBlock struct {
	HP        int `json:"hp"`
	Attack    int `json:"attack"`
	Defense   int `json:"defense"`
	SpAttack  int `json:"sp_attack"`
	SpDefense int `json:"sp_defense"`
	Speed     int `json:"speed"`
}

// Creature is an owned, leveled game entity derived from a catalog
// species plus individual modifiers (nature, shiny).
type Creature struct {
	ID      ulid.ULID
	OwnerID *ulid.ULID // nil only for transient wild-spawn placeholders

	SpeciesCode string
	Nickname    string

	Level      int
	Experience int64 // progress within the current level (carry-over units)
	Stats      StatBlock

	Nature string
	Shiny  bool

	InTeam   bool
	TeamSlot *int // 1-based position when InTeam

	// Revision guards conditional updates: every progression write
	// compares and increments it.
	Revision int64

	CreatedAt time.Time
}

// Owned reports whether the creature has an owner (is not a wild
// placeholder).
func (c *Creature) Owned() bool {
	return c.OwnerID != nil
}

// OwnedBy reports whether the creature is owned by the given user.
func (c *Creature) OwnedBy(userID ulid.ULID) bool {
	return c.OwnerID != nil && *c.OwnerID == userID
}

// Validate checks creature invariants.
func (c *Creature) Validate() error {
	if c.ID.IsZero() {
		return &ValidationError{Field: "id", Message: "cannot be zero"}
	}
	if c.SpeciesCode == "" {
		return &ValidationError{Field: "species_code", Message: "cannot be empty"}
	}
	if c.Level < MinCreatureLevel || c.Level > MaxCreatureLevel {
		return &ValidationError{Field: "level", Message: "out of range"}
	}
	if c.Experience < 0 {
		return &ValidationError{Field: "experience", Message: "cannot be negative"}
	}
	if err := ValidateNickname(c.Nickname); err != nil {
		return err
	}
	if c.InTeam && c.TeamSlot == nil {
		return &ValidationError{Field: "team_slot", Message: "required when in team"}
	}
	if c.TeamSlot != nil && (*c.TeamSlot < 1 || *c.TeamSlot > MaxTeamSize) {
		return &ValidationError{Field: "team_slot", Message: "out of range"}
	}
	return nil
}

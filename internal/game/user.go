// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

// Package game contains the domain model for the chattermon engine:
// users, creatures, spawns, battles, and trades, plus the repository
// contracts their persistence must satisfy.
package game

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Trainer level bounds.
const (
	MinTrainerLevel = 1
	MaxTrainerLevel = 100
)

// User is a trainer: one per platform identity.
type User struct {
	ID         ulid.ULID
	PlatformID string // platform-scoped identity, e.g. "telegram:12345"

	TrainerLevel int
	Experience   int64
	Coins        int64

	DailyStreak    int
	LastDailyClaim *time.Time

	BattlesWon      int
	BattlesLost     int
	CreaturesCaught int

	CreatedAt time.Time
}

// NewUser creates a User for a platform identity with starting balances.
func NewUser(platformID string) (*User, error) {
	if platformID == "" {
		return nil, &ValidationError{Field: "platform_id", Message: "cannot be empty"}
	}
	return &User{
		ID:           ulid.Make(),
		PlatformID:   platformID,
		TrainerLevel: MinTrainerLevel,
		Coins:        1000,
		CreatedAt:    time.Now(),
	}, nil
}

// Validate checks the user invariants: coins never negative, trainer
// level within bounds.
func (u *User) Validate() error {
	if u.ID.IsZero() {
		return &ValidationError{Field: "id", Message: "cannot be zero"}
	}
	if u.PlatformID == "" {
		return &ValidationError{Field: "platform_id", Message: "cannot be empty"}
	}
	if u.Coins < 0 {
		return &ValidationError{Field: "coins", Message: "cannot be negative"}
	}
	if u.TrainerLevel < MinTrainerLevel || u.TrainerLevel > MaxTrainerLevel {
		return &ValidationError{Field: "trainer_level", Message: "out of range"}
	}
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package game

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// SpawnStatus identifies the lifecycle state of a spawn.
type SpawnStatus string

// Spawn statuses. ACTIVE has exactly one terminal transition: to CAUGHT
// (first successful claimant) or to EXPIRED (deadline passed). The two
// terminal states are mutually exclusive.
const (
	SpawnActive  SpawnStatus = "active"
	SpawnCaught  SpawnStatus = "caught"
	SpawnExpired SpawnStatus = "expired"
)

// String returns the string representation of the spawn status.
func (s SpawnStatus) String() string {
	return string(s)
}

// Terminal reports whether the status admits no further transitions.
func (s SpawnStatus) Terminal() bool {
	return s == SpawnCaught || s == SpawnExpired
}

// Spawn is a time-bounded, claimable wild-creature appearance in a chat
// room. Claiming creates a new Creature; the spawn itself owns nothing.
type Spawn struct {
	ID     ulid.ULID
	ChatID string

	SpeciesCode string
	Level       int
	Shiny       bool

	Status   SpawnStatus
	CaughtBy *ulid.ULID // set on transition to CAUGHT

	SpawnedAt time.Time
	ExpiresAt time.Time
}

// ExpiredAt reports whether the spawn's deadline has passed at the given
// instant. Expiry is applied lazily at read time; a spawn past its
// deadline must never be claimable regardless of its stored status.
func (s *Spawn) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Validate checks spawn invariants.
func (s *Spawn) Validate() error {
	if s.ID.IsZero() {
		return &ValidationError{Field: "id", Message: "cannot be zero"}
	}
	if s.ChatID == "" {
		return &ValidationError{Field: "chat_id", Message: "cannot be empty"}
	}
	if s.SpeciesCode == "" {
		return &ValidationError{Field: "species_code", Message: "cannot be empty"}
	}
	if s.Level < MinCreatureLevel || s.Level > MaxCreatureLevel {
		return &ValidationError{Field: "level", Message: "out of range"}
	}
	if !s.ExpiresAt.After(s.SpawnedAt) {
		return &ValidationError{Field: "expires_at", Message: "must be after spawned_at"}
	}
	switch s.Status {
	case SpawnActive, SpawnCaught, SpawnExpired:
	default:
		return &ValidationError{Field: "status", Message: "unknown status"}
	}
	if s.Status == SpawnCaught && s.CaughtBy == nil {
		return &ValidationError{Field: "caught_by", Message: "required when caught"}
	}
	return nil
}

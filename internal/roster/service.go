// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

// Package roster implements collection management: listing a trainer's
// creatures, nicknames, and the active team.
package roster

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/chattermon/chattermon/internal/game"
)

// List pagination bounds.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ServiceConfig holds dependencies for the roster Service.
type ServiceConfig struct {
	Creatures game.CreatureRepository
	Tx        game.Transactor
	Logger    *slog.Logger
}

// Service manages a trainer's creature collection.
type Service struct {
	creatures game.CreatureRepository
	tx        game.Transactor
	logger    *slog.Logger
}

// NewService creates a roster Service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		creatures: cfg.Creatures,
		tx:        cfg.Tx,
		logger:    cfg.Logger,
	}
}

// List returns a page of the user's creatures, newest first.
func (s *Service) List(ctx context.Context, userID ulid.ULID, limit, offset int) ([]*game.Creature, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.creatures.ListByOwner(ctx, userID, limit, offset)
}

// Team returns the user's active team in slot order.
func (s *Service) Team(ctx context.Context, userID ulid.ULID) ([]*game.Creature, error) {
	return s.creatures.ListTeam(ctx, userID)
}

// Rename sets a creature's nickname. An empty nickname reverts to the
// species display name.
func (s *Service) Rename(ctx context.Context, userID, creatureID ulid.ULID, nickname string) error {
	if err := game.ValidateNickname(nickname); err != nil {
		return err
	}
	return s.creatures.SetNickname(ctx, creatureID, userID, nickname)
}

// AddToTeam appends a creature to the user's team in the next free slot.
func (s *Service) AddToTeam(ctx context.Context, userID, creatureID ulid.ULID) error {
	c, err := s.creatures.Get(ctx, creatureID)
	if err != nil {
		return err
	}
	if !c.OwnedBy(userID) {
		return oops.Code("ROSTER_NOT_OWNER").With("creature_id", creatureID.String()).Wrap(game.ErrNotFound)
	}
	if c.InTeam {
		return nil
	}

	return s.tx.InTransaction(ctx, func(ctx context.Context) error {
		n, err := s.creatures.CountTeam(ctx, userID)
		if err != nil {
			return err
		}
		if n >= game.MaxTeamSize {
			return &game.ValidationError{Field: "team", Message: "team is full"}
		}
		slot := n + 1
		return s.creatures.SetTeam(ctx, creatureID, userID, true, &slot)
	})
}

// RemoveFromTeam drops a creature from the team and compacts the
// remaining slots so they stay contiguous and ordered.
func (s *Service) RemoveFromTeam(ctx context.Context, userID, creatureID ulid.ULID) error {
	return s.tx.InTransaction(ctx, func(ctx context.Context) error {
		team, err := s.creatures.ListTeam(ctx, userID)
		if err != nil {
			return err
		}

		found := false
		for _, member := range team {
			if member.ID == creatureID {
				found = true
				if err := s.creatures.SetTeam(ctx, creatureID, userID, false, nil); err != nil {
					return err
				}
				continue
			}
			if found {
				slot := *member.TeamSlot - 1
				if err := s.creatures.SetTeam(ctx, member.ID, userID, true, &slot); err != nil {
					return err
				}
			}
		}
		if !found {
			return oops.Code("ROSTER_NOT_IN_TEAM").With("creature_id", creatureID.String()).Wrap(game.ErrNotFound)
		}
		return nil
	})
}

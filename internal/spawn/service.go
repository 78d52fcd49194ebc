// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

// Package spawn implements the spawn lifecycle: triggering wild-creature
// appearances in chats and arbitrating concurrent claims so that at most
// one claimant ever succeeds.
package spawn

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/chattermon/chattermon/internal/catalog"
	"github.com/chattermon/chattermon/internal/coord"
	"github.com/chattermon/chattermon/internal/game"
	"github.com/chattermon/chattermon/internal/observability"
)

// Config holds spawn engine tuning.
type Config struct {
	// ChatAllowlist is a set of glob patterns for chat ids permitted to
	// spawn. Empty means all chats.
	ChatAllowlist []string

	// Expiry is how long a spawn stays claimable.
	Expiry time.Duration

	// CooldownMin and CooldownMax bound the per-chat cooldown window;
	// each spawn draws a duration uniformly between them.
	CooldownMin time.Duration
	CooldownMax time.Duration

	// ClaimCooldown rate-limits claim attempts per user.
	ClaimCooldown time.Duration

	// LockTTL bounds how long a crashed claimant can hold a spawn lock.
	LockTTL time.Duration
}

// DefaultConfig returns production spawn tuning.
func DefaultConfig() Config {
	return Config{
		Expiry:        5 * time.Minute,
		CooldownMin:   30 * time.Second,
		CooldownMax:   60 * time.Second,
		ClaimCooldown: 2 * time.Second,
		LockTTL:       5 * time.Second,
	}
}

// ServiceConfig holds dependencies for the spawn Service.
type ServiceConfig struct {
	Spawns    game.SpawnRepository
	Creatures game.CreatureRepository
	Users     game.UserRepository
	Tx        game.Transactor
	Coord     coord.Store
	Catalog   *catalog.Catalog
	Sampler   *Sampler
	Config    Config
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

// Service is the spawn engine.
type Service struct {
	spawns    game.SpawnRepository
	creatures game.CreatureRepository
	users     game.UserRepository
	tx        game.Transactor
	coord     coord.Store
	catalog   *catalog.Catalog
	sampler   *Sampler
	cfg       Config
	logger    *slog.Logger
	metrics   *observability.Metrics
	allowlist []glob.Glob

	// now is injectable for tests.
	now func() time.Time
}

// NewService creates a spawn Service. Allowlist globs are compiled once;
// a malformed pattern is a configuration error.
func NewService(cfg ServiceConfig) (*Service, error) {
	allowlist := make([]glob.Glob, 0, len(cfg.Config.ChatAllowlist))
	for _, pattern := range cfg.Config.ChatAllowlist {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, oops.Code("SPAWN_BAD_ALLOWLIST").With("pattern", pattern).Wrap(err)
		}
		allowlist = append(allowlist, g)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetrics(nil)
	}
	return &Service{
		spawns:    cfg.Spawns,
		creatures: cfg.Creatures,
		users:     cfg.Users,
		tx:        cfg.Tx,
		coord:     cfg.Coord,
		catalog:   cfg.Catalog,
		sampler:   cfg.Sampler,
		cfg:       cfg.Config,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		allowlist: allowlist,
		now:       time.Now,
	}, nil
}

// SetClock overrides the service clock. Test use only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// TriggerResult is the outcome of a spawn trigger.
type TriggerResult struct {
	// Spawn is the created spawn, nil when no spawn happened.
	Spawn *game.Spawn

	// OnCooldown reports that the chat's cooldown window suppressed the
	// trigger. Not an error: chat activity routinely fires triggers
	// faster than the cooldown allows.
	OnCooldown bool
}

// TriggerSpawn attempts to spawn a wild creature in a chat. The chat
// cooldown gate makes triggers cheap to call on every message.
func (s *Service) TriggerSpawn(ctx context.Context, chatID string) (TriggerResult, error) {
	if chatID == "" {
		return TriggerResult{}, &game.ValidationError{Field: "chat_id", Message: "cannot be empty"}
	}
	if !s.chatAllowed(chatID) {
		return TriggerResult{}, oops.Code("SPAWN_CHAT_NOT_ALLOWED").With("chat_id", chatID).
			Errorf("chat %q is not on the spawn allowlist", chatID)
	}

	cooldownKey := coord.SpawnCooldownKey(chatID)
	onCooldown, err := s.coord.OnCooldown(ctx, cooldownKey)
	if err != nil {
		return TriggerResult{}, err
	}
	if onCooldown {
		return TriggerResult{OnCooldown: true}, nil
	}

	roll, err := s.sampler.Roll()
	if err != nil {
		return TriggerResult{}, err
	}

	now := s.now()
	sp := &game.Spawn{
		ID:          ulid.Make(),
		ChatID:      chatID,
		SpeciesCode: roll.Species.Code,
		Level:       roll.Level,
		Shiny:       roll.Shiny,
		Status:      game.SpawnActive,
		SpawnedAt:   now,
		ExpiresAt:   now.Add(s.cfg.Expiry),
	}
	if err := sp.Validate(); err != nil {
		return TriggerResult{}, err
	}
	if err := s.spawns.Create(ctx, sp); err != nil {
		return TriggerResult{}, err
	}

	// Cooldown is set after the spawn persists; a failed create leaves
	// the chat immediately retriable.
	if err := s.coord.SetCooldown(ctx, cooldownKey, s.cooldownWindow()); err != nil {
		return TriggerResult{}, err
	}

	s.metrics.SpawnsTotal.WithLabelValues(string(roll.Species.Tier)).Inc()
	s.logger.Info("spawn created",
		"spawn_id", sp.ID.String(),
		"chat_id", chatID,
		"species", sp.SpeciesCode,
		"level", sp.Level,
		"shiny", sp.Shiny)
	return TriggerResult{Spawn: sp}, nil
}

// Claim attempts to catch an active spawn for a user. Arbitration is a
// TTL lock keyed by spawn id plus a status-guarded write; of any number
// of concurrent claimants exactly one succeeds, the rest observe
// ErrAlreadyClaimed, ErrExpired, ErrOnCooldown, or ErrContended.
func (s *Service) Claim(ctx context.Context, spawnID, userID ulid.ULID) (*game.Creature, error) {
	claimKey := coord.ClaimCooldownKey(userID)
	onCooldown, err := s.coord.OnCooldown(ctx, claimKey)
	if err != nil {
		return nil, err
	}
	if onCooldown {
		s.metrics.ClaimsTotal.WithLabelValues("cooldown").Inc()
		return nil, oops.Code("CLAIM_ON_COOLDOWN").With("user_id", userID.String()).Wrap(game.ErrOnCooldown)
	}
	if err := s.coord.SetCooldown(ctx, claimKey, s.cfg.ClaimCooldown); err != nil {
		return nil, err
	}

	token, ok, err := s.coord.AcquireLock(ctx, coord.SpawnLockKey(spawnID), s.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.metrics.ClaimsTotal.WithLabelValues("contended").Inc()
		return nil, oops.Code("CLAIM_CONTENDED").With("spawn_id", spawnID.String()).Wrap(game.ErrContended)
	}
	defer func() {
		if relErr := s.coord.ReleaseLock(ctx, coord.SpawnLockKey(spawnID), token); relErr != nil {
			s.logger.Warn("spawn lock release failed", "spawn_id", spawnID.String(), "error", relErr)
		}
	}()

	creature, err := s.claimLocked(ctx, spawnID, userID)
	if err != nil {
		switch {
		case errors.Is(err, game.ErrAlreadyClaimed):
			s.metrics.ClaimsTotal.WithLabelValues("already_claimed").Inc()
		case errors.Is(err, game.ErrExpired):
			s.metrics.ClaimsTotal.WithLabelValues("expired").Inc()
		}
		return nil, err
	}

	s.metrics.ClaimsTotal.WithLabelValues("caught").Inc()
	s.logger.Info("spawn claimed",
		"spawn_id", spawnID.String(),
		"user_id", userID.String(),
		"creature_id", creature.ID.String(),
		"species", creature.SpeciesCode)
	return creature, nil
}

// claimLocked runs the claim body under the spawn lock: re-read, lazy
// expiry, then the caught transition and creature creation in one
// transaction.
func (s *Service) claimLocked(ctx context.Context, spawnID, userID ulid.ULID) (*game.Creature, error) {
	sp, err := s.spawns.Get(ctx, spawnID)
	if err != nil {
		return nil, err
	}

	switch sp.Status {
	case game.SpawnCaught:
		return nil, oops.Code("CLAIM_ALREADY_CLAIMED").With("spawn_id", spawnID.String()).Wrap(game.ErrAlreadyClaimed)
	case game.SpawnExpired:
		return nil, oops.Code("CLAIM_EXPIRED").With("spawn_id", spawnID.String()).Wrap(game.ErrExpired)
	}

	now := s.now()
	if sp.ExpiredAt(now) {
		// Deadline passed with the row still ACTIVE: persist the expiry
		// so the state catches up with the clock, then reject.
		if err := s.spawns.MarkExpired(ctx, spawnID); err != nil {
			return nil, err
		}
		return nil, oops.Code("CLAIM_EXPIRED").With("spawn_id", spawnID.String()).Wrap(game.ErrExpired)
	}

	creature, err := s.buildCreature(sp, userID, now)
	if err != nil {
		return nil, err
	}
	catchExp := s.catchExperience(sp)

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.spawns.MarkCaught(ctx, spawnID, userID); err != nil {
			return err
		}
		if err := s.creatures.Create(ctx, creature); err != nil {
			return err
		}
		return s.users.RecordCatch(ctx, userID, catchExp)
	})
	if err != nil {
		return nil, err
	}
	return creature, nil
}

// buildCreature materializes the spawn into an owned creature with a
// rolled nature and derived stats.
func (s *Service) buildCreature(sp *game.Spawn, userID ulid.ULID, now time.Time) (*game.Creature, error) {
	species, err := s.catalog.Lookup(sp.SpeciesCode)
	if err != nil {
		return nil, err
	}
	nature := s.sampler.rollNature()
	c := &game.Creature{
		ID:          ulid.Make(),
		OwnerID:     &userID,
		SpeciesCode: sp.SpeciesCode,
		Level:       sp.Level,
		Stats:       catalog.DeriveStats(species.Base, sp.Level, nature),
		Nature:      nature,
		Shiny:       sp.Shiny,
		CreatedAt:   now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// catchExperience is the trainer experience for catching this spawn:
// the tier's base award plus a level bonus.
func (s *Service) catchExperience(sp *game.Spawn) int64 {
	species, err := s.catalog.Lookup(sp.SpeciesCode)
	if err != nil {
		// Spawn references a species the catalog no longer carries; the
		// level bonus still applies.
		return s.catalog.CatchExperience("", sp.Level)
	}
	return s.catalog.CatchExperience(species.Tier, sp.Level)
}

// chatAllowed checks the chat id against the allowlist globs.
func (s *Service) chatAllowed(chatID string) bool {
	if len(s.allowlist) == 0 {
		return true
	}
	for _, g := range s.allowlist {
		if g.Match(chatID) {
			return true
		}
	}
	return false
}

// cooldownWindow draws the next per-chat cooldown duration.
func (s *Service) cooldownWindow() time.Duration {
	if s.cfg.CooldownMax <= s.cfg.CooldownMin {
		return s.cfg.CooldownMin
	}
	return s.cfg.CooldownMin + s.sampler.rollDuration(s.cfg.CooldownMax-s.cfg.CooldownMin)
}

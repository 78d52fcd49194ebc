// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

// Package progress implements creature progression (experience, levels,
// evolution) and trainer-level rewards (daily claim, trainer leveling).
package progress

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/chattermon/chattermon/internal/catalog"
	"github.com/chattermon/chattermon/internal/coord"
	"github.com/chattermon/chattermon/internal/game"
	"github.com/chattermon/chattermon/internal/observability"
)

// Retry budget for revision conflicts. Conflicts are short, so constant
// backoff is enough.
const (
	maxUpdateRetries = 5
	retryBackoff     = 25 * time.Millisecond
)

// Daily reward tuning.
const (
	dailyBaseCoins   = 100
	dailyStreakCoins = 25
	dailyStreakCap   = 20
	dailyBaseExp     = 50
	dailyLockTTL     = 5 * time.Second
)

// ServiceConfig holds dependencies for the progress Service.
type ServiceConfig struct {
	Creatures game.CreatureRepository
	Users     game.UserRepository
	Coord     coord.Store
	Catalog   *catalog.Catalog
	Curve     catalog.Curve
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

// Service is the progression engine.
type Service struct {
	creatures game.CreatureRepository
	users     game.UserRepository
	coord     coord.Store
	catalog   *catalog.Catalog
	curve     catalog.Curve
	logger    *slog.Logger
	metrics   *observability.Metrics

	// now is injectable for tests.
	now func() time.Time
}

// NewService creates a progress Service. A nil Curve falls back to the
// cubic default.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Curve == nil {
		cfg.Curve = catalog.CubicCurve()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetrics(nil)
	}
	return &Service{
		creatures: cfg.Creatures,
		users:     cfg.Users,
		coord:     cfg.Coord,
		catalog:   cfg.Catalog,
		curve:     cfg.Curve,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		now:       time.Now,
	}
}

// SetClock overrides the service clock. Test use only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// AwardResult describes what an experience award did.
type AwardResult struct {
	Creature     *game.Creature
	LevelsGained int
	Evolved      bool
	EvolvedFrom  string
	EvolvedTo    string
}

// AwardExperience grants experience to a creature: carry-over level-ups
// while the threshold is met, stat recomputation, and evolution when the
// new level reaches the species rule. The whole outcome lands in one
// revision-guarded write; a conflicting concurrent award triggers a
// re-read and re-apply, so awards never clobber each other. Exhausting
// the retry budget returns ErrContended.
func (s *Service) AwardExperience(ctx context.Context, creatureID ulid.ULID, amount int64) (AwardResult, error) {
	if amount < 0 {
		return AwardResult{}, &game.ValidationError{Field: "amount", Message: "cannot be negative"}
	}

	var result AwardResult
	backoff := retry.WithMaxRetries(maxUpdateRetries, retry.NewConstant(retryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, err := s.creatures.Get(ctx, creatureID)
		if err != nil {
			return err
		}

		r, err := s.apply(c, amount)
		if err != nil {
			return err
		}

		if err := s.creatures.UpdateProgress(ctx, c, c.Revision); err != nil {
			if errors.Is(err, game.ErrRevisionMismatch) {
				s.metrics.ProgressRetries.Inc()
				return retry.RetryableError(err)
			}
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		if errors.Is(err, game.ErrRevisionMismatch) {
			return AwardResult{}, oops.Code("PROGRESS_CONTENDED").
				With("creature_id", creatureID.String()).
				Wrap(game.ErrContended)
		}
		return AwardResult{}, err
	}

	if result.LevelsGained > 0 {
		s.logger.Info("creature leveled",
			"creature_id", result.Creature.ID.String(),
			"level", result.Creature.Level,
			"levels_gained", result.LevelsGained,
			"evolved", result.Evolved)
	}
	return result, nil
}

// apply mutates c with the award outcome and reports what changed.
func (s *Service) apply(c *game.Creature, amount int64) (AwardResult, error) {
	r := AwardResult{Creature: c}

	// Gains earned while already at the cap have no level to feed. The
	// remainder of the award that crossed into the cap is kept.
	if c.Level < game.MaxCreatureLevel {
		c.Experience += amount
	}
	for c.Level < game.MaxCreatureLevel && c.Experience >= s.curve.Threshold(c.Level) {
		c.Experience -= s.curve.Threshold(c.Level)
		c.Level++
		r.LevelsGained++
	}

	species, err := s.catalog.Lookup(c.SpeciesCode)
	if err != nil {
		return AwardResult{}, err
	}

	// Evolution rules may chain when one award crosses several
	// thresholds.
	for species.Evolution != nil && c.Level >= species.Evolution.AtLevel {
		next, err := s.catalog.Lookup(species.Evolution.ToCode)
		if err != nil {
			return AwardResult{}, err
		}
		if !r.Evolved {
			r.EvolvedFrom = species.Code
		}
		r.Evolved = true
		r.EvolvedTo = next.Code
		c.SpeciesCode = next.Code
		species = next
	}

	c.Stats = catalog.DeriveStats(species.Base, c.Level, c.Nature)
	return r, nil
}

// DailyResult describes a daily reward payout.
type DailyResult struct {
	Streak int
	Coins  int64
	Exp    int64
}

// ClaimDaily grants the once-per-UTC-day reward. Consecutive-day claims
// extend the streak; a missed day resets it. A short lock keyed by user
// makes double-submission a non-event.
func (s *Service) ClaimDaily(ctx context.Context, userID ulid.ULID) (DailyResult, error) {
	lockKey := coord.DailyLockKey(userID)
	token, ok, err := s.coord.AcquireLock(ctx, lockKey, dailyLockTTL)
	if err != nil {
		return DailyResult{}, err
	}
	if !ok {
		return DailyResult{}, oops.Code("DAILY_CONTENDED").With("user_id", userID.String()).Wrap(game.ErrContended)
	}
	defer func() {
		if relErr := s.coord.ReleaseLock(ctx, lockKey, token); relErr != nil {
			s.logger.Warn("daily lock release failed", "user_id", userID.String(), "error", relErr)
		}
	}()

	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return DailyResult{}, err
	}

	now := s.now().UTC()
	today := now.Truncate(24 * time.Hour)
	streak := 1
	if u.LastDailyClaim != nil {
		last := u.LastDailyClaim.UTC().Truncate(24 * time.Hour)
		switch {
		case last.Equal(today):
			return DailyResult{}, oops.Code("DAILY_ALREADY_CLAIMED").
				With("user_id", userID.String()).
				Wrap(game.ErrOnCooldown)
		case today.Sub(last) == 24*time.Hour:
			streak = u.DailyStreak + 1
		}
	}

	coins := int64(dailyBaseCoins + dailyStreakCoins*minInt(streak-1, dailyStreakCap))
	exp := int64(dailyBaseExp)

	if err := s.users.RecordDailyClaim(ctx, userID, streak, now, coins, exp); err != nil {
		return DailyResult{}, err
	}
	if err := s.syncTrainerLevel(ctx, userID, u.Experience+exp); err != nil {
		return DailyResult{}, err
	}

	s.metrics.DailyClaimsTotal.Inc()
	s.logger.Info("daily reward claimed",
		"user_id", userID.String(),
		"streak", streak,
		"coins", coins)
	return DailyResult{Streak: streak, Coins: coins, Exp: exp}, nil
}

// AwardTrainerExperience grants trainer experience and raises the
// trainer level when the total crosses a curve boundary. Used for catch
// and battle rewards.
func (s *Service) AwardTrainerExperience(ctx context.Context, userID ulid.ULID, amount int64) error {
	if amount < 0 {
		return &game.ValidationError{Field: "amount", Message: "cannot be negative"}
	}
	if err := s.users.AddExperience(ctx, userID, amount); err != nil {
		return err
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	return s.syncTrainerLevel(ctx, userID, u.Experience)
}

// SyncTrainerLevel recomputes a user's trainer level from their total
// experience and raises it when higher. The guarded repository write
// keeps the level monotonic under races.
func (s *Service) SyncTrainerLevel(ctx context.Context, userID ulid.ULID) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	return s.syncTrainerLevel(ctx, userID, u.Experience)
}

func (s *Service) syncTrainerLevel(ctx context.Context, userID ulid.ULID, totalExp int64) error {
	return s.users.RaiseTrainerLevel(ctx, userID, catalog.TrainerLevel(totalExp))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

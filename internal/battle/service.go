// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

// Package battle implements the turn-based battle engine: team
// snapshots, serialized turn submission, deterministic resolution, and
// completion rewards.
package battle

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/chattermon/chattermon/internal/catalog"
	"github.com/chattermon/chattermon/internal/coord"
	"github.com/chattermon/chattermon/internal/game"
	"github.com/chattermon/chattermon/internal/observability"
	"github.com/chattermon/chattermon/internal/progress"
)

// Config holds battle engine tuning.
type Config struct {
	// InactivityTimeout expires an abandoned battle; applied lazily on
	// the next submission or read.
	InactivityTimeout time.Duration

	// LockTTL bounds how long a crashed submission can hold the
	// per-battle lock.
	LockTTL time.Duration
}

// DefaultConfig returns production battle tuning.
func DefaultConfig() Config {
	return Config{
		InactivityTimeout: 30 * time.Minute,
		LockTTL:           10 * time.Second,
	}
}

// Experience award per loser level, split logic in completeRewards.
const expPerLoserLevel = 15

// Trainer experience for winning a battle.
const trainerExpWin = 25

// PvE opponent level spread around the challenger's team average.
const pveLevelSpread = 3

// ServiceConfig holds dependencies for the battle Service.
type ServiceConfig struct {
	Battles   game.BattleRepository
	Creatures game.CreatureRepository
	Users     game.UserRepository
	Coord     coord.Store
	Catalog   *catalog.Catalog
	Progress  *progress.Service
	Policy    Policy
	Config    Config
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

// Service is the battle engine.
type Service struct {
	battles   game.BattleRepository
	creatures game.CreatureRepository
	users     game.UserRepository
	coord     coord.Store
	catalog   *catalog.Catalog
	progress  *progress.Service
	policy    Policy
	cfg       Config
	logger    *slog.Logger
	metrics   *observability.Metrics

	// now and seed are injectable for tests.
	now  func() time.Time
	seed func() int64
}

// NewService creates a battle Service. A nil Policy falls back to the
// greedy default.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Policy == nil {
		cfg.Policy = GreedyPolicy{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetrics(nil)
	}
	return &Service{
		battles:   cfg.Battles,
		creatures: cfg.Creatures,
		users:     cfg.Users,
		coord:     cfg.Coord,
		catalog:   cfg.Catalog,
		progress:  cfg.Progress,
		policy:    cfg.Policy,
		cfg:       cfg.Config,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		now:       time.Now,
		seed:      rand.Int64,
	}
}

// SetClock overrides the service clock. Test use only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetSeed overrides the battle seed source. Test use only.
func (s *Service) SetSeed(seed func() int64) {
	s.seed = seed
}

// StartPvP opens a battle between two users' active teams.
func (s *Service) StartPvP(ctx context.Context, challengerID, opponentID ulid.ULID) (*game.Battle, error) {
	if challengerID == opponentID {
		return nil, &game.ValidationError{Field: "opponent", Message: "cannot battle yourself"}
	}
	for _, id := range []ulid.ULID{challengerID, opponentID} {
		if err := s.ensureNotFighting(ctx, id); err != nil {
			return nil, err
		}
	}

	sideA, err := s.snapshotSide(ctx, challengerID)
	if err != nil {
		return nil, err
	}
	sideB, err := s.snapshotSide(ctx, opponentID)
	if err != nil {
		return nil, err
	}

	return s.create(ctx, sideA, sideB, "pvp")
}

// StartPvE opens a battle against a generated opponent team pitched at
// the challenger's average team level. The team is derived from the
// battle seed, so the same seed always produces the same opponents.
func (s *Service) StartPvE(ctx context.Context, challengerID ulid.ULID) (*game.Battle, error) {
	if err := s.ensureNotFighting(ctx, challengerID); err != nil {
		return nil, err
	}

	sideA, err := s.snapshotSide(ctx, challengerID)
	if err != nil {
		return nil, err
	}

	seed := s.seed()
	sideB, err := s.generateOpponent(sideA, seed)
	if err != nil {
		return nil, err
	}

	return s.createSeeded(ctx, sideA, sideB, seed, "pve")
}

// TurnResult is the outcome of a turn submission.
type TurnResult struct {
	Battle *game.Battle

	// Resolved reports that this submission completed the turn and
	// resolution ran.
	Resolved bool
}

// SubmitTurn submits one side's action for the given turn. The turn
// index in the request pins the submission to the state the caller saw;
// a mismatch means the caller is stale and is rejected. The per-battle
// lock serializes racing submissions for the same side.
func (s *Service) SubmitTurn(ctx context.Context, battleID, userID ulid.ULID, turn int, action game.Action) (TurnResult, error) {
	lockKey := coord.BattleLockKey(battleID)
	token, ok, err := s.coord.AcquireLock(ctx, lockKey, s.cfg.LockTTL)
	if err != nil {
		return TurnResult{}, err
	}
	if !ok {
		return TurnResult{}, oops.Code("BATTLE_CONTENDED").With("battle_id", battleID.String()).Wrap(game.ErrContended)
	}
	defer func() {
		if relErr := s.coord.ReleaseLock(ctx, lockKey, token); relErr != nil {
			s.logger.Warn("battle lock release failed", "battle_id", battleID.String(), "error", relErr)
		}
	}()

	b, err := s.battles.Get(ctx, battleID)
	if err != nil {
		return TurnResult{}, err
	}
	if b.Status != game.BattleInProgress {
		return TurnResult{}, oops.Code("BATTLE_COMPLETE").With("battle_id", battleID.String()).Wrap(game.ErrInvalidTransition)
	}

	now := s.now()
	if b.InactiveSince(now, s.cfg.InactivityTimeout) {
		// Lazy abandonment: complete with no winner, no rewards.
		b.Status = game.BattleComplete
		b.Pending = [2]*game.Action{}
		b.LastActivityAt = now
		if err := s.battles.Update(ctx, b); err != nil {
			return TurnResult{}, err
		}
		s.metrics.BattlesCompleted.WithLabelValues("abandoned").Inc()
		return TurnResult{}, oops.Code("BATTLE_EXPIRED").With("battle_id", battleID.String()).Wrap(game.ErrExpired)
	}

	side, ok := b.SideOf(userID)
	if !ok {
		return TurnResult{}, oops.Code("BATTLE_NOT_PARTICIPANT").
			With("battle_id", battleID.String()).
			With("user_id", userID.String()).
			Wrap(game.ErrNotFound)
	}
	if turn != b.Turn {
		return TurnResult{}, oops.Code("BATTLE_STALE_TURN").
			With("battle_id", battleID.String()).
			With("submitted_turn", turn).
			With("current_turn", b.Turn).
			Wrap(game.ErrInvalidTransition)
	}
	if b.Pending[side] != nil {
		return TurnResult{}, oops.Code("BATTLE_ALREADY_SUBMITTED").
			With("battle_id", battleID.String()).
			Wrap(game.ErrInvalidTransition)
	}
	if err := s.validateAction(b, side, action); err != nil {
		return TurnResult{}, err
	}

	b.Pending[side] = &action

	// Generated opponents answer immediately.
	other := 1 - side
	if b.Pending[other] == nil && b.Sides[other].UserID == nil {
		aiAction, err := s.policy.Choose(b, other, s.catalog)
		if err != nil {
			return TurnResult{}, err
		}
		b.Pending[other] = &aiAction
	}

	resolved := false
	if b.Pending[game.SideA] != nil && b.Pending[game.SideB] != nil {
		if err := resolveTurn(b, s.catalog); err != nil {
			return TurnResult{}, err
		}
		resolved = true
	}

	b.LastActivityAt = now
	if err := s.battles.Update(ctx, b); err != nil {
		return TurnResult{}, err
	}

	if b.Status == game.BattleComplete {
		if err := s.completeRewards(ctx, b); err != nil {
			return TurnResult{}, err
		}
	}

	return TurnResult{Battle: b, Resolved: resolved}, nil
}

// Get returns a battle, applying lazy abandonment if its inactivity
// deadline passed.
func (s *Service) Get(ctx context.Context, battleID ulid.ULID) (*game.Battle, error) {
	b, err := s.battles.Get(ctx, battleID)
	if err != nil {
		return nil, err
	}
	if b.Status == game.BattleInProgress && b.InactiveSince(s.now(), s.cfg.InactivityTimeout) {
		b.Status = game.BattleComplete
		b.Pending = [2]*game.Action{}
		if err := s.battles.Update(ctx, b); err != nil {
			return nil, err
		}
		s.metrics.BattlesCompleted.WithLabelValues("abandoned").Inc()
	}
	return b, nil
}

// ensureNotFighting rejects users with a live battle.
func (s *Service) ensureNotFighting(ctx context.Context, userID ulid.ULID) error {
	b, err := s.battles.ActiveForUser(ctx, userID)
	if errors.Is(err, game.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	// A stale battle past its deadline does not block a new one.
	if b.InactiveSince(s.now(), s.cfg.InactivityTimeout) {
		return nil
	}
	return oops.Code("BATTLE_ALREADY_FIGHTING").
		With("user_id", userID.String()).
		With("battle_id", b.ID.String()).
		Errorf("user already has a battle in progress")
}

// snapshotSide copies a user's team into combatant snapshots. Stats are
// copied by value so mid-battle progression or trades cannot corrupt
// combat state.
func (s *Service) snapshotSide(ctx context.Context, userID ulid.ULID) (game.BattleSide, error) {
	team, err := s.creatures.ListTeam(ctx, userID)
	if err != nil {
		return game.BattleSide{}, err
	}
	if len(team) == 0 {
		return game.BattleSide{}, &game.ValidationError{Field: "team", Message: "no creatures in team"}
	}

	side := game.BattleSide{UserID: &userID, Team: make([]game.Combatant, 0, len(team))}
	for _, c := range team {
		species, err := s.catalog.Lookup(c.SpeciesCode)
		if err != nil {
			return game.BattleSide{}, err
		}
		side.Team = append(side.Team, game.Combatant{
			CreatureID:  c.ID,
			SpeciesCode: c.SpeciesCode,
			Name:        displayName(c, species),
			Level:       c.Level,
			Stats:       c.Stats,
			HP:          c.Stats.HP,
			Moves:       moveNames(species),
		})
	}
	return side, nil
}

// generateOpponent builds a deterministic wild team around the
// challenger's average level.
func (s *Service) generateOpponent(challenger game.BattleSide, seed int64) (game.BattleSide, error) {
	total := 0
	for _, c := range challenger.Team {
		total += c.Level
	}
	avg := total / len(challenger.Team)

	rng := rand.New(rand.NewPCG(uint64(seed), 0))
	natures := catalog.Natures()

	side := game.BattleSide{Team: make([]game.Combatant, 0, len(challenger.Team))}
	for range challenger.Team {
		species, err := s.randomSpecies(rng)
		if err != nil {
			return game.BattleSide{}, err
		}
		level := avg + rng.IntN(2*pveLevelSpread+1) - pveLevelSpread
		if level < game.MinCreatureLevel {
			level = game.MinCreatureLevel
		}
		if level > game.MaxCreatureLevel {
			level = game.MaxCreatureLevel
		}
		nature := natures[rng.IntN(len(natures))]
		stats := catalog.DeriveStats(species.Base, level, nature)
		side.Team = append(side.Team, game.Combatant{
			SpeciesCode: species.Code,
			Name:        species.Name,
			Level:       level,
			Stats:       stats,
			HP:          stats.HP,
			Moves:       moveNames(species),
		})
	}
	return side, nil
}

// randomSpecies draws uniformly over the whole catalog via the rarity
// table order, ignoring weights; PvE opponents are sparring partners,
// not loot.
func (s *Service) randomSpecies(rng *rand.Rand) (*catalog.Species, error) {
	var all []*catalog.Species
	for _, t := range s.catalog.Tiers() {
		all = append(all, s.catalog.SpeciesInTier(t.Tier)...)
	}
	if len(all) == 0 {
		return nil, oops.Code("CATALOG_EMPTY").Errorf("no species available")
	}
	return all[rng.IntN(len(all))], nil
}

func (s *Service) create(ctx context.Context, sideA, sideB game.BattleSide, mode string) (*game.Battle, error) {
	return s.createSeeded(ctx, sideA, sideB, s.seed(), mode)
}

func (s *Service) createSeeded(ctx context.Context, sideA, sideB game.BattleSide, seed int64, mode string) (*game.Battle, error) {
	now := s.now()
	b := &game.Battle{
		ID:             ulid.Make(),
		Status:         game.BattleInProgress,
		Sides:          [2]game.BattleSide{sideA, sideB},
		Turn:           1,
		Seed:           seed,
		LastActivityAt: now,
		CreatedAt:      now,
	}
	if err := s.battles.Create(ctx, b); err != nil {
		return nil, err
	}
	s.logger.Info("battle started",
		"battle_id", b.ID.String(),
		"mode", mode,
		"seed", b.Seed)
	return b, nil
}

// validateAction checks a submission against the submitting side's
// current state.
func (s *Service) validateAction(b *game.Battle, side int, action game.Action) error {
	switch action.Kind {
	case game.ActionMove:
		for _, m := range b.Sides[side].ActiveCombatant().Moves {
			if m == action.Move {
				return nil
			}
		}
		return &game.ValidationError{Field: "move", Message: "active combatant does not know this move"}
	case game.ActionSwitch:
		sd := &b.Sides[side]
		if action.SwitchTo < 0 || action.SwitchTo >= len(sd.Team) {
			return &game.ValidationError{Field: "switch_to", Message: "out of range"}
		}
		if action.SwitchTo == sd.Active {
			return &game.ValidationError{Field: "switch_to", Message: "already active"}
		}
		if sd.Team[action.SwitchTo].Fainted() {
			return &game.ValidationError{Field: "switch_to", Message: "combatant has fainted"}
		}
		return nil
	}
	return &game.ValidationError{Field: "kind", Message: "unknown action kind"}
}

// completeRewards settles a finished battle: win/loss counters, trainer
// experience, and creature experience for the winning team funded by the
// losers' levels.
func (s *Service) completeRewards(ctx context.Context, b *game.Battle) error {
	if b.Winner == nil {
		return nil
	}
	winner := &b.Sides[*b.Winner]
	loser := &b.Sides[1-*b.Winner]
	mode := "pve"
	if winner.UserID != nil && loser.UserID != nil {
		mode = "pvp"
	}
	s.metrics.BattlesCompleted.WithLabelValues(mode).Inc()

	loserLevels := 0
	for _, c := range loser.Team {
		loserLevels += c.Level
	}
	award := int64(loserLevels * expPerLoserLevel / len(winner.Team))

	if winner.UserID != nil {
		if err := s.users.RecordBattleResult(ctx, *winner.UserID, true); err != nil {
			return err
		}
		if err := s.progress.AwardTrainerExperience(ctx, *winner.UserID, trainerExpWin); err != nil {
			return err
		}
		for _, c := range winner.Team {
			if _, err := s.progress.AwardExperience(ctx, c.CreatureID, award); err != nil {
				// Contention on a single creature should not void the
				// rest of the payout.
				if errors.Is(err, game.ErrContended) {
					s.logger.Warn("battle reward award contended",
						"battle_id", b.ID.String(),
						"creature_id", c.CreatureID.String())
					continue
				}
				return err
			}
		}
	}
	if loser.UserID != nil {
		if err := s.users.RecordBattleResult(ctx, *loser.UserID, false); err != nil {
			return err
		}
	}

	s.logger.Info("battle complete",
		"battle_id", b.ID.String(),
		"winner_side", *b.Winner,
		"turns", b.Turn,
		"mode", mode)
	return nil
}

// displayName prefers the creature's nickname over the species name.
func displayName(c *game.Creature, sp *catalog.Species) string {
	if c.Nickname != "" {
		return c.Nickname
	}
	return sp.Name
}

// moveNames flattens a species move pool to names for the snapshot.
func moveNames(sp *catalog.Species) []string {
	names := make([]string, len(sp.Moves))
	for i, m := range sp.Moves {
		names[i] = m.Name
	}
	return names
}

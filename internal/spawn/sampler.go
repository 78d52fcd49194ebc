// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package spawn

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/chattermon/chattermon/internal/catalog"
)

// ShinyOdds is the baseline 1-in-N shiny probability.
const ShinyOdds = 4096

// Roll is one sampled wild-creature appearance.
type Roll struct {
	Species *catalog.Species
	Level   int
	Shiny   bool
	Nature  string
}

// Sampler draws wild creatures from the catalog's rarity table. The draw
// walks tier weights in dataset order, picks uniformly within the tier,
// and rolls a level from the species range. Reproducible under a seeded
// source.
type Sampler struct {
	cat *catalog.Catalog

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler creates a Sampler over the given catalog and random source.
func NewSampler(cat *catalog.Catalog, src rand.Source) *Sampler {
	return &Sampler{cat: cat, rng: rand.New(src)}
}

// Roll samples one wild creature.
func (s *Sampler) Roll() (Roll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, err := s.drawSpecies()
	if err != nil {
		return Roll{}, err
	}

	minLevel, maxLevel := s.cat.LevelRange(sp)
	level := minLevel
	if maxLevel > minLevel {
		level += s.rng.IntN(maxLevel - minLevel + 1)
	}

	natures := catalog.Natures()
	return Roll{
		Species: sp,
		Level:   level,
		Shiny:   s.rng.IntN(ShinyOdds) == 0,
		Nature:  natures[s.rng.IntN(len(natures))],
	}, nil
}

// rollNature draws a uniform nature.
func (s *Sampler) rollNature() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	natures := catalog.Natures()
	return natures[s.rng.IntN(len(natures))]
}

// rollDuration draws a uniform duration in [0, max).
func (s *Sampler) rollDuration(max time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.rng.Int64N(int64(max)))
}

// drawSpecies performs the weighted tier draw, then a uniform pick within
// the tier. Tiers with no species contribute no mass.
func (s *Sampler) drawSpecies() (*catalog.Species, error) {
	var total float64
	for _, t := range s.cat.Tiers() {
		if len(s.cat.SpeciesInTier(t.Tier)) > 0 {
			total += t.Weight
		}
	}
	if total <= 0 {
		return nil, oops.Code("CATALOG_EMPTY").Errorf("no species available to spawn")
	}

	draw := s.rng.Float64() * total
	var picked []*catalog.Species
	for _, t := range s.cat.Tiers() {
		pool := s.cat.SpeciesInTier(t.Tier)
		if len(pool) == 0 {
			continue
		}
		picked = pool
		draw -= t.Weight
		if draw < 0 {
			break
		}
	}
	// picked is the last non-empty tier when float rounding leaves draw
	// marginally positive.
	return picked[s.rng.IntN(len(picked))], nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

// Package catalog is the read-only species data source: base stats,
// rarity tiers, move pools, evolution rules, and the level-experience
// curve. A catalog is immutable for the process lifetime; engines hold
// one instance and never reload it.
package catalog

import (
	_ "embed"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
)

// FormatConstraint is the semver range of dataset format versions this
// build understands.
const FormatConstraint = "^1.0"

//go:embed data/species.json
var defaultDataset []byte

// RarityTier buckets species for weighted spawn sampling.
type RarityTier string

// Rarity tiers, most to least common.
const (
	TierCommon    RarityTier = "common"
	TierUncommon  RarityTier = "uncommon"
	TierRare      RarityTier = "rare"
	TierLegendary RarityTier = "legendary"
	TierMythical  RarityTier = "mythical"
)

// BaseStats are the species-level stat bases that derived creature stats
// are computed from.
type BaseStats struct {
	HP        int `json:"hp"`
	Attack    int `json:"attack"`
	Defense   int `json:"defense"`
	SpAttack  int `json:"sp_attack"`
	SpDefense int `json:"sp_defense"`
	Speed     int `json:"speed"`
}

// Move is one entry in a species move pool.
type Move struct {
	Name  string `json:"name"`
	Power int    `json:"power"`
	Type  string `json:"type"`
}

// EvolutionRule describes a level-triggered species swap.
type EvolutionRule struct {
	ToCode  string `json:"to_code"`
	AtLevel int    `json:"at_level"`
}

// Species is one catalog entry.
type Species struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Type string `json:"type"`

	Tier RarityTier `json:"tier"`
	Base BaseStats  `json:"base"`

	Moves     []Move         `json:"moves"`
	Evolution *EvolutionRule `json:"evolution,omitempty"`

	// Spawn level range. Zero values fall back to the dataset defaults.
	MinLevel int `json:"min_level,omitempty"`
	MaxLevel int `json:"max_level,omitempty"`
}

// TierWeight is one row of the rarity table: the tier's probability mass
// in the weighted spawn draw and the base experience awarded for
// catching a creature of that tier.
type TierWeight struct {
	Tier     RarityTier `json:"tier"`
	Weight   float64    `json:"weight"`
	CatchExp int64      `json:"catch_exp"`
}

// Dataset is the on-disk catalog document.
type Dataset struct {
	FormatVersion string       `json:"format_version"`
	DefaultLevels [2]int       `json:"default_levels"` // [min, max] spawn level range
	Tiers         []TierWeight `json:"tiers"`
	Species       []Species    `json:"species"`
}

// Catalog is the indexed, immutable catalog.
type Catalog struct {
	version       string
	defaultLevels [2]int
	tiers         []TierWeight
	byCode        map[string]*Species
	byTier        map[RarityTier][]*Species
}

// Default loads the embedded dataset.
func Default() (*Catalog, error) {
	return Load(defaultDataset)
}

// LoadFile loads a dataset from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code("CATALOG_READ_FAILED").With("path", path).Wrap(err)
	}
	return Load(data)
}

// Load validates and indexes a dataset. The document is checked against
// the JSON Schema first, then its format version against
// FormatConstraint.
func Load(data []byte) (*Catalog, error) {
	ds, err := ValidateDataset(data)
	if err != nil {
		return nil, err
	}

	v, err := semver.NewVersion(ds.FormatVersion)
	if err != nil {
		return nil, oops.Code("CATALOG_BAD_VERSION").With("format_version", ds.FormatVersion).Wrap(err)
	}
	constraint, err := semver.NewConstraint(FormatConstraint)
	if err != nil {
		return nil, oops.Code("CATALOG_BAD_CONSTRAINT").Wrap(err)
	}
	if !constraint.Check(v) {
		return nil, oops.Code("CATALOG_VERSION_UNSUPPORTED").
			With("format_version", ds.FormatVersion).
			With("supported", FormatConstraint).
			Errorf("catalog format version %s outside supported range %s", ds.FormatVersion, FormatConstraint)
	}

	c := &Catalog{
		version:       ds.FormatVersion,
		defaultLevels: ds.DefaultLevels,
		tiers:         ds.Tiers,
		byCode:        make(map[string]*Species, len(ds.Species)),
		byTier:        make(map[RarityTier][]*Species),
	}
	for i := range ds.Species {
		sp := &ds.Species[i]
		if _, dup := c.byCode[sp.Code]; dup {
			return nil, oops.Code("CATALOG_DUPLICATE_SPECIES").With("code", sp.Code).
				Errorf("duplicate species code %q", sp.Code)
		}
		c.byCode[sp.Code] = sp
		c.byTier[sp.Tier] = append(c.byTier[sp.Tier], sp)
	}

	// Evolution targets must resolve within the same dataset.
	for _, sp := range c.byCode {
		if sp.Evolution != nil {
			if _, ok := c.byCode[sp.Evolution.ToCode]; !ok {
				return nil, oops.Code("CATALOG_DANGLING_EVOLUTION").
					With("code", sp.Code).With("to_code", sp.Evolution.ToCode).
					Errorf("species %q evolves into unknown species %q", sp.Code, sp.Evolution.ToCode)
			}
		}
	}

	return c, nil
}

// Version returns the dataset format version.
func (c *Catalog) Version() string {
	return c.version
}

// Lookup returns the species for a code.
func (c *Catalog) Lookup(code string) (*Species, error) {
	sp, ok := c.byCode[code]
	if !ok {
		return nil, oops.Code("SPECIES_UNKNOWN").With("code", code).
			Errorf("unknown species %q", code)
	}
	return sp, nil
}

// Tiers returns the rarity table in dataset order.
func (c *Catalog) Tiers() []TierWeight {
	return c.tiers
}

// SpeciesInTier returns all species of a tier in dataset order.
func (c *Catalog) SpeciesInTier(tier RarityTier) []*Species {
	return c.byTier[tier]
}

// LevelRange returns the spawn level range for a species, falling back
// to the dataset defaults.
func (c *Catalog) LevelRange(sp *Species) (minLevel, maxLevel int) {
	minLevel, maxLevel = sp.MinLevel, sp.MaxLevel
	if minLevel == 0 {
		minLevel = c.defaultLevels[0]
	}
	if maxLevel == 0 {
		maxLevel = c.defaultLevels[1]
	}
	return minLevel, maxLevel
}

// CatchExperience returns the trainer experience for catching a creature
// of the given tier and level.
func (c *Catalog) CatchExperience(tier RarityTier, level int) int64 {
	for _, t := range c.tiers {
		if t.Tier == tier {
			return t.CatchExp + int64(level/5)
		}
	}
	return int64(level / 5)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

// Package config loads engine configuration: code defaults, then an
// optional YAML file, then command-line flags, each layer overriding the
// previous.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the full engine configuration.
type Config struct {
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `koanf:"database_url"`

	// MetricsAddr is the observability listen address.
	MetricsAddr string `koanf:"metrics_addr"`

	// LogFormat is "json" or "text".
	LogFormat string `koanf:"log_format"`

	// CatalogPath overrides the embedded species dataset when set.
	CatalogPath string `koanf:"catalog_path"`

	Spawn  SpawnConfig  `koanf:"spawn"`
	Battle BattleConfig `koanf:"battle"`
	Trade  TradeConfig  `koanf:"trade"`
}

// SpawnConfig tunes the spawn engine.
type SpawnConfig struct {
	ChatAllowlist []string      `koanf:"chat_allowlist"`
	Expiry        time.Duration `koanf:"expiry"`
	CooldownMin   time.Duration `koanf:"cooldown_min"`
	CooldownMax   time.Duration `koanf:"cooldown_max"`
	ClaimCooldown time.Duration `koanf:"claim_cooldown"`
	LockTTL       time.Duration `koanf:"lock_ttl"`
}

// BattleConfig tunes the battle engine.
type BattleConfig struct {
	InactivityTimeout time.Duration `koanf:"inactivity_timeout"`
	LockTTL           time.Duration `koanf:"lock_ttl"`
}

// TradeConfig tunes the trade engine.
type TradeConfig struct {
	OfferDeadline time.Duration `koanf:"offer_deadline"`
	LockTTL       time.Duration `koanf:"lock_ttl"`
}

// Default returns the code-level defaults.
func Default() Config {
	return Config{
		DatabaseURL: "postgres://localhost:5432/chattermon?sslmode=disable",
		MetricsAddr: "127.0.0.1:9100",
		LogFormat:   "json",
		Spawn: SpawnConfig{
			Expiry:        5 * time.Minute,
			CooldownMin:   30 * time.Second,
			CooldownMax:   60 * time.Second,
			ClaimCooldown: 2 * time.Second,
			LockTTL:       5 * time.Second,
		},
		Battle: BattleConfig{
			InactivityTimeout: 30 * time.Minute,
			LockTTL:           10 * time.Second,
		},
		Trade: TradeConfig{
			OfferDeadline: 15 * time.Minute,
			LockTTL:       10 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// and a flag set. path may be empty; a missing explicit file is an
// error.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	cfg := Default()
	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return Config{}, oops.Code("CONFIG_DEFAULTS_FAILED").Wrap(err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, oops.Code("CONFIG_FILE_MISSING").With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_FILE_INVALID").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		// Flag names use dashes ("database-url"); config keys use
		// underscores. Only flags the user actually set override.
		p := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		})
		if err := k.Load(p, nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	var out Config
	if err := k.Unmarshal("", &out); err != nil {
		return Config{}, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}
	if err := out.Validate(); err != nil {
		return Config{}, err
	}
	return out, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database_url cannot be empty")
	}
	if c.Spawn.CooldownMax < c.Spawn.CooldownMin {
		return oops.Code("CONFIG_INVALID").Errorf("spawn cooldown_max below cooldown_min")
	}
	if c.Spawn.Expiry <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("spawn expiry must be positive")
	}
	if c.Battle.InactivityTimeout <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("battle inactivity_timeout must be positive")
	}
	if c.Trade.OfferDeadline <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("trade offer_deadline must be positive")
	}
	return nil
}

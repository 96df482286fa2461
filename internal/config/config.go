// Package config loads server configuration from the environment, with an
// optional YAML file underneath. Every setting has a default; env always
// wins over file values.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full server configuration surface.
type Config struct {
	Port int `yaml:"port"`

	WorldRadius int   `yaml:"worldRadius"`
	WorldSeed   int64 `yaml:"worldSeed"`
	ClaimCount  int   `yaml:"claimCount"`

	NeutralControl int `yaml:"neutralControl"`
	ClaimedControl int `yaml:"claimedControl"`
	CapitalControl int `yaml:"capitalControl"`
	StartingTroops int `yaml:"startingTroops"`

	RecruitDurationMS int64 `yaml:"recruitDurationMs"`
	ReserveCap        int   `yaml:"reserveCap"`

	RateCapacity int     `yaml:"rateCapacity"`
	RateRefill   float64 `yaml:"rateRefill"`

	SnapshotIntervalMS int64  `yaml:"snapshotIntervalMs"`
	DBPath             string `yaml:"dbPath"`

	DisableOriginLock bool `yaml:"disableOriginLock"`
	MaxNameLen        int  `yaml:"maxNameLen"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Port:               8080,
		WorldRadius:        24,
		WorldSeed:          1,
		ClaimCount:         30,
		NeutralControl:     10,
		ClaimedControl:     5,
		CapitalControl:     1000,
		StartingTroops:     100,
		RecruitDurationMS:  60000,
		ReserveCap:         50,
		RateCapacity:       8,
		RateRefill:         4,
		SnapshotIntervalMS: 30000,
		DBPath:             "data/pentafront.db",
		MaxNameLen:         24,
	}
}

// Load builds the configuration: defaults, then the optional YAML file
// named by CONFIG_FILE, then environment overrides. A .env file in the
// working directory is folded into the environment first if present.
func Load() (Config, error) {
	godotenv.Load() // best-effort; absence is the normal case

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	envInt(&cfg.Port, "PORT")
	envInt(&cfg.WorldRadius, "WORLD_RADIUS")
	envInt64(&cfg.WorldSeed, "WORLD_SEED")
	envInt(&cfg.ClaimCount, "CLAIM_COUNT")
	envInt(&cfg.NeutralControl, "NEUTRAL_CONTROL")
	envInt(&cfg.ClaimedControl, "CLAIMED_CONTROL")
	envInt(&cfg.CapitalControl, "CAPITAL_CONTROL")
	envInt(&cfg.StartingTroops, "STARTING_TROOPS")
	envInt64(&cfg.RecruitDurationMS, "RECRUIT_DURATION_MS")
	envInt(&cfg.ReserveCap, "RESERVE_CAP")
	envInt(&cfg.RateCapacity, "RATE_CAPACITY")
	envFloat(&cfg.RateRefill, "RATE_REFILL")
	envInt64(&cfg.SnapshotIntervalMS, "SNAPSHOT_INTERVAL_MS")
	envString(&cfg.DBPath, "DB_PATH")
	envInt(&cfg.MaxNameLen, "MAX_NAME_LEN")
	if os.Getenv("DISABLE_ORIGIN_LOCK") != "" {
		cfg.DisableOriginLock = true
	}

	return cfg, nil
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func envFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

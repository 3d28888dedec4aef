package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// MassRange is an inclusive-exclusive [From, To) mass range
type MassRange struct {
	From float64
	To   float64
}

// VirusConfig holds virus tuning
type VirusConfig struct {
	Fill               string
	Stroke             string
	StrokeWidth        float64
	DefaultMass        MassRange
	MaxMass            float64 // split when mass goes above this
	DefaultSpeed       float64 // speed of a freshly split virus
	Friction           float64 // speed lost per tick
	UniformDisposition bool
	InitialCount       int
	MinCount           int // world tops up to this many after consumption
}

// PelletConfig holds ejected mass tuning
type PelletConfig struct {
	InitialSpeed float64
	Deceleration float64 // speed lost per tick
	FireMass     float64 // mass ejected per cell on fire
	MinCellMass  float64 // a cell needs at least this much mass to fire
	Max          int     // cap on live pellets per arena
}

// PlayerConfig holds player cell tuning
type PlayerConfig struct {
	StartMass  float64
	Speed      float64 // base speed of a starting cell, units/tick
	EatRatio   float64 // a cell eats a virus when cellMass > virusMass*EatRatio
	MaxPlayers int
}

// Config is the immutable arena configuration
type Config struct {
	Width          float64
	Height         float64
	Margin         float64
	TickRate       int // simulation ticks per second
	BroadcastEvery int // ticks between state snapshots
	Seed           uint64
	Virus          VirusConfig
	Pellet         PelletConfig
	Player         PlayerConfig
}

// DefaultConfig returns the stock arena configuration
func DefaultConfig() Config {
	return Config{
		Width:          5000,
		Height:         5000,
		Margin:         BoundaryMargin,
		TickRate:       60,
		BroadcastEvery: 2,
		Virus: VirusConfig{
			Fill:               "#33ff33",
			Stroke:             "#19D119",
			StrokeWidth:        20,
			DefaultMass:        MassRange{From: 100, To: 150},
			MaxMass:            180,
			DefaultSpeed:       20,
			Friction:           0.5,
			UniformDisposition: false,
			InitialCount:       50,
			MinCount:           50,
		},
		Pellet: PelletConfig{
			InitialSpeed: 25,
			Deceleration: 0.5,
			FireMass:     10,
			MinCellMass:  20,
			Max:          2000,
		},
		Player: PlayerConfig{
			StartMass:  20,
			Speed:      6,
			EatRatio:   1.1,
			MaxPlayers: 50,
		},
	}
}

// TickDuration is the wall time of one simulation tick
func (c Config) TickDuration() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

var errInvalidConfig = errors.New("invalid config")

// Validate checks the config is usable by the simulation
func (c Config) Validate() error {
	minDim := 2 * (c.Margin + MassToRadius(c.Virus.MaxMass))
	switch {
	case c.Width <= minDim || c.Height <= minDim:
		return fmt.Errorf("%w: arena %vx%v too small for max virus", errInvalidConfig, c.Width, c.Height)
	case c.TickRate <= 0:
		return fmt.Errorf("%w: tick rate must be positive", errInvalidConfig)
	case c.BroadcastEvery <= 0:
		return fmt.Errorf("%w: broadcast interval must be positive", errInvalidConfig)
	case c.Virus.DefaultMass.From <= 0 || c.Virus.DefaultMass.To < c.Virus.DefaultMass.From:
		return fmt.Errorf("%w: virus mass range [%v, %v)", errInvalidConfig, c.Virus.DefaultMass.From, c.Virus.DefaultMass.To)
	case c.Virus.MaxMass < c.Virus.DefaultMass.From:
		return fmt.Errorf("%w: virus max mass below default mass", errInvalidConfig)
	case c.Virus.Friction < 0 || c.Pellet.Deceleration < 0:
		return fmt.Errorf("%w: friction must not be negative", errInvalidConfig)
	case c.Virus.MinCount > c.Virus.InitialCount:
		return fmt.Errorf("%w: virus min count above initial count", errInvalidConfig)
	}
	return nil
}

// LoadConfig builds a config from defaults, an optional .env file and
// ARENA_* environment variables
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := DefaultConfig()
	fields := []struct {
		key string
		dst *float64
	}{
		{"ARENA_WIDTH", &cfg.Width},
		{"ARENA_HEIGHT", &cfg.Height},
		{"ARENA_VIRUS_MAX_MASS", &cfg.Virus.MaxMass},
		{"ARENA_VIRUS_MASS_FROM", &cfg.Virus.DefaultMass.From},
		{"ARENA_VIRUS_MASS_TO", &cfg.Virus.DefaultMass.To},
		{"ARENA_VIRUS_SPEED", &cfg.Virus.DefaultSpeed},
		{"ARENA_VIRUS_FRICTION", &cfg.Virus.Friction},
		{"ARENA_PELLET_SPEED", &cfg.Pellet.InitialSpeed},
		{"ARENA_PELLET_DECEL", &cfg.Pellet.Deceleration},
		{"ARENA_PELLET_MASS", &cfg.Pellet.FireMass},
	}
	for _, f := range fields {
		if err := envFloat(f.key, f.dst); err != nil {
			return Config{}, err
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"ARENA_TICK_RATE", &cfg.TickRate},
		{"ARENA_VIRUS_COUNT", &cfg.Virus.InitialCount},
		{"ARENA_VIRUS_MIN_COUNT", &cfg.Virus.MinCount},
		{"ARENA_MAX_PLAYERS", &cfg.Player.MaxPlayers},
	}
	for _, f := range ints {
		if err := envInt(f.key, f.dst); err != nil {
			return Config{}, err
		}
	}

	if v := os.Getenv("ARENA_UNIFORM_SPAWN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("ARENA_UNIFORM_SPAWN: %w", err)
		}
		cfg.Virus.UniformDisposition = b
	}
	if v := os.Getenv("ARENA_SEED"); v != "" {
		s, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("ARENA_SEED: %w", err)
		}
		cfg.Seed = s
	}

	return cfg, cfg.Validate()
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

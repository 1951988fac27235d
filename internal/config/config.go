package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Version    string  `yaml:"version" json:"version"`
	Difficulty string  `yaml:"difficulty" json:"difficulty" env:"IDLEREALM_DIFFICULTY"`
	Balance    Balance `yaml:"balance" json:"balance"`
	Server     Server  `yaml:"server" json:"server"`
	Save       Save    `yaml:"save" json:"save"`
	Log        Log     `yaml:"log" json:"log"`
}

type Server struct {
	Addr           string        `yaml:"addr" json:"addr" env:"IDLEREALM_ADDR"`
	TickInterval   time.Duration `yaml:"tick_interval" json:"tick_interval" env:"IDLEREALM_TICK_INTERVAL"`
	MaxCatchUp     time.Duration `yaml:"max_catch_up" json:"max_catch_up" env:"IDLEREALM_MAX_CATCH_UP"`
	AutosaveEvery  int           `yaml:"autosave_every" json:"autosave_every" env:"IDLEREALM_AUTOSAVE_EVERY"`
	TimeZone       string        `yaml:"time_zone" json:"time_zone" env:"IDLEREALM_TZ"`
	StreamCapacity int           `yaml:"stream_capacity" json:"stream_capacity"`
}

type Save struct {
	Backend string `yaml:"backend" json:"backend" env:"IDLEREALM_SAVE_BACKEND"` // "file" or "sqlite"
	DataDir string `yaml:"data_dir" json:"data_dir" env:"IDLEREALM_DATA_DIR"`
	Slot    string `yaml:"slot" json:"slot" env:"IDLEREALM_SAVE_SLOT"`
}

type Log struct {
	Level  string `yaml:"level" json:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" json:"format" env:"LOG_FORMAT"`
}

func (s *Server) ApplyDefaults() {
	if s.Addr == "" {
		s.Addr = ":42069"
	}
	if s.TickInterval <= 0 {
		s.TickInterval = time.Second
	}
	if s.MaxCatchUp <= 0 {
		s.MaxCatchUp = 24 * time.Hour
	}
	if s.AutosaveEvery <= 0 {
		s.AutosaveEvery = 30
	}
	if s.StreamCapacity <= 0 {
		s.StreamCapacity = 16
	}
}

func (s *Save) ApplyDefaults() {
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	if s.Backend == "" {
		s.Backend = "file"
	}
	if s.DataDir == "" {
		s.DataDir = "data"
	}
	if s.Slot == "" {
		s.Slot = "default"
	}
}

func (l *Log) ApplyDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func (c *Config) ApplyDefaults() {
	if c.Version == "" {
		c.Version = "1"
	}
	c.Balance.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Save.ApplyDefaults()
	c.Log.ApplyDefaults()
	// A full catch-up window must fit in one tick's round budget.
	if need := c.Server.MaxCatchUp.Milliseconds() / c.Balance.RoundMs; int64(c.Balance.MaxRoundsPerTick) < need {
		c.Balance.MaxRoundsPerTick = int(need)
	}
}

// Location resolves the configured time zone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Server.TimeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Server.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Defaults returns a fully defaulted config without touching disk or env.
func Defaults() *Config {
	c := &Config{Balance: Default()}
	c.ApplyDefaults()
	return c
}

// Load reads a YAML config file. A missing file yields defaults.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	var r Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &r); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}
	if err := ApplyEnv(&r); err != nil {
		return nil, err
	}
	r.ApplyDefaults()
	return &r, nil
}

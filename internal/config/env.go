package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ApplyEnv overlays IDLEREALM_* and LOG_* variables onto c. A difficulty
// preset replaces the balance block, so an explicit YAML balance only applies
// when no preset is requested.
func ApplyEnv(c *Config) error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}
	if c.Difficulty != "" {
		c.Balance = Preset(c.Difficulty)
	}
	return nil
}

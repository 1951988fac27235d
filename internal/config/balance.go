package config

// Balance holds the tunable constants of the simulation core.
type Balance struct {
	// Actions
	MinActionIntervalMs int64 `yaml:"min_action_interval_ms" json:"min_action_interval_ms"`
	StaminaRegenMs      int64 `yaml:"stamina_regen_ms" json:"stamina_regen_ms"`

	// Leveling
	XPBase   int     `yaml:"xp_base" json:"xp_base"`
	XPGrowth float64 `yaml:"xp_growth" json:"xp_growth"`

	// Roster
	RosterLimit int `yaml:"roster_limit" json:"roster_limit"`

	// Dungeon
	PartySize        int   `yaml:"party_size" json:"party_size"`
	RoundMs          int64 `yaml:"round_ms" json:"round_ms"`
	MaxRoundsPerTick int   `yaml:"max_rounds_per_tick" json:"max_rounds_per_tick"`
	HealCooldownMs   int64 `yaml:"heal_cooldown_ms" json:"heal_cooldown_ms"`
	HealThresholdPct int   `yaml:"heal_threshold_pct" json:"heal_threshold_pct"`
	RestartDelayMs   int64 `yaml:"restart_delay_ms" json:"restart_delay_ms"`
	ReplayMaxEvents  int   `yaml:"replay_max_events" json:"replay_max_events"`
	BurstEvery       int   `yaml:"burst_every" json:"burst_every"`
	BaseMemberDamage int   `yaml:"base_member_damage" json:"base_member_damage"`
}

// Default returns the default balance configuration
func Default() Balance {
	return Balance{
		MinActionIntervalMs: 250,
		StaminaRegenMs:      2000,
		XPBase:              20,
		XPGrowth:            1.18,
		RosterLimit:         4,
		PartySize:           4,
		RoundMs:             1000,
		MaxRoundsPerTick:    86400,
		HealCooldownMs:      3000,
		HealThresholdPct:    50,
		RestartDelayMs:      5000,
		ReplayMaxEvents:     400,
		BurstEvery:          3,
		BaseMemberDamage:    2,
	}
}

// Casual returns a gentler curve with faster regen.
func Casual() Balance {
	b := Default()
	b.StaminaRegenMs = 1000
	b.XPGrowth = 1.12
	b.RestartDelayMs = 3000
	b.BaseMemberDamage = 3
	return b
}

// Hard returns a steeper curve for experienced players.
func Hard() Balance {
	b := Default()
	b.StaminaRegenMs = 3000
	b.XPGrowth = 1.25
	b.HealCooldownMs = 5000
	b.RestartDelayMs = 10000
	b.BaseMemberDamage = 1
	return b
}

// Preset resolves a difficulty name; unknown names fall back to Default.
func Preset(name string) Balance {
	switch name {
	case "casual":
		return Casual()
	case "hard":
		return Hard()
	}
	return Default()
}

// ApplyDefaults fills zero fields from Default so partial YAML files stay usable.
func (b *Balance) ApplyDefaults() {
	d := Default()
	if b.MinActionIntervalMs <= 0 {
		b.MinActionIntervalMs = d.MinActionIntervalMs
	}
	if b.StaminaRegenMs <= 0 {
		b.StaminaRegenMs = d.StaminaRegenMs
	}
	if b.XPBase <= 0 {
		b.XPBase = d.XPBase
	}
	if b.XPGrowth < 1 {
		b.XPGrowth = d.XPGrowth
	}
	if b.RosterLimit <= 0 {
		b.RosterLimit = d.RosterLimit
	}
	if b.PartySize <= 0 {
		b.PartySize = d.PartySize
	}
	if b.RoundMs <= 0 {
		b.RoundMs = d.RoundMs
	}
	if b.MaxRoundsPerTick <= 0 {
		b.MaxRoundsPerTick = d.MaxRoundsPerTick
	}
	if b.HealCooldownMs <= 0 {
		b.HealCooldownMs = d.HealCooldownMs
	}
	if b.HealThresholdPct <= 0 || b.HealThresholdPct > 100 {
		b.HealThresholdPct = d.HealThresholdPct
	}
	if b.RestartDelayMs <= 0 {
		b.RestartDelayMs = d.RestartDelayMs
	}
	if b.ReplayMaxEvents <= 0 {
		b.ReplayMaxEvents = d.ReplayMaxEvents
	}
	if b.BurstEvery <= 0 {
		b.BurstEvery = d.BurstEvery
	}
	if b.BaseMemberDamage <= 0 {
		b.BaseMemberDamage = d.BaseMemberDamage
	}
}

// Package config loads the agent and simulation parameters from a YAML
// file. Process-level wiring (storage, HTTP listen, log level) stays on
// flags; this file covers the knobs a run changes between experiments.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML configs can use values like "1m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the on-disk configuration shape (YAML).
type Config struct {
	Agent AgentConfig `yaml:"agent"`
	Sim   SimConfig   `yaml:"sim"`
}

// AgentConfig holds the trader's learning parameters.
type AgentConfig struct {
	ID           string  `yaml:"id"`
	BidPrice     float64 `yaml:"bid_price"`
	AskPrice     float64 `yaml:"ask_price"`
	Step         float64 `yaml:"step"`
	SeedWindow   int     `yaml:"seed_window"`
	SMAWindow    int     `yaml:"sma_window"`
	LMAWindow    int     `yaml:"lma_window"`
	Learning     bool    `yaml:"learning"`
	TrackMetrics bool    `yaml:"track_metrics"`
}

// SimConfig holds the simulated market parameters.
type SimConfig struct {
	RoundLength     Duration `yaml:"round_length"`
	Timezone        string   `yaml:"timezone"`
	SolarPeakKW     float64  `yaml:"solar_peak_kw"`
	LoadAvgKW       float64  `yaml:"load_avg_kw"`
	CapacityKWH     float64  `yaml:"capacity_kwh"`
	InitialSoC      float64  `yaml:"initial_soc"`
	MaxChargeKWH    float64  `yaml:"max_charge_kwh"`
	MaxDischargeKWH float64  `yaml:"max_discharge_kwh"`
}

// Load reads, defaults and validates a config file.
func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads config without defaulting or validating it. Useful for
// debugging partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &c, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Agent.ID == "" {
		c.Agent.ID = "sma-crossover"
	}
	if c.Agent.BidPrice == 0 {
		c.Agent.BidPrice = 0.07
	}
	if c.Agent.AskPrice == 0 {
		c.Agent.AskPrice = 0.14
	}
	if c.Sim.RoundLength == 0 {
		c.Sim.RoundLength = Duration(time.Minute)
	}
	if c.Sim.Timezone == "" {
		c.Sim.Timezone = "UTC"
	}
	if c.Sim.SolarPeakKW == 0 {
		c.Sim.SolarPeakKW = 8.0
	}
	if c.Sim.LoadAvgKW == 0 {
		c.Sim.LoadAvgKW = 1.5
	}
}

// Validate checks the configuration for values the trader cannot run with.
func (c *Config) Validate() error {
	if c.Agent.BidPrice < 0 || c.Agent.AskPrice < 0 {
		return fmt.Errorf("reference prices must be non-negative")
	}
	if c.Agent.Step < 0 {
		return fmt.Errorf("step must be non-negative")
	}
	if c.Agent.SeedWindow < 0 {
		return fmt.Errorf("seed_window must be non-negative")
	}
	if c.Agent.SMAWindow < 0 || c.Agent.LMAWindow < 0 {
		return fmt.Errorf("tracker windows must be non-negative")
	}
	if c.Sim.InitialSoC < 0 || c.Sim.InitialSoC > 1 {
		return fmt.Errorf("initial_soc must be in [0, 1]")
	}
	if c.Sim.MaxChargeKWH < 0 {
		return fmt.Errorf("max_charge_kwh must be >= 0")
	}
	if c.Sim.MaxDischargeKWH > 0 {
		return fmt.Errorf("max_discharge_kwh must be <= 0")
	}
	if _, err := time.LoadLocation(c.Sim.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Sim.Timezone, err)
	}
	return nil
}

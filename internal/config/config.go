package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Version     string      `yaml:"version" json:"version"`
	DataDir     string      `yaml:"data_dir" json:"data_dir"`
	Server      Server      `yaml:"server" json:"server"`
	Sweep       Sweep       `yaml:"sweep" json:"sweep"`
	Progression Progression `yaml:"progression" json:"progression"`
	SeededRNG   SeededRNG   `yaml:"seeded_rng" json:"seeded_rng"`
}

type Server struct {
	Addr string `yaml:"addr" json:"addr"`
}

type Sweep struct {
	IntervalMinutes       int    `yaml:"interval_minutes" json:"interval_minutes"`
	Timezone              string `yaml:"timezone" json:"timezone"`
	Workers               int    `yaml:"workers" json:"workers"`
	PageSize              int    `yaml:"page_size" json:"page_size"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds" json:"request_timeout_seconds"`
}

type Progression struct {
	BaseXP float64 `yaml:"base_xp" json:"base_xp"`
	Growth float64 `yaml:"growth" json:"growth"`
}

// SeededRNG makes bonus multipliers reproducible in dev setups.
type SeededRNG struct {
	Enabled bool  `yaml:"enabled" json:"enabled"`
	Seed    int64 `yaml:"seed" json:"seed"`
}

func (c *Config) ApplyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8090"
	}
	if c.Sweep.IntervalMinutes <= 0 {
		c.Sweep.IntervalMinutes = 10
	}
	if c.Sweep.Timezone == "" {
		c.Sweep.Timezone = "UTC"
	}
	if c.Sweep.Workers <= 0 {
		c.Sweep.Workers = 4
	}
	if c.Sweep.PageSize <= 0 {
		c.Sweep.PageSize = 100
	}
	if c.Sweep.RequestTimeoutSeconds <= 0 {
		c.Sweep.RequestTimeoutSeconds = 30
	}
	if c.Progression.BaseXP <= 0 {
		c.Progression.BaseXP = 100
	}
	if c.Progression.Growth <= 1 {
		c.Progression.Growth = 1.25
	}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Config
	if err := yaml.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	r.ApplyDefaults()
	return &r, nil
}

// Default returns a config with every default applied; used when no
// config file is present.
func Default() *Config {
	var r Config
	r.ApplyDefaults()
	return &r
}

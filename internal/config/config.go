// Package config loads the daemon configuration from YAML with environment
// overrides and sane defaults.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/talgya/meme-market/internal/amm"
	"github.com/talgya/meme-market/internal/ledger"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Port     int    `yaml:"port"`
		AdminKey string `yaml:"admin_key"` // bearer token for POST endpoints; empty disables them
	} `yaml:"server"`

	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`

	LLM struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"llm"`

	Sim struct {
		Bots            int    `yaml:"bots"`
		Seed            int64  `yaml:"seed"`
		AutoAdvanceCron string `yaml:"auto_advance_cron"` // empty disables the scheduler
	} `yaml:"sim"`

	Balances struct {
		PlayerBase  float64 `yaml:"player_base"`
		PlayerToken float64 `yaml:"player_token"`
		BotBase     float64 `yaml:"bot_base"`
		BotToken    float64 `yaml:"bot_token"`
	} `yaml:"balances"`

	AMM struct {
		ReserveToken float64 `yaml:"reserve_token"`
		ReserveBase  float64 `yaml:"reserve_base"`
	} `yaml:"amm"`

	Economy ledger.Params    `yaml:"economy"`
	Buyback amm.BuybackCurve `yaml:"buyback"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is fine, everything defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("ADMIN_KEY"); v != "" {
		cfg.Server.AdminKey = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SIM_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Sim.Seed = seed
		}
	}

	// Defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/meme_market.db"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "claude-haiku-4-5-20251001"
	}
	if cfg.Sim.Bots == 0 {
		cfg.Sim.Bots = 12
	}
	if cfg.Sim.Seed == 0 {
		cfg.Sim.Seed = 42
	}
	if cfg.Balances.PlayerBase == 0 {
		cfg.Balances.PlayerBase = 1000
	}
	if cfg.Balances.BotBase == 0 {
		cfg.Balances.BotBase = 800
	}
	if cfg.Balances.BotToken == 0 {
		cfg.Balances.BotToken = 500
	}
	if cfg.AMM.ReserveToken == 0 {
		cfg.AMM.ReserveToken = 1_000_000
	}
	if cfg.AMM.ReserveBase == 0 {
		cfg.AMM.ReserveBase = 1_000_000
	}
	if cfg.Economy == (ledger.Params{}) {
		cfg.Economy = ledger.DefaultParams()
	}
	if cfg.Buyback == (amm.BuybackCurve{}) {
		cfg.Buyback = amm.DefaultBuybackCurve()
	}

	return cfg, nil
}

// Validate checks the loaded configuration for nonsense values.
func (c *Config) Validate() error {
	if c.Sim.Bots < 0 {
		return fmt.Errorf("sim.bots must be >= 0")
	}
	if c.AMM.ReserveToken <= 0 || c.AMM.ReserveBase <= 0 {
		return fmt.Errorf("amm reserves must be positive")
	}
	if c.Economy.CraftCost <= 0 || c.Economy.WealthPerItem <= 0 {
		return fmt.Errorf("economy.craft_cost and economy.wealth_per_item must be positive")
	}
	if c.Economy.MedalMin > c.Economy.MedalMax {
		return fmt.Errorf("economy.medal_min must not exceed economy.medal_max")
	}
	if c.Buyback.MinRate <= 0 || c.Buyback.MaxRate <= c.Buyback.MinRate {
		return fmt.Errorf("buyback rates must satisfy 0 < min_rate < max_rate")
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// CollateralConfig declares one approved collateral asset and the feed that
// prices it. Endpoint is optional; assets without one are served by the
// manual override feed.
type CollateralConfig struct {
	Symbol   string `toml:"Symbol"`
	Feed     string `toml:"Feed"`
	Endpoint string `toml:"Endpoint,omitempty"`
	APIKey   string `toml:"APIKey,omitempty"`
}

type Config struct {
	RPCAddress         string `toml:"RPCAddress"`
	RPCAuthToken       string `toml:"RPCAuthToken"`
	DataDir            string `toml:"DataDir"`
	Environment        string `toml:"Environment"`
	LogFile            string `toml:"LogFile"`
	StableSymbol       string `toml:"StableSymbol"`
	MaxQuoteAgeSeconds int64  `toml:"MaxQuoteAgeSeconds"`

	LiquidationThreshold uint64 `toml:"LiquidationThreshold"`
	LiquidationBonus     uint64 `toml:"LiquidationBonus"`
	LiquidationPrecision uint64 `toml:"LiquidationPrecision"`

	Collateral []CollateralConfig `toml:"Collateral"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if len(cfg.Collateral) == 0 {
		return nil, fmt.Errorf("config file %s declares no collateral assets", path)
	}
	for i, entry := range cfg.Collateral {
		if strings.TrimSpace(entry.Symbol) == "" || strings.TrimSpace(entry.Feed) == "" {
			return nil, fmt.Errorf("config file %s: collateral entry %d missing symbol or feed", path, i)
		}
	}
	return cfg, nil
}

// MaxQuoteAge returns the configured staleness bound as a duration.
func (c *Config) MaxQuoteAge() time.Duration {
	return time.Duration(c.MaxQuoteAgeSeconds) * time.Second
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./stablemint-data"
	}
	if strings.TrimSpace(c.StableSymbol) == "" {
		c.StableSymbol = "USM"
	}
	if c.MaxQuoteAgeSeconds <= 0 {
		c.MaxQuoteAgeSeconds = 3600
	}
	if c.LiquidationPrecision == 0 {
		c.LiquidationPrecision = 100
	}
	if c.LiquidationThreshold == 0 {
		c.LiquidationThreshold = 50
	}
	if c.LiquidationBonus == 0 {
		c.LiquidationBonus = 10
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		Collateral: []CollateralConfig{
			{Symbol: "WETH", Feed: "WETH/USD"},
			{Symbol: "WBTC", Feed: "WBTC/USD"},
		},
	}
	cfg.applyDefaults()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

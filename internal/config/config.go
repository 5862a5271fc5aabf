// Package config loads exchange settings. Values are layered: built-in
// defaults, then a YAML file, then an optional .env file, then process
// environment variables.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/app/domain/market"
	"github.com/R3E-Network/nft_exchange/pkg/logger"
)

// DefaultPath is where Load looks for the YAML file.
var DefaultPath = filepath.Join("config", "exchange.yaml")

// NativeAlias may be used in place of the native-currency sentinel.
const NativeAlias = "native"

// Config is the full process configuration.
type Config struct {
	Logging    logger.LoggingConfig `yaml:"logging"`
	Registry   RegistryConfig       `yaml:"registry"`
	Royalty    RoyaltyConfig        `yaml:"royalty"`
	Market     MarketConfig         `yaml:"market"`
	TradeRules []TradeRuleConfig    `yaml:"trade_rules"`
	Journal    JournalConfig        `yaml:"journal"`
	Ops        OpsConfig            `yaml:"ops"`
}

// RegistryConfig bootstraps the asset registry.
type RegistryConfig struct {
	Owner        string   `yaml:"owner" env:"REGISTRY_OWNER"`
	Address      string   `yaml:"address" env:"REGISTRY_ADDRESS"`
	Name         string   `yaml:"name" env:"REGISTRY_NAME"`
	Symbol       string   `yaml:"symbol" env:"REGISTRY_SYMBOL"`
	FeeCollector string   `yaml:"fee_collector" env:"REGISTRY_FEE_COLLECTOR"`
	MintingFee   string   `yaml:"minting_fee" env:"REGISTRY_MINTING_FEE"`
	Operators    []string `yaml:"operators"`
}

// RoyaltyConfig bootstraps the royalty registry.
type RoyaltyConfig struct {
	Owner              string   `yaml:"owner" env:"ROYALTY_OWNER"`
	Address            string   `yaml:"address" env:"ROYALTY_ADDRESS"`
	TotalRoyaltiesBp   uint32   `yaml:"total_royalties_bp" env:"ROYALTY_TOTAL_BP"`
	AllowedCollections []string `yaml:"allowed_collections"`
}

// MarketConfig bootstraps the exchange engine and its trade config.
type MarketConfig struct {
	Owner   string `yaml:"owner" env:"MARKET_OWNER"`
	Address string `yaml:"address" env:"MARKET_ADDRESS"`
}

// TradeRuleConfig enables one collection in a set of denominations.
type TradeRuleConfig struct {
	Collection string        `yaml:"collection"`
	Enabled    bool          `yaml:"enabled"`
	Quotes     []QuoteConfig `yaml:"quotes"`
}

// QuoteConfig is the fee rule of one denomination.
type QuoteConfig struct {
	Denomination    string            `yaml:"denomination"`
	Enabled         bool              `yaml:"enabled"`
	Fees            []market.FeeEntry `yaml:"fees"`
	RoyaltyRegistry string            `yaml:"royalty_registry"`
	RoyaltyBurn     bool              `yaml:"royalty_burn"`
}

// JournalConfig selects where committed events are recorded. The in-memory
// journal is always on; Postgres and Redis are enabled by setting their
// address.
type JournalConfig struct {
	Capacity     int    `yaml:"capacity" env:"JOURNAL_CAPACITY"`
	PostgresDSN  string `yaml:"postgres_dsn" env:"JOURNAL_POSTGRES_DSN"`
	RedisAddr    string `yaml:"redis_addr" env:"JOURNAL_REDIS_ADDR"`
	RedisChannel string `yaml:"redis_channel" env:"JOURNAL_REDIS_CHANNEL"`
	RedisHistory int64  `yaml:"redis_history" env:"JOURNAL_REDIS_HISTORY"`
}

// OpsConfig configures the operational HTTP listener.
// RateLimit is requests per second per client; zero disables limiting.
type OpsConfig struct {
	ListenAddr string  `yaml:"listen_addr" env:"OPS_LISTEN_ADDR"`
	RateLimit  float64 `yaml:"rate_limit" env:"OPS_RATE_LIMIT"`
	Burst      int     `yaml:"burst" env:"OPS_BURST"`
}

// Default returns a configuration that runs a self-contained exchange.
func Default() *Config {
	return &Config{
		Logging: logger.LoggingConfig{Level: "info", Format: "text", Output: "stdout"},
		Registry: RegistryConfig{
			Name:       "Laqira NFT",
			Symbol:     "LQRNFT",
			MintingFee: "0",
		},
		Royalty: RoyaltyConfig{TotalRoyaltiesBp: 1000},
		Journal: JournalConfig{
			Capacity:     10_000,
			RedisChannel: "nft_exchange.events",
			RedisHistory: 1_000,
		},
		Ops: OpsConfig{ListenAddr: ":9090", RateLimit: 50, Burst: 100},
	}
}

// Load reads DefaultPath and the environment. A missing file is not an
// error.
func Load() (*Config, error) {
	cfg, err := LoadFromPath(DefaultPath)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		if err := applyEnv(cfg, ".env"); err != nil {
			return nil, err
		}
		return cfg, cfg.Validate()
	}
	return cfg, err
}

// LoadFromPath reads the YAML file at path, then a .env file next to the
// working directory if present, then the environment.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read exchange config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse exchange config: %w", err)
	}
	if err := applyEnv(cfg, ".env"); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, envFile string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load env (%s): %w", envFile, err)
	}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("failed to decode environment: %w", err)
	}
	return nil
}

// Validate checks amounts, basis points and cross references.
func (c *Config) Validate() error {
	if _, err := c.Registry.Fee(); err != nil {
		return err
	}
	if c.Royalty.TotalRoyaltiesBp > chain.BasisPointsDenominator {
		return fmt.Errorf("royalty.total_royalties_bp %d exceeds %d", c.Royalty.TotalRoyaltiesBp, chain.BasisPointsDenominator)
	}
	if c.Journal.Capacity < 0 {
		return fmt.Errorf("journal.capacity must not be negative")
	}
	for i, rule := range c.TradeRules {
		if strings.TrimSpace(rule.Collection) == "" {
			return fmt.Errorf("trade_rules[%d]: collection is required", i)
		}
		seen := make(map[chain.Address]bool, len(rule.Quotes))
		for j, q := range rule.Quotes {
			denom := q.Address()
			if denom.IsZero() {
				return fmt.Errorf("trade_rules[%d].quotes[%d]: denomination is required", i, j)
			}
			if seen[denom] {
				return fmt.Errorf("trade_rules[%d].quotes[%d]: duplicate denomination %s", i, j, denom)
			}
			seen[denom] = true
			var total uint64
			for _, fee := range q.Fees {
				total += uint64(fee.ShareBp)
			}
			if total > chain.BasisPointsDenominator {
				return fmt.Errorf("trade_rules[%d].quotes[%d]: fees total %d bp", i, j, total)
			}
		}
	}
	return nil
}

// Enabled reports whether the registry section names a collection to
// bootstrap.
func (r RegistryConfig) Enabled() bool {
	return strings.TrimSpace(r.Address) != ""
}

// Fee parses MintingFee as a base-unit integer. Empty means zero.
func (r RegistryConfig) Fee() (*big.Int, error) {
	return ParseAmount(r.MintingFee)
}

// Address resolves the denomination, accepting NativeAlias.
func (q QuoteConfig) Address() chain.Address {
	if strings.EqualFold(strings.TrimSpace(q.Denomination), NativeAlias) {
		return chain.NativeCurrency
	}
	return chain.Address(strings.TrimSpace(q.Denomination))
}

// ParseAmount parses a non-negative decimal integer string.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

package model

import (
	"fmt"
	"time"
)

// ChargeMode selects how the charge feature is derived.
//
// Two historical variants exist: one uses attack alone, the other adds the
// windfury bonus already derived for the same card. Both are kept selectable.
type ChargeMode string

const (
	ChargeAttack             ChargeMode = "attack"
	ChargeAttackPlusWindfury ChargeMode = "attack_plus_windfury"
)

// Config holds the complete cardpricer configuration
type Config struct {
	Data        DataConfig        `yaml:"data" mapstructure:"data"`
	Extraction  ExtractionConfig  `yaml:"extraction" mapstructure:"extraction"`
	Pricing     PricingConfig     `yaml:"pricing" mapstructure:"pricing"`
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Logging     LoggingConfig     `yaml:"logging" mapstructure:"logging"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
}

// DataConfig describes where card data comes from and which records are kept
type DataConfig struct {
	URL               string   `yaml:"url" mapstructure:"url"`
	Path              string   `yaml:"path" mapstructure:"path"`
	ExcludedSets      []string `yaml:"excluded_sets" mapstructure:"excluded_sets"`
	IncludeClassCards bool     `yaml:"include_class_cards" mapstructure:"include_class_cards"`
}

// ExtractionConfig controls the mechanics pipeline
type ExtractionConfig struct {
	Strict     bool       `yaml:"strict" mapstructure:"strict"` // Drop cards with unknown tags or leftover text
	ChargeMode ChargeMode `yaml:"charge_mode" mapstructure:"charge_mode"`
}

// PricingConfig controls the linear model
type PricingConfig struct {
	Columns     []string `yaml:"columns" mapstructure:"columns"` // Empty means every derived column
	PriceColumn string   `yaml:"price_column" mapstructure:"price_column"`
}

// HTTPConfig controls card database downloads
type HTTPConfig struct {
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy         string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy           string        `yaml:"no_proxy" mapstructure:"no_proxy"`
	RespectRobots     bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
}

// CacheConfig controls the downloaded card database cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig controls card-level parallelism
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// LoggingConfig holds structured logging settings
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or console
}

// OutputConfig controls report rendering
type OutputConfig struct {
	JSONPath     string `yaml:"json_path" mapstructure:"json_path"`
	MarkdownPath string `yaml:"markdown_path" mapstructure:"markdown_path"`
	Top          int    `yaml:"top" mapstructure:"top"`
	Verbose      bool   `yaml:"verbose" mapstructure:"verbose"`
}

// StoreConfig controls persistence of pricing runs
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"` // Empty disables persistence
}

// DefaultExcludedSets are set names that never contain playable cards
var DefaultExcludedSets = []string{"Debug", "Credits", "Missions", "System"}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			URL:               "https://hearthstonejson.com/json/AllSets.json",
			ExcludedSets:      append([]string(nil), DefaultExcludedSets...),
			IncludeClassCards: true,
		},
		Extraction: ExtractionConfig{
			Strict:     true,
			ChargeMode: ChargeAttack,
		},
		Pricing: PricingConfig{
			PriceColumn: "price",
		},
		HTTP: HTTPConfig{
			Timeout:           2 * time.Minute,
			UserAgent:         "cardpricer/0.1 (+https://github.com/ppiankov/cardpricer)",
			MaxBodyBytes:      64 << 20,
			RespectRobots:     true,
			RequestsPerSecond: 1,
			Burst:             2,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Output: OutputConfig{
			Top: 25,
		},
	}
}

// Validate checks that the configuration can drive a pricing run
func (c *Config) Validate() error {
	switch c.Extraction.ChargeMode {
	case ChargeAttack, ChargeAttackPlusWindfury:
	default:
		return fmt.Errorf("unknown charge mode %q", c.Extraction.ChargeMode)
	}
	if c.Concurrency.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Concurrency.Workers)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	if c.Pricing.PriceColumn == "" {
		return fmt.Errorf("price column must not be empty")
	}
	if c.Output.Top < 0 {
		return fmt.Errorf("top must be >= 0, got %d", c.Output.Top)
	}
	return nil
}

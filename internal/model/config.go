package model

import (
	"fmt"
	"runtime"
	"time"
)

// Config is the immutable configuration threaded through every component
type Config struct {
	Scan         ScanConfig         `yaml:"scan" mapstructure:"scan"`
	Checks       ChecksConfig       `yaml:"checks" mapstructure:"checks"`
	Dynamic      DynamicConfig      `yaml:"dynamic" mapstructure:"dynamic"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
}

// ScanConfig controls the source-tree walk
type ScanConfig struct {
	Document       string   `yaml:"document" mapstructure:"document"`               // Document path relative to the root
	IgnorePatterns []string `yaml:"ignore_patterns" mapstructure:"ignore_patterns"` // Extra glob patterns to skip
	MaxFileBytes   int64    `yaml:"max_file_bytes" mapstructure:"max_file_bytes"`   // Larger files become diagnostics
}

// ChecksConfig selects and tunes reconciliation categories
type ChecksConfig struct {
	Ignore             []string `yaml:"ignore" mapstructure:"ignore"`                             // Category keys to skip
	RepoURLPattern     string   `yaml:"repo_url_pattern" mapstructure:"repo_url_pattern"`         // Regex for absolute self-links
	CheckExternalLinks bool     `yaml:"check_external_links" mapstructure:"check_external_links"` // HEAD-check http(s) links
}

// DynamicConfig is the sandboxed verifier policy
type DynamicConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	DryRun       bool          `yaml:"dry_run" mapstructure:"dry_run"`
	AllowNetwork bool          `yaml:"allow_network" mapstructure:"allow_network"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`   // Per-command wall clock
	Parallel     int           `yaml:"parallel" mapstructure:"parallel"` // 1 = sequential
	Shell        string        `yaml:"shell" mapstructure:"shell"`
}

// ConcurrencyConfig bounds parallel work
type ConcurrencyConfig struct {
	Workers     int `yaml:"workers" mapstructure:"workers"`           // Fact extraction workers
	LinkWorkers int `yaml:"link_workers" mapstructure:"link_workers"` // External link checks
}

// HTTPConfig is used by the external link validator and robots checker
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent  string        `yaml:"user_agent" mapstructure:"user_agent"`
	HTTPProxy  string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy    string        `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// RateLimitingConfig limits external link checks per host
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// CacheConfig controls the link-check cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
	Color         bool `yaml:"color" mapstructure:"color"`
}

// LLMConfig configures the optional summary
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // "", openai, ollama
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"-"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			Document:     "README.md",
			MaxFileBytes: 10 << 20,
		},
		Dynamic: DynamicConfig{
			Timeout:  30 * time.Second,
			Parallel: 1,
			Shell:    "/bin/sh",
		},
		Concurrency: ConcurrencyConfig{
			Workers:     runtime.NumCPU(),
			LinkWorkers: 8,
		},
		HTTP: HTTPConfig{
			Timeout:   10 * time.Second,
			UserAgent: "readmecheck/0.3 (+https://github.com/ppiankov/readmecheck)",
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         4,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".readmecheck-cache",
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Output: OutputConfig{
			IncludeFooter: true,
			Color:         true,
		},
		LLM: LLMConfig{
			Timeout:   30,
			MaxTokens: 800,
		},
	}
}

// Validate checks the configuration and returns a *ConfigurationError for
// unsupported or contradictory input
func (c *Config) Validate() error {
	ignored, err := c.IgnoredCategories()
	if err != nil {
		return err
	}
	if len(ignored) == len(AllCategories) {
		return &ConfigurationError{Field: "ignore", Reason: "every category is ignored, nothing to check"}
	}

	if !c.Dynamic.Enabled {
		if c.Dynamic.DryRun {
			return &ConfigurationError{Field: "dynamic.dry_run", Reason: "dry-run requires dynamic verification"}
		}
		if c.Dynamic.AllowNetwork {
			return &ConfigurationError{Field: "dynamic.allow_network", Reason: "allow-network requires dynamic verification"}
		}
	}
	if c.Dynamic.Enabled && c.Dynamic.Timeout <= 0 {
		return &ConfigurationError{Field: "dynamic.timeout", Reason: fmt.Sprintf("must be positive, got %v", c.Dynamic.Timeout)}
	}
	if c.Dynamic.Parallel < 0 {
		return &ConfigurationError{Field: "dynamic.parallel", Reason: fmt.Sprintf("must not be negative, got %d", c.Dynamic.Parallel)}
	}
	if c.Concurrency.Workers <= 0 {
		return &ConfigurationError{Field: "concurrency.workers", Reason: fmt.Sprintf("must be positive, got %d", c.Concurrency.Workers)}
	}
	if c.Scan.Document == "" {
		return &ConfigurationError{Field: "scan.document", Reason: "document path is empty"}
	}
	return nil
}

// IgnoredCategories parses the ignore list
func (c *Config) IgnoredCategories() (map[Category]bool, error) {
	ignored := make(map[Category]bool)
	for _, key := range c.Checks.Ignore {
		if key == "" {
			continue
		}
		category, err := ParseCategory(key)
		if err != nil {
			return nil, err
		}
		ignored[category] = true
	}
	return ignored, nil
}

package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds scraper runtime configuration. Values are sourced from
// flags, with environment-variable fallbacks applied by the CLI.
type Config struct {
	MaxPages           int
	Delay              time.Duration
	MaxRetries         int
	Timeout            time.Duration
	BackoffBase        time.Duration
	BackoffMax         time.Duration
	ConcurrentRequests int
	OutputFormat       string // json, csv, or both
	OutputDirectory    string
	DedupeMaxSize      int // 0 disables within-run URL dedup
	MetricsAddr        string
	Verbose            bool
}

// DefaultConfig returns conservative defaults matching the target
// site's tolerance for polite crawling.
func DefaultConfig() *Config {
	return &Config{
		MaxPages:           5,
		Delay:              time.Second,
		MaxRetries:         3,
		Timeout:            30 * time.Second,
		BackoffBase:        time.Second,
		BackoffMax:         30 * time.Second,
		ConcurrentRequests: 5,
		OutputFormat:       "json",
		OutputDirectory:    "output",
		DedupeMaxSize:      0,
		MetricsAddr:        "",
		Verbose:            false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.BackoffBase <= 0 {
		return fmt.Errorf("backoff base must be positive")
	}
	if c.BackoffMax > 0 && c.BackoffBase > c.BackoffMax {
		return fmt.Errorf("backoff base (%s) cannot exceed backoff max (%s)", c.BackoffBase, c.BackoffMax)
	}
	if c.ConcurrentRequests <= 0 {
		return fmt.Errorf("concurrent requests must be positive")
	}
	if c.OutputFormat != "json" && c.OutputFormat != "csv" && c.OutputFormat != "both" {
		return fmt.Errorf("output format must be json, csv, or both")
	}
	if c.OutputDirectory == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if c.DedupeMaxSize < 0 {
		return fmt.Errorf("dedupe max size cannot be negative")
	}
	return nil
}

// ValidateSite checks the site profile the extractor and walker depend on.
func ValidateSite(s *Site) error {
	if s == nil {
		return fmt.Errorf("site profile is nil")
	}
	if s.Name == "" {
		return fmt.Errorf("site name cannot be empty")
	}
	parsed, err := url.Parse(s.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	if s.Selectors.ProductContainer == "" {
		return fmt.Errorf("product container selector cannot be empty")
	}
	if s.Selectors.Title == "" {
		return fmt.Errorf("title selector cannot be empty")
	}
	if s.PaginationSelector == "" {
		return fmt.Errorf("pagination selector cannot be empty")
	}
	if s.ProductPathMarker == "" {
		return fmt.Errorf("product path marker cannot be empty")
	}
	return nil
}

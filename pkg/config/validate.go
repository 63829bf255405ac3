package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"link-crawler/pkg/parse"
	"link-crawler/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// Downloaders
	if c.Downloaders <= 0 {
		warnings = append(warnings, "downloaders should be > 0, defaulting to 10")
		c.Downloaders = 10
	} else if c.Downloaders > MaxPoolSize {
		warnings = append(warnings, fmt.Sprintf("downloaders (%d) exceeds maximum %d, clamping", c.Downloaders, MaxPoolSize))
		c.Downloaders = MaxPoolSize
	}

	// Extractors
	if c.Extractors <= 0 {
		warnings = append(warnings, "extractors should be > 0, defaulting to 10")
		c.Extractors = 10
	} else if c.Extractors > MaxPoolSize {
		warnings = append(warnings, fmt.Sprintf("extractors (%d) exceeds maximum %d, clamping", c.Extractors, MaxPoolSize))
		c.Extractors = MaxPoolSize
	}

	// PerHost
	if c.PerHost <= 0 {
		warnings = append(warnings, "per_host should be > 0, defaulting to 2")
		c.PerHost = 2
	}
	if c.PerHost > c.Downloaders {
		warnings = append(warnings, fmt.Sprintf(
			"per_host (%d) > downloaders (%d); a single host can take every download permit",
			c.PerHost, c.Downloaders))
	}

	// DefaultDepth
	if c.DefaultDepth <= 0 {
		warnings = append(warnings, "default_depth should be > 0, defaulting to 2")
		c.DefaultDepth = 2
	}

	if c.UserAgent == "" {
		c.UserAgent = "link-crawler/1.0"
	}

	// MaxPageSizeBytes
	if c.MaxPageSizeBytes < 0 {
		warnings = append(warnings, "max_page_size_bytes cannot be negative, defaulting to 10MB")
		c.MaxPageSizeBytes = 0
	}
	if c.MaxPageSizeBytes == 0 {
		c.MaxPageSizeBytes = 10 * 1024 * 1024
	}

	// CrawlTimeout
	if c.CrawlTimeout < 0 {
		warnings = append(warnings, "crawl_timeout cannot be negative, disabling timeout")
		c.CrawlTimeout = 0
	}

	// ExcludePatterns are compiled here once so a typo fails at startup
	if _, err := utils.CompileExcludePatterns(c.ExcludePatterns); err != nil {
		return warnings, err
	}

	// OutputDir
	if c.OutputDir == "" {
		if c.EnableReport {
			warnings = append(warnings, "output_dir is empty, defaulting to './crawl_output'")
		}
		c.OutputDir = "./crawl_output"
	}

	if c.EnableReport && c.ReportFilename == "" {
		warnings = append(warnings,
			"'enable_report' is true but 'report_filename' is empty. Defaulting to 'crawl_report.yaml'")
		c.ReportFilename = "crawl_report.yaml"
	}

	// Logging
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	switch strings.ToLower(c.LogFormat) {
	case "":
		c.LogFormat = "text"
	case "text", "json":
		c.LogFormat = strings.ToLower(c.LogFormat)
	default:
		warnings = append(warnings, fmt.Sprintf("unknown log_format %q, defaulting to 'text'", c.LogFormat))
		c.LogFormat = "text"
	}

	c.validateHTTPClientSettings()

	// Targets, in sorted order so errors are deterministic
	keys := make([]string, 0, len(c.Targets))
	for k := range c.Targets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		target := c.Targets[key]
		if target == nil {
			return warnings, fmt.Errorf("%w: target '%s' is empty", utils.ErrConfigValidation, key)
		}
		targetWarnings, err := target.Validate()
		if err != nil {
			return warnings, fmt.Errorf("target '%s': %w", key, err)
		}
		for _, w := range targetWarnings {
			warnings = append(warnings, fmt.Sprintf("[%s] %s", key, w))
		}
	}

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = c.PerHost
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
	if h.MaxRedirects <= 0 {
		h.MaxRedirects = 10
	}
}

// Validate checks TargetConfig fields.
// Modifies receiver in place (seed URL canonicalization).
func (t *TargetConfig) Validate() (warnings []string, err error) {
	if t.SeedURL == "" {
		return nil, fmt.Errorf("%w: target has no seed_url", utils.ErrConfigValidation)
	}
	canonical, _, err := parse.ParseAbsolute(t.SeedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: seed_url: %w", utils.ErrConfigValidation, err)
	}
	t.SeedURL = canonical

	if t.Depth < 0 {
		warnings = append(warnings, "depth cannot be negative, using default_depth")
		t.Depth = 0
	}
	return warnings, nil
}

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxPoolSize caps the downloaders and extractors settings. The crawl task pool is sized
// from their sum, so this also bounds how many crawl tasks may run at once.
const MaxPoolSize = 140

// TargetConfig holds configuration for one named crawl target
type TargetConfig struct {
	SeedURL string `yaml:"seed_url"`
	Depth   int    `yaml:"depth,omitempty"` // 0 = use default_depth
}

// AppConfig holds the global application configuration
type AppConfig struct {
	Downloaders        int                      `yaml:"downloaders"`
	Extractors         int                      `yaml:"extractors"`
	PerHost            int                      `yaml:"per_host"`
	DefaultDepth       int                      `yaml:"default_depth"`
	UserAgent          string                   `yaml:"user_agent,omitempty"`
	MaxPageSizeBytes   int64                    `yaml:"max_page_size_bytes,omitempty"`
	LinkSelectors      []string                 `yaml:"link_selectors,omitempty"`
	RespectNofollow    bool                     `yaml:"respect_nofollow,omitempty"`
	SameHostOnly       bool                     `yaml:"same_host_only,omitempty"`
	ExcludePatterns    []string                 `yaml:"exclude_patterns,omitempty"` // Regex patterns matched against link paths
	CrawlTimeout       time.Duration            `yaml:"crawl_timeout,omitempty"`    // 0 = no timeout
	OutputDir          string                   `yaml:"output_dir,omitempty"`
	EnableReport       bool                     `yaml:"enable_report,omitempty"`
	ReportFilename     string                   `yaml:"report_filename,omitempty"`
	MetricsAddr        string                   `yaml:"metrics_addr,omitempty"` // Empty disables the /metrics endpoint
	LogLevel           string                   `yaml:"log_level,omitempty"`
	LogFormat          string                   `yaml:"log_format,omitempty"` // "text" or "json"
	HTTPClientSettings HTTPClientConfig         `yaml:"http_client_settings,omitempty"`
	Targets            map[string]*TargetConfig `yaml:"targets,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil = default (true)
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
	MaxRedirects          int           `yaml:"max_redirects,omitempty"`
}

// Load reads and parses a YAML config file. It does not validate; call Validate on the result.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// EffectiveDepth returns the target's depth, falling back to the global default
func (t *TargetConfig) EffectiveDepth(appCfg *AppConfig) int {
	if t.Depth > 0 {
		return t.Depth
	}
	return appCfg.DefaultDepth
}

// PoolSize is the number of crawl tasks allowed to run at once
func (c *AppConfig) PoolSize() int {
	n := c.Downloaders + c.Extractors
	if n > 2*MaxPoolSize {
		n = 2 * MaxPoolSize
	}
	if n <= 0 {
		n = 1
	}
	return n
}

// EffectiveReportFilename returns the report file name, defaulting when unset
func (c *AppConfig) EffectiveReportFilename() string {
	if c.ReportFilename != "" {
		return c.ReportFilename
	}
	return "crawl_report.yaml"
}

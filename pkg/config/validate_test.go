package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"link-crawler/pkg/utils"
)

func TestAppConfig_Validate_Defaults(t *testing.T) {
	cfg := AppConfig{} // Zero value
	warnings, err := cfg.Validate()

	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Downloaders)
	assert.Equal(t, 10, cfg.Extractors)
	assert.Equal(t, 2, cfg.PerHost)
	assert.Equal(t, 2, cfg.DefaultDepth)
	assert.Equal(t, "link-crawler/1.0", cfg.UserAgent)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxPageSizeBytes)
	assert.Equal(t, "./crawl_output", cfg.OutputDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)

	// HTTP client defaults
	assert.Equal(t, 45*time.Second, cfg.HTTPClientSettings.Timeout)
	assert.Equal(t, 100, cfg.HTTPClientSettings.MaxIdleConns)
	assert.Equal(t, 2, cfg.HTTPClientSettings.MaxIdleConnsPerHost)
	assert.Equal(t, 90*time.Second, cfg.HTTPClientSettings.IdleConnTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTPClientSettings.TLSHandshakeTimeout)
	assert.Equal(t, 1*time.Second, cfg.HTTPClientSettings.ExpectContinueTimeout)
	assert.Equal(t, 15*time.Second, cfg.HTTPClientSettings.DialerTimeout)
	assert.Equal(t, 30*time.Second, cfg.HTTPClientSettings.DialerKeepAlive)
	assert.Equal(t, 10, cfg.HTTPClientSettings.MaxRedirects)

	assert.True(t, containsWarning(warnings, "downloaders should be > 0"))
	assert.True(t, containsWarning(warnings, "extractors should be > 0"))
	assert.True(t, containsWarning(warnings, "per_host should be > 0"))
	assert.True(t, containsWarning(warnings, "default_depth should be > 0"))
	assert.False(t, containsWarning(warnings, "output_dir is empty"), "no report requested, no warning")
}

func TestAppConfig_Validate_ValidConfig(t *testing.T) {
	cfg := AppConfig{
		Downloaders:      20,
		Extractors:       5,
		PerHost:          4,
		DefaultDepth:     3,
		UserAgent:        "custom/2.0",
		MaxPageSizeBytes: 1024,
		OutputDir:        "/out",
		LogLevel:         "debug",
		LogFormat:        "JSON",
	}
	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 20, cfg.Downloaders)
	assert.Equal(t, 5, cfg.Extractors)
	assert.Equal(t, 4, cfg.PerHost)
	assert.Equal(t, "custom/2.0", cfg.UserAgent)
	assert.Equal(t, int64(1024), cfg.MaxPageSizeBytes)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 4, cfg.HTTPClientSettings.MaxIdleConnsPerHost, "idle conns per host follows per_host")
}

func TestAppConfig_Validate_ClampsPoolSizes(t *testing.T) {
	cfg := AppConfig{Downloaders: 1000, Extractors: 141, PerHost: 2}
	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Equal(t, MaxPoolSize, cfg.Downloaders)
	assert.Equal(t, MaxPoolSize, cfg.Extractors)
	assert.True(t, containsWarning(warnings, "downloaders (1000) exceeds maximum"))
	assert.True(t, containsWarning(warnings, "extractors (141) exceeds maximum"))
}

func TestAppConfig_Validate_PerHostAboveDownloaders(t *testing.T) {
	cfg := AppConfig{Downloaders: 2, Extractors: 2, PerHost: 5}
	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Equal(t, 5, cfg.PerHost, "per_host is kept, only warned about")
	assert.True(t, containsWarning(warnings, "per_host (5) > downloaders (2)"))
}

func TestAppConfig_Validate_NegativeValues(t *testing.T) {
	tests := []struct {
		name        string
		cfg         AppConfig
		wantWarning string
		check       func(t *testing.T, cfg *AppConfig)
	}{
		{
			name:        "negative max_page_size_bytes",
			cfg:         AppConfig{MaxPageSizeBytes: -1},
			wantWarning: "max_page_size_bytes cannot be negative",
			check: func(t *testing.T, cfg *AppConfig) {
				assert.Equal(t, int64(10*1024*1024), cfg.MaxPageSizeBytes)
			},
		},
		{
			name:        "negative crawl_timeout",
			cfg:         AppConfig{CrawlTimeout: -time.Second},
			wantWarning: "crawl_timeout cannot be negative",
			check: func(t *testing.T, cfg *AppConfig) {
				assert.Equal(t, time.Duration(0), cfg.CrawlTimeout)
			},
		},
		{
			name:        "unknown log format",
			cfg:         AppConfig{LogFormat: "xml"},
			wantWarning: "unknown log_format",
			check: func(t *testing.T, cfg *AppConfig) {
				assert.Equal(t, "text", cfg.LogFormat)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			warnings, err := cfg.Validate()
			require.NoError(t, err)
			assert.True(t, containsWarning(warnings, tt.wantWarning), "warnings: %v", warnings)
			tt.check(t, &cfg)
		})
	}
}

func TestAppConfig_Validate_ReportFilename(t *testing.T) {
	cfg := AppConfig{EnableReport: true}
	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Equal(t, "crawl_report.yaml", cfg.ReportFilename)
	assert.True(t, containsWarning(warnings, "report_filename' is empty"))
	assert.True(t, containsWarning(warnings, "output_dir is empty"))
}

func TestAppConfig_Validate_BadExcludePattern(t *testing.T) {
	cfg := AppConfig{ExcludePatterns: []string{`[`}}
	_, err := cfg.Validate()

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestAppConfig_Validate_Targets(t *testing.T) {
	t.Run("valid targets are canonicalized", func(t *testing.T) {
		cfg := AppConfig{Targets: map[string]*TargetConfig{
			"docs": {SeedURL: "HTTPS://Docs.Example.com:443#top"},
		}}
		_, err := cfg.Validate()

		require.NoError(t, err)
		assert.Equal(t, "https://docs.example.com/", cfg.Targets["docs"].SeedURL)
	})

	t.Run("invalid seed fails with target key", func(t *testing.T) {
		cfg := AppConfig{Targets: map[string]*TargetConfig{
			"good": {SeedURL: "https://a.example.com/"},
			"bad":  {SeedURL: "not a url"},
		}}
		_, err := cfg.Validate()

		require.Error(t, err)
		assert.ErrorIs(t, err, utils.ErrConfigValidation)
		assert.Contains(t, err.Error(), "'bad'")
	})

	t.Run("nil target", func(t *testing.T) {
		cfg := AppConfig{Targets: map[string]*TargetConfig{"empty": nil}}
		_, err := cfg.Validate()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "'empty'")
	})

	t.Run("negative depth warns with key prefix", func(t *testing.T) {
		cfg := AppConfig{Targets: map[string]*TargetConfig{
			"docs": {SeedURL: "https://docs.example.com/", Depth: -1},
		}}
		warnings, err := cfg.Validate()

		require.NoError(t, err)
		assert.Equal(t, 0, cfg.Targets["docs"].Depth)
		assert.True(t, containsWarning(warnings, "[docs] depth cannot be negative"))
	})
}

func TestTargetConfig_Validate_RequiredSeed(t *testing.T) {
	target := TargetConfig{}
	_, err := target.Validate()

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
	assert.Contains(t, err.Error(), "seed_url")
}

func containsWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

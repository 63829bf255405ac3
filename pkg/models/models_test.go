package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestEmptyResult(t *testing.T) {
	r := EmptyResult()
	require.NotNil(t, r)
	assert.Empty(t, r.Downloaded)
	assert.Empty(t, r.Errors)
	assert.NotNil(t, r.Errors, "errors map must be usable without a nil check")
	assert.Equal(t, 0, r.Len())
}

func TestResult_Helpers(t *testing.T) {
	r := &Result{
		Downloaded: []string{"http://a/", "http://b/"},
		Errors:     map[string]error{"http://c/": errors.New("boom")},
	}

	assert.Equal(t, 3, r.Len())
	assert.True(t, r.Contains("http://a/"))
	assert.False(t, r.Contains("http://c/"))
	assert.True(t, r.Failed("http://c/"))
	assert.False(t, r.Failed("http://a/"))
}

func TestResult_NilSafe(t *testing.T) {
	var r *Result
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.Contains("x"))
	assert.False(t, r.Failed("x"))
}

func TestCrawlReport_YAMLOmitsEmptyErrorFields(t *testing.T) {
	report := CrawlReport{
		RunID:     "run-1",
		SeedURL:   "http://a/",
		Depth:     2,
		StartTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 1, 1, 0, 1, 0, 0, time.UTC),
		TotalOK:   1,
		Pages:     []PageReport{{URL: "http://a/", Status: PageStatusDownloaded}},
	}

	data, err := yaml.Marshal(report)
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, "run_id: run-1")
	assert.Contains(t, s, "status: downloaded")
	assert.NotContains(t, s, "error_category")
	assert.NotContains(t, s, "interrupted")
}

func TestCrawlReport_JSONFieldNames(t *testing.T) {
	report := CrawlReport{
		RunID:         "run-2",
		TotalFailed:   1,
		ErrorsByClass: map[string]int{"HTTP_404": 1},
		Pages: []PageReport{{
			URL:           "http://a/missing",
			Status:        PageStatusFailed,
			ErrorCategory: "HTTP_404",
			ErrorMessage:  "client HTTP error (4xx): status 404 404 Not Found",
		}},
	}

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "run-2", raw["run_id"])
	assert.Equal(t, float64(1), raw["total_failed"])
	assert.Contains(t, raw, "errors_by_category")
}

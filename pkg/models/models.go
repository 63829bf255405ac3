package models

import (
	"context"
	"time"
)

// Document is a downloaded page that can list its outbound links.
// An error from ExtractLinks is an extraction failure for that page only.
type Document interface {
	ExtractLinks() ([]string, error)
}

// Downloader fetches a single URL. A returned error is a per-URL download failure.
type Downloader interface {
	Download(ctx context.Context, url string) (Document, error)
}

// HostFunc extracts the host used for per-host download limiting.
type HostFunc func(rawURL string) (string, error)

// Result is the aggregate outcome of a crawl.
// Downloaded holds no duplicates, and a URL never appears both in Downloaded and Errors.
type Result struct {
	Downloaded []string
	Errors     map[string]error
}

// EmptyResult returns a result with no downloads and no errors.
func EmptyResult() *Result {
	return &Result{Downloaded: []string{}, Errors: map[string]error{}}
}

// Len returns the number of URLs accounted for (downloaded plus failed).
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Downloaded) + len(r.Errors)
}

// Contains reports whether url was downloaded successfully.
func (r *Result) Contains(url string) bool {
	if r == nil {
		return false
	}
	for _, u := range r.Downloaded {
		if u == url {
			return true
		}
	}
	return false
}

// Failed reports whether url is recorded as a failure.
func (r *Result) Failed(url string) bool {
	if r == nil {
		return false
	}
	_, ok := r.Errors[url]
	return ok
}

// PageReport is a single URL's line in a crawl report.
type PageReport struct {
	URL           string     `yaml:"url" json:"url"`
	Status        PageStatus `yaml:"status" json:"status"`
	ErrorCategory string     `yaml:"error_category,omitempty" json:"error_category,omitempty"`
	ErrorMessage  string     `yaml:"error_message,omitempty" json:"error_message,omitempty"`
}

// CrawlReport holds everything written out for one crawl run.
type CrawlReport struct {
	RunID         string         `yaml:"run_id" json:"run_id"`
	Target        string         `yaml:"target,omitempty" json:"target,omitempty"`
	SeedURL       string         `yaml:"seed_url" json:"seed_url"`
	Depth         int            `yaml:"depth" json:"depth"`
	StartTime     time.Time      `yaml:"start_time" json:"start_time"`
	EndTime       time.Time      `yaml:"end_time" json:"end_time"`
	Interrupted   bool           `yaml:"interrupted,omitempty" json:"interrupted,omitempty"`
	TotalOK       int            `yaml:"total_downloaded" json:"total_downloaded"`
	TotalFailed   int            `yaml:"total_failed" json:"total_failed"`
	ErrorsByClass map[string]int `yaml:"errors_by_category,omitempty" json:"errors_by_category,omitempty"`
	Pages         []PageReport   `yaml:"pages" json:"pages"`
}

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"link-crawler/pkg/config"
	"link-crawler/pkg/models"
	"link-crawler/pkg/process"
	"link-crawler/pkg/utils"
)

// Fetcher downloads pages over HTTP. It implements models.Downloader.
// Each URL gets exactly one attempt; the crawler records a failure and moves on.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	links        *process.LinkExtractor
	log          *logrus.Entry
}

var _ models.Downloader = (*Fetcher)(nil)

// NewFetcher creates a new Fetcher instance
func NewFetcher(client *http.Client, cfg *config.AppConfig, links *process.LinkExtractor, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		client:       client,
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxPageSizeBytes,
		links:        links,
		log:          log.WithField("component", "fetcher"),
	}
}

// Download performs a GET for rawURL and returns the body as a Document.
// Non-2xx statuses are returned as errors wrapping the utils HTTP sentinels.
func (f *Fetcher) Download(ctx context.Context, rawURL string) (models.Document, error) {
	reqLog := f.log.WithField("url", rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		reqLog.Debugf("Network error: %v", err)
		return nil, err
	}
	defer resp.Body.Close()

	statusCode := resp.StatusCode
	resLog := reqLog.WithFields(logrus.Fields{"status_code": statusCode})

	switch {
	case statusCode >= 200 && statusCode < 300:
		// handled below
	case statusCode >= 500:
		resLog.Debug("Server error")
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, statusCode, resp.Status)
	case statusCode >= 400:
		resLog.Debug("Client error")
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, resp.Status)
	default:
		resLog.Debugf("Unexpected status: %d", statusCode)
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, statusCode, resp.Status)
	}

	var reader io.Reader = resp.Body
	if f.maxBodyBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxBodyBytes+1) // +1 to detect exceeding the limit
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	if f.maxBodyBytes > 0 && int64(len(body)) > f.maxBodyBytes {
		resLog.Debugf("Body exceeds max size of %d bytes", f.maxBodyBytes)
		return nil, fmt.Errorf("%w: page exceeds max size (%d bytes)", utils.ErrResponseBodyRead, f.maxBodyBytes)
	}

	resLog.WithField("bytes", len(body)).Debug("Successfully fetched")
	return NewHTMLDocument(resp.Request.URL, resp.Header.Get("Content-Type"), body, f.links), nil
}

package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"link-crawler/pkg/fetch"
	"link-crawler/pkg/metrics"
	"link-crawler/pkg/models"
	"link-crawler/pkg/utils"
)

// docRef boxes a Document so it can be swapped atomically.
type docRef struct {
	doc models.Document
}

// PageOutcome is the memoized result of downloading one URL.
// Exactly one of Err or the document is set when the outcome is created.
// The document is dropped once the page's links are memoized.
type PageOutcome struct {
	URL string
	Err error

	doc atomic.Pointer[docRef]
}

func newFetchedPage(url string, doc models.Document) *PageOutcome {
	p := &PageOutcome{URL: url}
	p.doc.Store(&docRef{doc: doc})
	return p
}

func newFailedPage(url string, err error) *PageOutcome {
	return &PageOutcome{URL: url, Err: err}
}

// Fetched reports whether the download succeeded.
func (p *PageOutcome) Fetched() bool {
	return p != nil && p.Err == nil
}

// Document returns the downloaded document, or nil once it has been dropped or if the download failed.
func (p *PageOutcome) Document() models.Document {
	if p == nil {
		return nil
	}
	if ref := p.doc.Load(); ref != nil {
		return ref.doc
	}
	return nil
}

func (p *PageOutcome) dropDocument() {
	p.doc.Store(nil)
}

// pageCache downloads each URL at most once per crawler, under the global download
// permit and the per-host permit.
type pageCache struct {
	memo       memoTable[*PageOutcome]
	downloader models.Downloader
	hostOf     models.HostFunc
	downloads  *semaphore.Weighted
	hosts      *fetch.HostSemaphorePool
	metrics    *metrics.Metrics
	stats      *Stats
}

// Fetch returns the download outcome for url, downloading it if no outcome exists yet.
// A per-URL failure is reported inside the outcome. The returned error is non-nil only
// when ctx ended before an outcome was available; such interruptions are never memoized.
func (pc *pageCache) Fetch(ctx context.Context, url string, log *logrus.Entry) (*PageOutcome, error) {
	out, hit, err := pc.memo.do(ctx, url, func() (*PageOutcome, error) {
		return pc.download(ctx, url, log)
	})
	if hit && err == nil {
		pc.stats.PageMemoHits.Add(1)
		pc.metrics.MemoHit("pages")
	}
	return out, err
}

func (pc *pageCache) download(ctx context.Context, url string, log *logrus.Entry) (*PageOutcome, error) {
	host, err := pc.hostOf(url)
	if err != nil {
		if !errors.Is(err, utils.ErrMalformedURL) {
			err = fmt.Errorf("%w: %w", utils.ErrMalformedURL, err)
		}
		log.WithField("url", url).Debugf("Cannot determine host: %v", err)
		return newFailedPage(url, err), nil
	}

	release, err := pc.acquire(ctx, host)
	if err != nil {
		return nil, err
	}
	defer release()

	pc.stats.Downloads.Add(1)
	done := pc.metrics.DownloadStarted()
	doc, err := pc.downloader.Download(ctx, url)
	done(err)

	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: download of %s: %w", utils.ErrPermitInterrupted, url, ctx.Err())
		}
		log.WithFields(logrus.Fields{"url": url, "category": utils.CategorizeError(err)}).Debugf("Download failed: %v", err)
		return newFailedPage(url, err), nil
	}
	return newFetchedPage(url, doc), nil
}

// acquire takes the global download permit and then the host permit.
// The returned func releases both, host first.
func (pc *pageCache) acquire(ctx context.Context, host string) (func(), error) {
	start := time.Now()
	if err := pc.downloads.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: download permit: %w", utils.ErrPermitInterrupted, err)
	}
	pc.metrics.PermitWaited("download", start)

	start = time.Now()
	if err := pc.hosts.Acquire(ctx, host); err != nil {
		pc.downloads.Release(1)
		return nil, fmt.Errorf("%w: host permit for %s: %w", utils.ErrPermitInterrupted, host, err)
	}
	pc.metrics.PermitWaited("host", start)

	return func() {
		pc.hosts.Release(host)
		pc.downloads.Release(1)
	}, nil
}

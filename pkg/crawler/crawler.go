package crawler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"link-crawler/pkg/config"
	"link-crawler/pkg/fetch"
	"link-crawler/pkg/metrics"
	"link-crawler/pkg/models"
	"link-crawler/pkg/parse"
	"link-crawler/pkg/process"
	"link-crawler/pkg/utils"
)

// Options configures a WebCrawler.
type Options struct {
	Downloaders int // concurrent downloads across all hosts
	Extractors  int // concurrent link extractions
	PerHost     int // concurrent downloads to any single host

	// HostOf maps a URL to the key used for per-host limiting. Defaults to parse.HostOf.
	HostOf models.HostFunc
	// Metrics is optional; nil records nothing.
	Metrics *metrics.Metrics
}

// Stats counts the work a crawler has done over its lifetime.
type Stats struct {
	Downloads    atomic.Int64 // Downloader.Download calls
	Extractions  atomic.Int64 // Document.ExtractLinks calls
	PageMemoHits atomic.Int64
	LinkMemoHits atomic.Int64
	Nodes        atomic.Int64 // crawl tree nodes visited, including repeats of the same URL
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Downloads    int64 `json:"downloads"`
	Extractions  int64 `json:"extractions"`
	PageMemoHits int64 `json:"page_memo_hits"`
	LinkMemoHits int64 `json:"link_memo_hits"`
	Nodes        int64 `json:"nodes"`
	HostsSeen    int   `json:"hosts_seen"`
}

// WebCrawler crawls link graphs with bounded concurrency. Every URL is downloaded and
// parsed at most once over the crawler's lifetime, no matter how many crawls or branches
// reach it. A WebCrawler is safe for concurrent use; Close releases it.
type WebCrawler struct {
	log *logrus.Entry

	pages   *pageCache
	links   *linkCache
	pool    *taskPool
	hosts   *fetch.HostSemaphorePool
	stats   *Stats
	metrics *metrics.Metrics

	lifetime context.Context
	shutdown context.CancelFunc
	mu       sync.RWMutex // guards closed against new submissions racing Close
	closed   bool
}

// New creates a WebCrawler that downloads through downloader.
// Pool sizes above config.MaxPoolSize are clamped with a warning.
func New(downloader models.Downloader, opts Options, log *logrus.Entry) *WebCrawler {
	opts.Downloaders = clampPoolSize("downloaders", opts.Downloaders, log)
	opts.Extractors = clampPoolSize("extractors", opts.Extractors, log)
	if opts.HostOf == nil {
		opts.HostOf = parse.HostOf
	}

	stats := &Stats{}
	hosts := fetch.NewHostSemaphorePool(opts.PerHost, log)
	lifetime, shutdown := context.WithCancel(context.Background())

	c := &WebCrawler{
		log: log,
		pages: &pageCache{
			downloader: downloader,
			hostOf:     opts.HostOf,
			downloads:  semaphore.NewWeighted(int64(opts.Downloaders)),
			hosts:      hosts,
			metrics:    opts.Metrics,
			stats:      stats,
		},
		links: &linkCache{
			extractions: semaphore.NewWeighted(int64(opts.Extractors)),
			metrics:     opts.Metrics,
			stats:       stats,
		},
		pool:     newTaskPool(opts.Downloaders+opts.Extractors, opts.Metrics),
		hosts:    hosts,
		stats:    stats,
		metrics:  opts.Metrics,
		lifetime: lifetime,
		shutdown: shutdown,
	}
	log.WithFields(logrus.Fields{
		"downloaders": opts.Downloaders,
		"extractors":  opts.Extractors,
		"per_host":    hosts.Limit(),
		"pool_size":   c.pool.size,
	}).Debug("Web crawler initialized")
	return c
}

// NewFromConfig builds the HTTP fetcher and link extractor described by cfg and wraps them
// in a WebCrawler. cfg must already be validated.
func NewFromConfig(cfg *config.AppConfig, m *metrics.Metrics, log *logrus.Entry) (*WebCrawler, error) {
	links, err := process.NewLinkExtractor(process.LinkOptions{
		Selectors:       cfg.LinkSelectors,
		RespectNofollow: cfg.RespectNofollow,
		SameHostOnly:    cfg.SameHostOnly,
		ExcludePatterns: cfg.ExcludePatterns,
	})
	if err != nil {
		return nil, err
	}
	fetcher := fetch.NewFetcher(fetch.NewClient(cfg.HTTPClientSettings, log), cfg, links, log)
	return New(fetcher, Options{
		Downloaders: cfg.Downloaders,
		Extractors:  cfg.Extractors,
		PerHost:     cfg.PerHost,
		Metrics:     m,
	}, log), nil
}

func clampPoolSize(name string, n int, log *logrus.Entry) int {
	switch {
	case n <= 0:
		log.Warnf("%s (%d) must be positive, using 1", name, n)
		return 1
	case n > config.MaxPoolSize:
		log.Warnf("%s (%d) exceeds maximum %d, clamping", name, n, config.MaxPoolSize)
		return config.MaxPoolSize
	}
	return n
}

// Crawl downloads url and everything reachable from it within depth levels, where depth 1 is
// url alone. Per-URL download failures are reported in the result's Errors, not as an error.
// The returned error is non-nil when ctx ended or the crawler was closed mid-crawl; the
// result then holds whatever was gathered before the interruption.
func (c *WebCrawler) Crawl(ctx context.Context, url string, depth int) (*models.Result, error) {
	if depth <= 0 || url == "" {
		return models.EmptyResult(), nil
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return models.EmptyResult(), utils.ErrCrawlerClosed
	}
	runCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.lifetime, cancel)
	log := c.log.WithFields(logrus.Fields{"run_id": uuid.NewString(), "seed": url, "depth": depth})
	done := c.pool.submit(runCtx, func(s *taskSlot) (*models.Result, error) {
		return c.crawl(runCtx, s, url, depth, log)
	})
	c.mu.RUnlock()

	defer func() {
		stop()
		cancel()
	}()

	log.Info("Crawl started")
	out := <-done
	res := out.result
	if res == nil {
		res = models.EmptyResult()
	}

	fields := logrus.Fields{"downloaded": len(res.Downloaded), "failed": len(res.Errors)}
	if out.err != nil {
		if c.lifetime.Err() != nil && ctx.Err() == nil {
			out.err = errors.Join(utils.ErrCrawlerClosed, out.err)
		}
		log.WithFields(fields).Warnf("Crawl interrupted: %v", out.err)
		return res, out.err
	}
	log.WithFields(fields).Info("Crawl finished")
	return res, nil
}

// crawl handles one node of the crawl tree. It holds slot while fetching and extracting,
// then yields it before waiting on its children.
func (c *WebCrawler) crawl(ctx context.Context, slot *taskSlot, url string, depth int, log *logrus.Entry) (*models.Result, error) {
	c.stats.Nodes.Add(1)
	c.metrics.NodeVisited()

	page, err := c.pages.Fetch(ctx, url, log)
	if err != nil {
		return models.EmptyResult(), err
	}

	kids, linkErr := c.links.Links(ctx, page, log)

	b := newResultBuilder()
	if page.Fetched() {
		b.addDownloaded(url)
	} else {
		b.addError(url, page.Err)
	}
	if linkErr != nil {
		return b.build(), linkErr
	}

	if depth-1 <= 0 || len(kids) == 0 {
		return b.build(), nil
	}

	pending := make([]<-chan taskOutcome, 0, len(kids))
	for _, kid := range kids {
		pending = append(pending, c.pool.submit(ctx, func(s *taskSlot) (*models.Result, error) {
			return c.crawl(ctx, s, kid, depth-1, log)
		}))
	}
	slot.release()

	var firstErr error
	for _, ch := range pending {
		out := <-ch
		b.merge(out.result)
		if out.err != nil && firstErr == nil {
			firstErr = out.err
		}
	}
	return b.build(), firstErr
}

// Stats returns a snapshot of the crawler's lifetime counters.
func (c *WebCrawler) Stats() StatsSnapshot {
	return StatsSnapshot{
		Downloads:    c.stats.Downloads.Load(),
		Extractions:  c.stats.Extractions.Load(),
		PageMemoHits: c.stats.PageMemoHits.Load(),
		LinkMemoHits: c.stats.LinkMemoHits.Load(),
		Nodes:        c.stats.Nodes.Load(),
		HostsSeen:    c.hosts.Len(),
	}
}

// PageOutcome returns the memoized download outcome for url, if one exists.
func (c *WebCrawler) PageOutcome(url string) (*PageOutcome, bool) {
	return c.pages.memo.peek(url)
}

// Close aborts in-flight crawls and waits for their tasks to return. Later calls to Crawl
// fail with utils.ErrCrawlerClosed. Close is idempotent.
func (c *WebCrawler) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.shutdown()
	c.mu.Unlock()

	c.pool.wg.Wait()
	c.log.Debug("Web crawler closed")
	return nil
}

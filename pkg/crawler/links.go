package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"link-crawler/pkg/metrics"
	"link-crawler/pkg/utils"
)

// linkCache extracts each fetched page's links at most once, under the extraction permit.
type linkCache struct {
	memo        memoTable[[]string]
	extractions *semaphore.Weighted
	metrics     *metrics.Metrics
	stats       *Stats
}

// Links returns the de-duplicated outbound links of page. A failed page has no links and
// nothing is memoized for it. An extraction error is logged and memoized as an empty set.
// The returned error is non-nil only when ctx ended first.
func (lc *linkCache) Links(ctx context.Context, page *PageOutcome, log *logrus.Entry) ([]string, error) {
	if !page.Fetched() {
		return []string{}, nil
	}

	links, hit, err := lc.memo.do(ctx, page.URL, func() ([]string, error) {
		return lc.extract(ctx, page, log)
	})
	if err != nil {
		return []string{}, err
	}
	if hit {
		lc.stats.LinkMemoHits.Add(1)
		lc.metrics.MemoHit("links")
	} else {
		page.dropDocument()
	}
	return links, nil
}

func (lc *linkCache) extract(ctx context.Context, page *PageOutcome, log *logrus.Entry) ([]string, error) {
	start := time.Now()
	if err := lc.extractions.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: extraction permit: %w", utils.ErrPermitInterrupted, err)
	}
	defer lc.extractions.Release(1)
	lc.metrics.PermitWaited("extract", start)

	doc := page.Document()
	if doc == nil {
		return []string{}, nil
	}

	lc.stats.Extractions.Add(1)
	done := lc.metrics.ExtractionStarted()
	raw, err := doc.ExtractLinks()
	done(err)
	if err != nil {
		log.WithField("url", page.URL).Warnf("Link extraction failed: %v", err)
		return []string{}, nil
	}
	return dedupe(raw), nil
}

// dedupe keeps the first occurrence of each link and skips empty strings.
func dedupe(links []string) []string {
	out := make([]string, 0, len(links))
	seen := make(map[string]struct{}, len(links))
	for _, l := range links {
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

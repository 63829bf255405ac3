package orchestrate

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"link-crawler/pkg/config"
	"link-crawler/pkg/models"
	"link-crawler/pkg/report"
)

// Crawler is the crawl entry point the orchestrator drives. *crawler.WebCrawler implements it.
type Crawler interface {
	Crawl(ctx context.Context, url string, depth int) (*models.Result, error)
}

// TargetResult contains the result of crawling a single configured target
type TargetResult struct {
	TargetKey  string
	SeedURL    string
	Depth      int
	Result     *models.Result
	Error      error // config lookup failure or crawl interruption
	Duration   time.Duration
	ReportPath string // empty when reports are disabled or writing failed
}

// Success reports whether the target's crawl ran to completion.
func (r TargetResult) Success() bool {
	return r.Error == nil
}

// Orchestrator crawls several configured targets in parallel through one shared crawler, so
// limits and memoized pages are shared: a page reachable from two targets is downloaded once.
type Orchestrator struct {
	appCfg     *config.AppConfig
	crawler    Crawler
	reports    *report.Writer // nil disables reports
	log        *logrus.Entry
	targetKeys []string

	results   []TargetResult
	resultsMu sync.Mutex
}

// NewOrchestrator creates a new orchestrator for the given target keys.
// reports may be nil.
func NewOrchestrator(appCfg *config.AppConfig, c Crawler, reports *report.Writer, targetKeys []string, log *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		appCfg:     appCfg,
		crawler:    c,
		reports:    reports,
		log:        log,
		targetKeys: targetKeys,
		results:    make([]TargetResult, 0, len(targetKeys)),
	}
}

// Run crawls all targets in parallel and waits for completion.
// Results are returned in target key order.
func (o *Orchestrator) Run(ctx context.Context) []TargetResult {
	startTime := time.Now()
	o.log.Infof("Starting parallel crawl of %d targets: %v", len(o.targetKeys), o.targetKeys)

	var wg sync.WaitGroup
	for _, key := range o.targetKeys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			result := o.crawlTarget(ctx, key)
			o.resultsMu.Lock()
			o.results = append(o.results, result)
			o.resultsMu.Unlock()
		}(key)
	}
	wg.Wait()

	o.resultsMu.Lock()
	defer o.resultsMu.Unlock()
	sort.Slice(o.results, func(i, j int) bool { return o.results[i].TargetKey < o.results[j].TargetKey })
	o.logSummary(time.Since(startTime))

	out := make([]TargetResult, len(o.results))
	copy(out, o.results)
	return out
}

// crawlTarget crawls a single target with the shared crawler
func (o *Orchestrator) crawlTarget(ctx context.Context, key string) TargetResult {
	startTime := time.Now()
	result := TargetResult{TargetKey: key}
	log := o.log.WithField("target", key)

	targetCfg, exists := o.appCfg.Targets[key]
	if !exists {
		result.Error = fmt.Errorf("target '%s' not found in configuration", key)
		log.Errorf("Target '%s' not found in configuration", key)
		return result
	}
	result.SeedURL = targetCfg.SeedURL
	result.Depth = targetCfg.EffectiveDepth(o.appCfg)

	if o.appCfg.CrawlTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.appCfg.CrawlTimeout)
		defer cancel()
	}

	log.Infof("Starting crawl of %s (depth %d)", result.SeedURL, result.Depth)
	res, err := o.crawler.Crawl(ctx, result.SeedURL, result.Depth)
	result.Result = res
	result.Error = err
	result.Duration = time.Since(startTime)
	if err != nil {
		log.Errorf("Crawl interrupted for target '%s': %v", key, err)
	} else {
		log.Infof("Crawl completed for target '%s'", key)
	}

	if o.reports != nil {
		rep := report.Build(report.Run{
			Target:    key,
			SeedURL:   result.SeedURL,
			Depth:     result.Depth,
			StartTime: startTime,
			EndTime:   startTime.Add(result.Duration),
			Result:    res,
			Err:       err,
		})
		path, werr := o.reports.Write(rep)
		if werr != nil {
			log.Warnf("Could not write report: %v", werr)
		}
		result.ReportPath = path
	}
	return result
}

// logSummary logs a summary of all crawl results. Callers hold resultsMu.
func (o *Orchestrator) logSummary(totalDuration time.Duration) {
	o.log.Info("============================================")
	o.log.Infof("Parallel crawl completed in %v", totalDuration)
	o.log.Info("Target Results:")

	totalOK, totalFailed := 0, 0
	successCount, failCount := 0, 0

	for _, r := range o.results {
		status := "SUCCESS"
		if !r.Success() {
			status = "FAILED"
			failCount++
		} else {
			successCount++
		}
		ok, failed := 0, 0
		if r.Result != nil {
			ok, failed = len(r.Result.Downloaded), len(r.Result.Errors)
		}
		totalOK += ok
		totalFailed += failed

		o.log.Infof("  %s: %s - %d downloaded, %d failed in %v", r.TargetKey, status, ok, failed, r.Duration)
		if r.Error != nil {
			o.log.Infof("    Error: %v", r.Error)
		}
	}

	o.log.Info("--------------------------------------------")
	o.log.Infof("Total: %d targets (%d success, %d failed), %d pages downloaded, %d failed",
		len(o.results), successCount, failCount, totalOK, totalFailed)
	o.log.Info("============================================")
}

// ValidateTargetKeys checks that all provided target keys exist in the config
func ValidateTargetKeys(appCfg *config.AppConfig, targetKeys []string) error {
	for _, key := range targetKeys {
		if _, exists := appCfg.Targets[key]; !exists {
			return fmt.Errorf("target '%s' not found. Available targets: %v", key, GetAllTargetKeys(appCfg))
		}
	}
	return nil
}

// GetAllTargetKeys returns all target keys from the config, sorted
func GetAllTargetKeys(appCfg *config.AppConfig) []string {
	keys := make([]string, 0, len(appCfg.Targets))
	for k := range appCfg.Targets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

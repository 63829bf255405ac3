package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"link-crawler/pkg/config"
	"link-crawler/pkg/crawler"
	"link-crawler/pkg/metrics"
	"link-crawler/pkg/models"
	"link-crawler/pkg/orchestrate"
	"link-crawler/pkg/parse"
	"link-crawler/pkg/report"
)

// crawlOptions are the crawl command's flags. Zero values defer to the config file.
type crawlOptions struct {
	configPath  string
	logLevel    string
	url         string
	targets     []string
	allTargets  bool
	depth       int
	downloaders int
	extractors  int
	perHost     int
	report      bool
	outputDir   string
	metricsAddr string
	jsonOutput  bool
}

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl a URL or configured targets",
		Long: `Crawl downloads every page reachable from a seed within the given depth.

Depth counts pages on a path, so depth 1 downloads only the seed and depth 2 also
downloads the pages it links to. Per-URL failures are reported, not fatal.

Examples:
  # Crawl a single URL three pages deep
  link-crawler crawl --url https://example.com/ --depth 3

  # Crawl two configured targets in parallel through one shared crawler
  link-crawler crawl -c config.yaml --target docs --target blog

  # Crawl every configured target and write YAML reports
  link-crawler crawl -c config.yaml --all --report --output-dir ./out

  # Print the report as JSON
  link-crawler crawl --url https://example.com/ --json`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().StringP("url", "u", "", "Seed URL to crawl")
	cmd.Flags().StringSliceP("target", "t", nil, "Configured target key to crawl (repeatable)")
	cmd.Flags().BoolP("all", "a", false, "Crawl every configured target")
	cmd.Flags().IntP("depth", "d", 0, "Crawl depth (default: target depth or default_depth)")
	cmd.Flags().Int("downloaders", 0, "Concurrent downloads (default: config downloaders)")
	cmd.Flags().Int("extractors", 0, "Concurrent link extractions (default: config extractors)")
	cmd.Flags().Int("per-host", 0, "Concurrent downloads per host (default: config per_host)")
	cmd.Flags().BoolP("report", "r", false, "Write a YAML crawl report")
	cmd.Flags().StringP("output-dir", "o", "", "Directory for reports (default: config output_dir)")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics and pprof on this address (e.g. ':9090')")
	cmd.Flags().BoolP("json", "j", false, "Print the crawl report as JSON on stdout")

	cmd.MarkFlagsMutuallyExclusive("url", "target")
	cmd.MarkFlagsMutuallyExclusive("url", "all")
	cmd.MarkFlagsMutuallyExclusive("target", "all")
	return cmd
}

func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	opts := crawlOptions{}
	opts.configPath, _ = cmd.Flags().GetString("config")
	opts.logLevel, _ = cmd.Flags().GetString("loglevel")
	opts.url, _ = cmd.Flags().GetString("url")
	opts.targets, _ = cmd.Flags().GetStringSlice("target")
	opts.allTargets, _ = cmd.Flags().GetBool("all")
	opts.depth, _ = cmd.Flags().GetInt("depth")
	opts.downloaders, _ = cmd.Flags().GetInt("downloaders")
	opts.extractors, _ = cmd.Flags().GetInt("extractors")
	opts.perHost, _ = cmd.Flags().GetInt("per-host")
	opts.report, _ = cmd.Flags().GetBool("report")
	opts.outputDir, _ = cmd.Flags().GetString("output-dir")
	opts.metricsAddr, _ = cmd.Flags().GetString("metrics-addr")
	opts.jsonOutput, _ = cmd.Flags().GetBool("json")

	return exitWith(doCrawl(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr()))
}

// doCrawl is the testable implementation of the crawl command
func doCrawl(ctx context.Context, opts crawlOptions, stdout, stderr io.Writer) int {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.url == "" && len(opts.targets) == 0 && !opts.allTargets {
		fmt.Fprintln(stderr, "Error: one of --url, --target or --all is required")
		return 1
	}
	if opts.url == "" && opts.configPath == "" {
		fmt.Fprintln(stderr, "Error: --config is required to crawl configured targets")
		return 1
	}

	appCfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	applyCrawlOverrides(appCfg, opts)

	warnings, err := appCfg.Validate()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return 1
	}

	logger, err := setupLogger(appCfg, opts.logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	for _, w := range warnings {
		logger.Warn(w)
	}
	logAppConfig(appCfg, logger)

	ctx, stop := signalContext(ctx, logger)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if appCfg.MetricsAddr != "" {
		shutdown := startMetricsServer(appCfg.MetricsAddr, reg, logger)
		defer shutdown()
	}

	log := logger.WithField("component", "crawl")
	wc, err := crawler.NewFromConfig(appCfg, m, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error creating crawler: %v\n", err)
		return 1
	}
	defer func() {
		if err := wc.Close(); err != nil {
			log.Warnf("Closing crawler: %v", err)
		}
	}()

	var reports *report.Writer
	if appCfg.EnableReport {
		reports = report.NewWriter(appCfg.OutputDir, appCfg.EffectiveReportFilename(), log)
	}

	if opts.url != "" {
		return crawlURL(ctx, appCfg, wc, reports, opts, stdout, stderr, log)
	}
	return crawlTargets(ctx, appCfg, wc, reports, opts, stdout, stderr, log)
}

// applyCrawlOverrides copies explicitly set flags over the loaded config
func applyCrawlOverrides(appCfg *config.AppConfig, opts crawlOptions) {
	if opts.downloaders > 0 {
		appCfg.Downloaders = opts.downloaders
	}
	if opts.extractors > 0 {
		appCfg.Extractors = opts.extractors
	}
	if opts.perHost > 0 {
		appCfg.PerHost = opts.perHost
	}
	if opts.report {
		appCfg.EnableReport = true
	}
	if opts.outputDir != "" {
		appCfg.OutputDir = opts.outputDir
	}
	if opts.metricsAddr != "" {
		appCfg.MetricsAddr = opts.metricsAddr
	}
	if opts.depth > 0 {
		appCfg.DefaultDepth = opts.depth
		for _, target := range appCfg.Targets {
			if target != nil {
				target.Depth = opts.depth
			}
		}
	}
}

// crawlURL runs a single ad-hoc crawl from opts.url
func crawlURL(ctx context.Context, appCfg *config.AppConfig, wc *crawler.WebCrawler, reports *report.Writer,
	opts crawlOptions, stdout, stderr io.Writer, log *logrus.Entry) int {
	seed, _, err := parse.ParseAbsolute(opts.url)
	if err != nil {
		fmt.Fprintf(stderr, "Error: invalid --url: %v\n", err)
		return 1
	}
	depth := appCfg.DefaultDepth

	if appCfg.CrawlTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, appCfg.CrawlTimeout)
		defer cancel()
	}

	log.Infof("Crawling %s (depth %d)", seed, depth)
	startTime := time.Now()
	res, crawlErr := wc.Crawl(ctx, seed, depth)
	rep := report.Build(report.Run{
		SeedURL:   seed,
		Depth:     depth,
		StartTime: startTime,
		EndTime:   time.Now(),
		Result:    res,
		Err:       crawlErr,
	})

	if reports != nil {
		if _, err := reports.Write(rep); err != nil {
			log.Errorf("Failed to write report: %v", err)
		}
	}
	if opts.jsonOutput {
		if err := report.WriteJSON(stdout, rep); err != nil {
			fmt.Fprintf(stderr, "Error writing JSON: %v\n", err)
			return 1
		}
	} else {
		printReport(stdout, rep)
	}
	log.WithFields(logrus.Fields{"stats": wc.Stats()}).Debug("Crawler stats")

	return crawlExitCode(crawlErr, log)
}

// crawlTargets crawls the selected configured targets through the orchestrator
func crawlTargets(ctx context.Context, appCfg *config.AppConfig, wc *crawler.WebCrawler, reports *report.Writer,
	opts crawlOptions, stdout, stderr io.Writer, log *logrus.Entry) int {
	keys := opts.targets
	if opts.allTargets {
		keys = orchestrate.GetAllTargetKeys(appCfg)
	}
	if len(keys) == 0 {
		fmt.Fprintln(stderr, "Error: no targets configured")
		return 1
	}
	if err := orchestrate.ValidateTargetKeys(appCfg, keys); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	startTime := time.Now()
	results := orchestrate.NewOrchestrator(appCfg, wc, reports, keys, log).Run(ctx)

	reps := make([]*models.CrawlReport, 0, len(results))
	exitCode := 0
	for _, r := range results {
		rep := report.Build(report.Run{
			Target:    r.TargetKey,
			SeedURL:   r.SeedURL,
			Depth:     r.Depth,
			StartTime: startTime,
			EndTime:   startTime.Add(r.Duration),
			Result:    r.Result,
			Err:       r.Error,
		})
		reps = append(reps, rep)
		if code := crawlExitCode(r.Error, log.WithField("target", r.TargetKey)); code > exitCode {
			exitCode = code
		}
	}

	if opts.jsonOutput {
		for _, rep := range reps {
			if err := report.WriteJSON(stdout, rep); err != nil {
				fmt.Fprintf(stderr, "Error writing JSON: %v\n", err)
				return 1
			}
		}
	} else {
		for _, rep := range reps {
			printReport(stdout, rep)
		}
	}
	return exitCode
}

// crawlExitCode maps a crawl error to the process exit code. A crawl cancelled by a signal
// still exits 0: its partial result has been reported.
func crawlExitCode(err error, log *logrus.Entry) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		log.Warn("Crawl cancelled gracefully.")
		return 0
	case errors.Is(err, context.DeadlineExceeded):
		log.Error("Crawl timed out.")
		return 1
	default:
		log.Errorf("Crawl finished with error: %v", err)
		return 1
	}
}

// printReport writes a human-readable summary of rep
func printReport(w io.Writer, rep *models.CrawlReport) {
	name := rep.SeedURL
	if rep.Target != "" {
		name = fmt.Sprintf("%s (%s)", rep.Target, rep.SeedURL)
	}
	fmt.Fprintf(w, "%s: %d downloaded, %d failed, depth %d in %v\n",
		name, rep.TotalOK, rep.TotalFailed, rep.Depth, rep.EndTime.Sub(rep.StartTime).Round(time.Millisecond))
	if rep.Interrupted {
		fmt.Fprintln(w, "  (interrupted; result is partial)")
	}

	categories := make([]string, 0, len(rep.ErrorsByClass))
	for c := range rep.ErrorsByClass {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Fprintf(w, "  %-20s %d\n", c, rep.ErrorsByClass[c])
	}
	for _, p := range rep.Pages {
		if p.Status == models.PageStatusFailed {
			fmt.Fprintf(w, "  FAIL %s: %s\n", p.URL, p.ErrorMessage)
		}
	}
}

// startMetricsServer serves /metrics and the pprof endpoints on addr.
// The returned func shuts the server down.
func startMetricsServer(addr string, reg *prometheus.Registry, log *logrus.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("PANIC in metrics server: %v", r)
			}
		}()
		log.Infof("Serving metrics on http://%s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics server failed on %s: %v", addr, err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// logAppConfig logs the effective configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Config: Downloaders:%d, Extractors:%d, PerHost:%d, DefaultDepth:%d",
		appCfg.Downloaders, appCfg.Extractors, appCfg.PerHost, appCfg.DefaultDepth)
	log.Infof("Config Links: Selectors:%v, RespectNofollow:%t, SameHostOnly:%t, Excludes:%d",
		appCfg.LinkSelectors, appCfg.RespectNofollow, appCfg.SameHostOnly, len(appCfg.ExcludePatterns))
	log.Infof("Config Output: Report:%t, Dir:%s, Filename:%s, CrawlTimeout:%v",
		appCfg.EnableReport, appCfg.OutputDir, appCfg.EffectiveReportFilename(), appCfg.CrawlTimeout)
	log.Infof("Config HTTP Client: Timeout:%v, MaxIdle:%d, MaxIdlePerHost:%d, IdleTimeout:%v, TLSTimeout:%v, DialerTimeout:%v",
		appCfg.HTTPClientSettings.Timeout, appCfg.HTTPClientSettings.MaxIdleConns, appCfg.HTTPClientSettings.MaxIdleConnsPerHost,
		appCfg.HTTPClientSettings.IdleConnTimeout, appCfg.HTTPClientSettings.TLSHandshakeTimeout, appCfg.HTTPClientSettings.DialerTimeout)
}

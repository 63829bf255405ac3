package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"link-crawler/pkg/config"
	"link-crawler/pkg/crawler"
	"link-crawler/pkg/metrics"
	"link-crawler/pkg/models"
)

const (
	serverName    = "link-crawler"
	serverVersion = "1.0.0"
)

// Crawler is what the MCP tools crawl with. *crawler.WebCrawler implements it.
type Crawler interface {
	Crawl(ctx context.Context, url string, depth int) (*models.Result, error)
	Stats() crawler.StatsSnapshot
}

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig  *config.AppConfig
	ConfigPath string
	Transport  string // "stdio" or "sse"
	Port       int
	Logger     *logrus.Logger
	Metrics    *metrics.Metrics // optional
	Crawler    Crawler          // optional; built from AppConfig when nil
}

// Server wraps the MCP server with link-crawler tools
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	log        *logrus.Entry
	jobManager *JobManager
	crawler    Crawler
	owned      *crawler.WebCrawler // closed on Shutdown when the server built it
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer:  mcpServer,
		cfg:        cfg,
		log:        cfg.Logger.WithField("component", "mcp"),
		jobManager: NewJobManager(),
		crawler:    cfg.Crawler,
	}

	if s.crawler == nil {
		wc, err := crawler.NewFromConfig(cfg.AppConfig, cfg.Metrics, s.log)
		if err != nil {
			return nil, fmt.Errorf("failed to create crawler: %w", err)
		}
		s.crawler = wc
		s.owned = wc
	}

	s.registerTools()
	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	listTargetsTool := mcp.NewTool("list_targets",
		mcp.WithDescription("List all configured crawl targets"),
	)
	s.mcpServer.AddTool(listTargetsTool, s.handleListTargets)

	crawlURLTool := mcp.NewTool("crawl_url",
		mcp.WithDescription("Crawl a URL to the given depth and return every page downloaded or failed. Blocks until the crawl finishes."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute http(s) seed URL"),
		),
		mcp.WithNumber("depth",
			mcp.Description("Crawl depth; 1 downloads only the seed (defaults to default_depth)"),
		),
	)
	s.mcpServer.AddTool(crawlURLTool, s.handleCrawlURL)

	startCrawlTool := mcp.NewTool("start_crawl",
		mcp.WithDescription("Start a background crawl of a configured target or an ad-hoc URL. Returns immediately with a job ID."),
		mcp.WithString("target",
			mcp.Description("Target key from the config file"),
		),
		mcp.WithString("url",
			mcp.Description("Seed URL for an ad-hoc crawl (used when target is empty)"),
		),
		mcp.WithNumber("depth",
			mcp.Description("Crawl depth (defaults to the target's depth or default_depth)"),
		),
	)
	s.mcpServer.AddTool(startCrawlTool, s.handleStartCrawl)

	getJobStatusTool := mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the status of a crawl job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by start_crawl"),
		),
		mcp.WithBoolean("include_pages",
			mcp.Description("Include the per-page results once the job has finished"),
		),
	)
	s.mcpServer.AddTool(getJobStatusTool, s.handleGetJobStatus)

	cancelJobTool := mcp.NewTool("cancel_job",
		mcp.WithDescription("Cancel a pending or running crawl job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by start_crawl"),
		),
	)
	s.mcpServer.AddTool(cancelJobTool, s.handleCancelJob)

	statsTool := mcp.NewTool("crawler_stats",
		mcp.WithDescription("Report how much work the crawler has done since the server started"),
	)
	s.mcpServer.AddTool(statsTool, s.handleCrawlerStats)

	s.log.Infof("Registered %d MCP tools", 6)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels running jobs and closes the crawler if the server created it
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()
	if s.owned != nil {
		done := make(chan error, 1)
		go func() { done <- s.owned.Close() }()
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

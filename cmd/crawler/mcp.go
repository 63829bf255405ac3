package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"link-crawler/pkg/mcp"
	"link-crawler/pkg/metrics"
)

// NewMcpCmd creates the mcp-server command.
func NewMcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Start an MCP server for AI tool integration",
		Long: `Start an MCP (Model Context Protocol) server backed by one shared crawler.

Examples:
  # Start with stdio transport
  link-crawler mcp-server -c config.yaml

  # Start with SSE transport on port 8080
  link-crawler mcp-server -c config.yaml --transport sse --port 8080

Available MCP Tools:
  list_targets    List all configured targets
  crawl_url       Crawl a URL and wait for the result
  start_crawl     Start a background crawl of a target or URL
  get_job_status  Check the status of a background crawl
  cancel_job      Cancel a background crawl
  crawler_stats   Report downloads, extractions and memo hits`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			logLevel, _ := cmd.Flags().GetString("loglevel")
			transport, _ := cmd.Flags().GetString("transport")
			port, _ := cmd.Flags().GetInt("port")
			return exitWith(doMcpServer(configPath, transport, port, logLevel, cmd.OutOrStdout(), cmd.ErrOrStderr()))
		},
	}
	cmd.Flags().String("transport", "stdio", "Transport type (stdio, sse)")
	cmd.Flags().IntP("port", "p", 8080, "HTTP port (for sse transport)")
	return cmd
}

// doMcpServer is the testable implementation of the MCP server
func doMcpServer(configPath, transport string, port int, logLevel string, stdout, stderr io.Writer) int {
	if transport != "stdio" && transport != "sse" {
		fmt.Fprintf(stderr, "Error: unknown transport %q (supported: stdio, sse)\n", transport)
		return 1
	}

	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	warnings, err := appCfg.Validate()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return 1
	}

	// MCP protocol uses stdout, logs go to stderr
	logger, err := setupLogger(appCfg, logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	for _, w := range warnings {
		logger.Warn(w)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if appCfg.MetricsAddr != "" {
		shutdown := startMetricsServer(appCfg.MetricsAddr, reg, logger)
		defer shutdown()
	}

	server, err := mcp.NewServer(&mcp.ServerConfig{
		AppConfig:  appCfg,
		ConfigPath: configPath,
		Transport:  transport,
		Port:       port,
		Logger:     logger,
		Metrics:    m,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error creating MCP server: %v\n", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warnf("MCP server shutdown: %v", err)
		}
	}()

	logger.Infof("Starting MCP server (transport: %s)", transport)
	if err := server.Run(); err != nil {
		fmt.Fprintf(stderr, "MCP server error: %v\n", err)
		return 1
	}
	return 0
}

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"link-crawler/pkg/models"
	"link-crawler/pkg/orchestrate"
	"link-crawler/pkg/parse"
	"link-crawler/pkg/report"
	"link-crawler/pkg/utils"
)

// handleListTargets handles the list_targets tool
func (s *Server) handleListTargets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keys := orchestrate.GetAllTargetKeys(s.cfg.AppConfig)
	targets := make([]map[string]interface{}, 0, len(keys))

	for _, key := range keys {
		targetCfg := s.cfg.AppConfig.Targets[key]
		info := map[string]interface{}{
			"key":      key,
			"seed_url": targetCfg.SeedURL,
			"depth":    targetCfg.EffectiveDepth(s.cfg.AppConfig),
		}
		if job := s.jobManager.GetJobByTarget(key); job != nil && !job.Status.IsTerminal() {
			info["status"] = string(job.Status)
			info["job_id"] = job.ID
		}
		targets = append(targets, info)
	}

	result := map[string]interface{}{
		"targets":       targets,
		"config_path":   s.cfg.ConfigPath,
		"total_targets": len(targets),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleCrawlURL handles the crawl_url tool
func (s *Server) handleCrawlURL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urlStr := request.GetString("url", "")
	if urlStr == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}
	seed, _, err := parse.ParseAbsolute(urlStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid URL: %v", err)), nil
	}
	depth := request.GetInt("depth", s.cfg.AppConfig.DefaultDepth)
	if depth <= 0 {
		return mcp.NewToolResultError(fmt.Sprintf("depth must be positive, got %d", depth)), nil
	}

	if s.cfg.AppConfig.CrawlTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.AppConfig.CrawlTimeout)
		defer cancel()
	}

	startTime := time.Now()
	res, crawlErr := s.crawler.Crawl(ctx, seed, depth)
	rep := report.Build(report.Run{
		SeedURL:   seed,
		Depth:     depth,
		StartTime: startTime,
		EndTime:   time.Now(),
		Result:    res,
		Err:       crawlErr,
	})

	result := map[string]interface{}{
		"report":      rep,
		"duration_ms": rep.EndTime.Sub(rep.StartTime).Milliseconds(),
	}
	if crawlErr != nil {
		result["error_message"] = crawlErr.Error()
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleStartCrawl handles the start_crawl tool
func (s *Server) handleStartCrawl(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	targetKey := request.GetString("target", "")
	urlStr := request.GetString("url", "")

	var seed string
	var depth int
	switch {
	case targetKey != "":
		if err := orchestrate.ValidateTargetKeys(s.cfg.AppConfig, []string{targetKey}); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		targetCfg := s.cfg.AppConfig.Targets[targetKey]
		seed = targetCfg.SeedURL
		depth = request.GetInt("depth", targetCfg.EffectiveDepth(s.cfg.AppConfig))
	case urlStr != "":
		normalized, _, err := parse.ParseAbsolute(urlStr)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid URL: %v", err)), nil
		}
		seed = normalized
		targetKey = normalized
		depth = request.GetInt("depth", s.cfg.AppConfig.DefaultDepth)
	default:
		return mcp.NewToolResultError("either target or url parameter is required"), nil
	}
	if depth <= 0 {
		return mcp.NewToolResultError(fmt.Sprintf("depth must be positive, got %d", depth)), nil
	}

	if existing := s.jobManager.GetJobByTarget(targetKey); existing != nil && !existing.Status.IsTerminal() {
		result := map[string]interface{}{
			"status":  "already_running",
			"message": "A crawl is already in progress for this target",
			"job_id":  existing.ID,
			"target":  targetKey,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	job := s.jobManager.CreateJob(targetKey, seed, depth)
	go s.runCrawlJob(job.ID, seed, depth)

	result := map[string]interface{}{
		"status":   "started",
		"message":  "Crawl started successfully",
		"job_id":   job.ID,
		"target":   targetKey,
		"seed_url": seed,
		"depth":    depth,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job := s.jobManager.GetJob(jobID)
	if job == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]interface{}{
		"job_id":     job.ID,
		"target":     job.Target,
		"seed_url":   job.SeedURL,
		"depth":      job.Depth,
		"status":     job.Status,
		"started_at": job.StartedAt.Format(time.RFC3339),
		"downloaded": job.Downloaded,
		"failed":     job.Failed,
	}

	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}
	if request.GetBool("include_pages", false) && job.Status.IsTerminal() {
		rep := report.Build(report.Run{
			Target:    job.Target,
			SeedURL:   job.SeedURL,
			Depth:     job.Depth,
			StartTime: job.StartedAt,
			EndTime:   job.CompletedAt,
			Result:    s.jobManager.Result(jobID),
		})
		result["pages"] = rep.Pages
		result["errors_by_category"] = rep.ErrorsByClass
	}

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleCancelJob handles the cancel_job tool
func (s *Server) handleCancelJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}
	if s.jobManager.GetJob(jobID) == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]interface{}{
		"job_id":    jobID,
		"cancelled": s.jobManager.CancelJob(jobID),
		"status":    s.jobManager.GetJob(jobID).Status,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleCrawlerStats handles the crawler_stats tool
func (s *Server) handleCrawlerStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats := s.crawler.Stats()
	result := map[string]interface{}{
		"downloads":      stats.Downloads,
		"extractions":    stats.Extractions,
		"page_memo_hits": stats.PageMemoHits,
		"link_memo_hits": stats.LinkMemoHits,
		"nodes":          stats.Nodes,
		"hosts_seen":     stats.HostsSeen,
		"jobs":           len(s.jobManager.ListJobs()),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// runCrawlJob runs a crawl job in the background
func (s *Server) runCrawlJob(jobID, seed string, depth int) {
	s.jobManager.UpdateStatus(jobID, models.JobStatusRunning, "")
	log := s.log.WithField("job_id", jobID)

	jobCtx := s.jobManager.GetContext(jobID)
	if s.cfg.AppConfig.CrawlTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, s.cfg.AppConfig.CrawlTimeout)
		defer cancel()
	}

	res, err := s.crawler.Crawl(jobCtx, seed, depth)
	s.jobManager.SetResult(jobID, res)

	switch {
	case err == nil:
		s.jobManager.UpdateStatus(jobID, models.JobStatusCompleted, "")
	case errors.Is(err, utils.ErrCrawlerClosed):
		s.jobManager.UpdateStatus(jobID, models.JobStatusFailed, err.Error())
	case errors.Is(err, context.Canceled):
		s.jobManager.UpdateStatus(jobID, models.JobStatusCancelled, "")
	default:
		log.Warnf("Crawl job failed: %v", err)
		s.jobManager.UpdateStatus(jobID, models.JobStatusFailed, err.Error())
	}
}

// formatJSON formats data as indented JSON
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}

// Package main provides the link-crawler CLI.
//
// link-crawler downloads every page reachable from a seed URL within a hop limit, with
// bounded download, extraction and per-host concurrency, and reports which URLs were
// downloaded and which failed.
//
// Usage:
//
//	link-crawler crawl --url https://example.com/ --depth 3
//	link-crawler crawl --config config.yaml --target docs --target blog
//	link-crawler mcp-server --config config.yaml
//
// See --help for all available options.
package main

func main() {
	Execute()
}

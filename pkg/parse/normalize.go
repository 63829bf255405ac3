package parse

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"link-crawler/pkg/utils"
)

// HostOf returns the lowercased host name (without port) of an absolute URL.
// It is the host function the crawler uses to pick a per-host permit pool.
func HostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", utils.ErrMalformedURL, rawURL, err)
	}
	host := strings.ToLower(u.Hostname())
	if u.Scheme == "" || host == "" {
		return "", fmt.Errorf("%w: %q has no scheme or host", utils.ErrMalformedURL, rawURL)
	}
	return host, nil
}

// Canonicalize standardizes a URL for use as a crawl key.
// It lowercases the scheme and host, removes default ports (80 for http, 443 for https),
// turns an empty path into "/" and drops the fragment. The query string is kept,
// since it usually selects a different page.
// Does not modify the input *url.URL
func Canonicalize(u *url.URL) string {
	if u == nil {
		return ""
	}
	c := *u

	c.Scheme = strings.ToLower(c.Scheme)
	c.Host = strings.ToLower(c.Host)

	if host, port, err := net.SplitHostPort(c.Host); err == nil {
		if (c.Scheme == "http" && port == "80") || (c.Scheme == "https" && port == "443") {
			c.Host = host
		}
	}

	if c.Path == "" && c.Opaque == "" {
		c.Path = "/"
	}
	c.Fragment = ""
	c.RawFragment = ""

	return c.String()
}

// ParseAbsolute parses a seed URL and requires an http(s) scheme and a host.
// Returns the canonical string alongside the parsed URL
func ParseAbsolute(rawURL string) (string, *url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", utils.ErrMalformedURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", nil, fmt.Errorf("%w: unsupported scheme %q", utils.ErrMalformedURL, parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", nil, fmt.Errorf("%w: %q has no host", utils.ErrMalformedURL, rawURL)
	}
	return Canonicalize(parsed), parsed, nil
}

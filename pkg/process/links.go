package process

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"link-crawler/pkg/parse"
	"link-crawler/pkg/utils"
)

// LinkOptions controls which anchors on a page count as outbound links
type LinkOptions struct {
	Selectors       []string // Containers to search; empty means the whole document
	RespectNofollow bool
	SameHostOnly    bool
	ExcludePatterns []string // Regexes matched against the link path
}

// LinkExtractor finds crawlable links in a parsed HTML document
type LinkExtractor struct {
	selectors       []string
	respectNofollow bool
	sameHostOnly    bool
	exclude         []*regexp.Regexp
}

// NewLinkExtractor compiles opts into a reusable extractor. It is safe for concurrent use.
func NewLinkExtractor(opts LinkOptions) (*LinkExtractor, error) {
	exclude, err := utils.CompileExcludePatterns(opts.ExcludePatterns)
	if err != nil {
		return nil, err
	}
	selectors := opts.Selectors
	if len(selectors) == 0 {
		selectors = []string{"html"}
	}
	return &LinkExtractor{
		selectors:       selectors,
		respectNofollow: opts.RespectNofollow,
		sameHostOnly:    opts.SameHostOnly,
		exclude:         exclude,
	}, nil
}

// Extract returns the unique absolute http(s) links of doc, in document order.
// Relative hrefs are resolved against the page's <base href> if present, else pageURL.
func (e *LinkExtractor) Extract(doc *goquery.Document, pageURL *url.URL) []string {
	base := pageURL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := pageURL.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	seen := make(map[string]struct{})
	links := make([]string, 0)

	for _, selector := range e.selectors {
		doc.Find(selector).Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			href = strings.TrimSpace(href)
			if href == "" || strings.HasPrefix(href, "#") {
				return
			}

			if e.respectNofollow {
				if rel, _ := a.Attr("rel"); strings.Contains(strings.ToLower(rel), "nofollow") {
					return
				}
			}

			linkURL, err := base.Parse(href)
			if err != nil {
				return
			}
			if linkURL.Scheme != "http" && linkURL.Scheme != "https" {
				return // mailto:, javascript:, tel: ...
			}
			if e.sameHostOnly && !strings.EqualFold(linkURL.Hostname(), pageURL.Hostname()) {
				return
			}
			if utils.MatchesAny(e.exclude, linkURL.Path) {
				return
			}

			link := parse.Canonicalize(linkURL)
			if _, dup := seen[link]; dup {
				return
			}
			seen[link] = struct{}{}
			links = append(links, link)
		})
	}

	return links
}

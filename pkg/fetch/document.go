package fetch

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"link-crawler/pkg/process"
	"link-crawler/pkg/utils"
)

// HTMLDocument is a downloaded page body. Parsing is deferred to ExtractLinks so it runs
// under the crawler's extraction limit rather than the download limit.
type HTMLDocument struct {
	url         *url.URL // final URL after redirects, used as the link base
	contentType string
	body        []byte
	links       *process.LinkExtractor
}

// NewHTMLDocument wraps a fetched body. An empty contentType is sniffed from the body.
func NewHTMLDocument(finalURL *url.URL, contentType string, body []byte, links *process.LinkExtractor) *HTMLDocument {
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	return &HTMLDocument{url: finalURL, contentType: contentType, body: body, links: links}
}

// URL returns the final URL the body was served from.
func (d *HTMLDocument) URL() *url.URL { return d.url }

// ExtractLinks parses the body and returns its outbound links.
// Non-HTML bodies have no links.
func (d *HTMLDocument) ExtractLinks() ([]string, error) {
	if !isHTML(d.contentType) {
		return []string{}, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(d.body))
	if err != nil {
		return nil, fmt.Errorf("%w: HTML from %s: %w", utils.ErrParsing, d.url, err)
	}
	return d.links.Extract(doc, d.url), nil
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

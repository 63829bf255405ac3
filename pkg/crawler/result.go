package crawler

import "link-crawler/pkg/models"

// resultBuilder accumulates one subtree's outcome.
// A URL is classified once: the first classification wins and later ones are ignored.
type resultBuilder struct {
	downloaded []string
	errors     map[string]error
	seen       map[string]struct{}
}

func newResultBuilder() *resultBuilder {
	return &resultBuilder{
		downloaded: []string{},
		errors:     map[string]error{},
		seen:       map[string]struct{}{},
	}
}

func (b *resultBuilder) addDownloaded(url string) {
	if _, ok := b.seen[url]; ok {
		return
	}
	b.seen[url] = struct{}{}
	b.downloaded = append(b.downloaded, url)
}

func (b *resultBuilder) addError(url string, err error) {
	if _, ok := b.seen[url]; ok {
		return
	}
	b.seen[url] = struct{}{}
	b.errors[url] = err
}

// merge folds r into the builder in r's order.
func (b *resultBuilder) merge(r *models.Result) {
	if r == nil {
		return
	}
	for _, u := range r.Downloaded {
		b.addDownloaded(u)
	}
	for u, err := range r.Errors {
		b.addError(u, err)
	}
}

func (b *resultBuilder) build() *models.Result {
	return &models.Result{Downloaded: b.downloaded, Errors: b.errors}
}

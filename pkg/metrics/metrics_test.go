package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"link-crawler/pkg/utils"
)

func TestDownloadStarted(t *testing.T) {
	m := New(prometheus.NewRegistry())

	done := m.DownloadStarted()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DownloadsInFlight))
	done(nil)

	m.DownloadStarted()(fmt.Errorf("%w: status 404 Not Found", utils.ErrClientHTTPError))

	assert.Equal(t, float64(0), testutil.ToFloat64(m.DownloadsInFlight))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DownloadsTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DownloadsTotal.WithLabelValues("HTTP_404")))
}

func TestExtractionStarted(t *testing.T) {
	m := New(prometheus.NewRegistry())

	done := m.ExtractionStarted()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ExtractionsInFlight))
	done(errors.New("bad html"))

	assert.Equal(t, float64(0), testutil.ToFloat64(m.ExtractionsInFlight))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ExtractionsTotal.WithLabelValues("error")))
}

func TestCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.NodeVisited()
	m.NodeVisited()
	m.MemoHit("pages")
	m.PermitWaited("host", time.Now().Add(-time.Millisecond))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.CrawlNodesTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MemoHitsTotal.WithLabelValues("pages")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PermitWaitSeconds))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.DownloadStarted()(nil)
		m.ExtractionStarted()(errors.New("x"))
		m.NodeVisited()
		m.MemoHit("links")
		m.PermitWaited("download", time.Now())
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.NodeVisited()

	srv := httptest.NewServer(Handler(reg))
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "linkcrawler_crawl_nodes_total 1")
}

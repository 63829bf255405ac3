package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"link-crawler/pkg/models"
	"link-crawler/pkg/utils"
)

// Run describes one finished crawl invocation.
type Run struct {
	Target    string // optional target key from the config file
	SeedURL   string
	Depth     int
	StartTime time.Time
	EndTime   time.Time
	Result    *models.Result
	Err       error // interruption error returned by the crawl, if any
}

// Build turns a crawl run into a report. Pages are sorted by URL.
func Build(run Run) *models.CrawlReport {
	rep := &models.CrawlReport{
		RunID:         uuid.NewString(),
		Target:        run.Target,
		SeedURL:       run.SeedURL,
		Depth:         run.Depth,
		StartTime:     run.StartTime,
		EndTime:       run.EndTime,
		Interrupted:   run.Err != nil,
		ErrorsByClass: map[string]int{},
		Pages:         []models.PageReport{},
	}

	res := run.Result
	if res == nil {
		res = models.EmptyResult()
	}

	for _, u := range res.Downloaded {
		rep.Pages = append(rep.Pages, models.PageReport{URL: u, Status: models.PageStatusDownloaded})
	}
	for u, err := range res.Errors {
		category := utils.CategorizeError(err)
		rep.ErrorsByClass[category]++
		rep.Pages = append(rep.Pages, models.PageReport{
			URL:           u,
			Status:        models.PageStatusFailed,
			ErrorCategory: category,
			ErrorMessage:  err.Error(),
		})
	}
	sort.Slice(rep.Pages, func(i, j int) bool { return rep.Pages[i].URL < rep.Pages[j].URL })

	rep.TotalOK = len(res.Downloaded)
	rep.TotalFailed = len(res.Errors)
	return rep
}

// Writer persists crawl reports under a base directory.
type Writer struct {
	outputDir string
	filename  string
	log       *logrus.Entry
}

// NewWriter creates a Writer that stores reports as <outputDir>/<filename>, or
// <outputDir>/<target>/<filename> for named targets.
func NewWriter(outputDir, filename string, log *logrus.Entry) *Writer {
	return &Writer{outputDir: outputDir, filename: filename, log: log.WithField("component", "report")}
}

// Path returns where the report for target is written.
func (w *Writer) Path(target string) string {
	if target == "" {
		return filepath.Join(w.outputDir, w.filename)
	}
	return filepath.Join(w.outputDir, utils.SafeFileComponent(target), w.filename)
}

// Write marshals rep to YAML and writes it to Path(rep.Target).
func (w *Writer) Write(rep *models.CrawlReport) (string, error) {
	if rep == nil {
		return "", errors.New("nil report")
	}
	path := w.Path(rep.Target)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("%w: creating report directory '%s': %w", utils.ErrFilesystem, filepath.Dir(path), err)
	}

	data, err := yaml.Marshal(rep)
	if err != nil {
		return "", fmt.Errorf("failed to marshal crawl report to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		w.log.Errorf("Failed to write report file '%s': %v", path, err)
		return "", fmt.Errorf("%w: writing report file '%s': %w", utils.ErrFilesystem, path, err)
	}

	w.log.WithFields(logrus.Fields{
		"downloaded": rep.TotalOK,
		"failed":     rep.TotalFailed,
	}).Infof("Wrote crawl report to %s", path)
	return path, nil
}

// WriteJSON writes rep to out as indented JSON.
func WriteJSON(out io.Writer, rep *models.CrawlReport) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// Load reads a YAML report written by Write.
func Load(path string) (*models.CrawlReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading report '%s': %w", utils.ErrFilesystem, path, err)
	}
	var rep models.CrawlReport
	if err := yaml.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("%w: report '%s': %w", utils.ErrParsing, path, err)
	}
	return &rep, nil
}

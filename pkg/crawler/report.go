package crawler

import (
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sriram-PR/catalog-scraper/pkg/models"
)

// Run modes
const (
	ModeCategory = "category"
	ModeRange    = "range"
)

// RunReport summarizes one run. Counters are per book link unless noted.
type RunReport struct {
	RunID      string
	Mode       string
	StartTime  time.Time
	EndTime    time.Time
	OutputPath string

	Records           int // Records written
	LinksFound        int // Detail links collected (category mode) or ids visited (range mode)
	PagesSkipped      int // Category pages skipped as unavailable or unreachable
	Duplicates        int
	BooksAbsent       int // Detail pages without a text download link
	BooksUnavailable  int
	BooksTransient    int // Skipped after the retry policy gave up
	BooksDisallowed   int
	ParseFailures     int
	AssetsUnavailable int // Per asset
	AssetsTransient   int // Per asset
	StoppedAtLimit    bool
	FailureReason     string
}

// Counters returns the numeric counters keyed by a stable name, for logs and metadata.
func (r *RunReport) Counters() map[string]int {
	return map[string]int{
		"records":            r.Records,
		"links_found":        r.LinksFound,
		"pages_skipped":      r.PagesSkipped,
		"duplicates":         r.Duplicates,
		"books_absent":       r.BooksAbsent,
		"books_unavailable":  r.BooksUnavailable,
		"books_transient":    r.BooksTransient,
		"books_disallowed":   r.BooksDisallowed,
		"parse_failures":     r.ParseFailures,
		"assets_unavailable": r.AssetsUnavailable,
		"assets_transient":   r.AssetsTransient,
	}
}

// Duration is the wall time of the run, zero while it is still running.
func (r *RunReport) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// Render writes the report as a table to w.
func (r *RunReport) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Catalog run %s (%s)", r.RunID, r.Mode)
	t.AppendHeader(table.Row{"Counter", "Value"})

	counters := r.Counters()
	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t.AppendRow(table.Row{name, counters[name]})
	}

	t.AppendSeparator()
	t.AppendRow(table.Row{"stopped_at_limit", r.StoppedAtLimit})
	t.AppendRow(table.Row{"duration", r.Duration().Round(time.Millisecond)})
	t.AppendRow(table.Row{"output", r.OutputPath})
	if r.FailureReason != "" {
		t.AppendRow(table.Row{"failure", r.FailureReason})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// metadata builds the metadata.yaml document for this report.
func (r *RunReport) metadata(categoryURL string, records []models.BookRecord) *models.RunMetadata {
	books := make([]models.BookMetadata, 0, len(records))
	for _, rec := range records {
		books = append(books, models.BookMetadata{
			ID:        rec.ID,
			Title:     rec.Title,
			Author:    rec.Author,
			TextPath:  rec.TextLocalPath,
			CoverPath: rec.CoverLocalPath,
		})
	}
	return &models.RunMetadata{
		RunID:         r.RunID,
		Mode:          r.Mode,
		CategoryURL:   categoryURL,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		OutputPath:    r.OutputPath,
		RecordCount:   r.Records,
		Counters:      r.Counters(),
		FailureReason: r.FailureReason,
		Books:         books,
	}
}

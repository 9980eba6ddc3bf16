package scraper

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// SourceSummary counts what happened to one source during a run.
type SourceSummary struct {
	Name               string
	Discovered         int
	Saved              int
	Duplicates         int
	OutOfRange         int
	Undated            int
	FetchFailures      int
	ExtractionFailures int
	ListingError       string
}

// Summary is the outcome of one run.
type Summary struct {
	Sources    []SourceSummary
	Flushes    int
	Written    int
	Aborted    bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// Totals sums the per-source counts.
func (s *Summary) Totals() SourceSummary {
	total := SourceSummary{Name: "TOTAL"}
	for _, src := range s.Sources {
		total.Discovered += src.Discovered
		total.Saved += src.Saved
		total.Duplicates += src.Duplicates
		total.OutOfRange += src.OutOfRange
		total.Undated += src.Undated
		total.FetchFailures += src.FetchFailures
		total.ExtractionFailures += src.ExtractionFailures
	}
	return total
}

// Failed reports whether nothing was saved and at least one source failed.
func (s *Summary) Failed() bool {
	total := s.Totals()
	if total.Saved > 0 {
		return false
	}
	for _, src := range s.Sources {
		if src.ListingError != "" || src.FetchFailures > 0 || src.ExtractionFailures > 0 {
			return true
		}
	}
	return false
}

// Render writes the summary as a table.
func (s *Summary) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Source", "Discovered", "Saved", "Duplicates", "Out of range", "Undated", "Fetch failed", "Extract failed", "Listing error"})

	for _, src := range s.Sources {
		t.AppendRow(table.Row{
			src.Name, src.Discovered, src.Saved, src.Duplicates, src.OutOfRange,
			src.Undated, src.FetchFailures, src.ExtractionFailures, src.ListingError,
		})
	}

	total := s.Totals()
	t.AppendFooter(table.Row{
		total.Name, total.Discovered, total.Saved, total.Duplicates, total.OutOfRange,
		total.Undated, total.FetchFailures, total.ExtractionFailures, "",
	})
	t.SetCaption("%d rows written in %d flushes, %s", s.Written, s.Flushes, s.FinishedAt.Sub(s.StartedAt).Round(time.Second))

	t.Render()
}

package scraper

import (
	"slices"
	"time"

	"github.com/Vaibhav-Sahai/periodic-scraper/articles"
)

// RunState is the mutable state of one run: the date boundary, per-source
// counts, the URLs already seen and the articles not yet flushed. It is owned
// by the orchestrator and discarded when the run ends.
type RunState struct {
	StartDate time.Time

	perSource map[string]int
	seen      map[string]struct{}
	buffer    []articles.Article
}

// NewRunState creates an empty run state.
func NewRunState(startDate time.Time) *RunState {
	return &RunState{
		StartDate: startDate,
		perSource: make(map[string]int),
		seen:      make(map[string]struct{}),
	}
}

// MarkSeen records url and reports whether it was new.
func (s *RunState) MarkSeen(url string) bool {
	if _, ok := s.seen[url]; ok {
		return false
	}
	s.seen[url] = struct{}{}
	return true
}

// Accumulate buffers an article and counts it for its source.
func (s *RunState) Accumulate(a articles.Article) {
	s.buffer = append(s.buffer, a)
	s.perSource[a.SourceName]++
}

// Count returns how many articles a source has accumulated this run.
func (s *RunState) Count(source string) int {
	return s.perSource[source]
}

// Pending returns the number of articles accumulated since the last flush.
func (s *RunState) Pending() int {
	return len(s.buffer)
}

// Buffer returns a copy of the unflushed articles in accumulation order.
func (s *RunState) Buffer() []articles.Article {
	return slices.Clone(s.buffer)
}

// Flushed drops the first n buffered articles after they were persisted.
func (s *RunState) Flushed(n int) {
	s.buffer = slices.Delete(s.buffer, 0, min(n, len(s.buffer)))
}

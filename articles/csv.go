package articles

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
)

// ErrIncompatibleHeader means an existing output file was written with a
// different column layout, so appending to it would misalign rows.
var ErrIncompatibleHeader = errors.New("existing output has an incompatible header")

// CSVStore appends articles to a CSV file. Rows are never rewritten; a header
// is written when the file is new or empty.
type CSVStore struct {
	path string
	urls []string
	seen map[string]struct{}
}

// NewCSVStore opens the CSV file at path, loading the URLs of any rows it
// already contains.
func NewCSVStore(path string) (*CSVStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	urls, err := readURLs(path)
	if err != nil {
		return nil, err
	}

	s := &CSVStore{path: path, seen: make(map[string]struct{}, len(urls))}
	for _, u := range urls {
		s.remember(u)
	}
	return s, nil
}

// readURLs returns the url column of an existing CSV file, or nothing if the
// file does not exist yet.
func readURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read output header: %w", err)
	}

	if !slices.Equal(header, Columns) {
		return nil, fmt.Errorf("%s: %w: got %v, want %v", path, ErrIncompatibleHeader, header, Columns)
	}
	col := slices.Index(Columns, "url")

	var urls []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read output rows: %w", err)
		}
		if col < len(rec) && rec[col] != "" {
			urls = append(urls, rec[col])
		}
	}
	return urls, nil
}

func (s *CSVStore) remember(u string) bool {
	if _, ok := s.seen[u]; ok {
		return false
	}
	s.seen[u] = struct{}{}
	s.urls = append(s.urls, u)
	return true
}

// Append writes the batch to the end of the file, skipping URLs already
// written.
func (s *CSVStore) Append(_ context.Context, batch []Article) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to open output file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat output file: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Columns); err != nil {
			return 0, fmt.Errorf("failed to write header: %w", err)
		}
	}

	var pending []string
	for _, a := range batch {
		if _, ok := s.seen[a.URL]; ok || slices.Contains(pending, a.URL) {
			continue
		}
		if err := w.Write(a.Record()); err != nil {
			return 0, fmt.Errorf("failed to write article %s: %w", a.URL, err)
		}
		pending = append(pending, a.URL)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush output: %w", err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("failed to sync output: %w", err)
	}

	for _, u := range pending {
		s.remember(u)
	}
	return len(pending), nil
}

// URLs lists stored URLs in file order.
func (s *CSVStore) URLs(context.Context) ([]string, error) {
	return slices.Clone(s.urls), nil
}

// Close is a no-op; the file is opened per append.
func (s *CSVStore) Close() error {
	return nil
}

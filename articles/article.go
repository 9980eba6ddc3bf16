// Package articles holds the extracted article record and the stores it is
// persisted to.
package articles

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Article is one extracted news article. It is immutable once created.
type Article struct {
	ID          uuid.UUID
	SourceName  string
	URL         string // unique within a run
	Title       string
	Author      string // empty when unknown
	PublishedAt *time.Time
	Body        string
	FetchedAt   time.Time
}

// NewID derives the article ID from its URL (UUIDv5 in the URL namespace), so
// the same article always gets the same ID across runs.
func NewID(articleURL string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(articleURL))
}

// Columns is the column order of the tabular output. The derived id comes
// last so the leading columns match the article fields.
var Columns = []string{"source", "url", "title", "author", "published_at", "body", "fetched_at", "id"}

// Record returns the article as a row in Columns order. Timestamps are
// ISO-8601; an unknown publication date is an empty cell.
func (a Article) Record() []string {
	published := ""
	if a.PublishedAt != nil {
		published = a.PublishedAt.UTC().Format(time.RFC3339)
	}

	return []string{
		a.SourceName,
		a.URL,
		a.Title,
		a.Author,
		published,
		a.Body,
		a.FetchedAt.UTC().Format(time.RFC3339),
		a.ID.String(),
	}
}

// Store persists articles incrementally. Append only ever adds rows and must
// skip URLs it already holds.
type Store interface {
	// Append writes the batch and returns how many rows were added.
	Append(ctx context.Context, batch []Article) (int, error)
	// URLs lists every article URL already stored.
	URLs(ctx context.Context) ([]string, error)
	Close() error
}

// Open opens the store for the given format ("csv" or "sqlite").
func Open(path, format string) (Store, error) {
	switch format {
	case "csv":
		return NewCSVStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

package scraper

import (
	"testing"
	"time"

	"github.com/Vaibhav-Sahai/periodic-scraper/articles"
	"github.com/stretchr/testify/assert"
)

// TestRunState_Seen verifies URL bookkeeping
func TestRunState_Seen(t *testing.T) {
	state := NewRunState(time.Time{})

	assert.True(t, state.MarkSeen("https://example.com/a"))
	assert.False(t, state.MarkSeen("https://example.com/a"))
	assert.True(t, state.MarkSeen("https://example.com/b"))
}

// TestRunState_Buffer verifies accumulation and partial flushes
func TestRunState_Buffer(t *testing.T) {
	state := NewRunState(time.Time{})

	for _, u := range []string{"a", "b", "c"} {
		state.Accumulate(articles.Article{SourceName: "cnn_world", URL: u})
	}
	state.Accumulate(articles.Article{SourceName: "nyt_world", URL: "d"})

	assert.Equal(t, 4, state.Pending())
	assert.Equal(t, 3, state.Count("cnn_world"))
	assert.Equal(t, 1, state.Count("nyt_world"))

	buf := state.Buffer()
	buf[0].URL = "changed"
	assert.Equal(t, "a", state.Buffer()[0].URL, "buffer is returned as a copy")

	state.Flushed(3)
	assert.Equal(t, 1, state.Pending())
	assert.Equal(t, "d", state.Buffer()[0].URL)
	assert.Equal(t, 3, state.Count("cnn_world"), "counts survive flushes")

	state.Flushed(10)
	assert.Equal(t, 0, state.Pending())
}

package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shikha-SShikha/peerlens/internal/review"
)

func writeStream(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reviews.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadReviews(t *testing.T) {
	t.Run("reads both text field spellings", func(t *testing.T) {
		path := writeStream(t, `[
  {"manuscript_id": "ms-001", "review_id": "rev-a", "reviewer_id": "alice",
   "text": "The power analysis is missing.", "recommendation": "major_revisions"},
  {"manuscript_id": "ms-001", "review_id": "rev-b", "reviewer_id": "bob",
   "review_text": "Figure 2 is unclear.", "word_count": 4}
]`)
		reviews, err := LoadReviews(path)
		require.NoError(t, err)
		require.Len(t, reviews, 2)
		assert.Equal(t, "The power analysis is missing.", reviews[0].Text)
		assert.Equal(t, "major_revisions", reviews[0].Recommendation)
		assert.Equal(t, "Figure 2 is unclear.", reviews[1].Text)
		assert.Equal(t, 4, reviews[1].WordCount)
	})

	t.Run("text wins over review_text", func(t *testing.T) {
		path := writeStream(t, `[
  {"manuscript_id": "ms-001", "review_id": "rev-a", "reviewer_id": "alice",
   "text": "Newer export.", "review_text": "Older dump."}
]`)
		reviews, err := LoadReviews(path)
		require.NoError(t, err)
		assert.Equal(t, "Newer export.", reviews[0].Text)
	})

	t.Run("missing file is an upstream failure", func(t *testing.T) {
		_, err := LoadReviews(filepath.Join(t.TempDir(), "nope.json"))
		require.ErrorIs(t, err, review.ErrUpstreamUnavailable)
	})

	t.Run("malformed JSON is an upstream failure", func(t *testing.T) {
		path := writeStream(t, `{"not": "an array"`)
		_, err := LoadReviews(path)
		require.ErrorIs(t, err, review.ErrUpstreamUnavailable)
	})

	t.Run("invalid record names its index", func(t *testing.T) {
		path := writeStream(t, `[
  {"manuscript_id": "ms-001", "review_id": "rev-a", "reviewer_id": "alice", "text": "Fine."},
  {"manuscript_id": "ms-001", "review_id": "rev-b", "text": "No reviewer."}
]`)
		_, err := LoadReviews(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "review record 1")
	})
}

func TestLoadManuscripts(t *testing.T) {
	t.Run("indexes by manuscript id", func(t *testing.T) {
		path := writeStream(t, `[
  {"manuscript_id": "ms-001", "title": "On Retries", "doi": "10.1000/x"},
  {"manuscript_id": "ms-002", "title": "On Backoff"}
]`)
		byID, err := LoadManuscripts(path)
		require.NoError(t, err)
		require.Len(t, byID, 2)
		assert.Equal(t, "On Retries", byID["ms-001"].Title)
		assert.Equal(t, "10.1000/x", byID["ms-001"].DOI)
	})

	t.Run("record without id rejected", func(t *testing.T) {
		path := writeStream(t, `[{"title": "Anonymous"}]`)
		_, err := LoadManuscripts(path)
		require.Error(t, err)
	})

	t.Run("missing file is an upstream failure", func(t *testing.T) {
		_, err := LoadManuscripts(filepath.Join(t.TempDir(), "nope.json"))
		require.ErrorIs(t, err, review.ErrUpstreamUnavailable)
	})
}

func TestGroupByManuscript(t *testing.T) {
	reviews := []*review.Review{
		{ManuscriptID: "ms-002", ReviewID: "rev-z", ReviewerID: "zoe", Text: "t"},
		{ManuscriptID: "ms-001", ReviewID: "rev-b", ReviewerID: "bob", Text: "t"},
		{ManuscriptID: "ms-001", ReviewID: "rev-a", ReviewerID: "alice", Text: "t"},
	}

	grouped, ids := GroupByManuscript(reviews)
	assert.Equal(t, []string{"ms-001", "ms-002"}, ids)
	require.Len(t, grouped["ms-001"], 2)
	// Reviews sort by ID within a manuscript regardless of stream order.
	assert.Equal(t, "rev-a", grouped["ms-001"][0].ReviewID)
	assert.Equal(t, "rev-b", grouped["ms-001"][1].ReviewID)
	require.Len(t, grouped["ms-002"], 1)
}

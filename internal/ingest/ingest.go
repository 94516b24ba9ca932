// Package ingest reads the review stream produced by the ingestion
// collaborator. Records arrive as a JSON array, ordered or not; the pipeline
// never mutates them.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/Shikha-SShikha/peerlens/internal/review"
)

// reviewRecord tolerates the ingestion collaborator's field naming: newer
// exports use "text", older manuscript dumps use "review_text".
type reviewRecord struct {
	ManuscriptID   string `json:"manuscript_id"`
	ReviewID       string `json:"review_id"`
	ReviewerID     string `json:"reviewer_id"`
	Text           string `json:"text"`
	ReviewText     string `json:"review_text"`
	Recommendation string `json:"recommendation"`
	WordCount      int    `json:"word_count"`
}

// LoadReviews reads a review stream file. A missing or unreadable file is an
// upstream failure: fatal for the manuscripts it would have carried.
func LoadReviews(path string) ([]*review.Review, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", review.ErrUpstreamUnavailable, path, err)
	}

	var records []reviewRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", review.ErrUpstreamUnavailable, path, err)
	}

	reviews := make([]*review.Review, 0, len(records))
	for i, rec := range records {
		text := rec.Text
		if text == "" {
			text = rec.ReviewText
		}
		rev := &review.Review{
			ManuscriptID:   rec.ManuscriptID,
			ReviewID:       rec.ReviewID,
			ReviewerID:     rec.ReviewerID,
			Text:           text,
			Recommendation: rec.Recommendation,
			WordCount:      rec.WordCount,
		}
		if err := rev.Validate(); err != nil {
			return nil, fmt.Errorf("review record %d: %w", i, err)
		}
		reviews = append(reviews, rev)
	}
	return reviews, nil
}

// LoadManuscripts reads the optional manuscript context file.
func LoadManuscripts(path string) (map[string]*review.Manuscript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", review.ErrUpstreamUnavailable, path, err)
	}

	var manuscripts []*review.Manuscript
	if err := json.Unmarshal(data, &manuscripts); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", review.ErrUpstreamUnavailable, path, err)
	}

	byID := make(map[string]*review.Manuscript, len(manuscripts))
	for _, m := range manuscripts {
		if m.ManuscriptID == "" {
			return nil, fmt.Errorf("manuscript context record without manuscript_id")
		}
		byID[m.ManuscriptID] = m
	}
	return byID, nil
}

// GroupByManuscript partitions reviews per manuscript and returns the sorted
// manuscript IDs. Sorted IDs give the pipeline a stable processing order.
func GroupByManuscript(reviews []*review.Review) (map[string][]*review.Review, []string) {
	grouped := make(map[string][]*review.Review)
	for _, rev := range reviews {
		grouped[rev.ManuscriptID] = append(grouped[rev.ManuscriptID], rev)
	}

	ids := make([]string, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Stable review order within each manuscript, independent of stream order.
	for _, id := range ids {
		revs := grouped[id]
		sort.Slice(revs, func(i, j int) bool { return revs[i].ReviewID < revs[j].ReviewID })
	}
	return grouped, ids
}

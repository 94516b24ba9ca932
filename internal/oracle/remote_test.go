package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shikha-SShikha/peerlens/internal/review"
)

func newTestRemote(t *testing.T, handler http.HandlerFunc) *Remote {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	r, err := NewRemote(Options{Endpoint: server.URL, Model: "lens-1", APIKey: "test-key"})
	require.NoError(t, err)
	return r
}

func TestRemoteExtractClaims(t *testing.T) {
	rev := &review.Review{
		ManuscriptID: "ms-001",
		ReviewID:     "rev-001",
		ReviewerID:   "reviewer-a",
		Text:         "The power analysis is missing.",
	}

	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/v1/extract", req.URL.Path)
		assert.Equal(t, "Bearer test-key", req.Header.Get("Authorization"))
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

		var body extractRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "lens-1", body.Model)
		assert.Equal(t, "rev-001", body.Review.ReviewID)

		json.NewEncoder(w).Encode(extractResponse{Claims: []ClaimDraft{{
			Category:    "statistics",
			Severity:    review.SeverityMajor,
			Description: "missing power analysis",
			Excerpt:     "The power analysis is missing.",
		}}})
	})

	claims, err := r.ExtractClaims(context.Background(), rev)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, "statistics", claims[0].Category)
}

func TestRemoteScoreSimilarity(t *testing.T) {
	t.Run("valid score", func(t *testing.T) {
		r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, "/v1/similarity", req.URL.Path)
			json.NewEncoder(w).Encode(similarityResponse{Score: 0.82})
		})

		score, err := r.ScoreSimilarity(context.Background(), "a", "b")
		require.NoError(t, err)
		assert.Equal(t, 0.82, score)
	})

	t.Run("out of range score rejected", func(t *testing.T) {
		r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
			json.NewEncoder(w).Encode(similarityResponse{Score: 1.5})
		})

		_, err := r.ScoreSimilarity(context.Background(), "a", "b")
		require.Error(t, err)
	})
}

func TestRemoteRateLimitRetry(t *testing.T) {
	var calls atomic.Int32
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(similarityResponse{Score: 0.5})
	})

	score, err := r.ScoreSimilarity(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 0.5, score)
	assert.Equal(t, int32(2), calls.Load(), "rate-limited call should be retried once")
}

func TestRemoteAuthErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("bad key"))
	})

	_, err := r.ScoreSimilarity(context.Background(), "a", "b")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "auth failures must not be retried")
	assert.True(t, IsAuthError(err))
	assert.True(t, IsAuthError(fmt.Errorf("oracle extraction for review rev-a: %w", err)),
		"detection must see through stage wrapping")
}

func TestIsAuthError(t *testing.T) {
	assert.False(t, IsAuthError(nil))
	assert.False(t, IsAuthError(&rateLimitError{}))
	assert.False(t, IsAuthError(errors.New("boom")))
	assert.True(t, IsAuthError(&authError{message: "bad key"}))
}

func TestRemoteServerError(t *testing.T) {
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	})

	_, err := r.DraftSynthesis(context.Background(), SynthesisRequest{ManuscriptID: "ms-001"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

package briefboard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shikha-SShikha/peerlens/internal/review"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func sampleBrief(manuscriptID string) *review.Brief {
	return &review.Brief{
		ManuscriptID:    manuscriptID,
		ManuscriptTitle: "On the Reproducibility of Benchmarks",
		Consensus: review.ConsensusSnapshot{
			RecommendationDistribution: map[string]int{"major_revisions": 2, "accept": 1},
			ConfidenceTier:             review.TierStrongMajority,
		},
		MajorIssues: []review.RankedIssue{
			{
				CanonicalID:   "can-1",
				Category:      "statistics",
				Severity:      review.SeverityMajor,
				Description:   "The power analysis is missing.",
				ReviewerCount: 2,
			},
		},
		Disagreements: []review.Disagreement{
			{
				Kind:        review.DisagreementSeverityConflict,
				CanonicalID: "can-1",
				Summary:     "reviewers disagree on severity",
				ReviewerIDs: []string{"alice", "bob"},
			},
		},
		ActionChecklist: []review.ActionItem{
			{Text: "Address statistics concern: add a power analysis.", CanonicalIDs: []string{"can-1"}},
		},
		OpenQuestions: []string{"Is the sample representative?"},
		TraceabilityIndex: map[string][]review.EvidenceRef{
			"can-1": {
				{ReviewerID: "alice", ReviewID: "rev-a", Excerpt: "The power analysis is missing."},
			},
		},
		Warnings: []string{"two reviews arrived late"},
	}
}

func sampleValidation(manuscriptID string, status review.Status) *review.ValidationResult {
	passed := status == review.StatusValidated
	score := 100
	if !passed {
		score = 50
	}
	return &review.ValidationResult{
		ManuscriptID:    manuscriptID,
		Passed:          passed,
		ConfidenceScore: score,
		Status:          status,
	}
}

func TestPutGetBrief(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	brief := sampleBrief("ms-001")
	require.NoError(t, client.PutBrief(ctx, brief))

	got, err := client.GetBrief(ctx, "ms-001")
	require.NoError(t, err)
	assert.Equal(t, brief.ManuscriptID, got.ManuscriptID)
	assert.Equal(t, brief.ManuscriptTitle, got.ManuscriptTitle)
	assert.Equal(t, brief.Consensus, got.Consensus)
	assert.Equal(t, brief.MajorIssues, got.MajorIssues)
	assert.Equal(t, brief.Disagreements, got.Disagreements)
	assert.Equal(t, brief.ActionChecklist, got.ActionChecklist)
	assert.Equal(t, brief.OpenQuestions, got.OpenQuestions)
	assert.Equal(t, brief.TraceabilityIndex, got.TraceabilityIndex)
	assert.Equal(t, brief.Warnings, got.Warnings)
}

func TestPutBriefIsAnInPlaceRevision(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	brief := sampleBrief("ms-001")
	require.NoError(t, client.PutBrief(ctx, brief))

	brief.ManuscriptTitle = "Revised Title"
	brief.Warnings = nil
	require.NoError(t, client.PutBrief(ctx, brief))

	got, err := client.GetBrief(ctx, "ms-001")
	require.NoError(t, err)
	assert.Equal(t, "Revised Title", got.ManuscriptTitle)

	ids, err := client.ListManuscripts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ms-001"}, ids)
}

func TestPutBriefRejectsInvalid(t *testing.T) {
	client, _ := newTestClient(t)

	brief := sampleBrief("")
	err := client.PutBrief(context.Background(), brief)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid brief")
}

func TestGetBriefNotFound(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.GetBrief(context.Background(), "ms-missing")
	assert.True(t, IsNotFound(err))
}

func TestBriefExists(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	exists, err := client.BriefExists(ctx, "ms-001")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, client.PutBrief(ctx, sampleBrief("ms-001")))

	exists, err = client.BriefExists(ctx, "ms-001")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPutGetValidation(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	v := sampleValidation("ms-001", review.StatusNeedsManualReview)
	v.IssuesFound = []review.ValidationIssue{
		{
			Stage:    review.StageExtract,
			Code:     review.CheckExcerptMismatch,
			Message:  "excerpt not found verbatim",
			ReviewID: "rev-a",
		},
	}
	v.Warnings = []string{"input marked incomplete"}
	require.NoError(t, client.PutValidation(ctx, v))

	got, err := client.GetValidation(ctx, "ms-001")
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = client.GetValidation(ctx, "ms-missing")
	assert.True(t, IsNotFound(err))
}

func TestListManuscripts(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	ids, err := client.ListManuscripts(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, client.PutBrief(ctx, sampleBrief("ms-002")))
	require.NoError(t, client.PutBrief(ctx, sampleBrief("ms-001")))

	ids, err = client.ListManuscripts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ms-001", "ms-002"}, ids)
}

func TestListManuscriptsByStatus(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.PutBrief(ctx, sampleBrief("ms-001")))
	require.NoError(t, client.PutBrief(ctx, sampleBrief("ms-002")))
	require.NoError(t, client.PutBrief(ctx, sampleBrief("ms-003")))

	require.NoError(t, client.PutValidation(ctx, sampleValidation("ms-001", review.StatusValidated)))
	require.NoError(t, client.PutValidation(ctx, sampleValidation("ms-002", review.StatusNeedsManualReview)))
	// ms-003 has a brief but no stored validation; it is skipped.

	validated, err := client.ListManuscriptsByStatus(ctx, review.StatusValidated)
	require.NoError(t, err)
	assert.Equal(t, []string{"ms-001"}, validated)

	manual, err := client.ListManuscriptsByStatus(ctx, review.StatusNeedsManualReview)
	require.NoError(t, err)
	assert.Equal(t, []string{"ms-002"}, manual)
}

func TestInstanceIsolation(t *testing.T) {
	mr := miniredis.RunT(t)

	alpha, err := NewClient(&redis.Options{Addr: mr.Addr()}, "alpha")
	require.NoError(t, err)
	defer alpha.Close()

	beta, err := NewClient(&redis.Options{Addr: mr.Addr()}, "beta")
	require.NoError(t, err)
	defer beta.Close()

	ctx := context.Background()
	require.NoError(t, alpha.PutBrief(ctx, sampleBrief("ms-001")))

	_, err = beta.GetBrief(ctx, "ms-001")
	assert.True(t, IsNotFound(err))

	ids, err := beta.ListManuscripts(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestNewClientRequiresInstanceName(t *testing.T) {
	_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
	require.Error(t, err)
}

func TestSubscribeBriefEvents(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	sub, err := client.SubscribeBriefEvents(ctx)
	require.NoError(t, err)
	defer sub.Close()

	// Give the subscriber goroutine time to attach before publishing.
	time.Sleep(50 * time.Millisecond)

	brief := sampleBrief("ms-001")
	require.NoError(t, client.PutBrief(ctx, brief))

	select {
	case got := <-sub.Events():
		require.NotNil(t, got)
		assert.Equal(t, "ms-001", got.ManuscriptID)
		assert.Equal(t, brief.Consensus.ConfidenceTier, got.Consensus.ConfidenceTier)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for brief event")
	}
}

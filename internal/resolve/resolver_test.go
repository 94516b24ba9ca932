package resolve

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shikha-SShikha/peerlens/internal/oracle"
	"github.com/Shikha-SShikha/peerlens/internal/review"
)

// scriptedOracle returns canned similarity scores for description pairs and
// a default for everything else.
type scriptedOracle struct {
	scores       map[[2]string]float64
	defaultScore float64
}

func (s *scriptedOracle) Name() string { return "scripted" }

func (s *scriptedOracle) ExtractClaims(ctx context.Context, rev *review.Review) ([]oracle.ClaimDraft, error) {
	return nil, nil
}

func (s *scriptedOracle) ScoreSimilarity(ctx context.Context, a, b string) (float64, error) {
	if score, ok := s.scores[[2]string{a, b}]; ok {
		return score, nil
	}
	if score, ok := s.scores[[2]string{b, a}]; ok {
		return score, nil
	}
	return s.defaultScore, nil
}

func (s *scriptedOracle) DraftSynthesis(ctx context.Context, req oracle.SynthesisRequest) (oracle.SynthesisDraft, error) {
	return oracle.SynthesisDraft{}, nil
}

func mustIssue(t *testing.T, reviewID, reviewerID, category string, severity review.Severity, ordinal int, description string) *review.Issue {
	t.Helper()
	rev := &review.Review{
		ManuscriptID: "ms-001",
		ReviewID:     reviewID,
		ReviewerID:   reviewerID,
		Text:         description,
	}
	issue, err := review.NewIssue(rev, ordinal, category, severity, description, description)
	require.NoError(t, err)
	return issue
}

func TestResolveMergesAgreeingReviewers(t *testing.T) {
	// Three reviews; two of them flag the missing power analysis in
	// different words, the third raises an unrelated clarity concern.
	a := mustIssue(t, "rev-1", "reviewer-a", "statistics", review.SeverityMajor, 0, "missing statistical power analysis")
	b := mustIssue(t, "rev-2", "reviewer-b", "statistics", review.SeverityMajor, 0, "no power analysis was reported")
	c := mustIssue(t, "rev-3", "reviewer-c", "clarity", review.SeverityMinor, 0, "figure captions are unreadable")

	o := &scriptedOracle{scores: map[[2]string]float64{
		{"missing statistical power analysis", "no power analysis was reported"}: 0.9,
	}}
	r, err := New(o, 0.5)
	require.NoError(t, err)

	canonicals, err := r.Resolve(context.Background(), []*review.Issue{a, b, c})
	require.NoError(t, err)
	require.Len(t, canonicals, 2)

	var stats *review.CanonicalIssue
	for _, ci := range canonicals {
		if ci.Category == "statistics" {
			stats = ci
		}
	}
	require.NotNil(t, stats)
	assert.Equal(t, review.SeverityMajor, stats.Severity)
	assert.Equal(t, []string{"reviewer-a", "reviewer-b"}, stats.ReviewerIDs)
	assert.Len(t, stats.MemberIssueIDs, 2)
	assert.Equal(t, "missing statistical power analysis", stats.RepresentativeDescription,
		"first-seen member supplies the representative description")

	require.NoError(t, VerifyPartition([]*review.Issue{a, b, c}, canonicals))
	require.NoError(t, r.VerifyConverged(context.Background(), canonicals))
}

func TestResolveTransitiveMerge(t *testing.T) {
	// A~B and B~C are above threshold but A~C is not: all three must still
	// land in one cluster.
	a := mustIssue(t, "rev-1", "reviewer-a", "methodology", review.SeverityMinor, 0, "the ablation design is incomplete")
	b := mustIssue(t, "rev-2", "reviewer-b", "methodology", review.SeverityMajor, 0, "ablation experiments are missing components")
	c := mustIssue(t, "rev-3", "reviewer-c", "methodology", review.SeverityMinor, 0, "no component-wise experiments")

	o := &scriptedOracle{scores: map[[2]string]float64{
		{"the ablation design is incomplete", "ablation experiments are missing components"}: 0.8,
		{"ablation experiments are missing components", "no component-wise experiments"}:     0.7,
		{"the ablation design is incomplete", "no component-wise experiments"}:               0.1,
	}}
	r, err := New(o, 0.5)
	require.NoError(t, err)

	canonicals, err := r.Resolve(context.Background(), []*review.Issue{a, b, c})
	require.NoError(t, err)
	require.Len(t, canonicals, 1)
	assert.Len(t, canonicals[0].MemberIssueIDs, 3)
	assert.Equal(t, review.SeverityMajor, canonicals[0].Severity,
		"cluster severity is the maximum of member severities")
}

func TestResolveTieAtThresholdDoesNotMerge(t *testing.T) {
	a := mustIssue(t, "rev-1", "reviewer-a", "statistics", review.SeverityMajor, 0, "sample is too small")
	b := mustIssue(t, "rev-2", "reviewer-b", "statistics", review.SeverityMajor, 0, "cohort size concerns")

	o := &scriptedOracle{scores: map[[2]string]float64{
		{"sample is too small", "cohort size concerns"}: 0.5,
	}}
	r, err := New(o, 0.5)
	require.NoError(t, err)

	canonicals, err := r.Resolve(context.Background(), []*review.Issue{a, b})
	require.NoError(t, err)
	assert.Len(t, canonicals, 2, "a score exactly at the threshold must not merge")
}

func TestResolveCategoriesNeverMerge(t *testing.T) {
	a := mustIssue(t, "rev-1", "reviewer-a", "statistics", review.SeverityMajor, 0, "missing power analysis")
	b := mustIssue(t, "rev-2", "reviewer-b", "methodology", review.SeverityMajor, 0, "missing power analysis")

	// Identical descriptions, always-similar oracle: the category blocking
	// key must still keep them apart.
	o := &scriptedOracle{defaultScore: 1.0}
	r, err := New(o, 0.5)
	require.NoError(t, err)

	canonicals, err := r.Resolve(context.Background(), []*review.Issue{a, b})
	require.NoError(t, err)
	assert.Len(t, canonicals, 2)
}

func TestResolveDeterministicUnderPermutation(t *testing.T) {
	issues := []*review.Issue{
		mustIssue(t, "rev-1", "reviewer-a", "statistics", review.SeverityMajor, 0, "missing power analysis"),
		mustIssue(t, "rev-1", "reviewer-a", "clarity", review.SeverityMinor, 1, "dense notation"),
		mustIssue(t, "rev-2", "reviewer-b", "statistics", review.SeverityMajor, 0, "power analysis absent"),
		mustIssue(t, "rev-3", "reviewer-c", "clarity", review.SeverityMinor, 0, "notation is hard to parse"),
	}
	o := &scriptedOracle{scores: map[[2]string]float64{
		{"missing power analysis", "power analysis absent"}:  0.85,
		{"dense notation", "notation is hard to parse"}:      0.75,
	}}
	r, err := New(o, 0.5)
	require.NoError(t, err)

	baseline, err := r.Resolve(context.Background(), issues)
	require.NoError(t, err)

	permutations := [][]*review.Issue{
		{issues[3], issues[2], issues[1], issues[0]},
		{issues[1], issues[3], issues[0], issues[2]},
		{issues[2], issues[0], issues[3], issues[1]},
	}
	for i, perm := range permutations {
		got, err := r.Resolve(context.Background(), perm)
		require.NoError(t, err)
		if diff := cmp.Diff(baseline, got); diff != "" {
			t.Errorf("permutation %d changed the result (-baseline +got):\n%s", i, diff)
		}
	}
}

func TestResolveRejectsMixedManuscripts(t *testing.T) {
	a := mustIssue(t, "rev-1", "reviewer-a", "statistics", review.SeverityMajor, 0, "missing power analysis")
	other := &review.Review{ManuscriptID: "ms-002", ReviewID: "rev-9", ReviewerID: "reviewer-z", Text: "too short"}
	b, err := review.NewIssue(other, 0, "clarity", review.SeverityMinor, "too short", "too short")
	require.NoError(t, err)

	r, err := New(&scriptedOracle{}, 0.5)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), []*review.Issue{a, b})
	require.Error(t, err)
}

func TestResolveThresholdBounds(t *testing.T) {
	for _, bad := range []float64{-0.1, 1.1} {
		_, err := New(&scriptedOracle{}, bad)
		require.Error(t, err, fmt.Sprintf("threshold %f must be rejected", bad))
	}
}

func TestVerifyPartitionDetectsDefects(t *testing.T) {
	a := mustIssue(t, "rev-1", "reviewer-a", "statistics", review.SeverityMajor, 0, "missing power analysis")

	t.Run("uncovered issue", func(t *testing.T) {
		err := VerifyPartition([]*review.Issue{a}, nil)
		require.Error(t, err)
	})

	t.Run("unknown member", func(t *testing.T) {
		err := VerifyPartition([]*review.Issue{a}, []*review.CanonicalIssue{{
			CanonicalID:    "c1",
			MemberIssueIDs: []string{a.IssueID, "ghost"},
		}})
		require.Error(t, err)
	})

	t.Run("double membership", func(t *testing.T) {
		err := VerifyPartition([]*review.Issue{a}, []*review.CanonicalIssue{
			{CanonicalID: "c1", MemberIssueIDs: []string{a.IssueID}},
			{CanonicalID: "c2", MemberIssueIDs: []string{a.IssueID}},
		})
		require.Error(t, err)
	})
}

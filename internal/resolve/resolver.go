// Package resolve deduplicates and canonicalizes the Issues of one
// manuscript into CanonicalIssues. Issues are bucketed by category (the
// blocking key), scored pairwise within each bucket, and merged transitively
// through a union-find structure. The output is a strict partition of the
// input, and resolving an identical issue set always reproduces identical
// clusters.
package resolve

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/Shikha-SShikha/peerlens/internal/oracle"
	"github.com/Shikha-SShikha/peerlens/internal/review"
)

// Resolver clusters equivalent issues for one manuscript at a time.
type Resolver struct {
	oracle    oracle.Oracle
	threshold float64
}

// New creates a Resolver with the given semantic-equivalence merge
// threshold. Scores strictly above the threshold merge; a score landing
// exactly on it is ambiguous and conservatively does not merge.
func New(o oracle.Oracle, threshold float64) (*Resolver, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("merge threshold must be in [0,1], got %f", threshold)
	}
	return &Resolver{oracle: o, threshold: threshold}, nil
}

// Resolve clusters the issues of a single manuscript into canonical issues.
// Inputs may arrive in any order (parallel extraction finishes out of
// order); they are re-sorted by the stable extraction key before clustering
// so the result never depends on arrival order.
func (r *Resolver) Resolve(ctx context.Context, issues []*review.Issue) ([]*review.CanonicalIssue, error) {
	if len(issues) == 0 {
		return nil, nil
	}

	manuscriptID := issues[0].ManuscriptID
	for _, issue := range issues {
		if issue.ManuscriptID != manuscriptID {
			return nil, fmt.Errorf("resolver is scoped to one manuscript: got %s and %s", manuscriptID, issue.ManuscriptID)
		}
	}

	// Stable extraction order, independent of arrival order.
	sorted := make([]*review.Issue, len(issues))
	copy(sorted, issues)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].SortKey() < sorted[j].SortKey()
	})

	// Blocking key: (manuscript, category). Bounds pairwise comparison to
	// same-category issues instead of O(n^2) over the whole set.
	buckets := make(map[string][]int)
	var categories []string
	for idx, issue := range sorted {
		if _, seen := buckets[issue.Category]; !seen {
			categories = append(categories, issue.Category)
		}
		buckets[issue.Category] = append(buckets[issue.Category], idx)
	}
	sort.Strings(categories)

	uf := newUnionFind(len(sorted))
	for _, category := range categories {
		if err := r.mergeBucket(ctx, sorted, buckets[category], uf); err != nil {
			return nil, fmt.Errorf("category %s: %w", category, err)
		}
	}

	return buildClusters(manuscriptID, sorted, uf), nil
}

// mergeBucket scores every pair in one category bucket and unions pairs that
// clear the threshold.
func (r *Resolver) mergeBucket(ctx context.Context, issues []*review.Issue, bucket []int, uf *unionFind) error {
	for i := 0; i < len(bucket); i++ {
		for j := i + 1; j < len(bucket); j++ {
			a, b := issues[bucket[i]], issues[bucket[j]]
			score, err := r.oracle.ScoreSimilarity(ctx, a.Description, b.Description)
			if err != nil {
				return fmt.Errorf("scoring %s against %s: %w", a.IssueID, b.IssueID, err)
			}

			switch {
			case score > r.threshold:
				uf.union(bucket[i], bucket[j])
			case score == r.threshold:
				// Tie at threshold: conservative bias against false
				// consolidation. Logged, never merged.
				log.Printf("[Resolver] %v (%.3f) for %s vs %s: not merging",
					review.ErrAmbiguousMerge, r.threshold, a.IssueID, b.IssueID)
			}
		}
	}
	return nil
}

// buildClusters materializes canonical issues from the union-find state.
// Members keep first-seen order; the first-seen member's description is the
// representative, severity is elevated to the cluster maximum but the
// original description is never replaced.
func buildClusters(manuscriptID string, sorted []*review.Issue, uf *unionFind) []*review.CanonicalIssue {
	clusterOf := make(map[int][]int) // root index -> member indices, first-seen order
	var roots []int
	for idx := range sorted {
		root := uf.find(idx)
		if _, seen := clusterOf[root]; !seen {
			roots = append(roots, root)
		}
		clusterOf[root] = append(clusterOf[root], idx)
	}

	// Roots discovered in iteration order of the sorted slice, so output
	// cluster order follows first-seen member order already.
	canonicals := make([]*review.CanonicalIssue, 0, len(roots))
	for _, root := range roots {
		members := clusterOf[root]
		first := sorted[members[0]]

		severity := first.Severity
		memberIDs := make([]string, 0, len(members))
		reviewerIDs := make([]string, 0, len(members))
		for _, m := range members {
			issue := sorted[m]
			severity = review.MaxSeverity(severity, issue.Severity)
			memberIDs = append(memberIDs, issue.IssueID)
			reviewerIDs = append(reviewerIDs, issue.ReviewerID)
		}

		canonicals = append(canonicals, &review.CanonicalIssue{
			CanonicalID:               review.CanonicalID(memberIDs),
			ManuscriptID:              manuscriptID,
			Category:                  first.Category,
			Severity:                  severity,
			RepresentativeDescription: first.Description,
			MemberIssueIDs:            memberIDs,
			ReviewerIDs:               review.DedupReviewers(reviewerIDs),
		})
	}
	return canonicals
}

// VerifyPartition checks the resolver postcondition: the canonical issue set
// is an exact partition of the input issue set (union of members equals the
// input, pairwise disjoint).
func VerifyPartition(issues []*review.Issue, canonicals []*review.CanonicalIssue) error {
	want := make(map[string]bool, len(issues))
	for _, issue := range issues {
		want[issue.IssueID] = true
	}

	seen := make(map[string]string, len(issues)) // issue ID -> canonical ID
	for _, ci := range canonicals {
		for _, id := range ci.MemberIssueIDs {
			if owner, dup := seen[id]; dup {
				return fmt.Errorf("issue %s belongs to both %s and %s", id, owner, ci.CanonicalID)
			}
			if !want[id] {
				return fmt.Errorf("canonical issue %s contains unknown issue %s", ci.CanonicalID, id)
			}
			seen[id] = ci.CanonicalID
		}
	}

	for id := range want {
		if _, ok := seen[id]; !ok {
			return fmt.Errorf("issue %s is not covered by any canonical issue", id)
		}
	}
	return nil
}

// VerifyConverged checks the second postcondition: no two canonical issues
// in the same bucket would still merge (score above threshold) against each
// other's representatives.
func (r *Resolver) VerifyConverged(ctx context.Context, canonicals []*review.CanonicalIssue) error {
	byCategory := make(map[string][]*review.CanonicalIssue)
	for _, ci := range canonicals {
		byCategory[ci.Category] = append(byCategory[ci.Category], ci)
	}

	for category, group := range byCategory {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				score, err := r.oracle.ScoreSimilarity(ctx, group[i].RepresentativeDescription, group[j].RepresentativeDescription)
				if err != nil {
					return err
				}
				if score > r.threshold {
					return fmt.Errorf("category %s: canonical issues %s and %s score %.3f above threshold %.3f and should have merged",
						category, group[i].CanonicalID, group[j].CanonicalID, score, r.threshold)
				}
			}
		}
	}
	return nil
}

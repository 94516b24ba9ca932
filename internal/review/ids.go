package review

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Deterministic identifiers: re-running a stage on identical input must
// reproduce identical IDs, so IDs are content hashes rather than random.

// issueID derives the deterministic ID for an issue from its identifying
// content. Two extractions of the same claim from the same review collide by
// design.
func issueID(i *Issue) string {
	return hashID("issue", i.ManuscriptID, i.SourceReviewID, i.Category, string(i.Severity), i.EvidenceExcerpt, i.Description)
}

// CanonicalID derives the deterministic ID for a cluster from its sorted
// member issue IDs.
func CanonicalID(memberIssueIDs []string) string {
	members := make([]string, len(memberIssueIDs))
	copy(members, memberIssueIDs)
	sort.Strings(members)
	return hashID("canonical", members...)
}

func hashID(kind string, parts ...string) string {
	joined := kind + "\x1f" + strings.Join(parts, "\x1f")
	h := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(h[:8])
}

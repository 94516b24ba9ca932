package briefboard

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Shikha-SShikha/peerlens/internal/review"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Complex fields like
// issue lists and the traceability index are JSON-encoded into single hash
// fields. This keeps scalar fields individually queryable while the nested
// structures stay flexible.

// BriefToHash converts a Brief to a Redis hash format.
// Nested fields (issues, disagreements, checklist, traceability) are
// JSON-encoded.
func BriefToHash(b *review.Brief) (map[string]interface{}, error) {
	consensusJSON, err := json.Marshal(b.Consensus)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal consensus_snapshot: %w", err)
	}
	majorJSON, err := json.Marshal(b.MajorIssues)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal major_issues: %w", err)
	}
	minorJSON, err := json.Marshal(b.MinorIssues)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal minor_issues: %w", err)
	}
	disagreementsJSON, err := json.Marshal(b.Disagreements)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal disagreements: %w", err)
	}
	checklistJSON, err := json.Marshal(b.ActionChecklist)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal action_checklist: %w", err)
	}
	questionsJSON, err := json.Marshal(b.OpenQuestions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal open_questions: %w", err)
	}
	traceabilityJSON, err := json.Marshal(b.TraceabilityIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal traceability_index: %w", err)
	}
	warningsJSON, err := json.Marshal(b.Warnings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal warnings: %w", err)
	}

	hash := map[string]interface{}{
		"manuscript_id":      b.ManuscriptID,
		"manuscript_title":   b.ManuscriptTitle,
		"consensus_snapshot": string(consensusJSON),
		"major_issues":       string(majorJSON),
		"minor_issues":       string(minorJSON),
		"disagreements":      string(disagreementsJSON),
		"action_checklist":   string(checklistJSON),
		"open_questions":     string(questionsJSON),
		"traceability_index": string(traceabilityJSON),
		"incomplete_input":   b.IncompleteInput,
		"warnings":           string(warningsJSON),
	}

	return hash, nil
}

// HashToBrief converts a Redis hash to a Brief.
// JSON fields are decoded back to Go types.
func HashToBrief(hash map[string]string) (*review.Brief, error) {
	b := &review.Brief{
		ManuscriptID:    hash["manuscript_id"],
		ManuscriptTitle: hash["manuscript_title"],
	}

	if v := hash["consensus_snapshot"]; v != "" {
		if err := json.Unmarshal([]byte(v), &b.Consensus); err != nil {
			return nil, fmt.Errorf("failed to unmarshal consensus_snapshot: %w", err)
		}
	}
	if v := hash["major_issues"]; v != "" {
		if err := json.Unmarshal([]byte(v), &b.MajorIssues); err != nil {
			return nil, fmt.Errorf("failed to unmarshal major_issues: %w", err)
		}
	}
	if v := hash["minor_issues"]; v != "" {
		if err := json.Unmarshal([]byte(v), &b.MinorIssues); err != nil {
			return nil, fmt.Errorf("failed to unmarshal minor_issues: %w", err)
		}
	}
	if v := hash["disagreements"]; v != "" {
		if err := json.Unmarshal([]byte(v), &b.Disagreements); err != nil {
			return nil, fmt.Errorf("failed to unmarshal disagreements: %w", err)
		}
	}
	if v := hash["action_checklist"]; v != "" {
		if err := json.Unmarshal([]byte(v), &b.ActionChecklist); err != nil {
			return nil, fmt.Errorf("failed to unmarshal action_checklist: %w", err)
		}
	}
	if v := hash["open_questions"]; v != "" {
		if err := json.Unmarshal([]byte(v), &b.OpenQuestions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal open_questions: %w", err)
		}
	}
	if v := hash["traceability_index"]; v != "" {
		if err := json.Unmarshal([]byte(v), &b.TraceabilityIndex); err != nil {
			return nil, fmt.Errorf("failed to unmarshal traceability_index: %w", err)
		}
	}
	if v := hash["warnings"]; v != "" {
		if err := json.Unmarshal([]byte(v), &b.Warnings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal warnings: %w", err)
		}
	}

	// Parse incomplete_input flag
	incomplete, _ := strconv.ParseBool(hash["incomplete_input"])
	b.IncompleteInput = incomplete

	return b, nil
}

// ValidationToHash converts a ValidationResult to a Redis hash format.
// Array fields (issues_found, warnings) are JSON-encoded.
func ValidationToHash(v *review.ValidationResult) (map[string]interface{}, error) {
	issuesJSON, err := json.Marshal(v.IssuesFound)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal issues_found: %w", err)
	}
	warningsJSON, err := json.Marshal(v.Warnings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal warnings: %w", err)
	}

	hash := map[string]interface{}{
		"manuscript_id":    v.ManuscriptID,
		"passed":           v.Passed,
		"confidence_score": v.ConfidenceScore,
		"issues_found":     string(issuesJSON),
		"warnings":         string(warningsJSON),
		"status":           string(v.Status),
	}

	return hash, nil
}

// HashToValidation converts a Redis hash to a ValidationResult.
// JSON fields are decoded back to Go types.
func HashToValidation(hash map[string]string) (*review.ValidationResult, error) {
	score, err := strconv.Atoi(hash["confidence_score"])
	if err != nil {
		return nil, fmt.Errorf("invalid confidence_score field: %w", err)
	}
	passed, _ := strconv.ParseBool(hash["passed"])

	v := &review.ValidationResult{
		ManuscriptID:    hash["manuscript_id"],
		Passed:          passed,
		ConfidenceScore: score,
		Status:          review.Status(hash["status"]),
	}

	if raw := hash["issues_found"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &v.IssuesFound); err != nil {
			return nil, fmt.Errorf("failed to unmarshal issues_found: %w", err)
		}
	}
	if raw := hash["warnings"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &v.Warnings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal warnings: %w", err)
		}
	}

	return v, nil
}

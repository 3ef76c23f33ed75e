package router

import "strings"

// ConflictDetector inspects a reviewer's assessment and returns the
// reasons it disagrees with the primary output. Empty means agreement.
type ConflictDetector interface {
	Detect(reviewText string) []string
}

// KeywordDetector is the default detector: literal, case-insensitive
// substring matching on disagreement markers. Deliberately cheap; the
// interface exists so a smarter classifier can replace it without
// touching the cross-check flow.
type KeywordDetector struct{}

// Detect returns the conflict reasons found in the reviewer's text.
// Constructive suggestions without disagreement markers do not count.
func (KeywordDetector) Detect(reviewText string) []string {
	lower := strings.ToLower(reviewText)
	var conflicts []string

	if strings.Contains(lower, "needs-improvement") || strings.Contains(lower, "needs improvement") {
		conflicts = append(conflicts, "reviewer marked the result as needing improvement")
	}

	severity := strings.Contains(lower, "critical") || strings.Contains(lower, "major")
	defect := strings.Contains(lower, "bug") || strings.Contains(lower, "error")
	if severity && defect {
		conflicts = append(conflicts, "reviewer reported a critical or major defect")
	}

	if strings.Contains(lower, "incorrect") || strings.Contains(lower, "wrong") || strings.Contains(lower, "fails") {
		conflicts = append(conflicts, "reviewer judged the result incorrect")
	}

	return conflicts
}

package matching

import "github.com/opensource-finance/fuelrecon/internal/domain"

// SuggestThreshold is the minimum score for a line to be suggested for review.
const SuggestThreshold = 0.5

// Classify maps a best-candidate score to a match status.
// A line is auto-matched only when manual confirmation is not required.
func Classify(score, autoMatchThreshold float64, requireManualConfirm bool) domain.MatchStatus {
	switch {
	case score >= autoMatchThreshold && !requireManualConfirm:
		return domain.MatchAutoMatched
	case score >= SuggestThreshold:
		return domain.MatchSuggested
	default:
		return domain.MatchUnmatched
	}
}

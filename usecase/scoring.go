package usecase

import "github.com/radebe49/objection-dojo/domain/entities"

// Patience deltas per reply sentiment
const (
	positiveDelta = 15
	negativeDelta = -20
)

// CalculatePatience returns the new patience score for a reply sentiment:
// positive +15, negative -20, neutral unchanged, clamped to [0, 100].
// Pure function: no side effects, no dependence beyond the current value.
func CalculatePatience(current int, sentiment entities.Sentiment) int {
	score := current
	switch sentiment {
	case entities.SentimentPositive:
		score += positiveDelta
	case entities.SentimentNegative:
		score += negativeDelta
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

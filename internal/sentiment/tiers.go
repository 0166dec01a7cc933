package sentiment

// Tier is the display bucket for a score.
type Tier string

const (
	TierPositive Tier = "positive"
	TierNeutral  Tier = "neutral"
	TierNegative Tier = "negative"
)

// Display thresholds shared by every surface that renders a score.
const (
	PositiveThreshold = 0.7
	NegativeThreshold = 0.4
)

// TierFor buckets a score: >= 0.7 positive, < 0.4 negative, otherwise neutral.
func TierFor(score float64) Tier {
	switch {
	case score >= PositiveThreshold:
		return TierPositive
	case score < NegativeThreshold:
		return TierNegative
	default:
		return TierNeutral
	}
}

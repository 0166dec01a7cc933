package sentiment

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// NeutralScore is returned whenever there is no usable signal.
const NeutralScore = 0.5

// Softmax turns a row of logits into a probability distribution. A row with
// no finite mass comes back as all zeros so that Aggregate resolves it to
// NeutralScore.
func Softmax(logits []float64) []float64 {
	probs := make([]float64, len(logits))
	if len(logits) == 0 {
		return probs
	}

	lse := floats.LogSumExp(logits)
	if math.IsInf(lse, 0) || math.IsNaN(lse) {
		return probs
	}

	for i, l := range logits {
		probs[i] = math.Exp(l - lse)
	}
	return probs
}

// Aggregate folds a class distribution into a score in [0,1]: positive mass
// counts fully, neutral mass at half weight, negative mass not at all, all
// relative to the total mass.
func (p Partition) Aggregate(probs []float64) float64 {
	pos := p.groupMass(p.Positive, probs)
	neu := p.groupMass(p.Neutral, probs)
	neg := p.groupMass(p.Negative, probs)

	total := pos + neu + neg
	if total == 0 || math.IsNaN(total) {
		return NeutralScore
	}

	score := (pos + 0.5*neu) / total
	return math.Max(0, math.Min(1, score))
}

func (p Partition) groupMass(indices []int, probs []float64) float64 {
	var mass float64
	for _, idx := range indices {
		if idx < len(probs) {
			mass += probs[idx]
		}
	}
	return mass
}

// Average is the unweighted mean of the non-nil scores. ok is false when no
// score is present.
func Average(scores []*float64) (avg float64, ok bool) {
	values := make([]float64, 0, len(scores))
	for _, s := range scores {
		if s != nil {
			values = append(values, *s)
		}
	}
	if len(values) == 0 {
		return 0, false
	}
	return stat.Mean(values, nil), true
}

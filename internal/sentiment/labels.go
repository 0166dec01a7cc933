package sentiment

import "fmt"

// ModelName is the pretrained classifier every backend loads.
const ModelName = "nlp04/korean_sentiment_analysis_kcelectra"

// MaxSequenceLength caps the encoded length of a single input.
const MaxSequenceLength = 512

// EmotionLabels are the classifier's output classes in index order.
var EmotionLabels = []string{
	"기쁨(행복한)",
	"고마운",
	"설레는(기대하는)",
	"사랑하는",
	"즐거운(신나는)",
	"일상적인",
	"생각이 많은",
	"슬픔(우울한)",
	"힘듦(지침)",
	"짜증남",
	"걱정스러운(불안한)",
}

// Polarity is the group a class index belongs to.
type Polarity int

const (
	Negative Polarity = iota
	Neutral
	Positive
)

func (p Polarity) String() string {
	switch p {
	case Positive:
		return "positive"
	case Neutral:
		return "neutral"
	case Negative:
		return "negative"
	default:
		return fmt.Sprintf("Polarity(%d)", int(p))
	}
}

// Partition splits class indices into three disjoint polarity groups.
type Partition struct {
	Positive []int
	Neutral  []int
	Negative []int
}

// EmotionPartition groups EmotionLabels by polarity.
var EmotionPartition = Partition{
	Positive: []int{0, 1, 2, 3, 4},
	Neutral:  []int{5, 6},
	Negative: []int{7, 8, 9, 10},
}

// Size is the number of classes the partition covers.
func (p Partition) Size() int {
	return len(p.Positive) + len(p.Neutral) + len(p.Negative)
}

// Validate checks that every index in [0, numClasses) appears in exactly one group.
func (p Partition) Validate(numClasses int) error {
	if numClasses <= 0 {
		return fmt.Errorf("partition needs at least one class, got %d", numClasses)
	}

	seen := make([]bool, numClasses)
	groups := []struct {
		polarity Polarity
		indices  []int
	}{
		{Positive, p.Positive},
		{Neutral, p.Neutral},
		{Negative, p.Negative},
	}

	for _, g := range groups {
		for _, idx := range g.indices {
			if idx < 0 || idx >= numClasses {
				return fmt.Errorf("%s class index %d out of range [0,%d)", g.polarity, idx, numClasses)
			}
			if seen[idx] {
				return fmt.Errorf("class index %d assigned more than once", idx)
			}
			seen[idx] = true
		}
	}

	for idx, ok := range seen {
		if !ok {
			return fmt.Errorf("class index %d not assigned to any group", idx)
		}
	}
	return nil
}

// PolarityOf returns the group holding idx.
func (p Partition) PolarityOf(idx int) (Polarity, bool) {
	for _, i := range p.Positive {
		if i == idx {
			return Positive, true
		}
	}
	for _, i := range p.Neutral {
		if i == idx {
			return Neutral, true
		}
	}
	for _, i := range p.Negative {
		if i == idx {
			return Negative, true
		}
	}
	return 0, false
}

package classifier

import (
	"strconv"
	"strings"

	"github.com/spacesedan/reelscore/internal/sentiment"
)

// classIndex resolves a label emitted by a pipeline to its class index. Both
// the model's own label names and generic LABEL_<n> names are accepted.
func classIndex(label string) (int, bool) {
	label = strings.TrimSpace(label)
	for i, name := range sentiment.EmotionLabels {
		if name == label {
			return i, true
		}
	}

	if rest, ok := strings.CutPrefix(strings.ToUpper(label), "LABEL_"); ok {
		idx, err := strconv.Atoi(rest)
		if err == nil && idx >= 0 && idx < len(sentiment.EmotionLabels) {
			return idx, true
		}
	}
	return 0, false
}

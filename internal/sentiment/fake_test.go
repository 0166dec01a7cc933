package sentiment

import (
	"context"
	"errors"
	"sync"
)

// fakeClassifier derives stable logits from the runes of each text.
type fakeClassifier struct {
	mu     sync.Mutex
	calls  [][]string
	rows   map[string][]float64
	err    error
	closed bool
}

func (f *fakeClassifier) Logits(_ context.Context, texts []string) ([][]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, append([]string(nil), texts...))
	if f.err != nil {
		return nil, f.err
	}

	out := make([][]float64, len(texts))
	for i, text := range texts {
		if row, ok := f.rows[text]; ok {
			out[i] = row
			continue
		}
		out[i] = runeLogits(text, len(EmotionLabels))
	}
	return out, nil
}

func (f *fakeClassifier) Close() error {
	f.closed = true
	return nil
}

func (f *fakeClassifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func runeLogits(text string, n int) []float64 {
	var seed int
	for _, r := range text {
		seed = seed*31 + int(r)
		seed %= 1_000_003
	}
	row := make([]float64, n)
	for i := range row {
		row[i] = float64((seed*(i+7))%13)/3 - 2
	}
	return row
}

type countingLoader struct {
	mu         sync.Mutex
	calls      int
	classifier Classifier
	err        error
}

func (l *countingLoader) Load(context.Context) (Classifier, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.classifier, nil
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

var errFetch = errors.New("repository unreachable")

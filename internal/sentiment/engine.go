package sentiment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Classifier runs the pretrained emotion model.
type Classifier interface {
	// Logits returns one row of class logits per text, in input order.
	Logits(ctx context.Context, texts []string) ([][]float64, error)
	Close() error
}

// Loader fetches and initializes a Classifier in inference mode.
type Loader func(ctx context.Context) (Classifier, error)

// Engine owns the classifier for the life of the process. The model is
// loaded on first use; concurrent first callers serialize on mu and all of
// them observe the same instance.
type Engine struct {
	load      Loader
	partition Partition

	mu         sync.Mutex
	classifier Classifier
	loads      int
	closed     bool
}

func NewEngine(load Loader, partition Partition) (*Engine, error) {
	if load == nil {
		return nil, fmt.Errorf("[ScoringEngine] loader is required")
	}
	if err := partition.Validate(partition.Size()); err != nil {
		return nil, fmt.Errorf("[ScoringEngine] invalid label partition: %w", err)
	}
	return &Engine{load: load, partition: partition}, nil
}

// EnsureLoaded returns the cached classifier, loading it if this is the first
// successful call. A failed load is reported as ErrModelUnavailable and leaves
// the engine unloaded.
func (e *Engine) EnsureLoaded(ctx context.Context) (Classifier, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.classifier != nil {
		return e.classifier, nil
	}
	if e.closed {
		return nil, fmt.Errorf("%w: engine is closed", ErrModelUnavailable)
	}

	slog.Info("[ScoringEngine] Loading sentiment model", slog.String("model", ModelName))
	start := time.Now()

	c, err := e.load(ctx)
	if err == nil && c == nil {
		err = fmt.Errorf("loader returned no classifier")
	}
	if err != nil {
		slog.Error("[ScoringEngine] Failed to load sentiment model",
			slog.String("model", ModelName),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	e.classifier = c
	e.loads++
	slog.Info("[ScoringEngine] Sentiment model ready",
		slog.String("model", ModelName),
		slog.Duration("elapsed", time.Since(start)))
	return c, nil
}

// Loaded reports whether the model has been loaded.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.classifier != nil
}

// Loads is the number of successful model loads, at most one.
func (e *Engine) Loads() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loads
}

// Close releases the classifier. The engine never loads again afterwards;
// later scoring calls fail with ErrModelUnavailable.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	if e.classifier == nil {
		return nil
	}
	err := e.classifier.Close()
	e.classifier = nil
	return err
}

// Score returns the sentiment of a single text. Blank text scores
// NeutralScore without touching the model.
func (e *Engine) Score(ctx context.Context, text string) (float64, error) {
	if isBlank(text) {
		return NeutralScore, nil
	}

	scores, err := e.scoreRows(ctx, []string{text})
	if err != nil {
		return 0, err
	}
	return scores[0], nil
}

// ScoreBatch scores texts with one forward pass. The result has the same
// length and order as texts; blank entries score NeutralScore.
func (e *Engine) ScoreBatch(ctx context.Context, texts []string) ([]float64, error) {
	out := make([]float64, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	real := make([]string, 0, len(texts))
	positions := make([]int, 0, len(texts))
	for i, text := range texts {
		if isBlank(text) {
			out[i] = NeutralScore
			continue
		}
		real = append(real, text)
		positions = append(positions, i)
	}

	if len(real) == 0 {
		return out, nil
	}

	scores, err := e.scoreRows(ctx, real)
	if err != nil {
		return nil, err
	}

	for j, pos := range positions {
		out[pos] = scores[j]
	}
	return out, nil
}

func (e *Engine) scoreRows(ctx context.Context, texts []string) ([]float64, error) {
	classifier, err := e.EnsureLoaded(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	logits, err := classifier.Logits(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("[ScoringEngine] inference failed: %w", err)
	}
	if len(logits) != len(texts) {
		return nil, fmt.Errorf("%w: %d rows for %d texts", ErrClassifierOutput, len(logits), len(texts))
	}

	numClasses := e.partition.Size()
	scores := make([]float64, len(logits))
	for i, row := range logits {
		if len(row) != numClasses {
			return nil, fmt.Errorf("%w: row %d has %d classes, want %d", ErrClassifierOutput, i, len(row), numClasses)
		}
		scores[i] = e.partition.Aggregate(Softmax(row))
	}

	slog.Debug("[ScoringEngine] Scored batch",
		slog.Int("size", len(texts)),
		slog.Duration("elapsed", time.Since(start)))
	return scores, nil
}

// Texts dereferences a request payload, rejecting nil entries.
func Texts(texts []*string) ([]string, error) {
	out := make([]string, len(texts))
	for i, t := range texts {
		if t == nil {
			return nil, fmt.Errorf("%w: texts[%d] is null", ErrInvalidInput, i)
		}
		out[i] = *t
	}
	return out, nil
}

func isBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

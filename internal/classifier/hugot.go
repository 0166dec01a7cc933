package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelineBackends"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/spacesedan/reelscore/internal/sentiment"
)

// HugotClassifier runs the model through a hugot text classification
// pipeline configured to return the softmax score of every class.
type HugotClassifier struct {
	session  *hugot.Session
	pipeline *pipelines.TextClassificationPipeline
}

func NewHugotClassifier(modelPath string) (*HugotClassifier, error) {
	session, err := hugot.NewORTSession()
	if err != nil {
		return nil, fmt.Errorf("[HugotClassifier] failed to initialize session: %w", err)
	}

	config := hugot.TextClassificationConfig{
		ModelPath: modelPath,
		Name:      "reviewSentimentPipeline",
		Options: []pipelineBackends.PipelineOption[*pipelines.TextClassificationPipeline]{
			pipelines.WithSoftmax(),
			pipelines.WithMultiLabel(),
		},
	}

	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		destroySession(session)
		return nil, fmt.Errorf("[HugotClassifier] failed to initialize pipeline: %w", err)
	}
	if err := pipeline.Validate(); err != nil {
		destroySession(session)
		return nil, fmt.Errorf("[HugotClassifier] pipeline validation failed: %w", err)
	}

	slog.Info("[HugotClassifier] Pipeline ready", slog.String("model_path", modelPath))
	return &HugotClassifier{session: session, pipeline: pipeline}, nil
}

// Logits returns log-probabilities, which Softmax maps back onto the
// pipeline's own distribution.
func (h *HugotClassifier) Logits(ctx context.Context, texts []string) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	output, err := h.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, fmt.Errorf("[HugotClassifier] pipeline run failed: %w", err)
	}
	if len(output.ClassificationOutputs) != len(texts) {
		return nil, fmt.Errorf("%w: pipeline returned %d rows for %d texts",
			sentiment.ErrClassifierOutput, len(output.ClassificationOutputs), len(texts))
	}

	rows := make([][]float64, len(texts))
	for i, classes := range output.ClassificationOutputs {
		row := make([]float64, len(sentiment.EmotionLabels))
		for j := range row {
			row[j] = math.Inf(-1)
		}
		for _, class := range classes {
			idx, ok := classIndex(class.Label)
			if !ok {
				return nil, fmt.Errorf("%w: unknown label %q", sentiment.ErrClassifierOutput, class.Label)
			}
			row[idx] = logProb(float64(class.Score))
		}
		rows[i] = row
	}
	return rows, nil
}

func (h *HugotClassifier) Close() error {
	if h.session == nil {
		return nil
	}
	err := h.session.Destroy()
	h.session = nil
	return err
}

func logProb(p float64) float64 {
	if p <= 0 {
		return math.Inf(-1)
	}
	return math.Log(p)
}

func destroySession(session *hugot.Session) {
	if err := session.Destroy(); err != nil {
		slog.Warn("[HugotClassifier] Failed to destroy session",
			slog.String("error", err.Error()))
	}
}

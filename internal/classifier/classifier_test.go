package classifier

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/reelscore/internal/sentiment"
)

func TestClassIndex(t *testing.T) {
	tests := []struct {
		label string
		want  int
		ok    bool
	}{
		{"기쁨(행복한)", 0, true},
		{"일상적인", 5, true},
		{" 걱정스러운(불안한) ", 10, true},
		{"LABEL_7", 7, true},
		{"label_3", 3, true},
		{"LABEL_11", 0, false},
		{"LABEL_x", 0, false},
		{"surprise", 0, false},
	}

	for _, tt := range tests {
		got, ok := classIndex(tt.label)
		assert.Equal(t, tt.ok, ok, "label %q", tt.label)
		if tt.ok {
			assert.Equal(t, tt.want, got, "label %q", tt.label)
		}
	}
}

func TestPadBatch(t *testing.T) {
	rows := []encodedRow{
		{ids: []int{2, 10, 11, 3}, mask: []int{1, 1, 1, 1}, types: []int{0, 0, 0, 0}},
		{ids: []int{2, 12, 3}, mask: []int{1, 1, 1}, types: []int{0, 0, 0}},
	}

	b := padBatch(rows, 0)
	assert.Equal(t, 2, b.Size)
	assert.Equal(t, 4, b.SeqLen)
	assert.Equal(t, []int64{2, 10, 11, 3, 2, 12, 3, 0}, b.InputIDs)
	assert.Equal(t, []int64{1, 1, 1, 1, 1, 1, 1, 0}, b.AttentionMask)
	assert.Equal(t, []int64{0, 0, 0, 0, 0, 0, 0, 0}, b.TypeIDs)
}

func TestPadBatchUsesPadID(t *testing.T) {
	b := padBatch([]encodedRow{{ids: []int{5}}, {ids: []int{5, 6, 7}}}, 1)
	assert.Equal(t, []int64{5, 1, 1, 5, 6, 7}, b.InputIDs)
	assert.Equal(t, []int64{1, 0, 0, 1, 1, 1}, b.AttentionMask)
}

func TestClip(t *testing.T) {
	row := encodedRow{ids: []int{2, 4, 5, 6, 7, 3}, mask: []int{1, 1, 1, 1, 1, 1}, types: []int{0, 0, 0, 0, 0, 0}}

	clipped := clip(row, 4)
	assert.Equal(t, []int{2, 4, 5, 3}, clipped.ids)
	assert.Len(t, clipped.mask, 4)
	assert.Len(t, clipped.types, 4)

	assert.Equal(t, row, clip(row, 6))
	assert.Equal(t, row, clip(row, 0))
}

func TestClipAtMaxSequenceLength(t *testing.T) {
	ids := make([]int, 600)
	for i := range ids {
		ids[i] = i
	}
	clipped := clip(encodedRow{ids: ids}, sentiment.MaxSequenceLength)
	require.Len(t, clipped.ids, sentiment.MaxSequenceLength)
	assert.Equal(t, 599, clipped.ids[sentiment.MaxSequenceLength-1])
}

func TestSplitRows(t *testing.T) {
	rows := splitRows([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	assert.Equal(t, [][]float64{{1, 2, 3}, {4, 5, 6}}, rows)
}

func TestLogProbRoundTripsThroughSoftmax(t *testing.T) {
	probs := []float64{0.5, 0.25, 0.25, 0}
	logits := make([]float64, len(probs))
	for i, p := range probs {
		logits[i] = logProb(p)
	}
	assert.True(t, math.IsInf(logits[3], -1))

	back := sentiment.Softmax(logits)
	for i := range probs {
		assert.InDelta(t, probs[i], back[i], 1e-12)
	}
}

func TestLocalModelName(t *testing.T) {
	assert.Equal(t, "nlp04_korean_sentiment_analysis_kcelectra", localModelName(sentiment.ModelName))
}

func TestEnsureModelUsesExistingCopy(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, localModelName(sentiment.ModelName))
	require.NoError(t, os.MkdirAll(local, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(local, onnxFilename), []byte("onnx"), 0o644))

	path, err := EnsureModel(dir)
	require.NoError(t, err)
	assert.Equal(t, local, path)
}

func TestLoaderRejectsUnknownBackend(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, localModelName(sentiment.ModelName))
	require.NoError(t, os.MkdirAll(local, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(local, onnxFilename), []byte("onnx"), 0o644))

	load := NewLoader(Options{Backend: "torch", ModelDir: dir})
	_, err := load(context.Background())
	assert.Error(t, err)
}

func TestLoaderHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(Options{ModelDir: t.TempDir()})(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

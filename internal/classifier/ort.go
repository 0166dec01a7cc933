package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/spacesedan/reelscore/internal/sentiment"
)

const (
	onnxFilename      = "model.onnx"
	tokenizerFilename = "tokenizer.json"
)

// OrtClassifier feeds Encoder output straight into an onnxruntime session
// and returns the raw logits.
type OrtClassifier struct {
	encoder    *Encoder
	session    *ort.DynamicAdvancedSession
	inputNames []string
	numLabels  int
}

func NewOrtClassifier(modelDir, libraryPath string, numLabels int) (*OrtClassifier, error) {
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("[OrtClassifier] failed to initialize onnxruntime: %w", err)
		}
	}

	modelPath := filepath.Join(modelDir, onnxFilename)
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("[OrtClassifier] failed to inspect %s: %w", modelPath, err)
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("[OrtClassifier] model %s has no outputs", modelPath)
	}

	inputNames := make([]string, 0, len(inputs))
	for _, in := range inputs {
		switch in.Name {
		case "input_ids", "attention_mask", "token_type_ids":
			inputNames = append(inputNames, in.Name)
		default:
			return nil, fmt.Errorf("[OrtClassifier] unsupported model input %q", in.Name)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, []string{outputs[0].Name}, nil)
	if err != nil {
		return nil, fmt.Errorf("[OrtClassifier] failed to create session: %w", err)
	}

	encoder, err := NewEncoder(filepath.Join(modelDir, tokenizerFilename), sentiment.MaxSequenceLength)
	if err != nil {
		session.Destroy()
		return nil, fmt.Errorf("[OrtClassifier] %w", err)
	}

	slog.Info("[OrtClassifier] Session ready",
		slog.String("model_path", modelPath),
		slog.Any("inputs", inputNames),
		slog.String("output", outputs[0].Name))

	return &OrtClassifier{
		encoder:    encoder,
		session:    session,
		inputNames: inputNames,
		numLabels:  numLabels,
	}, nil
}

func (o *OrtClassifier) Logits(ctx context.Context, texts []string) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch, err := o.encoder.EncodeBatch(texts)
	if err != nil {
		return nil, err
	}

	shape := ort.NewShape(int64(batch.Size), int64(batch.SeqLen))
	inputs := make([]ort.Value, 0, len(o.inputNames))
	defer func() {
		for _, v := range inputs {
			v.Destroy()
		}
	}()

	for _, name := range o.inputNames {
		var data []int64
		switch name {
		case "input_ids":
			data = batch.InputIDs
		case "attention_mask":
			data = batch.AttentionMask
		case "token_type_ids":
			data = batch.TypeIDs
		}
		tensor, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("[OrtClassifier] failed to build %s tensor: %w", name, err)
		}
		inputs = append(inputs, tensor)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(batch.Size), int64(o.numLabels)))
	if err != nil {
		return nil, fmt.Errorf("[OrtClassifier] failed to allocate output: %w", err)
	}
	defer output.Destroy()

	if err := o.session.Run(inputs, []ort.Value{output}); err != nil {
		return nil, fmt.Errorf("[OrtClassifier] forward pass failed: %w", err)
	}

	return splitRows(output.GetData(), batch.Size, o.numLabels), nil
}

func (o *OrtClassifier) Close() error {
	if o.session == nil {
		return nil
	}
	err := o.session.Destroy()
	o.session = nil
	return err
}

func splitRows(data []float32, rows, cols int) [][]float64 {
	out := make([][]float64, rows)
	for i := range out {
		row := make([]float64, cols)
		for j := range row {
			row[j] = float64(data[i*cols+j])
		}
		out[i] = row
	}
	return out
}

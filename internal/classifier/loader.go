package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"

	"github.com/spacesedan/reelscore/internal/sentiment"
)

const (
	BackendHugot = "hugot"
	BackendORT   = "ort"
)

type Options struct {
	Backend        string
	ModelDir       string
	ORTLibraryPath string
}

// NewLoader returns the sentiment.Loader for the configured backend. The
// returned function does all of its work when the engine first calls it.
func NewLoader(opts Options) sentiment.Loader {
	return func(ctx context.Context) (sentiment.Classifier, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		modelPath, err := EnsureModel(opts.ModelDir)
		if err != nil {
			return nil, err
		}

		switch opts.Backend {
		case BackendORT:
			return NewOrtClassifier(modelPath, opts.ORTLibraryPath, len(sentiment.EmotionLabels))
		case BackendHugot, "":
			return NewHugotClassifier(modelPath)
		default:
			return nil, fmt.Errorf("unknown scoring backend %q", opts.Backend)
		}
	}
}

// EnsureModel returns the local directory of the pretrained model,
// downloading it into modelDir when it is not there yet.
func EnsureModel(modelDir string) (string, error) {
	if err := os.MkdirAll(modelDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("[ModelLoader] failed to create model directory: %w", err)
	}

	localPath := filepath.Join(modelDir, localModelName(sentiment.ModelName))
	if _, err := os.Stat(filepath.Join(localPath, onnxFilename)); err == nil {
		slog.Info("[ModelLoader] Using existing model", slog.String("path", localPath))
		return localPath, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("[ModelLoader] failed to stat model: %w", err)
	}

	slog.Info("[ModelLoader] Model not found, downloading...", slog.String("model", sentiment.ModelName))
	path, err := hugot.DownloadModel(sentiment.ModelName, modelDir, hugot.NewDownloadOptions())
	if err != nil {
		return "", fmt.Errorf("[ModelLoader] failed to download %s: %w", sentiment.ModelName, err)
	}
	slog.Info("[ModelLoader] Model downloaded successfully", slog.String("path", path))
	return path, nil
}

func localModelName(name string) string {
	return strings.ReplaceAll(name, "/", "_")
}

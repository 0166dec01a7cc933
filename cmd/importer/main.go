package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spacesedan/reelscore/config"
	"github.com/spacesedan/reelscore/internal/app"
	"github.com/spacesedan/reelscore/internal/logging"
	"github.com/spacesedan/reelscore/internal/models"
	"github.com/spacesedan/reelscore/internal/utils"
)

func main() {
	file := flag.String("file", "-", "JSON array of reviews to import, - for stdin")
	flag.Parse()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("[Importer] Invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logging.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *file); err != nil {
		slog.Error("[Importer] Import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, file string) error {
	batch, err := readReviews(file)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	buffer := utils.NewBatchBuffer[models.Review](cfg.ImportBatchSize)
	imported := 0

	flush := func() error {
		if !buffer.HasData() {
			return nil
		}
		buffer.LogBatchProcessing("reviews")
		created, err := a.Reviews.ImportReviews(ctx, buffer.GetAndClear())
		imported += len(created)
		return err
	}

	for _, review := range batch {
		review.ID = 0
		review.SentimentScore = nil
		buffer.Add(review)
		if buffer.Full() {
			if err := flush(); err != nil {
				return fmt.Errorf("after %d reviews: %w", imported, err)
			}
		}
	}
	if err := flush(); err != nil {
		return fmt.Errorf("after %d reviews: %w", imported, err)
	}

	slog.Info("[Importer] Import complete", slog.Int("imported", imported))
	return nil
}

func readReviews(file string) ([]models.Review, error) {
	var r io.Reader = os.Stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var batch []models.Review
	if err := json.NewDecoder(r).Decode(&batch); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}
	return batch, nil
}

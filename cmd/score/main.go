package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spacesedan/reelscore/config"
	"github.com/spacesedan/reelscore/internal/app"
	"github.com/spacesedan/reelscore/internal/logging"
	"github.com/spacesedan/reelscore/internal/sentiment"
)

// Scores each argument, or each stdin line when there are none, and prints
// score, tier and text separated by tabs.
func main() {
	markdown := flag.Bool("markdown", false, "strip markdown before scoring")
	flag.Parse()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("[Score] Invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logging.InitLogger(cfg.LogLevel)

	texts := flag.Args()
	if len(texts) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			texts = append(texts, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			slog.Error("[Score] Failed to read stdin", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := app.NewEngine(cfg)
	if err != nil {
		slog.Error("[Score] Failed to create engine", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer engine.Close()

	inputs := texts
	if *markdown {
		inputs = make([]string, len(texts))
		for i, t := range texts {
			inputs[i] = sentiment.PlainText(t)
		}
	}

	scores, err := engine.ScoreBatch(ctx, inputs)
	if err != nil {
		slog.Error("[Score] Scoring failed", slog.String("error", err.Error()))
		engine.Close()
		os.Exit(1)
	}

	for i, score := range scores {
		fmt.Printf("%.4f\t%s\t%s\n", score, sentiment.TierFor(score), texts[i])
	}
}

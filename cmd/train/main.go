package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"powerpulse/internal/align"
	"powerpulse/internal/feature"
	"powerpulse/internal/ingest"
	"powerpulse/internal/model"
	"powerpulse/internal/registry"
	"powerpulse/internal/trainer"
)

func main() {
	loadPath := flag.String("loads", "data/load.csv", "path to load CSV")
	weatherPath := flag.String("weather", "data/weather.csv", "path to weather CSV")
	modelDir := flag.String("model-dir", "models", "directory to write model artifacts")
	regionName := flag.String("region", "DELHI", "region column to train on")
	window := flag.Int("window", 48, "lagged load window length")
	maxGap := flag.Int("max-gap", 3, "longest gap in intervals to interpolate")
	folds := flag.Int("folds", 5, "out-of-fold cross-validation folds")
	holdout := flag.Float64("holdout", 0.2, "chronological tail fraction held out for evaluation")
	epochs := flag.Int("epochs", 200, "max training epochs for the neural models")
	lr := flag.Float64("lr", 0.005, "learning rate for the neural models")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	region, ok := model.ParseRegion(*regionName)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown region %q (want one of %v)\n", *regionName, model.Regions)
		os.Exit(1)
	}

	alignCfg := align.DefaultConfig()
	alignCfg.MaxGap = *maxGap
	featCfg := feature.DefaultConfig()
	featCfg.WindowLength = *window

	fmt.Printf("Loading dataset: region=%s loads=%s weather=%s\n", region, *loadPath, *weatherPath)
	ds, err := ingest.LoadDataset(ingest.DatasetConfig{
		LoadCSV:    *loadPath,
		WeatherCSV: *weatherPath,
		Region:     region,
		Align:      alignCfg,
		Feature:    featCfg,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading dataset: %v\n", err)
		os.Exit(1)
	}

	var imputed, unavailable int
	for _, s := range ds.Samples {
		if s.Imputed {
			imputed++
		}
		if s.Unavailable {
			unavailable++
		}
	}
	windows := 0
	for _, w := range ds.Features.Windows {
		if w != nil {
			windows++
		}
	}
	fmt.Printf("Aligned samples: %d (%d imputed, %d unavailable)\n", len(ds.Samples), imputed, unavailable)
	fmt.Printf("Feature rows: %d, complete windows: %d\n", ds.Features.Len(), windows)

	cfg := trainer.DefaultConfig()
	cfg.Folds = *folds
	cfg.HoldoutFraction = *holdout
	cfg.Sequence.Seed = seed
	cfg.Sequence.WindowLength = *window
	cfg.Sequence.MaxEpochs = *epochs
	cfg.Sequence.LearningRate = *lr
	cfg.Weather.Seed = seed
	cfg.Fusion.Seed = seed
	cfg.Fusion.MaxEpochs = *epochs
	cfg.Fusion.LearningRate = *lr

	repo, err := registry.NewFSRepository(*modelDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening model dir: %v\n", err)
		os.Exit(1)
	}
	reg := registry.New()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Training: folds=%d holdout=%.2f epochs=%d lr=%.4f seed=%d\n",
		cfg.Folds, cfg.HoldoutFraction, *epochs, *lr, *seed)

	start := time.Now()
	result, err := trainer.New(cfg, repo, reg, logger).Run(ctx, ds.Features)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Training failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Training finished in %s\n", time.Since(start).Round(time.Second))

	fmt.Println("\n=== Holdout Evaluation ===")
	for _, line := range result.Summary.Lines() {
		fmt.Println(line)
	}
	if best, ok := result.Summary.Best(); ok {
		fmt.Printf("\nBest by RMSE: %s (%.2f MW)\n", best.Model, best.RMSE)
	}

	fmt.Printf("\nModel set saved to %s (trained at %s)\n",
		*modelDir, result.Set.TrainedAt.Format(time.RFC3339))
}

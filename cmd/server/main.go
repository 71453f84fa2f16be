package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"powerpulse/internal/align"
	"powerpulse/internal/api"
	"powerpulse/internal/config"
	"powerpulse/internal/feature"
	"powerpulse/internal/ingest"
	"powerpulse/internal/model"
	"powerpulse/internal/registry"
	"powerpulse/internal/service"
	"powerpulse/internal/store"
	"powerpulse/internal/trainer"
	"powerpulse/internal/weatherapi"
	"powerpulse/internal/ws"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	logger.Info("Starting demand forecasting service")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	alignCfg := align.DefaultConfig()
	alignCfg.Interval = cfg.Pipeline.Interval
	alignCfg.MaxGap = cfg.Pipeline.MaxGap
	featCfg := feature.DefaultConfig()
	featCfg.WindowLength = cfg.Pipeline.WindowLength

	// Load every region's aligned history into the store.
	history := store.New()
	if err := loadHistory(cfg, alignCfg, history, logger); err != nil {
		logger.Fatal("Failed to load history", zap.Error(err))
	}

	// Restore the latest trained model set, if one exists.
	repo, err := registry.NewFSRepository(cfg.Data.ModelDir)
	if err != nil {
		logger.Fatal("Failed to open model dir", zap.Error(err))
	}
	reg := registry.New()
	if set, err := registry.LoadSet(repo); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("No trained model set found, predictions unavailable until training runs",
				zap.String("model_dir", cfg.Data.ModelDir))
		} else {
			logger.Fatal("Failed to load model set", zap.Error(err))
		}
	} else if err := reg.Publish(set); err != nil {
		logger.Fatal("Failed to publish model set", zap.Error(err))
	} else {
		logger.Info("Model set loaded", zap.Time("trained_at", set.TrainedAt))
	}

	// Live prediction feed.
	feed := ws.NewFeed(logger)

	svc := service.New(history, reg, cfg.Pipeline.Interval, nil, feed, logger)
	meteoCfg := weatherapi.DefaultConfig()
	meteoCfg.BaseURL = cfg.OpenMeteo.BaseURL
	meteoCfg.Latitude = cfg.OpenMeteo.Latitude
	meteoCfg.Longitude = cfg.OpenMeteo.Longitude
	meteoCfg.Timeout = cfg.OpenMeteo.Timeout
	meteo := weatherapi.NewClient(meteoCfg, logger)

	// Optional scheduled retraining.
	var sched *trainer.Scheduler
	if cfg.Training.RetrainCron != "" {
		trainCfg := trainer.DefaultConfig()
		trainCfg.Folds = cfg.Training.Folds
		trainCfg.HoldoutFraction = cfg.Training.HoldoutFraction
		trainCfg.Sequence.WindowLength = cfg.Pipeline.WindowLength

		t := trainer.New(trainCfg, repo, reg, logger)
		sched = trainer.NewScheduler(t, func() (*feature.Set, error) {
			ds, err := ingest.LoadDataset(ingest.DatasetConfig{
				LoadCSV:    cfg.Data.LoadCSV,
				WeatherCSV: cfg.Data.WeatherCSV,
				Region:     model.RegionDelhi,
				Align:      alignCfg,
				Feature:    featCfg,
			})
			if err != nil {
				return nil, err
			}
			return ds.Features, nil
		}, logger)
		sched.Notify = feed.PublishModelSwap
		if err := sched.Start(cfg.Training.RetrainCron); err != nil {
			logger.Fatal("Failed to start retrain scheduler", zap.Error(err))
		}
	}

	mux := http.NewServeMux()
	api.NewHandler(svc, meteo, logger).Routes(mux)
	mux.Handle("/ws/feed", ws.NewHandler(feed, logger))

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Starting server", zap.String("address", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	if sched != nil {
		sched.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}

// loadHistory parses the CSVs once and aligns every region that has load
// records, so per-region windows are servable.
func loadHistory(cfg *config.Config, alignCfg align.Config, history *store.History, logger *zap.Logger) error {
	lf, err := os.Open(cfg.Data.LoadCSV)
	if err != nil {
		return fmt.Errorf("opening load CSV: %w", err)
	}
	defer lf.Close()
	loads, err := (&ingest.LoadParser{}).Parse(lf)
	if err != nil {
		return fmt.Errorf("parsing load CSV: %w", err)
	}

	wf, err := os.Open(cfg.Data.WeatherCSV)
	if err != nil {
		return fmt.Errorf("opening weather CSV: %w", err)
	}
	defer wf.Close()
	weather, err := (&ingest.WeatherParser{}).Parse(wf)
	if err != nil {
		return fmt.Errorf("parsing weather CSV: %w", err)
	}

	byRegion := make(map[model.Region][]model.LoadRecord)
	for _, l := range loads {
		byRegion[l.Region] = append(byRegion[l.Region], l)
	}

	for _, region := range model.Regions {
		records := byRegion[region]
		if len(records) == 0 {
			continue
		}
		samples, err := align.Align(records, weather, alignCfg)
		if err != nil {
			return fmt.Errorf("aligning %s: %w", region, err)
		}
		history.Add(samples)
		logger.Info("History loaded",
			zap.String("region", string(region)),
			zap.Int("samples", len(samples)))
	}
	return nil
}

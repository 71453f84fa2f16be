// Package trainer orchestrates a full training run: the two base models
// train as independent tasks, a barrier joins them, and only then does the
// fusion stage train on their out-of-fold predictions.
package trainer

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"powerpulse/internal/eval"
	"powerpulse/internal/feature"
	"powerpulse/internal/forecast"
	"powerpulse/internal/model"
	"powerpulse/internal/registry"
)

// Config holds one training run's hyperparameters and split policy.
type Config struct {
	Sequence forecast.SequenceConfig
	Weather  forecast.WeatherConfig
	Fusion   forecast.FusionConfig
	// Folds is the cross-validation fold count for out-of-fold base
	// predictions.
	Folds int
	// HoldoutFraction is the chronological tail reserved for evaluation,
	// disjoint from all training.
	HoldoutFraction float64
}

// DefaultConfig returns the training defaults.
func DefaultConfig() Config {
	return Config{
		Sequence:        forecast.DefaultSequenceConfig(),
		Weather:         forecast.DefaultWeatherConfig(),
		Fusion:          forecast.DefaultFusionConfig(),
		Folds:           5,
		HoldoutFraction: 0.2,
	}
}

// Result is one completed training run.
type Result struct {
	Set     *registry.ModelSet
	Reports []model.EvaluationReport
	Summary eval.Summary
}

// Trainer runs training and publishes the resulting model set.
type Trainer struct {
	cfg    Config
	repo   registry.ArtifactRepository
	reg    *registry.Registry
	logger *zap.Logger
}

func New(cfg Config, repo registry.ArtifactRepository, reg *registry.Registry, logger *zap.Logger) *Trainer {
	return &Trainer{cfg: cfg, repo: repo, reg: reg, logger: logger}
}

// Run trains all three models on one region's feature set, evaluates them on
// the held-out tail, persists the artifacts, and publishes the new set.
// Cancelling ctx stops the run between training epochs.
func (t *Trainer) Run(ctx context.Context, set *feature.Set) (*Result, error) {
	if set.Len() < 20 {
		return nil, fmt.Errorf("training needs at least 20 retained samples, got %d", set.Len())
	}

	split := splitChronological(set, t.cfg.HoldoutFraction)
	folds := forecast.NewFoldMap(split.trainTimestamps, t.cfg.Folds)

	t.logger.Info("Training run started",
		zap.String("region", string(set.Region)),
		zap.Int("train_samples", len(split.trainTimestamps)),
		zap.Int("holdout_samples", len(split.holdoutTimestamps)),
		zap.Int("folds", folds.K()))

	// Base models train independently; both must finish before fusion.
	var wg sync.WaitGroup
	var seqTask, weatherTask baseTask

	wg.Add(2)
	go func() {
		defer wg.Done()
		seqTask = t.trainSequence(ctx, split, folds)
	}()
	go func() {
		defer wg.Done()
		weatherTask = t.trainWeather(ctx, split, folds)
	}()
	wg.Wait()

	if seqTask.err != nil {
		return nil, fmt.Errorf("sequence training: %w", seqTask.err)
	}
	if weatherTask.err != nil {
		return nil, fmt.Errorf("weather training: %w", weatherTask.err)
	}

	fusion, fusionArtifact, err := t.trainFusion(ctx, split, seqTask.oof, weatherTask.oof)
	if err != nil {
		return nil, fmt.Errorf("fusion training: %w", err)
	}

	seq := seqTask.sequence
	weather := weatherTask.weather

	reports, err := t.evaluate(split, seq, weather, fusion)
	if err != nil {
		return nil, err
	}

	for _, a := range []*forecast.Artifact{seqTask.artifact, weatherTask.artifact, fusionArtifact} {
		if err := t.repo.Save(a); err != nil {
			return nil, fmt.Errorf("persisting %s artifact: %w", a.Model, err)
		}
	}

	modelSet := &registry.ModelSet{
		Sequence:      seq,
		Weather:       weather,
		Fusion:        fusion,
		SchemaVersion: forecast.SchemaVersion,
		TrainedAt:     fusionArtifact.TrainedAt,
	}
	if err := t.reg.Publish(modelSet); err != nil {
		return nil, err
	}

	t.logger.Info("Training run completed",
		zap.String("region", string(set.Region)),
		zap.Time("trained_at", modelSet.TrainedAt))

	return &Result{
		Set:     modelSet,
		Reports: reports,
		Summary: eval.Summary{Reports: reports},
	}, nil
}

// baseTask is the outcome slot for one base model's training goroutine.
type baseTask struct {
	sequence *forecast.SequenceForecaster
	weather  *forecast.WeatherRegressor
	artifact *forecast.Artifact
	// oof maps timestamp (UnixNano) to the out-of-fold prediction made by a
	// fold model that never saw that timestamp.
	oof map[int64]float64
	err error
}

func (t *Trainer) trainSequence(ctx context.Context, split datasetSplit, folds *forecast.FoldMap) baseTask {
	examples := split.seqTrain
	oof, err := t.outOfFold(ctx, examples, folds, func() forecast.Forecaster {
		return forecast.NewSequenceForecaster(t.cfg.Sequence)
	})
	if err != nil {
		return baseTask{err: err}
	}

	final := forecast.NewSequenceForecaster(t.cfg.Sequence)
	artifact, err := final.Train(ctx, examples)
	if err != nil {
		return baseTask{err: err}
	}
	return baseTask{sequence: final, artifact: artifact, oof: oof}
}

func (t *Trainer) trainWeather(ctx context.Context, split datasetSplit, folds *forecast.FoldMap) baseTask {
	examples := split.weatherTrain
	oof, err := t.outOfFold(ctx, examples, folds, func() forecast.Forecaster {
		return forecast.NewWeatherRegressor(t.cfg.Weather)
	})
	if err != nil {
		return baseTask{err: err}
	}

	final := forecast.NewWeatherRegressor(t.cfg.Weather)
	artifact, err := final.Train(ctx, examples)
	if err != nil {
		return baseTask{err: err}
	}
	return baseTask{weather: final, artifact: artifact, oof: oof}
}

// outOfFold trains one fresh model per fold on the other folds and predicts
// the held fold, so no prediction comes from a model that saw its timestamp.
func (t *Trainer) outOfFold(ctx context.Context, examples []forecast.Example, folds *forecast.FoldMap, fresh func() forecast.Forecaster) (map[int64]float64, error) {
	oof := make(map[int64]float64, len(examples))
	for f := 0; f < folds.K(); f++ {
		train, held := folds.Split(examples, f)
		if len(held) == 0 {
			continue
		}
		if len(train) < 2 {
			return nil, fmt.Errorf("fold %d leaves too few training examples (%d)", f, len(train))
		}

		m := fresh()
		if _, err := m.Train(ctx, train); err != nil {
			return nil, fmt.Errorf("fold %d: %w", f, err)
		}
		for _, ex := range held {
			pred, err := m.Predict(ex.Input)
			if err != nil {
				return nil, fmt.Errorf("fold %d prediction: %w", f, err)
			}
			oof[ex.Timestamp.UnixNano()] = pred
		}
	}
	return oof, nil
}

// trainFusion pairs out-of-fold base predictions by timestamp and fits the
// combiner. Only timestamps present in both base outputs participate.
func (t *Trainer) trainFusion(ctx context.Context, split datasetSplit, seqOOF, weatherOOF map[int64]float64) (*forecast.FusionMetaLearner, *forecast.Artifact, error) {
	var examples []forecast.Example
	for i, ts := range split.trainTimestamps {
		key := ts.UnixNano()
		sp, okS := seqOOF[key]
		wp, okW := weatherOOF[key]
		if !okS || !okW {
			continue
		}
		examples = append(examples, forecast.Example{
			Timestamp: ts,
			Input:     []float64{sp, wp},
			Target:    split.trainTargets[i],
		})
	}
	if len(examples) < 2 {
		return nil, nil, fmt.Errorf("no overlapping out-of-fold predictions to train on")
	}

	fusion := forecast.NewFusionMetaLearner(t.cfg.Fusion)
	artifact, err := fusion.Train(ctx, examples)
	if err != nil {
		return nil, nil, err
	}
	return fusion, artifact, nil
}

package forecast

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"powerpulse/internal/model"
)

// sequenceExamples builds (window, next-value) pairs over a daily sine load
// curve around 3000 MW.
func sequenceExamples(n, window int) []Example {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	series := make([]float64, n+window)
	for i := range series {
		series[i] = 3000 + 400*math.Sin(2*math.Pi*float64(i)/24)
	}
	examples := make([]Example, n)
	for i := range examples {
		in := make([]float64, window)
		copy(in, series[i:i+window])
		examples[i] = Example{
			Timestamp: start.Add(time.Duration(i+window) * time.Hour),
			Input:     in,
			Target:    series[i+window],
		}
	}
	return examples
}

func fastSequenceConfig(window int) SequenceConfig {
	cfg := DefaultSequenceConfig()
	cfg.WindowLength = window
	cfg.HiddenWidth = 16
	cfg.MaxEpochs = 60
	return cfg
}

func TestSequenceForecaster_TrainAndPredict(t *testing.T) {
	const window = 24
	examples := sequenceExamples(200, window)

	fc := NewSequenceForecaster(fastSequenceConfig(window))
	artifact, err := fc.Train(context.Background(), examples)
	require.NoError(t, err)
	require.True(t, fc.Trained())
	assert.True(t, artifact.Seeded)
	assert.Equal(t, ModelSequence, artifact.Model)
	assert.Equal(t, SchemaVersion, artifact.SchemaVersion)

	// Predictions stay on the load scale the series lives on.
	pred, err := fc.Predict(examples[50].Input)
	require.NoError(t, err)
	assert.Greater(t, pred, 1000.0)
	assert.Less(t, pred, 5000.0)
}

func TestSequenceForecaster_SeededDeterminism(t *testing.T) {
	const window = 12
	examples := sequenceExamples(100, window)
	cfg := fastSequenceConfig(window)
	cfg.MaxEpochs = 20

	a := NewSequenceForecaster(cfg)
	_, err := a.Train(context.Background(), examples)
	require.NoError(t, err)

	b := NewSequenceForecaster(cfg)
	_, err = b.Train(context.Background(), examples)
	require.NoError(t, err)

	predA, err := a.Predict(examples[10].Input)
	require.NoError(t, err)
	predB, err := b.Predict(examples[10].Input)
	require.NoError(t, err)
	assert.Equal(t, predA, predB, "same seed and data must reproduce the model exactly")
}

func TestSequenceForecaster_ArtifactRoundtrip(t *testing.T) {
	const window = 12
	examples := sequenceExamples(100, window)
	cfg := fastSequenceConfig(window)
	cfg.MaxEpochs = 20

	fc := NewSequenceForecaster(cfg)
	artifact, err := fc.Train(context.Background(), examples)
	require.NoError(t, err)

	restored, err := LoadSequenceForecaster(artifact)
	require.NoError(t, err)
	assert.Equal(t, window, restored.WindowLength())
	assert.True(t, restored.Seeded())

	for _, i := range []int{0, 25, 99} {
		want, err := fc.Predict(examples[i].Input)
		require.NoError(t, err)
		got, err := restored.Predict(examples[i].Input)
		require.NoError(t, err)
		assert.Equal(t, want, got, "example %d", i)
	}
}

func TestSequenceForecaster_InputValidation(t *testing.T) {
	const window = 12
	examples := sequenceExamples(100, window)
	cfg := fastSequenceConfig(window)
	cfg.MaxEpochs = 10

	fc := NewSequenceForecaster(cfg)
	_, err := fc.Train(context.Background(), examples)
	require.NoError(t, err)

	t.Run("wrong window length", func(t *testing.T) {
		_, err := fc.Predict(make([]float64, window-1))
		require.Error(t, err)
	})

	t.Run("non-finite window value", func(t *testing.T) {
		in := make([]float64, window)
		in[3] = math.NaN()
		_, err := fc.Predict(in)
		require.Error(t, err)
	})

	t.Run("nil window", func(t *testing.T) {
		_, err := fc.PredictWindow(nil)
		var unavailable *model.UnavailableWindowError
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, window, unavailable.Need)
	})

	t.Run("untrained predict", func(t *testing.T) {
		fresh := NewSequenceForecaster(cfg)
		_, err := fresh.Predict(make([]float64, window))
		require.Error(t, err)
	})

	t.Run("mismatched training window", func(t *testing.T) {
		bad := sequenceExamples(10, window-2)
		_, err := NewSequenceForecaster(cfg).Train(context.Background(), bad)
		require.Error(t, err)
	})
}

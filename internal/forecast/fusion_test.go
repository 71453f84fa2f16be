package forecast

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"powerpulse/internal/model"
)

// fusionExamples builds [sequence_pred, weather_pred] inputs. seqNoise and
// weatherNoise control how far each base prediction strays from the target.
func fusionExamples(n int, seqNoise, weatherNoise float64) []Example {
	rng := rand.New(rand.NewPCG(11, 0))
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	examples := make([]Example, n)
	for i := range examples {
		target := 2500 + 500*math.Sin(2*math.Pi*float64(i)/24)
		examples[i] = Example{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Input: []float64{
				target + rng.NormFloat64()*seqNoise,
				target + rng.NormFloat64()*weatherNoise,
			},
			Target: target,
		}
	}
	return examples
}

func TestFusionMetaLearner_NeverWorseThanBestInput(t *testing.T) {
	// The sequence input is exact; a net cannot beat a zero-error passthrough,
	// so the combiner must fall back to it.
	examples := fusionExamples(200, 0, 300)

	f := NewFusionMetaLearner(DefaultFusionConfig())
	_, err := f.Train(context.Background(), examples)
	require.NoError(t, err)

	for _, ex := range examples[:20] {
		fused, err := f.Combine(ex.Input[0], ex.Input[1])
		require.NoError(t, err)
		assert.Equal(t, ex.Input[0], fused, "exact input passes through untouched")
	}
}

func TestFusionMetaLearner_TrainAndCombine(t *testing.T) {
	examples := fusionExamples(300, 80, 150)

	cfg := DefaultFusionConfig()
	cfg.MaxEpochs = 60
	f := NewFusionMetaLearner(cfg)
	artifact, err := f.Train(context.Background(), examples)
	require.NoError(t, err)
	require.True(t, f.Trained())
	assert.Equal(t, ModelFusion, artifact.Model)

	// Fused error over the whole set stays at or below the best base input's.
	var fusedSSE, seqSSE, weatherSSE float64
	for _, ex := range examples {
		fused, err := f.Combine(ex.Input[0], ex.Input[1])
		require.NoError(t, err)
		fusedSSE += (fused - ex.Target) * (fused - ex.Target)
		seqSSE += (ex.Input[0] - ex.Target) * (ex.Input[0] - ex.Target)
		weatherSSE += (ex.Input[1] - ex.Target) * (ex.Input[1] - ex.Target)
	}
	best := math.Min(seqSSE, weatherSSE)
	assert.LessOrEqual(t, fusedSSE, best*1.05,
		"fusion must not be materially worse than its best input")
}

func TestFusionMetaLearner_ArtifactRoundtrip(t *testing.T) {
	cfg := DefaultFusionConfig()
	cfg.MaxEpochs = 30
	f := NewFusionMetaLearner(cfg)
	artifact, err := f.Train(context.Background(), fusionExamples(150, 60, 120))
	require.NoError(t, err)

	restored, err := LoadFusionMetaLearner(artifact)
	require.NoError(t, err)

	for _, pair := range [][2]float64{{2400, 2600}, {3000, 2900}, {2000, 2100}} {
		want, err := f.Combine(pair[0], pair[1])
		require.NoError(t, err)
		got, err := restored.Combine(pair[0], pair[1])
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestFusionMetaLearner_InputValidation(t *testing.T) {
	cfg := DefaultFusionConfig()
	cfg.MaxEpochs = 20
	f := NewFusionMetaLearner(cfg)
	_, err := f.Train(context.Background(), fusionExamples(100, 50, 100))
	require.NoError(t, err)

	t.Run("non-finite sequence input", func(t *testing.T) {
		_, err := f.Combine(math.NaN(), 2500)
		var fusionErr *model.FusionInputError
		require.ErrorAs(t, err, &fusionErr)
		assert.Equal(t, "sequence_pred", fusionErr.Missing)
	})

	t.Run("non-finite weather input", func(t *testing.T) {
		_, err := f.Combine(2500, math.Inf(-1))
		var fusionErr *model.FusionInputError
		require.ErrorAs(t, err, &fusionErr)
		assert.Equal(t, "weather_pred", fusionErr.Missing)
	})

	t.Run("short input", func(t *testing.T) {
		_, err := f.Predict([]float64{2500})
		var fusionErr *model.FusionInputError
		require.ErrorAs(t, err, &fusionErr)
	})

	t.Run("untrained combine", func(t *testing.T) {
		_, err := NewFusionMetaLearner(cfg).Combine(2500, 2600)
		require.Error(t, err)
	})

	t.Run("training rejects non-finite base prediction", func(t *testing.T) {
		examples := fusionExamples(50, 50, 100)
		examples[7].Input[1] = math.NaN()
		_, err := NewFusionMetaLearner(cfg).Train(context.Background(), examples)
		var fusionErr *model.FusionInputError
		require.ErrorAs(t, err, &fusionErr)
	})
}

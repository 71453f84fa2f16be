package registry

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"powerpulse/internal/forecast"
)

type testArtifacts struct {
	seq, weather, fusion *forecast.Artifact
}

// trainTestModels fits one tiny model of each family on synthetic data and
// returns the models with their artifacts.
func trainTestModels(t *testing.T) (*forecast.SequenceForecaster, *forecast.WeatherRegressor, *forecast.FusionMetaLearner, testArtifacts) {
	t.Helper()
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(3, 0))
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	const window = 4
	seqCfg := forecast.DefaultSequenceConfig()
	seqCfg.WindowLength = window
	seqCfg.HiddenWidth = 8
	seqCfg.MaxEpochs = 5

	seqExamples := make([]forecast.Example, 60)
	for i := range seqExamples {
		in := make([]float64, window)
		for j := range in {
			in[j] = 2000 + 100*math.Sin(float64(i+j))
		}
		seqExamples[i] = forecast.Example{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Input:     in,
			Target:    2000 + 100*math.Sin(float64(i+window)),
		}
	}
	seq := forecast.NewSequenceForecaster(seqCfg)
	seqArt, err := seq.Train(ctx, seqExamples)
	require.NoError(t, err)

	weatherCfg := forecast.DefaultWeatherConfig()
	weatherCfg.NEstimators = 10
	weatherExamples := make([]forecast.Example, 60)
	for i := range weatherExamples {
		x := rng.Float64() * 40
		weatherExamples[i] = forecast.Example{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Input:     []float64{x, rng.Float64()},
			Target:    2000 + 40*x,
		}
	}
	weather := forecast.NewWeatherRegressor(weatherCfg)
	weatherArt, err := weather.Train(ctx, weatherExamples)
	require.NoError(t, err)

	fusionCfg := forecast.DefaultFusionConfig()
	fusionCfg.MaxEpochs = 5
	fusionExamples := make([]forecast.Example, 60)
	for i := range fusionExamples {
		target := 2500 + 300*math.Sin(float64(i))
		fusionExamples[i] = forecast.Example{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Input:     []float64{target + rng.NormFloat64()*50, target + rng.NormFloat64()*90},
			Target:    target,
		}
	}
	fusion := forecast.NewFusionMetaLearner(fusionCfg)
	fusionArt, err := fusion.Train(ctx, fusionExamples)
	require.NoError(t, err)

	return seq, weather, fusion, testArtifacts{seq: seqArt, weather: weatherArt, fusion: fusionArt}
}

func testModelSet(t *testing.T, trainedAt time.Time) *ModelSet {
	t.Helper()
	seq, weather, fusion, _ := trainTestModels(t)
	return &ModelSet{
		Sequence:      seq,
		Weather:       weather,
		Fusion:        fusion,
		SchemaVersion: forecast.SchemaVersion,
		TrainedAt:     trainedAt,
	}
}

func TestRegistry_PublishAndCurrent(t *testing.T) {
	r := New()
	_, ok := r.Current()
	assert.False(t, ok, "empty registry serves nothing")

	set := testModelSet(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, r.Publish(set))

	got, ok := r.Current()
	require.True(t, ok)
	assert.Same(t, set, got)
}

func TestRegistry_RejectsIncompleteSet(t *testing.T) {
	r := New()
	set := testModelSet(t, time.Now())

	broken := *set
	broken.Weather = nil
	require.Error(t, r.Publish(&broken))
	require.Error(t, r.Publish(nil))

	_, ok := r.Current()
	assert.False(t, ok, "failed publishes leave nothing behind")
}

func TestRegistry_RejectsSchemaMismatch(t *testing.T) {
	r := New()
	set := testModelSet(t, time.Now())
	set.SchemaVersion = "v0"
	require.Error(t, r.Publish(set))
}

func TestRegistry_RequiresStrictlyLaterTrainedAt(t *testing.T) {
	r := New()
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	first := testModelSet(t, at)
	require.NoError(t, r.Publish(first))

	same := testModelSet(t, at)
	require.Error(t, r.Publish(same), "equal TrainedAt does not supersede")

	older := testModelSet(t, at.Add(-time.Hour))
	require.Error(t, r.Publish(older))

	newer := testModelSet(t, at.Add(time.Hour))
	require.NoError(t, r.Publish(newer))

	got, ok := r.Current()
	require.True(t, ok)
	assert.Same(t, newer, got)
}

func TestRegistry_ReadersNeverSeeMixedSets(t *testing.T) {
	r := New()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	sets := []*ModelSet{
		testModelSet(t, base),
		testModelSet(t, base.Add(time.Hour)),
		testModelSet(t, base.Add(2*time.Hour)),
	}
	known := map[*ModelSet]bool{sets[0]: true, sets[1]: true, sets[2]: true}
	require.NoError(t, r.Publish(sets[0]))

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				set, ok := r.Current()
				if !ok {
					t.Error("registry lost its published set")
					return
				}
				// A served set is always one that was published whole.
				if !known[set] {
					t.Error("observed a model set that was never published")
					return
				}
			}
		}()
	}

	require.NoError(t, r.Publish(sets[1]))
	require.NoError(t, r.Publish(sets[2]))
	close(stop)
	wg.Wait()

	got, _ := r.Current()
	assert.Same(t, sets[2], got)
}

func TestFSRepository_SaveAndLatest(t *testing.T) {
	repo, err := NewFSRepository(t.TempDir())
	require.NoError(t, err)

	older := &forecast.Artifact{
		Model:         forecast.ModelWeather,
		SchemaVersion: forecast.SchemaVersion,
		TrainedAt:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Params:        []byte(`{"marker":"older"}`),
	}
	newer := &forecast.Artifact{
		Model:         forecast.ModelWeather,
		SchemaVersion: forecast.SchemaVersion,
		TrainedAt:     time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Params:        []byte(`{"marker":"newer"}`),
	}
	require.NoError(t, repo.Save(older))
	require.NoError(t, repo.Save(newer))

	got, err := repo.Latest(forecast.ModelWeather)
	require.NoError(t, err)
	assert.Equal(t, newer.TrainedAt.UnixNano(), got.TrainedAt.UnixNano())
	assert.JSONEq(t, `{"marker":"newer"}`, string(got.Params))
}

func TestFSRepository_LatestMissing(t *testing.T) {
	repo, err := NewFSRepository(t.TempDir())
	require.NoError(t, err)

	_, err = repo.Latest(forecast.ModelSequence)
	require.Error(t, err)
}

func TestLoadSet_Roundtrip(t *testing.T) {
	repo, err := NewFSRepository(t.TempDir())
	require.NoError(t, err)

	seq, _, _, arts := trainTestModels(t)

	require.NoError(t, repo.Save(arts.seq))
	require.NoError(t, repo.Save(arts.weather))
	require.NoError(t, repo.Save(arts.fusion))

	set, err := LoadSet(repo)
	require.NoError(t, err)
	assert.Equal(t, forecast.SchemaVersion, set.SchemaVersion)
	require.NotNil(t, set.Sequence)
	require.NotNil(t, set.Weather)
	require.NotNil(t, set.Fusion)

	latest := arts.seq.TrainedAt
	for _, at := range []time.Time{arts.weather.TrainedAt, arts.fusion.TrainedAt} {
		if at.After(latest) {
			latest = at
		}
	}
	assert.Equal(t, latest.UnixNano(), set.TrainedAt.UnixNano())

	// The restored sequence model reproduces the in-memory one.
	in := []float64{2000, 2050, 2100, 2080}
	want, err := seq.Predict(in)
	require.NoError(t, err)
	got, err := set.Sequence.Predict(in)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

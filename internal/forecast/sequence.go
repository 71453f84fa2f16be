package forecast

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"powerpulse/internal/model"
)

// SequenceConfig holds the sequence model hyperparameters.
type SequenceConfig struct {
	WindowLength      int     `json:"window_length"`
	HiddenWidth       int     `json:"hidden_width"`
	Regularization    float64 `json:"regularization_strength"`
	LearningRate      float64 `json:"optimizer_learning_rate"`
	MaxEpochs         int     `json:"max_epochs"`
	EarlyStopPatience int     `json:"early_stop_patience"`
	// Seed fixes the training RNG for reproducible runs. Nil lets runs vary;
	// the artifact records which.
	Seed *uint64 `json:"seed,omitempty"`
}

// DefaultSequenceConfig uses a two-day hourly window.
func DefaultSequenceConfig() SequenceConfig {
	seed := uint64(42)
	return SequenceConfig{
		WindowLength:      48,
		HiddenWidth:       64,
		Regularization:    1e-4,
		LearningRate:      0.005,
		MaxEpochs:         200,
		EarlyStopPatience: 15,
		Seed:              &seed,
	}
}

// SequenceForecaster predicts load from an ordered window of recent load
// values. Window and target share one z-score normalization since they are
// the same physical quantity.
type SequenceForecaster struct {
	cfg    SequenceConfig
	net    *Network
	norm   Normalization
	seeded bool
}

type sequenceParams struct {
	Config  SequenceConfig `json:"config"`
	Network *Network       `json:"network"`
	Norm    Normalization  `json:"normalization"`
}

// NewSequenceForecaster creates an untrained sequence model.
func NewSequenceForecaster(cfg SequenceConfig) *SequenceForecaster {
	return &SequenceForecaster{cfg: cfg}
}

func (s *SequenceForecaster) Name() string      { return ModelSequence }
func (s *SequenceForecaster) WindowLength() int { return s.cfg.WindowLength }
func (s *SequenceForecaster) Trained() bool     { return s.net != nil }

// Train fits the network on (window, target) pairs and returns the artifact.
func (s *SequenceForecaster) Train(ctx context.Context, examples []Example) (*Artifact, error) {
	if len(examples) < 2 {
		return nil, fmt.Errorf("sequence training needs at least 2 examples, got %d", len(examples))
	}
	for _, ex := range examples {
		if len(ex.Input) != s.cfg.WindowLength {
			return nil, fmt.Errorf("sequence example at %s has window length %d, want %d",
				ex.Timestamp.Format(time.RFC3339), len(ex.Input), s.cfg.WindowLength)
		}
	}

	rng, seeded := newRNG(s.cfg.Seed)

	// Normalize windows and targets against the pooled load distribution.
	all := make([]float64, 0, len(examples)*(s.cfg.WindowLength+1))
	for _, ex := range examples {
		all = append(all, ex.Input...)
		all = append(all, ex.Target)
	}
	norm := FitNormalization(all)

	X := make([][]float64, len(examples))
	Y := make([][]float64, len(examples))
	for i, ex := range examples {
		row := make([]float64, s.cfg.WindowLength)
		for j, v := range ex.Input {
			row[j] = norm.Apply(v)
		}
		X[i] = row
		Y[i] = []float64{norm.Apply(ex.Target)}
	}

	trainX, trainY, valX, valY := shuffleSplit(X, Y, rng)
	sizes := []int{s.cfg.WindowLength, s.cfg.HiddenWidth, s.cfg.HiddenWidth / 2, 1}
	net := NewNetwork(sizes, ActivationReLU, rng)

	trainCfg := DefaultNetTrainConfig()
	trainCfg.LearningRate = s.cfg.LearningRate
	trainCfg.L2 = s.cfg.Regularization
	trainCfg.MaxEpochs = s.cfg.MaxEpochs
	trainCfg.Patience = s.cfg.EarlyStopPatience

	if _, err := net.Train(ctx, ModelSequence, trainX, trainY, valX, valY, trainCfg, rng); err != nil {
		return nil, err
	}

	s.net = net
	s.norm = norm
	s.seeded = seeded

	return NewArtifact(ModelSequence, seeded, sequenceParams{
		Config:  s.cfg,
		Network: net,
		Norm:    norm,
	})
}

// Predict maps one window (raw MW values, oldest first) to a load prediction.
func (s *SequenceForecaster) Predict(input []float64) (float64, error) {
	if s.net == nil {
		return 0, fmt.Errorf("sequence model is not trained")
	}
	if len(input) != s.cfg.WindowLength {
		return 0, fmt.Errorf("window length %d, want %d", len(input), s.cfg.WindowLength)
	}
	row := make([]float64, len(input))
	for i, v := range input {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("non-finite window value at offset %d", i)
		}
		row[i] = s.norm.Apply(v)
	}
	return s.norm.Restore(s.net.Forward(row)[0]), nil
}

// PredictWindow predicts from a built LoadWindow, failing with
// UnavailableWindowError when the window was never built.
func (s *SequenceForecaster) PredictWindow(w *model.LoadWindow) (float64, error) {
	if w == nil {
		return 0, &model.UnavailableWindowError{Need: s.cfg.WindowLength}
	}
	return s.Predict(w.Values)
}

// Seeded reports whether the trained parameters came from a seeded run.
func (s *SequenceForecaster) Seeded() bool { return s.seeded }

// LoadSequenceForecaster restores a trained sequence model from its artifact.
func LoadSequenceForecaster(a *Artifact) (*SequenceForecaster, error) {
	var p sequenceParams
	if err := a.Decode(ModelSequence, &p); err != nil {
		return nil, err
	}
	return &SequenceForecaster{
		cfg:    p.Config,
		net:    p.Network,
		norm:   p.Norm,
		seeded: a.Seeded,
	}, nil
}

// newRNG builds the training RNG. A nil seed draws entropy from the clock and
// marks the run as unseeded.
func newRNG(seed *uint64) (*rand.Rand, bool) {
	if seed != nil {
		return rand.New(rand.NewPCG(*seed, 0)), true
	}
	return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)), false
}

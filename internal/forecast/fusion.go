package forecast

import (
	"context"
	"fmt"
	"math"

	"powerpulse/internal/model"
)

// FusionConfig holds the meta-learner hyperparameters.
type FusionConfig struct {
	HiddenLayerWidths []int      `json:"hidden_layer_widths"`
	Activation        Activation `json:"activation"`
	Regularization    float64    `json:"regularization_strength"`
	LearningRate      float64    `json:"learning_rate"`
	MaxEpochs         int        `json:"max_epochs"`
	Seed              *uint64    `json:"seed,omitempty"`
}

// DefaultFusionConfig returns the combiner defaults.
func DefaultFusionConfig() FusionConfig {
	seed := uint64(42)
	return FusionConfig{
		HiddenLayerWidths: []int{16, 8},
		Activation:        ActivationReLU,
		Regularization:    1e-4,
		LearningRate:      0.005,
		MaxEpochs:         200,
		Seed:              &seed,
	}
}

// Passthrough indices recorded by the fallback guard.
const (
	passthroughNone    = 0
	passthroughSeq     = 1
	passthroughWeather = 2
)

// FusionMetaLearner combines the two base-model outputs into the final
// prediction with a small feed-forward network. Training inputs must be
// out-of-fold base predictions; in-sample predictions would leak the base
// models' memorization into the combiner.
//
// After training, the network is kept only if it clearly beats the better of
// its two inputs on the validation split; otherwise prediction passes through
// that input, so fusion never performs worse than its best input.
type FusionMetaLearner struct {
	cfg         FusionConfig
	net         *Network
	norm        Normalization
	passthrough int
	seeded      bool
}

type fusionParams struct {
	Config      FusionConfig  `json:"config"`
	Network     *Network      `json:"network"`
	Norm        Normalization `json:"normalization"`
	Passthrough int           `json:"passthrough"`
}

// NewFusionMetaLearner creates an untrained combiner.
func NewFusionMetaLearner(cfg FusionConfig) *FusionMetaLearner {
	return &FusionMetaLearner{cfg: cfg}
}

func (f *FusionMetaLearner) Name() string  { return ModelFusion }
func (f *FusionMetaLearner) Trained() bool { return f.net != nil }
func (f *FusionMetaLearner) Seeded() bool  { return f.seeded }

// Train fits the combiner on examples whose Input is
// [sequence_pred, weather_pred], both out-of-fold.
func (f *FusionMetaLearner) Train(ctx context.Context, examples []Example) (*Artifact, error) {
	if len(examples) < 2 {
		return nil, fmt.Errorf("fusion training needs at least 2 examples, got %d", len(examples))
	}
	for _, ex := range examples {
		if len(ex.Input) < 2 {
			return nil, &model.FusionInputError{Missing: "base prediction pair"}
		}
		for _, v := range ex.Input {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &model.FusionInputError{Missing: "finite base prediction"}
			}
		}
	}

	rng, seeded := newRNG(f.cfg.Seed)

	// Base predictions and targets live on the same MW scale; normalize them
	// together.
	all := make([]float64, 0, len(examples)*3)
	for _, ex := range examples {
		all = append(all, ex.Input...)
		all = append(all, ex.Target)
	}
	norm := FitNormalization(all)

	inWidth := len(examples[0].Input)
	X := make([][]float64, len(examples))
	Y := make([][]float64, len(examples))
	for i, ex := range examples {
		row := make([]float64, inWidth)
		for j, v := range ex.Input {
			row[j] = norm.Apply(v)
		}
		X[i] = row
		Y[i] = []float64{norm.Apply(ex.Target)}
	}

	trainX, trainY, valX, valY := shuffleSplit(X, Y, rng)

	sizes := append([]int{inWidth}, f.cfg.HiddenLayerWidths...)
	sizes = append(sizes, 1)
	net := NewNetwork(sizes, f.cfg.Activation, rng)

	trainCfg := DefaultNetTrainConfig()
	trainCfg.LearningRate = f.cfg.LearningRate
	trainCfg.L2 = f.cfg.Regularization
	trainCfg.MaxEpochs = f.cfg.MaxEpochs

	if _, err := net.Train(ctx, ModelFusion, trainX, trainY, valX, valY, trainCfg, rng); err != nil {
		return nil, err
	}

	f.net = net
	f.norm = norm
	f.seeded = seeded
	f.passthrough = pickPassthrough(net, valX, valY)

	return NewArtifact(ModelFusion, seeded, fusionParams{
		Config:      f.cfg,
		Network:     net,
		Norm:        norm,
		Passthrough: f.passthrough,
	})
}

// pickPassthrough compares the trained network against each input used as-is
// on the validation split. The network wins only when its MSE is at least 10%
// below the best passthrough; ties go to the passthrough, which guarantees
// fused error never exceeds the best base model's.
func pickPassthrough(net *Network, valX, valY [][]float64) int {
	netMSE := net.MSELoss(valX, valY)

	passMSE := func(col int) float64 {
		if len(valX) == 0 {
			return 0
		}
		var sum float64
		for i := range valX {
			d := valX[i][col] - valY[i][0]
			sum += d * d
		}
		return sum / float64(len(valX))
	}
	seqMSE := passMSE(0)
	weatherMSE := passMSE(1)

	best := passthroughSeq
	bestMSE := seqMSE
	if weatherMSE < bestMSE {
		best = passthroughWeather
		bestMSE = weatherMSE
	}
	if netMSE < 0.9*bestMSE {
		return passthroughNone
	}
	return best
}

// Predict maps [sequence_pred, weather_pred] to the final load prediction.
func (f *FusionMetaLearner) Predict(input []float64) (float64, error) {
	if f.net == nil {
		return 0, fmt.Errorf("fusion model is not trained")
	}
	if len(input) < 2 {
		return 0, &model.FusionInputError{Missing: "base prediction pair"}
	}
	names := []string{"sequence_pred", "weather_pred"}
	for i, v := range input {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			name := fmt.Sprintf("input %d", i)
			if i < len(names) {
				name = names[i]
			}
			return 0, &model.FusionInputError{Missing: name}
		}
	}

	switch f.passthrough {
	case passthroughSeq:
		return input[0], nil
	case passthroughWeather:
		return input[1], nil
	}

	row := make([]float64, len(input))
	for i, v := range input {
		row[i] = f.norm.Apply(v)
	}
	return f.norm.Restore(f.net.Forward(row)[0]), nil
}

// Combine fuses one sequence and one weather prediction. Missing inputs are
// an error; fusion never substitutes defaults.
func (f *FusionMetaLearner) Combine(seqPred, weatherPred float64) (float64, error) {
	return f.Predict([]float64{seqPred, weatherPred})
}

// LoadFusionMetaLearner restores a trained combiner from its artifact.
func LoadFusionMetaLearner(a *Artifact) (*FusionMetaLearner, error) {
	var p fusionParams
	if err := a.Decode(ModelFusion, &p); err != nil {
		return nil, err
	}
	return &FusionMetaLearner{
		cfg:         p.Config,
		net:         p.Network,
		norm:        p.Norm,
		passthrough: p.Passthrough,
		seeded:      a.Seeded,
	}, nil
}

package forecast

import (
	"context"
	"encoding/json"
	"math"
	"math/rand/v2"

	"powerpulse/internal/model"
)

// Activation selects the hidden-layer non-linearity.
type Activation string

const (
	ActivationReLU Activation = "relu"
	ActivationTanh Activation = "tanh"
)

// Layer is a fully-connected layer.
type Layer struct {
	Weights [][]float64 `json:"weights"` // [out][in]
	Biases  []float64   `json:"biases"`

	// Adam optimizer state (not serialized).
	mW, vW [][]float64
	mB, vB []float64

	// Cached activations for backprop (not serialized).
	input  []float64
	output []float64
	dW     [][]float64
	dB     []float64
}

// Network is a feedforward net with a configurable hidden activation and a
// linear output. It backs both the sequence forecaster and the fusion
// combiner.
type Network struct {
	Layers     []Layer    `json:"layers"`
	Activation Activation `json:"activation"`
}

// NetTrainConfig holds the optimizer hyperparameters.
type NetTrainConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	// L2 is the weight-decay strength added to the weight gradients.
	L2        float64
	BatchSize int
	MaxEpochs int
	// Patience stops training after this many epochs without validation
	// improvement. Zero disables early stopping.
	Patience int
}

// DefaultNetTrainConfig returns the optimizer defaults.
func DefaultNetTrainConfig() NetTrainConfig {
	return NetTrainConfig{
		LearningRate: 0.005,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		L2:           1e-4,
		BatchSize:    64,
		MaxEpochs:    200,
		Patience:     15,
	}
}

// NewNetwork creates a network. He initialization for ReLU, Xavier for tanh.
// sizes lists the neuron count per layer, e.g. [48, 64, 32, 1].
func NewNetwork(sizes []int, activation Activation, rng *rand.Rand) *Network {
	n := &Network{
		Layers:     make([]Layer, len(sizes)-1),
		Activation: activation,
	}
	for i := 0; i < len(sizes)-1; i++ {
		in, out := sizes[i], sizes[i+1]
		stddev := math.Sqrt(2.0 / float64(in))
		if activation == ActivationTanh {
			stddev = math.Sqrt(1.0 / float64(in))
		}
		layer := Layer{
			Weights: make([][]float64, out),
			Biases:  make([]float64, out),
		}
		for j := 0; j < out; j++ {
			layer.Weights[j] = make([]float64, in)
			for k := 0; k < in; k++ {
				layer.Weights[j][k] = rng.NormFloat64() * stddev
			}
		}
		n.Layers[i] = layer
	}
	n.initAdam()
	return n
}

func (n *Network) initAdam() {
	for i := range n.Layers {
		l := &n.Layers[i]
		out := len(l.Weights)
		in := len(l.Weights[0])
		l.mW = makeMatrix(out, in)
		l.vW = makeMatrix(out, in)
		l.mB = make([]float64, out)
		l.vB = make([]float64, out)
		l.dW = makeMatrix(out, in)
		l.dB = make([]float64, out)
	}
}

func (n *Network) activate(v float64) float64 {
	if n.Activation == ActivationTanh {
		return math.Tanh(v)
	}
	if v < 0 {
		return 0
	}
	return v
}

// activateDeriv is the activation derivative expressed in terms of the
// activated output.
func (n *Network) activateDeriv(out float64) float64 {
	if n.Activation == ActivationTanh {
		return 1 - out*out
	}
	if out <= 0 {
		return 0
	}
	return 1
}

// Forward computes the network output, caching activations for backprop.
func (n *Network) Forward(input []float64) []float64 {
	x := input
	for i := range n.Layers {
		l := &n.Layers[i]
		l.input = make([]float64, len(x))
		copy(l.input, x)

		out := len(l.Weights)
		y := make([]float64, out)
		for j := 0; j < out; j++ {
			sum := l.Biases[j]
			for k, w := range l.Weights[j] {
				sum += w * x[k]
			}
			y[j] = sum
		}

		// Hidden layers are non-linear; the output layer stays linear.
		if i < len(n.Layers)-1 {
			for j := range y {
				y[j] = n.activate(y[j])
			}
		}

		l.output = y
		x = y
	}
	return x
}

// Backward accumulates gradients in layer.dW/.dB given dLoss/dOutput.
// Must follow a Forward call.
func (n *Network) Backward(dOutput []float64) {
	dx := dOutput
	for i := len(n.Layers) - 1; i >= 0; i-- {
		l := &n.Layers[i]
		out := len(l.Weights)
		in := len(l.Weights[0])

		if i < len(n.Layers)-1 {
			for j := 0; j < out; j++ {
				dx[j] *= n.activateDeriv(l.output[j])
			}
		}

		for j := 0; j < out; j++ {
			l.dB[j] += dx[j]
			for k := 0; k < in; k++ {
				l.dW[j][k] += dx[j] * l.input[k]
			}
		}

		if i > 0 {
			dInput := make([]float64, in)
			for k := 0; k < in; k++ {
				for j := 0; j < out; j++ {
					dInput[k] += dx[j] * l.Weights[j][k]
				}
			}
			dx = dInput
		}
	}
}

// ZeroGrad resets accumulated gradients.
func (n *Network) ZeroGrad() {
	for i := range n.Layers {
		l := &n.Layers[i]
		for j := range l.dW {
			for k := range l.dW[j] {
				l.dW[j][k] = 0
			}
		}
		for j := range l.dB {
			l.dB[j] = 0
		}
	}
}

// UpdateAdam applies one Adam step with L2 weight decay. step is 1-based.
func (n *Network) UpdateAdam(cfg NetTrainConfig, step int) {
	for i := range n.Layers {
		l := &n.Layers[i]
		for j := range l.Weights {
			for k := range l.Weights[j] {
				g := l.dW[j][k] + cfg.L2*l.Weights[j][k]
				l.mW[j][k] = cfg.Beta1*l.mW[j][k] + (1-cfg.Beta1)*g
				l.vW[j][k] = cfg.Beta2*l.vW[j][k] + (1-cfg.Beta2)*g*g
				mHat := l.mW[j][k] / (1 - math.Pow(cfg.Beta1, float64(step)))
				vHat := l.vW[j][k] / (1 - math.Pow(cfg.Beta2, float64(step)))
				l.Weights[j][k] -= cfg.LearningRate * mHat / (math.Sqrt(vHat) + cfg.Epsilon)
			}
		}
		for j := range l.Biases {
			g := l.dB[j]
			l.mB[j] = cfg.Beta1*l.mB[j] + (1-cfg.Beta1)*g
			l.vB[j] = cfg.Beta2*l.vB[j] + (1-cfg.Beta2)*g*g
			mHat := l.mB[j] / (1 - math.Pow(cfg.Beta1, float64(step)))
			vHat := l.vB[j] / (1 - math.Pow(cfg.Beta2, float64(step)))
			l.Biases[j] -= cfg.LearningRate * mHat / (math.Sqrt(vHat) + cfg.Epsilon)
		}
	}
}

// Train runs mini-batch Adam training with early stopping and returns the
// per-epoch validation MSE up to the epoch training stopped at.
//
// A non-finite validation loss aborts with TrainingDivergenceError; cancelling
// ctx aborts between epochs with ctx.Err(). name labels divergence errors.
func (n *Network) Train(ctx context.Context, name string, trainX, trainY, valX, valY [][]float64, cfg NetTrainConfig, rng *rand.Rand) ([]float64, error) {
	nTrain := len(trainX)
	indices := make([]int, nTrain)
	for i := range indices {
		indices[i] = i
	}

	step := 0
	var epochLosses []float64
	bestLoss := math.Inf(1)
	sinceBest := 0

	for epoch := 0; epoch < cfg.MaxEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return epochLosses, err
		}

		rng.Shuffle(nTrain, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		for batchStart := 0; batchStart < nTrain; batchStart += cfg.BatchSize {
			batchEnd := batchStart + cfg.BatchSize
			if batchEnd > nTrain {
				batchEnd = nTrain
			}
			batchSize := batchEnd - batchStart

			n.ZeroGrad()
			for b := batchStart; b < batchEnd; b++ {
				idx := indices[b]
				output := n.Forward(trainX[idx])
				// MSE gradient: 2*(pred - target) / batchSize
				dOutput := []float64{2 * (output[0] - trainY[idx][0]) / float64(batchSize)}
				n.Backward(dOutput)
			}

			step++
			n.UpdateAdam(cfg, step)
		}

		loss := n.MSELoss(valX, valY)
		epochLosses = append(epochLosses, loss)

		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return epochLosses, &model.TrainingDivergenceError{Model: name, Epoch: epoch, Loss: loss}
		}

		if loss < bestLoss {
			bestLoss = loss
			sinceBest = 0
		} else {
			sinceBest++
			if cfg.Patience > 0 && sinceBest >= cfg.Patience {
				break
			}
		}
	}

	return epochLosses, nil
}

// MSELoss computes mean squared error over a dataset.
func (n *Network) MSELoss(X, Y [][]float64) float64 {
	if len(X) == 0 {
		return 0
	}
	sum := 0.0
	for i := range X {
		output := n.Forward(X[i])
		diff := output[0] - Y[i][0]
		sum += diff * diff
	}
	return sum / float64(len(X))
}

// MarshalJSON serializes weights, biases and activation.
func (n *Network) MarshalJSON() ([]byte, error) {
	type layerJSON struct {
		Weights [][]float64 `json:"weights"`
		Biases  []float64   `json:"biases"`
	}
	layers := make([]layerJSON, len(n.Layers))
	for i, l := range n.Layers {
		layers[i] = layerJSON{Weights: l.Weights, Biases: l.Biases}
	}
	return json.Marshal(struct {
		Layers     []layerJSON `json:"layers"`
		Activation Activation  `json:"activation"`
	}{Layers: layers, Activation: n.Activation})
}

// UnmarshalJSON restores weights/biases and reinitializes Adam state.
func (n *Network) UnmarshalJSON(data []byte) error {
	type layerJSON struct {
		Weights [][]float64 `json:"weights"`
		Biases  []float64   `json:"biases"`
	}
	var raw struct {
		Layers     []layerJSON `json:"layers"`
		Activation Activation  `json:"activation"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	n.Layers = make([]Layer, len(raw.Layers))
	for i, l := range raw.Layers {
		n.Layers[i] = Layer{Weights: l.Weights, Biases: l.Biases}
	}
	n.Activation = raw.Activation
	if n.Activation == "" {
		n.Activation = ActivationReLU
	}
	n.initAdam()
	return nil
}

// shuffleSplit shuffles the data and returns a 90/10 train/validation split.
func shuffleSplit(X, Y [][]float64, rng *rand.Rand) (trainX, trainY, valX, valY [][]float64) {
	n := len(X)
	nVal := n / 10
	if nVal < 1 {
		nVal = 1
	}
	nTrain := n - nVal

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	rng.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	trainX = make([][]float64, nTrain)
	trainY = make([][]float64, nTrain)
	valX = make([][]float64, nVal)
	valY = make([][]float64, nVal)
	for i := 0; i < nTrain; i++ {
		trainX[i] = X[indices[i]]
		trainY[i] = Y[indices[i]]
	}
	for i := 0; i < nVal; i++ {
		valX[i] = X[indices[nTrain+i]]
		valY[i] = Y[indices[nTrain+i]]
	}
	return
}

func makeMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

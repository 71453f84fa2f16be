package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"

	"powerpulse/internal/model"
)

// WeatherConfig holds the gradient-boosted tree hyperparameters.
type WeatherConfig struct {
	NEstimators       int     `json:"n_estimators"`
	MaxDepth          int     `json:"max_depth"`
	LearningRate      float64 `json:"learning_rate"`
	SubsampleFraction float64 `json:"subsample_fraction"`
	Seed              *uint64 `json:"seed,omitempty"`
}

// DefaultWeatherConfig returns the boosting defaults.
func DefaultWeatherConfig() WeatherConfig {
	seed := uint64(42)
	return WeatherConfig{
		NEstimators:       200,
		MaxDepth:          4,
		LearningRate:      0.1,
		SubsampleFraction: 0.8,
		Seed:              &seed,
	}
}

// minLeafSize stops splitting nodes smaller than this.
const minLeafSize = 5

// treeNode is one node of a regression tree. Leaves have no children.
type treeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Value     float64   `json:"value"`
	Left      *treeNode `json:"left,omitempty"`
	Right     *treeNode `json:"right,omitempty"`
}

func (t *treeNode) leaf() bool { return t.Left == nil }

func (t *treeNode) predict(x []float64) float64 {
	node := t
	for !node.leaf() {
		if x[node.Feature] < node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

// WeatherRegressor predicts load from weather and temporal features using
// gradient-boosted regression trees over squared loss.
type WeatherRegressor struct {
	cfg          WeatherConfig
	base         float64
	trees        []*treeNode
	importances  []float64
	featureNames []string
	seeded       bool
}

type weatherParams struct {
	Config       WeatherConfig `json:"config"`
	Base         float64       `json:"base"`
	Trees        []*treeNode   `json:"trees"`
	Importances  []float64     `json:"importances"`
	FeatureNames []string      `json:"feature_names"`
}

// NewWeatherRegressor creates an untrained weather model.
func NewWeatherRegressor(cfg WeatherConfig) *WeatherRegressor {
	return &WeatherRegressor{cfg: cfg}
}

func (w *WeatherRegressor) Name() string  { return ModelWeather }
func (w *WeatherRegressor) Trained() bool { return w.trees != nil }
func (w *WeatherRegressor) Seeded() bool  { return w.seeded }

// Train fits one boosting stage per estimator against the running residuals.
func (w *WeatherRegressor) Train(ctx context.Context, examples []Example) (*Artifact, error) {
	if len(examples) < minLeafSize*2 {
		return nil, fmt.Errorf("weather training needs at least %d examples, got %d", minLeafSize*2, len(examples))
	}
	nFeatures := len(examples[0].Input)
	for _, ex := range examples {
		if len(ex.Input) != nFeatures {
			return nil, &model.FeatureError{Reason: fmt.Sprintf("inconsistent feature count: %d vs %d", len(ex.Input), nFeatures)}
		}
	}
	if nFeatures == len(model.FeatureNames()) {
		w.featureNames = model.FeatureNames()
	} else {
		names := make([]string, nFeatures)
		for i := range names {
			names[i] = fmt.Sprintf("f%d", i)
		}
		w.featureNames = names
	}

	rng, seeded := newRNG(w.cfg.Seed)

	X := make([][]float64, len(examples))
	y := make([]float64, len(examples))
	for i, ex := range examples {
		X[i] = ex.Input
		y[i] = ex.Target
	}

	var base float64
	for _, v := range y {
		base += v
	}
	base /= float64(len(y))

	preds := make([]float64, len(y))
	for i := range preds {
		preds[i] = base
	}

	trees := make([]*treeNode, 0, w.cfg.NEstimators)
	importances := make([]float64, nFeatures)
	residuals := make([]float64, len(y))

	subsample := int(w.cfg.SubsampleFraction * float64(len(y)))
	if subsample < minLeafSize*2 || subsample > len(y) {
		subsample = len(y)
	}
	order := make([]int, len(y))
	for i := range order {
		order[i] = i
	}

	for round := 0; round < w.cfg.NEstimators; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for i := range residuals {
			residuals[i] = y[i] - preds[i]
		}

		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		idx := make([]int, subsample)
		copy(idx, order[:subsample])
		sort.Ints(idx)

		tree := buildTree(X, residuals, idx, w.cfg.MaxDepth, importances)
		trees = append(trees, tree)

		var mse float64
		for i := range preds {
			preds[i] += w.cfg.LearningRate * tree.predict(X[i])
			d := y[i] - preds[i]
			mse += d * d
		}
		mse /= float64(len(y))
		if math.IsNaN(mse) || math.IsInf(mse, 0) {
			return nil, &model.TrainingDivergenceError{Model: ModelWeather, Epoch: round, Loss: mse}
		}
	}

	w.base = base
	w.trees = trees
	w.importances = importances
	w.seeded = seeded

	return NewArtifact(ModelWeather, seeded, weatherParams{
		Config:       w.cfg,
		Base:         base,
		Trees:        trees,
		Importances:  importances,
		FeatureNames: w.featureNames,
	})
}

// Predict maps one feature row to a load prediction.
func (w *WeatherRegressor) Predict(input []float64) (float64, error) {
	if w.trees == nil {
		return 0, fmt.Errorf("weather model is not trained")
	}
	if len(input) != len(w.featureNames) {
		return 0, &model.FeatureError{Reason: fmt.Sprintf("feature count %d, want %d", len(input), len(w.featureNames))}
	}
	for i, v := range input {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, &model.FeatureError{Field: w.featureNames[i], Reason: "non-finite value"}
		}
	}
	pred := w.base
	for _, tree := range w.trees {
		pred += w.cfg.LearningRate * tree.predict(input)
	}
	return pred, nil
}

// PredictVector predicts from a FeatureVector.
func (w *WeatherRegressor) PredictVector(fv model.FeatureVector) (float64, error) {
	return w.Predict(fv.Values())
}

// FeatureImportances returns per-feature split gain, normalized to sum to 1.
// Retrievable for explainability; not consumed by the fusion stage.
func (w *WeatherRegressor) FeatureImportances() map[string]float64 {
	var total float64
	for _, g := range w.importances {
		total += g
	}
	out := make(map[string]float64, len(w.featureNames))
	for i, name := range w.featureNames {
		if total > 0 {
			out[name] = w.importances[i] / total
		} else {
			out[name] = 0
		}
	}
	return out
}

// LoadWeatherRegressor restores a trained weather model from its artifact.
func LoadWeatherRegressor(a *Artifact) (*WeatherRegressor, error) {
	var p weatherParams
	if err := a.Decode(ModelWeather, &p); err != nil {
		return nil, err
	}
	return &WeatherRegressor{
		cfg:          p.Config,
		base:         p.Base,
		trees:        p.Trees,
		importances:  p.Importances,
		featureNames: p.FeatureNames,
		seeded:       a.Seeded,
	}, nil
}

// buildTree grows one regression tree over the rows in idx, greedily choosing
// the variance-minimizing split per node. Split gains accumulate into
// importances by feature.
func buildTree(X [][]float64, target []float64, idx []int, depth int, importances []float64) *treeNode {
	mean, sse := meanSSE(target, idx)
	if depth <= 0 || len(idx) < minLeafSize*2 {
		return &treeNode{Value: mean}
	}

	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0

	nFeatures := len(X[idx[0]])
	sorted := make([]int, len(idx))
	for f := 0; f < nFeatures; f++ {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool { return X[sorted[a]][f] < X[sorted[b]][f] })

		// Running left-side sums; evaluate each boundary between distinct values.
		var leftSum, leftSq float64
		var totalSum, totalSq float64
		for _, i := range sorted {
			totalSum += target[i]
			totalSq += target[i] * target[i]
		}
		n := float64(len(sorted))

		for pos := 0; pos < len(sorted)-1; pos++ {
			i := sorted[pos]
			leftSum += target[i]
			leftSq += target[i] * target[i]

			nl := float64(pos + 1)
			nr := n - nl
			if nl < minLeafSize || nr < minLeafSize {
				continue
			}
			if X[sorted[pos]][f] == X[sorted[pos+1]][f] {
				continue
			}

			leftSSE := leftSq - leftSum*leftSum/nl
			rightSum := totalSum - leftSum
			rightSSE := (totalSq - leftSq) - rightSum*rightSum/nr
			gain := sse - leftSSE - rightSSE
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (X[sorted[pos]][f] + X[sorted[pos+1]][f]) / 2
			}
		}
	}

	if bestFeature < 0 {
		return &treeNode{Value: mean}
	}
	importances[bestFeature] += bestGain

	var leftIdx, rightIdx []int
	for _, i := range idx {
		if X[i][bestFeature] < bestThreshold {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}

	return &treeNode{
		Feature:   bestFeature,
		Threshold: bestThreshold,
		Left:      buildTree(X, target, leftIdx, depth-1, importances),
		Right:     buildTree(X, target, rightIdx, depth-1, importances),
	}
}

func meanSSE(target []float64, idx []int) (mean, sse float64) {
	var sum, sq float64
	for _, i := range idx {
		sum += target[i]
		sq += target[i] * target[i]
	}
	n := float64(len(idx))
	if n == 0 {
		return 0, 0
	}
	mean = sum / n
	sse = sq - sum*sum/n
	return mean, sse
}

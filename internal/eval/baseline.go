package eval

import (
	"fmt"

	"github.com/sajari/regression"

	"powerpulse/internal/forecast"
	"powerpulse/internal/model"
)

// BaselineName labels the linear reference model in comparison summaries.
const BaselineName = "linear"

// LinearBaseline fits an ordinary-least-squares regression on the training
// feature rows and predicts the holdout rows. It anchors the comparison
// summary: a trained model family should beat it.
func LinearBaseline(train, holdout []forecast.Example) ([]float64, error) {
	if len(train) == 0 || len(holdout) == 0 {
		return nil, fmt.Errorf("linear baseline needs train and holdout examples")
	}

	r := new(regression.Regression)
	r.SetObserved("load_mw")
	for i, name := range model.FeatureNames() {
		r.SetVar(i, name)
	}

	for _, ex := range train {
		r.Train(regression.DataPoint(ex.Target, ex.Input))
	}
	if err := r.Run(); err != nil {
		return nil, fmt.Errorf("fitting linear baseline: %w", err)
	}

	preds := make([]float64, len(holdout))
	for i, ex := range holdout {
		p, err := r.Predict(ex.Input)
		if err != nil {
			return nil, fmt.Errorf("linear baseline prediction: %w", err)
		}
		preds[i] = p
	}
	return preds, nil
}

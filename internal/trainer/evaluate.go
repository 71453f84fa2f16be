package trainer

import (
	"fmt"

	"go.uber.org/zap"

	"powerpulse/internal/eval"
	"powerpulse/internal/forecast"
	"powerpulse/internal/model"
)

// evaluate scores each trained model independently on the held-out tail, plus
// a linear baseline for reference. The fused model is scored over the
// timestamps where both base inputs exist.
func (t *Trainer) evaluate(split datasetSplit, seq *forecast.SequenceForecaster, weather *forecast.WeatherRegressor, fusion *forecast.FusionMetaLearner) ([]model.EvaluationReport, error) {
	var reports []model.EvaluationReport

	// Sequence model: holdout timestamps that have windows.
	if len(split.seqHoldout) > 0 {
		actual := make([]float64, len(split.seqHoldout))
		preds := make([]float64, len(split.seqHoldout))
		for i, ex := range split.seqHoldout {
			p, err := seq.Predict(ex.Input)
			if err != nil {
				return nil, fmt.Errorf("evaluating sequence model: %w", err)
			}
			actual[i] = ex.Target
			preds[i] = p
		}
		r, err := eval.Report(forecast.ModelSequence, actual, preds, split.holdoutWindow, seq.Seeded())
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}

	// Weather model: all holdout timestamps.
	weatherPreds := make(map[int64]float64, len(split.weatherHoldout))
	{
		actual := make([]float64, len(split.weatherHoldout))
		preds := make([]float64, len(split.weatherHoldout))
		for i, ex := range split.weatherHoldout {
			p, err := weather.Predict(ex.Input)
			if err != nil {
				return nil, fmt.Errorf("evaluating weather model: %w", err)
			}
			actual[i] = ex.Target
			preds[i] = p
			weatherPreds[ex.Timestamp.UnixNano()] = p
		}
		r, err := eval.Report(forecast.ModelWeather, actual, preds, split.holdoutWindow, weather.Seeded())
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}

	// Fused model: intersection of both base inputs.
	if len(split.seqHoldout) > 0 {
		var actual, preds []float64
		for _, ex := range split.seqHoldout {
			sp, err := seq.Predict(ex.Input)
			if err != nil {
				return nil, fmt.Errorf("evaluating fusion inputs: %w", err)
			}
			wp, ok := weatherPreds[ex.Timestamp.UnixNano()]
			if !ok {
				continue
			}
			fp, err := fusion.Combine(sp, wp)
			if err != nil {
				return nil, fmt.Errorf("evaluating fusion: %w", err)
			}
			actual = append(actual, ex.Target)
			preds = append(preds, fp)
		}
		if len(actual) > 0 {
			r, err := eval.Report(forecast.ModelFusion, actual, preds, split.holdoutWindow, fusion.Seeded())
			if err != nil {
				return nil, err
			}
			reports = append(reports, r)
		}
	}

	// Linear reference fit on the weather training features.
	basePreds, err := eval.LinearBaseline(split.weatherTrain, split.weatherHoldout)
	if err != nil {
		t.logger.Warn("Linear baseline unavailable", zap.Error(err))
	} else {
		actual := make([]float64, len(split.weatherHoldout))
		for i, ex := range split.weatherHoldout {
			actual[i] = ex.Target
		}
		r, err := eval.Report(eval.BaselineName, actual, basePreds, split.holdoutWindow, true)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}

	return reports, nil
}

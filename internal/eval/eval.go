// Package eval scores forecasters over held-out aligned samples and builds
// the cross-model comparison summary.
package eval

import (
	"fmt"
	"math"
	"sort"

	"powerpulse/internal/model"
)

// Metrics are the accuracy measures computed per model.
type Metrics struct {
	MAE  float64
	RMSE float64
	// MAPE is a percentage; samples with zero true load are excluded from it
	// and counted in MAPEExcluded.
	MAPE         float64
	R2           float64
	MAPEExcluded int
	Samples      int
}

// Compute calculates metrics from paired actual/predicted series.
func Compute(actual, predicted []float64) (Metrics, error) {
	if len(actual) != len(predicted) {
		return Metrics{}, fmt.Errorf("length mismatch: %d actual vs %d predicted", len(actual), len(predicted))
	}
	if len(actual) == 0 {
		return Metrics{}, fmt.Errorf("no samples to evaluate")
	}

	var absSum, sqSum float64
	var mapeSum float64
	mapeN := 0
	excluded := 0

	var actualSum float64
	for i := range actual {
		err := predicted[i] - actual[i]
		absSum += math.Abs(err)
		sqSum += err * err
		actualSum += actual[i]

		if actual[i] == 0 {
			excluded++
			continue
		}
		mapeSum += math.Abs(err / actual[i])
		mapeN++
	}

	n := float64(len(actual))
	actualMean := actualSum / n

	var totalSS float64
	for _, a := range actual {
		d := a - actualMean
		totalSS += d * d
	}

	m := Metrics{
		MAE:          absSum / n,
		RMSE:         math.Sqrt(sqSum / n),
		MAPEExcluded: excluded,
		Samples:      len(actual),
	}
	if mapeN > 0 {
		m.MAPE = 100 * mapeSum / float64(mapeN)
	}
	if totalSS > 0 {
		m.R2 = 1 - sqSum/totalSS
	}
	return m, nil
}

// Report builds an EvaluationReport from a metric computation.
func Report(modelName string, actual, predicted []float64, window model.TimeRange, seeded bool) (model.EvaluationReport, error) {
	m, err := Compute(actual, predicted)
	if err != nil {
		return model.EvaluationReport{}, fmt.Errorf("evaluating %s: %w", modelName, err)
	}
	return model.EvaluationReport{
		Model:        modelName,
		MAE:          m.MAE,
		RMSE:         m.RMSE,
		MAPE:         m.MAPE,
		R2:           m.R2,
		MAPEExcluded: m.MAPEExcluded,
		Samples:      m.Samples,
		Window:       window,
		Seeded:       seeded,
	}, nil
}

// Summary compares the reports of all evaluated models.
type Summary struct {
	Reports []model.EvaluationReport
}

// Best returns the report with the lowest RMSE.
func (s Summary) Best() (model.EvaluationReport, bool) {
	if len(s.Reports) == 0 {
		return model.EvaluationReport{}, false
	}
	sorted := make([]model.EvaluationReport, len(s.Reports))
	copy(sorted, s.Reports)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RMSE < sorted[j].RMSE })
	return sorted[0], true
}

// Lines renders the summary as aligned text rows for CLI output.
func (s Summary) Lines() []string {
	lines := make([]string, 0, len(s.Reports)+1)
	lines = append(lines, fmt.Sprintf("%-12s %10s %10s %8s %8s %8s", "model", "MAE", "RMSE", "MAPE%", "R2", "n"))
	for _, r := range s.Reports {
		lines = append(lines, fmt.Sprintf("%-12s %10.2f %10.2f %8.2f %8.4f %8d",
			r.Model, r.MAE, r.RMSE, r.MAPE, r.R2, r.Samples))
	}
	return lines
}

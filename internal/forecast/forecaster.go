// Package forecast implements the three model families behind the hybrid
// pipeline: a sequence model over recent load history, a gradient-boosted
// weather regressor, and a feed-forward fusion combiner. All three expose the
// same train/predict capability so the evaluation harness and prediction
// service can treat them uniformly.
package forecast

import (
	"context"
	"math"
	"time"
)

// Example is one training pair for any model family. Input layout depends on
// the family: window values for the sequence model, feature-vector values for
// the weather model, base predictions for fusion.
type Example struct {
	Timestamp time.Time
	Input     []float64
	Target    float64
}

// Forecaster is the capability shared by the three model families.
type Forecaster interface {
	Name() string
	// Train fits the model and returns its immutable artifact.
	Train(ctx context.Context, examples []Example) (*Artifact, error)
	// Predict maps one input to a scalar MW prediction.
	Predict(input []float64) (float64, error)
}

// Normalization holds z-score parameters for one scalar quantity.
type Normalization struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// FitNormalization computes z-score parameters over values, guarding against
// zero spread.
func FitNormalization(values []float64) Normalization {
	n := float64(len(values))
	if n == 0 {
		return Normalization{Std: 1}
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	std := math.Sqrt(variance / n)
	if std < 1e-10 {
		std = 1
	}
	return Normalization{Mean: mean, Std: std}
}

func (z Normalization) Apply(v float64) float64   { return (v - z.Mean) / z.Std }
func (z Normalization) Restore(v float64) float64 { return v*z.Std + z.Mean }

package model

import (
	"fmt"
	"time"
)

// AlignmentError reports an unreconcilable time base or a source stream with
// no records inside the requested range. Fatal to the affected call.
type AlignmentError struct {
	Reason string
}

func (e *AlignmentError) Error() string {
	return "alignment: " + e.Reason
}

// FeatureError reports a feature schema mismatch, such as a missing or
// non-finite weather field.
type FeatureError struct {
	Field  string
	Reason string
}

func (e *FeatureError) Error() string {
	if e.Field == "" {
		return "feature: " + e.Reason
	}
	return fmt.Sprintf("feature %s: %s", e.Field, e.Reason)
}

// UnavailableWindowError reports that a load window could not be built
// because the preceding history is too short or interrupted. Surfaced
// distinctly so callers may fall back to a weather-only estimate.
type UnavailableWindowError struct {
	Region    Region
	Timestamp time.Time
	Need      int
	Have      int
}

func (e *UnavailableWindowError) Error() string {
	return fmt.Sprintf("no load window for %s at %s: need %d consecutive samples, have %d",
		e.Region, e.Timestamp.Format(time.RFC3339), e.Need, e.Have)
}

// FusionInputError reports a missing base-model prediction at fusion time.
// Fusion never substitutes a default for a missing input.
type FusionInputError struct {
	Missing string
}

func (e *FusionInputError) Error() string {
	return "fusion: missing base prediction: " + e.Missing
}

// TrainingDivergenceError reports a training run whose loss stopped being a
// finite number. The run is aborted and any prior artifact stays authoritative.
type TrainingDivergenceError struct {
	Model string
	Epoch int
	Loss  float64
}

func (e *TrainingDivergenceError) Error() string {
	return fmt.Sprintf("%s training diverged at epoch %d (loss %v)", e.Model, e.Epoch, e.Loss)
}

package trainer

import (
	"time"

	"powerpulse/internal/feature"
	"powerpulse/internal/forecast"
	"powerpulse/internal/model"
)

// datasetSplit is the chronological train/holdout partition of a feature set.
// The holdout tail never feeds any training stage.
type datasetSplit struct {
	trainTimestamps []time.Time
	trainTargets    []float64

	seqTrain     []forecast.Example
	weatherTrain []forecast.Example

	holdoutTimestamps []time.Time
	seqHoldout        []forecast.Example
	weatherHoldout    []forecast.Example
	holdoutWindow     model.TimeRange
}

// splitChronological reserves the trailing fraction of the set for
// evaluation and materializes per-family training examples from the rest.
func splitChronological(set *feature.Set, holdoutFraction float64) datasetSplit {
	n := set.Len()
	nHoldout := int(float64(n) * holdoutFraction)
	if nHoldout < 1 {
		nHoldout = 1
	}
	if nHoldout >= n {
		nHoldout = n - 1
	}
	cut := n - nHoldout

	var s datasetSplit
	for i := 0; i < n; i++ {
		ts := set.Timestamps[i]
		target := set.Targets[i]

		weatherEx := forecast.Example{
			Timestamp: ts,
			Input:     set.Vectors[i].Values(),
			Target:    target,
		}
		var seqEx *forecast.Example
		if set.Windows[i] != nil {
			seqEx = &forecast.Example{
				Timestamp: ts,
				Input:     set.Windows[i].Values,
				Target:    target,
			}
		}

		if i < cut {
			s.trainTimestamps = append(s.trainTimestamps, ts)
			s.trainTargets = append(s.trainTargets, target)
			s.weatherTrain = append(s.weatherTrain, weatherEx)
			if seqEx != nil {
				s.seqTrain = append(s.seqTrain, *seqEx)
			}
		} else {
			s.holdoutTimestamps = append(s.holdoutTimestamps, ts)
			s.weatherHoldout = append(s.weatherHoldout, weatherEx)
			if seqEx != nil {
				s.seqHoldout = append(s.seqHoldout, *seqEx)
			}
		}
	}

	if len(s.holdoutTimestamps) > 0 {
		s.holdoutWindow = model.TimeRange{
			Start: s.holdoutTimestamps[0],
			End:   s.holdoutTimestamps[len(s.holdoutTimestamps)-1],
		}
	}
	return s
}

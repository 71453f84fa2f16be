// Package registry owns the process-wide set of trained models. The set is
// replaced only by an atomic swap, so concurrent readers always observe one
// fully-consistent trio of artifacts, old or new, never a mixture.
package registry

import (
	"fmt"
	"sync/atomic"
	"time"

	"powerpulse/internal/forecast"
)

// ModelSet is one consistent trio of trained models. Immutable once published.
type ModelSet struct {
	Sequence *forecast.SequenceForecaster
	Weather  *forecast.WeatherRegressor
	Fusion   *forecast.FusionMetaLearner

	SchemaVersion string
	TrainedAt     time.Time
}

// Registry holds the currently served model set.
type Registry struct {
	current atomic.Pointer[ModelSet]
}

func New() *Registry {
	return &Registry{}
}

// Current returns the active model set, or false when none is published yet.
func (r *Registry) Current() (*ModelSet, bool) {
	set := r.current.Load()
	return set, set != nil
}

// Publish atomically swaps in a new model set. A set must be complete and
// strictly newer than the one it supersedes; superseded sets stay intact for
// readers still holding them.
func (r *Registry) Publish(set *ModelSet) error {
	if set == nil || set.Sequence == nil || set.Weather == nil || set.Fusion == nil {
		return fmt.Errorf("registry: refusing to publish incomplete model set")
	}
	if set.SchemaVersion != forecast.SchemaVersion {
		return fmt.Errorf("registry: model set schema %q does not match current %q",
			set.SchemaVersion, forecast.SchemaVersion)
	}
	for {
		old := r.current.Load()
		if old != nil && !set.TrainedAt.After(old.TrainedAt) {
			return fmt.Errorf("registry: model set trained at %s does not supersede %s",
				set.TrainedAt.Format(time.RFC3339), old.TrainedAt.Format(time.RFC3339))
		}
		if r.current.CompareAndSwap(old, set) {
			return nil
		}
	}
}

package forecast

import (
	"encoding/json"
	"fmt"
	"time"
)

// SchemaVersion tags the feature/window layout artifacts are trained against.
// Artifacts from a different schema version must not be fed current inputs.
const SchemaVersion = "v1"

// Model names used in artifacts and evaluation reports.
const (
	ModelSequence = "sequence"
	ModelWeather  = "weather"
	ModelFusion   = "fusion"
)

// Artifact is the immutable serialized form of one trained model. Retraining
// produces a new artifact with a strictly later TrainedAt; artifacts are
// never mutated after creation.
type Artifact struct {
	Model         string          `json:"model"`
	SchemaVersion string          `json:"schema_version"`
	TrainedAt     time.Time       `json:"trained_at"`
	// Seeded records whether training ran under a fixed random seed and is
	// therefore reproducible.
	Seeded bool            `json:"seeded"`
	Params json.RawMessage `json:"params"`
}

// NewArtifact wraps a model's parameter payload in the artifact envelope.
func NewArtifact(modelName string, seeded bool, params any) (*Artifact, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding %s params: %w", modelName, err)
	}
	return &Artifact{
		Model:         modelName,
		SchemaVersion: SchemaVersion,
		TrainedAt:     time.Now().UTC(),
		Seeded:        seeded,
		Params:        raw,
	}, nil
}

// Decode unpacks the parameter payload, rejecting schema mismatches.
func (a *Artifact) Decode(modelName string, into any) error {
	if a.Model != modelName {
		return fmt.Errorf("artifact holds %q, want %q", a.Model, modelName)
	}
	if a.SchemaVersion != SchemaVersion {
		return fmt.Errorf("artifact schema %q does not match current %q", a.SchemaVersion, SchemaVersion)
	}
	if err := json.Unmarshal(a.Params, into); err != nil {
		return fmt.Errorf("decoding %s params: %w", modelName, err)
	}
	return nil
}

package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"powerpulse/internal/forecast"
)

// ArtifactRepository persists model artifacts. The core only needs blob
// read/write; the owning storage layer decides where blobs actually live.
type ArtifactRepository interface {
	Save(a *forecast.Artifact) error
	// Latest returns the most recently trained artifact for a model name and
	// the current schema version, or os.ErrNotExist when none is stored.
	Latest(modelName string) (*forecast.Artifact, error)
}

// FSRepository stores artifacts as JSON files named
// <model>_<schema>_<unix-trained-at>.json.
type FSRepository struct {
	Dir string
}

func NewFSRepository(dir string) (*FSRepository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating artifact dir: %w", err)
	}
	return &FSRepository{Dir: dir}, nil
}

func (r *FSRepository) Save(a *forecast.Artifact) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding artifact: %w", err)
	}
	name := fmt.Sprintf("%s_%s_%d.json", a.Model, a.SchemaVersion, a.TrainedAt.UnixNano())
	if err := os.WriteFile(filepath.Join(r.Dir, name), data, 0644); err != nil {
		return fmt.Errorf("writing artifact %s: %w", name, err)
	}
	return nil
}

func (r *FSRepository) Latest(modelName string) (*forecast.Artifact, error) {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading artifact dir: %w", err)
	}

	prefix := fmt.Sprintf("%s_%s_", modelName, forecast.SchemaVersion)
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, os.ErrNotExist
	}
	// UnixNano keeps a fixed digit width, so lexical order is trained-at order.
	sort.Strings(names)
	latest := names[len(names)-1]

	data, err := os.ReadFile(filepath.Join(r.Dir, latest))
	if err != nil {
		return nil, fmt.Errorf("reading artifact %s: %w", latest, err)
	}
	var a forecast.Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decoding artifact %s: %w", latest, err)
	}
	return &a, nil
}

// LoadSet restores a complete model set from the repository.
func LoadSet(repo ArtifactRepository) (*ModelSet, error) {
	seqArt, err := repo.Latest(forecast.ModelSequence)
	if err != nil {
		return nil, fmt.Errorf("loading sequence artifact: %w", err)
	}
	weatherArt, err := repo.Latest(forecast.ModelWeather)
	if err != nil {
		return nil, fmt.Errorf("loading weather artifact: %w", err)
	}
	fusionArt, err := repo.Latest(forecast.ModelFusion)
	if err != nil {
		return nil, fmt.Errorf("loading fusion artifact: %w", err)
	}

	seq, err := forecast.LoadSequenceForecaster(seqArt)
	if err != nil {
		return nil, err
	}
	weather, err := forecast.LoadWeatherRegressor(weatherArt)
	if err != nil {
		return nil, err
	}
	fusion, err := forecast.LoadFusionMetaLearner(fusionArt)
	if err != nil {
		return nil, err
	}

	trainedAt := seqArt.TrainedAt
	if weatherArt.TrainedAt.After(trainedAt) {
		trainedAt = weatherArt.TrainedAt
	}
	if fusionArt.TrainedAt.After(trainedAt) {
		trainedAt = fusionArt.TrainedAt
	}

	return &ModelSet{
		Sequence:      seq,
		Weather:       weather,
		Fusion:        fusion,
		SchemaVersion: forecast.SchemaVersion,
		TrainedAt:     trainedAt,
	}, nil
}

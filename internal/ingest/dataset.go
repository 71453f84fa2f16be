package ingest

import (
	"fmt"
	"os"

	"powerpulse/internal/align"
	"powerpulse/internal/feature"
	"powerpulse/internal/model"
)

// DatasetConfig names the CSV inputs and the single region to assemble.
type DatasetConfig struct {
	LoadCSV    string
	WeatherCSV string
	Region     model.Region
	Align      align.Config
	Feature    feature.Config
}

// Dataset is one region's aligned history plus the feature set built from it.
type Dataset struct {
	Samples  []model.AlignedSample
	Features *feature.Set
}

// LoadDataset runs the full ingest pipeline for one region: parse both CSVs,
// keep the region's load records, align onto the regular grid, and build the
// feature set.
func LoadDataset(cfg DatasetConfig) (*Dataset, error) {
	lf, err := os.Open(cfg.LoadCSV)
	if err != nil {
		return nil, fmt.Errorf("opening load CSV: %w", err)
	}
	defer lf.Close()

	loadParser := &LoadParser{}
	loads, err := loadParser.Parse(lf)
	if err != nil {
		return nil, fmt.Errorf("parsing load CSV: %w", err)
	}

	wf, err := os.Open(cfg.WeatherCSV)
	if err != nil {
		return nil, fmt.Errorf("opening weather CSV: %w", err)
	}
	defer wf.Close()

	weatherParser := &WeatherParser{}
	weather, err := weatherParser.Parse(wf)
	if err != nil {
		return nil, fmt.Errorf("parsing weather CSV: %w", err)
	}

	regional := loads[:0:0]
	for _, l := range loads {
		if l.Region == cfg.Region {
			regional = append(regional, l)
		}
	}
	if len(regional) == 0 {
		return nil, fmt.Errorf("no load records for region %s", cfg.Region)
	}

	samples, err := align.Align(regional, weather, cfg.Align)
	if err != nil {
		return nil, err
	}

	set, err := feature.Build(samples, cfg.Feature)
	if err != nil {
		return nil, err
	}

	return &Dataset{Samples: samples, Features: set}, nil
}

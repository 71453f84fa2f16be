// predict runs the trained model set against the tail of the aligned history
// and prints predicted vs observed demand. A quick smoke check that saved
// artifacts load and produce sensible numbers.
//
// Usage:
//
//	predict
//	predict -hours 72 -region BRPL
//	predict -model-dir models -loads data/load.csv -weather data/weather.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"

	"go.uber.org/zap"

	"powerpulse/internal/align"
	"powerpulse/internal/feature"
	"powerpulse/internal/ingest"
	"powerpulse/internal/model"
	"powerpulse/internal/registry"
	"powerpulse/internal/service"
	"powerpulse/internal/store"
)

func main() {
	loadPath := flag.String("loads", "data/load.csv", "path to load CSV")
	weatherPath := flag.String("weather", "data/weather.csv", "path to weather CSV")
	modelDir := flag.String("model-dir", "models", "directory holding model artifacts")
	regionName := flag.String("region", "DELHI", "region to predict")
	hours := flag.Int("hours", 48, "number of trailing hours to predict")
	csvOut := flag.Bool("csv", false, "output as CSV")
	flag.Parse()

	region, ok := model.ParseRegion(*regionName)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown region %q (want one of %v)\n", *regionName, model.Regions)
		os.Exit(1)
	}

	repo, err := registry.NewFSRepository(*modelDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening model dir: %v\n", err)
		os.Exit(1)
	}
	set, err := registry.LoadSet(repo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading model set: %v\n", err)
		os.Exit(1)
	}
	reg := registry.New()
	if err := reg.Publish(set); err != nil {
		fmt.Fprintf(os.Stderr, "Error publishing model set: %v\n", err)
		os.Exit(1)
	}

	ds, err := ingest.LoadDataset(ingest.DatasetConfig{
		LoadCSV:    *loadPath,
		WeatherCSV: *weatherPath,
		Region:     region,
		Align:      align.DefaultConfig(),
		Feature:    feature.DefaultConfig(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading dataset: %v\n", err)
		os.Exit(1)
	}

	history := store.New()
	history.Add(ds.Samples)

	logger := zap.NewNop()
	svc := service.New(history, reg, align.DefaultConfig().Interval, nil, nil, logger)

	tail := ds.Samples
	if len(tail) > *hours {
		tail = tail[len(tail)-*hours:]
	}

	if *csvOut {
		fmt.Println("timestamp,predicted_mw,observed_mw,error_mw")
	} else {
		fmt.Printf("Model set trained at %s\n\n", set.TrainedAt.Format("2006-01-02 15:04"))
		fmt.Printf("%-17s  %10s  %10s  %8s\n", "Time", "Pred (MW)", "Obs (MW)", "Err")
		fmt.Printf("%-17s  %10s  %10s  %8s\n", "-----------------", "----------", "----------", "--------")
	}

	ctx := context.Background()
	var absSum float64
	var n int
	for _, s := range tail {
		if s.Unavailable {
			continue
		}
		p, err := svc.Predict(ctx, service.Request{
			Temperature:      s.Weather.TemperatureC,
			RelativeHumidity: s.Weather.RelativeHumidity,
			WindSpeed:        s.Weather.WindSpeedKmh,
			Time:             s.Timestamp.Format("15:04"),
			Date:             s.Timestamp.Format("2006-01-02"),
			Region:           string(region),
		})
		if err != nil {
			// Tail hours without a full preceding window are expected.
			continue
		}

		diff := p.PredictedLoadMW - s.LoadMW
		absSum += math.Abs(diff)
		n++

		if *csvOut {
			fmt.Printf("%s,%.1f,%.1f,%.1f\n",
				s.Timestamp.Format("2006-01-02 15:04"), p.PredictedLoadMW, s.LoadMW, diff)
		} else {
			fmt.Printf("%-17s  %10.1f  %10.1f  %+8.1f\n",
				s.Timestamp.Format("2006-01-02 15:04"), p.PredictedLoadMW, s.LoadMW, diff)
		}
	}

	if !*csvOut && n > 0 {
		fmt.Printf("\nPredicted %d hours, MAE %.1f MW\n", n, absSum/float64(n))
	}
}

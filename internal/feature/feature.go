// Package feature derives model inputs from aligned samples: cyclical
// temporal encodings, weather fields, and fixed-length load windows.
package feature

import (
	"math"
	"time"

	"powerpulse/internal/model"
)

// Config controls windowing and the holiday calendar.
type Config struct {
	// WindowLength is the number of consecutive preceding samples a load
	// window must hold. Windows are all-or-nothing; there are no partial ones.
	WindowLength int
	// Holidays marks dates ("2006-01-02") that get the holiday flag alongside
	// weekends.
	Holidays map[string]bool
}

// DefaultConfig uses a two-day hourly window.
func DefaultConfig() Config {
	return Config{WindowLength: 48}
}

// Set holds the per-timestamp feature vectors, targets and load windows for
// one region's retained (available) samples.
type Set struct {
	Region     model.Region
	Timestamps []time.Time
	Vectors    []model.FeatureVector
	Targets    []float64
	// Windows[i] is nil when fewer than WindowLength consecutive available
	// samples precede Timestamps[i].
	Windows []*model.LoadWindow

	index map[int64]int
}

// Len returns the number of retained timestamps.
func (s *Set) Len() int { return len(s.Timestamps) }

// Vector returns the feature vector for ts.
func (s *Set) Vector(ts time.Time) (model.FeatureVector, bool) {
	i, ok := s.index[ts.UnixNano()]
	if !ok {
		return model.FeatureVector{}, false
	}
	return s.Vectors[i], true
}

// Window returns the load window for ts, or false when none was built.
func (s *Set) Window(ts time.Time) (*model.LoadWindow, bool) {
	i, ok := s.index[ts.UnixNano()]
	if !ok || s.Windows[i] == nil {
		return nil, false
	}
	return s.Windows[i], true
}

// Build maps an aligned sample sequence to feature vectors and load windows.
// Unavailable samples are excluded; a window is built only for timestamps
// whose preceding WindowLength grid slots are all available.
func Build(samples []model.AlignedSample, cfg Config) (*Set, error) {
	if cfg.WindowLength <= 0 {
		return nil, &model.FeatureError{Reason: "non-positive window length"}
	}

	set := &Set{index: make(map[int64]int)}
	if len(samples) > 0 {
		set.Region = samples[0].Region
	}

	for i, s := range samples {
		if s.Unavailable {
			continue
		}
		if err := checkWeather(s.Weather); err != nil {
			return nil, err
		}

		vec := Encode(s.Timestamp, s.Weather, cfg.Holidays)

		var window *model.LoadWindow
		if i >= cfg.WindowLength {
			ok := true
			for j := i - cfg.WindowLength; j < i; j++ {
				if samples[j].Unavailable {
					ok = false
					break
				}
			}
			if ok {
				values := make([]float64, cfg.WindowLength)
				for j := 0; j < cfg.WindowLength; j++ {
					values[j] = samples[i-cfg.WindowLength+j].LoadMW
				}
				window = &model.LoadWindow{
					Region: s.Region,
					End:    s.Timestamp,
					Values: values,
				}
			}
		}

		set.index[s.Timestamp.UnixNano()] = len(set.Timestamps)
		set.Timestamps = append(set.Timestamps, s.Timestamp)
		set.Vectors = append(set.Vectors, vec)
		set.Targets = append(set.Targets, s.LoadMW)
		set.Windows = append(set.Windows, window)
	}

	return set, nil
}

// Encode builds the feature vector for one timestamp. Hour-of-day and
// day-of-year are encoded as sin/cos pairs so that 23:00→00:00 and
// Dec 31→Jan 1 stay continuous for downstream regressors.
func Encode(ts time.Time, w model.WeatherFields, holidays map[string]bool) model.FeatureVector {
	hourOfDay := float64(ts.Hour()) + float64(ts.Minute())/60
	hAngle := 2 * math.Pi * hourOfDay / 24
	dAngle := 2 * math.Pi * float64(ts.YearDay()-1) / 365

	holiday := 0.0
	if ts.Weekday() == time.Saturday || ts.Weekday() == time.Sunday {
		holiday = 1
	}
	if holidays[ts.Format("2006-01-02")] {
		holiday = 1
	}

	return model.FeatureVector{
		Timestamp:        ts,
		HourSin:          math.Sin(hAngle),
		HourCos:          math.Cos(hAngle),
		DaySin:           math.Sin(dAngle),
		DayCos:           math.Cos(dAngle),
		Weekday:          float64(ts.Weekday()),
		Holiday:          holiday,
		TemperatureC:     w.TemperatureC,
		RelativeHumidity: w.RelativeHumidity,
		WindSpeedKmh:     w.WindSpeedKmh,
	}
}

func checkWeather(w model.WeatherFields) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"temperature_2m", w.TemperatureC},
		{"relative_humidity_2m", w.RelativeHumidity},
		{"wind_speed_10m", w.WindSpeedKmh},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &model.FeatureError{Field: f.name, Reason: "non-finite value"}
		}
	}
	return nil
}

// Package align joins independently sampled load and weather streams onto a
// common timestamp grid. Alignment is a pure transformation: identical inputs
// produce identical output, byte for byte.
package align

import (
	"sort"
	"time"

	"powerpulse/internal/model"
)

// Config controls the sampling grid and the missing-value policy.
type Config struct {
	// Interval is the grid step records are bucketed to.
	Interval time.Duration
	// MaxGap is the largest run of missing grid slots (in intervals) that is
	// bridged by linear interpolation. Longer runs are marked unavailable.
	MaxGap int
	// Start and End bound the requested range (half-open). When zero, the
	// overlap of the two source streams is used.
	Start time.Time
	End   time.Time
}

// DefaultConfig matches the hourly Open-Meteo archive grid.
func DefaultConfig() Config {
	return Config{
		Interval: time.Hour,
		MaxGap:   3,
	}
}

// Align joins one region's load stream with the weather stream on the
// configured grid. The result has exactly one sample per grid timestamp in
// the requested range, in ascending order, with no duplicates.
func Align(loads []model.LoadRecord, weather []model.WeatherRecord, cfg Config) ([]model.AlignedSample, error) {
	if cfg.Interval <= 0 {
		return nil, &model.AlignmentError{Reason: "non-positive sampling interval"}
	}
	if len(loads) == 0 {
		return nil, &model.AlignmentError{Reason: "load stream has no records"}
	}
	if len(weather) == 0 {
		return nil, &model.AlignmentError{Reason: "weather stream has no records"}
	}

	region := loads[0].Region
	for _, l := range loads {
		if l.Region != region {
			return nil, &model.AlignmentError{Reason: "load stream mixes regions"}
		}
	}

	if err := checkTimeBase(loads, weather); err != nil {
		return nil, err
	}

	loadBuckets := bucketLoads(loads, cfg.Interval)
	weatherBuckets := bucketWeather(weather, cfg.Interval)

	start, end, err := resolveRange(loadBuckets, weatherBuckets, cfg)
	if err != nil {
		return nil, err
	}

	n := int(end.Sub(start)/cfg.Interval) + 1
	grid := make([]time.Time, n)
	for i := range grid {
		grid[i] = start.Add(time.Duration(i) * cfg.Interval)
	}

	load := newSeries(n)
	temp := newSeries(n)
	hum := newSeries(n)
	wind := newSeries(n)
	for i, ts := range grid {
		key := ts.UnixNano()
		if v, ok := loadBuckets[key]; ok {
			load.observe(i, v)
		}
		if w, ok := weatherBuckets[key]; ok {
			temp.observe(i, w.TemperatureC)
			hum.observe(i, w.RelativeHumidity)
			wind.observe(i, w.WindSpeedKmh)
		}
	}

	load.fillGaps(cfg.MaxGap)
	temp.fillGaps(cfg.MaxGap)
	hum.fillGaps(cfg.MaxGap)
	wind.fillGaps(cfg.MaxGap)

	samples := make([]model.AlignedSample, n)
	for i, ts := range grid {
		samples[i] = model.AlignedSample{
			Timestamp: ts,
			Region:    region,
			LoadMW:    load.values[i],
			Weather: model.WeatherFields{
				TemperatureC:     temp.values[i],
				RelativeHumidity: hum.values[i],
				WindSpeedKmh:     wind.values[i],
			},
			Imputed:     load.imputed[i] || temp.imputed[i] || hum.imputed[i] || wind.imputed[i],
			Unavailable: load.missing[i] || temp.missing[i] || hum.missing[i] || wind.missing[i],
		}
		if samples[i].Unavailable {
			// Unavailable slots carry no reconstructed values.
			samples[i].LoadMW = 0
			samples[i].Weather = model.WeatherFields{}
			samples[i].Imputed = false
		}
	}
	return samples, nil
}

// checkTimeBase rejects streams whose timestamps mix UTC offsets, since the
// two sources could not be reconciled to one grid.
func checkTimeBase(loads []model.LoadRecord, weather []model.WeatherRecord) error {
	_, ref := loads[0].Timestamp.Zone()
	for _, l := range loads {
		if _, off := l.Timestamp.Zone(); off != ref {
			return &model.AlignmentError{Reason: "inconsistent timezone offsets in load stream"}
		}
	}
	for _, w := range weather {
		if _, off := w.Timestamp.Zone(); off != ref {
			return &model.AlignmentError{Reason: "inconsistent timezone offsets between load and weather streams"}
		}
	}
	return nil
}

// bucketLoads averages records that fall into the same grid slot.
func bucketLoads(loads []model.LoadRecord, interval time.Duration) map[int64]float64 {
	sums := make(map[int64]float64)
	counts := make(map[int64]int)
	for _, l := range loads {
		key := l.Timestamp.Truncate(interval).UnixNano()
		sums[key] += l.LoadMW
		counts[key]++
	}
	out := make(map[int64]float64, len(sums))
	for key, sum := range sums {
		out[key] = sum / float64(counts[key])
	}
	return out
}

func bucketWeather(weather []model.WeatherRecord, interval time.Duration) map[int64]model.WeatherFields {
	type acc struct {
		temp, hum, wind float64
		n               int
	}
	sums := make(map[int64]*acc)
	for _, w := range weather {
		key := w.Timestamp.Truncate(interval).UnixNano()
		a, ok := sums[key]
		if !ok {
			a = &acc{}
			sums[key] = a
		}
		a.temp += w.TemperatureC
		a.hum += w.RelativeHumidity
		a.wind += w.WindSpeedKmh
		a.n++
	}
	out := make(map[int64]model.WeatherFields, len(sums))
	for key, a := range sums {
		out[key] = model.WeatherFields{
			TemperatureC:     a.temp / float64(a.n),
			RelativeHumidity: a.hum / float64(a.n),
			WindSpeedKmh:     a.wind / float64(a.n),
		}
	}
	return out
}

// resolveRange computes the requested grid bounds, defaulting to the overlap
// of both streams, and verifies each stream actually covers the range.
func resolveRange(loads map[int64]float64, weather map[int64]model.WeatherFields, cfg Config) (start, end time.Time, err error) {
	loadStart, loadEnd := bucketSpan(loadKeys(loads))
	weatherStart, weatherEnd := bucketSpan(weatherKeys(weather))

	start = maxTime(loadStart, weatherStart)
	end = minTime(loadEnd, weatherEnd)
	if !cfg.Start.IsZero() {
		start = cfg.Start.Truncate(cfg.Interval)
	}
	if !cfg.End.IsZero() {
		end = cfg.End.Truncate(cfg.Interval)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, &model.AlignmentError{Reason: "load and weather streams do not overlap in the requested range"}
	}

	if loadStart.After(end) || loadEnd.Before(start) {
		return time.Time{}, time.Time{}, &model.AlignmentError{Reason: "load stream has no records inside the requested range"}
	}
	if weatherStart.After(end) || weatherEnd.Before(start) {
		return time.Time{}, time.Time{}, &model.AlignmentError{Reason: "weather stream has no records inside the requested range"}
	}
	return start, end, nil
}

func loadKeys(m map[int64]float64) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func weatherKeys(m map[int64]model.WeatherFields) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func bucketSpan(keys []int64) (start, end time.Time) {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return time.Unix(0, keys[0]).UTC(), time.Unix(0, keys[len(keys)-1]).UTC()
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// series is one scalar field on the grid with observation bookkeeping.
type series struct {
	values   []float64
	observed []bool
	imputed  []bool
	missing  []bool
}

func newSeries(n int) *series {
	return &series{
		values:   make([]float64, n),
		observed: make([]bool, n),
		imputed:  make([]bool, n),
		missing:  make([]bool, n),
	}
}

func (s *series) observe(i int, v float64) {
	s.values[i] = v
	s.observed[i] = true
}

// fillGaps linearly interpolates runs of missing slots no longer than maxGap
// between two observed neighbors. Longer runs, and runs touching either edge
// of the grid, are marked missing instead.
func (s *series) fillGaps(maxGap int) {
	n := len(s.values)
	i := 0
	for i < n {
		if s.observed[i] {
			i++
			continue
		}
		runStart := i
		for i < n && !s.observed[i] {
			i++
		}
		runEnd := i // exclusive
		runLen := runEnd - runStart

		hasLeft := runStart > 0
		hasRight := runEnd < n
		if runLen <= maxGap && hasLeft && hasRight {
			left := s.values[runStart-1]
			right := s.values[runEnd]
			span := float64(runLen + 1)
			for j := runStart; j < runEnd; j++ {
				frac := float64(j-runStart+1) / span
				s.values[j] = left + (right-left)*frac
				s.imputed[j] = true
			}
		} else {
			for j := runStart; j < runEnd; j++ {
				s.values[j] = 0
				s.missing[j] = true
			}
		}
	}
}

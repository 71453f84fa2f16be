package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"powerpulse/internal/model"
)

// WeatherParser parses Open-Meteo hourly archive CSV exports.
//
// Expected format:
//
//	date,temperature_2m,relative_humidity_2m,wind_speed_10m
//	2024-06-11T18:00,34.5,62,2.5
type WeatherParser struct {
	// Location applied to timestamps that carry no offset. Defaults to UTC.
	Location *time.Location
}

var weatherHeader = []string{"date", "temperature_2m", "relative_humidity_2m", "wind_speed_10m"}

func (p *WeatherParser) Parse(r io.Reader) ([]model.WeatherRecord, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	if err := validateHeader(header, weatherHeader); err != nil {
		return nil, err
	}

	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}

	var records []model.WeatherRecord
	lineNum := 1

	for {
		lineNum++
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", lineNum, err)
		}

		rec, err := parseWeatherRow(row, lineNum, loc)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

func parseWeatherRow(row []string, lineNum int, loc *time.Location) (model.WeatherRecord, error) {
	if len(row) < len(weatherHeader) {
		return model.WeatherRecord{}, fmt.Errorf("line %d: expected %d fields, got %d", lineNum, len(weatherHeader), len(row))
	}

	ts, err := parseWeatherTime(strings.TrimSpace(row[0]), loc)
	if err != nil {
		return model.WeatherRecord{}, fmt.Errorf("line %d: %w", lineNum, err)
	}

	vals := make([]float64, 3)
	for i := range vals {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[1+i]), 64)
		if err != nil {
			return model.WeatherRecord{}, fmt.Errorf("line %d: parsing %s %q: %w", lineNum, weatherHeader[1+i], row[1+i], err)
		}
		vals[i] = v
	}

	return model.WeatherRecord{
		Timestamp:        ts,
		TemperatureC:     vals[0],
		RelativeHumidity: vals[1],
		WindSpeedKmh:     vals[2],
	}, nil
}

func parseWeatherTime(raw string, loc *time.Location) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"} {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q", raw)
}

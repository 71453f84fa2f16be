package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"powerpulse/internal/feature"
	"powerpulse/internal/model"
	"powerpulse/internal/weatherapi"
)

// WeatherSource supplies the hourly forecast for a date.
type WeatherSource interface {
	HourlyForecast(ctx context.Context, date time.Time) ([]weatherapi.Hour, error)
}

// HourForecast is one region's prediction for one forecast hour.
type HourForecast struct {
	Hour            int     `json:"hour"`
	PredictedLoadMW float64 `json:"predicted_demand_MW"`
	// WeatherOnly marks hours where no load window existed and the caller
	// chose the weather-only fallback.
	WeatherOnly bool `json:"weather_only,omitempty"`
}

// RegionSummary aggregates one region's day forecast.
type RegionSummary struct {
	Region    model.Region `json:"region"`
	PeakMW    float64      `json:"peak_demand"`
	PeakHour  int          `json:"peak_hour"`
	LeastMW   float64      `json:"least_demand"`
	LeastHour int          `json:"least_hour"`
}

// DayForecast is the 24-hour outlook for the requested regions.
type DayForecast struct {
	Date      string                          `json:"date"`
	Hours     map[model.Region][]HourForecast `json:"hours"`
	Summaries []RegionSummary                 `json:"summaries"`
}

// ForecastDay predicts every hour of a date for the requested regions,
// fetching the weather forecast from the configured source. Hours whose load
// window is unavailable (the usual case beyond the history horizon) fall back
// to the weather model alone. The fallback is flagged per hour so callers can
// tell it apart from a fused prediction; fusion itself never substitutes
// defaults.
func (s *Service) ForecastDay(ctx context.Context, source WeatherSource, date time.Time, regions []model.Region) (*DayForecast, error) {
	if len(regions) == 0 {
		regions = []model.Region{model.RegionDelhi}
	}
	models, ok := s.registry.Current()
	if !ok {
		return nil, ErrNoModels
	}

	hours, err := source.HourlyForecast(ctx, date)
	if err != nil {
		return nil, err
	}
	if len(hours) == 0 {
		return nil, fmt.Errorf("weather source returned no hours for %s", date.Format("2006-01-02"))
	}

	out := &DayForecast{
		Date:  date.UTC().Format("2006-01-02"),
		Hours: make(map[model.Region][]HourForecast, len(regions)),
	}

	for _, region := range regions {
		rows := make([]HourForecast, 0, len(hours))
		for _, h := range hours {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			row := HourForecast{Hour: h.Time.Hour()}
			p, err := s.predict(ctx, h.Time, region, h.Weather)
			switch {
			case err == nil:
				row.PredictedLoadMW = p.PredictedLoadMW
			case isUnavailableWindow(err):
				vec := feature.Encode(h.Time, h.Weather, s.holidays)
				wp, werr := models.Weather.PredictVector(vec)
				if werr != nil {
					return nil, fmt.Errorf("weather-only fallback for %s %02d:00: %w", region, h.Time.Hour(), werr)
				}
				row.PredictedLoadMW = wp
				row.WeatherOnly = true
			default:
				return nil, fmt.Errorf("forecasting %s %02d:00: %w", region, h.Time.Hour(), err)
			}
			rows = append(rows, row)
		}

		out.Hours[region] = rows
		out.Summaries = append(out.Summaries, summarize(region, rows))
	}

	s.logger.Info("Served day forecast",
		zap.String("date", out.Date),
		zap.Int("regions", len(regions)),
		zap.Int("hours", len(hours)))

	return out, nil
}

func isUnavailableWindow(err error) bool {
	var uw *model.UnavailableWindowError
	return errors.As(err, &uw)
}

func summarize(region model.Region, rows []HourForecast) RegionSummary {
	sum := RegionSummary{
		Region:    region,
		PeakMW:    rows[0].PredictedLoadMW,
		PeakHour:  rows[0].Hour,
		LeastMW:   rows[0].PredictedLoadMW,
		LeastHour: rows[0].Hour,
	}
	for _, r := range rows {
		if r.PredictedLoadMW > sum.PeakMW {
			sum.PeakMW = r.PredictedLoadMW
			sum.PeakHour = r.Hour
		}
		if r.PredictedLoadMW < sum.LeastMW {
			sum.LeastMW = r.PredictedLoadMW
			sum.LeastHour = r.Hour
		}
	}
	return sum
}

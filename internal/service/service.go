// Package service orchestrates the trained models behind the single
// inference boundary the web layer consumes.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"powerpulse/internal/feature"
	"powerpulse/internal/model"
	"powerpulse/internal/registry"
	"powerpulse/internal/store"
)

// ErrNoModels is returned while no trained model set is published.
var ErrNoModels = errors.New("no trained model set is available")

// Request is one inference request as received from the web layer.
type Request struct {
	Temperature      float64 `json:"temperature_2m"`
	RelativeHumidity float64 `json:"relative_humidity_2m"`
	WindSpeed        float64 `json:"wind_speed_10m"`
	Time             string  `json:"time"` // HH:MM
	Date             string  `json:"date"` // YYYY-MM-DD
	// Region defaults to the system-wide total.
	Region string `json:"region,omitempty"`
}

// Response is the v1 API response.
type Response struct {
	PredictedDemandMW float64 `json:"predicted_demand_MW"`
}

// ResponseV2 adds the component breakdown for internal consumers.
type ResponseV2 struct {
	PredictedDemandMW float64 `json:"predicted_demand_MW"`
	SequencePred      float64 `json:"sequence_pred"`
	WeatherPred       float64 `json:"weather_pred"`
}

// Publisher receives every successfully served prediction.
type Publisher interface {
	PublishPrediction(model.Prediction)
}

// Service resolves inputs, runs the two base models concurrently, and fuses
// their outputs. Any base-model failure fails the whole request; a silently
// degraded forecast is worse than an explicit failure for grid operators.
type Service struct {
	history  *store.History
	registry *registry.Registry
	interval time.Duration
	holidays map[string]bool
	feed     Publisher
	logger   *zap.Logger
}

func New(history *store.History, reg *registry.Registry, interval time.Duration, holidays map[string]bool, feed Publisher, logger *zap.Logger) *Service {
	return &Service{
		history:  history,
		registry: reg,
		interval: interval,
		holidays: holidays,
		feed:     feed,
		logger:   logger,
	}
}

// ParseTimestamp joins the request's date and time fields.
func ParseTimestamp(date, clock string) (time.Time, error) {
	ts, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, time.UTC)
	if err != nil {
		return time.Time{}, &model.FeatureError{
			Field:  "time",
			Reason: fmt.Sprintf("cannot parse %q %q as a timestamp", date, clock),
		}
	}
	return ts, nil
}

// Predict serves one inference request.
func (s *Service) Predict(ctx context.Context, req Request) (model.Prediction, error) {
	ts, err := ParseTimestamp(req.Date, req.Time)
	if err != nil {
		return model.Prediction{}, err
	}

	region := model.RegionDelhi
	if req.Region != "" {
		r, ok := model.ParseRegion(req.Region)
		if !ok {
			return model.Prediction{}, &model.FeatureError{
				Field:  "region",
				Reason: fmt.Sprintf("unknown region %q", req.Region),
			}
		}
		region = r
	}

	weather := model.WeatherFields{
		TemperatureC:     req.Temperature,
		RelativeHumidity: req.RelativeHumidity,
		WindSpeedKmh:     req.WindSpeed,
	}

	return s.predict(ctx, ts, region, weather)
}

func (s *Service) predict(ctx context.Context, ts time.Time, region model.Region, weather model.WeatherFields) (model.Prediction, error) {
	models, ok := s.registry.Current()
	if !ok {
		return model.Prediction{}, ErrNoModels
	}

	window, err := s.history.Window(region, ts, models.Sequence.WindowLength(), s.interval)
	if err != nil {
		return model.Prediction{}, err
	}
	vec := feature.Encode(ts, weather, s.holidays)

	// Run both base models concurrently and join before fusing.
	type result struct {
		value float64
		err   error
	}
	seqCh := make(chan result, 1)
	weatherCh := make(chan result, 1)

	go func() {
		v, err := models.Sequence.PredictWindow(window)
		seqCh <- result{v, err}
	}()
	go func() {
		v, err := models.Weather.PredictVector(vec)
		weatherCh <- result{v, err}
	}()

	seqRes := <-seqCh
	weatherRes := <-weatherCh
	if seqRes.err != nil {
		return model.Prediction{}, fmt.Errorf("sequence model: %w", seqRes.err)
	}
	if weatherRes.err != nil {
		return model.Prediction{}, fmt.Errorf("weather model: %w", weatherRes.err)
	}
	if err := ctx.Err(); err != nil {
		return model.Prediction{}, err
	}

	fused, err := models.Fusion.Combine(seqRes.value, weatherRes.value)
	if err != nil {
		return model.Prediction{}, err
	}
	if math.IsNaN(fused) || math.IsInf(fused, 0) {
		return model.Prediction{}, fmt.Errorf("fused prediction is not finite")
	}

	p := model.Prediction{
		Timestamp:       ts,
		Region:          region,
		PredictedLoadMW: fused,
		SequencePred:    seqRes.value,
		WeatherPred:     weatherRes.value,
	}

	if s.feed != nil {
		s.feed.PublishPrediction(p)
	}
	s.logger.Debug("Served prediction",
		zap.Time("timestamp", ts),
		zap.String("region", string(region)),
		zap.Float64("predicted_mw", fused))

	return p, nil
}

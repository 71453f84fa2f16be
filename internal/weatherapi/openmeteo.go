// Package weatherapi fetches hourly weather forecasts from Open-Meteo for the
// day-ahead forecasting flow. Requests run behind a circuit breaker with
// retried, backed-off attempts so a flaky upstream cannot stall callers.
package weatherapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"powerpulse/internal/model"
)

// Config controls the upstream endpoint and resilience behavior.
type Config struct {
	BaseURL        string
	Latitude       float64
	Longitude      float64
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	Multiplier     float64
	BreakerTimeout time.Duration
}

// DefaultConfig points at the Delhi grid's coordinates.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://api.open-meteo.com/v1",
		Latitude:       28.6519,
		Longitude:      77.2315,
		Timeout:        10 * time.Second,
		MaxRetries:     3,
		RetryDelay:     time.Second,
		Multiplier:     2,
		BreakerTimeout: 30 * time.Second,
	}
}

// Hour is one forecast hour.
type Hour struct {
	Time    time.Time
	Weather model.WeatherFields
}

// Client fetches hourly forecasts.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	settings := gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				zap.String("client", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

type hourlyResponse struct {
	Hourly struct {
		Time               []string  `json:"time"`
		Temperature2M      []float64 `json:"temperature_2m"`
		RelativeHumidity2M []float64 `json:"relative_humidity_2m"`
		WindSpeed10M       []float64 `json:"wind_speed_10m"`
	} `json:"hourly"`
}

// HourlyForecast returns the 24 forecast hours for one date.
func (c *Client) HourlyForecast(ctx context.Context, date time.Time) ([]Hour, error) {
	day := date.UTC().Format("2006-01-02")
	url := fmt.Sprintf(
		"%s/forecast?latitude=%.4f&longitude=%.4f&hourly=temperature_2m,relative_humidity_2m,wind_speed_10m&timezone=UTC&start_date=%s&end_date=%s",
		c.cfg.BaseURL, c.cfg.Latitude, c.cfg.Longitude, day, day)

	body, err := c.getWithRetry(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching hourly forecast: %w", err)
	}

	var resp hourlyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing forecast response: %w", err)
	}

	n := len(resp.Hourly.Time)
	if n == 0 || len(resp.Hourly.Temperature2M) != n ||
		len(resp.Hourly.RelativeHumidity2M) != n || len(resp.Hourly.WindSpeed10M) != n {
		return nil, fmt.Errorf("forecast response has inconsistent hourly arrays")
	}

	hours := make([]Hour, n)
	for i := 0; i < n; i++ {
		ts, err := time.Parse("2006-01-02T15:04", resp.Hourly.Time[i])
		if err != nil {
			return nil, fmt.Errorf("parsing forecast hour %q: %w", resp.Hourly.Time[i], err)
		}
		hours[i] = Hour{
			Time: ts.UTC(),
			Weather: model.WeatherFields{
				TemperatureC:     resp.Hourly.Temperature2M[i],
				RelativeHumidity: resp.Hourly.RelativeHumidity2M[i],
				WindSpeedKmh:     resp.Hourly.WindSpeed10M[i],
			},
		}
	}
	return hours, nil
}

func (c *Client) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doGetWithRetry(ctx, url)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Client) doGetWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(c.cfg.RetryDelay) * math.Pow(c.cfg.Multiplier, float64(attempt-1)))
			c.logger.Debug("Retrying request",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("HTTP request failed",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				lastErr = err
				continue
			}
			return body, nil
		}

		resp.Body.Close()
		lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)

		// Client errors other than 429 will not improve with retries.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429 {
			break
		}
	}

	return nil, fmt.Errorf("max retries exceeded, last error: %w", lastErr)
}

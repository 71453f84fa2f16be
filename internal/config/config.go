package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Server struct {
		Addr         string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
		LogLevel     string
	}

	Data struct {
		LoadCSV    string
		WeatherCSV string
		ModelDir   string
	}

	Pipeline struct {
		Interval     time.Duration
		WindowLength int
		MaxGap       int
	}

	Training struct {
		RetrainCron     string
		Folds           int
		HoldoutFraction float64
	}

	OpenMeteo struct {
		BaseURL   string
		Latitude  float64
		Longitude float64
		Timeout   time.Duration
	}
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		zap.L().Info("No .env file found, using environment variables")
	}

	cfg := &Config{}

	cfg.Server.Addr = getEnv("SERVER_ADDR", ":8080")
	cfg.Server.ReadTimeout = parseDuration(getEnv("SERVER_READ_TIMEOUT", "10s"))
	cfg.Server.WriteTimeout = parseDuration(getEnv("SERVER_WRITE_TIMEOUT", "30s"))
	cfg.Server.LogLevel = getEnv("LOG_LEVEL", "info")

	cfg.Data.LoadCSV = getEnv("LOAD_CSV", "data/load.csv")
	cfg.Data.WeatherCSV = getEnv("WEATHER_CSV", "data/weather.csv")
	cfg.Data.ModelDir = getEnv("MODEL_DIR", "models")

	cfg.Pipeline.Interval = parseDuration(getEnv("GRID_INTERVAL", "1h"))
	cfg.Pipeline.WindowLength = parseInt(getEnv("WINDOW_LENGTH", "48"))
	cfg.Pipeline.MaxGap = parseInt(getEnv("MAX_GAP_INTERVALS", "3"))

	cfg.Training.RetrainCron = getEnv("RETRAIN_CRON", "")
	cfg.Training.Folds = parseInt(getEnv("TRAIN_FOLDS", "5"))
	cfg.Training.HoldoutFraction = parseFloat(getEnv("HOLDOUT_FRACTION", "0.2"))

	cfg.OpenMeteo.BaseURL = getEnv("OPENMETEO_URL", "https://api.open-meteo.com/v1")
	cfg.OpenMeteo.Latitude = parseFloat(getEnv("OPENMETEO_LATITUDE", "28.6519"))
	cfg.OpenMeteo.Longitude = parseFloat(getEnv("OPENMETEO_LONGITUDE", "77.2315"))
	cfg.OpenMeteo.Timeout = parseDuration(getEnv("OPENMETEO_TIMEOUT", "10s"))

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(value string) time.Duration {
	duration, err := time.ParseDuration(value)
	if err != nil {
		zap.L().Warn("Failed to parse duration", zap.String("value", value), zap.Error(err))
		return 0
	}
	return duration
}

func parseInt(value string) int {
	intValue, err := strconv.Atoi(value)
	if err != nil {
		zap.L().Warn("Failed to parse int", zap.String("value", value), zap.Error(err))
		return 0
	}
	return intValue
}

func parseFloat(value string) float64 {
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		zap.L().Warn("Failed to parse float", zap.String("value", value), zap.Error(err))
		return 0
	}
	return floatValue
}

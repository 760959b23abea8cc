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
		Port         string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
	}

	Weather struct {
		APIKey   string
		BaseURL  string
		GeoURL   string
		Timeout  time.Duration
		CacheTTL time.Duration
	}

	Retry struct {
		MaxAttempts  int
		InitialDelay time.Duration
		Multiplier   float64
	}

	CircuitBreaker struct {
		Timeout time.Duration
	}

	Refresh struct {
		Interval time.Duration
	}

	Storage struct {
		Dir string
		Key string
	}

	Geo struct {
		IPEndpoint   string
		GoogleAPIKey string
	}
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		zap.L().Info("No .env file found, using environment variables")
	}

	cfg := &Config{}

	// Server configuration
	cfg.Server.Port = getEnv("PORT", "8080")
	cfg.Server.ReadTimeout = parseDuration(getEnv("READ_TIMEOUT", "10s"))
	cfg.Server.WriteTimeout = parseDuration(getEnv("WRITE_TIMEOUT", "10s"))

	// Weather provider configuration
	cfg.Weather.APIKey = getEnv("OPENWEATHER_API_KEY", "")
	cfg.Weather.BaseURL = getEnv("OPENWEATHER_URL", "https://api.openweathermap.org/data/2.5")
	cfg.Weather.GeoURL = getEnv("OPENWEATHER_GEO_URL", "https://api.openweathermap.org/geo/1.0")
	cfg.Weather.Timeout = parseDuration(getEnv("WEATHER_TIMEOUT", "10s"))
	cfg.Weather.CacheTTL = parseDuration(getEnv("CACHE_TTL", "10m"))

	// Retry configuration
	cfg.Retry.MaxAttempts = parseInt(getEnv("MAX_ATTEMPTS", "3"))
	cfg.Retry.InitialDelay = parseDuration(getEnv("RETRY_DELAY", "1s"))
	cfg.Retry.Multiplier = parseFloat(getEnv("RETRY_MULTIPLIER", "2"))

	// Circuit breaker configuration
	cfg.CircuitBreaker.Timeout = parseDuration(getEnv("CIRCUIT_BREAKER_TIMEOUT", "30s"))

	// Periodic weather refresh
	cfg.Refresh.Interval = parseDuration(getEnv("REFRESH_INTERVAL", "10m"))

	// Local persistence
	cfg.Storage.Dir = getEnv("STORAGE_DIR", "data")
	cfg.Storage.Key = getEnv("STORAGE_KEY", "citywatch-cities")

	// Geolocation
	cfg.Geo.IPEndpoint = getEnv("GEO_IP_ENDPOINT", "http://ip-api.com/json")
	cfg.Geo.GoogleAPIKey = getEnv("GOOGLE_GEOCODER_API_KEY", "")

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

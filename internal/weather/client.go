package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"citywatch/internal/failure"
	"citywatch/internal/models"
	"citywatch/internal/retry"
)

// Client resolves city names or coordinate pairs to normalized weather
// snapshots through the OpenWeatherMap current-weather API. Successful
// results are cached per lookup key for the configured TTL.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	cache      *snapshotCache
	logger     *zap.Logger
	apiKey     string
	baseURL    string
	retryCfg   retry.Config
	now        func() time.Time
}

// ClientConfig bundles provider access and resilience settings.
type ClientConfig struct {
	APIKey         string
	BaseURL        string
	Timeout        time.Duration
	CacheTTL       time.Duration
	MaxAttempts    int
	InitialDelay   time.Duration
	Multiplier     float64
	BreakerTimeout time.Duration

	// Now overrides the clock, for tests. Nil means time.Now.
	Now func() time.Time
}

func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openweathermap.org/data/2.5"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "openweather",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				zap.String("client", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		cache:      newSnapshotCache(cfg.CacheTTL, now),
		logger:     logger,
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		retryCfg: retry.Config{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: cfg.InitialDelay,
			Multiplier:   cfg.Multiplier,
			Retryable:    failure.Retryable,
		},
		now: now,
	}
}

// CurrentByCity resolves a city name to a weather snapshot, serving from
// cache while the entry is fresh.
func (c *Client) CurrentByCity(ctx context.Context, name string) (models.WeatherSnapshot, error) {
	key := cityKey(name)
	if snap, ok := c.cache.get(key); ok {
		c.logger.Debug("Cache hit", zap.String("key", key))
		return snap, nil
	}

	query := url.Values{}
	query.Set("q", name)
	return c.fetch(ctx, key, query)
}

// CurrentByCoords resolves a coordinate pair to a weather snapshot, serving
// from cache while the entry is fresh.
func (c *Client) CurrentByCoords(ctx context.Context, lat, lon float64) (models.WeatherSnapshot, error) {
	key := coordsKey(lat, lon)
	if snap, ok := c.cache.get(key); ok {
		c.logger.Debug("Cache hit", zap.String("key", key))
		return snap, nil
	}

	query := url.Values{}
	query.Set("lat", fmt.Sprintf("%f", lat))
	query.Set("lon", fmt.Sprintf("%f", lon))
	return c.fetch(ctx, key, query)
}

// Validate reports whether a successful fetch is possible for the name.
// All failures are swallowed as a negative result.
func (c *Client) Validate(ctx context.Context, name string) bool {
	_, err := c.CurrentByCity(ctx, name)
	if err != nil {
		c.logger.Debug("Validation fetch failed",
			zap.String("city", name),
			zap.Error(err))
		return false
	}
	return true
}

func (c *Client) fetch(ctx context.Context, key string, query url.Values) (models.WeatherSnapshot, error) {
	query.Set("appid", c.apiKey)
	query.Set("units", "metric")
	reqURL := fmt.Sprintf("%s/weather?%s", c.baseURL, query.Encode())

	var body []byte
	err := retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		var opErr error
		body, opErr = c.doGet(ctx, reqURL)
		return opErr
	}, func(attempt int, err error) {
		c.logger.Warn("Weather fetch failed, retrying",
			zap.String("key", key),
			zap.Int("attempt", attempt),
			zap.Error(err))
	})
	if err != nil {
		return models.WeatherSnapshot{}, err
	}

	snap, err := parseCurrentPayload(body, c.now())
	if err != nil {
		return models.WeatherSnapshot{}, err
	}

	// Every successful fetch overwrites any prior entry for its key.
	c.cache.set(key, snap)
	return snap, nil
}

func (c *Client) doGet(ctx context.Context, reqURL string) ([]byte, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, failure.New(failure.Unknown, err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, failure.New(failure.Network, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, statusFailure(resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, failure.New(failure.Network, err)
		}
		return body, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, failure.New(failure.Network, err)
		}
		return nil, err
	}
	return result.([]byte), nil
}

func statusFailure(code int) error {
	switch code {
	case http.StatusUnauthorized:
		return failure.Newf(failure.InvalidCredential, "provider returned %d", code)
	case http.StatusNotFound:
		return failure.Newf(failure.NotFound, "provider returned %d", code)
	case http.StatusTooManyRequests:
		return failure.Newf(failure.RateLimited, "provider returned %d", code)
	default:
		return failure.Newf(failure.Unknown, "provider returned %d", code)
	}
}

// currentPayload mirrors the provider response. Pointer fields let the
// parser distinguish absent values from zeroes.
type currentPayload struct {
	Coord *struct {
		Lat *float64 `json:"lat"`
		Lon *float64 `json:"lon"`
	} `json:"coord"`
	Weather []struct {
		Description *string `json:"description"`
		Icon        *string `json:"icon"`
	} `json:"weather"`
	Main *struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		Pressure  *float64 `json:"pressure"`
		Humidity  *float64 `json:"humidity"`
	} `json:"main"`
	Wind *struct {
		Speed *float64 `json:"speed"`
		Deg   *float64 `json:"deg"`
	} `json:"wind"`
	Visibility *float64 `json:"visibility"`
	Sys        *struct {
		Country *string `json:"country"`
	} `json:"sys"`
	Name *string `json:"name"`
}

func (p *currentPayload) complete() bool {
	if p.Coord == nil || p.Coord.Lat == nil || p.Coord.Lon == nil {
		return false
	}
	if len(p.Weather) == 0 || p.Weather[0].Description == nil || p.Weather[0].Icon == nil {
		return false
	}
	if p.Main == nil || p.Main.Temp == nil || p.Main.FeelsLike == nil ||
		p.Main.Pressure == nil || p.Main.Humidity == nil {
		return false
	}
	if p.Wind == nil || p.Wind.Speed == nil || p.Wind.Deg == nil {
		return false
	}
	if p.Visibility == nil || p.Sys == nil || p.Sys.Country == nil || p.Name == nil {
		return false
	}
	return true
}

func parseCurrentPayload(body []byte, fetchedAt time.Time) (models.WeatherSnapshot, error) {
	var payload currentPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return models.WeatherSnapshot{}, failure.New(failure.Format, err)
	}
	if !payload.complete() {
		return models.WeatherSnapshot{}, failure.Newf(failure.Format, "provider payload missing required fields")
	}
	if lat, lon := *payload.Coord.Lat, *payload.Coord.Lon; lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return models.WeatherSnapshot{}, failure.Newf(failure.Format, "provider payload coordinates out of range")
	}

	deg := int(*payload.Wind.Deg) % 360
	if deg < 0 {
		deg += 360
	}

	return models.WeatherSnapshot{
		Temperature: round1(*payload.Main.Temp),
		FeelsLike:   round1(*payload.Main.FeelsLike),
		Description: *payload.Weather[0].Description,
		Icon:        *payload.Weather[0].Icon,
		WindSpeed:   round1(*payload.Wind.Speed),
		WindDir:     WindDirection(*payload.Wind.Deg),
		WindDegrees: deg,
		Pressure:    int(*payload.Main.Pressure),
		Humidity:    int(*payload.Main.Humidity),
		DewPoint:    DewPoint(*payload.Main.Temp, *payload.Main.Humidity),
		Visibility:  VisibilityKM(*payload.Visibility),
		FetchedAt:   fetchedAt.UnixMilli(),
		Resolved: models.ResolvedPlace{
			Name:      *payload.Name,
			Country:   *payload.Sys.Country,
			Latitude:  *payload.Coord.Lat,
			Longitude: *payload.Coord.Lon,
		},
	}, nil
}

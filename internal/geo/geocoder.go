package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kelvins/geocoder"
	"go.uber.org/zap"

	"citywatch/internal/failure"
)

// ReverseGeocoder turns a coordinate pair into a "Name, CountryCode" label.
type ReverseGeocoder interface {
	CityFor(ctx context.Context, lat, lon float64) (string, error)
}

// OpenWeatherGeocoder reverse-geocodes through the OpenWeatherMap geo API
// with a result limit of 1.
type OpenWeatherGeocoder struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	logger     *zap.Logger
}

func NewOpenWeatherGeocoder(apiKey, baseURL string, logger *zap.Logger) *OpenWeatherGeocoder {
	if baseURL == "" {
		baseURL = "https://api.openweathermap.org/geo/1.0"
	}
	return &OpenWeatherGeocoder{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiKey:     apiKey,
		baseURL:    baseURL,
		logger:     logger,
	}
}

func (g *OpenWeatherGeocoder) CityFor(ctx context.Context, lat, lon float64) (string, error) {
	query := url.Values{}
	query.Set("lat", fmt.Sprintf("%f", lat))
	query.Set("lon", fmt.Sprintf("%f", lon))
	query.Set("limit", "1")
	query.Set("appid", g.apiKey)

	reqURL := fmt.Sprintf("%s/reverse?%s", g.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", failure.New(failure.Unknown, err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", failure.New(failure.Network, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", failure.Newf(failure.InvalidCredential, "geocoder returned %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", failure.Newf(failure.Unknown, "geocoder returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", failure.New(failure.Network, err)
	}

	var places []struct {
		Name    *string `json:"name"`
		Country *string `json:"country"`
	}
	if err := json.Unmarshal(body, &places); err != nil {
		return "", failure.New(failure.Format, err)
	}
	if len(places) == 0 {
		return "", failure.Newf(failure.NotFound, "no place at %f,%f", lat, lon)
	}
	if places[0].Name == nil || places[0].Country == nil {
		return "", failure.Newf(failure.Format, "geocoder result missing name or country")
	}

	g.logger.Debug("Reverse geocoded",
		zap.Float64("lat", lat),
		zap.Float64("lon", lon),
		zap.String("place", *places[0].Name))

	return fmt.Sprintf("%s, %s", *places[0].Name, *places[0].Country), nil
}

// GoogleGeocoder is an alternate ReverseGeocoder over the Google Geocoding
// API. It reports full country names rather than ISO codes.
type GoogleGeocoder struct {
	logger *zap.Logger
}

func NewGoogleGeocoder(apiKey string, logger *zap.Logger) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{logger: logger}
}

func (g *GoogleGeocoder) CityFor(ctx context.Context, lat, lon float64) (string, error) {
	addresses, err := geocoder.GeocodingReverse(geocoder.Location{
		Latitude:  lat,
		Longitude: lon,
	})
	if err != nil {
		return "", failure.New(failure.Network, err)
	}
	if len(addresses) == 0 {
		return "", failure.Newf(failure.NotFound, "no place at %f,%f", lat, lon)
	}

	addr := addresses[0]
	if addr.City == "" || addr.Country == "" {
		return "", failure.Newf(failure.Format, "geocoder result missing name or country")
	}

	g.logger.Debug("Reverse geocoded via Google",
		zap.Float64("lat", lat),
		zap.Float64("lon", lon),
		zap.String("place", addr.City))

	return fmt.Sprintf("%s, %s", addr.City, addr.Country), nil
}

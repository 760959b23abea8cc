// Package geo resolves the device's approximate position and turns
// coordinate pairs back into place names.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"citywatch/internal/failure"
	"citywatch/internal/models"
)

// PositionSource answers "where is this installation right now". A server
// process has no browser geolocation capability, so implementations
// approximate it (the shipped one asks an IP geolocation endpoint).
type PositionSource interface {
	CurrentPosition(ctx context.Context) (models.Coordinates, error)
}

const (
	positionTimeout = 10 * time.Second
	positionMaxAge  = 5 * time.Minute
)

// IPLocator resolves approximate coordinates from an IP geolocation
// endpoint. A position resolved within the last five minutes is reused
// without a new request.
type IPLocator struct {
	httpClient *http.Client
	endpoint   string
	logger     *zap.Logger

	mu         sync.Mutex
	cached     models.Coordinates
	resolvedAt time.Time

	now func() time.Time
}

func NewIPLocator(endpoint string, logger *zap.Logger) *IPLocator {
	return &IPLocator{
		httpClient: &http.Client{Timeout: positionTimeout},
		endpoint:   endpoint,
		logger:     logger,
		now:        time.Now,
	}
}

// CurrentPosition requests the device position with a fixed 10s timeout,
// accepting a cached position up to 5 minutes old. An unconfigured
// endpoint means no location capability at all: it fails immediately
// without attempting a request.
func (l *IPLocator) CurrentPosition(ctx context.Context) (models.Coordinates, error) {
	if l.endpoint == "" {
		return models.Coordinates{}, failure.Newf(failure.PositionUnavailable, "no location capability configured")
	}

	l.mu.Lock()
	if !l.resolvedAt.IsZero() && l.now().Sub(l.resolvedAt) < positionMaxAge {
		pos := l.cached
		l.mu.Unlock()
		return pos, nil
	}
	l.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, positionTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint, nil)
	if err != nil {
		return models.Coordinates{}, failure.New(failure.PositionUnavailable, err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.Coordinates{}, failure.New(failure.Timeout, err)
		}
		return models.Coordinates{}, failure.New(failure.PositionUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return models.Coordinates{}, failure.Newf(failure.PermissionDenied, "location endpoint returned %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Coordinates{}, failure.Newf(failure.Unknown, "location endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Coordinates{}, failure.New(failure.PositionUnavailable, err)
	}

	var payload struct {
		Status string   `json:"status"`
		Lat    *float64 `json:"lat"`
		Lon    *float64 `json:"lon"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return models.Coordinates{}, failure.New(failure.PositionUnavailable, err)
	}
	if payload.Status == "fail" || payload.Lat == nil || payload.Lon == nil {
		return models.Coordinates{}, failure.Newf(failure.PositionUnavailable, "location endpoint gave no position")
	}

	pos := models.Coordinates{Latitude: *payload.Lat, Longitude: *payload.Lon}

	l.mu.Lock()
	l.cached = pos
	l.resolvedAt = l.now()
	l.mu.Unlock()

	l.logger.Debug("Position resolved",
		zap.Float64("lat", pos.Latitude),
		zap.Float64("lon", pos.Longitude))

	return pos, nil
}

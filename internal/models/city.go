package models

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TrackedCity is a place the user is monitoring. Its ID is stable for the
// city's lifetime in the list.
type TrackedCity struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	CreatedAt int64   `json:"created_at"` // milliseconds since epoch
}

// NewTrackedCity creates a city with a fresh id and creation timestamp.
func NewTrackedCity(name, country string, lat, lon float64) TrackedCity {
	return TrackedCity{
		ID:        uuid.NewString(),
		Name:      name,
		Country:   country,
		Latitude:  lat,
		Longitude: lon,
		CreatedAt: time.Now().UnixMilli(),
	}
}

// Valid reports whether the city is structurally sound: non-empty identity
// and in-range, finite coordinates.
func (c TrackedCity) Valid() bool {
	if c.ID == "" || strings.TrimSpace(c.Name) == "" {
		return false
	}
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) ||
		math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// SameName compares city names case-insensitively for duplicate detection.
func (c TrackedCity) SameName(name string) bool {
	return strings.EqualFold(strings.TrimSpace(c.Name), strings.TrimSpace(name))
}

// Coordinates is a geographic coordinate pair (WGS 84).
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

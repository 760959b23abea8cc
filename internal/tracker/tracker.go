// Package tracker owns the authoritative in-memory list of tracked cities
// and mediates every add/remove/reorder against persistence.
package tracker

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"citywatch/internal/failure"
	"citywatch/internal/geo"
	"citywatch/internal/models"
)

// Mode is the active presentation surface. Exactly one is active at a
// time, orthogonal to the data state.
type Mode string

const (
	ModeDisplay Mode = "display"
	ModeManage  Mode = "manage"
)

// WeatherService is the slice of the weather client the tracker needs.
type WeatherService interface {
	CurrentByCity(ctx context.Context, name string) (models.WeatherSnapshot, error)
	CurrentByCoords(ctx context.Context, lat, lon float64) (models.WeatherSnapshot, error)
}

// Persister mirrors the city list to durable storage.
type Persister interface {
	Load() []models.TrackedCity
	Save(cities []models.TrackedCity) error
	Clear()
}

// Tracker is the city collection state machine. Data-affecting operations
// are serialized behind the mutex, so each is atomic from the caller's
// point of view and a failed operation leaves the list unchanged.
type Tracker struct {
	mu      sync.Mutex
	cities  []models.TrackedCity
	mode    Mode
	message string

	store    Persister
	weather  WeatherService
	locator  geo.PositionSource
	geocoder geo.ReverseGeocoder
	logger   *zap.Logger
}

func New(store Persister, weather WeatherService, locator geo.PositionSource, geocoder geo.ReverseGeocoder, logger *zap.Logger) *Tracker {
	return &Tracker{
		mode:     ModeDisplay,
		store:    store,
		weather:  weather,
		locator:  locator,
		geocoder: geocoder,
		logger:   logger,
	}
}

// Init loads the persisted list. When nothing is stored it attempts a
// geolocation-driven bootstrap; if that fails for any reason the tracker
// switches to manage mode with a message instead of crashing.
func (t *Tracker) Init(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cities := t.store.Load(); len(cities) > 0 {
		t.cities = cities
		return nil
	}

	city, err := t.bootstrap(ctx)
	if err != nil {
		t.logger.Warn("Geolocation bootstrap failed", zap.Error(err))
		t.mode = ModeManage
		t.message = failure.Message(err)
		return err
	}

	t.cities = []models.TrackedCity{city}
	if err := t.store.Save(t.cities); err != nil {
		t.logger.Warn("Failed to persist bootstrapped city", zap.Error(err))
	}
	return nil
}

func (t *Tracker) bootstrap(ctx context.Context) (models.TrackedCity, error) {
	if t.locator == nil {
		return models.TrackedCity{}, failure.Newf(failure.PositionUnavailable, "no location capability configured")
	}

	pos, err := t.locator.CurrentPosition(ctx)
	if err != nil {
		return models.TrackedCity{}, err
	}

	place, err := t.geocoder.CityFor(ctx, pos.Latitude, pos.Longitude)
	if err != nil {
		return models.TrackedCity{}, err
	}

	name, country := splitPlace(place)
	city := models.NewTrackedCity(name, country, pos.Latitude, pos.Longitude)
	if !city.Valid() {
		return models.TrackedCity{}, failure.Newf(failure.Format, "geolocation resolved an invalid place")
	}
	return city, nil
}

func splitPlace(place string) (name, country string) {
	if i := strings.LastIndex(place, ","); i >= 0 {
		return strings.TrimSpace(place[:i]), strings.TrimSpace(place[i+1:])
	}
	return strings.TrimSpace(place), ""
}

// Add validates the name against the weather client, constructs a city
// from the resolved place, appends it, and persists. Blank input and
// case-insensitive duplicates are rejected without a fetch.
func (t *Tracker) Add(ctx context.Context, name string) (models.TrackedCity, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return models.TrackedCity{}, t.fail(failure.Newf(failure.Validation, "city name is empty"))
	}
	for _, c := range t.cities {
		if c.SameName(name) {
			return models.TrackedCity{}, t.fail(failure.Newf(failure.Validation, "city %q is already tracked", c.Name))
		}
	}

	snap, err := t.weather.CurrentByCity(ctx, name)
	if err != nil {
		return models.TrackedCity{}, t.fail(err)
	}

	city := models.NewTrackedCity(
		snap.Resolved.Name,
		snap.Resolved.Country,
		snap.Resolved.Latitude,
		snap.Resolved.Longitude,
	)
	// An invalid resolved place must never reach the store: Load treats
	// an envelope with one bad city as corrupt and drops the whole list.
	if !city.Valid() {
		return models.TrackedCity{}, t.fail(failure.Newf(failure.Format, "provider resolved an invalid place for %q", name))
	}

	next := append(append([]models.TrackedCity(nil), t.cities...), city)
	if err := t.store.Save(next); err != nil {
		return models.TrackedCity{}, t.fail(err)
	}

	t.cities = next
	t.message = ""
	return city, nil
}

// Remove deletes the city with the given id and persists. The last
// remaining city cannot be removed.
func (t *Tracker) Remove(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.cities) <= 1 {
		return t.fail(failure.Newf(failure.Validation, "cannot remove the last tracked city"))
	}

	idx := -1
	for i, c := range t.cities {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return t.fail(failure.Newf(failure.Validation, "no tracked city with id %s", id))
	}

	next := append(append([]models.TrackedCity(nil), t.cities[:idx]...), t.cities[idx+1:]...)
	if err := t.store.Save(next); err != nil {
		return t.fail(err)
	}

	t.cities = next
	t.message = ""
	return nil
}

// Reorder replaces the list with the given permutation and persists. The
// ids must be exactly the current ids; anything else is a validation
// failure rather than a silent corruption.
func (t *Tracker) Reorder(ctx context.Context, ids []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(ids) != len(t.cities) {
		return t.fail(failure.Newf(failure.Validation, "reorder must list all %d tracked cities", len(t.cities)))
	}

	byID := make(map[string]models.TrackedCity, len(t.cities))
	for _, c := range t.cities {
		byID[c.ID] = c
	}

	next := make([]models.TrackedCity, 0, len(ids))
	for _, id := range ids {
		city, ok := byID[id]
		if !ok {
			return t.fail(failure.Newf(failure.Validation, "reorder references unknown or repeated id %s", id))
		}
		delete(byID, id)
		next = append(next, city)
	}

	if err := t.store.Save(next); err != nil {
		return t.fail(err)
	}

	t.cities = next
	t.message = ""
	return nil
}

// ToggleMode flips between display and manage and clears any pending
// message.
func (t *Tracker) ToggleMode() Mode {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.mode == ModeDisplay {
		t.mode = ModeManage
	} else {
		t.mode = ModeDisplay
	}
	t.message = ""
	return t.mode
}

// Cities returns a copy of the tracked list in display order.
func (t *Tracker) Cities() []models.TrackedCity {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.TrackedCity(nil), t.cities...)
}

// Mode returns the active presentation mode.
func (t *Tracker) Mode() Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// Message returns the pending user-facing message, empty when none.
func (t *Tracker) Message() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.message
}

// Snapshot resolves the current weather for one tracked city.
func (t *Tracker) Snapshot(ctx context.Context, id string) (models.WeatherSnapshot, error) {
	t.mu.Lock()
	var city *models.TrackedCity
	for i := range t.cities {
		if t.cities[i].ID == id {
			city = &t.cities[i]
			break
		}
	}
	t.mu.Unlock()

	if city == nil {
		return models.WeatherSnapshot{}, failure.Newf(failure.NotFound, "no tracked city with id %s", id)
	}

	snap, err := t.weather.CurrentByCoords(ctx, city.Latitude, city.Longitude)
	if err != nil {
		return models.WeatherSnapshot{}, err
	}
	snap.CityID = city.ID
	return snap, nil
}

// RefreshAll warms the weather cache for every tracked city. A stale
// refresh completing after the list changed only updates its own city's
// cache entry, so failures are logged and skipped rather than surfaced.
func (t *Tracker) RefreshAll(ctx context.Context) {
	for _, city := range t.Cities() {
		if _, err := t.weather.CurrentByCoords(ctx, city.Latitude, city.Longitude); err != nil {
			t.logger.Warn("Refresh failed for city",
				zap.String("city", city.Name),
				zap.Error(err))
		}
	}
}

// fail records the user-facing message for err and returns it. Callers
// hold the mutex.
func (t *Tracker) fail(err error) error {
	t.message = failure.Message(err)
	return err
}

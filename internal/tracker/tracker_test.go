package tracker

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"citywatch/internal/failure"
	"citywatch/internal/models"
)

type fakeWeather struct {
	byCity   map[string]models.WeatherSnapshot
	cityErr  error
	byCoords models.WeatherSnapshot
	coordErr error
	calls    int
}

func (f *fakeWeather) CurrentByCity(ctx context.Context, name string) (models.WeatherSnapshot, error) {
	f.calls++
	if f.cityErr != nil {
		return models.WeatherSnapshot{}, f.cityErr
	}
	if snap, ok := f.byCity[name]; ok {
		return snap, nil
	}
	return models.WeatherSnapshot{}, failure.Newf(failure.NotFound, "no such city")
}

func (f *fakeWeather) CurrentByCoords(ctx context.Context, lat, lon float64) (models.WeatherSnapshot, error) {
	f.calls++
	if f.coordErr != nil {
		return models.WeatherSnapshot{}, f.coordErr
	}
	return f.byCoords, nil
}

type fakeStore struct {
	stored  []models.TrackedCity
	saveErr error
	saves   int
}

func (f *fakeStore) Load() []models.TrackedCity { return f.stored }

func (f *fakeStore) Save(cities []models.TrackedCity) error {
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.stored = append([]models.TrackedCity(nil), cities...)
	return nil
}

func (f *fakeStore) Clear() { f.stored = nil }

type fakeLocator struct {
	pos models.Coordinates
	err error
}

func (f *fakeLocator) CurrentPosition(ctx context.Context) (models.Coordinates, error) {
	return f.pos, f.err
}

type fakeGeocoder struct {
	place string
	err   error
}

func (f *fakeGeocoder) CityFor(ctx context.Context, lat, lon float64) (string, error) {
	return f.place, f.err
}

func parisSnapshot() models.WeatherSnapshot {
	return models.WeatherSnapshot{
		Temperature: 18.5,
		Resolved: models.ResolvedPlace{
			Name: "Paris", Country: "FR", Latitude: 48.85, Longitude: 2.35,
		},
	}
}

func seededTracker(t *testing.T, cities ...models.TrackedCity) (*Tracker, *fakeStore, *fakeWeather) {
	t.Helper()
	st := &fakeStore{stored: cities}
	w := &fakeWeather{byCity: map[string]models.WeatherSnapshot{"Paris": parisSnapshot()}}
	tr := New(st, w, nil, &fakeGeocoder{}, zap.NewNop())
	if err := tr.Init(context.Background()); len(cities) > 0 && err != nil {
		t.Fatalf("init failed: %v", err)
	}
	return tr, st, w
}

func TestAddCity(t *testing.T) {
	tr, st, _ := seededTracker(t,
		models.TrackedCity{ID: "1", Name: "Tokyo", Country: "JP", Latitude: 35.68, Longitude: 139.65, CreatedAt: 1},
	)

	city, err := tr.Add(context.Background(), "Paris")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if city.Name != "Paris" || city.Country != "FR" {
		t.Errorf("expected resolved place, got %+v", city)
	}
	if city.ID == "" || city.CreatedAt == 0 {
		t.Error("expected fresh id and creation timestamp")
	}

	cities := tr.Cities()
	if len(cities) != 2 || cities[1].Name != "Paris" {
		t.Errorf("expected Paris appended, got %v", cities)
	}
	if st.saves != 1 {
		t.Errorf("expected one persistence write, got %d", st.saves)
	}
}

func TestAddRejectsBlankName(t *testing.T) {
	tr, st, w := seededTracker(t,
		models.TrackedCity{ID: "1", Name: "Tokyo", Latitude: 1, Longitude: 2, CreatedAt: 1},
	)

	_, err := tr.Add(context.Background(), "   ")
	if got := failure.KindOf(err); got != failure.Validation {
		t.Fatalf("expected validation failure, got %v", got)
	}
	if w.calls != 0 {
		t.Error("blank input must be rejected before any fetch")
	}
	if st.saves != 0 || len(tr.Cities()) != 1 {
		t.Error("failed add must not mutate state")
	}
	if tr.Message() == "" {
		t.Error("expected a pending user-facing message")
	}
}

func TestAddRejectsCaseInsensitiveDuplicate(t *testing.T) {
	tr, st, w := seededTracker(t,
		models.TrackedCity{ID: "1", Name: "Paris", Country: "FR", Latitude: 48.85, Longitude: 2.35, CreatedAt: 1},
	)

	_, err := tr.Add(context.Background(), "PARIS")
	if got := failure.KindOf(err); got != failure.Validation {
		t.Fatalf("expected validation failure, got %v", got)
	}
	if w.calls != 0 {
		t.Error("duplicates must be rejected before any fetch")
	}
	if st.saves != 0 || len(tr.Cities()) != 1 {
		t.Error("duplicate add must leave the list unchanged")
	}
}

func TestAddRejectsInvalidResolvedPlace(t *testing.T) {
	testCases := []struct {
		name     string
		resolved models.ResolvedPlace
	}{
		{
			name:     "latitude out of range",
			resolved: models.ResolvedPlace{Name: "Paris", Country: "FR", Latitude: 200, Longitude: 2.35},
		},
		{
			name:     "longitude out of range",
			resolved: models.ResolvedPlace{Name: "Paris", Country: "FR", Latitude: 48.85, Longitude: -300},
		},
		{
			name:     "empty resolved name",
			resolved: models.ResolvedPlace{Country: "FR", Latitude: 48.85, Longitude: 2.35},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			st := &fakeStore{stored: []models.TrackedCity{
				{ID: "1", Name: "Tokyo", Country: "JP", Latitude: 35.68, Longitude: 139.65, CreatedAt: 1},
			}}
			w := &fakeWeather{byCity: map[string]models.WeatherSnapshot{
				"Paris": {Resolved: tc.resolved},
			}}
			tr := New(st, w, nil, &fakeGeocoder{}, zap.NewNop())
			if err := tr.Init(context.Background()); err != nil {
				t.Fatalf("init failed: %v", err)
			}

			_, err := tr.Add(context.Background(), "Paris")
			if got := failure.KindOf(err); got != failure.Format {
				t.Fatalf("expected format failure, got %v (%v)", got, err)
			}
			if st.saves != 0 {
				t.Error("invalid resolved place must never be persisted")
			}
			if cities := tr.Cities(); len(cities) != 1 || cities[0].Name != "Tokyo" {
				t.Errorf("existing list must be untouched, got %v", cities)
			}
		})
	}
}

func TestAddInvalidPlaceKeepsPersistedListLoadable(t *testing.T) {
	st := &fakeStore{stored: []models.TrackedCity{
		{ID: "1", Name: "Tokyo", Country: "JP", Latitude: 35.68, Longitude: 139.65, CreatedAt: 1},
	}}
	w := &fakeWeather{byCity: map[string]models.WeatherSnapshot{
		"Paris": {Resolved: models.ResolvedPlace{Name: "Paris", Country: "FR", Latitude: 200, Longitude: 2.35}},
	}}
	tr := New(st, w, nil, &fakeGeocoder{}, zap.NewNop())
	if err := tr.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	if _, err := tr.Add(context.Background(), "Paris"); err == nil {
		t.Fatal("expected the add to be rejected")
	}

	// A second tracker over the same store must still see the old list.
	fresh := New(st, &fakeWeather{}, nil, &fakeGeocoder{}, zap.NewNop())
	if err := fresh.Init(context.Background()); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if cities := fresh.Cities(); len(cities) != 1 || cities[0].Name != "Tokyo" {
		t.Errorf("persisted list lost after a rejected add: %v", cities)
	}
}

func TestAddDoesNotCommitOnSaveFailure(t *testing.T) {
	tr, st, _ := seededTracker(t,
		models.TrackedCity{ID: "1", Name: "Tokyo", Latitude: 1, Longitude: 2, CreatedAt: 1},
	)
	st.saveErr = failure.Newf(failure.StorageCapacity, "full")

	_, err := tr.Add(context.Background(), "Paris")
	if got := failure.KindOf(err); got != failure.StorageCapacity {
		t.Fatalf("expected capacity failure, got %v", got)
	}
	if len(tr.Cities()) != 1 {
		t.Error("failed persistence must leave the in-memory list unchanged")
	}
}

func TestRemoveLastCityProtected(t *testing.T) {
	tr, st, _ := seededTracker(t,
		models.TrackedCity{ID: "only", Name: "Paris", Latitude: 1, Longitude: 2, CreatedAt: 1},
	)

	err := tr.Remove(context.Background(), "only")
	if got := failure.KindOf(err); got != failure.Validation {
		t.Fatalf("expected validation failure, got %v", got)
	}
	if len(tr.Cities()) != 1 || st.saves != 0 {
		t.Error("last city must survive a remove attempt")
	}
}

func TestRemoveTargetsExactCity(t *testing.T) {
	tr, st, _ := seededTracker(t,
		models.TrackedCity{ID: "1", Name: "Paris", Latitude: 1, Longitude: 2, CreatedAt: 1},
		models.TrackedCity{ID: "2", Name: "Tokyo", Latitude: 3, Longitude: 4, CreatedAt: 2},
		models.TrackedCity{ID: "3", Name: "Sydney", Latitude: 5, Longitude: 6, CreatedAt: 3},
	)

	if err := tr.Remove(context.Background(), "2"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	cities := tr.Cities()
	if len(cities) != 2 || cities[0].ID != "1" || cities[1].ID != "3" {
		t.Errorf("expected exactly city 2 removed, got %v", cities)
	}
	if st.saves != 1 || len(st.stored) != 2 {
		t.Error("expected the new list persisted")
	}
}

func TestRemoveUnknownID(t *testing.T) {
	tr, _, _ := seededTracker(t,
		models.TrackedCity{ID: "1", Name: "Paris", Latitude: 1, Longitude: 2, CreatedAt: 1},
		models.TrackedCity{ID: "2", Name: "Tokyo", Latitude: 3, Longitude: 4, CreatedAt: 2},
	)

	err := tr.Remove(context.Background(), "ghost")
	if got := failure.KindOf(err); got != failure.Validation {
		t.Errorf("expected validation failure, got %v", got)
	}
	if len(tr.Cities()) != 2 {
		t.Error("unknown id must leave the list unchanged")
	}
}

func TestReorder(t *testing.T) {
	tr, st, _ := seededTracker(t,
		models.TrackedCity{ID: "1", Name: "Paris", Latitude: 1, Longitude: 2, CreatedAt: 1},
		models.TrackedCity{ID: "2", Name: "Tokyo", Latitude: 3, Longitude: 4, CreatedAt: 2},
		models.TrackedCity{ID: "3", Name: "Sydney", Latitude: 5, Longitude: 6, CreatedAt: 3},
	)

	if err := tr.Reorder(context.Background(), []string{"3", "1", "2"}); err != nil {
		t.Fatalf("reorder failed: %v", err)
	}

	cities := tr.Cities()
	if cities[0].ID != "3" || cities[1].ID != "1" || cities[2].ID != "2" {
		t.Errorf("unexpected order: %v", cities)
	}
	if st.saves != 1 {
		t.Errorf("expected one persistence write, got %d", st.saves)
	}
}

func TestReorderRejectsMalformedPermutations(t *testing.T) {
	testCases := []struct {
		name string
		ids  []string
	}{
		{name: "missing id", ids: []string{"1", "2"}},
		{name: "unknown id", ids: []string{"1", "2", "ghost"}},
		{name: "repeated id", ids: []string{"1", "2", "2"}},
		{name: "extra id", ids: []string{"1", "2", "3", "4"}},
		{name: "empty", ids: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr, st, _ := seededTracker(t,
				models.TrackedCity{ID: "1", Name: "Paris", Latitude: 1, Longitude: 2, CreatedAt: 1},
				models.TrackedCity{ID: "2", Name: "Tokyo", Latitude: 3, Longitude: 4, CreatedAt: 2},
				models.TrackedCity{ID: "3", Name: "Sydney", Latitude: 5, Longitude: 6, CreatedAt: 3},
			)

			err := tr.Reorder(context.Background(), tc.ids)
			if got := failure.KindOf(err); got != failure.Validation {
				t.Fatalf("expected validation failure, got %v", got)
			}
			cities := tr.Cities()
			if cities[0].ID != "1" || cities[1].ID != "2" || cities[2].ID != "3" {
				t.Error("malformed reorder must leave the order unchanged")
			}
			if st.saves != 0 {
				t.Error("malformed reorder must not persist")
			}
		})
	}
}

func TestToggleModeClearsMessage(t *testing.T) {
	tr, _, _ := seededTracker(t,
		models.TrackedCity{ID: "only", Name: "Paris", Latitude: 1, Longitude: 2, CreatedAt: 1},
	)

	_ = tr.Remove(context.Background(), "only")
	if tr.Message() == "" {
		t.Fatal("expected a pending message after a failed operation")
	}

	if got := tr.ToggleMode(); got != ModeManage {
		t.Errorf("expected manage mode, got %v", got)
	}
	if tr.Message() != "" {
		t.Error("toggling mode must clear the pending message")
	}
	if got := tr.ToggleMode(); got != ModeDisplay {
		t.Errorf("expected display mode, got %v", got)
	}
}

func TestInitLoadsPersistedList(t *testing.T) {
	tr, _, _ := seededTracker(t,
		models.TrackedCity{ID: "1", Name: "Paris", Latitude: 1, Longitude: 2, CreatedAt: 1},
	)

	if len(tr.Cities()) != 1 || tr.Mode() != ModeDisplay {
		t.Errorf("expected loaded list in display mode, got %v/%v", tr.Cities(), tr.Mode())
	}
}

func TestInitBootstrapsFromGeolocation(t *testing.T) {
	st := &fakeStore{}
	tr := New(st, &fakeWeather{},
		&fakeLocator{pos: models.Coordinates{Latitude: 48.85, Longitude: 2.35}},
		&fakeGeocoder{place: "Paris, FR"},
		zap.NewNop())

	if err := tr.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	cities := tr.Cities()
	if len(cities) != 1 {
		t.Fatalf("expected one bootstrapped city, got %d", len(cities))
	}
	if cities[0].Name != "Paris" || cities[0].Country != "FR" {
		t.Errorf("unexpected bootstrapped city: %+v", cities[0])
	}
	if cities[0].Latitude != 48.85 || cities[0].Longitude != 2.35 {
		t.Errorf("expected device coordinates, got %+v", cities[0])
	}
	if st.saves != 1 {
		t.Error("expected the bootstrapped list persisted")
	}
}

func TestInitBootstrapFailureFallsBackToManage(t *testing.T) {
	testCases := []struct {
		name    string
		locator *fakeLocator
		geocode *fakeGeocoder
	}{
		{
			name:    "position denied",
			locator: &fakeLocator{err: failure.Newf(failure.PermissionDenied, "denied")},
			geocode: &fakeGeocoder{},
		},
		{
			name:    "geocoding failed",
			locator: &fakeLocator{pos: models.Coordinates{Latitude: 1, Longitude: 2}},
			geocode: &fakeGeocoder{err: failure.Newf(failure.Network, "offline")},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr := New(&fakeStore{}, &fakeWeather{}, tc.locator, tc.geocode, zap.NewNop())

			if err := tr.Init(context.Background()); err == nil {
				t.Fatal("expected bootstrap failure")
			}
			if tr.Mode() != ModeManage {
				t.Error("bootstrap failure must switch to manage mode")
			}
			if tr.Message() == "" {
				t.Error("bootstrap failure must leave a user-facing message")
			}
			if len(tr.Cities()) != 0 {
				t.Error("bootstrap failure must not invent cities")
			}
		})
	}
}

func TestInitWithoutLocator(t *testing.T) {
	tr := New(&fakeStore{}, &fakeWeather{}, nil, &fakeGeocoder{}, zap.NewNop())

	err := tr.Init(context.Background())
	if got := failure.KindOf(err); got != failure.PositionUnavailable {
		t.Errorf("expected position-unavailable failure, got %v", got)
	}
	if tr.Mode() != ModeManage {
		t.Error("missing capability must switch to manage mode")
	}
}

func TestSnapshotForTrackedCity(t *testing.T) {
	st := &fakeStore{stored: []models.TrackedCity{
		{ID: "1", Name: "Paris", Latitude: 48.85, Longitude: 2.35, CreatedAt: 1},
	}}
	w := &fakeWeather{byCoords: models.WeatherSnapshot{Temperature: 18.5}}
	tr := New(st, w, nil, &fakeGeocoder{}, zap.NewNop())
	if err := tr.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	snap, err := tr.Snapshot(context.Background(), "1")
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snap.CityID != "1" || snap.Temperature != 18.5 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	_, err = tr.Snapshot(context.Background(), "ghost")
	if got := failure.KindOf(err); got != failure.NotFound {
		t.Errorf("expected not-found failure, got %v", got)
	}
}

func TestAddReportsClassifiedFetchFailure(t *testing.T) {
	st := &fakeStore{stored: []models.TrackedCity{
		{ID: "1", Name: "Tokyo", Latitude: 1, Longitude: 2, CreatedAt: 1},
	}}
	w := &fakeWeather{cityErr: failure.New(failure.RateLimited, errors.New("429"))}
	tr := New(st, w, nil, &fakeGeocoder{}, zap.NewNop())
	if err := tr.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	_, err := tr.Add(context.Background(), "Paris")
	if got := failure.KindOf(err); got != failure.RateLimited {
		t.Fatalf("expected rate-limited failure, got %v", got)
	}
	if tr.Message() != failure.Message(err) {
		t.Error("pending message must match the failure's fixed sentence")
	}
	if len(tr.Cities()) != 1 {
		t.Error("failed fetch must leave the list unchanged")
	}
}

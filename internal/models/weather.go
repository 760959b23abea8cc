package models

// WeatherSnapshot is one fetched, normalized reading of current conditions
// for a city. Snapshots are superseded wholesale by the next successful
// fetch and are never persisted.
type WeatherSnapshot struct {
	CityID      string  `json:"city_id,omitempty"`
	Temperature float64 `json:"temperature"` // Celsius, one decimal
	FeelsLike   float64 `json:"feels_like"`  // Celsius, one decimal
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	WindSpeed   float64 `json:"wind_speed"`     // m/s, one decimal
	WindDir     string  `json:"wind_direction"` // 16-point compass label
	WindDegrees int     `json:"wind_degrees"`   // 0-359
	Pressure    int     `json:"pressure"`       // hPa
	Humidity    int     `json:"humidity"`       // percent
	DewPoint    float64 `json:"dew_point"`      // Celsius, one decimal
	Visibility  float64 `json:"visibility"`     // kilometers, one decimal
	FetchedAt   int64   `json:"fetched_at"`     // milliseconds since epoch

	// Resolved describes the place the provider matched the lookup to;
	// Add uses it to construct a TrackedCity.
	Resolved ResolvedPlace `json:"resolved"`
}

// ResolvedPlace is the provider's canonical identification of the place a
// lookup resolved to.
type ResolvedPlace struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

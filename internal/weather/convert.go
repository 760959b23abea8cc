package weather

import "math"

// compassPoints is the 16-point rose starting at North, clockwise.
var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// WindDirection maps degrees to the nearest 16-point compass label.
func WindDirection(degrees float64) string {
	idx := int(math.Round(degrees/22.5)) % 16
	if idx < 0 {
		idx += 16
	}
	return compassPoints[idx]
}

// DewPoint computes the dew point in Celsius from temperature (Celsius)
// and relative humidity (percent) using the Magnus approximation, rounded
// to one decimal.
func DewPoint(tempC, humidityPct float64) float64 {
	const a, b = 17.27, 237.7
	alpha := (a*tempC)/(b+tempC) + math.Log(humidityPct/100)
	return round1(b * alpha / (a - alpha))
}

// VisibilityKM converts meters to kilometers rounded to one decimal.
func VisibilityKM(meters float64) float64 {
	return round1(meters / 1000)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

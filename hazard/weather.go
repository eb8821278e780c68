package hazard

// WeatherThresholds parameterizes the weather factor table. The exact
// cutoffs are tuning data, so they live in configuration rather than
// in the table itself.
type WeatherThresholds struct {
	HighWindKMH float64 // wind at or above this boosts spread risk
	ModWindKMH  float64
	CalmWindKMH float64
	DryPct      float64 // humidity at or below this boosts spread risk
	HumidPct    float64
}

func DefaultWeatherThresholds() WeatherThresholds {
	return WeatherThresholds{
		HighWindKMH: 50,
		ModWindKMH:  30,
		CalmWindKMH: 10,
		DryPct:      20,
		HumidPct:    60,
	}
}

const (
	// WeatherNeutral is the factor used when no context is available.
	WeatherNeutral = 1.0
	// WeatherMaxBoost is the largest value the table can produce.
	WeatherMaxBoost = 1.3
	// WeatherDamp is the factor for calm, humid conditions.
	WeatherDamp = 0.9
)

// WeatherFactor maps wind speed and humidity onto a multiplicative
// factor in [WeatherDamp, WeatherMaxBoost]. A nil context means the
// cell has no weather data and scores with the neutral factor; the
// caller is responsible for recording the degraded input.
func WeatherFactor(w *WeatherContext, t WeatherThresholds) float64 {
	if w == nil {
		return WeatherNeutral
	}
	switch {
	case w.WindSpeed >= t.HighWindKMH && w.Humidity <= t.DryPct:
		return WeatherMaxBoost
	case w.WindSpeed >= t.HighWindKMH:
		return 1.2
	case w.Humidity <= t.DryPct:
		return 1.15
	case w.WindSpeed >= t.ModWindKMH:
		return 1.1
	case w.WindSpeed <= t.CalmWindKMH && w.Humidity >= t.HumidPct:
		return WeatherDamp
	default:
		return WeatherNeutral
	}
}

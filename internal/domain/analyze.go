package domain

// Fixed precaution messages, in rule order.
const (
	PrecautionFreeze    Precaution = "❄️ Freezing temperatures expected. Protect water pipes and ensure heating system is working."
	PrecautionHeat      Precaution = "🌡️ High temperatures expected. Ensure AC is functioning properly."
	PrecautionSnow      Precaution = "🌨️ Snowfall expected. Clear walkways and check snow removal equipment."
	PrecautionRain      Precaution = "🌧️ Heavy rain expected. Check gutters and drainage systems."
	PrecautionSeasonal  Precaution = "🌱 Regular yard maintenance may be needed - check for weed growth."
	PrecautionElevation Precaution = "⛰️ High elevation location - monitor road conditions and access routes."
)

const (
	freezeBelowF        = 32
	heatAboveF          = 85
	heavyRainAbove      = 0.5
	highElevationAboveF = 2000
)

// Analyze maps one forecast day and the subscriber's elevation to precautions.
// Rules are evaluated in a fixed order and every match is appended; see the
// package documentation for the rule table.
func Analyze(day ForecastDay, elevationFeet float64) []Precaution {
	precautions := make([]Precaution, 0, 6)

	if day.TempDay < freezeBelowF {
		precautions = append(precautions, PrecautionFreeze)
	}
	if day.TempDay > heatAboveF {
		precautions = append(precautions, PrecautionHeat)
	}
	if day.Snow > 0 {
		precautions = append(precautions, PrecautionSnow)
	}
	if day.Rain > heavyRainAbove {
		precautions = append(precautions, PrecautionRain)
	}
	if inGrowingSeason() {
		precautions = append(precautions, PrecautionSeasonal)
	}
	if elevationFeet > highElevationAboveF {
		precautions = append(precautions, PrecautionElevation)
	}

	return precautions
}

// AnalyzeDays runs Analyze over each day, preserving order.
func AnalyzeDays(days []ForecastDay, elevationFeet float64) []AnalyzedDay {
	out := make([]AnalyzedDay, len(days))
	for i, d := range days {
		out[i] = AnalyzedDay{Day: d, Precautions: Analyze(d, elevationFeet)}
	}
	return out
}

// inGrowingSeason reports whether the wall-clock month is March through August.
// The forecast day's own date is not consulted.
func inGrowingSeason() bool {
	m := clock.Now().Month()
	return m >= 3 && m <= 8
}

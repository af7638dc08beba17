// Package domain models yard-care weather reports built from OpenWeather
// forecasts.
//
// # Data Source
//
// Forecasts come from the OpenWeather One Call 3.0 API requested with
// units=imperial. Each element of the "daily" array becomes one [ForecastDay]:
//
//	dt                      unix seconds identifying the day (noon local to the point)
//	temp.day                daytime temperature, °F
//	weather[0].description  free-text summary, e.g. "light rain"
//	pop                     probability of precipitation, fraction 0.0–1.0
//	snow, rain              precipitation amount, omitted by the provider when zero
//
// temp.day, weather[0].description and pop are required. A day without them
// means the provider schema changed and the whole fetch fails with
// [ErrForecastUnavailable]. snow and rain default to zero.
//
// Coordinates come from the OpenWeather Geocoding API. Five-digit inputs are
// treated as US ZIP codes; everything else is a free-text place search limited
// to the single best match.
//
// # Precaution Rules
//
// [Analyze] evaluates six rules in a fixed order and appends one message per
// match. No rule suppresses another and the output is never reordered:
//
//	1. freeze      temp.day < 32°F
//	2. heat        temp.day > 85°F
//	3. snow        snow > 0
//	4. rain        rain > 0.5
//	5. seasonal    current wall-clock month in March..August
//	6. elevation   subscriber elevation > 2000 ft
//
// The seasonal rule reads the package clock, not the forecast day's date, so a
// weekly report that crosses a month boundary uses today's month for every
// day. Tests freeze the month with [SetClock].
//
// # Reports
//
// Daily reports describe index 1 of the forecast (tomorrow) and therefore need
// at least two days; fewer fails with [ErrIncompleteForecast]. Weekly reports
// cover the first seven days, or fewer when the provider returns fewer.
// Precipitation chance is rendered as the raw fraction multiplied by 100 with
// no rounding.
package domain

// Package geo provides the geographic primitives of the alert engine:
// quantizing coordinates into stable bucket keys, resolving coordinates to
// IANA timezones with a time-bounded memo cache, and computing the local
// forecast windows ("tomorrow night", "tomorrow day") used to slice provider
// samples.
package geo

import (
	"math"
	"strconv"
)

// BucketKey quantizes a coordinate onto the caching/scheduling grid by
// rounding latitude and longitude independently to 2 decimal places
// (roughly a 1.1 km cell) and concatenating them as "lat,lon".
//
// The rounding is intentionally lossy: any two coordinates in the same cell
// share one cache entry and one scheduled job. Trailing zeros are trimmed,
// so (55.70, 37.60) and (55.7, 37.6) produce the identical key.
func BucketKey(lat, lon float64) string {
	return formatRounded(lat) + "," + formatRounded(lon)
}

// formatRounded rounds to 2 decimals and renders the shortest decimal form.
func formatRounded(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

package geo

import (
	"time"

	"gardenwatch/internal/types"
)

// Window is a closed Unix-time interval in a named timezone, used to filter
// forecast samples. Both bounds are inclusive. EndUnix is always >= StartUnix.
type Window struct {
	StartUnix int64
	EndUnix   int64
	Timezone  string
}

// Contains reports whether the timestamp falls inside the window,
// inclusive at both ends.
func (w Window) Contains(ts int64) bool {
	return ts >= w.StartUnix && ts <= w.EndUnix
}

// TomorrowNight computes tomorrow's night window, 00:00-06:00 local time, for
// the given timezone. "Tomorrow" is the local date of now plus one day. An
// unknown timezone falls back to UTC.
func TomorrowNight(tz string, now time.Time) Window {
	start := tomorrowMidnight(tz, now)
	end := start.Add(6 * time.Hour)
	return Window{
		StartUnix: start.Unix(),
		EndUnix:   end.Unix(),
		Timezone:  tz,
	}
}

// TomorrowDay computes tomorrow's full-day window, 00:00-23:59:59.999 local
// time, for the given timezone. Unix truncation makes the effective inclusive
// end 23:59:59.
func TomorrowDay(tz string, now time.Time) Window {
	start := tomorrowMidnight(tz, now)
	loc := start.Location()
	end := time.Date(start.Year(), start.Month(), start.Day(), 23, 59, 59, 999_000_000, loc)
	return Window{
		StartUnix: start.Unix(),
		EndUnix:   end.Unix(),
		Timezone:  tz,
	}
}

// FilterSamples returns the samples whose timestamps fall inside the window,
// preserving input order. Order preservation matters: classifier tie-breaks
// are defined as first occurrence.
func FilterSamples(samples []types.ForecastSample, w Window) []types.ForecastSample {
	var out []types.ForecastSample
	for _, s := range samples {
		if w.Contains(s.Timestamp) {
			out = append(out, s)
		}
	}
	return out
}

// LocalClock formats a Unix timestamp as HH:MM in the given timezone.
// An unknown timezone falls back to UTC.
func LocalClock(ts int64, tz string) string {
	return time.Unix(ts, 0).In(location(tz)).Format("15:04")
}

// tomorrowMidnight returns local midnight of the day after now's local date.
// Using time.Date normalizes across month and year boundaries and DST shifts.
func tomorrowMidnight(tz string, now time.Time) time.Time {
	loc := location(tz)
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}

func location(tz string) *time.Location {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

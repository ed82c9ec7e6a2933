// Package alerts implements the geo-bucketed alert engine: hazard
// classification of forecast windows, the per-bucket alert cache, the lazy
// per-bucket daily scheduler, and the orchestrator that ties them to the
// forecast provider and the notification fan-out.
package alerts

import (
	"fmt"
	"math"

	"gardenwatch/internal/geo"
	"gardenwatch/internal/types"
)

// Hazard thresholds in °C and mm. The frost threshold is deployment-tunable
// (FROST_THRESHOLD); heat and rain thresholds are fixed product constants.
const (
	DefaultFrostThreshold = 0.0  // °C; frost when the night minimum is at or below
	HeatWarning           = 30.0 // °C; "very hot" at or above
	HeatExtreme           = 35.0 // °C; "extreme heat" at or above
	RainThreshold         = 0.5  // mm accumulated; counts as rain at or above
	rainAllDayHours       = 6    // wet slots needed to call it an all-day rain
)

// ClassifyFrost picks the coldest sample of the night window and judges it
// against the frost threshold. Ties go to the earliest sample in input order.
// The caller guarantees at least one sample; time-of-day is rendered in the
// given timezone.
func ClassifyFrost(samples []types.ForecastSample, threshold float64, tz string) types.FrostVerdict {
	coldest := samples[0]
	for _, s := range samples[1:] {
		if s.Temp < coldest.Temp {
			coldest = s
		}
	}

	return types.FrostVerdict{
		Temp:        int(math.Round(coldest.Temp)),
		Time:        geo.LocalClock(coldest.Timestamp, tz),
		IsFrost:     coldest.Temp <= threshold,
		Description: coldest.Description,
		Humidity:    coldest.Humidity,
	}
}

// ClassifyHeat picks the hottest sample of the day window and judges it
// against the heat thresholds. Ties go to the earliest sample in input order.
// The caller guarantees at least one sample.
func ClassifyHeat(samples []types.ForecastSample) types.HeatVerdict {
	hottest := samples[0]
	for _, s := range samples[1:] {
		if s.Temp > hottest.Temp {
			hottest = s
		}
	}

	return types.HeatVerdict{
		IsHeat:      hottest.Temp >= HeatWarning,
		IsExtreme:   hottest.Temp >= HeatExtreme,
		MaxTemp:     int(math.Round(hottest.Temp)),
		Humidity:    hottest.Humidity,
		Description: hottest.Description,
	}
}

// ClassifyRain accumulates precipitation across the day window. Slots without
// a precipitation value count as dry. The caller guarantees at least one
// sample.
func ClassifyRain(samples []types.ForecastSample) types.RainVerdict {
	var total float64
	wet := 0
	for _, s := range samples {
		if s.Precipitation > 0 {
			total += s.Precipitation
			wet++
		}
	}

	total = math.Round(total*10) / 10

	return types.RainVerdict{
		IsRain:      total >= RainThreshold,
		TotalRain:   total,
		RainHours:   wet,
		RainsAllDay: wet >= rainAllDayHours,
	}
}

// wateringRule pairs a predicate with a verdict constructor. Rules are
// evaluated in declaration order and the first match wins, which is the whole
// precedence policy: rain beats heat beats nothing.
type wateringRule struct {
	applies func(types.HeatVerdict, types.RainVerdict) bool
	build   func(types.HeatVerdict, types.RainVerdict) *types.WateringAdvice
}

var wateringRules = []wateringRule{
	{
		// Rain: nature handles the watering.
		applies: func(_ types.HeatVerdict, rain types.RainVerdict) bool { return rain.IsRain },
		build: func(_ types.HeatVerdict, rain types.RainVerdict) *types.WateringAdvice {
			return &types.WateringAdvice{
				Recommendation: fmt.Sprintf("Rain to the rescue! About %gmm expected tomorrow. No need to water.", rain.TotalRain),
				ShouldWater:    false,
			}
		},
	},
	{
		// Heat: water in the evening, urgency depends on how hot.
		applies: func(heat types.HeatVerdict, _ types.RainVerdict) bool { return heat.IsHeat },
		build: func(heat types.HeatVerdict, _ types.RainVerdict) *types.WateringAdvice {
			msg := fmt.Sprintf("Very hot tomorrow, up to %d°C. We recommend watering your plants in the evening.", heat.MaxTemp)
			if heat.IsExtreme {
				msg = fmt.Sprintf("Extreme heat tomorrow, up to %d°C! Be sure to water your plants in the evening.", heat.MaxTemp)
			}
			return &types.WateringAdvice{
				Recommendation: msg,
				ShouldWater:    true,
			}
		},
	},
}

// WateringRecommendation derives the watering advice from the heat and rain
// verdicts. Returns nil when neither rule applies, meaning no recommendation
// and no watering notification.
func WateringRecommendation(heat types.HeatVerdict, rain types.RainVerdict) *types.WateringAdvice {
	for _, rule := range wateringRules {
		if rule.applies(heat, rain) {
			return rule.build(heat, rain)
		}
	}
	return nil
}

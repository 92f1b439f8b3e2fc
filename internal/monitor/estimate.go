// Package monitor derives consumption estimates from a unit's balance history
// and decides whether a reading warrants an alert.
//
// Two rates are estimated by nearest-timestamp lookup against the history:
//
//	rate(L) = (balance(ref) - balance(now)) / hours(now - ref),  ref ≈ now - L
//
// for L = 1h (short term) and L = 24h (long term). The short-term rate is
// preferred while the balance is falling; otherwise the long-term rate is used,
// and a small floor keeps the remaining-time division finite when the balance
// is flat or rising (for example right after a top-up).
//
// Everything in this package is pure: history is read, never written.
package monitor

import (
	"math"
	"time"

	"github.com/rewired-gh/elecwatch/internal/models"
	"github.com/shopspring/decimal"
)

const (
	// ShortLag and LongLag are the look-back windows for the two rates.
	ShortLag = time.Hour
	LongLag  = 24 * time.Hour

	// RateFloor is the smallest rate used for the remaining-time division.
	RateFloor = 0.01

	// NearZeroKWh is the balance below which an estimate at RateFloor is
	// reported as the sentinel. At the floor this covers every result under
	// 100 h, so a flat balance never reads as running out.
	NearZeroKWh = 1.0

	// Minimum elapsed hours between reference and now before a rate is computed.
	shortMinElapsedHours = 0.1
	longMinElapsedHours  = 0.5

	ratePlaces  = 3
	hoursPlaces = 1
)

// Estimate computes short- and long-term consumption rates for the current
// reading against the history that preceded it, and the hours of balance left
// at the combined rate. history must be ordered oldest first.
func Estimate(history []models.Record, current models.Reading, now time.Time) models.Estimate {
	if len(history) == 0 {
		return models.NoSignal()
	}

	short := lagRate(history, current, now, ShortLag, shortMinElapsedHours)
	long := lagRate(history, current, now, LongLag, longMinElapsedHours)

	return models.Estimate{
		ShortTermRate:  round(short, ratePlaces),
		LongTermRate:   round(long, ratePlaces),
		HoursRemaining: EstimateHours(current.KWh, short, long),
	}
}

// EstimateHours returns the hours left at the combined rate. When neither
// rate shows consumption the floor rate is used, and a balance below
// NearZeroKWh then yields the sentinel instead of a made-up countdown.
func EstimateHours(balance, short, long float64) float64 {
	rate := CombineRates(short, long)
	if short <= 0 && long <= 0 && balance < NearZeroKWh {
		return models.Sentinel
	}
	return RemainingHours(balance, rate)
}

// CombineRates picks the rate used for the remaining-time estimate: the short
// term rate while it shows consumption, else the long term rate, else RateFloor.
func CombineRates(short, long float64) float64 {
	if short > 0 {
		return short
	}
	if long > 0 {
		return long
	}
	return RateFloor
}

// RemainingHours divides balance by rate, rounded to one decimal and capped
// at models.Sentinel. A non-positive balance yields the sentinel.
func RemainingHours(balance, rate float64) float64 {
	if balance <= 0 || rate <= 0 {
		return models.Sentinel
	}
	hours := balance / rate
	if hours >= models.Sentinel {
		return models.Sentinel
	}
	return round(hours, hoursPlaces)
}

// NearestRecord returns the index of the record whose timestamp is closest to
// target, or -1 for an empty history. The scan runs newest to oldest and stops
// once a candidate exists and the distance exceeds lag+1 hours.
func NearestRecord(history []models.Record, target time.Time, lag time.Duration) int {
	best := -1
	minDiff := math.Inf(1)
	limit := lag.Hours() + 1

	for i := len(history) - 1; i >= 0; i-- {
		diff := math.Abs(history[i].Time.Sub(target).Hours())
		if diff < minDiff {
			minDiff = diff
			best = i
			continue
		}
		if diff > limit {
			break
		}
	}
	return best
}

func lagRate(history []models.Record, current models.Reading, now time.Time, lag time.Duration, minElapsed float64) float64 {
	i := NearestRecord(history, now.Add(-lag), lag)
	if i < 0 {
		return 0
	}
	ref := history[i]

	elapsed := now.Sub(ref.Time).Hours()
	if elapsed <= minElapsed {
		return 0
	}
	return (ref.KWh - current.KWh) / elapsed
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

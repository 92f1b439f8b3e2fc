package monitor

import (
	"reflect"
	"testing"
	"time"

	"github.com/rewired-gh/elecwatch/internal/models"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CST", 8*3600))

func rec(ago time.Duration, kwh float64) models.Record {
	return models.Record{Time: baseTime.Add(-ago), KWh: kwh, EstimatedHours: models.Sentinel}
}

func TestEstimate_EmptyHistory(t *testing.T) {
	got := Estimate(nil, models.Reading{Time: baseTime, KWh: 42.5}, baseTime)
	want := models.Estimate{ShortTermRate: 0, LongTermRate: 0, HoursRemaining: models.Sentinel}
	if got != want {
		t.Errorf("Estimate() = %+v, want %+v", got, want)
	}
}

func TestEstimate_OneHourApart(t *testing.T) {
	history := []models.Record{rec(time.Hour, 50.0)}
	got := Estimate(history, models.Reading{Time: baseTime, KWh: 45.0}, baseTime)

	if got.ShortTermRate != 5.0 {
		t.Errorf("Expected short-term rate 5.0, got %f", got.ShortTermRate)
	}
	if got.HoursRemaining != 9.0 {
		t.Errorf("Expected 9.0 hours remaining, got %f", got.HoursRemaining)
	}
}

func TestEstimate_TwoWindows(t *testing.T) {
	// Hourly history over two days, falling 1 kWh/h until an hour ago,
	// then 3 kWh in the last hour.
	var history []models.Record
	for h := 48; h >= 1; h-- {
		history = append(history, rec(time.Duration(h)*time.Hour, 100-float64(48-h)))
	}
	// Balance one hour ago is 100-47 = 53.
	current := models.Reading{Time: baseTime, KWh: 50}

	got := Estimate(history, current, baseTime)

	if got.ShortTermRate != 3.0 {
		t.Errorf("Expected short-term rate 3.0, got %f", got.ShortTermRate)
	}
	// 24h ago the balance was 100-24 = 76 -> (76-50)/24.
	if got.LongTermRate != 1.083 {
		t.Errorf("Expected long-term rate 1.083, got %f", got.LongTermRate)
	}
	if got.HoursRemaining != 16.7 {
		t.Errorf("Expected 16.7 hours remaining, got %f", got.HoursRemaining)
	}
}

func TestEstimate_ShortGuard(t *testing.T) {
	// The only reference is 5 minutes old: too close for either window.
	history := []models.Record{rec(5*time.Minute, 50)}
	got := Estimate(history, models.Reading{Time: baseTime, KWh: 45}, baseTime)

	if got.ShortTermRate != 0 {
		t.Errorf("Expected short-term rate to stay 0, got %f", got.ShortTermRate)
	}
	if got.LongTermRate != 0 {
		t.Errorf("Expected long-term rate to stay 0, got %f", got.LongTermRate)
	}
	// Floor rate: 45 / 0.01 = 4500.
	if got.HoursRemaining != 4500 {
		t.Errorf("Expected 4500 hours at the floor rate, got %f", got.HoursRemaining)
	}
}

func TestEstimate_LongGuardOnly(t *testing.T) {
	// 20 minutes: past the 0.1h short guard, inside the 0.5h long guard.
	history := []models.Record{rec(20*time.Minute, 46)}
	got := Estimate(history, models.Reading{Time: baseTime, KWh: 45}, baseTime)

	if got.ShortTermRate != 3.0 {
		t.Errorf("Expected short-term rate 3.0, got %f", got.ShortTermRate)
	}
	if got.LongTermRate != 0 {
		t.Errorf("Expected long-term rate 0, got %f", got.LongTermRate)
	}
}

func TestEstimate_FallbackToLongTerm(t *testing.T) {
	// Topped up within the last hour, but consumption over the day is positive.
	history := []models.Record{
		rec(24*time.Hour, 30),
		rec(time.Hour, 6),
	}
	current := models.Reading{Time: baseTime, KWh: 106}

	got := Estimate(history, current, baseTime)
	if got.ShortTermRate >= 0 {
		t.Fatalf("Expected negative short-term rate after top-up, got %f", got.ShortTermRate)
	}
	// 30 -> 106 over 24h is also a rise, so the floor applies and 106/0.01 is capped.
	if got.LongTermRate >= 0 {
		t.Errorf("Expected negative long-term rate, got %f", got.LongTermRate)
	}
	if got.HoursRemaining != models.Sentinel {
		t.Errorf("Expected sentinel with floor rate, got %f", got.HoursRemaining)
	}

	history = []models.Record{
		rec(24*time.Hour, 130),
		rec(time.Hour, 6),
	}
	got = Estimate(history, current, baseTime)
	// (130-106)/24 = 1.0
	if got.LongTermRate != 1.0 {
		t.Errorf("Expected long-term rate 1.0, got %f", got.LongTermRate)
	}
	if got.HoursRemaining != 106.0 {
		t.Errorf("Expected 106.0 hours, got %f", got.HoursRemaining)
	}
}

func TestEstimate_FloorRate(t *testing.T) {
	tests := []struct {
		name      string
		before    float64
		current   float64
		wantHours float64
	}{
		{"flat near-zero balance", 0.2, 0.2, models.Sentinel},
		{"rising near-zero balance", 0.1, 0.5, models.Sentinel},
		{"flat balance just below cutoff", 0.99, 0.99, models.Sentinel},
		{"flat small balance", 5, 5, 500},
		{"flat balance at cutoff", 1, 1, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := []models.Record{rec(time.Hour, tt.before)}
			got := Estimate(history, models.Reading{Time: baseTime, KWh: tt.current}, baseTime)
			if got.ShortTermRate > 0 || got.LongTermRate > 0 {
				t.Fatalf("Expected no consumption signal, got %+v", got)
			}
			if got.HoursRemaining != tt.wantHours {
				t.Errorf("Expected %v hours, got %v", tt.wantHours, got.HoursRemaining)
			}
		})
	}
}

func TestEstimateHours(t *testing.T) {
	tests := []struct {
		name                 string
		balance, short, long float64
		want                 float64
	}{
		{"short rate used", 45, 5, 1, 9},
		{"long rate used", 12, -1, 1, 12},
		{"floor with near-zero balance", 0.2, 0, 0, models.Sentinel},
		{"floor with negative rates", 0.05, -2, -0.5, models.Sentinel},
		{"floor with ample balance", 3, 0, 0, 300},
		{"real consumption with near-zero balance", 0.2, 0.1, 0, 2},
		{"non-positive balance", 0, 5, 0, models.Sentinel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateHours(tt.balance, tt.short, tt.long); got != tt.want {
				t.Errorf("EstimateHours(%v, %v, %v) = %v, want %v", tt.balance, tt.short, tt.long, got, tt.want)
			}
		})
	}
}

func TestEstimate_NonPositiveBalance(t *testing.T) {
	history := []models.Record{rec(time.Hour, 2)}
	for _, kwh := range []float64{0, -1.5} {
		got := Estimate(history, models.Reading{Time: baseTime, KWh: kwh}, baseTime)
		if got.HoursRemaining != models.Sentinel {
			t.Errorf("balance %f: expected sentinel, got %f", kwh, got.HoursRemaining)
		}
		if got.HoursRemaining < 0 {
			t.Errorf("balance %f: hours must not be negative", kwh)
		}
	}
}

func TestEstimate_DoesNotMutateHistory(t *testing.T) {
	history := []models.Record{
		rec(30*time.Hour, 80),
		rec(24*time.Hour, 70),
		rec(2*time.Hour, 55),
		rec(time.Hour, 52),
	}
	snapshot := make([]models.Record, len(history))
	copy(snapshot, history)

	current := models.Reading{Time: baseTime, KWh: 50}
	first := Estimate(history, current, baseTime)
	second := Estimate(history, current, baseTime)

	if first != second {
		t.Errorf("Estimate is not deterministic: %+v vs %+v", first, second)
	}
	if !reflect.DeepEqual(history, snapshot) {
		t.Error("Estimate mutated its history input")
	}
}

func TestNearestRecord(t *testing.T) {
	history := []models.Record{
		rec(72*time.Hour, 0),
		rec(25*time.Hour, 0),
		rec(23*time.Hour+50*time.Minute, 0),
		rec(3*time.Hour, 0),
		rec(65*time.Minute, 0),
		rec(10*time.Minute, 0),
	}

	tests := []struct {
		name string
		lag  time.Duration
		want int
	}{
		{"one hour", time.Hour, 4},
		{"one day", 24 * time.Hour, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NearestRecord(history, baseTime.Add(-tt.lag), tt.lag)
			if got != tt.want {
				t.Errorf("NearestRecord() = %d, want %d", got, tt.want)
			}
		})
	}

	if got := NearestRecord(nil, baseTime, time.Hour); got != -1 {
		t.Errorf("Expected -1 for empty history, got %d", got)
	}
}

func TestNearestRecord_OnlyOldReadings(t *testing.T) {
	// Everything is far older than the target: the newest one wins.
	history := []models.Record{
		rec(100*time.Hour, 0),
		rec(50*time.Hour, 0),
	}
	if got := NearestRecord(history, baseTime.Add(-time.Hour), time.Hour); got != 1 {
		t.Errorf("Expected newest record, got %d", got)
	}
}

func TestCombineRates(t *testing.T) {
	tests := []struct {
		short, long, want float64
	}{
		{2, 1, 2},
		{0, 1, 1},
		{-3, 1.5, 1.5},
		{-3, 0, RateFloor},
		{0, -0.5, RateFloor},
	}
	for _, tt := range tests {
		if got := CombineRates(tt.short, tt.long); got != tt.want {
			t.Errorf("CombineRates(%v, %v) = %v, want %v", tt.short, tt.long, got, tt.want)
		}
	}
}

func TestRemainingHours(t *testing.T) {
	tests := []struct {
		name          string
		balance, rate float64
		want          float64
	}{
		{"normal", 45, 5, 9},
		{"rounded", 10, 3, 3.3},
		{"zero balance", 0, 5, models.Sentinel},
		{"negative balance", -2, 5, models.Sentinel},
		{"capped", 200, RateFloor, models.Sentinel},
		{"division at floor rate", 0.05, RateFloor, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RemainingHours(tt.balance, tt.rate); got != tt.want {
				t.Errorf("RemainingHours(%v, %v) = %v, want %v", tt.balance, tt.rate, got, tt.want)
			}
		})
	}
}

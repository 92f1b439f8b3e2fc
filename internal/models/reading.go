package models

import (
	"errors"
	"math"
	"time"
)

// Reading is one timestamped balance sample for a unit.
// KWh may be negative after the utility applies a correction.
type Reading struct {
	Time time.Time
	KWh  float64
}

// Validate checks that the reading carries a usable timestamp and value.
func (r Reading) Validate() error {
	if r.Time.IsZero() {
		return errors.New("reading time must not be zero")
	}
	if math.IsNaN(r.KWh) || math.IsInf(r.KWh, 0) {
		return errors.New("reading kwh must be a finite number")
	}
	return nil
}

// Record is the persisted form of a reading. The power and hours fields hold
// the estimate computed when the reading was appended; they are informational
// and never feed back into later estimates.
type Record struct {
	Time           time.Time `json:"time"`
	KWh            float64   `json:"kwh"`
	Power1h        float64   `json:"power_1h"`
	Power24h       float64   `json:"power_24h"`
	EstimatedHours float64   `json:"estimated_hours"`
}

// NewRecord combines a reading with the estimate computed for it.
func NewRecord(r Reading, e Estimate) Record {
	return Record{
		Time:           r.Time,
		KWh:            r.KWh,
		Power1h:        e.ShortTermRate,
		Power24h:       e.LongTermRate,
		EstimatedHours: e.HoursRemaining,
	}
}

// Reading returns the raw sample stored in the record.
func (r Record) Reading() Reading {
	return Reading{Time: r.Time, KWh: r.KWh}
}

// Validate checks that all record fields are valid
func (r *Record) Validate() error {
	if err := r.Reading().Validate(); err != nil {
		return err
	}
	for _, v := range []float64{r.Power1h, r.Power24h, r.EstimatedHours} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("record estimate fields must be finite numbers")
		}
	}
	if r.EstimatedHours < 0 {
		return errors.New("estimated hours must not be negative")
	}
	return nil
}

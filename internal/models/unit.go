package models

import (
	"errors"
	"fmt"
	"math"
	"net/url"
)

// Default alert thresholds applied when a unit does not override them.
const (
	DefaultAlertThresholdKWh   = 10.0
	DefaultAlertThresholdHours = 24.0
)

// Unit is one monitored account whose balance is tracked independently.
// Units are defined externally; only ID and Name are ever published.
type Unit struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	URL                 string   `json:"url"`
	AlertThresholdKWh   *float64 `json:"alert_threshold_kwh,omitempty"`
	AlertThresholdHours *float64 `json:"alert_threshold_hours,omitempty"`
	PushTokens          []string `json:"push_tokens,omitempty"`
}

// Thresholds are the alert floors for a single unit.
type Thresholds struct {
	BalanceKWh float64
	Hours      float64
}

// DefaultThresholds returns the built-in balance and hours floors.
func DefaultThresholds() Thresholds {
	return Thresholds{
		BalanceKWh: DefaultAlertThresholdKWh,
		Hours:      DefaultAlertThresholdHours,
	}
}

// PublicUnit is the redacted view of a unit. It never carries the URL or
// push tokens.
type PublicUnit struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Key returns the stable history key for the unit. Older configurations only
// carried a name, and their history is keyed by it.
func (u Unit) Key() string {
	if u.ID != "" {
		return u.ID
	}
	return u.Name
}

// Thresholds resolves the unit's alert floors against the given defaults.
func (u Unit) Thresholds(defaults Thresholds) Thresholds {
	t := defaults
	if u.AlertThresholdKWh != nil {
		t.BalanceKWh = *u.AlertThresholdKWh
	}
	if u.AlertThresholdHours != nil {
		t.Hours = *u.AlertThresholdHours
	}
	return t
}

// Public returns the redacted view of the unit.
func (u Unit) Public() PublicUnit {
	return PublicUnit{ID: u.Key(), Name: u.Name}
}

// Validate checks that all unit fields are valid.
func (u *Unit) Validate() error {
	if u.Key() == "" {
		return errors.New("unit must have an id or a name")
	}
	if u.URL == "" {
		return fmt.Errorf("unit %s: url must not be empty", u.Key())
	}
	parsed, err := url.Parse(u.URL)
	if err != nil {
		return fmt.Errorf("unit %s: invalid url: %w", u.Key(), err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unit %s: url scheme must be http or https", u.Key())
	}
	for _, v := range []*float64{u.AlertThresholdKWh, u.AlertThresholdHours} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return fmt.Errorf("unit %s: thresholds must be finite numbers", u.Key())
		}
	}
	return nil
}

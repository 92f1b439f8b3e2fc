package storage

import (
	"fmt"
	"time"
)

// Policy selects how history is bounded.
type Policy string

const (
	// PolicyCount keeps the newest MaxEntries records per unit.
	PolicyCount Policy = "count"
	// PolicyAge drops records older than MaxAge.
	PolicyAge Policy = "age"
)

// Default retention bounds.
const (
	DefaultMaxEntries = 2000
	DefaultMaxAge     = 180 * 24 * time.Hour
)

// Retention bounds a unit's history after each append.
type Retention struct {
	Policy     Policy
	MaxEntries int
	MaxAge     time.Duration
}

// DefaultRetention is the count-based 2000 entry cap.
func DefaultRetention() Retention {
	return Retention{Policy: PolicyCount, MaxEntries: DefaultMaxEntries, MaxAge: DefaultMaxAge}
}

// Validate checks the retention settings for the selected policy.
func (r Retention) Validate() error {
	switch r.Policy {
	case PolicyCount:
		if r.MaxEntries < 1 {
			return fmt.Errorf("retention max_entries must be at least 1")
		}
	case PolicyAge:
		if r.MaxAge < time.Hour {
			return fmt.Errorf("retention max_age must be at least 1h")
		}
	default:
		return fmt.Errorf("retention policy must be one of: %s, %s", PolicyCount, PolicyAge)
	}
	return nil
}

// Apply trims the unit's history according to the policy and returns the
// number of records dropped.
func (r Retention) Apply(s *Storage, unitID string, now time.Time) int {
	if r.Policy == PolicyAge {
		return s.Trim(unitID, now.Add(-r.MaxAge))
	}
	return s.Cap(unitID, r.MaxEntries)
}

package models

// Sentinel is the hours-remaining value reported when no meaningful
// consumption rate can be derived ("effectively infinite").
const Sentinel = 9999.0

// Estimate holds the consumption rates and remaining time derived for one
// reading. Rates are kWh per hour; positive means the balance is falling.
type Estimate struct {
	ShortTermRate  float64 `json:"power_1h"`
	LongTermRate   float64 `json:"power_24h"`
	HoursRemaining float64 `json:"estimated_hours"`
}

// NoSignal is the estimate used when there is no history to compare against.
func NoSignal() Estimate {
	return Estimate{HoursRemaining: Sentinel}
}

// IsSentinel reports whether the remaining time is the "no signal" value.
func (e Estimate) IsSentinel() bool {
	return e.HoursRemaining >= Sentinel
}

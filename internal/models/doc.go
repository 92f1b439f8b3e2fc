// Package models defines the core domain entities for elecwatch.
// These models represent monitored units, balance readings, persisted history
// records and the consumption estimate derived from them.
//
// Terminology:
//   - Unit: one monitored account or dormitory room with its own balance page.
//   - Reading: a single timestamped balance sample, in kWh.
//   - Record: a Reading as persisted in history, together with the estimate
//     that was computed when it was taken.
package models

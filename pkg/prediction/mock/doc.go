// Package mock provides a prediction backend that synthesizes results
// locally.
//
// Results are plausible but not clinical. Severity keywords found anywhere in
// the clinical data pick the risk band; otherwise the band comes from a hash
// of the patient id, optionally shaped by a configured risk distribution.
// Set Options.Seed for reproducible keyword-driven draws and
// Options.MockDelay to simulate remote latency.
package mock

// Package telemetry provides the logging and OpenTelemetry plumbing shared
// by the engine packages.
//
// Logging follows a minimal [Logger] interface; a nil Logger is silent.
// Tracing and metrics go through [Instruments], created on explicit
// providers or on the global ones with [Default]. A nil *Instruments is valid
// and records nothing, so callers never need to guard their calls.
package telemetry

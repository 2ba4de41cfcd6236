// Package otel publishes authsession metrics through an OpenTelemetry Meter.
//
// [New] registers an Int64ObservableCounter per engine counter, one bucket gauge per
// histogram carrying an le attribute, and the authsession_session_live and
// authsession_next_renewal_seconds gauges. A single callback samples the
// [internaldefs.Source] on each collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel

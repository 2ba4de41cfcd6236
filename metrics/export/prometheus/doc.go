// Package prometheus renders authsession metrics in Prometheus text exposition format.
//
// [New] wraps any [internaldefs.Source], usually an *authsession.Engine, and serves
// [Exporter.Render] from [Exporter.Handler]. Counters are named authsession_*_total and
// the refresh latency histogram is authsession_refresh_latency_seconds. The session
// gauges are written even when engine metrics are disabled.
//
// # What this package must NOT do
//
//   - Register in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus

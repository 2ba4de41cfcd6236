// Package renewal schedules proactive credential renewal.
//
// A Scheduler owns at most one timer. Every Arm cancels the previous timer and computes a new
// deadline from the newest credential, so a stale timer can never fire a refresh for a
// credential that has already been replaced.
//
// # Architecture boundaries
//
// The scheduler does not refresh tokens itself. It calls the Refresh hook, which in the
// engine joins the same single-flight cycle used by reactive renewal.
//
// # What this package must NOT do
//
//   - Cancel a refresh that is already in flight.
//   - Hold its lock while calling Refresh or OnExpired.
package renewal

// Package flight runs refresh cycles so that at most one is live per Executor.
//
// A cycle is started by the first caller; every caller that arrives while it is live
// joins it and receives the same result. The cycle is removed before its result is
// delivered, so the next call after delivery always starts a clean cycle.
//
// # What this package must NOT do
//
//   - Interpret cycle results or decide on retries.
//   - Tie the cycle's lifetime to any single caller's context.
package flight

// Package rate provides the attempt counters guarding credential-sensitive
// storefront operations.
//
// # Window semantics
//
// [Limiter] is the in-memory sliding window: a window's count resets to 1
// once the configured duration elapses since the last counted attempt, and
// denied attempts are neither counted nor timestamped. [RedisLimiter] is a
// fixed-window counter (INCR + conditional EXPIRE on first hit) for
// multi-process deployments.
//
// # What this package must NOT do
//
//   - Decide which identifiers get limited (that policy lives in the Core).
//   - Be imported outside the shopauth module.
package rate

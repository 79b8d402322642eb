// Package sessionstore provides the Redis-backed session provider used by
// the storefront auth core.
//
// The store owns session persistence and refresh-token rotation. It emits
// ordered session changes to in-process subscribers so the session
// controller can mirror auth state without polling Redis.
//
// # Architecture boundaries
//
// sessionstore depends on the root shopauth types and the token package.
// It must not import the controller, the guard, or the audit pipeline.
//
// # What this package must NOT do
//
//   - It must not decide authorization outcomes.
//   - It must not validate credentials; callers sign a principal in only
//     after credential checks pass.
//   - It must not block a healthy subscriber because another subscriber
//     stopped draining its channel.
package sessionstore

// Package profilestore is the Postgres adapter behind the profile, role,
// and two-factor store interfaces of the storefront auth core.
//
// Role reads are authoritative. The admin guard calls FetchRole on every
// access check and this package must answer from the database row, never
// from a cache or a token claim.
//
// # What this package must NOT do
//
//   - It must not cache roles or profiles.
//   - It must not interpret roles beyond normalizing the stored string.
//   - It must not store plaintext passwords; credential storage is out of
//     scope for the auth core.
package profilestore

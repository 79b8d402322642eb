// Package token issues and verifies the signed access tokens minted by the
// bundled session provider, with strict validation semantics suitable for
// low-latency request paths.
package token

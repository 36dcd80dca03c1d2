// Package middleware provides HTTP middleware for extracting and enforcing
// the caller's identity as forwarded by the API gateway.
package middleware

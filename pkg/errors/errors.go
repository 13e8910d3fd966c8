// Package errors provides structured error types and helpers shared by all
// Homeglass backend components. Every failure surfaced across a package
// boundary carries a machine-readable [Code], a human-readable message, and
// (optionally) the underlying cause, so that transports can map errors to
// HTTP or gRPC status codes without string matching.
//
// # Categories
//
// Codes are grouped by category prefix:
//
//   - VAL_xxx — invalid input, missing required fields (400)
//   - AUTH_xxx — credentials could not be validated (401)
//   - AUTHZ_xxx — authenticated but not permitted (403)
//   - NF_xxx — resource does not exist (404)
//   - CONF_xxx — state conflict, duplicate resource (409)
//   - INT_xxx — unexpected internal failure (500)
//   - UNAVAIL_xxx — dependency unavailable (503)
//   - TIMEOUT_xxx — operation exceeded its deadline (504)
//
// # Usage
//
// Create a new error:
//
//	err := errors.New(errors.CodeValidation, "email address is invalid")
//
// Wrap an underlying cause:
//
//	err := errors.Wrap(err, errors.CodeInternalDatabase, "failed to load user")
//
// Inspect a received error:
//
//	if errors.IsAuthentication(err) {
//	    // respond 401
//	}
//
// The auth-specific codes deserve a note: token validation failures of every
// flavor (malformed, bad signature, wrong issuer, wrong audience) collapse to
// [CodeAuthenticationInvalid] or [CodeAuthenticationExpired] at the gateway
// boundary. The distinction between them exists for logs and traces, not for
// API clients.
package errors

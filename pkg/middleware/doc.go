// Package middleware provides the HTTP middleware chain: request ids,
// access logging, panic recovery, bearer authentication for ungated routes,
// and Redis-backed rate limiting for the unauthenticated surface.
//
// Permission enforcement lives in pkg/rbac; the middleware here carries no
// authorization decisions.
package middleware

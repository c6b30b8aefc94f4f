// Package api assembles the HTTP server: routing, the middleware chain, and
// the permission gate configuration for every protected route.
package api

// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here. This
// prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthzKey contains *rbac.AuthzContext
	// Set by: rbac.Gate middleware (pkg/rbac/middleware.go)
	// Required by: all gated endpoints
	AuthzKey Key = "authz_context"

	// UserKey contains *auth.User
	// Set by: middleware.AuthMiddleware after token verification
	// Required by: authenticated but ungated endpoints
	UserKey Key = "user"

	// OrgKey contains *orgs.Organization
	// Set by: rbac.Gate middleware once the organization context resolves
	OrgKey Key = "organization"

	// RequestIDKey contains request ID string (UUID)
	// Set by: middleware.RequestID
	// Used by: logger, response headers
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: middleware.Logging
	LoggerKey Key = "logger"
)

// WithAuthz adds the authorization context to the context
func WithAuthz(ctx context.Context, authz interface{}) context.Context {
	return context.WithValue(ctx, AuthzKey, authz)
}

// WithUser adds the authenticated user to the context
func WithUser(ctx context.Context, user interface{}) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// WithOrg adds the organization to the context
func WithOrg(ctx context.Context, org interface{}) context.Context {
	return context.WithValue(ctx, OrgKey, org)
}

// WithRequestID adds the request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithLogger adds the logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

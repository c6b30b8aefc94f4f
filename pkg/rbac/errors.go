package rbac

import (
	"errors"
	"net/http"
)

// Authorization error taxonomy. Every resolution failure maps to exactly one
// of these; the gate converts them to structured HTTP denials and nothing
// propagates past it into handler code.
var (
	// ErrUnauthenticated indicates a missing or empty credential
	ErrUnauthenticated = errors.New("No authentication token provided")

	// ErrInvalidToken indicates a credential that failed verification
	ErrInvalidToken = errors.New("Invalid or expired token")

	// ErrUserNotFound indicates a valid token whose subject no longer exists
	ErrUserNotFound = errors.New("User not found")

	// ErrNoOrganizationContext indicates a principal with neither ownership
	// nor a linked organization, and no target supplied
	ErrNoOrganizationContext = errors.New("No organization context")

	// ErrEmployeeRecordNotFound indicates a principal with no employee row in
	// the target organization
	ErrEmployeeRecordNotFound = errors.New("Employee record not found")

	// ErrTargetNotFound indicates a missing referenced entity (target
	// employee, organization, department)
	ErrTargetNotFound = errors.New("Target not found")

	// ErrAccessDenied indicates a resolved role/permission set that does not
	// satisfy the requirement
	ErrAccessDenied = errors.New("Access denied")

	// ErrAdminImmutable indicates an attempt to modify the Admin permission
	// row
	ErrAdminImmutable = errors.New("Admin permissions cannot be modified")
)

// StatusCode maps an authorization error to the HTTP status it surfaces as.
// Absence of proof is 401; presence-but-insufficient is 403; anything
// unrecognized is a collaborator failure and fails closed as 500.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrUserNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrNoOrganizationContext),
		errors.Is(err, ErrEmployeeRecordNotFound),
		errors.Is(err, ErrTargetNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAdminImmutable):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

package orgs

import (
	"errors"
	"time"
)

// Organization is a tenant boundary. Exactly one user owns it; all
// departments, employees, permissions, and invitations reference it by id.
type Organization struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	OwnerUserID int64     `json:"owner_user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Department groups employees within an organization. Subfunctions are
// ordered position names; an employee's SubfunctionIndex points into them.
type Department struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	Name           string    `json:"name"`
	Subfunctions   []string  `json:"subfunctions"`
	CreatedAt      time.Time `json:"created_at"`
}

// Employee is a user's membership record within one organization. Role holds
// an organizational role name ("HOD", "Team Lead", "Team Member",
// "Unassigned"); the empty string is treated as Unassigned downstream.
type Employee struct {
	ID               int64     `json:"id"`
	OrganizationID   int64     `json:"organization_id"`
	UserID           int64     `json:"user_id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	DepartmentID     *int64    `json:"department_id,omitempty"`
	SubfunctionIndex *int      `json:"subfunction_index,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Invitation is a pending offer for a user to join an organization as an
// employee with a preassigned role and department. Accepting it creates the
// employee row and links the user to the organization.
type Invitation struct {
	ID             int64      `json:"id"`
	OrganizationID int64      `json:"organization_id"`
	Email          string     `json:"email"`
	Role           string     `json:"role"`
	DepartmentID   *int64     `json:"department_id,omitempty"`
	Token          string     `json:"-"` // returned once at creation
	InvitedBy      int64      `json:"invited_by"`
	InvitedAt      time.Time  `json:"invited_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`
}

var (
	// ErrOrganizationNotFound indicates a lookup for a missing organization
	ErrOrganizationNotFound = errors.New("organization not found")

	// ErrAlreadyOwner indicates a user attempting to create a second organization
	ErrAlreadyOwner = errors.New("user already owns an organization")

	// ErrDepartmentNotFound indicates a lookup for a missing department
	ErrDepartmentNotFound = errors.New("department not found")

	// ErrDepartmentNameTaken indicates a duplicate department name within an organization
	ErrDepartmentNameTaken = errors.New("department name already exists in this organization")

	// ErrEmployeeNotFound indicates a lookup for a missing employee
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrEmployeeEmailTaken indicates the email already belongs to an employee of the organization
	ErrEmployeeEmailTaken = errors.New("an employee with this email already exists in the organization")

	// ErrUserAlreadyEmployee indicates the user is already an employee of an organization
	ErrUserAlreadyEmployee = errors.New("user is already an employee of an organization")

	// ErrInvitationNotFound indicates a lookup for a missing or unknown-token invitation
	ErrInvitationNotFound = errors.New("invitation not found")

	// ErrInvitationExpired indicates an invitation past its expiry
	ErrInvitationExpired = errors.New("invitation has expired")

	// ErrInvitationAccepted indicates an invitation that was already accepted
	ErrInvitationAccepted = errors.New("invitation has already been accepted")

	// ErrInvitationPending indicates a duplicate pending invitation for the same email
	ErrInvitationPending = errors.New("an invitation for this email is already pending")
)

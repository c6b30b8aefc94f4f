package auth

import "time"

// SystemRole is the system-level account tag. It is distinct from the
// organizational role carried on an employee record: a user tagged
// SystemAdmin is someone who created an organization, a user tagged
// SystemEmployee joined one through an invitation.
type SystemRole string

const (
	SystemAdmin    SystemRole = "Admin"
	SystemEmployee SystemRole = "Employee"
)

// User represents an account principal
type User struct {
	ID                   int64      `json:"id"`
	Email                string     `json:"email"`
	PasswordHash         string     `json:"-"` // never expose
	ExternalAuthID       *string    `json:"external_auth_id,omitempty"`
	SystemRole           SystemRole `json:"system_role"`
	LinkedOrganizationID *int64     `json:"linked_organization_id,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// APIToken represents an issued bearer token. Only the SHA256 hash is
// stored; the plaintext token is returned once at creation.
type APIToken struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	TokenHash   string     `json:"-"` // never expose hash
	TokenPrefix string     `json:"token_prefix"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

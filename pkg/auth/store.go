package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UserStore persists user accounts
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a new user store
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// CreateUser inserts a new user account. Fails with ErrEmailTaken when the
// email is already registered.
func (s *UserStore) CreateUser(ctx context.Context, user *User) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, user.Email,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return ErrEmailTaken
	}

	query := `
		INSERT INTO users (email, password_hash, external_auth_id, system_role, linked_organization_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id
	`

	now := time.Now()
	err = s.db.QueryRowContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.ExternalAuthID,
		user.SystemRole,
		user.LinkedOrganizationID,
		now,
	).Scan(&user.ID)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetUserByID retrieves a user by id
func (s *UserStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	query := `
		SELECT id, email, password_hash, external_auth_id, system_role, linked_organization_id, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByEmail retrieves a user by email
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, password_hash, external_auth_id, system_role, linked_organization_id, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

// LinkOrganization records the organization a user belongs to. Set on the
// creator at organization creation and on invitees when they accept.
func (s *UserStore) LinkOrganization(ctx context.Context, userID, orgID int64) error {
	query := `UPDATE users SET linked_organization_id = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	result, err := s.db.ExecContext(ctx, query, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to link organization: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// PromoteToAdmin tags a user as the Admin of the organization they created
// and links them to it.
func (s *UserStore) PromoteToAdmin(ctx context.Context, userID, orgID int64) error {
	query := `UPDATE users SET system_role = $1, linked_organization_id = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, SystemAdmin, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to promote user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// UnlinkOrganization clears the organization link for every user attached to
// the given organization. Used when an organization is deleted.
func (s *UserStore) UnlinkOrganization(ctx context.Context, orgID int64) error {
	query := `UPDATE users SET linked_organization_id = NULL, updated_at = CURRENT_TIMESTAMP WHERE linked_organization_id = $1`
	if _, err := s.db.ExecContext(ctx, query, orgID); err != nil {
		return fmt.Errorf("failed to unlink organization: %w", err)
	}
	return nil
}

func (s *UserStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	var externalAuthID sql.NullString
	var linkedOrgID sql.NullInt64

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&externalAuthID,
		&user.SystemRole,
		&linkedOrgID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if externalAuthID.Valid {
		ea := externalAuthID.String
		user.ExternalAuthID = &ea
	}
	if linkedOrgID.Valid {
		lo := linkedOrgID.Int64
		user.LinkedOrganizationID = &lo
	}

	return &user, nil
}

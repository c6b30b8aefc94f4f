package orgs

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultInvitationTTL is how long an invitation stays acceptable
const DefaultInvitationTTL = 7 * 24 * time.Hour

// CreateInvitation issues an invitation for an email to join an organization.
// The email must not already belong to an employee of the organization, and
// at most one pending invitation per (organization, email) exists at a time.
func (s *PostgresService) CreateInvitation(ctx context.Context, inv *Invitation) error {
	inv.Email = strings.ToLower(strings.TrimSpace(inv.Email))
	if inv.Role == "" {
		inv.Role = "Unassigned"
	}

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM employees WHERE organization_id = $1 AND email = $2)`,
		inv.OrganizationID, inv.Email,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check employee email: %w", err)
	}
	if exists {
		return ErrEmployeeEmailTaken
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM invitations WHERE organization_id = $1 AND email = $2 AND accepted_at IS NULL AND expires_at > $3)`,
		inv.OrganizationID, inv.Email, time.Now(),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check pending invitation: %w", err)
	}
	if exists {
		return ErrInvitationPending
	}

	// Stale invitations for the same email are replaced, not accumulated
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM invitations WHERE organization_id = $1 AND email = $2`,
		inv.OrganizationID, inv.Email,
	); err != nil {
		return fmt.Errorf("failed to clear stale invitations: %w", err)
	}

	inv.Token = uuid.NewString()
	now := time.Now()
	if inv.ExpiresAt.IsZero() {
		inv.ExpiresAt = now.Add(DefaultInvitationTTL)
	}

	query := `
		INSERT INTO invitations (organization_id, email, role, department_id, token, invited_by, invited_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err = s.db.QueryRowContext(ctx, query,
		inv.OrganizationID, inv.Email, inv.Role, inv.DepartmentID,
		inv.Token, inv.InvitedBy, now, inv.ExpiresAt,
	).Scan(&inv.ID)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}

	inv.InvitedAt = now
	return nil
}

// GetInvitationByToken retrieves an invitation by its token
func (s *PostgresService) GetInvitationByToken(ctx context.Context, token string) (*Invitation, error) {
	query := invitationSelect + ` WHERE token = $1`
	return s.scanInvitation(s.db.QueryRowContext(ctx, query, token))
}

// ListInvitations lists invitations for an organization, newest first
func (s *PostgresService) ListInvitations(ctx context.Context, orgID int64) ([]*Invitation, error) {
	query := invitationSelect + ` WHERE organization_id = $1 ORDER BY invited_at DESC`

	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []*Invitation
	for rows.Next() {
		inv, err := scanInvitationRow(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}

	return invitations, rows.Err()
}

// AcceptInvitation consumes an invitation: it creates the employee row with
// the invited role and department, links the user to the organization, and
// marks the invitation accepted. All within one transaction.
func (s *PostgresService) AcceptInvitation(ctx context.Context, token string, userID int64, name string) (*Employee, error) {
	inv, err := s.GetInvitationByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv.AcceptedAt != nil {
		return nil, ErrInvitationAccepted
	}
	if time.Now().After(inv.ExpiresAt) {
		return nil, ErrInvitationExpired
	}

	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM employees WHERE user_id = $1)`, userID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check employee user: %w", err)
	}
	if exists {
		return nil, ErrUserAlreadyEmployee
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	emp := &Employee{
		OrganizationID: inv.OrganizationID,
		UserID:         userID,
		Name:           name,
		Email:          inv.Email,
		Role:           inv.Role,
		DepartmentID:   inv.DepartmentID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO employees (organization_id, user_id, name, email, role, department_id, subfunction_index, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULL, $7, $7)
		RETURNING id
	`, emp.OrganizationID, emp.UserID, emp.Name, emp.Email, emp.Role, emp.DepartmentID, now).Scan(&emp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create employee: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE invitations SET accepted_at = $1 WHERE id = $2 AND accepted_at IS NULL`, now, inv.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark invitation accepted: %w", err)
	}
	if err := checkAffected(result, ErrInvitationAccepted); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET linked_organization_id = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		inv.OrganizationID, userID,
	); err != nil {
		return nil, fmt.Errorf("failed to link user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return emp, nil
}

// DeleteInvitation revokes a pending invitation
func (s *PostgresService) DeleteInvitation(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM invitations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}
	return checkAffected(result, ErrInvitationNotFound)
}

// CleanupExpiredInvitations deletes unaccepted invitations past their expiry
func (s *PostgresService) CleanupExpiredInvitations(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM invitations WHERE accepted_at IS NULL AND expires_at < $1`, time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup invitations: %w", err)
	}
	return result.RowsAffected()
}

const invitationSelect = `
	SELECT id, organization_id, email, role, department_id, token, invited_by, invited_at, expires_at, accepted_at
	FROM invitations`

func (s *PostgresService) scanInvitation(row *sql.Row) (*Invitation, error) {
	inv, err := scanInvitationRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrInvitationNotFound
	}
	return inv, err
}

func scanInvitationRow(row rowScanner) (*Invitation, error) {
	var inv Invitation
	var departmentID sql.NullInt64
	var acceptedAt sql.NullTime

	err := row.Scan(
		&inv.ID, &inv.OrganizationID, &inv.Email, &inv.Role, &departmentID,
		&inv.Token, &inv.InvitedBy, &inv.InvitedAt, &inv.ExpiresAt, &acceptedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan invitation: %w", err)
	}

	if departmentID.Valid {
		d := departmentID.Int64
		inv.DepartmentID = &d
	}
	if acceptedAt.Valid {
		a := acceptedAt.Time
		inv.AcceptedAt = &a
	}

	return &inv, nil
}

package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Store persists per-organization permission bundles. One row per
// (organization, role); absence of a row means the role runs on defaults.
type Store struct {
	db *sql.DB
}

// NewStore creates a new permission store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetPermissionSet retrieves the stored bundle for a role within an
// organization. Returns (nil, nil) when no row exists: that is the normal
// default-fallback path, not an error.
func (s *Store) GetPermissionSet(ctx context.Context, orgID int64, role Role) (*PermissionSet, error) {
	query := `SELECT bundle FROM permissions WHERE organization_id = $1 AND role = $2`

	var bundleJSON []byte
	err := s.db.QueryRowContext(ctx, query, orgID, role).Scan(&bundleJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission set: %w", err)
	}

	var set PermissionSet
	if err := json.Unmarshal(bundleJSON, &set); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permission bundle: %w", err)
	}

	return &set, nil
}

// UpsertPermissionSet atomically creates or replaces the bundle for a
// (organization, role) pair. The unique index makes concurrent first-time
// initialization race-free.
func (s *Store) UpsertPermissionSet(ctx context.Context, orgID int64, role Role, set *PermissionSet) error {
	bundleJSON, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to marshal permission bundle: %w", err)
	}

	query := `
		INSERT INTO permissions (organization_id, role, bundle, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (organization_id, role)
		DO UPDATE SET bundle = EXCLUDED.bundle, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, orgID, role, bundleJSON, time.Now()); err != nil {
		return fmt.Errorf("failed to upsert permission set: %w", err)
	}

	return nil
}

// InitializePermissions seeds default bundles for every customizable role of
// an organization without overwriting existing customizations.
func (s *Store) InitializePermissions(ctx context.Context, orgID int64) error {
	query := `
		INSERT INTO permissions (organization_id, role, bundle, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (organization_id, role) DO NOTHING
	`

	now := time.Now()
	for _, role := range CustomizableRoles {
		bundleJSON, err := json.Marshal(DefaultPermissions(role))
		if err != nil {
			return fmt.Errorf("failed to marshal defaults for %s: %w", role, err)
		}
		if _, err := s.db.ExecContext(ctx, query, orgID, role, bundleJSON, now); err != nil {
			return fmt.Errorf("failed to initialize permissions for %s: %w", role, err)
		}
	}

	return nil
}

// DeletePermissions removes all permission rows of an organization
func (s *Store) DeletePermissions(ctx context.Context, orgID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM permissions WHERE organization_id = $1`, orgID); err != nil {
		return fmt.Errorf("failed to delete permissions: %w", err)
	}
	return nil
}

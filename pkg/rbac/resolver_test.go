package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_DefaultFallback(t *testing.T) {
	db := setupTestDB(t)
	resolver := NewResolver(NewStore(db), nil)

	orgID, _ := seedOrg(t, db, "owner@resolve.test")

	set, err := resolver.Resolve(context.Background(), orgID, RoleHOD)
	require.NoError(t, err)
	assert.Equal(t, DefaultPermissions(RoleHOD), set)
}

func TestResolve_StoredOverrideWins(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	resolver := NewResolver(store, nil)
	ctx := context.Background()

	orgID, _ := seedOrg(t, db, "owner@resolve.test")

	custom := DefaultPermissions(RoleTeamMember)
	custom.DashboardAccess = true
	require.NoError(t, store.UpsertPermissionSet(ctx, orgID, RoleTeamMember, custom))

	set, err := resolver.Resolve(ctx, orgID, RoleTeamMember)
	require.NoError(t, err)
	assert.True(t, set.DashboardAccess)
}

func TestResolve_AdminIgnoresStoredRows(t *testing.T) {
	// Even a tampered row claiming to restrict Admin must have no effect.
	db := setupTestDB(t)
	resolver := NewResolver(NewStore(db), nil)

	orgID, _ := seedOrg(t, db, "owner@resolve.test")

	_, err := db.Exec(
		`INSERT INTO permissions (organization_id, role, bundle, created_at, updated_at)
		 VALUES ($1, 'Admin', '{"accessScope":"none"}', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		orgID)
	require.NoError(t, err)

	set, err := resolver.Resolve(context.Background(), orgID, RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, DefaultPermissions(RoleAdmin), set)
}

func TestResolve_UnassignedIsFixed(t *testing.T) {
	db := setupTestDB(t)
	resolver := NewResolver(NewStore(db), nil)

	orgID, _ := seedOrg(t, db, "owner@resolve.test")

	_, err := db.Exec(
		`INSERT INTO permissions (organization_id, role, bundle, created_at, updated_at)
		 VALUES ($1, 'Unassigned', '{"canDeleteEmployees":true,"accessScope":"all"}', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		orgID)
	require.NoError(t, err)

	set, err := resolver.Resolve(context.Background(), orgID, RoleUnassigned)
	require.NoError(t, err)
	assert.Equal(t, UnassignedPermissions(), set)
}

func TestResolve_PerOrganizationIsolation(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	resolver := NewResolver(store, nil)
	ctx := context.Background()

	acmeID, _ := seedOrg(t, db, "owner@acme.test")
	globexID, _ := seedOrg(t, db, "owner@globex.test")

	custom := DefaultPermissions(RoleTeamLead)
	custom.CanViewEmployees = true
	require.NoError(t, store.UpsertPermissionSet(ctx, acmeID, RoleTeamLead, custom))

	acmeSet, err := resolver.Resolve(ctx, acmeID, RoleTeamLead)
	require.NoError(t, err)
	assert.True(t, acmeSet.CanViewEmployees)

	globexSet, err := resolver.Resolve(ctx, globexID, RoleTeamLead)
	require.NoError(t, err)
	assert.False(t, globexSet.CanViewEmployees)
}

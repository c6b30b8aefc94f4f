package rbac

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory database with the subset of the schema
// the authorization pipeline touches.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		external_auth_id TEXT,
		system_role TEXT NOT NULL DEFAULT 'Employee',
		linked_organization_id INTEGER,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE api_tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token_hash TEXT NOT NULL UNIQUE,
		token_prefix TEXT NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		revoked_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE organizations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		owner_user_id INTEGER NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE TABLE departments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		organization_id INTEGER NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		subfunctions TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL,
		UNIQUE(organization_id, name)
	);
	CREATE TABLE employees (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		organization_id INTEGER NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'Unassigned',
		department_id INTEGER REFERENCES departments(id) ON DELETE SET NULL,
		subfunction_index INTEGER,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(organization_id, email),
		UNIQUE(organization_id, user_id)
	);
	CREATE TABLE permissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		organization_id INTEGER NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		bundle TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(organization_id, role)
	);`
	_, err = db.Exec(schema)
	require.NoError(t, err)

	return db
}

// seedUser inserts a user row and returns its id
func seedUser(t *testing.T, db *sql.DB, email string) int64 {
	t.Helper()

	res, err := db.Exec(`INSERT INTO users (email) VALUES ($1)`, email)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// seedOrg inserts a user and an organization they own, returning both ids
func seedOrg(t *testing.T, db *sql.DB, email string) (orgID, ownerID int64) {
	t.Helper()

	ownerID = seedUser(t, db, email)

	res, err := db.Exec(
		`INSERT INTO organizations (name, owner_user_id, created_at, updated_at)
		 VALUES ($1, $2, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		"Org "+email, ownerID)
	require.NoError(t, err)
	orgID, err = res.LastInsertId()
	require.NoError(t, err)

	_, err = db.Exec(`UPDATE users SET linked_organization_id = $1 WHERE id = $2`, orgID, ownerID)
	require.NoError(t, err)
	return orgID, ownerID
}

func TestStore_GetPermissionSet_AbsentIsNil(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	orgID, _ := seedOrg(t, db, "owner@store.test")

	set, err := store.GetPermissionSet(context.Background(), orgID, RoleHOD)
	require.NoError(t, err)
	assert.Nil(t, set)
}

func TestStore_UpsertPermissionSet(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	orgID, _ := seedOrg(t, db, "owner@store.test")

	custom := DefaultPermissions(RoleTeamMember)
	custom.CanAccessChatbot = true
	require.NoError(t, store.UpsertPermissionSet(ctx, orgID, RoleTeamMember, custom))

	got, err := store.GetPermissionSet(ctx, orgID, RoleTeamMember)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.CanAccessChatbot)
	assert.Equal(t, ScopeNone, got.AccessScope)

	t.Run("replace existing", func(t *testing.T) {
		custom.CanAccessChatbot = false
		custom.CanViewEmployees = true
		require.NoError(t, store.UpsertPermissionSet(ctx, orgID, RoleTeamMember, custom))

		got, err := store.GetPermissionSet(ctx, orgID, RoleTeamMember)
		require.NoError(t, err)
		assert.False(t, got.CanAccessChatbot)
		assert.True(t, got.CanViewEmployees)
	})

	t.Run("other roles untouched", func(t *testing.T) {
		got, err := store.GetPermissionSet(ctx, orgID, RoleTeamLead)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestStore_InitializePermissions(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	orgID, _ := seedOrg(t, db, "owner@store.test")

	custom := DefaultPermissions(RoleHOD)
	custom.CanInviteEmployees = true
	require.NoError(t, store.UpsertPermissionSet(ctx, orgID, RoleHOD, custom))

	require.NoError(t, store.InitializePermissions(ctx, orgID))

	t.Run("seeds missing roles with defaults", func(t *testing.T) {
		got, err := store.GetPermissionSet(ctx, orgID, RoleTeamLead)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, DefaultPermissions(RoleTeamLead), got)
	})

	t.Run("keeps existing customization", func(t *testing.T) {
		got, err := store.GetPermissionSet(ctx, orgID, RoleHOD)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.CanInviteEmployees)
	})
}

func TestStore_DeletePermissions(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	orgID, _ := seedOrg(t, db, "owner@store.test")
	otherID, _ := seedOrg(t, db, "other@store.test")

	require.NoError(t, store.InitializePermissions(ctx, orgID))
	require.NoError(t, store.InitializePermissions(ctx, otherID))

	require.NoError(t, store.DeletePermissions(ctx, orgID))

	set, err := store.GetPermissionSet(ctx, orgID, RoleHOD)
	require.NoError(t, err)
	assert.Nil(t, set)

	set, err = store.GetPermissionSet(ctx, otherID, RoleHOD)
	require.NoError(t, err)
	assert.NotNil(t, set)
}

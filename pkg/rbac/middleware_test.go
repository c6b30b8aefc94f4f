package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgdeck/orgdeck/pkg/auth"
	"github.com/orgdeck/orgdeck/pkg/httputil"
	"github.com/orgdeck/orgdeck/pkg/observability"
	"github.com/orgdeck/orgdeck/pkg/orgs"
)

// gateFixture wires a full authorization pipeline over an in-memory database
type gateFixture struct {
	db       *sql.DB
	gate     *Gate
	store    *Store
	cache    *Cache
	tokens   *auth.TokenStore
	users    *auth.UserStore
	service  *orgs.PostgresService
	resolver *Resolver
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()

	db := setupTestDB(t)
	users := auth.NewUserStore(db)
	tokens := auth.NewTokenStore(db)
	service := orgs.NewPostgresService(db)
	store := NewStore(db)
	cache := NewCache(32, time.Minute, nil, nil)
	resolver := NewResolver(store, cache)
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	gate := NewGate(
		auth.NewTokenVerifier(tokens),
		NewClassifier(users, service),
		resolver,
		NewEvaluator(service),
		logger,
		nil,
	)

	return &gateFixture{
		db:       db,
		gate:     gate,
		store:    store,
		cache:    cache,
		tokens:   tokens,
		users:    users,
		service:  service,
		resolver: resolver,
	}
}

// issueToken creates a valid bearer token for a user
func (f *gateFixture) issueToken(t *testing.T, userID int64) string {
	t.Helper()

	token, hash, prefix, err := auth.NewTokenGenerator().GenerateToken()
	require.NoError(t, err)
	expiresAt := time.Now().Add(time.Hour)
	require.NoError(t, f.tokens.CreateToken(context.Background(), &auth.APIToken{
		UserID:      userID,
		TokenHash:   hash,
		TokenPrefix: prefix,
		ExpiresAt:   &expiresAt,
	}))
	return token
}

// seedEmployee inserts an employee row directly
func (f *gateFixture) seedEmployee(t *testing.T, orgID, userID int64, role string, deptID *int64) int64 {
	t.Helper()

	res, err := f.db.Exec(
		`INSERT INTO employees (organization_id, user_id, name, email, role, department_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		orgID, userID, fmt.Sprintf("Employee %d", userID), fmt.Sprintf("emp%d@test", userID), role, deptID)
	require.NoError(t, err)
	_, err = f.db.Exec(`UPDATE users SET linked_organization_id = $1 WHERE id = $2`, orgID, userID)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// seedDepartment inserts a department row directly
func (f *gateFixture) seedDepartment(t *testing.T, orgID int64, name string) int64 {
	t.Helper()

	res, err := f.db.Exec(
		`INSERT INTO departments (organization_id, name, created_at) VALUES ($1, $2, CURRENT_TIMESTAMP)`,
		orgID, name)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// okHandler records that the gate admitted the request
func okHandler(t *testing.T, requireAuthz bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requireAuthz {
			_, ok := GetAuthz(r.Context())
			assert.True(t, ok, "gated handler should see the authorization context")
		}
		httputil.WriteSuccess(w, map[string]bool{"ok": true})
	})
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httputil.MessageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Message
}

func TestGate_MissingToken(t *testing.T) {
	f := newGateFixture(t)

	handler := f.gate.Require(FlagViewOrgChart)(okHandler(t, false))

	req := httptest.NewRequest(http.MethodGet, "/chart", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "No authentication token provided", decodeMessage(t, rec))
}

func TestGate_InvalidToken(t *testing.T) {
	f := newGateFixture(t)

	handler := f.gate.Require(FlagViewOrgChart)(okHandler(t, false))

	req := httptest.NewRequest(http.MethodGet, "/chart", nil)
	req.Header.Set("Authorization", "Bearer od_bogus")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGate_OwnerIsAdmitted(t *testing.T) {
	f := newGateFixture(t)
	_, ownerID := seedOrg(t, f.db, "owner@gate.test")
	token := f.issueToken(t, ownerID)

	handler := f.gate.Require(FlagDeleteEmployees)(okHandler(t, true))

	req := httptest.NewRequest(http.MethodDelete, "/employees/1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGate_DefaultDenial(t *testing.T) {
	f := newGateFixture(t)
	orgID, _ := seedOrg(t, f.db, "owner@gate.test")

	memberUser := seedUser(t, f.db, "member@gate.test")
	f.seedEmployee(t, orgID, memberUser, "Team Member", nil)
	token := f.issueToken(t, memberUser)

	handler := f.gate.Require(FlagViewEmployees)(okHandler(t, false))

	req := httptest.NewRequest(http.MethodGet, "/employees", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Access denied", decodeMessage(t, rec))
}

func TestGate_StoredOverrideGrants(t *testing.T) {
	f := newGateFixture(t)
	orgID, _ := seedOrg(t, f.db, "owner@gate.test")

	memberUser := seedUser(t, f.db, "member@gate.test")
	f.seedEmployee(t, orgID, memberUser, "Team Member", nil)
	token := f.issueToken(t, memberUser)

	custom := DefaultPermissions(RoleTeamMember)
	custom.CanViewEmployees = true
	require.NoError(t, f.store.UpsertPermissionSet(context.Background(), orgID, RoleTeamMember, custom))

	handler := f.gate.Require(FlagViewEmployees)(okHandler(t, true))

	req := httptest.NewRequest(http.MethodGet, "/employees", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGate_UnassignedMinimal(t *testing.T) {
	f := newGateFixture(t)
	orgID, _ := seedOrg(t, f.db, "owner@gate.test")

	newUser := seedUser(t, f.db, "new@gate.test")
	f.seedEmployee(t, orgID, newUser, "Unassigned", nil)
	token := f.issueToken(t, newUser)

	t.Run("org chart allowed", func(t *testing.T) {
		handler := f.gate.Require(FlagViewOrgChart)(okHandler(t, false))
		req := httptest.NewRequest(http.MethodGet, "/chart", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("own payroll denied", func(t *testing.T) {
		handler := f.gate.Require(FlagViewOwnPayroll)(okHandler(t, false))
		req := httptest.NewRequest(http.MethodGet, "/payroll", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestGate_NoOrganizationContext(t *testing.T) {
	f := newGateFixture(t)
	loneUser := seedUser(t, f.db, "lone@gate.test")
	token := f.issueToken(t, loneUser)

	handler := f.gate.Require(FlagViewOrgChart)(okHandler(t, false))

	req := httptest.NewRequest(http.MethodGet, "/chart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No organization context", decodeMessage(t, rec))
}

func TestGate_NoEmployeeRecordInTarget(t *testing.T) {
	f := newGateFixture(t)
	orgID, _ := seedOrg(t, f.db, "owner@gate.test")
	outsider := seedUser(t, f.db, "outsider@gate.test")
	token := f.issueToken(t, outsider)

	router := mux.NewRouter()
	router.Handle("/orgs/{org_id:[0-9]+}/chart",
		f.gate.Require(FlagViewOrgChart)(okHandler(t, false)))

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/orgs/%d/chart", orgID), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Employee record not found", decodeMessage(t, rec))
}

func TestGate_RequireEmployeeAccess(t *testing.T) {
	f := newGateFixture(t)
	orgID, _ := seedOrg(t, f.db, "owner@gate.test")
	deptA := f.seedDepartment(t, orgID, "Engineering")
	deptB := f.seedDepartment(t, orgID, "Sales")

	hodUser := seedUser(t, f.db, "hod@gate.test")
	f.seedEmployee(t, orgID, hodUser, "HOD", &deptA)
	hodToken := f.issueToken(t, hodUser)

	reportUser := seedUser(t, f.db, "report@gate.test")
	reportID := f.seedEmployee(t, orgID, reportUser, "Team Member", &deptA)

	foreignUser := seedUser(t, f.db, "sales@gate.test")
	foreignID := f.seedEmployee(t, orgID, foreignUser, "Team Member", &deptB)

	router := mux.NewRouter()
	router.Handle("/employees/{employee_id:[0-9]+}/payroll",
		f.gate.RequireEmployeeAccess(FlagSetPayroll)(okHandler(t, true)))

	do := func(token string, employeeID int64) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/employees/%d/payroll", employeeID), nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("same department allowed", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do(hodToken, reportID).Code)
	})

	t.Run("other department denied", func(t *testing.T) {
		rec := do(hodToken, foreignID)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Access denied", decodeMessage(t, rec))
	})

	t.Run("missing target", func(t *testing.T) {
		rec := do(hodToken, 9999)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Target not found", decodeMessage(t, rec))
	})

	t.Run("member blocked by flag before scope", func(t *testing.T) {
		memberToken := f.issueToken(t, reportUser)
		rec := do(memberToken, reportID)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

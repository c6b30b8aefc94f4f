package rbac

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/orgdeck/orgdeck/pkg/httputil"
	"github.com/orgdeck/orgdeck/pkg/observability"
)

// Handlers implements the permission management endpoints. All routes are
// owner-only: customizing role bundles is an Admin concern.
type Handlers struct {
	store    *Store
	resolver *Resolver
	cache    *Cache
	logger   *observability.Logger
}

// NewHandlers creates permission management handlers. cache may be nil.
func NewHandlers(store *Store, resolver *Resolver, cache *Cache, logger *observability.Logger) *Handlers {
	return &Handlers{store: store, resolver: resolver, cache: cache, logger: logger}
}

// RegisterRoutes registers permission endpoints on the router. The gate only
// admits authenticated members; the Admin requirement is enforced here.
func (h *Handlers) RegisterRoutes(r *mux.Router, gate *Gate) {
	perms := r.PathPrefix("/orgs/{org_id:[0-9]+}/permissions").Subrouter()
	perms.Use(gate.Require(FlagViewRoleAssignment))

	perms.HandleFunc("", h.ListPermissions).Methods(http.MethodGet)
	perms.HandleFunc("", h.InitializePermissions).Methods(http.MethodPost)
	perms.HandleFunc("/{role}", h.GetPermissions).Methods(http.MethodGet)
	perms.HandleFunc("/{role}", h.UpdatePermissions).Methods(http.MethodPut)
}

// RoleBundle pairs a role with its effective permission bundle
type RoleBundle struct {
	Role        Role           `json:"role"`
	Permissions *PermissionSet `json:"permissions"`
}

// updatePermissionsRequest is the body for PUT .../permissions/{role}
type updatePermissionsRequest struct {
	Permissions *PermissionSet `json:"permissions"`
}

// requireAdmin extracts the gate's authorization context and checks that the
// caller is the organization owner acting on their own organization.
func (h *Handlers) requireAdmin(w http.ResponseWriter, r *http.Request) (*AuthzContext, int64, bool) {
	authz, orgID, ok := h.requireMember(w, r)
	if !ok {
		return nil, 0, false
	}
	if authz.Role != RoleAdmin {
		httputil.WriteForbidden(w, ErrAccessDenied.Error())
		return nil, 0, false
	}
	return authz, orgID, true
}

// requireMember checks the caller's resolved organization against the route
func (h *Handlers) requireMember(w http.ResponseWriter, r *http.Request) (*AuthzContext, int64, bool) {
	authz, ok := GetAuthz(r.Context())
	if !ok {
		httputil.WriteInternalError(w)
		return nil, 0, false
	}
	orgID, err := strconv.ParseInt(mux.Vars(r)["org_id"], 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid organization id")
		return nil, 0, false
	}
	if authz.Organization.ID != orgID {
		httputil.WriteForbidden(w, ErrAccessDenied.Error())
		return nil, 0, false
	}
	return authz, orgID, true
}

// ListPermissions returns the effective bundle for every role, including the
// synthetic Admin bundle, so clients can render a full role matrix.
func (h *Handlers) ListPermissions(w http.ResponseWriter, r *http.Request) {
	_, orgID, ok := h.requireMember(w, r)
	if !ok {
		return
	}

	bundles := []RoleBundle{{Role: RoleAdmin, Permissions: DefaultPermissions(RoleAdmin)}}
	for _, role := range AssignableRoles {
		set, err := h.resolver.Resolve(r.Context(), orgID, role)
		if err != nil {
			h.logger.WithError(err).Error("failed to resolve permissions")
			httputil.WriteInternalError(w)
			return
		}
		bundles = append(bundles, RoleBundle{Role: role, Permissions: set})
	}

	httputil.WriteSuccess(w, bundles)
}

// GetPermissions returns the effective bundle for one role
func (h *Handlers) GetPermissions(w http.ResponseWriter, r *http.Request) {
	_, orgID, ok := h.requireMember(w, r)
	if !ok {
		return
	}

	role := ParseRole(mux.Vars(r)["role"])
	if Role(mux.Vars(r)["role"]) == RoleAdmin {
		httputil.WriteSuccess(w, RoleBundle{Role: RoleAdmin, Permissions: DefaultPermissions(RoleAdmin)})
		return
	}
	if !role.IsAssignable() {
		httputil.WriteBadRequest(w, "unknown role")
		return
	}

	set, err := h.resolver.Resolve(r.Context(), orgID, role)
	if err != nil {
		h.logger.WithError(err).Error("failed to resolve permissions")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteSuccess(w, RoleBundle{Role: role, Permissions: set})
}

// UpdatePermissions replaces the stored bundle for an assignable role.
// Admin is immutable and Unassigned is not customizable.
func (h *Handlers) UpdatePermissions(w http.ResponseWriter, r *http.Request) {
	_, orgID, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	rawRole := mux.Vars(r)["role"]
	if Role(rawRole) == RoleAdmin {
		httputil.WriteError(w, http.StatusBadRequest, ErrAdminImmutable)
		return
	}
	role := Role(rawRole)
	if !role.IsAssignable() {
		httputil.WriteBadRequest(w, "unknown role")
		return
	}
	if role == RoleUnassigned {
		httputil.WriteBadRequest(w, "Unassigned permissions cannot be modified")
		return
	}

	var req updatePermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Permissions == nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	switch req.Permissions.AccessScope {
	case ScopeAll, ScopeDepartment, ScopeSubfunction, ScopeNone:
	default:
		httputil.WriteBadRequest(w, "invalid access scope")
		return
	}

	if err := h.store.UpsertPermissionSet(r.Context(), orgID, role, req.Permissions); err != nil {
		h.logger.WithError(err).Error("failed to update permissions")
		httputil.WriteInternalError(w)
		return
	}
	if h.cache != nil {
		h.cache.Invalidate(r.Context(), orgID, role)
	}

	httputil.WriteSuccess(w, RoleBundle{Role: role, Permissions: req.Permissions})
}

// InitializePermissions seeds default bundles for the organization's
// assignable roles without touching existing customizations
func (h *Handlers) InitializePermissions(w http.ResponseWriter, r *http.Request) {
	_, orgID, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	if err := h.store.InitializePermissions(r.Context(), orgID); err != nil {
		h.logger.WithError(err).Error("failed to initialize permissions")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, "Permissions initialized")
}

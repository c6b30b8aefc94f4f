package orgs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/orgdeck/orgdeck/pkg/auth"
	"github.com/orgdeck/orgdeck/pkg/contextkeys"
	"github.com/orgdeck/orgdeck/pkg/httputil"
	"github.com/orgdeck/orgdeck/pkg/observability"
)

// Handlers provides HTTP handlers for organizations, departments, employees,
// and invitations. Authorization happens in the gate middleware before these
// run; handlers only re-check ownership where the operation is owner-only.
type Handlers struct {
	service *PostgresService
	users   *auth.UserStore
	logger  *observability.Logger
}

// NewHandlers creates new organization handlers
func NewHandlers(db *sql.DB, logger *observability.Logger) *Handlers {
	return &Handlers{
		service: NewPostgresService(db),
		users:   auth.NewUserStore(db),
		logger:  logger,
	}
}

// Service exposes the underlying store for wiring (cron jobs, rbac lookups)
func (h *Handlers) Service() *PostgresService {
	return h.service
}

// requestUser pulls the authenticated user attached by the middleware
func requestUser(r *http.Request) *auth.User {
	user, _ := r.Context().Value(contextkeys.UserKey).(*auth.User)
	return user
}

func orgIDVar(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["org_id"], 10, 64)
	return id, err == nil
}

// CreateOrganization creates an organization owned by the calling user and
// promotes the account to the Admin system role.
func (h *Handlers) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := requestUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, auth.ErrNoCredential.Error())
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		httputil.WriteBadRequest(w, "Organization name is required")
		return
	}

	org := &Organization{Name: req.Name, OwnerUserID: user.ID}
	if err := h.service.CreateOrganization(ctx, org); err != nil {
		if errors.Is(err, ErrAlreadyOwner) {
			httputil.WriteConflict(w, ErrAlreadyOwner.Error())
			return
		}
		h.logger.WithError(err).Error("failed to create organization")
		httputil.WriteInternalError(w)
		return
	}

	if err := h.users.PromoteToAdmin(ctx, user.ID, org.ID); err != nil {
		h.logger.WithError(err).WithField("org_id", org.ID).Error("failed to promote owner")
		httputil.WriteInternalError(w)
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"org_id":  org.ID,
		"user_id": user.ID,
	}).Info("organization created")
	httputil.WriteCreated(w, org)
}

// GetOrganization returns the organization in the request context
func (h *Handlers) GetOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "Invalid organization ID")
		return
	}

	org, err := h.service.GetOrganization(r.Context(), orgID)
	if err != nil {
		if errors.Is(err, ErrOrganizationNotFound) {
			httputil.WriteNotFound(w, ErrOrganizationNotFound.Error())
			return
		}
		h.logger.WithError(err).Error("failed to get organization")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteSuccess(w, org)
}

// UpdateOrganization renames an organization. Owner only.
func (h *Handlers) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	org, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		httputil.WriteBadRequest(w, "Organization name is required")
		return
	}

	if err := h.service.UpdateOrganization(r.Context(), org.ID, req.Name); err != nil {
		h.logger.WithError(err).Error("failed to update organization")
		httputil.WriteInternalError(w)
		return
	}

	org.Name = req.Name
	httputil.WriteSuccess(w, org)
}

// DeleteOrganization deletes an organization and everything under it.
// Owner only.
func (h *Handlers) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	org, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteOrganization(r.Context(), org.ID); err != nil {
		h.logger.WithError(err).Error("failed to delete organization")
		httputil.WriteInternalError(w)
		return
	}

	h.logger.WithField("org_id", org.ID).Info("organization deleted")
	httputil.WriteNoContent(w)
}

// requireOwner loads the organization from the path and checks the caller
// owns it. Non-owners get 403 regardless of their permission flags.
func (h *Handlers) requireOwner(w http.ResponseWriter, r *http.Request) (*Organization, bool) {
	user := requestUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, auth.ErrNoCredential.Error())
		return nil, false
	}

	orgID, ok := orgIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "Invalid organization ID")
		return nil, false
	}

	org, err := h.service.GetOrganization(r.Context(), orgID)
	if err != nil {
		if errors.Is(err, ErrOrganizationNotFound) {
			httputil.WriteNotFound(w, ErrOrganizationNotFound.Error())
			return nil, false
		}
		h.logger.WithError(err).Error("failed to get organization")
		httputil.WriteInternalError(w)
		return nil, false
	}

	if org.OwnerUserID != user.ID {
		httputil.WriteForbidden(w, "Access denied")
		return nil, false
	}

	return org, true
}

// CreateDepartment creates a department
func (h *Handlers) CreateDepartment(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "Invalid organization ID")
		return
	}

	var req struct {
		Name         string   `json:"name"`
		Subfunctions []string `json:"subfunctions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		httputil.WriteBadRequest(w, "Department name is required")
		return
	}

	dept := &Department{
		OrganizationID: orgID,
		Name:           req.Name,
		Subfunctions:   req.Subfunctions,
	}
	if err := h.service.CreateDepartment(r.Context(), dept); err != nil {
		if errors.Is(err, ErrDepartmentNameTaken) {
			httputil.WriteConflict(w, ErrDepartmentNameTaken.Error())
			return
		}
		h.logger.WithError(err).Error("failed to create department")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteCreated(w, dept)
}

// ListDepartments lists an organization's departments
func (h *Handlers) ListDepartments(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "Invalid organization ID")
		return
	}

	departments, err := h.service.ListDepartments(r.Context(), orgID)
	if err != nil {
		h.logger.WithError(err).Error("failed to list departments")
		httputil.WriteInternalError(w)
		return
	}
	if departments == nil {
		departments = []*Department{}
	}

	httputil.WriteSuccess(w, departments)
}

// UpdateDepartment updates a department's name and subfunctions
func (h *Handlers) UpdateDepartment(w http.ResponseWriter, r *http.Request) {
	deptID, err := strconv.ParseInt(mux.Vars(r)["dept_id"], 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid department ID")
		return
	}

	dept, err := h.service.GetDepartment(r.Context(), deptID)
	if err != nil {
		if errors.Is(err, ErrDepartmentNotFound) {
			httputil.WriteNotFound(w, ErrDepartmentNotFound.Error())
			return
		}
		h.logger.WithError(err).Error("failed to get department")
		httputil.WriteInternalError(w)
		return
	}

	var req struct {
		Name         string   `json:"name"`
		Subfunctions []string `json:"subfunctions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		httputil.WriteBadRequest(w, "Department name is required")
		return
	}

	dept.Name = req.Name
	if req.Subfunctions != nil {
		dept.Subfunctions = req.Subfunctions
	}

	if err := h.service.UpdateDepartment(r.Context(), dept); err != nil {
		h.logger.WithError(err).Error("failed to update department")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteSuccess(w, dept)
}

// DeleteDepartment removes a department
func (h *Handlers) DeleteDepartment(w http.ResponseWriter, r *http.Request) {
	deptID, err := strconv.ParseInt(mux.Vars(r)["dept_id"], 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid department ID")
		return
	}

	if err := h.service.DeleteDepartment(r.Context(), deptID); err != nil {
		if errors.Is(err, ErrDepartmentNotFound) {
			httputil.WriteNotFound(w, ErrDepartmentNotFound.Error())
			return
		}
		h.logger.WithError(err).Error("failed to delete department")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteNoContent(w)
}

// ListEmployees lists an organization's employees
func (h *Handlers) ListEmployees(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "Invalid organization ID")
		return
	}

	employees, err := h.service.ListEmployees(r.Context(), orgID)
	if err != nil {
		h.logger.WithError(err).Error("failed to list employees")
		httputil.WriteInternalError(w)
		return
	}
	if employees == nil {
		employees = []*Employee{}
	}

	httputil.WriteSuccess(w, employees)
}

// GetEmployee returns a single employee
func (h *Handlers) GetEmployee(w http.ResponseWriter, r *http.Request) {
	empID, err := strconv.ParseInt(mux.Vars(r)["employee_id"], 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid employee ID")
		return
	}

	emp, err := h.service.GetEmployee(r.Context(), empID)
	if err != nil {
		if errors.Is(err, ErrEmployeeNotFound) {
			httputil.WriteNotFound(w, ErrEmployeeNotFound.Error())
			return
		}
		h.logger.WithError(err).Error("failed to get employee")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteSuccess(w, emp)
}

// UpdateEmployee updates an employee's name, role, and department
func (h *Handlers) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	empID, err := strconv.ParseInt(mux.Vars(r)["employee_id"], 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid employee ID")
		return
	}

	emp, err := h.service.GetEmployee(r.Context(), empID)
	if err != nil {
		if errors.Is(err, ErrEmployeeNotFound) {
			httputil.WriteNotFound(w, ErrEmployeeNotFound.Error())
			return
		}
		h.logger.WithError(err).Error("failed to get employee")
		httputil.WriteInternalError(w)
		return
	}

	var req struct {
		Name             *string `json:"name"`
		Role             *string `json:"role"`
		DepartmentID     *int64  `json:"department_id"`
		SubfunctionIndex *int    `json:"subfunction_index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.Name != nil {
		emp.Name = *req.Name
	}
	if req.Role != nil {
		emp.Role = *req.Role
	}
	if req.DepartmentID != nil {
		emp.DepartmentID = req.DepartmentID
	}
	if req.SubfunctionIndex != nil {
		emp.SubfunctionIndex = req.SubfunctionIndex
	}

	if err := h.service.UpdateEmployee(r.Context(), emp); err != nil {
		h.logger.WithError(err).Error("failed to update employee")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteSuccess(w, emp)
}

// DeleteEmployee removes an employee from the organization
func (h *Handlers) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	empID, err := strconv.ParseInt(mux.Vars(r)["employee_id"], 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid employee ID")
		return
	}

	if err := h.service.DeleteEmployee(r.Context(), empID); err != nil {
		if errors.Is(err, ErrEmployeeNotFound) {
			httputil.WriteNotFound(w, ErrEmployeeNotFound.Error())
			return
		}
		h.logger.WithError(err).Error("failed to delete employee")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteNoContent(w)
}

// CreateInvitation invites an email to join the organization
func (h *Handlers) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)
	orgID, ok := orgIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "Invalid organization ID")
		return
	}

	var req struct {
		Email        string `json:"email"`
		Role         string `json:"role"`
		DepartmentID *int64 `json:"department_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		httputil.WriteBadRequest(w, "Email is required")
		return
	}

	inv := &Invitation{
		OrganizationID: orgID,
		Email:          req.Email,
		Role:           req.Role,
		DepartmentID:   req.DepartmentID,
	}
	if user != nil {
		inv.InvitedBy = user.ID
	}

	if err := h.service.CreateInvitation(r.Context(), inv); err != nil {
		switch {
		case errors.Is(err, ErrEmployeeEmailTaken):
			httputil.WriteConflict(w, ErrEmployeeEmailTaken.Error())
		case errors.Is(err, ErrInvitationPending):
			httputil.WriteConflict(w, ErrInvitationPending.Error())
		default:
			h.logger.WithError(err).Error("failed to create invitation")
			httputil.WriteInternalError(w)
		}
		return
	}

	// The token rides along once; delivery (email) happens out of band
	httputil.WriteCreated(w, struct {
		*Invitation
		Token string `json:"token"`
	}{inv, inv.Token})
}

// ListInvitations lists an organization's invitations
func (h *Handlers) ListInvitations(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "Invalid organization ID")
		return
	}

	invitations, err := h.service.ListInvitations(r.Context(), orgID)
	if err != nil {
		h.logger.WithError(err).Error("failed to list invitations")
		httputil.WriteInternalError(w)
		return
	}
	if invitations == nil {
		invitations = []*Invitation{}
	}

	httputil.WriteSuccess(w, invitations)
}

// DeleteInvitation revokes a pending invitation
func (h *Handlers) DeleteInvitation(w http.ResponseWriter, r *http.Request) {
	invID, err := strconv.ParseInt(mux.Vars(r)["invitation_id"], 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid invitation ID")
		return
	}

	if err := h.service.DeleteInvitation(r.Context(), invID); err != nil {
		if errors.Is(err, ErrInvitationNotFound) {
			httputil.WriteNotFound(w, ErrInvitationNotFound.Error())
			return
		}
		h.logger.WithError(err).Error("failed to delete invitation")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteNoContent(w)
}

// GetInvitationPreview shows an invitation to its recipient before they sign
// in. The token itself authenticates the lookup, so this route is public.
func (h *Handlers) GetInvitationPreview(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	if token == "" {
		httputil.WriteBadRequest(w, "Invitation token is required")
		return
	}

	inv, err := h.service.GetInvitationByToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, ErrInvitationNotFound) {
			httputil.WriteNotFound(w, ErrInvitationNotFound.Error())
			return
		}
		h.logger.WithError(err).Error("failed to load invitation")
		httputil.WriteInternalError(w)
		return
	}

	org, err := h.service.GetOrganization(r.Context(), inv.OrganizationID)
	if err != nil {
		h.logger.WithError(err).Error("failed to load organization for invitation")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteSuccess(w, struct {
		Organization string     `json:"organization"`
		Email        string     `json:"email"`
		Role         string     `json:"role"`
		ExpiresAt    time.Time  `json:"expires_at"`
		AcceptedAt   *time.Time `json:"accepted_at,omitempty"`
	}{org.Name, inv.Email, inv.Role, inv.ExpiresAt, inv.AcceptedAt})
}

// AcceptInvitation consumes an invitation token for the calling user
func (h *Handlers) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, auth.ErrNoCredential.Error())
		return
	}

	var req struct {
		Token string `json:"token"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		httputil.WriteBadRequest(w, "Invitation token is required")
		return
	}
	if req.Name == "" {
		req.Name = user.Email
	}

	emp, err := h.service.AcceptInvitation(r.Context(), req.Token, user.ID, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvitationNotFound):
			httputil.WriteNotFound(w, ErrInvitationNotFound.Error())
		case errors.Is(err, ErrInvitationExpired):
			httputil.WriteBadRequest(w, ErrInvitationExpired.Error())
		case errors.Is(err, ErrInvitationAccepted):
			httputil.WriteBadRequest(w, ErrInvitationAccepted.Error())
		case errors.Is(err, ErrUserAlreadyEmployee):
			httputil.WriteConflict(w, ErrUserAlreadyEmployee.Error())
		default:
			h.logger.WithError(err).Error("failed to accept invitation")
			httputil.WriteInternalError(w)
		}
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"org_id":      emp.OrganizationID,
		"employee_id": emp.ID,
	}).Info("invitation accepted")
	httputil.WriteCreated(w, emp)
}

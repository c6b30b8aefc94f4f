package rbac

import (
	"github.com/orgdeck/orgdeck/pkg/auth"
	"github.com/orgdeck/orgdeck/pkg/orgs"
)

// Role is the closed organizational role taxonomy. Admin is synthetic: it
// tags the organization owner and is never persisted as an employee row.
type Role string

const (
	RoleAdmin      Role = "Admin"
	RoleHOD        Role = "HOD"
	RoleTeamLead   Role = "Team Lead"
	RoleTeamMember Role = "Team Member"
	RoleUnassigned Role = "Unassigned"
)

// AssignableRoles are the roles an employee row may carry
var AssignableRoles = []Role{RoleHOD, RoleTeamLead, RoleTeamMember, RoleUnassigned}

// CustomizableRoles are the roles whose bundles an organization may override.
// Admin is fixed and Unassigned always resolves to the minimal bundle.
var CustomizableRoles = []Role{RoleHOD, RoleTeamLead, RoleTeamMember}

// ParseRole maps a stored role string onto the taxonomy. Empty or unknown
// values collapse to Unassigned.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin
	case RoleHOD:
		return RoleHOD
	case RoleTeamLead:
		return RoleTeamLead
	case RoleTeamMember:
		return RoleTeamMember
	default:
		return RoleUnassigned
	}
}

// IsAssignable reports whether the role may be stored on an employee or a
// permission row
func (r Role) IsAssignable() bool {
	for _, a := range AssignableRoles {
		if r == a {
			return true
		}
	}
	return false
}

// AccessScope is the breadth of employees a role may act upon
type AccessScope string

const (
	ScopeAll         AccessScope = "all"
	ScopeDepartment  AccessScope = "department"
	ScopeSubfunction AccessScope = "subfunction"
	ScopeNone        AccessScope = "none"
)

// Flag names a single capability in a permission bundle
type Flag string

const (
	FlagDashboardAccess        Flag = "dashboardAccess"
	FlagViewEmployees          Flag = "canViewEmployees"
	FlagViewRoleAssignment     Flag = "canViewRoleAssignment"
	FlagViewPayroll            Flag = "canViewPayroll"
	FlagViewPerformance        Flag = "canViewPerformance"
	FlagInviteEmployees        Flag = "canInviteEmployees"
	FlagAssignRoles            Flag = "canAssignRoles"
	FlagEditEmployeeProfiles   Flag = "canEditEmployeeProfiles"
	FlagDeleteEmployees        Flag = "canDeleteEmployees"
	FlagCreateDepartments      Flag = "canCreateDepartments"
	FlagEditDepartments        Flag = "canEditDepartments"
	FlagDeleteDepartments      Flag = "canDeleteDepartments"
	FlagSetPayroll             Flag = "canSetPayroll"
	FlagViewAllPayroll         Flag = "canViewAllPayroll"
	FlagViewOwnPayroll         Flag = "canViewOwnPayroll"
	FlagSetPerformanceReviews  Flag = "canSetPerformanceReviews"
	FlagViewAllPerformance     Flag = "canViewAllPerformance"
	FlagViewOwnPerformance     Flag = "canViewOwnPerformance"
	FlagViewOrgChart           Flag = "canViewOrgChart"
	FlagAccessChatbot          Flag = "canAccessChatbot"
)

// PermissionSet is the full capability bundle for a role within an
// organization. Fixed shape so every flag is known at compile time.
type PermissionSet struct {
	DashboardAccess          bool `json:"dashboardAccess"`
	CanViewEmployees         bool `json:"canViewEmployees"`
	CanViewRoleAssignment    bool `json:"canViewRoleAssignment"`
	CanViewPayroll           bool `json:"canViewPayroll"`
	CanViewPerformance       bool `json:"canViewPerformance"`
	CanInviteEmployees       bool `json:"canInviteEmployees"`
	CanAssignRoles           bool `json:"canAssignRoles"`
	CanEditEmployeeProfiles  bool `json:"canEditEmployeeProfiles"`
	CanDeleteEmployees       bool `json:"canDeleteEmployees"`
	CanCreateDepartments     bool `json:"canCreateDepartments"`
	CanEditDepartments       bool `json:"canEditDepartments"`
	CanDeleteDepartments     bool `json:"canDeleteDepartments"`
	CanSetPayroll            bool `json:"canSetPayroll"`
	CanViewAllPayroll        bool `json:"canViewAllPayroll"`
	CanViewOwnPayroll        bool `json:"canViewOwnPayroll"`
	CanSetPerformanceReviews bool `json:"canSetPerformanceReviews"`
	CanViewAllPerformance    bool `json:"canViewAllPerformance"`
	CanViewOwnPerformance    bool `json:"canViewOwnPerformance"`
	CanViewOrgChart          bool `json:"canViewOrgChart"`
	CanAccessChatbot         bool `json:"canAccessChatbot"`

	AccessScope AccessScope `json:"accessScope"`
}

// Has reports whether the named flag is set
func (p *PermissionSet) Has(flag Flag) bool {
	switch flag {
	case FlagDashboardAccess:
		return p.DashboardAccess
	case FlagViewEmployees:
		return p.CanViewEmployees
	case FlagViewRoleAssignment:
		return p.CanViewRoleAssignment
	case FlagViewPayroll:
		return p.CanViewPayroll
	case FlagViewPerformance:
		return p.CanViewPerformance
	case FlagInviteEmployees:
		return p.CanInviteEmployees
	case FlagAssignRoles:
		return p.CanAssignRoles
	case FlagEditEmployeeProfiles:
		return p.CanEditEmployeeProfiles
	case FlagDeleteEmployees:
		return p.CanDeleteEmployees
	case FlagCreateDepartments:
		return p.CanCreateDepartments
	case FlagEditDepartments:
		return p.CanEditDepartments
	case FlagDeleteDepartments:
		return p.CanDeleteDepartments
	case FlagSetPayroll:
		return p.CanSetPayroll
	case FlagViewAllPayroll:
		return p.CanViewAllPayroll
	case FlagViewOwnPayroll:
		return p.CanViewOwnPayroll
	case FlagSetPerformanceReviews:
		return p.CanSetPerformanceReviews
	case FlagViewAllPerformance:
		return p.CanViewAllPerformance
	case FlagViewOwnPerformance:
		return p.CanViewOwnPerformance
	case FlagViewOrgChart:
		return p.CanViewOrgChart
	case FlagAccessChatbot:
		return p.CanAccessChatbot
	default:
		return false
	}
}

// DefaultPermissions returns the default bundle for a role, computed purely
// from the role with no I/O. These defaults are the fallback when an
// organization has not customized a role, and the fixed truth for Admin.
func DefaultPermissions(role Role) *PermissionSet {
	switch role {
	case RoleAdmin:
		return &PermissionSet{
			DashboardAccess:          true,
			CanViewEmployees:         true,
			CanViewRoleAssignment:    true,
			CanViewPayroll:           true,
			CanViewPerformance:       true,
			CanInviteEmployees:       true,
			CanAssignRoles:           true,
			CanEditEmployeeProfiles:  true,
			CanDeleteEmployees:       true,
			CanCreateDepartments:     true,
			CanEditDepartments:       true,
			CanDeleteDepartments:     true,
			CanSetPayroll:            true,
			CanViewAllPayroll:        true,
			CanViewOwnPayroll:        true,
			CanSetPerformanceReviews: true,
			CanViewAllPerformance:    true,
			CanViewOwnPerformance:    true,
			CanViewOrgChart:          true,
			CanAccessChatbot:         true,
			AccessScope:              ScopeAll,
		}
	case RoleHOD:
		return &PermissionSet{
			DashboardAccess:          true,
			CanViewEmployees:         true,
			CanViewRoleAssignment:    true,
			CanViewPayroll:           true,
			CanViewPerformance:       true,
			CanAssignRoles:           true,
			CanEditEmployeeProfiles:  true,
			CanSetPayroll:            true,
			CanViewOwnPayroll:        true,
			CanSetPerformanceReviews: true,
			CanViewOwnPerformance:    true,
			CanViewOrgChart:          true,
			AccessScope:              ScopeDepartment,
		}
	case RoleTeamLead, RoleTeamMember:
		return &PermissionSet{
			CanViewOwnPayroll:     true,
			CanViewOwnPerformance: true,
			CanViewOrgChart:       true,
			AccessScope:           ScopeNone,
		}
	default:
		return UnassignedPermissions()
	}
}

// UnassignedPermissions is the minimal bundle for employees awaiting a role
// assignment: they can see where they sit in the organization and nothing
// else.
func UnassignedPermissions() *PermissionSet {
	return &PermissionSet{
		CanViewOrgChart: true,
		AccessScope:     ScopeNone,
	}
}

// Classification is the outcome of role classification for a principal
type Classification struct {
	User         *auth.User         `json:"user"`
	Organization *orgs.Organization `json:"organization"`
	Role         Role               `json:"role"`

	// Employee is nil for Admin (the owner holds no employee row)
	Employee *orgs.Employee `json:"employee,omitempty"`
}

// AuthzContext is the request-scoped authorization state the gate attaches
// for downstream handlers
type AuthzContext struct {
	User         *auth.User
	Organization *orgs.Organization
	Role         Role
	Employee     *orgs.Employee
	Permissions  *PermissionSet
}

// AccessDecision is the outcome of target-employee scope evaluation
type AccessDecision struct {
	Allowed bool   `json:"allowed"`
	Scope   string `json:"scope"`
}

// Decision scopes reported by the evaluator
const (
	DecisionScopeAll        = "all"
	DecisionScopeDepartment = "department"
	DecisionScopeSelf       = "self"
)

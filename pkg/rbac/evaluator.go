package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/orgdeck/orgdeck/pkg/orgs"
)

// Evaluator decides whether a principal may act on a specific target
// employee, based on role and the access scope of the resolved bundle.
type Evaluator struct {
	orgs OrgSource
}

// NewEvaluator creates a new access scope evaluator
func NewEvaluator(orgSource OrgSource) *Evaluator {
	return &Evaluator{orgs: orgSource}
}

// CanAccess evaluates whether the classified principal may act on the target
// employee. Admins reach everyone in their organization. A department-scoped
// role reaches employees sharing its department; an actor or target without
// a department is simply out of reach, never an error. Everything else is
// self-only.
func (e *Evaluator) CanAccess(ctx context.Context, authz *AuthzContext, targetEmployeeID int64) (*AccessDecision, error) {
	target, err := e.orgs.GetEmployee(ctx, targetEmployeeID)
	if err != nil {
		if errors.Is(err, orgs.ErrEmployeeNotFound) {
			return nil, ErrTargetNotFound
		}
		return nil, fmt.Errorf("failed to load target employee: %w", err)
	}
	if target.OrganizationID != authz.Organization.ID {
		return nil, ErrTargetNotFound
	}

	if authz.Role == RoleAdmin {
		return &AccessDecision{Allowed: true, Scope: DecisionScopeAll}, nil
	}

	if authz.Role == RoleHOD && authz.Permissions.AccessScope == ScopeDepartment {
		actor := authz.Employee
		allowed := actor != nil && actor.DepartmentID != nil && target.DepartmentID != nil &&
			*actor.DepartmentID == *target.DepartmentID
		return &AccessDecision{Allowed: allowed, Scope: DecisionScopeDepartment}, nil
	}

	allowed := authz.Employee != nil && authz.Employee.ID == target.ID
	return &AccessDecision{Allowed: allowed, Scope: DecisionScopeSelf}, nil
}

package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/orgdeck/orgdeck/pkg/auth"
	"github.com/orgdeck/orgdeck/pkg/orgs"
)

// UserSource looks up principals
type UserSource interface {
	GetUserByID(ctx context.Context, id int64) (*auth.User, error)
}

// OrgSource looks up organizations and employee records
type OrgSource interface {
	GetOrganization(ctx context.Context, id int64) (*orgs.Organization, error)
	GetOrganizationByOwner(ctx context.Context, userID int64) (*orgs.Organization, error)
	GetEmployeeByUser(ctx context.Context, orgID, userID int64) (*orgs.Employee, error)
	GetEmployee(ctx context.Context, id int64) (*orgs.Employee, error)
}

// Classifier determines the organizational role a principal holds: the
// organization's owner (Admin) or a linked employee with an assigned role.
type Classifier struct {
	users UserSource
	orgs  OrgSource
}

// NewClassifier creates a new role classifier
func NewClassifier(users UserSource, orgSource OrgSource) *Classifier {
	return &Classifier{users: users, orgs: orgSource}
}

// Classify resolves a principal to a role within an organization. The
// ordering is load-bearing: owner status always wins, so the creator of an
// organization keeps full control even if also invited elsewhere or if the
// target hint is ambiguous. Read-only; no side effects.
func (c *Classifier) Classify(ctx context.Context, principalID int64, targetOrgID *int64) (*Classification, error) {
	user, err := c.users.GetUserByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	owned, err := c.orgs.GetOrganizationByOwner(ctx, principalID)
	if err != nil && !errors.Is(err, orgs.ErrOrganizationNotFound) {
		return nil, fmt.Errorf("failed to look up owned organization: %w", err)
	}
	if owned != nil && (targetOrgID == nil || *targetOrgID == owned.ID) {
		return &Classification{
			User:         user,
			Organization: owned,
			Role:         RoleAdmin,
		}, nil
	}

	var orgID int64
	switch {
	case targetOrgID != nil:
		orgID = *targetOrgID
	case user.LinkedOrganizationID != nil:
		orgID = *user.LinkedOrganizationID
	default:
		return nil, ErrNoOrganizationContext
	}

	org, err := c.orgs.GetOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, orgs.ErrOrganizationNotFound) {
			return nil, ErrTargetNotFound
		}
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}

	employee, err := c.orgs.GetEmployeeByUser(ctx, orgID, principalID)
	if err != nil {
		if errors.Is(err, orgs.ErrEmployeeNotFound) {
			return nil, ErrEmployeeRecordNotFound
		}
		return nil, fmt.Errorf("failed to load employee record: %w", err)
	}

	return &Classification{
		User:         user,
		Organization: org,
		Role:         ParseRole(employee.Role),
		Employee:     employee,
	}, nil
}

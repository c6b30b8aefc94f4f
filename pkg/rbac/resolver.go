package rbac

import (
	"context"
	"fmt"
)

// Resolver produces the effective permission bundle for a classified
// principal. Resolution never invents flags: Admin gets the fixed full
// bundle, stored overrides win for assignable roles, and everything else
// falls back to role defaults.
type Resolver struct {
	store *Store
	cache *Cache
}

// NewResolver creates a permission resolver. cache may be nil, in which case
// every resolution goes to the store.
func NewResolver(store *Store, cache *Cache) *Resolver {
	return &Resolver{store: store, cache: cache}
}

// Resolve returns the effective bundle for a role within an organization.
// Admin ignores stored rows entirely, so a tampered or stale row can never
// weaken the owner. Unassigned resolves without any lookup.
func (r *Resolver) Resolve(ctx context.Context, orgID int64, role Role) (*PermissionSet, error) {
	switch role {
	case RoleAdmin:
		return DefaultPermissions(RoleAdmin), nil
	case RoleUnassigned:
		return UnassignedPermissions(), nil
	}

	if r.cache != nil {
		if set := r.cache.Get(ctx, orgID, role); set != nil {
			return set, nil
		}
	}

	stored, err := r.store.GetPermissionSet(ctx, orgID, role)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve permissions for %s: %w", role, err)
	}

	set := stored
	if set == nil {
		set = DefaultPermissions(role)
	}

	if r.cache != nil {
		r.cache.Put(ctx, orgID, role, set)
	}
	return set, nil
}

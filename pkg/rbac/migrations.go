package rbac

import "github.com/orgdeck/orgdeck/pkg/storage"

// Migrations returns the permissions schema migrations (version 20)
func Migrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     20,
			Description: "Create permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS permissions (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					role TEXT NOT NULL,
					bundle TEXT NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (organization_id, role)
				);
				CREATE INDEX IF NOT EXISTS idx_permissions_org ON permissions(organization_id);
			`,
		},
	}
}

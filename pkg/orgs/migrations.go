package orgs

import "github.com/orgdeck/orgdeck/pkg/storage"

// Migrations returns the organization schema migrations (versions 10-13)
func Migrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     10,
			Description: "Create organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					owner_user_id BIGINT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);
			`,
		},
		{
			Version:     11,
			Description: "Create departments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS departments (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					subfunctions TEXT NOT NULL DEFAULT '[]',
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(organization_id, name)
				);

				CREATE INDEX IF NOT EXISTS idx_departments_organization_id ON departments(organization_id);
			`,
		},
		{
			Version:     12,
			Description: "Create employees table",
			SQL: `
				CREATE TABLE IF NOT EXISTS employees (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					email VARCHAR(255) NOT NULL,
					role VARCHAR(50) NOT NULL DEFAULT 'Unassigned',
					department_id BIGINT REFERENCES departments(id) ON DELETE SET NULL,
					subfunction_index INT,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(organization_id, email),
					UNIQUE(organization_id, user_id)
				);

				CREATE INDEX IF NOT EXISTS idx_employees_organization_id ON employees(organization_id);
				CREATE INDEX IF NOT EXISTS idx_employees_user_id ON employees(user_id);
				CREATE INDEX IF NOT EXISTS idx_employees_department_id ON employees(department_id);
			`,
		},
		{
			Version:     13,
			Description: "Create invitations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS invitations (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					email VARCHAR(255) NOT NULL,
					role VARCHAR(50) NOT NULL DEFAULT 'Unassigned',
					department_id BIGINT REFERENCES departments(id) ON DELETE SET NULL,
					token VARCHAR(64) NOT NULL UNIQUE,
					invited_by BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					invited_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					expires_at TIMESTAMP NOT NULL,
					accepted_at TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_invitations_organization_id ON invitations(organization_id);
				CREATE INDEX IF NOT EXISTS idx_invitations_email ON invitations(email);
				CREATE INDEX IF NOT EXISTS idx_invitations_expires_at ON invitations(expires_at);
			`,
		},
	}
}

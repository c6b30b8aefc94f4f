package orgs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PostgresService implements organization, department, and employee
// persistence over database/sql.
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// CreateOrganization creates a new organization. A user owns at most one
// organization; the unique index on owner_user_id backs the pre-check.
func (s *PostgresService) CreateOrganization(ctx context.Context, org *Organization) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM organizations WHERE owner_user_id = $1)`, org.OwnerUserID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check owner: %w", err)
	}
	if exists {
		return ErrAlreadyOwner
	}

	query := `
		INSERT INTO organizations (name, owner_user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		RETURNING id
	`

	now := time.Now()
	if err := s.db.QueryRowContext(ctx, query, org.Name, org.OwnerUserID, now).Scan(&org.ID); err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	org.CreatedAt = now
	org.UpdatedAt = now
	return nil
}

// GetOrganization retrieves an organization by ID
func (s *PostgresService) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	query := `
		SELECT id, name, owner_user_id, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`
	return s.scanOrganization(s.db.QueryRowContext(ctx, query, id))
}

// GetOrganizationByOwner retrieves the organization owned by a user, if any
func (s *PostgresService) GetOrganizationByOwner(ctx context.Context, userID int64) (*Organization, error) {
	query := `
		SELECT id, name, owner_user_id, created_at, updated_at
		FROM organizations
		WHERE owner_user_id = $1
	`
	return s.scanOrganization(s.db.QueryRowContext(ctx, query, userID))
}

// UpdateOrganization renames an organization
func (s *PostgresService) UpdateOrganization(ctx context.Context, id int64, name string) error {
	query := `UPDATE organizations SET name = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	result, err := s.db.ExecContext(ctx, query, name, id)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	return checkAffected(result, ErrOrganizationNotFound)
}

// DeleteOrganization removes an organization. Departments, employees,
// invitations, and permission rows go with it via ON DELETE CASCADE; linked
// users are detached here since the user row outlives the organization.
func (s *PostgresService) DeleteOrganization(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET linked_organization_id = NULL, updated_at = CURRENT_TIMESTAMP WHERE linked_organization_id = $1`, id,
	); err != nil {
		return fmt.Errorf("failed to unlink users: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	if err := checkAffected(result, ErrOrganizationNotFound); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *PostgresService) scanOrganization(row *sql.Row) (*Organization, error) {
	var org Organization
	err := row.Scan(&org.ID, &org.Name, &org.OwnerUserID, &org.CreatedAt, &org.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

// CreateDepartment creates a department within an organization
func (s *PostgresService) CreateDepartment(ctx context.Context, dept *Department) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM departments WHERE organization_id = $1 AND name = $2)`,
		dept.OrganizationID, dept.Name,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check department name: %w", err)
	}
	if exists {
		return ErrDepartmentNameTaken
	}

	if dept.Subfunctions == nil {
		dept.Subfunctions = []string{}
	}
	subfunctionsJSON, err := json.Marshal(dept.Subfunctions)
	if err != nil {
		return fmt.Errorf("failed to marshal subfunctions: %w", err)
	}

	query := `
		INSERT INTO departments (organization_id, name, subfunctions, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	now := time.Now()
	if err := s.db.QueryRowContext(ctx, query, dept.OrganizationID, dept.Name, subfunctionsJSON, now).Scan(&dept.ID); err != nil {
		return fmt.Errorf("failed to create department: %w", err)
	}

	dept.CreatedAt = now
	return nil
}

// GetDepartment retrieves a department by ID
func (s *PostgresService) GetDepartment(ctx context.Context, id int64) (*Department, error) {
	query := `
		SELECT id, organization_id, name, subfunctions, created_at
		FROM departments
		WHERE id = $1
	`

	var dept Department
	var subfunctionsJSON []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&dept.ID, &dept.OrganizationID, &dept.Name, &subfunctionsJSON, &dept.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrDepartmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get department: %w", err)
	}

	if err := json.Unmarshal(subfunctionsJSON, &dept.Subfunctions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subfunctions: %w", err)
	}

	return &dept, nil
}

// ListDepartments lists all departments of an organization
func (s *PostgresService) ListDepartments(ctx context.Context, orgID int64) ([]*Department, error) {
	query := `
		SELECT id, organization_id, name, subfunctions, created_at
		FROM departments
		WHERE organization_id = $1
		ORDER BY name
	`

	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	defer rows.Close()

	var departments []*Department
	for rows.Next() {
		var dept Department
		var subfunctionsJSON []byte
		if err := rows.Scan(&dept.ID, &dept.OrganizationID, &dept.Name, &subfunctionsJSON, &dept.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan department: %w", err)
		}
		if err := json.Unmarshal(subfunctionsJSON, &dept.Subfunctions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal subfunctions: %w", err)
		}
		departments = append(departments, &dept)
	}

	return departments, rows.Err()
}

// UpdateDepartment updates a department's name and subfunction list
func (s *PostgresService) UpdateDepartment(ctx context.Context, dept *Department) error {
	subfunctionsJSON, err := json.Marshal(dept.Subfunctions)
	if err != nil {
		return fmt.Errorf("failed to marshal subfunctions: %w", err)
	}

	query := `UPDATE departments SET name = $1, subfunctions = $2 WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, dept.Name, subfunctionsJSON, dept.ID)
	if err != nil {
		return fmt.Errorf("failed to update department: %w", err)
	}
	return checkAffected(result, ErrDepartmentNotFound)
}

// DeleteDepartment removes a department. Employees keep their rows with the
// department reference cleared (ON DELETE SET NULL).
func (s *PostgresService) DeleteDepartment(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete department: %w", err)
	}
	return checkAffected(result, ErrDepartmentNotFound)
}

// CreateEmployee creates an employee record. The email must be unused within
// the organization and the user must not already be an employee anywhere;
// unique indexes back both pre-checks.
func (s *PostgresService) CreateEmployee(ctx context.Context, emp *Employee) error {
	emp.Email = strings.ToLower(strings.TrimSpace(emp.Email))
	if emp.Role == "" {
		emp.Role = "Unassigned"
	}

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM employees WHERE organization_id = $1 AND email = $2)`,
		emp.OrganizationID, emp.Email,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check employee email: %w", err)
	}
	if exists {
		return ErrEmployeeEmailTaken
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM employees WHERE user_id = $1)`, emp.UserID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check employee user: %w", err)
	}
	if exists {
		return ErrUserAlreadyEmployee
	}

	query := `
		INSERT INTO employees (organization_id, user_id, name, email, role, department_id, subfunction_index, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id
	`

	now := time.Now()
	err = s.db.QueryRowContext(ctx, query,
		emp.OrganizationID, emp.UserID, emp.Name, emp.Email, emp.Role,
		emp.DepartmentID, emp.SubfunctionIndex, now,
	).Scan(&emp.ID)
	if err != nil {
		return fmt.Errorf("failed to create employee: %w", err)
	}

	emp.CreatedAt = now
	emp.UpdatedAt = now
	return nil
}

// GetEmployee retrieves an employee by ID
func (s *PostgresService) GetEmployee(ctx context.Context, id int64) (*Employee, error) {
	query := employeeSelect + ` WHERE id = $1`
	return s.scanEmployee(s.db.QueryRowContext(ctx, query, id))
}

// GetEmployeeByUser retrieves the employee record a user holds within an
// organization
func (s *PostgresService) GetEmployeeByUser(ctx context.Context, orgID, userID int64) (*Employee, error) {
	query := employeeSelect + ` WHERE organization_id = $1 AND user_id = $2`
	return s.scanEmployee(s.db.QueryRowContext(ctx, query, orgID, userID))
}

// ListEmployees lists all employees of an organization
func (s *PostgresService) ListEmployees(ctx context.Context, orgID int64) ([]*Employee, error) {
	query := employeeSelect + ` WHERE organization_id = $1 ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []*Employee
	for rows.Next() {
		emp, err := scanEmployeeRow(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}

	return employees, rows.Err()
}

// ListEmployeesByDepartment lists employees assigned to a department
func (s *PostgresService) ListEmployeesByDepartment(ctx context.Context, deptID int64) ([]*Employee, error) {
	query := employeeSelect + ` WHERE department_id = $1 ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, deptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []*Employee
	for rows.Next() {
		emp, err := scanEmployeeRow(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}

	return employees, rows.Err()
}

// UpdateEmployee updates an employee's profile, role, and department
// assignment
func (s *PostgresService) UpdateEmployee(ctx context.Context, emp *Employee) error {
	if emp.Role == "" {
		emp.Role = "Unassigned"
	}

	query := `
		UPDATE employees
		SET name = $1, role = $2, department_id = $3, subfunction_index = $4, updated_at = CURRENT_TIMESTAMP
		WHERE id = $5
	`
	result, err := s.db.ExecContext(ctx, query,
		emp.Name, emp.Role, emp.DepartmentID, emp.SubfunctionIndex, emp.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update employee: %w", err)
	}
	return checkAffected(result, ErrEmployeeNotFound)
}

// DeleteEmployee removes an employee record and detaches the linked user
func (s *PostgresService) DeleteEmployee(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var userID int64
	err = tx.QueryRowContext(ctx, `SELECT user_id FROM employees WHERE id = $1`, id).Scan(&userID)
	if err == sql.ErrNoRows {
		return ErrEmployeeNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get employee: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM employees WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete employee: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET linked_organization_id = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, userID,
	); err != nil {
		return fmt.Errorf("failed to unlink user: %w", err)
	}

	return tx.Commit()
}

const employeeSelect = `
	SELECT id, organization_id, user_id, name, email, role, department_id, subfunction_index, created_at, updated_at
	FROM employees`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *PostgresService) scanEmployee(row *sql.Row) (*Employee, error) {
	emp, err := scanEmployeeRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrEmployeeNotFound
	}
	return emp, err
}

func scanEmployeeRow(row rowScanner) (*Employee, error) {
	var emp Employee
	var departmentID sql.NullInt64
	var subfunctionIndex sql.NullInt64

	err := row.Scan(
		&emp.ID, &emp.OrganizationID, &emp.UserID, &emp.Name, &emp.Email,
		&emp.Role, &departmentID, &subfunctionIndex, &emp.CreatedAt, &emp.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan employee: %w", err)
	}

	if departmentID.Valid {
		d := departmentID.Int64
		emp.DepartmentID = &d
	}
	if subfunctionIndex.Valid {
		idx := int(subfunctionIndex.Int64)
		emp.SubfunctionIndex = &idx
	}

	return &emp, nil
}

func checkAffected(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/appointment-scheduler/internal/persistence"
)

// DepartmentRepository implements persistence.DepartmentRepository using
// SQLite.
type DepartmentRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewDepartmentRepository creates a SQLite department repository.
func NewDepartmentRepository(pool *ConnectionPool) *DepartmentRepository {
	return &DepartmentRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const departmentColumns = `id, name, description, created_at, updated_at`

// CreateDepartment inserts a department.
func (r *DepartmentRepository) CreateDepartment(ctx context.Context, department persistence.Department) error {
	const query = `
		INSERT INTO departments (` + departmentColumns + `)
		VALUES (?, ?, ?, ?, ?)`

	_, err := r.helper.Exec(ctx, query,
		department.ID,
		department.Name,
		department.Description,
		formatTimestamp(department.CreatedAt),
		formatTimestamp(department.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// GetDepartment retrieves a department by id.
func (r *DepartmentRepository) GetDepartment(ctx context.Context, id string) (persistence.Department, error) {
	const query = `SELECT ` + departmentColumns + ` FROM departments WHERE id = ?`

	department, err := r.scanDepartment(r.helper.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Department{}, persistence.ErrNotFound
		}
		return persistence.Department{}, err
	}
	return department, nil
}

// UpdateDepartment replaces the mutable columns of a department.
func (r *DepartmentRepository) UpdateDepartment(ctx context.Context, department persistence.Department) error {
	const query = `
		UPDATE departments
		SET name = ?, description = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.helper.Exec(ctx, query,
		department.Name,
		department.Description,
		formatTimestamp(department.UpdatedAt),
		department.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRows(result)
}

// DeleteDepartment removes a department; membership and batch links cascade.
func (r *DepartmentRepository) DeleteDepartment(ctx context.Context, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM departments WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRows(result)
}

// ListDepartments returns every department ordered by name.
func (r *DepartmentRepository) ListDepartments(ctx context.Context) ([]persistence.Department, error) {
	const query = `SELECT ` + departmentColumns + ` FROM departments ORDER BY name ASC, id ASC`

	rows, err := r.helper.Query(ctx, query)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var departments []persistence.Department
	for rows.Next() {
		department, err := r.scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		departments = append(departments, department)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return departments, nil
}

// SetMembers replaces the member set of a department.
func (r *DepartmentRepository) SetMembers(ctx context.Context, departmentID string, userIDs []string) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := r.helper.ExecTx(tx, `DELETE FROM department_users WHERE department_id = ?`, departmentID); err != nil {
			return r.mapper.MapError(err)
		}
		for _, userID := range userIDs {
			_, err := r.helper.ExecTx(tx,
				`INSERT INTO department_users (department_id, user_id) VALUES (?, ?)`,
				departmentID, userID)
			if err != nil {
				return r.mapper.MapError(err)
			}
		}
		return nil
	})
}

// ListMemberIDs returns the member ids of a department.
func (r *DepartmentRepository) ListMemberIDs(ctx context.Context, departmentID string) ([]string, error) {
	const query = `SELECT user_id FROM department_users WHERE department_id = ? ORDER BY user_id ASC`
	return r.listStrings(ctx, query, departmentID)
}

// ListMemberIDsForDepartments returns the distinct union of members across
// the given departments.
func (r *DepartmentRepository) ListMemberIDsForDepartments(ctx context.Context, departmentIDs []string) ([]string, error) {
	if len(departmentIDs) == 0 {
		return nil, nil
	}

	query := `SELECT DISTINCT user_id FROM department_users WHERE department_id IN (` +
		placeholders(len(departmentIDs)) + `) ORDER BY user_id ASC`
	args := make([]any, 0, len(departmentIDs))
	for _, id := range departmentIDs {
		args = append(args, id)
	}
	return r.listStrings(ctx, query, args...)
}

// ListDepartmentIDsForUser returns the departments a user belongs to.
func (r *DepartmentRepository) ListDepartmentIDsForUser(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT department_id FROM department_users WHERE user_id = ? ORDER BY department_id ASC`
	return r.listStrings(ctx, query, userID)
}

func (r *DepartmentRepository) listStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, r.mapper.MapError(err)
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return values, nil
}

func (r *DepartmentRepository) scanDepartment(row rowScanner) (persistence.Department, error) {
	var department persistence.Department
	var createdAt, updatedAt string

	err := row.Scan(
		&department.ID,
		&department.Name,
		&department.Description,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Department{}, err
		}
		return persistence.Department{}, r.mapper.MapError(err)
	}

	if department.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.Department{}, err
	}
	if department.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.Department{}, err
	}
	return department, nil
}

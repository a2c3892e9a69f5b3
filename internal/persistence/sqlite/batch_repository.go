package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/appointment-scheduler/internal/persistence"
)

// BatchConfigRepository implements persistence.BatchConfigRepository using
// SQLite.
type BatchConfigRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewBatchConfigRepository creates a SQLite batch config repository.
func NewBatchConfigRepository(pool *ConnectionPool) *BatchConfigRepository {
	return &BatchConfigRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const batchColumns = `id, name, rule_type, target_type, config_data, apply_to_future, created_at, updated_at`

// CreateBatchConfig inserts a template.
func (r *BatchConfigRepository) CreateBatchConfig(ctx context.Context, config persistence.BatchConfig) error {
	const query = `
		INSERT INTO batch_configs (` + batchColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.helper.Exec(ctx, query,
		config.ID,
		config.Name,
		config.RuleType,
		config.TargetType,
		string(config.ConfigData),
		boolToInt(config.ApplyToFuture),
		formatTimestamp(config.CreatedAt),
		formatTimestamp(config.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// GetBatchConfig retrieves a template by id.
func (r *BatchConfigRepository) GetBatchConfig(ctx context.Context, id string) (persistence.BatchConfig, error) {
	const query = `SELECT ` + batchColumns + ` FROM batch_configs WHERE id = ?`

	config, err := r.scanConfig(r.helper.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.BatchConfig{}, persistence.ErrNotFound
		}
		return persistence.BatchConfig{}, err
	}
	return config, nil
}

// UpdateBatchConfig replaces the mutable columns of a template.
func (r *BatchConfigRepository) UpdateBatchConfig(ctx context.Context, config persistence.BatchConfig) error {
	const query = `
		UPDATE batch_configs
		SET name = ?, target_type = ?, config_data = ?, apply_to_future = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.helper.Exec(ctx, query,
		config.Name,
		config.TargetType,
		string(config.ConfigData),
		boolToInt(config.ApplyToFuture),
		formatTimestamp(config.UpdatedAt),
		config.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRows(result)
}

// DeleteBatchConfig removes a template. Owned availability rules, owned
// topics, and department links cascade through foreign keys.
func (r *BatchConfigRepository) DeleteBatchConfig(ctx context.Context, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM batch_configs WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRows(result)
}

// ListBatchConfigs returns every template ordered by creation.
func (r *BatchConfigRepository) ListBatchConfigs(ctx context.Context) ([]persistence.BatchConfig, error) {
	const query = `SELECT ` + batchColumns + ` FROM batch_configs ORDER BY created_at ASC, id ASC`
	return r.listConfigs(ctx, query)
}

// SetBatchDepartments replaces the department links of a template.
func (r *BatchConfigRepository) SetBatchDepartments(ctx context.Context, batchID string, departmentIDs []string) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := r.helper.ExecTx(tx, `DELETE FROM batch_departments WHERE batch_config_id = ?`, batchID); err != nil {
			return r.mapper.MapError(err)
		}
		for _, departmentID := range departmentIDs {
			_, err := r.helper.ExecTx(tx,
				`INSERT INTO batch_departments (batch_config_id, department_id) VALUES (?, ?)`,
				batchID, departmentID)
			if err != nil {
				return r.mapper.MapError(err)
			}
		}
		return nil
	})
}

// ListBatchDepartmentIDs returns the department links of a template.
func (r *BatchConfigRepository) ListBatchDepartmentIDs(ctx context.Context, batchID string) ([]string, error) {
	const query = `SELECT department_id FROM batch_departments WHERE batch_config_id = ? ORDER BY department_id ASC`

	rows, err := r.helper.Query(ctx, query, batchID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, r.mapper.MapError(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return ids, nil
}

// ListFutureConfigsForDepartment returns department-targeted applyToFuture
// templates linked to the department.
func (r *BatchConfigRepository) ListFutureConfigsForDepartment(ctx context.Context, departmentID string) ([]persistence.BatchConfig, error) {
	const query = `
		SELECT b.id, b.name, b.rule_type, b.target_type, b.config_data, b.apply_to_future, b.created_at, b.updated_at
		FROM batch_configs b
		JOIN batch_departments bd ON bd.batch_config_id = b.id
		WHERE bd.department_id = ? AND b.target_type = ? AND b.apply_to_future = 1
		ORDER BY b.created_at ASC, b.id ASC`
	return r.listConfigs(ctx, query, departmentID, persistence.BatchTargetDepartment)
}

// ListFutureUserConfigs returns user-targeted applyToFuture templates.
func (r *BatchConfigRepository) ListFutureUserConfigs(ctx context.Context) ([]persistence.BatchConfig, error) {
	const query = `
		SELECT ` + batchColumns + `
		FROM batch_configs
		WHERE target_type = ? AND apply_to_future = 1
		ORDER BY created_at ASC, id ASC`
	return r.listConfigs(ctx, query, persistence.BatchTargetUser)
}

func (r *BatchConfigRepository) listConfigs(ctx context.Context, query string, args ...any) ([]persistence.BatchConfig, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var configs []persistence.BatchConfig
	for rows.Next() {
		config, err := r.scanConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, config)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return configs, nil
}

func (r *BatchConfigRepository) scanConfig(row rowScanner) (persistence.BatchConfig, error) {
	var config persistence.BatchConfig
	var configData string
	var applyToFuture int
	var createdAt, updatedAt string

	err := row.Scan(
		&config.ID,
		&config.Name,
		&config.RuleType,
		&config.TargetType,
		&configData,
		&applyToFuture,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.BatchConfig{}, err
		}
		return persistence.BatchConfig{}, r.mapper.MapError(err)
	}

	config.ConfigData = []byte(configData)
	config.ApplyToFuture = applyToFuture != 0
	if config.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.BatchConfig{}, err
	}
	if config.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.BatchConfig{}, err
	}
	return config, nil
}

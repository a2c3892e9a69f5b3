package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/appointment-scheduler/internal/persistence"
)

// SettingsRepository implements persistence.SettingsRepository using SQLite.
type SettingsRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewSettingsRepository creates a SQLite settings repository.
func NewSettingsRepository(pool *ConnectionPool) *SettingsRepository {
	return &SettingsRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// GetSetting retrieves a setting by key.
func (r *SettingsRepository) GetSetting(ctx context.Context, key string) (persistence.Setting, error) {
	const query = `SELECT key, value, updated_at FROM settings WHERE key = ?`

	var setting persistence.Setting
	var updatedAt string
	err := r.helper.QueryRow(ctx, query, key).Scan(&setting.Key, &setting.Value, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Setting{}, persistence.ErrNotFound
		}
		return persistence.Setting{}, r.mapper.MapError(err)
	}

	if setting.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.Setting{}, err
	}
	return setting, nil
}

// UpsertSetting stores or replaces a setting value.
func (r *SettingsRepository) UpsertSetting(ctx context.Context, setting persistence.Setting) error {
	const query = `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	_, err := r.helper.Exec(ctx, query,
		setting.Key,
		setting.Value,
		formatTimestamp(setting.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// ListSettings returns every setting ordered by key.
func (r *SettingsRepository) ListSettings(ctx context.Context) ([]persistence.Setting, error) {
	const query = `SELECT key, value, updated_at FROM settings ORDER BY key ASC`

	rows, err := r.helper.Query(ctx, query)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var settings []persistence.Setting
	for rows.Next() {
		var setting persistence.Setting
		var updatedAt string
		if err := rows.Scan(&setting.Key, &setting.Value, &updatedAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if setting.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
			return nil, err
		}
		settings = append(settings, setting)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return settings, nil
}

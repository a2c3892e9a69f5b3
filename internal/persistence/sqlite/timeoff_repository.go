package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/example/appointment-scheduler/internal/persistence"
)

// TimeOffRepository implements persistence.TimeOffRepository using SQLite.
type TimeOffRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewTimeOffRepository creates a SQLite time-off repository.
func NewTimeOffRepository(pool *ConnectionPool) *TimeOffRepository {
	return &TimeOffRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const timeOffColumns = `id, user_id, start_date, end_date, reason, created_at, updated_at`

// CreateTimeOff inserts a blocked range.
func (r *TimeOffRepository) CreateTimeOff(ctx context.Context, timeOff persistence.TimeOff) error {
	const query = `
		INSERT INTO time_off (` + timeOffColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.helper.Exec(ctx, query,
		timeOff.ID,
		timeOff.UserID,
		formatDate(timeOff.StartDate),
		formatDate(timeOff.EndDate),
		timeOff.Reason,
		formatTimestamp(timeOff.CreatedAt),
		formatTimestamp(timeOff.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// GetTimeOff retrieves a blocked range by id.
func (r *TimeOffRepository) GetTimeOff(ctx context.Context, id string) (persistence.TimeOff, error) {
	const query = `SELECT ` + timeOffColumns + ` FROM time_off WHERE id = ?`

	entry, err := r.scanTimeOff(r.helper.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.TimeOff{}, persistence.ErrNotFound
		}
		return persistence.TimeOff{}, err
	}
	return entry, nil
}

// ListTimeOffForUser returns a user's blocked ranges ordered by start date.
func (r *TimeOffRepository) ListTimeOffForUser(ctx context.Context, userID string) ([]persistence.TimeOff, error) {
	const query = `SELECT ` + timeOffColumns + ` FROM time_off WHERE user_id = ? ORDER BY start_date ASC, id ASC`
	return r.listTimeOff(ctx, query, userID)
}

// ListTimeOffOverlapping returns the blocked ranges of a user that intersect
// the inclusive date window [from, to].
func (r *TimeOffRepository) ListTimeOffOverlapping(ctx context.Context, userID string, from, to time.Time) ([]persistence.TimeOff, error) {
	const query = `
		SELECT ` + timeOffColumns + `
		FROM time_off
		WHERE user_id = ? AND start_date <= ? AND end_date >= ?
		ORDER BY start_date ASC, id ASC`
	return r.listTimeOff(ctx, query, userID, formatDate(to), formatDate(from))
}

// DeleteTimeOff removes a blocked range by id.
func (r *TimeOffRepository) DeleteTimeOff(ctx context.Context, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM time_off WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRows(result)
}

func (r *TimeOffRepository) listTimeOff(ctx context.Context, query string, args ...any) ([]persistence.TimeOff, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var entries []persistence.TimeOff
	for rows.Next() {
		entry, err := r.scanTimeOff(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return entries, nil
}

func (r *TimeOffRepository) scanTimeOff(row rowScanner) (persistence.TimeOff, error) {
	var entry persistence.TimeOff
	var startDate, endDate, createdAt, updatedAt string

	err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&startDate,
		&endDate,
		&entry.Reason,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.TimeOff{}, err
		}
		return persistence.TimeOff{}, r.mapper.MapError(err)
	}

	if entry.StartDate, err = parseDate(startDate); err != nil {
		return persistence.TimeOff{}, err
	}
	if entry.EndDate, err = parseDate(endDate); err != nil {
		return persistence.TimeOff{}, err
	}
	if entry.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.TimeOff{}, err
	}
	if entry.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.TimeOff{}, err
	}
	return entry, nil
}

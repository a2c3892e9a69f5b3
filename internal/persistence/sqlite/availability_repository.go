package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/example/appointment-scheduler/internal/persistence"
)

// AvailabilityRepository implements persistence.AvailabilityRepository using
// SQLite.
type AvailabilityRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewAvailabilityRepository creates a SQLite availability repository.
func NewAvailabilityRepository(pool *ConnectionPool) *AvailabilityRepository {
	return &AvailabilityRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const ruleColumns = `id, user_id, kind, day_of_week, specific_date, start_time, end_time, valid_until, owner_batch_id, created_at, updated_at`

// CreateRule inserts a single rule.
func (r *AvailabilityRepository) CreateRule(ctx context.Context, rule persistence.AvailabilityRule) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		return r.insertRule(tx, rule)
	})
}

// CreateRules inserts a batch of rules atomically.
func (r *AvailabilityRepository) CreateRules(ctx context.Context, rules []persistence.AvailabilityRule) error {
	if len(rules) == 0 {
		return nil
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, rule := range rules {
			if err := r.insertRule(tx, rule); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *AvailabilityRepository) insertRule(tx *sql.Tx, rule persistence.AvailabilityRule) error {
	const query = `
		INSERT INTO availability_rules (` + ruleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.helper.ExecTx(tx, query,
		rule.ID,
		rule.UserID,
		rule.Kind,
		nullableWeekday(rule.Weekday),
		nullableDate(rule.SpecificDate),
		rule.StartTime,
		rule.EndTime,
		nullableDate(rule.ValidUntil),
		nullableString(rule.OwnerBatchID),
		formatTimestamp(rule.CreatedAt),
		formatTimestamp(rule.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// GetRule retrieves a rule by id.
func (r *AvailabilityRepository) GetRule(ctx context.Context, id string) (persistence.AvailabilityRule, error) {
	const query = `SELECT ` + ruleColumns + ` FROM availability_rules WHERE id = ?`

	rule, err := r.scanRule(r.helper.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.AvailabilityRule{}, persistence.ErrNotFound
		}
		return persistence.AvailabilityRule{}, err
	}
	return rule, nil
}

// ListRulesForUser returns a user's rules ordered by creation.
func (r *AvailabilityRepository) ListRulesForUser(ctx context.Context, userID string) ([]persistence.AvailabilityRule, error) {
	const query = `SELECT ` + ruleColumns + ` FROM availability_rules WHERE user_id = ? ORDER BY created_at ASC, id ASC`

	rows, err := r.helper.Query(ctx, query, userID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var rules []persistence.AvailabilityRule
	for rows.Next() {
		rule, err := r.scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return rules, nil
}

// DeleteRule removes a rule by id.
func (r *AvailabilityRepository) DeleteRule(ctx context.Context, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM availability_rules WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRows(result)
}

// ListBatchOwnerIDs returns the distinct users holding rules owned by a
// batch template.
func (r *AvailabilityRepository) ListBatchOwnerIDs(ctx context.Context, batchID string) ([]string, error) {
	const query = `SELECT DISTINCT user_id FROM availability_rules WHERE owner_batch_id = ? ORDER BY user_id ASC`
	return r.listStrings(ctx, query, batchID)
}

// UpdateRulesForBatch overwrites the content of every rule owned by a batch
// template.
func (r *AvailabilityRepository) UpdateRulesForBatch(ctx context.Context, batchID string, content persistence.AvailabilityRuleContent, updatedAt time.Time) error {
	const query = `
		UPDATE availability_rules
		SET kind = ?, day_of_week = ?, specific_date = ?, start_time = ?, end_time = ?, valid_until = ?, updated_at = ?
		WHERE owner_batch_id = ?`

	_, err := r.helper.Exec(ctx, query,
		content.Kind,
		nullableWeekday(content.Weekday),
		nullableDate(content.SpecificDate),
		content.StartTime,
		content.EndTime,
		nullableDate(content.ValidUntil),
		formatTimestamp(updatedAt),
		batchID,
	)
	return r.mapper.MapError(err)
}

// DeleteRulesForBatch removes a batch template's rules for the given users.
func (r *AvailabilityRepository) DeleteRulesForBatch(ctx context.Context, batchID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}

	query := `DELETE FROM availability_rules WHERE owner_batch_id = ? AND user_id IN (` + placeholders(len(userIDs)) + `)`
	args := make([]any, 0, len(userIDs)+1)
	args = append(args, batchID)
	for _, id := range userIDs {
		args = append(args, id)
	}

	_, err := r.helper.Exec(ctx, query, args...)
	return r.mapper.MapError(err)
}

func (r *AvailabilityRepository) listStrings(ctx context.Context, query string, args ...any) ([]string, error) {
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

func (r *AvailabilityRepository) scanRule(row rowScanner) (persistence.AvailabilityRule, error) {
	var rule persistence.AvailabilityRule
	var weekday sql.NullInt64
	var specificDate, validUntil, ownerBatchID sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&rule.ID,
		&rule.UserID,
		&rule.Kind,
		&weekday,
		&specificDate,
		&rule.StartTime,
		&rule.EndTime,
		&validUntil,
		&ownerBatchID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.AvailabilityRule{}, err
		}
		return persistence.AvailabilityRule{}, r.mapper.MapError(err)
	}

	rule.Weekday = weekdayPtr(weekday)
	rule.OwnerBatchID = stringPtr(ownerBatchID)
	if rule.SpecificDate, err = datePtr(specificDate); err != nil {
		return persistence.AvailabilityRule{}, err
	}
	if rule.ValidUntil, err = datePtr(validUntil); err != nil {
		return persistence.AvailabilityRule{}, err
	}
	if rule.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.AvailabilityRule{}, err
	}
	if rule.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.AvailabilityRule{}, err
	}
	return rule, nil
}
